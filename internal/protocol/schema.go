package protocol

import (
	"bytes"
	"embed"
	"encoding/json"

	"github.com/samber/oops"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// schemaFiles maps inbound message types to their schema.
var schemaFiles = map[string]string{
	TypeHello:     "hello.schema.json",
	TypeMove:      "move.schema.json",
	TypeMoveTo:    "move_to.schema.json",
	TypeHarvest:   "harvest.schema.json",
	TypeRequest:   "request.schema.json",
	TypeHeightmap: "heightmap.schema.json",
}

// Validator checks raw messages against the embedded JSON Schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range schemaFiles {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, oops.In("protocol").With("schema", name).Wrapf(err, "read schema")
		}
		if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
			return nil, oops.In("protocol").With("schema", name).Wrapf(err, "add schema")
		}
	}
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(schemaFiles))}
	for typ, name := range schemaFiles {
		s, err := c.Compile(name)
		if err != nil {
			return nil, oops.In("protocol").With("schema", name).Wrapf(err, "compile schema")
		}
		v.schemas[typ] = s
	}
	return v, nil
}

// Validate checks raw against the schema registered for typ.
func (v *Validator) Validate(typ string, raw []byte) error {
	errb := oops.In("protocol").Code(ErrProtoBadRequest).With("type", typ)
	s := v.schemas[typ]
	if s == nil {
		return errb.Errorf("no schema for message type %q", typ)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errb.Wrapf(err, "decode %s", typ)
	}
	if err := s.Validate(doc); err != nil {
		return errb.Wrapf(err, "validate %s", typ)
	}
	return nil
}
