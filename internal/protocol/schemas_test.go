package protocol_test

import (
	"encoding/json"
	"testing"

	"piverse.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	good := map[string]string{
		protocol.TypeHello:   `{"type":"HELLO","protocol_version":"1.0","player_name":"ada","max_queue":8}`,
		protocol.TypeMove:    `{"type":"MOVE","protocol_version":"1.0","dx":0.5,"dz":-1}`,
		protocol.TypeMoveTo:  `{"type":"MOVE_TO","protocol_version":"1.0","x":100.25,"z":-3}`,
		protocol.TypeHarvest: `{"type":"HARVEST","protocol_version":"1.0","food_id":"3141592653-food-2"}`,
		protocol.TypeRequest: `{"type":"request","key":"-1:2:33","piSegment":"3141592653","cx":-1,"cz":2,"worldSize":32,"res":33}`,
	}
	for typ, raw := range good {
		if err := v.Validate(typ, []byte(raw)); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}

	bad := map[string]string{
		protocol.TypeHello:   `{"type":"HELLO"}`,
		protocol.TypeMove:    `{"type":"MOVE","protocol_version":"1.0","dx":50,"dz":0}`,
		protocol.TypeHarvest: `{"type":"HARVEST","protocol_version":"1.0","food_id":""}`,
		protocol.TypeRequest: `{"type":"request","key":"a:b","piSegment":"31x","cx":0,"cz":0,"res":0}`,
	}
	for typ, raw := range bad {
		if err := v.Validate(typ, []byte(raw)); err == nil {
			t.Fatalf("%s: expected validation error", typ)
		}
	}
	if err := v.Validate("ACT", []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown type rejected")
	}
	if err := v.Validate(protocol.TypeMove, []byte(`{`)); err == nil {
		t.Fatalf("expected malformed JSON rejected")
	}
}

func TestHeightmapMsgMatchesWorkerContract(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	msg := protocol.HeightmapMsg{Type: protocol.TypeHeightmap, Key: "0:0:2", Width: 2, Height: 2, Data: []float32{0, 0.25, 0.5, 1}}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := v.Validate(protocol.TypeHeightmap, b); err != nil {
		t.Fatalf("validate: %v", err)
	}

	req := protocol.HeightmapRequestMsg{Type: protocol.TypeRequest, Key: "1:1:17", PiSegment: "314", CX: 1, CZ: 1, WorldSize: 32, Res: 17}
	b, _ = json.Marshal(req)
	var fields map[string]any
	_ = json.Unmarshal(b, &fields)
	for _, k := range []string{"type", "key", "piSegment", "cx", "cz", "worldSize", "res"} {
		if _, ok := fields[k]; !ok {
			t.Fatalf("request missing field %q: %s", k, b)
		}
	}
}

func TestHelloGameMode(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	for _, mode := range []string{protocol.GameModeExploration, protocol.GameModeSurvival} {
		raw := `{"type":"HELLO","protocol_version":"1.0","game_mode":"` + mode + `"}`
		if err := v.Validate(protocol.TypeHello, []byte(raw)); err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if !protocol.ValidGameMode(mode) {
			t.Fatalf("ValidGameMode(%q) = false", mode)
		}
	}
	if err := v.Validate(protocol.TypeHello, []byte(`{"type":"HELLO","protocol_version":"1.0","game_mode":"photo"}`)); err == nil {
		t.Fatalf("expected unknown game mode rejected")
	}
	if protocol.ValidGameMode("photo") {
		t.Fatalf("ValidGameMode(photo) = true")
	}
}
