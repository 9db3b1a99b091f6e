package protocol

import (
	"encoding/json"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const Version = "1.0"

// VersionConstraint is the range of client versions a server accepts.
const VersionConstraint = "^1.0"

// Session message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeMove    = "MOVE"
	TypeMoveTo  = "MOVE_TO"
	TypeHarvest = "HARVEST"
	TypeObs     = "OBS"
	TypeError   = "ERROR"
)

// Worker channel message types.
const (
	TypeRequest   = "request"
	TypeHeightmap = "heightmap"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

var (
	serverVersion = semver.MustParse(Version)
	constraint    = mustConstraint(VersionConstraint)
)

func mustConstraint(c string) *semver.Constraints {
	out, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return out
}

// Compatible reports whether a peer speaking v can talk to this server.
func Compatible(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return false
	}
	return constraint.Check(sv)
}

// Newer reports whether v is a later release than the server's own version.
func Newer(v string) bool {
	sv, err := semver.NewVersion(strings.TrimSpace(v))
	if err != nil {
		return false
	}
	return sv.GreaterThan(serverVersion)
}
