// Package chunks tracks which terrain chunks around a player are visible and
// requests their heightmaps from an asynchronous worker pool.
package chunks

import (
	"strconv"
	"strings"
)

// Key identifies one chunk at one resolution.
type Key struct {
	CX  int
	CZ  int
	Res int
}

func (k Key) String() string {
	return strconv.Itoa(k.CX) + ":" + strconv.Itoa(k.CZ) + ":" + strconv.Itoa(k.Res)
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Key{}, false
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Key{}, false
		}
		v[i] = n
	}
	if v[2] <= 0 {
		return Key{}, false
	}
	return Key{CX: v[0], CZ: v[1], Res: v[2]}, true
}

type State uint8

const (
	StateUnrequested State = iota
	StatePending
	StateReady
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	default:
		return "unrequested"
	}
}

// Request asks a worker to synthesize the heightmap for Key.
type Request struct {
	Key       string `json:"key"`
	Segment   string `json:"piSegment"`
	CX        int    `json:"cx"`
	CZ        int    `json:"cz"`
	WorldSize int    `json:"worldSize"`
	Res       int    `json:"res"`
}

// Response carries a computed heightmap back to whoever requested it.
type Response struct {
	Key    string    `json:"key"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Data   []float32 `json:"data"`
}

func (r Response) wellFormed() bool {
	return r.Width > 0 && r.Height > 0 && len(r.Data) == r.Width*r.Height
}
