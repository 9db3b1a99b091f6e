package chunks

import (
	"piverse.ai/internal/sim/mathx"
	"piverse.ai/internal/sim/terrain/heightmap"
)

// Dispatcher hands a request to whatever computes heightmaps. Dispatch must
// not block the caller.
type Dispatcher interface {
	Dispatch(Request)
}

type DispatcherFunc func(Request)

func (f DispatcherFunc) Dispatch(r Request) { f(r) }

type entry struct {
	state State
	hm    heightmap.Heightmap
}

// Manager keeps one player's chunk cache. It is not safe for concurrent use;
// the world loop owns it.
type Manager struct {
	cfg        Config
	segment    string
	dispatcher Dispatcher

	entries map[Key]*entry
	visible []Key

	haveBase     bool
	baseX, baseZ int

	dispatched uint64
}

func NewManager(segment string, cfg Config, d Dispatcher) *Manager {
	return &Manager{
		cfg:        cfg.normalize(),
		segment:    segment,
		dispatcher: d,
		entries:    map[Key]*entry{},
	}
}

func (m *Manager) Config() Config     { return m.cfg }
func (m *Manager) Segment() string    { return m.segment }
func (m *Manager) Dispatched() uint64 { return m.dispatched }

// Update recomputes the visible set when the player enters a new base chunk
// and requests every visible key that is neither pending nor ready. It
// returns the keys dispatched by this call.
func (m *Manager) Update(px, pz float64) []Key {
	bx := mathx.FloorToInt(px, float64(m.cfg.ChunkWorldSize))
	bz := mathx.FloorToInt(pz, float64(m.cfg.ChunkWorldSize))
	if !m.haveBase || bx != m.baseX || bz != m.baseZ {
		m.haveBase = true
		m.baseX, m.baseZ = bx, bz
		m.visible = m.visibleFrom(bx, bz, px, pz)
	}

	var sent []Key
	for _, k := range m.visible {
		if e := m.entries[k]; e != nil && (e.state == StatePending || e.state == StateReady) {
			continue
		}
		m.entries[k] = &entry{state: StatePending}
		m.dispatched++
		sent = append(sent, k)
		if m.dispatcher != nil {
			m.dispatcher.Dispatch(Request{
				Key:       k.String(),
				Segment:   m.segment,
				CX:        k.CX,
				CZ:        k.CZ,
				WorldSize: m.cfg.ChunkWorldSize,
				Res:       k.Res,
			})
		}
	}
	return sent
}

func (m *Manager) visibleFrom(bx, bz int, px, pz float64) []Key {
	r := m.cfg.Radius
	keys := make([]Key, 0, (2*r+1)*(2*r+1))
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			cx, cz := bx+dx, bz+dz
			keys = append(keys, Key{CX: cx, CZ: cz, Res: m.cfg.resFor(cx, cz, px, pz)})
		}
	}
	return keys
}

// Deliver stores a well-formed response for a pending key and reports
// whether it was accepted. Responses for keys that are no longer visible are
// still kept.
func (m *Manager) Deliver(resp Response) bool {
	k, ok := ParseKey(resp.Key)
	if !ok || !resp.wellFormed() {
		return false
	}
	e := m.entries[k]
	if e == nil || e.state != StatePending {
		return false
	}
	e.state = StateReady
	e.hm = heightmap.Heightmap{Width: resp.Width, Height: resp.Height, Data: resp.Data}
	return true
}

func (m *Manager) State(k Key) State {
	if e := m.entries[k]; e != nil {
		return e.state
	}
	return StateUnrequested
}

func (m *Manager) Heightmap(k Key) (heightmap.Heightmap, bool) {
	e := m.entries[k]
	if e == nil || e.state != StateReady {
		return heightmap.Heightmap{}, false
	}
	return e.hm, true
}

// Visible returns a copy of the current visible key set in dz-major order.
func (m *Manager) Visible() []Key {
	return append([]Key(nil), m.visible...)
}

// Pending lists keys still waiting for a response.
func (m *Manager) Pending() []Key {
	var out []Key
	for k, e := range m.entries {
		if e.state == StatePending {
			out = append(out, k)
		}
	}
	return out
}

func (m *Manager) ReadyCount() int {
	n := 0
	for _, e := range m.entries {
		if e.state == StateReady {
			n++
		}
	}
	return n
}
