package behavior

import "github.com/samber/oops"

// State is everything needed to resume a simulator, including the position
// of its random stream.
type State struct {
	Segment   string     `json:"segment"`
	RNG       []byte     `json:"rng"`
	Behaviors []Behavior `json:"behaviors"`
	Events    []Event    `json:"events"`
	Patterns  []Pattern  `json:"patterns"`
}

func (s *Simulator) Snapshot() State {
	st := State{
		Segment:   s.segment,
		Behaviors: s.Behaviors(),
		Events:    append([]Event(nil), s.events...),
		Patterns:  make([]Pattern, 0, len(s.patterns)),
	}
	// PCG state marshaling cannot fail.
	st.RNG, _ = s.rng.MarshalBinary()
	for _, p := range s.patterns {
		st.Patterns = append(st.Patterns, p.clone())
	}
	return st
}

// Restore replaces the simulator's state with st. The segment must match.
func (s *Simulator) Restore(st State) error {
	errb := oops.In("behavior").With("segment", s.segment)
	if st.Segment != s.segment {
		return errb.Code("E_SEGMENT_MISMATCH").Errorf("snapshot segment %q does not match", st.Segment)
	}
	if len(st.RNG) > 0 {
		if err := s.rng.UnmarshalBinary(st.RNG); err != nil {
			return errb.Code("E_RNG_STATE").Wrapf(err, "restore rng")
		}
	}
	s.order = s.order[:0]
	s.behaviors = make(map[string]*Behavior, len(st.Behaviors))
	for i := range st.Behaviors {
		b := st.Behaviors[i]
		s.add(&b)
	}
	s.events = append(s.events[:0], st.Events...)
	s.patterns = s.patterns[:0]
	for _, p := range st.Patterns {
		cp := p.clone()
		s.patterns = append(s.patterns, &cp)
	}
	return nil
}
