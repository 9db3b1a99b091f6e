package behavior

import "time"

// Behavior returns a copy of one creature's state.
func (s *Simulator) Behavior(id string) (Behavior, bool) {
	b := s.behaviors[id]
	if b == nil {
		return Behavior{}, false
	}
	return *b, true
}

// Behaviors lists every tracked creature in creation order.
func (s *Simulator) Behaviors() []Behavior {
	out := make([]Behavior, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.behaviors[id])
	}
	return out
}

// RecentEvents returns up to limit events, newest first, optionally limited
// to one acting creature. A non-positive limit means 50. Events are stored in
// recording order, so a reverse scan yields newest first.
func (s *Simulator) RecentEvents(creatureID string, limit int) []Event {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	var out []Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.events[i]
		if creatureID != "" && e.CreatureID != creatureID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ActivePatterns returns unexpired patterns whose strength is above the
// visibility floor.
func (s *Simulator) ActivePatterns() []Pattern {
	var out []Pattern
	now := s.now()
	for _, p := range s.patterns {
		if p.visible(now) {
			out = append(out, p.clone())
		}
	}
	return out
}

// Statistics summarizes the population. Averages are 0 when nothing is
// tracked.
func (s *Simulator) Statistics() Stats {
	st := Stats{TotalCreatures: len(s.order)}
	if st.TotalCreatures > 0 {
		var intel, social float64
		for _, id := range s.order {
			b := s.behaviors[id]
			intel += b.Intelligence
			social += b.SocialLevel
		}
		st.AverageIntelligence = intel / float64(st.TotalCreatures)
		st.AverageSocialLevel = social / float64(st.TotalCreatures)
	}
	now := s.now()
	for _, p := range s.patterns {
		if p.visible(now) {
			st.ActivePatterns++
		}
	}
	for _, e := range s.events {
		if now.Sub(e.Timestamp) < RecentWindow {
			st.RecentInteractions++
		}
	}
	return st
}

func (p *Pattern) visible(now time.Time) bool {
	return p.Strength > VisibleFloor && now.Sub(p.StartTime) < PatternTTL
}
