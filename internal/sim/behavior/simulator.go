// Package behavior simulates creature drives, pairwise interactions, and
// emergent group patterns on top of a seeded random stream.
//
// A Simulator is owned by a single goroutine. Queries return copies and never
// change state.
package behavior

import (
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"piverse.ai/internal/sim/gen"
	"piverse.ai/internal/sim/mathx"
	"piverse.ai/internal/sim/rng"
)

const (
	DefaultPopulation = 20

	InteractionRadius = 10.0
	exploreDistance   = 5.0

	EventTTL      = 5 * time.Minute
	PatternTTL    = 10 * time.Minute
	RecentWindow  = time.Minute
	VisibleFloor  = 0.2
	pruneFloor    = 0.1
	startStrength = 0.3
	strengthStep  = 0.1
	patternRadius = 10.0

	defaultEventLimit = 50
)

// EventSink observes every recorded event. It is called on the simulator's
// goroutine and must not block.
type EventSink interface {
	RecordEvent(Event)
}

type EventSinkFunc func(Event)

func (f EventSinkFunc) RecordEvent(e Event) { f(e) }

type Simulator struct {
	segment string
	rng     *rng.Stream

	order     []string
	behaviors map[string]*Behavior
	events    []Event
	patterns  []*Pattern

	now   func() time.Time
	newID func() string
	decay float64
	sink  EventSink
	pop   int
}

type Option func(*Simulator)

// WithClock replaces time.Now for event and pattern timestamps.
func WithClock(now func() time.Time) Option { return func(s *Simulator) { s.now = now } }

// WithIDSource replaces the ULID generator used for event and pattern IDs.
func WithIDSource(f func() string) Option { return func(s *Simulator) { s.newID = f } }

// WithPatternDecay subtracts d from every pattern's strength at the start of
// each update. The default of 0 leaves strengths to grow until they age out.
func WithPatternDecay(d float64) Option { return func(s *Simulator) { s.decay = d } }

func WithEventSink(sink EventSink) Option { return func(s *Simulator) { s.sink = sink } }

func WithPopulation(n int) Option { return func(s *Simulator) { s.pop = n } }

// New seeds its stream with "<segment>-ai" and creates the initial
// population creature-0..creature-(n-1).
func New(segment string, opts ...Option) *Simulator {
	s := &Simulator{
		segment:   segment,
		rng:       rng.New(rng.Derive(segment, "ai")),
		behaviors: map[string]*Behavior{},
		now:       time.Now,
		newID:     func() string { return ulid.Make().String() },
		pop:       DefaultPopulation,
	}
	for _, o := range opts {
		o(s)
	}
	s.initialize()
	return s
}

func (s *Simulator) Segment() string { return s.segment }

func (s *Simulator) initialize() {
	for i := 0; i < s.pop; i++ {
		b := &Behavior{ID: gen.CreatureID(i)}
		b.Type = AllCreatureTypes[rng.Index(s.rng, len(AllCreatureTypes))]
		b.Personality = AllPersonalities[rng.Index(s.rng, len(AllPersonalities))]
		b.SocialLevel = s.rng.Float64()
		b.Intelligence = s.rng.Float64()
		b.Memory = s.rng.Float64()
		b.Energy = 50 + s.rng.Float64()*50
		b.Hunger = s.rng.Float64() * 100
		b.Fear = s.rng.Float64() * 100
		b.Aggression = s.rng.Float64() * 100
		s.add(b)
	}
}

func (s *Simulator) add(b *Behavior) {
	if _, ok := s.behaviors[b.ID]; !ok {
		s.order = append(s.order, b.ID)
	}
	s.behaviors[b.ID] = b
}

// Update advances one tick given the current position of every creature.
// Creatures without a tracked behavior still count as neighbours but never
// act or interact.
func (s *Simulator) Update(creatures []Position) {
	now := s.now()
	if s.decay > 0 {
		for _, p := range s.patterns {
			p.Strength = math.Max(0, p.Strength-s.decay)
		}
	}

	for _, c := range creatures {
		b := s.behaviors[c.ID]
		if b == nil {
			continue
		}
		b.Energy = math.Max(0, b.Energy-s.rng.Float64()*2)
		b.Hunger = math.Min(100, b.Hunger+s.rng.Float64()*3)

		nearby := neighbours(c, creatures)
		for _, other := range nearby {
			s.interact(b, c, other, now)
		}
		s.detectPatterns(b, c, nearby, now)
	}
	s.prune(now)
}

func neighbours(self Position, all []Position) []Position {
	var out []Position
	for _, o := range all {
		if o.ID == self.ID {
			continue
		}
		if mathx.Dist(self.X, self.Z, o.X, o.Z) < InteractionRadius {
			out = append(out, o)
		}
	}
	return out
}

func (s *Simulator) interact(b *Behavior, self, other Position, now time.Time) {
	ob := s.behaviors[other.ID]
	if ob == nil {
		return
	}
	dist := mathx.Dist(self.X, self.Z, other.X, other.Z)
	kind := Classify(b, ob, dist)
	ev := Event{
		ID:         "event-" + s.newID(),
		CreatureID: b.ID,
		Type:       kind,
		TargetID:   other.ID,
		Location:   Location{X: self.X, Z: self.Z},
		Timestamp:  now,
		Outcome:    Resolve(b, ob, kind),
		Data: EventData{
			Distance:    dist,
			SelfSize:    self.Size,
			OtherSize:   other.Size,
			SelfEnergy:  b.Energy,
			OtherEnergy: ob.Energy,
		},
	}
	s.events = append(s.events, ev)
	learn(b, ev.Outcome)
	if s.sink != nil {
		s.sink.RecordEvent(ev)
	}
}

// Classify picks the interaction type. Rules are checked in order and the
// first match wins.
func Classify(self, other *Behavior, dist float64) InteractionType {
	if self.Aggression > 70 && self.Energy > 30 {
		if self.Type == Carnivore && other.Type != Carnivore {
			return Hunting
		}
		return Interaction
	}
	if self.Aggression < 30 || (other.Aggression > 50 && self.Aggression < other.Aggression) {
		return Fleeing
	}
	if self.Personality == Curious && dist < exploreDistance {
		return Exploring
	}
	if self.Energy < 20 {
		return Resting
	}
	return Interaction
}

// Advantage is (energy+aggression)/200 of self minus that of other.
func Advantage(self, other *Behavior) float64 {
	return (self.Energy+self.Aggression)/200 - (other.Energy+other.Aggression)/200
}

func Resolve(self, other *Behavior, kind InteractionType) Outcome {
	adv := Advantage(self, other)
	switch kind {
	case Hunting:
		switch {
		case adv > 0.3:
			return Success
		case adv > -0.3:
			return Partial
		default:
			return Failure
		}
	case Fleeing:
		if adv < -0.2 {
			return Success
		}
		return Failure
	case Interaction:
		if math.Abs(adv) < 0.2 {
			return Success
		}
		return Partial
	default:
		return Success
	}
}

func learn(b *Behavior, o Outcome) {
	rate := b.Intelligence * 0.1
	switch o {
	case Success:
		b.Energy = math.Min(100, b.Energy+10)
		b.Fear = math.Max(0, b.Fear-5)
	case Failure:
		b.Energy = math.Max(0, b.Energy-15)
		b.Fear = math.Min(100, b.Fear+10)
	case Partial:
		b.Energy = math.Max(0, b.Energy-5)
	}
	switch {
	case b.Personality == Aggressive && o == Success:
		b.Aggression = math.Min(100, b.Aggression+rate*5)
	case b.Personality == Passive && o == Failure:
		b.Aggression = math.Max(0, b.Aggression-rate*3)
	}
}

func (s *Simulator) detectPatterns(b *Behavior, self Position, nearby []Position, now time.Time) {
	if b.SocialLevel > 0.7 && len(nearby) >= 3 {
		s.upsertPattern(Flocking, self, nearby, now)
	}
	if b.Personality == Territorial && b.Aggression > 50 {
		s.upsertPattern(TerritorialPattern, self, nil, now)
	}
	if b.Type == Carnivore && b.SocialLevel > 0.5 && len(nearby) >= 2 {
		var pack []Position
		for _, n := range nearby {
			if ob := s.behaviors[n.ID]; ob != nil && ob.Type == Carnivore {
				pack = append(pack, n)
			}
		}
		if len(pack) >= 2 {
			s.upsertPattern(HuntingPack, self, pack, now)
		}
	}
}

// upsertPattern reinforces the pattern of this type that already contains
// self, or starts a new one holding self and members.
func (s *Simulator) upsertPattern(t PatternType, self Position, members []Position, now time.Time) {
	for _, p := range s.patterns {
		if p.Type != t || !p.has(self.ID) {
			continue
		}
		for _, m := range members {
			if !p.has(m.ID) {
				p.Participants = append(p.Participants, m.ID)
			}
		}
		p.Strength = math.Min(1, p.Strength+strengthStep)
		p.Duration = now.Sub(p.StartTime)
		return
	}

	p := &Pattern{
		ID:           "pattern-" + s.newID(),
		Type:         t,
		Participants: []string{self.ID},
		Strength:     startStrength,
		StartTime:    now,
		Data:         PatternData{Radius: patternRadius},
	}
	cx, cz := self.X, self.Z
	for _, m := range members {
		if !p.has(m.ID) {
			p.Participants = append(p.Participants, m.ID)
		}
		cx += m.X
		cz += m.Z
	}
	n := float64(len(members) + 1)
	p.Data.CenterX, p.Data.CenterZ = cx/n, cz/n
	s.patterns = append(s.patterns, p)
}

func (s *Simulator) prune(now time.Time) {
	events := s.events[:0]
	for _, e := range s.events {
		if now.Sub(e.Timestamp) < EventTTL {
			events = append(events, e)
		}
	}
	clear(s.events[len(events):])
	s.events = events

	patterns := s.patterns[:0]
	for _, p := range s.patterns {
		if p.Strength > pruneFloor && now.Sub(p.StartTime) < PatternTTL {
			patterns = append(patterns, p)
		}
	}
	clear(s.patterns[len(patterns):])
	s.patterns = patterns
}
