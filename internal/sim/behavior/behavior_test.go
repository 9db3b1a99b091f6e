package behavior

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%04d", n)
	}
}

func newTestSim(t *testing.T, clock *fakeClock, behaviors ...Behavior) *Simulator {
	t.Helper()
	s := New("3141592653", WithClock(clock.Now), WithIDSource(counterIDs()), WithPopulation(0))
	require.NoError(t, s.Restore(State{Segment: "3141592653", Behaviors: behaviors}))
	return s
}

func TestInitialPopulationIsDeterministic(t *testing.T) {
	a := New("3141592653").Behaviors()
	b := New("3141592653").Behaviors()
	require.Len(t, a, DefaultPopulation)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, New("2718281828").Behaviors())

	for i, beh := range a {
		assert.Equal(t, fmt.Sprintf("creature-%d", i), beh.ID)
		assert.GreaterOrEqual(t, beh.Energy, 50.0)
		assert.Less(t, beh.Energy, 100.0)
		assert.Less(t, beh.SocialLevel, 1.0)
		assert.Less(t, beh.Aggression, 100.0)
	}
}

func TestClassifyPriority(t *testing.T) {
	cases := []struct {
		name  string
		self  Behavior
		other Behavior
		dist  float64
		want  InteractionType
	}{
		{"carnivore hunts prey", Behavior{Type: Carnivore, Aggression: 80, Energy: 50}, Behavior{Type: Herbivore}, 8, Hunting},
		{"carnivores only interact", Behavior{Type: Carnivore, Aggression: 80, Energy: 50}, Behavior{Type: Carnivore}, 8, Interaction},
		{"aggressive herbivore interacts", Behavior{Type: Herbivore, Aggression: 80, Energy: 50}, Behavior{Type: Herbivore, Aggression: 99}, 8, Interaction},
		{"tired aggressor flees stronger", Behavior{Aggression: 80, Energy: 20}, Behavior{Aggression: 90}, 8, Fleeing},
		{"timid flees before exploring", Behavior{Personality: Curious, Aggression: 20, Energy: 50}, Behavior{}, 1, Fleeing},
		{"curious explores up close", Behavior{Personality: Curious, Aggression: 40, Energy: 10}, Behavior{Aggression: 10}, 4, Exploring},
		{"mild opponent does not scare", Behavior{Personality: Curious, Aggression: 40, Energy: 10}, Behavior{Aggression: 45}, 4, Exploring},
		{"low energy rests", Behavior{Personality: Curious, Aggression: 40, Energy: 10}, Behavior{Aggression: 10}, 6, Resting},
		{"default interaction", Behavior{Personality: Passive, Aggression: 40, Energy: 50}, Behavior{Aggression: 10}, 2, Interaction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(&tc.self, &tc.other, tc.dist))
		})
	}
}

func TestResolveThresholds(t *testing.T) {
	strong := &Behavior{Energy: 100, Aggression: 100}
	weak := &Behavior{}
	assert.Equal(t, Success, Resolve(strong, weak, Hunting))
	assert.Equal(t, Failure, Resolve(weak, strong, Hunting))
	assert.Equal(t, Success, Resolve(weak, strong, Fleeing))
	assert.Equal(t, Failure, Resolve(strong, weak, Fleeing))

	// advantage exactly 0.3 is not a success.
	a := &Behavior{Energy: 60}
	assert.InDelta(t, 0.3, Advantage(a, weak), 1e-12)
	assert.Equal(t, Partial, Resolve(a, weak, Hunting))

	b := &Behavior{Energy: 20}
	assert.Equal(t, Success, Resolve(b, weak, Interaction))
	assert.Equal(t, Partial, Resolve(strong, weak, Interaction))
	assert.Equal(t, Success, Resolve(weak, strong, Exploring))
	assert.Equal(t, Success, Resolve(weak, strong, Resting))
}

func TestHuntingScenarioSucceeds(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSim(t, clock,
		Behavior{ID: "wolf", Type: Carnivore, Personality: Aggressive, Energy: 100, Aggression: 100, Intelligence: 1},
		Behavior{ID: "deer", Type: Herbivore, Personality: Passive},
	)
	s.Update([]Position{{ID: "wolf", X: 0, Z: 0, Size: 2}, {ID: "deer", X: 3, Z: 4, Size: 1}})

	evs := s.RecentEvents("wolf", 10)
	require.Len(t, evs, 1)
	assert.Equal(t, Hunting, evs[0].Type)
	assert.Equal(t, Success, evs[0].Outcome)
	assert.Equal(t, "deer", evs[0].TargetID)
	assert.InDelta(t, 5.0, evs[0].Data.Distance, 1e-12)
	assert.Equal(t, 2.0, evs[0].Data.SelfSize)
	assert.Equal(t, "event-0001", evs[0].ID)

	wolf, ok := s.Behavior("wolf")
	require.True(t, ok)
	assert.Equal(t, 100.0, wolf.Energy)
	assert.Equal(t, 100.0, wolf.Aggression)

	deer := s.RecentEvents("deer", 10)
	require.Len(t, deer, 1)
	assert.Equal(t, Fleeing, deer[0].Type)
	assert.Equal(t, Success, deer[0].Outcome)
}

func TestPatternGoneAfterTenMinutes(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSim(t, clock, Behavior{ID: "guard", Personality: Territorial, Aggression: 80, Energy: 60})

	s.Update([]Position{{ID: "guard"}})
	pats := s.ActivePatterns()
	require.Len(t, pats, 1)
	assert.Equal(t, TerritorialPattern, pats[0].Type)
	assert.Equal(t, []string{"guard"}, pats[0].Participants)
	assert.InDelta(t, 0.3, pats[0].Strength, 1e-12)

	clock.Advance(PatternTTL - time.Second)
	s.Update(nil)
	assert.Len(t, s.ActivePatterns(), 1)

	clock.Advance(time.Second)
	assert.Empty(t, s.ActivePatterns(), "expired before the next prune")
	assert.Zero(t, s.Statistics().ActivePatterns)

	s.Update(nil)
	assert.Empty(t, s.ActivePatterns())
	assert.Zero(t, s.Statistics().ActivePatterns)
}

func TestPatternUpsertMergesParticipants(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSim(t, clock, Behavior{ID: "bird", Type: Herbivore, Personality: Passive, SocialLevel: 0.9, Energy: 60, Aggression: 40})
	flock := []Position{{ID: "bird"}, {ID: "a", X: 1}, {ID: "b", X: 2}, {ID: "c", X: 3}}

	s.Update(flock)
	clock.Advance(time.Second)
	s.Update(flock)
	pats := s.ActivePatterns()
	require.Len(t, pats, 1)
	assert.Equal(t, Flocking, pats[0].Type)
	assert.Equal(t, []string{"bird", "a", "b", "c"}, pats[0].Participants)
	assert.InDelta(t, 0.4, pats[0].Strength, 1e-12)
	assert.Equal(t, time.Second, pats[0].Duration)
	assert.InDelta(t, 1.5, pats[0].Data.CenterX, 1e-12)

	clock.Advance(time.Second)
	s.Update(append(flock, Position{ID: "d", Z: 1}))
	pats = s.ActivePatterns()
	require.Len(t, pats, 1)
	assert.Equal(t, []string{"bird", "a", "b", "c", "d"}, pats[0].Participants)

	for i := 0; i < 20; i++ {
		s.Update(flock)
	}
	assert.Equal(t, 1.0, s.ActivePatterns()[0].Strength)
}

func TestPatternDecayOption(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := New("3141592653", WithClock(clock.Now), WithPopulation(0), WithPatternDecay(0.15))
	require.NoError(t, s.Restore(State{Segment: "3141592653", Behaviors: []Behavior{
		{ID: "guard", Personality: Territorial, Aggression: 80, Energy: 60},
	}}))
	s.Update([]Position{{ID: "guard"}})
	require.Len(t, s.ActivePatterns(), 1)
	// 0.3 - 0.15 = 0.15 is kept but no longer visible; another decay prunes it.
	s.Update(nil)
	assert.Empty(t, s.ActivePatterns())
	s.Update(nil)
	assert.Empty(t, s.Snapshot().Patterns)
}

func TestEventsPrunedAfterFiveMinutes(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSim(t, clock,
		Behavior{ID: "a", Aggression: 10, Energy: 60},
		Behavior{ID: "b", Aggression: 10, Energy: 60},
	)
	pair := []Position{{ID: "a"}, {ID: "b", X: 1}}
	s.Update(pair)
	require.Len(t, s.RecentEvents("", 0), 2)
	assert.Equal(t, 2, s.Statistics().RecentInteractions)

	clock.Advance(2 * time.Minute)
	assert.Zero(t, s.Statistics().RecentInteractions)
	s.Update(pair)
	evs := s.RecentEvents("", 0)
	require.Len(t, evs, 4)
	assert.True(t, evs[0].Timestamp.After(evs[3].Timestamp))
	assert.Len(t, s.RecentEvents("a", 1), 1)

	clock.Advance(EventTTL - time.Minute)
	s.Update(nil)
	assert.Len(t, s.RecentEvents("", 0), 2)
}

func TestQueriesDoNotMutate(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSim(t, clock,
		Behavior{ID: "bird", Personality: Passive, SocialLevel: 0.9, Energy: 60, Aggression: 40},
		Behavior{ID: "a", Aggression: 10, Energy: 60},
	)
	s.Update([]Position{{ID: "bird"}, {ID: "a", X: 1}, {ID: "x", X: 2}, {ID: "y", X: 3}})
	before := s.Snapshot()

	pats := s.ActivePatterns()
	require.NotEmpty(t, pats)
	pats[0].Participants[0] = "tampered"
	evs := s.RecentEvents("", 10)
	require.NotEmpty(t, evs)
	evs[0].CreatureID = "tampered"
	beh, _ := s.Behavior("bird")
	beh.Energy = -1
	_ = s.Statistics()

	assert.Equal(t, before, s.Snapshot())
}

func TestStatistics(t *testing.T) {
	empty := New("3141592653", WithPopulation(0))
	assert.Equal(t, Stats{}, empty.Statistics())

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSim(t, clock,
		Behavior{ID: "a", Intelligence: 0.2, SocialLevel: 0.4},
		Behavior{ID: "b", Intelligence: 0.6, SocialLevel: 0.8},
	)
	st := s.Statistics()
	assert.Equal(t, 2, st.TotalCreatures)
	assert.InDelta(t, 0.4, st.AverageIntelligence, 1e-12)
	assert.InDelta(t, 0.6, st.AverageSocialLevel, 1e-12)

	_, ok := s.Behavior("missing")
	assert.False(t, ok)
}

func TestSnapshotRestoreContinuesIdentically(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	positions := make([]Position, DefaultPopulation)
	for i := range positions {
		positions[i] = Position{ID: fmt.Sprintf("creature-%d", i), X: float64(i % 5 * 3), Z: float64(i / 5 * 3), Size: 1}
	}

	a := New("3141592653", WithClock(clock.Now), WithIDSource(counterIDs()))
	for i := 0; i < 5; i++ {
		a.Update(positions)
	}
	st := a.Snapshot()

	raw, err := json.Marshal(st)
	require.NoError(t, err)
	var decoded State
	require.NoError(t, json.Unmarshal(raw, &decoded))

	b := New("3141592653", WithClock(clock.Now), WithIDSource(counterIDs()))
	require.NoError(t, b.Restore(decoded))
	a.Update(positions)
	b.Update(positions)
	assert.Equal(t, a.Behaviors(), b.Behaviors())
}

func TestRestoreRejectsOtherSegment(t *testing.T) {
	s := New("3141592653", WithPopulation(0))
	err := s.Restore(State{Segment: "999"})
	require.Error(t, err)
	oe, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "E_SEGMENT_MISMATCH", oe.Code())
}

func TestEventSinkSeesEveryEvent(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	var got []Event
	s := New("3141592653", WithClock(clock.Now), WithPopulation(0), WithEventSink(EventSinkFunc(func(e Event) {
		got = append(got, e)
	})))
	require.NoError(t, s.Restore(State{Segment: "3141592653", Behaviors: []Behavior{
		{ID: "a", Aggression: 10}, {ID: "b", Aggression: 10},
	}}))
	s.Update([]Position{{ID: "a"}, {ID: "b", X: 9.99}, {ID: "far", X: 10}})
	require.Len(t, got, 2)
	assert.Equal(t, s.RecentEvents("", 0)[1].ID, got[0].ID)
}

func TestEnumsMarshalAsNames(t *testing.T) {
	b, err := json.Marshal(Pattern{Type: HuntingPack, Participants: []string{}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"hunting_pack"`)

	var e Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"fleeing","outcome":"partial"}`), &e))
	assert.Equal(t, Fleeing, e.Type)
	assert.Equal(t, Partial, e.Outcome)
	assert.Error(t, json.Unmarshal([]byte(`{"type":"dancing"}`), &e))
}
