package behavior

import (
	"fmt"
	"time"
)

type CreatureType uint8

const (
	Herbivore CreatureType = iota
	Carnivore
	Omnivore
	Scavenger
)

var AllCreatureTypes = [...]CreatureType{Herbivore, Carnivore, Omnivore, Scavenger}

var creatureTypeNames = [...]string{"herbivore", "carnivore", "omnivore", "scavenger"}

type Personality uint8

const (
	Aggressive Personality = iota
	Passive
	Curious
	Territorial
)

var AllPersonalities = [...]Personality{Aggressive, Passive, Curious, Territorial}

var personalityNames = [...]string{"aggressive", "passive", "curious", "territorial"}

type InteractionType uint8

const (
	Interaction InteractionType = iota
	Hunting
	Fleeing
	Exploring
	Resting
)

var interactionNames = [...]string{"interaction", "hunting", "fleeing", "exploring", "resting"}

type Outcome uint8

const (
	Success Outcome = iota
	Failure
	Partial
)

var outcomeNames = [...]string{"success", "failure", "partial"}

// PatternType names a group behaviour. Migration and Competition are
// reserved; no trigger produces them yet.
type PatternType uint8

const (
	Flocking PatternType = iota
	TerritorialPattern
	HuntingPack
	Migration
	Competition
)

var patternNames = [...]string{"flocking", "territorial", "hunting_pack", "migration", "competition"}

func (t CreatureType) String() string    { return name(creatureTypeNames[:], int(t)) }
func (p Personality) String() string     { return name(personalityNames[:], int(p)) }
func (t InteractionType) String() string { return name(interactionNames[:], int(t)) }
func (o Outcome) String() string         { return name(outcomeNames[:], int(o)) }
func (t PatternType) String() string     { return name(patternNames[:], int(t)) }

func (t CreatureType) MarshalText() ([]byte, error)    { return []byte(t.String()), nil }
func (p Personality) MarshalText() ([]byte, error)     { return []byte(p.String()), nil }
func (t InteractionType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
func (o Outcome) MarshalText() ([]byte, error)         { return []byte(o.String()), nil }
func (t PatternType) MarshalText() ([]byte, error)     { return []byte(t.String()), nil }

func (t *CreatureType) UnmarshalText(b []byte) error {
	return parse(creatureTypeNames[:], "creature type", b, (*uint8)(t))
}

func (p *Personality) UnmarshalText(b []byte) error {
	return parse(personalityNames[:], "personality", b, (*uint8)(p))
}

func (t *InteractionType) UnmarshalText(b []byte) error {
	return parse(interactionNames[:], "interaction type", b, (*uint8)(t))
}

func (o *Outcome) UnmarshalText(b []byte) error {
	return parse(outcomeNames[:], "outcome", b, (*uint8)(o))
}

func (t *PatternType) UnmarshalText(b []byte) error {
	return parse(patternNames[:], "pattern type", b, (*uint8)(t))
}

func name(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func parse(names []string, what string, b []byte, dst *uint8) error {
	for i, n := range names {
		if n == string(b) {
			*dst = uint8(i)
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", what, string(b))
}

// Behavior is the mutable state of one tracked creature. Levels are in
// [0,1]; drives are in [0,100].
type Behavior struct {
	ID           string       `json:"id"`
	Type         CreatureType `json:"type"`
	Personality  Personality  `json:"personality"`
	SocialLevel  float64      `json:"social_level"`
	Intelligence float64      `json:"intelligence"`
	Memory       float64      `json:"memory"`
	Energy       float64      `json:"energy"`
	Hunger       float64      `json:"hunger"`
	Fear         float64      `json:"fear"`
	Aggression   float64      `json:"aggression"`
}

// Position is a creature's placement for one update.
type Position struct {
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
	Size float64 `json:"size"`
}

type Location struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

type EventData struct {
	Distance    float64 `json:"distance"`
	SelfSize    float64 `json:"self_size"`
	OtherSize   float64 `json:"other_size"`
	SelfEnergy  float64 `json:"self_energy"`
	OtherEnergy float64 `json:"other_energy"`
}

type Event struct {
	ID         string          `json:"id"`
	CreatureID string          `json:"creature_id"`
	Type       InteractionType `json:"type"`
	TargetID   string          `json:"target_id,omitempty"`
	Location   Location        `json:"location"`
	Timestamp  time.Time       `json:"timestamp"`
	Outcome    Outcome         `json:"outcome"`
	Data       EventData       `json:"data"`
}

type PatternData struct {
	CenterX float64 `json:"center_x"`
	CenterZ float64 `json:"center_z"`
	Radius  float64 `json:"radius"`
}

type Pattern struct {
	ID           string        `json:"id"`
	Type         PatternType   `json:"type"`
	Participants []string      `json:"participants"`
	Strength     float64       `json:"strength"`
	Duration     time.Duration `json:"duration"`
	StartTime    time.Time     `json:"start_time"`
	Data         PatternData   `json:"data"`
}

func (p *Pattern) has(id string) bool {
	for _, q := range p.Participants {
		if q == id {
			return true
		}
	}
	return false
}

func (p Pattern) clone() Pattern {
	p.Participants = append([]string(nil), p.Participants...)
	return p
}

type Stats struct {
	TotalCreatures      int     `json:"total_creatures"`
	AverageIntelligence float64 `json:"average_intelligence"`
	AverageSocialLevel  float64 `json:"average_social_level"`
	ActivePatterns      int     `json:"active_patterns"`
	RecentInteractions  int     `json:"recent_interactions"`
}
