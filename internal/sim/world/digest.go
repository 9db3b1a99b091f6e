package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"piverse.ai/internal/sim/behavior"
)

type digestPlayer struct {
	ID          string  `json:"id"`
	Mode        string  `json:"mode"`
	X           float64 `json:"x"`
	Z           float64 `json:"z"`
	Score       int     `json:"score"`
	Health      float64 `json:"health"`
	Energy      float64 `json:"energy"`
	Hunger      float64 `json:"hunger"`
	Discoveries int     `json:"discoveries"`
	Distance    float64 `json:"distance"`
	Survived    float64 `json:"survived"`
}

type digestCreature struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Z  float64 `json:"z"`
}

// stateDigest hashes the reproducible part of the world. Event and pattern
// IDs are excluded since they are not derived from the segment.
func (w *World) stateDigest(tick uint64) string {
	v := struct {
		Tick      uint64              `json:"tick"`
		Segment   string              `json:"segment"`
		Creatures []digestCreature    `json:"creatures"`
		Players   []digestPlayer      `json:"players"`
		Collected []string            `json:"collected"`
		Behaviors []behavior.Behavior `json:"behaviors"`
	}{
		Tick:      tick,
		Segment:   w.cfg.Segment,
		Behaviors: w.sim.Behaviors(),
	}
	for _, c := range w.creatures {
		v.Creatures = append(v.Creatures, digestCreature{ID: c.ID, X: c.X, Z: c.Z})
	}
	for _, id := range w.order {
		p := w.players[id]
		v.Players = append(v.Players, digestPlayer{
			ID: p.ID, Mode: p.Mode, X: p.X, Z: p.Z, Score: p.Score,
			Health: p.Health, Energy: p.Energy, Hunger: p.Hunger,
			Discoveries: p.Discoveries, Distance: p.DistanceTraveled, Survived: p.TimeSurvived,
		})
	}
	for _, c := range w.collectibles {
		if c.Collected {
			v.Collected = append(v.Collected, c.ID)
		}
	}
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
