package world

import (
	"math"
	"time"

	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/behavior"
	"piverse.ai/internal/sim/gen"
	"piverse.ai/internal/sim/mathx"
	"piverse.ai/internal/sim/terrain/chunks"
)

const (
	wanderStep = 0.02
	fleePush   = 0.05
)

func newManager(w *World) *chunks.Manager {
	return chunks.NewManager(w.cfg.Segment, w.chunkCfg, w.dispatcher)
}

// applyAction mutates p for one client command. A successful harvest is
// returned for the tick log.
func (w *World) applyAction(p *Player, act Action, now time.Time) (RecordedHarvest, bool) {
	switch act.Type {
	case protocol.TypeMove:
		p.X += act.DX
		p.Z += act.DZ
		p.DistanceTraveled += math.Hypot(act.DX, act.DZ)
	case protocol.TypeMoveTo:
		p.DistanceTraveled += mathx.Dist(p.X, p.Z, act.X, act.Z)
		p.X, p.Z = act.X, act.Z
	case protocol.TypeHarvest:
		return w.harvest(p, act.FoodID, now)
	default:
		w.actionError(p, protocol.ErrProtoBadRequest, "unknown action "+act.Type)
	}
	return RecordedHarvest{}, false
}

func (w *World) harvest(p *Player, foodID string, now time.Time) (RecordedHarvest, bool) {
	f := w.foodByID(foodID)
	if f == nil {
		w.actionError(p, protocol.ErrNotFound, "no such food source")
		return RecordedHarvest{}, false
	}
	if mathx.Dist(p.X, p.Z, f.X, f.Z) >= w.tune.Radii.Harvest {
		w.actionError(p, protocol.ErrOutOfRange, "food source too far")
		return RecordedHarvest{}, false
	}
	n := f.Harvest(now)
	if n <= 0 {
		w.actionError(p, protocol.ErrUnavailable, "food source has not respawned")
		return RecordedHarvest{}, false
	}
	p.Hunger = math.Min(maxPlayerStat, p.Hunger+n)
	p.Energy = math.Min(maxPlayerStat, p.Energy+n*0.5)
	w.addEvent(p.ID, protocol.Event{"type": "HARVEST", "food_id": f.ID, "nutrition": n})
	return RecordedHarvest{PlayerID: p.ID, FoodID: f.ID, Nutrition: n}, true
}

func (w *World) foodByID(id string) *gen.FoodSource {
	for i := range w.food {
		if w.food[i].ID == id {
			return &w.food[i]
		}
	}
	return nil
}

func (w *World) actionError(p *Player, code, msg string) {
	w.addEvent(p.ID, protocol.Event{"type": "ACTION_ERROR", "code": code, "message": msg})
}

func (w *World) addEvent(playerID string, ev protocol.Event) {
	if cl := w.clients[playerID]; cl != nil {
		cl.Pending = append(cl.Pending, ev)
	}
}

// systemCreatures applies ambient wander, then pushes creatures away from
// every player closer than the flee radius.
func (w *World) systemCreatures() {
	for i := range w.creatures {
		c := &w.creatures[i]
		c.X += (w.jitter() - 0.5) * wanderStep * c.Speed
		c.Z += (w.jitter() - 0.5) * wanderStep * c.Speed
		for _, id := range w.order {
			p := w.players[id]
			dx := p.X - c.X
			dz := p.Z - c.Z
			if math.Hypot(dx, dz) < w.tune.Radii.Flee {
				c.X -= dx * fleePush
				c.Z -= dz * fleePush
			}
		}
	}
}

func (w *World) creaturePositions() []behavior.Position {
	out := make([]behavior.Position, 0, len(w.creatures))
	for _, c := range w.creatures {
		out = append(out, behavior.Position{ID: c.ID, X: c.X, Z: c.Z, Size: c.Size})
	}
	return out
}

func (w *World) systemCollect() []RecordedPickup {
	var out []RecordedPickup
	for _, id := range w.order {
		p := w.players[id]
		for i := range w.collectibles {
			c := &w.collectibles[i]
			if c.Collected || mathx.Dist(p.X, p.Z, c.X, c.Z) >= w.tune.Radii.Collect {
				continue
			}
			c.Collected = true
			c.Discovered = true
			p.Score += c.Value
			p.Discoveries++
			w.addEvent(p.ID, protocol.Event{
				"type":           "PICKUP",
				"collectible_id": c.ID,
				"kind":           c.Kind.String(),
				"rarity":         c.Rarity.String(),
				"scale":          c.Rarity.Scale(),
				"value":          c.Value,
			})
			out = append(out, RecordedPickup{PlayerID: p.ID, CollectibleID: c.ID, Value: c.Value})
		}
	}
	return out
}

// systemShelter marks each survival player as sheltered by the nearest
// shelter within range.
func (w *World) systemShelter() {
	for _, id := range w.order {
		p := w.players[id]
		if !p.survival() {
			p.InShelter, p.ShelterID = false, ""
			continue
		}
		best := -1
		bestDist := w.tune.Radii.Shelter
		for i, s := range w.shelters {
			if d := mathx.Dist(p.X, p.Z, s.X, s.Z); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			p.InShelter, p.ShelterID = false, ""
			continue
		}
		p.InShelter, p.ShelterID = true, w.shelters[best].ID
	}
}

// systemWeather recomputes effects from elapsed world time: the hour picks
// the seed and every gen.SeasonSeconds advances the season.
func (w *World) systemWeather(tick uint64) {
	t := float64(tick) / float64(w.tune.TickRateHz)
	w.effects = gen.CalculateWeatherEffects(w.cfg.Segment, t, gen.SeasonAt(t))
}

// systemSurvivalClock advances time survived for living survival players.
func (w *World) systemSurvivalClock() {
	dt := 1 / float64(w.tune.TickRateHz)
	for _, id := range w.order {
		if p := w.players[id]; p.survival() && p.Health > 0 {
			p.TimeSurvived += dt
		}
	}
}

// systemSurvival drains survival players by the current weather. Exploration
// players are never drained.
func (w *World) systemSurvival() {
	for _, id := range w.order {
		p := w.players[id]
		if !p.survival() {
			continue
		}
		protection := 0.0
		if p.InShelter {
			for _, s := range w.shelters {
				if s.ID == p.ShelterID {
					protection = s.Protection
					break
				}
			}
		}
		im := gen.SurvivalImpact(w.effects, p.InShelter, protection)
		p.Health = mathx.Clamp(p.Health-im.HealthDrain, 0, maxPlayerStat)
		p.Energy = mathx.Clamp(p.Energy-im.EnergyDrain, 0, maxPlayerStat)
		p.Hunger = mathx.Clamp(p.Hunger-im.HungerDrain, 0, maxPlayerStat)
	}
}
