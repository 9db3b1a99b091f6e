package world

import (
	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/terrain/chunks"
)

func (w *World) buildObs(p *Player, cl *clientState, tick uint64) protocol.ObsMsg {
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		PlayerID:        p.ID,
		Self: protocol.SelfObs{
			X:         p.X,
			Z:         p.Z,
			Health:    p.Health,
			Energy:    p.Energy,
			Hunger:    p.Hunger,
			InShelter: p.InShelter,
			ShelterID: p.ShelterID,
			Score:     p.Score,

			GameMode:         p.Mode,
			Discoveries:      p.Discoveries,
			DistanceTraveled: p.DistanceTraveled,
			TimeSurvived:     p.TimeSurvived,
		},
		Creatures: make([]protocol.CreatureObs, 0, len(w.creatures)),
		Weather: protocol.WeatherObs{
			RainLevel:     w.sky.RainLevel,
			CloudDensity:  w.sky.CloudDensity,
			WindSpeed:     w.effects.WindSpeed,
			Temperature:   w.effects.Temperature,
			Humidity:      w.effects.Humidity,
			Precipitation: w.effects.Precipitation,
			Visibility:    w.effects.Visibility,
		},
		Events: append([]protocol.Event{}, cl.Pending...),
	}
	for _, c := range w.creatures {
		obs.Creatures = append(obs.Creatures, protocol.CreatureObs{ID: c.ID, X: c.X, Z: c.Z, Size: c.Size, Color: c.Color})
	}

	patterns := w.sim.ActivePatterns()
	obs.Patterns = make([]protocol.PatternObs, 0, len(patterns))
	for _, pt := range patterns {
		obs.Patterns = append(obs.Patterns, protocol.PatternObs{
			ID:           pt.ID,
			Type:         pt.Type.String(),
			Participants: pt.Participants,
			Strength:     pt.Strength,
		})
	}

	st := w.sim.Statistics()
	obs.Stats = protocol.StatsObs{
		TotalCreatures:      st.TotalCreatures,
		AverageIntelligence: st.AverageIntelligence,
		AverageSocialLevel:  st.AverageSocialLevel,
		ActivePatterns:      st.ActivePatterns,
		RecentInteractions:  st.RecentInteractions,
	}

	for _, k := range cl.Fresh {
		if msg, ok := heightmapMsg(cl.Chunks, k); ok {
			obs.Chunks = append(obs.Chunks, msg)
		}
	}
	return obs
}

func heightmapMsg(m *chunks.Manager, k chunks.Key) (protocol.HeightmapMsg, bool) {
	hm, ok := m.Heightmap(k)
	if !ok {
		return protocol.HeightmapMsg{}, false
	}
	return protocol.HeightmapMsg{
		Type:   protocol.TypeHeightmap,
		Key:    k.String(),
		Width:  hm.Width,
		Height: hm.Height,
		Data:   hm.Data,
	}, true
}
