package main

import (
	"encoding/json"
	"io"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"piverse.ai/internal/sim/behavior"
	"piverse.ai/internal/sim/gen"
	"piverse.ai/internal/sim/rng"
	"piverse.ai/internal/sim/tuning"
)

type genConfig struct {
	terrainSize int
	timeOfDay   float64
	season      int
}

// genOutput is everything a segment deterministically produces.
type genOutput struct {
	Segment      string              `json:"segment"`
	Creatures    []gen.Creature      `json:"creatures"`
	Weather      gen.Weather         `json:"weather"`
	Shelters     []gen.Shelter       `json:"shelters"`
	FoodSources  []gen.FoodSource    `json:"food_sources"`
	Collectibles []gen.Collectible   `json:"collectibles"`
	Effects      gen.WeatherEffects  `json:"weather_effects"`
	Terrain      []gen.TerrainPoint  `json:"terrain,omitempty"`
	Behaviors    []behavior.Behavior `json:"behaviors"`
}

func newGenCmd(g *globalFlags) *cobra.Command {
	cfg := &genConfig{}
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Print the entities a segment generates, as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, seg, err := g.loadTuning()
			if err != nil {
				return err
			}
			return runGen(cmd.OutOrStdout(), t, seg, cfg)
		},
	}
	cmd.Flags().IntVar(&cfg.terrainSize, "terrain-size", 0, "emit a size×size coarse terrain grid")
	cmd.Flags().Float64Var(&cfg.timeOfDay, "time", 0, "seconds since world start for weather effects")
	cmd.Flags().IntVar(&cfg.season, "season", 0, "season index 0-3 for weather effects")
	return cmd
}

func runGen(w io.Writer, t tuning.Tuning, seg string, cfg *genConfig) error {
	src := rng.New(seg)
	out := genOutput{Segment: seg}
	out.Creatures = gen.Creatures(src, t.Population.Creatures)
	out.Weather = gen.GenerateWeather(src)
	out.Shelters = gen.Shelters(seg, t.Population.Shelters)
	out.FoodSources = gen.FoodSources(seg, t.Population.FoodSources)
	out.Collectibles = gen.Collectibles(seg, t.Population.Collectibles)
	out.Effects = gen.CalculateWeatherEffects(seg, cfg.timeOfDay, cfg.season)
	if cfg.terrainSize > 0 {
		out.Terrain = gen.Terrain(rng.New(rng.Derive(seg, "terrain")), cfg.terrainSize).Flatten()
	}

	sim := behavior.New(seg, behavior.WithPopulation(t.Population.Behaviors))
	out.Behaviors = sim.Behaviors()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return oops.In("cli").Wrapf(err, "encode")
	}
	return nil
}
