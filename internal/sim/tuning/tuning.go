package tuning

import (
	"os"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"piverse.ai/internal/pi"
	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/terrain/heightmap"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`
	// GameMode is the default for sessions whose HELLO names none.
	GameMode        string `yaml:"game_mode"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	BehaviorEveryTicks int `yaml:"behavior_every_ticks"`
	WeatherEveryTicks  int `yaml:"weather_every_ticks"`
	SurvivalEveryTicks int `yaml:"survival_every_ticks"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Segment    SegmentSpec    `yaml:"segment"`
	Population PopulationSpec `yaml:"population"`
	Terrain    TerrainSpec    `yaml:"terrain"`
	Behavior   BehaviorSpec   `yaml:"behavior"`
	Radii      RadiiSpec      `yaml:"radii"`
}

// SegmentSpec selects the digits that seed the world. An explicit Digits
// string wins over Start/Length.
type SegmentSpec struct {
	Digits     string `yaml:"digits"`
	DigitsFile string `yaml:"digits_file"`
	Start      int    `yaml:"start"`
	Length     int    `yaml:"length"`
}

// Resolve returns the seeding segment. Digits are read from DigitsFile when
// set, otherwise from the embedded table.
func (s SegmentSpec) Resolve() (string, error) {
	if s.Digits != "" {
		return s.Digits, nil
	}
	d := pi.Default()
	if strings.TrimSpace(s.DigitsFile) != "" {
		var err error
		if d, err = pi.Load(s.DigitsFile); err != nil {
			return "", oops.In("tuning").Code("E_TUNING_READ").Wrapf(err, "segment.digits_file")
		}
	}
	return d.Segment(s.Start, s.Length), nil
}

type PopulationSpec struct {
	Creatures    int `yaml:"creatures"`
	Behaviors    int `yaml:"behaviors"`
	Shelters     int `yaml:"shelters"`
	FoodSources  int `yaml:"food_sources"`
	Collectibles int `yaml:"collectibles"`
}

type TerrainSpec struct {
	ChunkWorldSize int     `yaml:"chunk_world_size"`
	NearRes        int     `yaml:"near_res"`
	FarRes         int     `yaml:"far_res"`
	RadiusChunks   int     `yaml:"radius_chunks"`
	FarDistance    float64 `yaml:"far_distance"`
	Mode           string  `yaml:"mode"`
	Workers        int     `yaml:"workers"`
	CacheMaxCost   int64   `yaml:"cache_max_cost"`

	Simplex SimplexSpec `yaml:"simplex"`
}

type SimplexSpec struct {
	Octaves     int     `yaml:"octaves"`
	Frequency   float64 `yaml:"frequency"`
	Persistence float64 `yaml:"persistence"`
}

type BehaviorSpec struct {
	PatternDecay float64 `yaml:"pattern_decay"`
}

type RadiiSpec struct {
	Flee    float64 `yaml:"flee"`
	Collect float64 `yaml:"collect"`
	Harvest float64 `yaml:"harvest"`
	Shelter float64 `yaml:"shelter"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    protocol.Version,
		GameMode:           protocol.GameModeExploration,
		TickRateHz:         5,
		BehaviorEveryTicks: 10,
		WeatherEveryTicks:  150,
		SurvivalEveryTicks: 25,
		SnapshotEveryTicks: 3000,
		Segment:            SegmentSpec{Start: 0, Length: 10},
		Population: PopulationSpec{
			Creatures:    10,
			Behaviors:    20,
			Shelters:     15,
			FoodSources:  25,
			Collectibles: 20,
		},
		Terrain: TerrainSpec{
			ChunkWorldSize: 32,
			NearRes:        33,
			FarRes:         17,
			RadiusChunks:   2,
			Mode:           "sine",
			Workers:        4,
			CacheMaxCost:   4 << 20,
			Simplex:        SimplexSpec{Octaves: 4, Frequency: 0.35, Persistence: 0.5},
		},
		Radii: RadiiSpec{Flee: 3, Collect: 2, Harvest: 3, Shelter: 5},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	errb := oops.In("tuning").With("path", path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, errb.Code("E_TUNING_READ").Wrapf(err, "read tuning")
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, errb.Code("E_TUNING_PARSE").Wrapf(err, "tuning.yaml")
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, errb.Wrapf(err, "tuning.yaml")
	}
	return t, nil
}

// Normalize fills zero values with defaults.
func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	d := Defaults()
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setFloat := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	if strings.TrimSpace(t.ProtocolVersion) == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if strings.TrimSpace(t.GameMode) == "" {
		t.GameMode = d.GameMode
	}
	setInt(&t.TickRateHz, d.TickRateHz)
	setInt(&t.BehaviorEveryTicks, d.BehaviorEveryTicks)
	setInt(&t.WeatherEveryTicks, d.WeatherEveryTicks)
	setInt(&t.SurvivalEveryTicks, d.SurvivalEveryTicks)
	setInt(&t.SnapshotEveryTicks, d.SnapshotEveryTicks)
	setInt(&t.Segment.Length, d.Segment.Length)
	setInt(&t.Terrain.ChunkWorldSize, d.Terrain.ChunkWorldSize)
	setInt(&t.Terrain.NearRes, d.Terrain.NearRes)
	setInt(&t.Terrain.FarRes, d.Terrain.FarRes)
	setInt(&t.Terrain.Workers, d.Terrain.Workers)
	setInt(&t.Terrain.Simplex.Octaves, d.Terrain.Simplex.Octaves)
	setFloat(&t.Terrain.Simplex.Frequency, d.Terrain.Simplex.Frequency)
	setFloat(&t.Terrain.Simplex.Persistence, d.Terrain.Simplex.Persistence)
	setFloat(&t.Radii.Flee, d.Radii.Flee)
	setFloat(&t.Radii.Collect, d.Radii.Collect)
	setFloat(&t.Radii.Harvest, d.Radii.Harvest)
	setFloat(&t.Radii.Shelter, d.Radii.Shelter)
	if strings.TrimSpace(t.Terrain.Mode) == "" {
		t.Terrain.Mode = d.Terrain.Mode
	}
	t.Segment.Digits = strings.TrimSpace(t.Segment.Digits)
}

func (t Tuning) Validate() error {
	errb := oops.In("tuning").Code("E_TUNING_INVALID")
	if !protocol.Compatible(t.ProtocolVersion) {
		return errb.With("protocol_version", t.ProtocolVersion).Errorf("protocol_version must satisfy %s", protocol.VersionConstraint)
	}
	if !protocol.ValidGameMode(t.GameMode) {
		return errb.With("game_mode", t.GameMode).Errorf("game_mode must be exploration or survival")
	}
	if t.Segment.Start < 0 {
		return errb.Errorf("segment.start must be >= 0, got %d", t.Segment.Start)
	}
	for _, r := range t.Segment.Digits {
		if r < '0' || r > '9' {
			return errb.With("digits", t.Segment.Digits).Errorf("segment.digits must be decimal digits")
		}
	}
	if t.Terrain.RadiusChunks < 0 {
		return errb.Errorf("terrain.radius_chunks must be >= 0, got %d", t.Terrain.RadiusChunks)
	}
	if _, ok := heightmap.ParseMode(t.Terrain.Mode); !ok {
		return errb.With("mode", t.Terrain.Mode).Errorf("terrain.mode must be sine or simplex")
	}
	p := t.Population
	if p.Creatures < 0 || p.Behaviors < 0 || p.Shelters < 0 || p.FoodSources < 0 || p.Collectibles < 0 {
		return errb.Errorf("population counts must be >= 0")
	}
	if t.Behavior.PatternDecay < 0 || t.Behavior.PatternDecay > 1 {
		return errb.Errorf("behavior.pattern_decay must be in [0,1], got %g", t.Behavior.PatternDecay)
	}
	return nil
}

// HeightmapMode is the parsed terrain.mode.
func (t Tuning) HeightmapMode() heightmap.Mode {
	m, _ := heightmap.ParseMode(t.Terrain.Mode)
	return m
}

func (t Tuning) SimplexParams() heightmap.SimplexParams {
	return heightmap.SimplexParams{
		Octaves:     t.Terrain.Simplex.Octaves,
		Frequency:   t.Terrain.Simplex.Frequency,
		Persistence: t.Terrain.Simplex.Persistence,
	}
}
