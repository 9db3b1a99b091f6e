package world

import (
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/oops"

	"piverse.ai/internal/persistence/snapshot"
	"piverse.ai/internal/protocol"
	"piverse.ai/internal/sim/behavior"
	"piverse.ai/internal/sim/gen"
	"piverse.ai/internal/sim/rng"
	"piverse.ai/internal/sim/terrain/chunks"
	"piverse.ai/internal/sim/terrain/heightmap"
	"piverse.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID      string
	Segment string
	Tuning  tuning.Tuning

	// Pool computes heightmaps off the loop goroutine. When nil, requests
	// are synthesized inline and delivered at the start of the next tick.
	Pool HeightmapPool

	Clock     func() time.Time
	Jitter    func() float64
	EventSink behavior.EventSink
	Logger    *log.Logger
}

// HeightmapPool is the part of *chunks.Pool the world uses.
type HeightmapPool interface {
	Dispatcher(reply chan<- chunks.Response) chunks.Dispatcher
}

type JoinRequest struct {
	Name     string
	// GameMode is one of the protocol.GameMode values; empty takes the
	// tuning default.
	GameMode string
	Out      chan []byte
	Resp     chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// Action is one client command, already validated by the transport.
type Action struct {
	Type   string  `json:"type"`
	DX     float64 `json:"dx,omitempty"`
	DZ     float64 `json:"dz,omitempty"`
	X      float64 `json:"x,omitempty"`
	Z      float64 `json:"z,omitempty"`
	FoodID string  `json:"food_id,omitempty"`
}

type ActionEnvelope struct {
	PlayerID string
	Act      Action
}

type RecordedJoin struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type RecordedAction struct {
	PlayerID string `json:"player_id"`
	Act      Action `json:"act"`
}

type RecordedPickup struct {
	PlayerID      string `json:"player_id"`
	CollectibleID string `json:"collectible_id"`
	Value         int    `json:"value"`
}

type RecordedHarvest struct {
	PlayerID  string  `json:"player_id"`
	FoodID    string  `json:"food_id"`
	Nutrition float64 `json:"nutrition"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Joins    []RecordedJoin    `json:"joins,omitempty"`
	Leaves   []string          `json:"leaves,omitempty"`
	Actions  []RecordedAction  `json:"actions,omitempty"`
	Pickups  []RecordedPickup  `json:"pickups,omitempty"`
	Harvests []RecordedHarvest `json:"harvests,omitempty"`
	Digest   string            `json:"digest"`
}

type WorldMetrics struct {
	Tick          uint64  `json:"tick"`
	Players       int     `json:"players"`
	Creatures     int     `json:"creatures"`
	PendingChunks int     `json:"pending_chunks"`
	ReadyChunks   int     `json:"ready_chunks"`
	Patterns      int     `json:"patterns"`
	StepMS        float64 `json:"step_ms"`
}

const maxPlayerStat = 100.0

type Player struct {
	ID    string
	Name  string
	Mode  string
	X, Z  float64
	Score int

	Health, Energy, Hunger float64

	InShelter bool
	ShelterID string

	Discoveries      int
	DistanceTraveled float64
	// TimeSurvived is world seconds spent alive in survival mode.
	TimeSurvived     float64
}

func (p *Player) survival() bool { return p.Mode == protocol.GameModeSurvival }

type clientState struct {
	Out     chan []byte
	Chunks  *chunks.Manager
	Fresh   []chunks.Key
	Pending []protocol.Event
}

type World struct {
	cfg    WorldConfig
	tune   tuning.Tuning
	logger *log.Logger

	now    func() time.Time
	jitter func() float64

	tick       atomic.Uint64
	nextPlayer uint64

	creatures    []gen.Creature
	sky          gen.Weather
	effects      gen.WeatherEffects
	shelters     []gen.Shelter
	food         []gen.FoodSource
	collectibles []gen.Collectible
	sim          *behavior.Simulator

	players map[string]*Player
	clients map[string]*clientState
	order   []string

	chunkCfg   chunks.Config
	dispatcher chunks.Dispatcher
	replies    chan chunks.Response
	inline     []chunks.Response

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	admin chan adminSnapshotReq
	stop  chan struct{}

	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value
}

func New(cfg WorldConfig) (*World, error) {
	errb := oops.In("world").With("world_id", cfg.ID)
	cfg.Tuning.Normalize()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, errb.Wrapf(err, "tuning")
	}
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = "world_1"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Jitter == nil {
		cfg.Jitter = rand.Float64
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("world")
	}
	t := cfg.Tuning

	w := &World{
		cfg:     cfg,
		tune:    t,
		logger:  cfg.Logger,
		now:     cfg.Clock,
		jitter:  cfg.Jitter,
		players: map[string]*Player{},
		clients: map[string]*clientState{},
		replies: make(chan chunks.Response, 4096),
		inbox:   make(chan ActionEnvelope, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		admin:   make(chan adminSnapshotReq, 16),
		stop:    make(chan struct{}),
		chunkCfg: chunks.Config{
			ChunkWorldSize: t.Terrain.ChunkWorldSize,
			NearRes:        t.Terrain.NearRes,
			FarRes:         t.Terrain.FarRes,
			Radius:         t.Terrain.RadiusChunks,
			FarDistance:    t.Terrain.FarDistance,
		},
	}

	// Creatures and the sky share the raw segment stream, in that order.
	src := rng.New(cfg.Segment)
	w.creatures = gen.Creatures(src, t.Population.Creatures)
	w.sky = gen.GenerateWeather(src)
	w.shelters = gen.Shelters(cfg.Segment, t.Population.Shelters)
	w.food = gen.FoodSources(cfg.Segment, t.Population.FoodSources)
	w.collectibles = gen.Collectibles(cfg.Segment, t.Population.Collectibles)
	w.effects = gen.CalculateWeatherEffects(cfg.Segment, 0, 0)

	opts := []behavior.Option{
		behavior.WithClock(cfg.Clock),
		behavior.WithPopulation(t.Population.Behaviors),
		behavior.WithPatternDecay(t.Behavior.PatternDecay),
	}
	if cfg.EventSink != nil {
		opts = append(opts, behavior.WithEventSink(cfg.EventSink))
	}
	w.sim = behavior.New(cfg.Segment, opts...)

	if cfg.Pool != nil {
		w.dispatcher = cfg.Pool.Dispatcher(w.replies)
	} else {
		mode := t.HeightmapMode()
		params := t.SimplexParams()
		w.dispatcher = chunks.DispatcherFunc(func(r chunks.Request) {
			hm := heightmap.Generate(heightmap.Request{
				Segment: r.Segment, CX: r.CX, CZ: r.CZ, Res: r.Res,
				Mode: mode, Simplex: params,
			})
			w.inline = append(w.inline, chunks.Response{Key: r.Key, Width: hm.Width, Height: hm.Height, Data: hm.Data})
		})
	}
	w.metrics.Store(WorldMetrics{Creatures: len(w.creatures)})
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) Segment() string     { return w.cfg.Segment }
func (w *World) TickRateHz() int     { return w.tune.TickRateHz }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Metrics() WorldMetrics {
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

// Params describes the world to a joining client.
func (w *World) Params() protocol.WorldParams {
	return protocol.WorldParams{
		Segment:        w.cfg.Segment,
		TickRateHz:     w.tune.TickRateHz,
		ChunkWorldSize: w.chunkCfg.ChunkWorldSize,
		NearRes:        w.chunkCfg.NearRes,
		FarRes:         w.chunkCfg.FarRes,
		RadiusChunks:   w.chunkCfg.Radius,
		HeightmapMode:  w.tune.HeightmapMode().String(),
		GameMode:       w.tune.GameMode,
	}
}
