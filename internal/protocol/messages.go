package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
	// GameMode is GameModeExploration or GameModeSurvival; empty takes the
	// server default.
	GameMode        string `json:"game_mode,omitempty"`
}

const (
	GameModeExploration = "exploration"
	GameModeSurvival    = "survival"
)

func ValidGameMode(m string) bool {
	return m == GameModeExploration || m == GameModeSurvival
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	PlayerID        string      `json:"player_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	Segment        string     `json:"pi_segment"`
	TickRateHz     int        `json:"tick_rate_hz"`
	ChunkWorldSize int        `json:"chunk_world_size"`
	NearRes        int        `json:"near_res"`
	FarRes         int        `json:"far_res"`
	RadiusChunks   int        `json:"radius_chunks"`
	HeightmapMode  string     `json:"heightmap_mode"`
	GameMode       string     `json:"game_mode"`
	Spawn          [2]float64 `json:"spawn"`
}

// MOVE (client -> server): relative step.
type MoveMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	DX              float64 `json:"dx"`
	DZ              float64 `json:"dz"`
}

// MOVE_TO (client -> server): absolute position.
type MoveToMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float64 `json:"x"`
	Z               float64 `json:"z"`
}

// HARVEST (client -> server)
type HarvestMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	FoodID          string `json:"food_id"`
}

// HeightmapRequestMsg asks for one chunk heightmap over the worker channel.
type HeightmapRequestMsg struct {
	Type      string `json:"type"`
	Key       string `json:"key"`
	PiSegment string `json:"piSegment"`
	CX        int    `json:"cx"`
	CZ        int    `json:"cz"`
	WorldSize int    `json:"worldSize"`
	Res       int    `json:"res"`
}

// HeightmapMsg answers a HeightmapRequestMsg. len(Data) == Width*Height.
type HeightmapMsg struct {
	Type   string    `json:"type"`
	Key    string    `json:"key"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Data   []float32 `json:"data"`
}
