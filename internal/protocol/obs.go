package protocol

type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	PlayerID        string `json:"player_id"`

	Self      SelfObs       `json:"self"`
	Creatures []CreatureObs `json:"creatures"`
	Weather   WeatherObs    `json:"weather"`
	Patterns  []PatternObs  `json:"patterns"`
	Stats     StatsObs      `json:"stats"`
	Events    []Event       `json:"events"`

	// Chunks carries heightmaps that became ready since the last OBS.
	Chunks []HeightmapMsg `json:"chunks,omitempty"`
}

type SelfObs struct {
	X         float64 `json:"x"`
	Z         float64 `json:"z"`
	Health    float64 `json:"health"`
	Energy    float64 `json:"energy"`
	Hunger    float64 `json:"hunger"`
	InShelter bool    `json:"in_shelter"`
	ShelterID string  `json:"shelter_id,omitempty"`
	Score     int     `json:"score"`

	GameMode         string  `json:"game_mode"`
	Discoveries      int     `json:"discoveries"`
	DistanceTraveled float64 `json:"distance_traveled"`
	TimeSurvived     float64 `json:"time_survived"`
}

type CreatureObs struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Z     float64 `json:"z"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
}

type WeatherObs struct {
	RainLevel     float64 `json:"rain_level"`
	CloudDensity  float64 `json:"cloud_density"`
	WindSpeed     float64 `json:"wind_speed"`
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	Visibility    float64 `json:"visibility"`
}

type PatternObs struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
	Strength     float64  `json:"strength"`
}

type StatsObs struct {
	TotalCreatures      int     `json:"total_creatures"`
	AverageIntelligence float64 `json:"average_intelligence"`
	AverageSocialLevel  float64 `json:"average_social_level"`
	ActivePatterns      int     `json:"active_patterns"`
	RecentInteractions  int     `json:"recent_interactions"`
}

// Event is a loosely typed notification such as a pickup or an action
// result.
type Event map[string]any
