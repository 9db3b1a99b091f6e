package gen

import (
	"fmt"
	"math"
	"time"

	"piverse.ai/internal/pi"
	"piverse.ai/internal/sim/mathx"
	"piverse.ai/internal/sim/rng"
)

type Shelter struct {
	ID         string      `json:"id"`
	X          float64     `json:"x"`
	Z          float64     `json:"z"`
	Kind       ShelterKind `json:"kind"`
	Protection float64     `json:"protection"` // 0-1, reduces weather effects
	Capacity   int         `json:"capacity"`
	Durability float64     `json:"durability"` // 0-100
}

type FoodSource struct {
	ID           string   `json:"id"`
	X            float64  `json:"x"`
	Z            float64  `json:"z"`
	Kind         FoodKind `json:"kind"`
	Nutrition    float64  `json:"nutrition"`    // 0-100, hunger restored
	Availability float64  `json:"availability"` // 0-1
	RespawnTime  int      `json:"respawn_time"` // seconds

	// LastHarvested is runtime state; zero means never harvested.
	LastHarvested time.Time `json:"last_harvested,omitempty"`
}

// Available reports whether the source has respawned at now.
func (f *FoodSource) Available(now time.Time) bool {
	if f.LastHarvested.IsZero() {
		return true
	}
	return now.Sub(f.LastHarvested) >= time.Duration(f.RespawnTime)*time.Second
}

// Harvest marks the source as consumed at now and returns the nutrition
// gained, or 0 if it has not respawned yet.
func (f *FoodSource) Harvest(now time.Time) float64 {
	if !f.Available(now) {
		return 0
	}
	f.LastHarvested = now
	return f.Nutrition
}

func Shelters(segment string, n int) []Shelter {
	src := rng.New(rng.Derive(segment, "shelters"))
	out := make([]Shelter, 0, max(n, 0))
	for i := 0; i < n; i++ {
		kind := AllShelterKinds[rng.Index(src, len(AllShelterKinds))]
		x := (src.Float64() - 0.5) * 200
		z := (src.Float64() - 0.5) * 200
		protection := rng.Spread(src, baseProtection(kind), 0.3)
		capacity := rng.Index(src, 5) + 1
		durability := 80 + src.Float64()*20
		out = append(out, Shelter{
			ID:         fmt.Sprintf("shelter-%d", i),
			X:          x,
			Z:          z,
			Kind:       kind,
			Protection: mathx.Clamp(protection, 0, 1),
			Capacity:   capacity,
			Durability: durability,
		})
	}
	return out
}

func FoodSources(segment string, n int) []FoodSource {
	src := rng.New(rng.Derive(segment, "food"))
	out := make([]FoodSource, 0, max(n, 0))
	for i := 0; i < n; i++ {
		kind := AllFoodKinds[rng.Index(src, len(AllFoodKinds))]
		x := (src.Float64() - 0.5) * 200
		z := (src.Float64() - 0.5) * 200
		nutrition := rng.Spread(src, baseNutrition(kind), 20)
		availability := 0.5 + src.Float64()*0.5
		out = append(out, FoodSource{
			ID:           fmt.Sprintf("food-%d", i),
			X:            x,
			Z:            z,
			Kind:         kind,
			Nutrition:    mathx.Clamp(nutrition, 0, 100),
			Availability: availability,
			RespawnTime:  respawnSeconds(kind),
		})
	}
	return out
}

func baseProtection(k ShelterKind) float64 {
	switch k {
	case ShelterCave:
		return 0.9
	case ShelterRuins:
		return 0.7
	case ShelterTree:
		return 0.4
	case ShelterRock:
		return 0.6
	}
	return 0.5
}

func baseNutrition(k FoodKind) float64 {
	switch k {
	case FoodBerry:
		return 15
	case FoodMushroom:
		return 25
	case FoodFish:
		return 40
	case FoodGame:
		return 60
	}
	return 20
}

func respawnSeconds(k FoodKind) int {
	switch k {
	case FoodBerry:
		return 300
	case FoodMushroom:
		return 600
	case FoodFish:
		return 900
	case FoodGame:
		return 1800
	}
	return 600
}

// SeasonSeconds is the length of one season in world time.
const SeasonSeconds = 3600

// SeasonAt is the season index (0..3) at elapsed world seconds t.
func SeasonAt(t float64) int {
	if t < 0 {
		return 0
	}
	return int(math.Floor(t/SeasonSeconds)) % 4
}

// WeatherEffects is the survival-relevant climate at one place and hour.
type WeatherEffects struct {
	Temperature   float64 `json:"temperature"`   // -50..50 °C
	Humidity      float64 `json:"humidity"`      // 0..100 %
	WindSpeed     float64 `json:"wind_speed"`    // 0..50 m/s
	Precipitation float64 `json:"precipitation"` // 0..100 %
	Visibility    float64 `json:"visibility"`    // 10..100 %
}

// CalculateWeatherEffects derives the climate for the hour containing
// timeOfDay (seconds) in the given season. The first four digits of the
// segment set the baseline.
func CalculateWeatherEffects(segment string, timeOfDay float64, season int) WeatherEffects {
	hour := int(math.Floor(timeOfDay / SeasonSeconds))
	src := rng.New(fmt.Sprintf("%s-weather-%d-%d", segment, hour, season))

	baseTemp := float64(pi.DigitAt(segment, 0)-5) * 10
	baseHumidity := float64(pi.DigitAt(segment, 1)) * 10
	baseWind := float64(pi.DigitAt(segment, 2)) * 5
	basePrecip := float64(pi.DigitAt(segment, 3)) * 10

	dayPhase := timeOfDay / 86400 * math.Pi * 2
	dayNightTemp := math.Sin(dayPhase) * 15
	dayNightHumidity := math.Sin(dayPhase+math.Pi)*20 + 20

	seasonPhase := float64(season) / 4 * math.Pi * 2
	seasonalTemp := math.Sin(seasonPhase) * 20
	seasonalPrecip := math.Sin(seasonPhase+math.Pi/2)*30 + 30

	return WeatherEffects{
		Temperature:   mathx.Clamp(baseTemp+dayNightTemp+seasonalTemp+(src.Float64()-0.5)*10, -50, 50),
		Humidity:      mathx.Clamp(baseHumidity+dayNightHumidity+(src.Float64()-0.5)*20, 0, 100),
		WindSpeed:     mathx.Clamp(baseWind+(src.Float64()-0.5)*10, 0, 50),
		Precipitation: mathx.Clamp(basePrecip+seasonalPrecip+(src.Float64()-0.5)*20, 0, 100),
		Visibility:    mathx.Clamp(100-basePrecip-(src.Float64()-0.5)*20, 10, 100),
	}
}

// Impact is the per-interval drain applied to a player.
type Impact struct {
	HealthDrain float64 `json:"health_drain"`
	EnergyDrain float64 `json:"energy_drain"`
	HungerDrain float64 `json:"hunger_drain"`
}

func SurvivalImpact(w WeatherEffects, inShelter bool, protection float64) Impact {
	var health, energy, hunger float64

	switch {
	case w.Temperature < 0:
		health += math.Abs(w.Temperature) * 0.1
		energy += math.Abs(w.Temperature) * 0.2
	case w.Temperature > 35:
		health += (w.Temperature - 35) * 0.05
		energy += (w.Temperature - 35) * 0.3
		hunger += (w.Temperature - 35) * 0.1
	}

	if w.WindSpeed > 20 {
		energy += (w.WindSpeed - 20) * 0.1
		if !inShelter {
			health += (w.WindSpeed - 20) * 0.05
		}
	}

	if w.Precipitation > 30 {
		energy += w.Precipitation * 0.05
		if !inShelter {
			health += w.Precipitation * 0.02
		}
	}

	if inShelter {
		health *= 1 - protection
		energy *= 1 - protection*0.5
	}

	return Impact{
		HealthDrain: math.Max(0, health),
		EnergyDrain: math.Max(0, energy),
		HungerDrain: math.Max(0, hunger),
	}
}
