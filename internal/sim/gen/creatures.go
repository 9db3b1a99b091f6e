package gen

import (
	"fmt"
	"math"

	"piverse.ai/internal/sim/rng"
)

// Creature is a wandering entity. X and Z mutate at runtime; everything else
// is fixed at generation.
type Creature struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Z     float64 `json:"z"`
	Size  float64 `json:"size"`
	Speed float64 `json:"speed"`
	Hue   int     `json:"hue"`
	Color string  `json:"color"`
}

// Creatures draws n creatures from src in the order x, z, size, speed, hue.
func Creatures(src rng.Source, n int) []Creature {
	out := make([]Creature, 0, max(n, 0))
	for i := 0; i < n; i++ {
		x := math.Floor(src.Float64() * 20)
		z := math.Floor(src.Float64() * 20)
		size := 0.5 + src.Float64()*1.5
		speed := src.Float64()
		hue := int(math.Floor(src.Float64() * 360))
		out = append(out, Creature{
			ID:    CreatureID(i),
			X:     x,
			Z:     z,
			Size:  size,
			Speed: speed,
			Hue:   hue,
			Color: fmt.Sprintf("hsl(%d, 70%%, 50%%)", hue),
		})
	}
	return out
}

func CreatureID(i int) string { return fmt.Sprintf("creature-%d", i) }

// Weather is the coarse sky state drawn alongside the creatures.
type Weather struct {
	RainLevel    float64 `json:"rain_level"`
	CloudDensity float64 `json:"cloud_density"`
	WindSpeed    float64 `json:"wind_speed"`
}

func GenerateWeather(src rng.Source) Weather {
	return Weather{
		RainLevel:    src.Float64(),
		CloudDensity: src.Float64(),
		WindSpeed:    src.Float64() * 10,
	}
}
