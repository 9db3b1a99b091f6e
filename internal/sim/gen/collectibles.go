package gen

import (
	"fmt"
	"math"

	"piverse.ai/internal/sim/rng"
)

type Collectible struct {
	ID     string          `json:"id"`
	Kind   CollectibleKind `json:"kind"`
	X      float64         `json:"x"`
	Z      float64         `json:"z"`
	Value  int             `json:"value"`
	Rarity Rarity          `json:"rarity"`

	Discovered bool `json:"discovered"`
	Collected  bool `json:"collected"`
}

func Collectibles(segment string, n int) []Collectible {
	src := rng.New(rng.Derive(segment, "collectibles"))
	out := make([]Collectible, 0, max(n, 0))
	for i := 0; i < n; i++ {
		kind := AllCollectibleKinds[rng.Index(src, len(AllCollectibleKinds))]
		rarity := AllRarities[rng.Index(src, len(AllRarities))]
		x := (src.Float64() - 0.5) * 100
		z := (src.Float64() - 0.5) * 100
		value := int(math.Floor(src.Float64()*100)) + 1
		out = append(out, Collectible{
			ID:     fmt.Sprintf("%s-%d", segment, i),
			Kind:   kind,
			X:      x,
			Z:      z,
			Value:  value,
			Rarity: rarity,
		})
	}
	return out
}
