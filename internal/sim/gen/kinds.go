package gen

import "fmt"

// The order of every table below is part of the seed-compatibility contract:
// generators pick kinds by floor(r*len). Append only.

type ShelterKind uint8

const (
	ShelterCave ShelterKind = iota
	ShelterRuins
	ShelterTree
	ShelterRock
)

var AllShelterKinds = [...]ShelterKind{ShelterCave, ShelterRuins, ShelterTree, ShelterRock}

var shelterKindNames = [...]string{"cave", "ruins", "tree", "rock"}

func (k ShelterKind) String() string { return kindName(shelterKindNames[:], uint8(k)) }
func (k ShelterKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (k *ShelterKind) UnmarshalText(b []byte) error {
	return parseKind(shelterKindNames[:], "shelter kind", b, (*uint8)(k))
}

type FoodKind uint8

const (
	FoodBerry FoodKind = iota
	FoodMushroom
	FoodFish
	FoodGame
)

var AllFoodKinds = [...]FoodKind{FoodBerry, FoodMushroom, FoodFish, FoodGame}

var foodKindNames = [...]string{"berry", "mushroom", "fish", "game"}

func (k FoodKind) String() string { return kindName(foodKindNames[:], uint8(k)) }
func (k FoodKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (k *FoodKind) UnmarshalText(b []byte) error {
	return parseKind(foodKindNames[:], "food kind", b, (*uint8)(k))
}

type CollectibleKind uint8

const (
	CollectibleCrystal CollectibleKind = iota
	CollectibleArtifact
	CollectibleData
	CollectibleEnergy
)

var AllCollectibleKinds = [...]CollectibleKind{CollectibleCrystal, CollectibleArtifact, CollectibleData, CollectibleEnergy}

var collectibleKindNames = [...]string{"crystal", "artifact", "data", "energy"}

func (k CollectibleKind) String() string { return kindName(collectibleKindNames[:], uint8(k)) }
func (k CollectibleKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (k *CollectibleKind) UnmarshalText(b []byte) error {
	return parseKind(collectibleKindNames[:], "collectible kind", b, (*uint8)(k))
}

type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityRare
	RarityEpic
	RarityLegendary
)

var AllRarities = [...]Rarity{RarityCommon, RarityRare, RarityEpic, RarityLegendary}

var rarityNames = [...]string{"common", "rare", "epic", "legendary"}

func (r Rarity) String() string { return kindName(rarityNames[:], uint8(r)) }
func (r Rarity) MarshalText() ([]byte, error) { return []byte(r.String()), nil }
func (r *Rarity) UnmarshalText(b []byte) error {
	return parseKind(rarityNames[:], "rarity", b, (*uint8)(r))
}

// Scale is the render scale consumers apply per rarity.
func (r Rarity) Scale() float64 {
	switch r {
	case RarityCommon:
		return 0.5
	case RarityRare:
		return 0.7
	case RarityEpic:
		return 1.0
	case RarityLegendary:
		return 1.3
	}
	return 0.5
}

func kindName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("unknown(%d)", v)
}

func parseKind(names []string, what string, b []byte, dst *uint8) error {
	s := string(b)
	for i, n := range names {
		if n == s {
			*dst = uint8(i)
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", what, s)
}
