package gen

import "piverse.ai/internal/sim/rng"

type TerrainPoint struct {
	X      int `json:"x"`
	Z      int `json:"z"`
	Height int `json:"height"`
}

// TerrainGrid is indexed [x][z].
type TerrainGrid [][]TerrainPoint

// Terrain draws a size×size grid of integer heights 0-4, x-major.
func Terrain(src rng.Source, size int) TerrainGrid {
	if size <= 0 {
		return TerrainGrid{}
	}
	grid := make(TerrainGrid, size)
	for x := 0; x < size; x++ {
		grid[x] = make([]TerrainPoint, size)
		for z := 0; z < size; z++ {
			grid[x][z] = TerrainPoint{X: x, Z: z, Height: rng.Index(src, 5)}
		}
	}
	return grid
}

// HeightAt returns 0 for coordinates outside the grid.
func (g TerrainGrid) HeightAt(x, z int) int {
	if x < 0 || x >= len(g) || len(g) == 0 || z < 0 || z >= len(g[0]) {
		return 0
	}
	return g[x][z].Height
}

func (g TerrainGrid) Flatten() []TerrainPoint {
	var out []TerrainPoint
	for _, col := range g {
		out = append(out, col...)
	}
	return out
}
