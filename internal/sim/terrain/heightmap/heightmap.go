// Package heightmap turns digit segments and chunk coordinates into grids of
// normalized elevation samples.
package heightmap

import (
	"fmt"
	"math"

	"piverse.ai/internal/pi"
	"piverse.ai/internal/sim/rng"
)

// Grid is a size×size elevation grid indexed [row][col].
type Grid [][]float64

// FromDigits maps each cell to digit/10, scanning row-major and wrapping
// around the segment. An empty segment yields an all-zero grid.
func FromDigits(segment string, size int) Grid {
	if size <= 0 {
		return Grid{}
	}
	grid := make(Grid, size)
	index := 0
	for y := 0; y < size; y++ {
		row := make([]float64, size)
		for x := 0; x < size; x++ {
			if len(segment) > 0 {
				row[x] = float64(pi.DigitAt(segment, index%len(segment))) / 10
			}
			index++
		}
		grid[y] = row
	}
	return grid
}

// At returns 0 outside the grid.
func (g Grid) At(x, y int) float64 {
	if y < 0 || y >= len(g) || x < 0 || x >= len(g[y]) {
		return 0
	}
	return g[y][x]
}

// Heightmap is a flat row-major grid of samples in [0,1].
type Heightmap struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Data   []float32 `json:"data"`
}

// At returns the sample at column x, row z, or 0 outside the map.
func (h *Heightmap) At(x, z int) float32 {
	if h == nil || x < 0 || z < 0 || x >= h.Width || z >= h.Height {
		return 0
	}
	i := z*h.Width + x
	if i >= len(h.Data) {
		return 0
	}
	return h.Data[i]
}

// Valid reports whether Data matches the declared shape.
func (h *Heightmap) Valid() bool {
	return h != nil && h.Width > 0 && h.Height > 0 && len(h.Data) == h.Width*h.Height
}

// ChunkSeed is the RNG seed of one chunk at one resolution.
func ChunkSeed(segment string, cx, cz, res int) string {
	return fmt.Sprintf("%s:%d:%d:%d", segment, cx, cz, res)
}

const octaves = 4

// Synthesize builds the sine-interference stub for one chunk. Two draws are
// taken per octave per sample, rows outer and columns inner; reordering the
// loops changes every output value.
func Synthesize(segment string, cx, cz, res int) []float32 {
	if res <= 0 {
		return nil
	}
	src := rng.New(ChunkSeed(segment, cx, cz, res))
	data := make([]float32, res*res)
	for j := 0; j < res; j++ {
		for i := 0; i < res; i++ {
			nx := float64(i)/float64(res) - 0.5
			nz := float64(j)/float64(res) - 0.5
			e := 0.0
			amp := 1.0
			freq := 1.0
			for o := 0; o < octaves; o++ {
				r1 := src.Float64()
				r2 := src.Float64()
				val := math.Sin((nx*10*freq+r1)*2*math.Pi) *
					math.Sin((nz*10*freq+r2)*2*math.Pi)
				e += val * amp
				amp *= 0.5
				freq *= 2
			}
			data[j*res+i] = float32(clamp01(e*0.5 + 0.5))
		}
	}
	return data
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
