package heightmap

import (
	"strings"

	"github.com/ojrac/opensimplex-go"

	"piverse.ai/internal/sim/rng"
)

// Mode selects the per-chunk synthesis algorithm.
type Mode uint8

const (
	// ModeSine is the seed-compatible sine interference stub.
	ModeSine Mode = iota
	// ModeSimplex samples coherent OpenSimplex noise in world space, so
	// neighbouring chunks share their edges.
	ModeSimplex
)

func (m Mode) String() string {
	if m == ModeSimplex {
		return "simplex"
	}
	return "sine"
}

func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sine":
		return ModeSine, true
	case "simplex":
		return ModeSimplex, true
	}
	return ModeSine, false
}

// SimplexParams shapes the coherent noise.
type SimplexParams struct {
	Octaves     int
	Frequency   float64 // cycles per chunk
	Persistence float64
}

func DefaultSimplexParams() SimplexParams {
	return SimplexParams{Octaves: 4, Frequency: 0.35, Persistence: 0.5}
}

// SynthesizeSimplex samples res×res points spanning the chunk inclusively so
// that the last column of chunk cx equals the first column of chunk cx+1.
func SynthesizeSimplex(segment string, cx, cz, res int, p SimplexParams) []float32 {
	if res <= 0 {
		return nil
	}
	if p.Octaves <= 0 {
		p = DefaultSimplexParams()
	}
	noise := opensimplex.NewNormalized(int64(rng.SeedValue(segment)))
	step := 1.0
	if res > 1 {
		step = 1 / float64(res-1)
	}
	data := make([]float32, res*res)
	for j := 0; j < res; j++ {
		for i := 0; i < res; i++ {
			wx := float64(cx) + float64(i)*step
			wz := float64(cz) + float64(j)*step
			data[j*res+i] = float32(clamp01(octaveNoise(noise, wx, wz, p)))
		}
	}
	return data
}

func octaveNoise(n opensimplex.Noise, x, z float64, p SimplexParams) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	freq := p.Frequency
	for o := 0; o < p.Octaves; o++ {
		total += n.Eval2(x*freq, z*freq) * amplitude
		maxVal += amplitude
		amplitude *= p.Persistence
		freq *= 2
	}
	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

// Request names one chunk heightmap to build.
type Request struct {
	Segment string
	CX, CZ  int
	Res     int
	Mode    Mode
	Simplex SimplexParams
}

// Generate builds the heightmap for req.
func Generate(req Request) Heightmap {
	var data []float32
	switch req.Mode {
	case ModeSimplex:
		data = SynthesizeSimplex(req.Segment, req.CX, req.CZ, req.Res, req.Simplex)
	default:
		data = Synthesize(req.Segment, req.CX, req.CZ, req.Res)
	}
	return Heightmap{Width: req.Res, Height: req.Res, Data: data}
}
