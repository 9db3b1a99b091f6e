package chunks

import "math"

type Config struct {
	// ChunkWorldSize is the side length of one chunk in world units.
	ChunkWorldSize int
	NearRes        int
	FarRes         int
	// Radius is measured in chunks; (2R+1)^2 chunks are visible.
	Radius int
	// FarDistance switches to FarRes once the chunk centre is further away
	// than this from the player. Zero means 2*ChunkWorldSize.
	FarDistance float64
}

func DefaultConfig() Config {
	return Config{
		ChunkWorldSize: 32,
		NearRes:        33,
		FarRes:         17,
		Radius:         2,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.ChunkWorldSize <= 0 {
		c.ChunkWorldSize = d.ChunkWorldSize
	}
	if c.NearRes <= 0 {
		c.NearRes = d.NearRes
	}
	if c.FarRes <= 0 {
		c.FarRes = d.FarRes
	}
	if c.Radius < 0 {
		c.Radius = d.Radius
	}
	if c.FarDistance <= 0 {
		c.FarDistance = 2 * float64(c.ChunkWorldSize)
	}
	return c
}

// resFor picks the resolution tier for chunk (cx,cz) seen from (px,pz).
func (c Config) resFor(cx, cz int, px, pz float64) int {
	size := float64(c.ChunkWorldSize)
	centreX := (float64(cx) + 0.5) * size
	centreZ := (float64(cz) + 0.5) * size
	if math.Hypot(centreX-px, centreZ-pz) > c.FarDistance {
		return c.FarRes
	}
	return c.NearRes
}
