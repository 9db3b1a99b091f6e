package tuning

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piverse.ai/internal/sim/terrain/heightmap"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
	require.NoError(t, got.Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	p := writeYAML(t, `
tick_rate_hz: 10
segment:
  digits: "2718281828"
terrain:
  mode: simplex
  radius_chunks: 1
behavior:
  pattern_decay: 0.05
`)
	got, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 10, got.TickRateHz)
	assert.Equal(t, "2718281828", got.Segment.Digits)
	assert.Equal(t, 1, got.Terrain.RadiusChunks)
	assert.Equal(t, heightmap.ModeSimplex, got.HeightmapMode())
	assert.Equal(t, 33, got.Terrain.NearRes)
	assert.Equal(t, 15, got.Population.Shelters)
	assert.Equal(t, 0.05, got.Behavior.PatternDecay)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"mode":   "terrain:\n  mode: perlin\n",
		"digits": "segment:\n  digits: \"31a4\"\n",
		"decay":  "behavior:\n  pattern_decay: 2\n",
		"start":  "segment:\n  start: -1\n",
		"proto":  "protocol_version: \"2.0\"\n",
		"game":   "game_mode: photo\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			require.Error(t, err)
			oe, ok := oops.AsOops(err)
			require.True(t, ok)
			assert.Equal(t, "E_TUNING_INVALID", oe.Code())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	oe, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "E_TUNING_READ", oe.Code())
}

func TestNormalizeFillsZeros(t *testing.T) {
	var tn Tuning
	tn.Normalize()
	assert.Equal(t, 5, tn.TickRateHz)
	assert.Equal(t, "sine", tn.Terrain.Mode)
	assert.Equal(t, 5.0, tn.Radii.Shelter)
	assert.Equal(t, 10, tn.Segment.Length)
	assert.Equal(t, "exploration", tn.GameMode)
	assert.Equal(t, "1.0", tn.ProtocolVersion)
}

func TestSegmentResolve(t *testing.T) {
	seg, err := Defaults().Segment.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "3141592653", seg)

	seg, err = SegmentSpec{Digits: "2718", Start: 5, Length: 2}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "2718", seg)

	p := filepath.Join(t.TempDir(), "digits.txt")
	require.NoError(t, os.WriteFile(p, []byte("1.41421\n35623"), 0o644))
	seg, err = SegmentSpec{DigitsFile: p, Start: 3, Length: 4}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "4213", seg)

	seg, err = SegmentSpec{DigitsFile: p, Start: 9, Length: math.MaxInt}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "23", seg)

	_, err = SegmentSpec{DigitsFile: filepath.Join(t.TempDir(), "none")}.Resolve()
	require.Error(t, err)
	oe, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "E_TUNING_READ", oe.Code())
}

func TestSampleConfigLoads(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	require.NoError(t, err)
	want := Defaults()
	want.Terrain.FarDistance = 64
	assert.Equal(t, want, got)
}
