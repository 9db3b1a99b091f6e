package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameSeedSameSequence(t *testing.T) {
	for _, seed := range []string{"", "3141592653", "3141592653-ai", "1415:0:-1:33"} {
		a := New(seed)
		b := New(seed)
		for i := 0; i < 5000; i++ {
			va, vb := a.Float64(), b.Float64()
			require.Equal(t, va, vb, "seed %q draw %d", seed, i)
		}
	}
}

func TestValuesInUnitInterval(t *testing.T) {
	s := New("range")
	for i := 0; i < 10000; i++ {
		v := s.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestStreamsDoNotShareState(t *testing.T) {
	a := New("shared")
	b := New("shared")
	first := a.Float64()
	_ = a.Float64()
	_ = a.Float64()
	assert.Equal(t, first, b.Float64(), "draws on a must not advance b")
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := New("3141592653")
	b := New(Derive("3141592653", "ai"))
	same := 0
	for i := 0; i < 32; i++ {
		if a.Float64() == b.Float64() {
			same++
		}
	}
	assert.Less(t, same, 32)
}

func TestFuncMatchesStream(t *testing.T) {
	f := Func("closure")
	s := New("closure")
	for i := 0; i < 100; i++ {
		require.Equal(t, s.Float64(), f())
	}
}

func TestIndexStaysInRange(t *testing.T) {
	assert.Equal(t, 0, Index(FuncSource(func() float64 { return 0 }), 4))
	assert.Equal(t, 3, Index(FuncSource(func() float64 { return 0.9999999 }), 4))
	assert.Equal(t, 0, Index(FuncSource(func() float64 { return 0.5 }), 0))
}

func TestDerive(t *testing.T) {
	assert.Equal(t, "314-shelters", Derive("314", "shelters"))
}

func TestStreamStateRestores(t *testing.T) {
	a := New("resume")
	for i := 0; i < 17; i++ {
		_ = a.Float64()
	}
	state, err := a.MarshalBinary()
	require.NoError(t, err)

	b := New("resume")
	require.NoError(t, b.UnmarshalBinary(state))
	for i := 0; i < 50; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestGoldenDraws(t *testing.T) {
	assert.Equal(t, uint64(0x1edd2705586d9548), SeedValue("3141592653"))
	s := New("3141592653")
	want := []float64{0.46128376295689866, 0.19743502005357583, 0.6462985057542185, 0.37624361303987297}
	for i, v := range want {
		require.Equal(t, v, s.Float64(), "draw %d", i)
	}
}
