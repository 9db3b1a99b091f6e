package mathx

import "testing"

func TestFloorDivAndMod(t *testing.T) {
	tests := []struct {
		a, b int
		q, m int
	}{
		{a: 0, b: 32, q: 0, m: 0},
		{a: 31, b: 32, q: 0, m: 31},
		{a: 32, b: 32, q: 1, m: 0},
		{a: -1, b: 32, q: -1, m: 31},
		{a: -32, b: 32, q: -1, m: 0},
		{a: -33, b: 32, q: -2, m: 31},
	}
	for _, tc := range tests {
		if got := FloorDiv(tc.a, tc.b); got != tc.q {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", tc.a, tc.b, got, tc.q)
		}
		if got := Mod(tc.a, tc.b); got != tc.m {
			t.Fatalf("Mod(%d,%d)=%d want %d", tc.a, tc.b, got, tc.m)
		}
	}
}

func TestFloorToInt(t *testing.T) {
	if got := FloorToInt(-0.5, 32); got != -1 {
		t.Fatalf("FloorToInt(-0.5)=%d want -1", got)
	}
	if got := FloorToInt(63.9, 32); got != 1 {
		t.Fatalf("FloorToInt(63.9)=%d want 1", got)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(1.2, 0, 1) != 1 || Clamp(-3, 0, 1) != 0 || Clamp(0.4, 0, 1) != 0.4 {
		t.Fatalf("clamp bounds violated")
	}
}
