package preprocess

import (
	"math"
	"testing"
)

func TestDistanceToForegroundZeroOnForeground(t *testing.T) {
	m := &Mask{Width: 5, Height: 5, Bits: make([]bool, 25)}
	m.Bits[2*5+2] = true // single foreground pixel at (2,2)

	d := distanceToForeground(m)
	if d[2][2] != 0 {
		t.Fatalf("expected 0 at the foreground pixel, got %f", d[2][2])
	}
}

func TestDistanceToForegroundKnownDistances(t *testing.T) {
	m := &Mask{Width: 5, Height: 5, Bits: make([]bool, 25)}
	m.Bits[0*5+0] = true // foreground at (0,0)

	d := distanceToForeground(m)
	want := math.Sqrt(4*4 + 4*4)
	if math.Abs(d[4][4]-want) > 1e-9 {
		t.Fatalf("expected distance %f at (4,4), got %f", want, d[4][4])
	}
	if math.Abs(d[0][3]-3) > 1e-9 {
		t.Fatalf("expected distance 3 along the row, got %f", d[0][3])
	}
}

func TestDistanceToForegroundAllSet(t *testing.T) {
	bits := make([]bool, 16)
	for i := range bits {
		bits[i] = true
	}
	m := &Mask{Width: 4, Height: 4, Bits: bits}
	d := distanceToForeground(m)
	for v := 0; v < 4; v++ {
		for u := 0; u < 4; u++ {
			if d[v][u] != 0 {
				t.Fatalf("expected 0 everywhere when mask is all-set, got %f at (%d,%d)", d[v][u], u, v)
			}
		}
	}
}
