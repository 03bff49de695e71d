package registration

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPairwiseDistancesSymmetric(t *testing.T) {
	Y := mat.NewDense(4, 3, []float64{
		0, 0, 0,
		1, 0, 0,
		2, 0, 0,
		3, 0, 0,
	})
	d := pairwiseDistances(Y)
	m, _ := d.Dims()
	for i := 0; i < m; i++ {
		if d.At(i, i) != 0 {
			t.Fatalf("diagonal not zero at %d: %f", i, d.At(i, i))
		}
		for j := 0; j < m; j++ {
			if d.At(i, j) != d.At(j, i) {
				t.Fatalf("distance matrix not symmetric at (%d,%d)", i, j)
			}
		}
	}
	if math.Abs(d.At(0, 3)-3) > 1e-9 {
		t.Fatalf("expected distance 3, got %f", d.At(0, 3))
	}
}

func TestGeodesicDistancesFromTable(t *testing.T) {
	g := []float64{0, 0.01, 0.025, 0.05}
	d := geodesicDistances(g)
	if math.Abs(d.At(0, 3)-0.05) > 1e-12 {
		t.Fatalf("expected 0.05, got %f", d.At(0, 3))
	}
	if math.Abs(d.At(1, 2)-0.015) > 1e-12 {
		t.Fatalf("expected 0.015, got %f", d.At(1, 2))
	}
}

func TestBuildKernelUnitDiagonal(t *testing.T) {
	g := []float64{0, 0.01, 0.02, 0.03, 0.04}
	d := geodesicDistances(g)
	for _, k := range []Kernel{Gaussian, Laplacian} {
		G := buildKernel(d, k, 0.5)
		m, _ := G.Dims()
		for i := 0; i < m; i++ {
			if math.Abs(G.At(i, i)-1) > 1e-12 {
				t.Fatalf("%s kernel: expected unit diagonal, got %f at %d", k, G.At(i, i), i)
			}
		}
	}
}

func TestBuildKernelSymmetric(t *testing.T) {
	g := []float64{0, 0.01, 0.025, 0.05, 0.09}
	d := geodesicDistances(g)
	for _, k := range []Kernel{Gaussian, Laplacian, FirstOrder, SecondOrder} {
		G := buildKernel(d, k, 0.3)
		m, _ := G.Dims()
		for i := 0; i < m; i++ {
			for j := 0; j < m; j++ {
				if math.Abs(G.At(i, j)-G.At(j, i)) > 1e-12 {
					t.Fatalf("%s kernel not symmetric at (%d,%d)", k, i, j)
				}
			}
		}
	}
}

func TestBuildKernelMonotonicDecay(t *testing.T) {
	g := []float64{0, 0.01, 0.02, 0.05, 0.2}
	d := geodesicDistances(g)
	for _, k := range []Kernel{Gaussian, Laplacian, FirstOrder, SecondOrder} {
		G := buildKernel(d, k, 0.3)
		row := 0
		prev := G.At(row, 0)
		for j := 1; j < 5; j++ {
			v := G.At(row, j)
			if v > prev+1e-12 {
				t.Fatalf("%s kernel not monotone decaying with distance: col %d (%f) > col %d (%f)", k, j, v, j-1, prev)
			}
			prev = v
		}
	}
}
