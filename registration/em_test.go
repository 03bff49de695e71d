package registration

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func ropeY0(m int, spacing float64) *mat.Dense {
	Y := mat.NewDense(m, 3, nil)
	for i := 0; i < m; i++ {
		Y.Set(i, 0, float64(i)*spacing)
	}
	return Y
}

// noisySample draws n points uniformly along the straight rope Y0 with
// Gaussian jitter, the synthetic input described in spec §8's "straight
// rope, no occlusion" scenario.
func noisySample(rng *rand.Rand, Y0 *mat.Dense, n int, sigma float64) *mat.Dense {
	m, _ := Y0.Dims()
	X := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		t := rng.Float64() * float64(m-1)
		lo := int(t)
		if lo >= m-1 {
			lo = m - 2
		}
		frac := t - float64(lo)
		for d := 0; d < 3; d++ {
			v := Y0.At(lo, d)*(1-frac) + Y0.At(lo+1, d)*frac
			X.Set(i, d, v+rng.NormFloat64()*sigma)
		}
	}
	return X
}

func baseOptions(g []float64) Options {
	return Options{
		Beta: 0.5, Alpha: 1, Gamma: 1, Mu: 0.1,
		IterMax: 30, Tol: 1e-5,
		IncludeLLE:  true,
		UseGeodesic: true,
		Geodesic:    g,
		Kernel:      Gaussian,
	}
}

func TestRegisterStraightRopeNoOcclusion(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	Y0 := ropeY0(8, 0.014)
	g := make([]float64, 8)
	for i := 1; i < 8; i++ {
		g[i] = g[i-1] + 0.014
	}
	X := noisySample(rng, Y0, 1000, 0.0005)

	result, err := Register(X, Y0, baseOptions(g))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	for i := 0; i < 8; i++ {
		dx := result.Y.At(i, 0) - Y0.At(i, 0)
		dy := result.Y.At(i, 1) - Y0.At(i, 1)
		dz := result.Y.At(i, 2) - Y0.At(i, 2)
		d := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if d > 0.001 {
			t.Fatalf("node %d drifted %fmm from marker", i, d*1000)
		}
	}
}

func TestRegisterSigma2MonotoneDecrease(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	Y0 := ropeY0(10, 0.01)
	g := make([]float64, 10)
	for i := 1; i < 10; i++ {
		g[i] = g[i-1] + 0.01
	}
	X := noisySample(rng, Y0, 200, 0)

	opts := baseOptions(g)
	opts.IterMax = 1

	sigmas := make([]float64, 0, 6)
	Y := Y0
	for i := 0; i < 6; i++ {
		result, err := Register(X, Y, opts)
		if err != nil {
			t.Fatalf("iter %d: %v", i, err)
		}
		sigmas = append(sigmas, result.Sigma2)
		Y = result.Y
	}
	for i := 1; i < len(sigmas); i++ {
		if sigmas[i] > sigmas[i-1] {
			t.Fatalf("sigma2 not monotone decreasing at step %d: %v", i, sigmas)
		}
	}
}

func TestRegisterRoundTripFixedPoint(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	Y0 := ropeY0(8, 0.014)
	g := make([]float64, 8)
	for i := 1; i < 8; i++ {
		g[i] = g[i-1] + 0.014
	}
	X := noisySample(rng, Y0, 500, 0.0002)

	first, err := Register(X, Y0, baseOptions(g))
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := Register(X, first.Y, baseOptions(g))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	delta := 0.0
	for i := 0; i < 8; i++ {
		for d := 0; d < 3; d++ {
			diff := first.Y.At(i, d) - second.Y.At(i, d)
			delta += diff * diff
		}
	}
	if math.Sqrt(delta) > 1e-6 {
		t.Fatalf("round-trip not a fixed point: ||ΔY||=%g", math.Sqrt(delta))
	}
}

func TestRegisterECPDVanishesAtLargeOmega(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	Y0 := ropeY0(8, 0.014)
	g := make([]float64, 8)
	for i := 1; i < 8; i++ {
		g[i] = g[i-1] + 0.014
	}
	X := noisySample(rng, Y0, 300, 0.0005)

	withoutECPD, err := Register(X, Y0, baseOptions(g))
	if err != nil {
		t.Fatalf("without ecpd: %v", err)
	}

	opts := baseOptions(g)
	opts.UseECPD = true
	opts.Omega = 1e12
	opts.Correspondences = []Correspondence{{Index: 0, Point: [3]float64{0, 0, 0}}}
	withECPD, err := Register(X, Y0, opts)
	if err != nil {
		t.Fatalf("with ecpd: %v", err)
	}

	for i := 0; i < 8; i++ {
		for d := 0; d < 3; d++ {
			diff := withoutECPD.Y.At(i, d) - withECPD.Y.At(i, d)
			if math.Abs(diff) > 1e-4 {
				t.Fatalf("ecpd term did not vanish at large omega: node %d dim %d diff=%g", i, d, diff)
			}
		}
	}
}

func TestRegisterECPDAnchoringStrength(t *testing.T) {
	Y0 := ropeY0(8, 0.014)
	g := make([]float64, 8)
	for i := 1; i < 8; i++ {
		g[i] = g[i-1] + 0.014
	}
	// Single-point noise-free cloud far from the anchor, forcing the fit to
	// rely on the ECPD term alone for the anchored node.
	X := mat.NewDense(1, 3, []float64{0.5, 0.5, 0.5})

	anchor := [3]float64{0.1, 0.2, 0.05}
	opts := baseOptions(g)
	opts.UseECPD = true
	opts.Omega = 1e-6
	opts.Correspondences = []Correspondence{{Index: 3, Point: anchor}}

	result, err := Register(X, Y0, opts)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	dx := result.Y.At(3, 0) - anchor[0]
	dy := result.Y.At(3, 1) - anchor[1]
	dz := result.Y.At(3, 2) - anchor[2]
	d := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if d > 0.0001 {
		t.Fatalf("anchored node drifted %fmm from prior", d*1000)
	}
}

func TestRegisterKernelEquivalenceAtLargeBeta(t *testing.T) {
	Y0 := ropeY0(6, 0.02)
	g := make([]float64, 6)
	for i := 1; i < 6; i++ {
		g[i] = g[i-1] + 0.02
	}
	X := mat.DenseCopyOf(Y0)

	for _, k := range []Kernel{Gaussian, Laplacian} {
		opts := baseOptions(g)
		opts.Kernel = k
		opts.Beta = 1e6
		result, err := Register(X, Y0, opts)
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		for i := 0; i < 6; i++ {
			for d := 0; d < 3; d++ {
				diff := result.Y.At(i, d) - Y0.At(i, d)
				if math.Abs(diff) > 1e-3 {
					t.Fatalf("%s kernel at large beta deformed too much: node %d dim %d diff=%g", k, i, d, diff)
				}
			}
		}
	}
}

func TestRegisterEmptySourceErrors(t *testing.T) {
	Y0 := ropeY0(4, 0.01)
	X := mat.NewDense(0, 3, nil)
	_, err := Register(X, Y0, baseOptions([]float64{0, 0.01, 0.02, 0.03}))
	if err != ErrEmptySource {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
}

func TestApplyVisibilityBlockPartition(t *testing.T) {
	// m=6, occluded={2,3}: head block [0,2), floating block [2,4), tail
	// block [4,6). A column whose best node falls in the head block must be
	// zeroed outside [0,2) and uniform (1/2) within it.
	m := 6
	occluded := []int{2, 3}
	maxPNodes := []int{0, 3, 5}
	P := make([][]float64, m)
	for i := range P {
		P[i] = make([]float64, 3)
		for j := range P[i] {
			P[i][j] = 1
		}
	}
	applyVisibility(P, maxPNodes, occluded, m)

	for i := 0; i < m; i++ {
		// Column 0: best node 0 -> head block [0,2).
		if i < 2 {
			if math.Abs(P[i][0]-0.5) > 1e-12 {
				t.Fatalf("col0 row %d: expected 0.5, got %f", i, P[i][0])
			}
		} else if P[i][0] != 0 {
			t.Fatalf("col0 row %d: expected 0, got %f", i, P[i][0])
		}
		// Column 1: best node 3 -> floating block [2,4).
		if i >= 2 && i < 4 {
			if math.Abs(P[i][1]-0.5) > 1e-12 {
				t.Fatalf("col1 row %d: expected 0.5, got %f", i, P[i][1])
			}
		} else if P[i][1] != 0 {
			t.Fatalf("col1 row %d: expected 0, got %f", i, P[i][1])
		}
		// Column 2: best node 5 -> tail block [4,6).
		if i >= 4 {
			if math.Abs(P[i][2]-0.5) > 1e-12 {
				t.Fatalf("col2 row %d: expected 0.5, got %f", i, P[i][2])
			}
		} else if P[i][2] != 0 {
			t.Fatalf("col2 row %d: expected 0, got %f", i, P[i][2])
		}
	}
}
