package trackdlo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// geodesicTable computes the per-node cumulative arc-length table g and
// total rope length L from an ordered node set Y, the frozen quantities
// spec §3 says the Tracker owns across frames ("g, L: geodesic distance
// table and total length, computed once at initialisation").
func geodesicTable(Y *mat.Dense) (g []float64, length float64) {
	m, _ := Y.Dims()
	g = make([]float64, m)
	for i := 1; i < m; i++ {
		dx := Y.At(i, 0) - Y.At(i-1, 0)
		dy := Y.At(i, 1) - Y.At(i-1, 1)
		dz := Y.At(i, 2) - Y.At(i-1, 2)
		g[i] = g[i-1] + math.Sqrt(dx*dx+dy*dy+dz*dz)
	}
	if m > 0 {
		length = g[m-1]
	}
	return g, length
}

func pointsToDense(pts [][3]float64) *mat.Dense {
	out := mat.NewDense(len(pts), 3, nil)
	for i, p := range pts {
		out.Set(i, 0, p[0])
		out.Set(i, 1, p[1])
		out.Set(i, 2, p[2])
	}
	return out
}

func denseToPoints(m *mat.Dense) [][3]float64 {
	r, _ := m.Dims()
	out := make([][3]float64, r)
	for i := 0; i < r; i++ {
		out[i] = [3]float64{m.At(i, 0), m.At(i, 1), m.At(i, 2)}
	}
	return out
}
