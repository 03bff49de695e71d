package registration

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// pairwiseDistances returns the M×M matrix of Euclidean distances between
// the rows of Y (an M×3 dense point matrix).
func pairwiseDistances(Y *mat.Dense) *mat.Dense {
	m, _ := Y.Dims()
	d := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		xi, yi, zi := Y.At(i, 0), Y.At(i, 1), Y.At(i, 2)
		for j := i; j < m; j++ {
			dx, dy, dz := xi-Y.At(j, 0), yi-Y.At(j, 1), zi-Y.At(j, 2)
			v := math.Sqrt(dx*dx + dy*dy + dz*dz)
			d.Set(i, j, v)
			d.Set(j, i, v)
		}
	}
	return d
}

// geodesicDistances returns the M×M matrix of |g[i]-g[j]| arc-length
// differences.
func geodesicDistances(g []float64) *mat.Dense {
	m := len(g)
	d := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			v := math.Abs(g[i] - g[j])
			d.Set(i, j, v)
			d.Set(j, i, v)
		}
	}
	return d
}

// buildKernel evaluates one of the four closed forms of §4.1 element-wise
// over a distance matrix d (non-squared: Euclidean or geodesic).
func buildKernel(d *mat.Dense, kernel Kernel, beta float64) *mat.Dense {
	m, _ := d.Dims()
	g := mat.NewDense(m, m, nil)
	sqrt2, sqrt3 := math.Sqrt2, math.Sqrt(3)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			dij := d.At(i, j)
			var v float64
			switch kernel {
			case Gaussian:
				v = math.Exp(-(dij * dij) / (2 * beta * beta))
			case Laplacian:
				v = math.Exp(-dij / (2 * beta * beta))
			case FirstOrder:
				v = 1 / (4 * beta * beta) * math.Exp(-sqrt2*dij/beta) * (sqrt2*dij + beta)
			case SecondOrder:
				v = 27 / (72 * beta * beta * beta) * math.Exp(-sqrt3*dij/beta) *
					(sqrt3*beta*beta + 3*beta*dij + sqrt3*dij*dij)
			default:
				v = math.Exp(-(dij * dij) / (2 * beta * beta))
			}
			g.Set(i, j, v)
		}
	}
	return g
}
