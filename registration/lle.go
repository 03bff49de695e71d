package registration

import (
	"gonum.org/v1/gonum/mat"
)

// lleHalfWidth is k in "2k nearest-in-index neighbours (k=3)".
const lleHalfWidth = 3

// lleTikhonov is the regularisation added to a singular local Gram matrix.
const lleTikhonov = 1e-5

// nearestIndices returns the neighbour indices used to reconstruct node idx
// among M nodes, picking k indices on each side and reflecting at the ends
// so every node gets 2k neighbours. Chains with M <= 2k give every node the
// other M-1 nodes instead.
func nearestIndices(k, m, idx int) []int {
	switch {
	case idx-k < 0:
		extra := k - idx
		hi := idx + k + extra
		if hi > m-1 {
			hi = m - 1
		}
		indices := make([]int, 0, 2*k)
		for i := 0; i < idx; i++ {
			indices = append(indices, i)
		}
		for i := idx + 1; i <= hi; i++ {
			indices = append(indices, i)
		}
		return indices
	case idx+k >= m:
		lastIndex := m - 1
		extra := idx + k - lastIndex
		lo := idx - k - extra
		if lo < 0 {
			lo = 0
		}
		indices := make([]int, 0, 2*k)
		for i := lo; i < idx; i++ {
			indices = append(indices, i)
		}
		for i := idx + 1; i <= lastIndex; i++ {
			indices = append(indices, i)
		}
		return indices
	default:
		indices := make([]int, 0, 2*k)
		for i := idx - k; i < idx; i++ {
			indices = append(indices, i)
		}
		for i := idx + 1; i <= idx+k; i++ {
			indices = append(indices, i)
		}
		return indices
	}
}

// buildLLE constructs the sparse LLE weight matrix L (rows sum to 1) and
// the operator H = (I-L)^T(I-L), reconstructing each node from its
// index-nearest neighbours along the chain (§4.1 "LLE operator").
func buildLLE(Y0 *mat.Dense) (L, H *mat.Dense, err error) {
	m, _ := Y0.Dims()
	L = mat.NewDense(m, m, nil)

	for i := 0; i < m; i++ {
		indices := nearestIndices(lleHalfWidth, m, i)
		n := len(indices)

		// component[:,k] = Y0[i] - Y0[indices[k]]
		gi := mat.NewDense(n, n, nil)
		comp := make([][3]float64, n)
		for k, idx := range indices {
			comp[k] = [3]float64{
				Y0.At(i, 0) - Y0.At(idx, 0),
				Y0.At(i, 1) - Y0.At(idx, 1),
				Y0.At(i, 2) - Y0.At(idx, 2),
			}
		}
		for a := 0; a < n; a++ {
			for b := a; b < n; b++ {
				v := comp[a][0]*comp[b][0] + comp[a][1]*comp[b][1] + comp[a][2]*comp[b][2]
				gi.Set(a, b, v)
				gi.Set(b, a, v)
			}
		}

		ones := mat.NewVecDense(n, nil)
		for k := 0; k < n; k++ {
			ones.SetVec(k, 1)
		}

		w := mat.NewVecDense(n, nil)
		if err := w.SolveVec(gi, ones); err != nil {
			// Singular Gram matrix: fall back to Tikhonov regularisation.
			for d := 0; d < n; d++ {
				gi.Set(d, d, gi.At(d, d)+lleTikhonov)
			}
			if err := w.SolveVec(gi, ones); err != nil {
				return nil, nil, err
			}
		}

		sum := 0.0
		for k := 0; k < n; k++ {
			sum += w.AtVec(k)
		}
		if sum == 0 {
			sum = 1
		}
		for k, idx := range indices {
			L.Set(i, idx, w.AtVec(k)/sum)
		}
	}

	identity := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		identity.Set(i, i, 1)
	}
	var imL mat.Dense
	imL.Sub(identity, L)
	H = mat.NewDense(m, m, nil)
	H.Mul(imL.T(), &imL)
	return L, H, nil
}
