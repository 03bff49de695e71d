package registration

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Register runs the regularised EM point-set registration loop of spec
// §4.1: an MCT deformation prior, an LLE topology prior (its operator is
// always built; its M-step term is applied only when IncludeLLE is set), an
// optional ECPD correspondence-anchoring term and, when UseGeodesic is
// set, geodesic substitution and occlusion-aware visibility reweighting in
// the E-step.
//
// Failure to converge within IterMax is not an error: the latest Y and σ²
// are returned. A singular M-step system or an underflowing σ² abort the
// call with a sentinel error from this package.
func Register(X, Y0 *mat.Dense, opts Options) (Result, error) {
	n0, _ := X.Dims()
	if n0 == 0 {
		return Result{}, ErrEmptySource
	}
	m, _ := Y0.Dims()

	Xext := X
	p := len(opts.Correspondences)
	if opts.UseECPD && p > 0 {
		Xext = mat.NewDense(n0+p, 3, nil)
		for i, c := range opts.Correspondences {
			Xext.Set(i, 0, c.Point[0])
			Xext.Set(i, 1, c.Point[1])
			Xext.Set(i, 2, c.Point[2])
		}
		for i := 0; i < n0; i++ {
			Xext.Set(p+i, 0, X.At(i, 0))
			Xext.Set(p+i, 1, X.At(i, 1))
			Xext.Set(p+i, 2, X.At(i, 2))
		}
	}
	n, _ := Xext.Dims()

	var distNonSquared *mat.Dense
	if opts.UseGeodesic {
		distNonSquared = geodesicDistances(opts.Geodesic)
	} else {
		distNonSquared = pairwiseDistances(Y0)
	}
	G := buildKernel(distNonSquared, opts.Kernel, opts.Beta)

	sigma2 := opts.Sigma2Init
	if !opts.UsePrevSigma2 {
		sum := 0.0
		for i := 0; i < n; i++ {
			for j := 0; j < m; j++ {
				dx := Xext.At(i, 0) - Y0.At(j, 0)
				dy := Xext.At(i, 1) - Y0.At(j, 1)
				dz := Xext.At(i, 2) - Y0.At(j, 2)
				sum += dx*dx + dy*dy + dz*dz
			}
		}
		sigma2 = sum / (3 * float64(m) * float64(n))
	}

	L, H, err := buildLLE(Y0)
	if err != nil {
		return Result{}, ErrSingularSystem
	}

	Y := mat.DenseCopyOf(Y0)

	for iter := 0; iter < opts.IterMax; iter++ {
		distSq := squaredDistanceMatrix(Y, Xext) // M x N

		P := make([][]float64, m)
		for i := range P {
			P[i] = make([]float64, n)
			for j := 0; j < n; j++ {
				P[i][j] = math.Exp(-distSq[i][j] / (2 * sigma2))
			}
		}
		cBase := math.Pow(2*math.Pi*sigma2, 1.5) * opts.Mu / (1 - opts.Mu) * float64(m) / float64(n)
		normalizeColumns(P, cBase)

		var maxPNodes []int
		if opts.UseGeodesic {
			maxPNodes = argmaxColumns(P)
			geodesicSubstitute(P, distSq, Y, Xext, opts.Geodesic, maxPNodes)

			for i := 0; i < m; i++ {
				for j := 0; j < n; j++ {
					P[i][j] = math.Exp(-distSq[i][j] / (2 * sigma2))
				}
			}

			if len(opts.Occluded) > 0 {
				applyVisibility(P, maxPNodes, opts.Occluded, m)
				cVis := math.Pow(2*math.Pi*sigma2, 1.5) * opts.Mu / (1 - opts.Mu) / float64(n)
				normalizeColumns(P, cVis)
			} else {
				normalizeColumns(P, cBase)
			}
		}

		pt1 := make([]float64, n) // column sums
		p1 := make([]float64, m)  // row sums
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				p1[i] += P[i][j]
				pt1[j] += P[i][j]
			}
		}
		np := 0.0
		for _, v := range p1 {
			np += v
		}

		PX := mat.NewDense(m, 3, nil)
		for i := 0; i < m; i++ {
			var x, y, z float64
			for j := 0; j < n; j++ {
				x += P[i][j] * Xext.At(j, 0)
				y += P[i][j] * Xext.At(j, 1)
				z += P[i][j] * Xext.At(j, 2)
			}
			PX.Set(i, 0, x)
			PX.Set(i, 1, y)
			PX.Set(i, 2, z)
		}

		A := scaleRows(G, p1)
		for i := 0; i < m; i++ {
			A.Set(i, i, A.At(i, i)+opts.Alpha*sigma2)
		}
		B := mat.NewDense(m, 3, nil)
		B.Sub(PX, scaleRows(Y0, p1))

		if opts.IncludeLLE {
			var hg mat.Dense
			hg.Mul(H, G)
			hg.Scale(sigma2*opts.Gamma, &hg)
			A.Add(A, &hg)

			var hy mat.Dense
			hy.Mul(H, Y0)
			hy.Scale(sigma2*opts.Gamma, &hy)
			B.Sub(B, &hy)
		}

		if opts.UseECPD {
			ptilde1, ptildeX := ecpdTerms(P, Xext, opts.Correspondences, m, p)

			scaled := scaleRows(G, ptilde1)
			scaled.Scale(sigma2/opts.Omega, scaled)
			A.Add(A, scaled)

			diagTerm := scaleRows(Y0, ptilde1)
			if opts.IncludeLLE {
				var hy mat.Dense
				hy.Mul(H, Y0)
				hy.Scale(sigma2*opts.Gamma, &hy)
				diagTerm.Add(diagTerm, &hy)
			}
			ecpdB := mat.NewDense(m, 3, nil)
			ecpdB.Sub(ptildeX, diagTerm)
			ecpdB.Scale(sigma2/opts.Omega, ecpdB)
			B.Add(B, ecpdB)
		}

		var W mat.Dense
		if err := W.Solve(A, B); err != nil {
			return Result{}, ErrSingularSystem
		}

		var GW mat.Dense
		GW.Mul(G, &W)
		T := mat.NewDense(m, 3, nil)
		T.Add(Y0, &GW)

		trXtPt1X := 0.0
		for j := 0; j < n; j++ {
			x, y, z := Xext.At(j, 0), Xext.At(j, 1), Xext.At(j, 2)
			trXtPt1X += pt1[j] * (x*x + y*y + z*z)
		}
		trPXtT := 0.0
		for i := 0; i < m; i++ {
			trPXtT += PX.At(i, 0)*T.At(i, 0) + PX.At(i, 1)*T.At(i, 1) + PX.At(i, 2)*T.At(i, 2)
		}
		trTtP1T := 0.0
		for i := 0; i < m; i++ {
			x, y, z := T.At(i, 0), T.At(i, 1), T.At(i, 2)
			trTtP1T += p1[i] * (x*x + y*y + z*z)
		}
		newSigma2 := (trXtPt1X - 2*trPXtT + trTtP1T) / (np * 3)
		if newSigma2 <= machineEps {
			return Result{}, ErrDegenerateVariance
		}

		delta := 0.0
		for i := 0; i < m; i++ {
			for d := 0; d < 3; d++ {
				diff := Y.At(i, d) - T.At(i, d)
				delta += diff * diff
			}
		}

		Y = T
		sigma2 = newSigma2
		if delta < opts.Tol {
			break
		}
	}

	return Result{Y: Y, Sigma2: sigma2, L: L}, nil
}

func squaredDistanceMatrix(Y, X *mat.Dense) [][]float64 {
	m, _ := Y.Dims()
	n, _ := X.Dims()
	d := make([][]float64, m)
	for i := 0; i < m; i++ {
		d[i] = make([]float64, n)
		yx, yy, yz := Y.At(i, 0), Y.At(i, 1), Y.At(i, 2)
		for j := 0; j < n; j++ {
			dx := yx - X.At(j, 0)
			dy := yy - X.At(j, 1)
			dz := yz - X.At(j, 2)
			d[i][j] = dx*dx + dy*dy + dz*dz
		}
	}
	return d
}

func normalizeColumns(P [][]float64, c float64) {
	m := len(P)
	if m == 0 {
		return
	}
	n := len(P[0])
	for j := 0; j < n; j++ {
		den := 0.0
		for i := 0; i < m; i++ {
			den += P[i][j]
		}
		if den == 0 {
			den = machineEps
		}
		den += c
		for i := 0; i < m; i++ {
			P[i][j] /= den
		}
	}
}

// argmaxColumns returns, for each column, the row index of the maximum
// value, with ties broken toward the lower index.
func argmaxColumns(P [][]float64) []int {
	m := len(P)
	n := len(P[0])
	res := make([]int, n)
	for j := 0; j < n; j++ {
		best, bestV := 0, P[0][j]
		for i := 1; i < m; i++ {
			if P[i][j] > bestV {
				bestV = P[i][j]
				best = i
			}
		}
		res[j] = best
	}
	return res
}

// geodesicSubstitute rewrites distSq in place using arc-length geodesic
// distances for the observations whose second-best node assignment is
// unambiguous, per §4.1 step 2. Columns where the second-best node equals
// the best node (max==second, spec §9 open question a) are left at their
// Euclidean value.
func geodesicSubstitute(P [][]float64, distSq [][]float64, Y, X *mat.Dense, g []float64, maxPNodes []int) {
	m := len(P)
	n := len(P[0])

	for j := 0; j < n; j++ {
		mx := maxPNodes[j]
		p1 := mx - 1
		if p1 < 0 {
			p1 = 1
		}
		p2 := mx + 1
		if p2 > m-1 {
			p2 = m - 2
		}

		var second int
		if P[p1][j] > P[p2][j] {
			second = p1
		} else {
			second = p2
		}
		if second == mx {
			continue
		}

		disToMax := euclidean(Y, mx, X, j)
		disToSecond := euclidean(Y, second, X, j)

		lo, hi := mx, second
		loDis, hiDis := disToMax, disToSecond
		if mx > second {
			lo, hi = second, mx
			loDis, hiDis = disToSecond, disToMax
		}
		// lo < hi: pivot `lo` covers [0, lo], pivot `hi` covers [hi, m-1].
		for i := 0; i <= lo; i++ {
			d := math.Abs(g[lo]-g[i]) + loDis
			distSq[i][j] = d * d
		}
		for i := hi; i < m; i++ {
			d := math.Abs(g[hi]-g[i]) + hiDis
			distSq[i][j] = d * d
		}
	}
}

func euclidean(Y *mat.Dense, i int, X *mat.Dense, j int) float64 {
	dx := Y.At(i, 0) - X.At(j, 0)
	dy := Y.At(i, 1) - X.At(j, 1)
	dz := Y.At(i, 2) - X.At(j, 2)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// applyVisibility reweights P in place per §4.1 step 3: each observation's
// column is masked to a uniform density over whichever of the head,
// floating or tail node blocks contains its (pre-substitution) best node.
func applyVisibility(P [][]float64, maxPNodes []int, occluded []int, m int) {
	mHead := occluded[0]
	mTail := m - 1 - occluded[len(occluded)-1]
	floatCount := m - mHead - mTail

	for j, mx := range maxPNodes {
		var lo, hi int
		var density float64
		switch {
		case mx < mHead:
			lo, hi, density = 0, mHead, 1/float64(mHead)
		case mx >= m-mTail:
			lo, hi, density = m-mTail, m, 1/float64(mTail)
		default:
			lo, hi, density = mHead, m-mTail, 1/float64(floatCount)
		}
		for i := 0; i < m; i++ {
			if i >= lo && i < hi {
				P[i][j] *= density
			} else {
				P[i][j] = 0
			}
		}
	}
}

// ecpdTerms builds the row-sum vector P̃1 and the M×3 matrix P̃X for the
// ECPD anchoring term. When static correspondences are supplied, P̃ anchors
// the prepended rows of X to their declared node index; otherwise it is the
// hard assignment argmax_m P[m,n]=m.
func ecpdTerms(P [][]float64, X *mat.Dense, correspondences []Correspondence, m, p int) (ptilde1 []float64, ptildeX *mat.Dense) {
	ptilde1 = make([]float64, m)
	ptildeX = mat.NewDense(m, 3, nil)

	if len(correspondences) > 0 {
		for i, c := range correspondences {
			if i >= p {
				break
			}
			ptilde1[c.Index]++
			ptildeX.Set(c.Index, 0, ptildeX.At(c.Index, 0)+X.At(i, 0))
			ptildeX.Set(c.Index, 1, ptildeX.At(c.Index, 1)+X.At(i, 1))
			ptildeX.Set(c.Index, 2, ptildeX.At(c.Index, 2)+X.At(i, 2))
		}
		return ptilde1, ptildeX
	}

	assignment := argmaxColumns(P)
	for j, a := range assignment {
		ptilde1[a]++
		ptildeX.Set(a, 0, ptildeX.At(a, 0)+X.At(j, 0))
		ptildeX.Set(a, 1, ptildeX.At(a, 1)+X.At(j, 1))
		ptildeX.Set(a, 2, ptildeX.At(a, 2)+X.At(j, 2))
	}
	return ptilde1, ptildeX
}

// scaleRows returns a copy of M with row i scaled by v[i], i.e. diag(v)*M.
func scaleRows(M *mat.Dense, v []float64) *mat.Dense {
	r, c := M.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, M.At(i, j)*v[i])
		}
	}
	return out
}
