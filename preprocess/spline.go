package preprocess

import (
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

// fitSpline fits an interpolating natural cubic spline through pts,
// parameterised by cumulative arc length, then evaluates it at
// k = ceil(length/spacing) (at least 2) parameter values spread uniformly
// from the first to the last point, so consecutive samples lie
// length/(k-1) apart rather than exactly spacing apart (spec §4.2
// "cubic-spline-resamples the visible head and/or tail guide segments at
// 1 mm resolution"). It returns the resampled polyline and its total length.
//
// scipy.interpolate.splprep(s=1e-4) fits a *smoothing* spline; gonum has
// no direct equivalent (see DESIGN.md / SPEC_FULL.md open questions), so
// this interpolates through the (already EM-smoothed) guide nodes instead.
func fitSpline(pts *mat.Dense, spacing float64) (resampled *mat.Dense, length float64, err error) {
	n, _ := pts.Dims()
	if n < 2 {
		return pts, 0, nil
	}

	u := make([]float64, n)
	for i := 1; i < n; i++ {
		dx := pts.At(i, 0) - pts.At(i-1, 0)
		dy := pts.At(i, 1) - pts.At(i-1, 1)
		dz := pts.At(i, 2) - pts.At(i-1, 2)
		u[i] = u[i-1] + math.Sqrt(dx*dx+dy*dy+dz*dz)
	}
	total := u[n-1]
	if total == 0 {
		return pts, 0, nil
	}

	var splineX, splineY, splineZ interp.NaturalCubic
	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = pts.At(i, 0)
		ys[i] = pts.At(i, 1)
		zs[i] = pts.At(i, 2)
	}
	if err := splineX.Fit(u, xs); err != nil {
		return nil, 0, err
	}
	if err := splineY.Fit(u, ys); err != nil {
		return nil, 0, err
	}
	if err := splineZ.Fit(u, zs); err != nil {
		return nil, 0, err
	}

	k := int(math.Ceil(total / spacing))
	if k < 2 {
		k = 2
	}
	out := mat.NewDense(k, 3, nil)
	prev := [3]float64{xs[0], ys[0], zs[0]}
	length = 0
	for i := 0; i < k; i++ {
		uu := total * float64(i) / float64(k-1)
		cur := [3]float64{splineX.Predict(uu), splineY.Predict(uu), splineZ.Predict(uu)}
		out.Set(i, 0, cur[0])
		out.Set(i, 1, cur[1])
		out.Set(i, 2, cur[2])
		if i > 0 {
			dx, dy, dz := cur[0]-prev[0], cur[1]-prev[1], cur[2]-prev[2]
			length += math.Sqrt(dx*dx + dy*dy + dz*dz)
		}
		prev = cur
	}
	return out, length, nil
}
