// Package preprocess implements the visibility-aware pre-processing stage
// of spec §4.2: a coarse EM guide-node pass, head/tail visibility
// classification, mask-projection of guide nodes, and cubic-spline
// resampling of the visible segments to synthesise correspondence priors
// and the occluded-node set for the following tracking registration call.
package preprocess

import (
	"math"

	"github.com/zhao-harry/trackdlo/camera"
	"github.com/zhao-harry/trackdlo/registration"

	"gonum.org/v1/gonum/mat"
)

// Thresholds bundles the pixel/metric cutoffs spec §6 enumerates as
// configuration options for this stage.
type Thresholds struct {
	MaskDistance    float64 // pixels
	EndVisibility   float64 // metres
	LengthTolerance float64 // metres
	SplineSpacing   float64 // metres
}

// Result is what one pre-processing pass hands to the following tracking
// registration call.
type Result struct {
	GuideNodes      *mat.Dense
	Correspondences []registration.Correspondence
	Occluded        []int
}

// GuidePassOptions returns the fixed EM hyper-parameters spec §4.2 names
// for the coarse guide-node pass: β=10, α=γ=1, μ=0.2, 30 iterations,
// include_lle, use_geodesic, Laplacian kernel, no ECPD, no occlusion.
func GuidePassOptions(geodesic []float64) registration.Options {
	return registration.Options{
		Beta: 10, Alpha: 1, Gamma: 1, Mu: 0.2,
		IterMax: 30, Tol: 1e-5,
		IncludeLLE:  true,
		UseGeodesic: true,
		Geodesic:    geodesic,
		Kernel:      registration.Laplacian,
	}
}

// Run executes the full §4.2 pipeline. g is the frozen per-node geodesic
// arc-length table and totalLen its last entry; B is the current frame's
// foreground mask; intrinsics/imgW/imgH project guide nodes for the
// mask-visibility test.
func Run(X, Y0 *mat.Dense, g []float64, totalLen float64, B *Mask, intrinsics camera.Intrinsics, imgW, imgH int, th Thresholds) (Result, error) {
	opts := GuidePassOptions(g)
	guideResult, err := registration.Register(X, Y0, opts)
	if err != nil {
		return Result{}, err
	}
	guide := guideResult.Y
	m, _ := guide.Dims()

	headDisp := pointDist(guide, 0, Y0, 0)
	tailDisp := pointDist(guide, m-1, Y0, m-1)
	headVisible := headDisp < th.EndVisibility
	tailVisible := tailDisp < th.EndVisibility
	if !headVisible && !tailVisible {
		if headDisp < tailDisp {
			headVisible = true
		} else {
			tailVisible = true
		}
	}

	_, curLen := arcLength(guide)

	lengthPreserved := func() Result {
		return Result{
			GuideNodes: guide,
			Correspondences: []registration.Correspondence{
				{Index: 0, Point: rowPoint(guide, 0)},
				{Index: m - 1, Point: rowPoint(guide, m-1)},
			},
			Occluded: nil,
		}
	}

	if math.Abs(curLen-totalLen) < th.LengthTolerance {
		return lengthPreserved(), nil
	}

	dist := distanceToForeground(B)
	validHead, validTail := maskValidity(guide, intrinsics, imgW, imgH, dist, th.MaskDistance)

	switch {
	case headVisible && tailVisible:
		if len(validHead) == 0 || len(validTail) == 0 {
			return lengthPreserved(), nil
		}
		headC, lastHead, err := headCorrespondences(guide, g, validHead, th.SplineSpacing)
		if err != nil {
			return Result{}, err
		}
		tailC, lastTail, err := tailCorrespondences(guide, g, validTail, th.SplineSpacing)
		if err != nil {
			return Result{}, err
		}
		occluded := indexRange(lastHead+1, lastTail)
		return Result{GuideNodes: guide, Correspondences: append(headC, tailC...), Occluded: occluded}, nil

	case headVisible:
		if len(validHead) == 0 {
			return lengthPreserved(), nil
		}
		headC, lastHead, err := headCorrespondences(guide, g, validHead, th.SplineSpacing)
		if err != nil {
			return Result{}, err
		}
		occluded := indexRange(lastHead+1, m)
		return Result{GuideNodes: guide, Correspondences: headC, Occluded: occluded}, nil

	default: // tailVisible
		if len(validTail) == 0 {
			return lengthPreserved(), nil
		}
		tailC, lastTail, err := tailCorrespondences(guide, g, validTail, th.SplineSpacing)
		if err != nil {
			return Result{}, err
		}
		occluded := indexRange(0, lastTail)
		return Result{GuideNodes: guide, Correspondences: tailC, Occluded: occluded}, nil
	}
}

// maskValidity projects every guide node and classifies it valid when its
// projected pixel lies within maskDis of the observed foreground mask,
// then returns the maximal contiguous valid prefix/suffix node index
// lists (spec §4.2 "Mask projection").
func maskValidity(guide *mat.Dense, intrinsics camera.Intrinsics, imgW, imgH int, dist [][]float64, maskDis float64) (headPrefix, tailSuffix []int) {
	m, _ := guide.Dims()
	valid := make([]bool, m)
	for i := 0; i < m; i++ {
		u, v, ok := intrinsics.Project(guide.At(i, 0), guide.At(i, 1), guide.At(i, 2), imgW, imgH)
		if !ok {
			valid[i] = false
			continue
		}
		valid[i] = dist[v][u] < maskDis
	}
	for i := 0; i < m; i++ {
		if !valid[i] {
			break
		}
		headPrefix = append(headPrefix, i)
	}
	for i := m - 1; i >= 0; i-- {
		if !valid[i] {
			break
		}
		tailSuffix = append([]int{i}, tailSuffix...)
	}
	return headPrefix, tailSuffix
}

// headCorrespondences spline-resamples the valid head segment and emits
// correspondence rows for every node whose geodesic coordinate falls
// within the resampled segment's length (spec §4.2 "Spline resampling").
func headCorrespondences(guide *mat.Dense, g []float64, validHead []int, spacing float64) ([]registration.Correspondence, int, error) {
	segment := selectRows(guide, validHead)
	spline, splineLen, err := fitSpline(segment, spacing)
	if err != nil {
		return nil, -1, err
	}
	lastVisible := -1
	for i, coord := range g {
		if coord <= splineLen {
			lastVisible = i
		}
	}
	out := make([]registration.Correspondence, 0, lastVisible+1)
	for i := 0; i <= lastVisible; i++ {
		mm := int(g[i] * 1000)
		out = append(out, registration.Correspondence{Index: i, Point: rowPoint(spline, clampRow(spline, mm))})
	}
	return out, lastVisible, nil
}

// tailCorrespondences is the mirror of headCorrespondences, indexing by
// arc length measured backward from node M-1.
func tailCorrespondences(guide *mat.Dense, g []float64, validTail []int, spacing float64) ([]registration.Correspondence, int, error) {
	m := len(g)
	// Replicate the python order: nodes M-1, M-2, ..., down to the first
	// invalid index, i.e. validTail reversed.
	reversedIdx := make([]int, len(validTail))
	for i, idx := range validTail {
		reversedIdx[len(validTail)-1-i] = idx
	}
	segment := selectRows(guide, reversedIdx)
	spline, splineLen, err := fitSpline(segment, spacing)
	if err != nil {
		return nil, -1, err
	}

	fromTail := make([]float64, m)
	for i := 0; i < m; i++ {
		fromTail[i] = math.Abs(g[m-1-i] - g[m-1])
	}
	count := 0
	for _, c := range fromTail {
		if c <= splineLen {
			count++
		} else {
			break
		}
	}
	lastVisibleIndexTail := m - count

	out := make([]registration.Correspondence, 0, count)
	for k := 0; k < count; k++ {
		idx := m - 1 - k
		mm := int(fromTail[k] * 1000)
		out = append(out, registration.Correspondence{Index: idx, Point: rowPoint(spline, clampRow(spline, mm))})
	}
	return out, lastVisibleIndexTail, nil
}

func clampRow(m *mat.Dense, row int) int {
	r, _ := m.Dims()
	if row < 0 {
		return 0
	}
	if row >= r {
		return r - 1
	}
	return row
}

func selectRows(m *mat.Dense, rows []int) *mat.Dense {
	out := mat.NewDense(len(rows), 3, nil)
	for i, r := range rows {
		out.Set(i, 0, m.At(r, 0))
		out.Set(i, 1, m.At(r, 1))
		out.Set(i, 2, m.At(r, 2))
	}
	return out
}

func rowPoint(m *mat.Dense, row int) [3]float64 {
	return [3]float64{m.At(row, 0), m.At(row, 1), m.At(row, 2)}
}

func pointDist(a *mat.Dense, ai int, b *mat.Dense, bi int) float64 {
	dx := a.At(ai, 0) - b.At(bi, 0)
	dy := a.At(ai, 1) - b.At(bi, 1)
	dz := a.At(ai, 2) - b.At(bi, 2)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func arcLength(pts *mat.Dense) ([]float64, float64) {
	n, _ := pts.Dims()
	coords := make([]float64, n)
	for i := 1; i < n; i++ {
		coords[i] = coords[i-1] + pointDist(pts, i, pts, i-1)
	}
	total := 0.0
	if n > 0 {
		total = coords[n-1]
	}
	return coords, total
}

func indexRange(lo, hi int) []int {
	if hi <= lo {
		return nil
	}
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}
