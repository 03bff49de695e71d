// Package registration implements the regularised EM point-set
// registration engine: the Motion Coherence Theory deformation prior, the
// LLE topology prior, the optional ECPD correspondence-anchoring term and
// the geodesic/visibility-aware reweighting used during occluded tracking.
package registration

import "gonum.org/v1/gonum/mat"

// Kernel selects one of the four closed-form node-coherence kernels. It is
// a tagged variant chosen once per EM call; buildKernel switches on it for
// every element of the distance matrix it evaluates.
type Kernel uint8

const (
	Gaussian Kernel = iota
	Laplacian
	FirstOrder
	SecondOrder
)

func (k Kernel) String() string {
	switch k {
	case Gaussian:
		return "gaussian"
	case Laplacian:
		return "laplacian"
	case FirstOrder:
		return "1st-order"
	case SecondOrder:
		return "2nd-order"
	default:
		return "unknown"
	}
}

// Correspondence anchors node Index to a known 3D position, e.g. a marker
// centre observed in the current frame.
type Correspondence struct {
	Index int
	Point [3]float64
}

// Options configures one call to Register. All fields are strictly
// positive except Mu, which must lie in (0,1).
type Options struct {
	Beta, Alpha, Gamma, Mu float64
	IterMax                int
	Tol                    float64

	IncludeLLE bool
	Kernel     Kernel

	// UseGeodesic selects the geodesic kernel form (built from Geodesic
	// arc-length differences instead of Euclidean distance) and enables
	// the geodesic-substitution and visibility-reweighting E-step terms.
	UseGeodesic bool
	// Geodesic is the frozen per-node arc-length table; required when
	// UseGeodesic is set.
	Geodesic []float64

	UsePrevSigma2 bool
	Sigma2Init    float64

	UseECPD         bool
	Correspondences []Correspondence
	Omega           float64

	// Occluded lists node indices classified occluded this frame. When
	// non-empty (and UseGeodesic is set), visibility reweighting is
	// applied in the E-step.
	Occluded []int
}

// Result is the fitted node set and mixture variance from one EM call, plus
// the LLE weight matrix used, kept for inspection/testing (spec §3:
// "Tracker owns ... L").
type Result struct {
	Y      *mat.Dense
	Sigma2 float64
	L      *mat.Dense
}
