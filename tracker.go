package trackdlo

import (
	"image"
	"math"

	"github.com/zhao-harry/trackdlo/markers"
	"github.com/zhao-harry/trackdlo/overlay"
	"github.com/zhao-harry/trackdlo/preprocess"
	"github.com/zhao-harry/trackdlo/registration"

	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/mat"
)

// Tracker owns the per-frame state spec §3 and §4.4 assign to it: the
// current node estimate Y, mixture variance σ², the frozen geodesic table
// g and total length L, the LLE weight matrix, and the previous frame's
// head anchor used to keep marker-chain orientation stable.
type Tracker struct {
	Config Config
	Logger kitlog.Logger

	Y           *mat.Dense
	Sigma2      float64
	Geodesic    []float64
	TotalLen    float64
	L           *mat.Dense
	Head        *markers.Point
	Initialized bool
}

// NewTracker constructs a Tracker against cfg, logging through logger using
// a flat key/value convention. A nil logger is replaced with
// kitlog.NewNopLogger.
func NewTracker(cfg Config, logger kitlog.Logger) *Tracker {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Tracker{Config: cfg, Logger: logger}
}

// InitializeFromMarkers seeds the tracker from an unordered marker-blob
// detection: orders the markers into a chain (spec §4.3), freezes the
// geodesic table and total length from that chain, and runs the init-stage
// EM registration against the observed point cloud X, with each ordered
// marker as an ECPD correspondence prior for the node of the same index, to
// obtain Y₀'s fitted positions (spec §4.4 "Initialisation").
func (t *Tracker) InitializeFromMarkers(X *mat.Dense, rawMarkers []markers.Point) error {
	if n, _ := X.Dims(); n == 0 {
		return newTrackingError(EmptyForegroundCloud, "tracker", "init: observed point cloud is empty")
	}

	chain, err := markers.Order(rawMarkers, t.Config.OppositeSideGuard)
	if err != nil {
		t.Logger.Log("level", "warning", "subsys", "markers", "message", "chain break during init", "error", err)
		return newTrackingError(MarkerChainBreak, "markers", "%v", err)
	}
	ordered, head := markers.Reconcile(chain, t.Head, t.Config.ReverseChainThreshold)
	t.Head = &head

	Y0 := pointsToDense(pointsFromMarkers(ordered))
	g, length := geodesicTable(Y0)

	// Each ordered marker anchors the node of the same index.
	corr := make([]registration.Correspondence, len(ordered))
	for i, p := range ordered {
		corr[i] = registration.Correspondence{Index: i, Point: [3]float64(p)}
	}

	opts := registration.Options{
		Beta: t.Config.Init.Beta, Alpha: t.Config.Init.Alpha, Gamma: t.Config.Init.Gamma, Mu: t.Config.Init.Mu,
		IterMax: t.Config.Init.IterMax, Tol: t.Config.Init.Tol,
		IncludeLLE:      true,
		Kernel:          t.Config.Init.Kernel,
		UseECPD:         true,
		Correspondences: corr,
		Omega:           t.Config.Init.Omega,
	}
	result, err := registration.Register(X, Y0, opts)
	if err != nil {
		t.Logger.Log("level", "error", "subsys", "registration", "message", "init EM failed", "error", err)
		return t.wrapRegistrationError(err)
	}

	t.Y = result.Y
	t.Sigma2 = result.Sigma2
	t.L = result.L
	t.Geodesic = g
	t.TotalLen = length
	t.Initialized = true

	t.Logger.Log("level", "info", "subsys", "tracker", "message", "initialised", "nodes", len(g), "length(m)", length)
	return nil
}

// StepFrame advances the tracker by one frame: pre-processing (guide-node
// pass, visibility classification, correspondence synthesis) followed by
// the tracking-stage EM registration using the track-stage kernel and ECPD
// anchoring to the synthesised correspondences (spec §4.4 "Per-frame
// update").
func (t *Tracker) StepFrame(X *mat.Dense, mask *preprocess.Mask) error {
	if !t.Initialized {
		return newTrackingError(EmptyForegroundCloud, "tracker", "step called before initialisation")
	}
	if n, _ := X.Dims(); n == 0 {
		return newTrackingError(EmptyForegroundCloud, "tracker", "step: observed point cloud is empty")
	}

	th := preprocess.Thresholds{
		MaskDistance:    t.Config.MaskDistanceThreshold,
		EndVisibility:   t.Config.EndVisibilityThreshold,
		LengthTolerance: t.Config.LengthTolerance,
		SplineSpacing:   t.Config.SplineSampleSpacing,
	}
	pre, err := preprocess.Run(X, t.Y, t.Geodesic, t.TotalLen, mask, t.Config.Intrinsics, t.Config.ImageWidth, t.Config.ImageHeight, th)
	if err != nil {
		t.Logger.Log("level", "error", "subsys", "preprocess", "message", "guide pass failed", "error", err)
		return t.wrapRegistrationError(err)
	}

	opts := registration.Options{
		Beta: t.Config.Track.Beta, Alpha: t.Config.Track.Alpha, Gamma: t.Config.Track.Gamma, Mu: t.Config.Track.Mu,
		IterMax: t.Config.Track.IterMax, Tol: t.Config.Track.Tol,
		IncludeLLE:      true,
		Kernel:          t.Config.Track.Kernel,
		UseGeodesic:     true,
		Geodesic:        t.Geodesic,
		Occluded:        pre.Occluded,
		UseECPD:         len(pre.Correspondences) > 0,
		Correspondences: pre.Correspondences,
		Omega:           t.Config.Track.Omega,
		UsePrevSigma2:   true,
		Sigma2Init:      t.Sigma2,
	}
	result, err := registration.Register(X, t.Y, opts)
	if err != nil {
		t.Logger.Log("level", "error", "subsys", "registration", "message", "tracking EM failed", "error", err)
		return t.wrapRegistrationError(err)
	}

	t.Y = result.Y
	t.Sigma2 = result.Sigma2
	t.L = result.L
	t.Logger.Log("level", "debug", "subsys", "tracker", "message", "frame tracked", "sigma2", t.Sigma2, "occluded", len(pre.Occluded))
	return nil
}

// FrameError reports the `/mct_predict/error` metric: the index-aligned
// sum of per-node Euclidean displacement against a reference point set of
// the same length as Y, divided by M-1. Callers typically pass either the
// guide-node pass output (internal consistency) or ground-truth marker
// positions (accuracy).
func (t *Tracker) FrameError(reference []markers.Point) (float64, error) {
	if !t.Initialized {
		return 0, newTrackingError(EmptyForegroundCloud, "tracker", "frame error requested before initialisation")
	}
	m, _ := t.Y.Dims()
	if len(reference) != m {
		return 0, newTrackingError(EmptyForegroundCloud, "tracker", "reference set has %d points, want %d", len(reference), m)
	}
	if m <= 1 {
		return 0, nil
	}
	sum := 0.0
	for i := 0; i < m; i++ {
		dx := t.Y.At(i, 0) - reference[i][0]
		dy := t.Y.At(i, 1) - reference[i][1]
		dz := t.Y.At(i, 2) - reference[i][2]
		sum += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return sum / float64(m-1), nil
}

// Render draws the current node estimate (coloured by occlusion), connected
// by a polyline, plus groundTruth marker positions, onto base — the
// `/mct_predict/tracking_img` visualisation published per frame. occluded
// should be the most recent pre-processing pass's occluded index set, or
// nil when nothing is occluded.
func (t *Tracker) Render(base image.Image, occluded []int, groundTruth []markers.Point) *image.RGBA {
	nodes := denseToPoints(t.Y)
	occSet := make(map[int]bool, len(occluded))
	for _, i := range occluded {
		occSet[i] = true
	}
	gt := make([][3]float64, len(groundTruth))
	for i, p := range groundTruth {
		gt[i] = [3]float64(p)
	}
	return overlay.Render(base, nodes, occSet, gt, t.Config.Intrinsics)
}

// wrapRegistrationError maps a registration/markers sentinel error onto the
// TrackingError taxonomy, per the error handling policy (spec §7).
func (t *Tracker) wrapRegistrationError(err error) error {
	switch {
	case err == registration.ErrEmptySource:
		return newTrackingError(EmptyForegroundCloud, "registration", "%v", err)
	case err == registration.ErrSingularSystem:
		return newTrackingError(SingularLinearSystem, "registration", "%v", err)
	case err == registration.ErrDegenerateVariance:
		return newTrackingError(DegenerateVariance, "registration", "%v", err)
	default:
		return newTrackingError(SingularLinearSystem, "registration", "%v", err)
	}
}

func pointsFromMarkers(pts []markers.Point) [][3]float64 {
	out := make([][3]float64, len(pts))
	for i, p := range pts {
		out[i] = [3]float64(p)
	}
	return out
}
