package trackdlo

import "fmt"

// ErrorKind enumerates the failure modes the registration pipeline can
// surface, per the error handling policy: some abort the current frame and
// leave tracker state untouched, others degrade gracefully or skip the
// frame entirely.
type ErrorKind uint8

const (
	// SingularLinearSystem means the M-step's A matrix could not be
	// factored even with the α·σ²·I regularisation term. Fatal for the
	// current call; the caller must leave tracker state unchanged.
	SingularLinearSystem ErrorKind = iota
	// EmptyValidPrefix means mask projection left no visible head or tail
	// segment where one was expected. Callers should degrade to the
	// length-preserved case rather than treat this as fatal.
	EmptyValidPrefix
	// MarkerChainBreak means the opposite-closest search failed mid-chain
	// while ordering markers.
	MarkerChainBreak
	// EmptyForegroundCloud means the observed point cloud X had zero rows.
	EmptyForegroundCloud
	// DegenerateVariance means σ² underflowed to (or below) machine
	// epsilon during the M-step variance update.
	DegenerateVariance
)

func (k ErrorKind) String() string {
	switch k {
	case SingularLinearSystem:
		return "singular-linear-system"
	case EmptyValidPrefix:
		return "empty-valid-prefix"
	case MarkerChainBreak:
		return "marker-chain-break"
	case EmptyForegroundCloud:
		return "empty-foreground-cloud"
	case DegenerateVariance:
		return "degenerate-variance"
	default:
		return "unknown"
	}
}

// TrackingError carries one of the kinds above plus the subsystem detail
// that triggered it.
type TrackingError struct {
	Kind    ErrorKind
	Subsys  string
	Message string
}

func (e *TrackingError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Subsys, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Subsys, e.Kind, e.Message)
}

// Is allows errors.Is(err, SomeKind) style matching against a sentinel
// TrackingError that only sets Kind.
func (e *TrackingError) Is(target error) bool {
	other, ok := target.(*TrackingError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newTrackingError(kind ErrorKind, subsys, format string, args ...any) *TrackingError {
	return &TrackingError{Kind: kind, Subsys: subsys, Message: fmt.Sprintf(format, args...)}
}
