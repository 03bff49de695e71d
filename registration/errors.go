package registration

import "errors"

// Sentinel errors map 1:1 onto the ErrorKind values the tracker surfaces;
// callers use errors.Is to classify a failure per spec §7's policy table.
var (
	ErrEmptySource        = errors.New("registration: observed point cloud X has zero rows")
	ErrSingularSystem     = errors.New("registration: M-step linear system could not be factored")
	ErrDegenerateVariance = errors.New("registration: sigma^2 underflowed to machine epsilon")
)

// machineEps mirrors numpy's np.finfo(float).eps floor used to guard
// division by a zero probability mass column.
const machineEps = 2.220446049250313e-16
