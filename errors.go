package aofft

import "errors"

// Sentinel errors returned by engine operations.
var (
	// ErrBackendUnavailable is returned when no registered backend can serve a
	// plan request, even after walking the whole fallback chain.
	ErrBackendUnavailable = errors.New("aofft: no FFT backend available")

	// ErrInvalidShape is returned for empty shapes or non-positive dimensions.
	ErrInvalidShape = errors.New("aofft: invalid shape")

	// ErrInvalidAxes is returned when an axis is out of range or repeated.
	ErrInvalidAxes = errors.New("aofft: invalid axes")

	// ErrNilSlice is returned when a nil slice is passed where data is required.
	ErrNilSlice = errors.New("aofft: nil slice")

	// ErrLengthMismatch is returned when a slice does not match the plan shape.
	ErrLengthMismatch = errors.New("aofft: slice length mismatch")

	// ErrWorkerFailure is returned by a parallel plan when a worker errors,
	// panics or misses the gather deadline.
	ErrWorkerFailure = errors.New("aofft: parallel worker failure")

	// ErrPlanClosed is returned when executing a closed parallel plan.
	ErrPlanClosed = errors.New("aofft: plan closed")
)
