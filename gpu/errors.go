package gpu

import "errors"

var (
	// ErrNoBackend is returned when no GPU backend is registered.
	ErrNoBackend = errors.New("aofft/gpu: no backend registered")

	// ErrBackendUnavailable is returned when the backend is registered but not available
	// on the current system (e.g., no device, driver missing).
	ErrBackendUnavailable = errors.New("aofft/gpu: backend unavailable")

	// ErrNotImplemented is returned for buffer or precision combinations a
	// device does not handle.
	ErrNotImplemented = errors.New("aofft/gpu: not implemented")

	// ErrInvalidLength is returned for invalid plan sizes.
	ErrInvalidLength = errors.New("aofft/gpu: invalid length")

	// ErrNilSlice is returned when dst or src is nil.
	ErrNilSlice = errors.New("aofft/gpu: nil slice")

	// ErrLengthMismatch is returned when dst or src lengths are not as required.
	ErrLengthMismatch = errors.New("aofft/gpu: length mismatch")
)
