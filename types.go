package aofft

import "fmt"

// Complex is the element constraint for engine buffers.
type Complex interface {
	complex64 | complex128
}

// Direction selects the sign of the transform exponent.
type Direction uint8

const (
	// Forward uses exp(-2πi kn/N) and is unnormalized.
	Forward Direction = iota
	// Backward uses exp(+2πi kn/N) and is unnormalized; callers scale.
	Backward
)

// String returns "forward" or "backward".
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Flags tune plan construction and execution.
type Flags uint32

const (
	// FlagEstimate picks the backend from wisdom or the preference chain
	// without timing anything. It is the zero value.
	FlagEstimate Flags = 0
	// FlagMeasure times every capable backend on the plan's shape at
	// construction and records the fastest in the wisdom cache.
	FlagMeasure Flags = 1 << iota
	// FlagDestroyInput lets the plan transform its input buffer in place;
	// Execute then returns the input buffer.
	FlagDestroyInput
)

// Precision is the element type of a plan's buffers.
type Precision uint8

const (
	PrecisionComplex64 Precision = iota
	PrecisionComplex128
)

// String returns the Go type name of the precision.
func (p Precision) String() string {
	if p == PrecisionComplex64 {
		return "complex64"
	}

	return "complex128"
}

// precisionOf reports the precision of T.
func precisionOf[T Complex]() Precision {
	var zero T
	if _, ok := any(zero).(complex64); ok {
		return PrecisionComplex64
	}

	return PrecisionComplex128
}

// BackendTag names a transform backend.
type BackendTag string

const (
	// BackendAuto lets the engine take the highest ranked available backend.
	BackendAuto BackendTag = ""
	// BackendGPU executes on a device registered through package gpu.
	BackendGPU BackendTag = "gpu"
	// BackendNative runs the radix-2/Bluestein kernels in internal/fft.
	BackendNative BackendTag = "native"
	// BackendGonum runs gonum's dsp/fourier complex transforms.
	BackendGonum BackendTag = "gonum"
	// BackendReference is the O(n²) DFT; it is always available.
	BackendReference BackendTag = "reference"
)
