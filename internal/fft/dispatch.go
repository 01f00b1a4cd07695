package fft

import (
	"errors"
	"fmt"
)

// ErrInvalidLength is returned for non-positive transform lengths.
var ErrInvalidLength = errors.New("fft: invalid length")

// Strategy selects the kernel family used for a length.
type Strategy uint8

const (
	// StrategyAuto uses radix-2 for powers of two and Bluestein otherwise.
	StrategyAuto Strategy = iota
	// StrategyRadix2 requires a power-of-two length.
	StrategyRadix2
	// StrategyBluestein works for any length.
	StrategyBluestein
)

// String returns a human-readable name for the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyRadix2:
		return "radix2"
	case StrategyBluestein:
		return "bluestein"
	default:
		return "unknown"
	}
}

// Kernel transforms one contiguous line of complex128 samples.
//
// Kernels own scratch space and are not safe for concurrent use; callers keep
// one kernel per goroutine. dst and src may be the same slice.
type Kernel interface {
	Len() int
	Transform(dst, src []complex128)
}

// NewKernel returns an unnormalized kernel of length n in the requested
// direction.
func NewKernel(n int, inverse bool, strategy Strategy) (Kernel, error) {
	if n < 1 {
		return nil, ErrInvalidLength
	}

	switch strategy {
	case StrategyAuto:
		if IsPowerOfTwo(n) {
			return newRadix2(n, inverse), nil
		}

		return newBluestein(n, inverse), nil
	case StrategyRadix2:
		if !IsPowerOfTwo(n) {
			return nil, fmt.Errorf("%w: radix-2 needs a power of two, got %d", ErrInvalidLength, n)
		}

		return newRadix2(n, inverse), nil
	case StrategyBluestein:
		return newBluestein(n, inverse), nil
	default:
		return nil, fmt.Errorf("fft: unknown strategy %d", strategy)
	}
}
