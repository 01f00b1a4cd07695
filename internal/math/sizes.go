package math

import "math"

// TwoPi is 2π with full float64 precision.
const TwoPi = 2.0 * math.Pi

// IsPowerOf2 reports whether n is a positive power of two.
func IsPowerOf2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOf2 returns the smallest power of two >= n. It returns 1 for n <= 1.
func NextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}

// Product returns the product of dims, or 0 for an empty slice.
func Product(dims []int) int {
	if len(dims) == 0 {
		return 0
	}

	p := 1
	for _, d := range dims {
		p *= d
	}

	return p
}

// Strides returns the row-major element strides for shape.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1

	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}

	return strides
}
