// Package reference holds the O(n²) discrete Fourier transform used as the
// always-available engine backend and as the oracle in tests.
package reference

import (
	"math"
	"math/rand/v2"
)

// NaiveDFT returns the unnormalized forward DFT of src (sign exp(-2πi kn/N)).
func NaiveDFT(src []complex128) []complex128 {
	dst := make([]complex128, len(src))
	Transform(dst, src, false)

	return dst
}

// NaiveIDFT returns the unnormalized backward DFT of src (sign exp(+2πi kn/N)).
func NaiveIDFT(src []complex128) []complex128 {
	dst := make([]complex128, len(src))
	Transform(dst, src, true)

	return dst
}

// Transform writes the unnormalized DFT of src into dst. dst and src must not
// alias and must have equal length.
func Transform(dst, src []complex128, inverse bool) {
	n := len(src)
	if n == 0 {
		return
	}

	sign := -1.0
	if inverse {
		sign = 1.0
	}

	for k := range n {
		var sum complex128

		for j, v := range src {
			// Reduce k*j modulo n before scaling to keep the angle small.
			angle := sign * 2 * math.Pi * float64((k*j)%n) / float64(n)
			sum += v * complex(math.Cos(angle), math.Sin(angle))
		}

		dst[k] = sum
	}
}

// RandomComplex returns n deterministic pseudo-random values in [-1, 1).
func RandomComplex(n int, seed uint64) []complex128 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]complex128, n)

	for i := range out {
		out[i] = complex(rng.Float64()*2-1, rng.Float64()*2-1)
	}

	return out
}
