// Package fft contains the native one-dimensional transform kernels used by
// the engine's "native" backend: an iterative radix-2 decimation-in-time
// kernel for power-of-two lengths and a Bluestein chirp-z kernel for the rest.
package fft

import (
	"math"

	m "github.com/cwbudde/aofft/internal/math"
)

// ComputeTwiddleFactors returns the roots of unity for a size-n transform:
// W_n^k = exp(∓2πik/n) for k = 0..n/2-1. The sign is positive when inverse.
func ComputeTwiddleFactors(n int, inverse bool) []complex128 {
	if n <= 0 {
		return nil
	}

	sign := -1.0
	if inverse {
		sign = 1.0
	}

	half := n / 2
	if half == 0 {
		half = 1
	}

	twiddle := make([]complex128, half)
	for k := range half {
		angle := sign * m.TwoPi * float64(k) / float64(n)
		twiddle[k] = complex(math.Cos(angle), math.Sin(angle))
	}

	return twiddle
}

// ComputeChirp returns the Bluestein chirp c_k = exp(∓iπk²/n) for k < n.
// k² is reduced modulo 2n so large lengths keep full angle precision.
func ComputeChirp(n int, inverse bool) []complex128 {
	sign := -1.0
	if inverse {
		sign = 1.0
	}

	chirp := make([]complex128, n)
	mod := 2 * n

	for k := range n {
		kk := (k * k) % mod
		angle := sign * math.Pi * float64(kk) / float64(n)
		chirp[k] = complex(math.Cos(angle), math.Sin(angle))
	}

	return chirp
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return m.IsPowerOf2(n)
}

func sameSlice(a, b []complex128) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	return &a[0] == &b[0]
}
