package fft

import m "github.com/cwbudde/aofft/internal/math"

// radix2 is an iterative decimation-in-time kernel: bit-reversed load
// followed by log2(n) butterfly stages.
type radix2 struct {
	n       int
	twiddle []complex128
	bitrev  []int
	scratch []complex128
}

func newRadix2(n int, inverse bool) *radix2 {
	return &radix2{
		n:       n,
		twiddle: ComputeTwiddleFactors(n, inverse),
		bitrev:  m.ComputeBitReversalIndices(n),
		scratch: make([]complex128, n),
	}
}

func (k *radix2) Len() int { return k.n }

func (k *radix2) Transform(dst, src []complex128) {
	n := k.n
	if n == 1 {
		dst[0] = src[0]
		return
	}

	work := dst[:n]
	if sameSlice(dst, src) {
		copy(k.scratch, src[:n])
		src = k.scratch
	}

	for i, j := range k.bitrev {
		work[i] = src[j]
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := n / size

		for start := 0; start < n; start += size {
			for j := range half {
				w := k.twiddle[j*step]
				a := work[start+j]
				b := w * work[start+j+half]
				work[start+j] = a + b
				work[start+j+half] = a - b
			}
		}
	}
}
