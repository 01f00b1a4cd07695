package fft

import m "github.com/cwbudde/aofft/internal/math"

// bluestein evaluates an arbitrary-length DFT as a circular convolution of
// power-of-two length via the chirp-z identity kn = (k² + n² - (k-n)²)/2.
type bluestein struct {
	n       int
	m       int
	chirp   []complex128
	filter  []complex128 // forward transform of the conjugate chirp
	work    []complex128
	forward *radix2
	inverse *radix2
}

func newBluestein(n int, inverse bool) *bluestein {
	size := m.NextPowerOf2(2*n - 1)
	chirp := ComputeChirp(n, inverse)

	b := &bluestein{
		n:       n,
		m:       size,
		chirp:   chirp,
		filter:  make([]complex128, size),
		work:    make([]complex128, size),
		forward: newRadix2(size, false),
		inverse: newRadix2(size, true),
	}

	b.filter[0] = conjugate(chirp[0])
	for k := 1; k < n; k++ {
		c := conjugate(chirp[k])
		b.filter[k] = c
		b.filter[size-k] = c
	}

	b.forward.Transform(b.filter, b.filter)

	return b
}

func (b *bluestein) Len() int { return b.n }

func (b *bluestein) Transform(dst, src []complex128) {
	work := b.work
	for k := range b.n {
		work[k] = src[k] * b.chirp[k]
	}

	clear(work[b.n:])

	b.forward.Transform(work, work)

	for i := range work {
		work[i] *= b.filter[i]
	}

	b.inverse.Transform(work, work)

	scale := complex(1/float64(b.m), 0)
	for k := range b.n {
		dst[k] = work[k] * scale * b.chirp[k]
	}
}

func conjugate(v complex128) complex128 {
	return complex(real(v), -imag(v))
}
