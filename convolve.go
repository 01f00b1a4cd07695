package aofft

import (
	"fmt"

	"github.com/cwbudde/aofft/internal/fft"
)

// Convolver computes circular 2-D convolutions of real images through the
// convolution theorem. It owns two forward plans and one backward plan and is
// not safe for concurrent use.
type Convolver struct {
	h, w int
	fwdA *Plan[complex128]
	fwdB *Plan[complex128]
	bwd  *Plan[complex128]
}

// NewConvolver creates a convolver for h×w images. opts.Axes and
// opts.Direction are ignored.
func NewConvolver(h, w int, opts PlanOptions) (*Convolver, error) {
	shape := []int{h, w}
	opts.Axes = nil

	opts.Direction = Forward

	fwdA, err := NewPlan[complex128](shape, opts)
	if err != nil {
		return nil, err
	}

	fwdB, err := NewPlan[complex128](shape, opts)
	if err != nil {
		return nil, err
	}

	opts.Direction = Backward

	bwd, err := NewPlan[complex128](shape, opts)
	if err != nil {
		return nil, err
	}

	return &Convolver{h: h, w: w, fwdA: fwdA, fwdB: fwdB, bwd: bwd}, nil
}

// Convolve writes the circular convolution of a and b into dst.
// All three slices must hold h*w values; dst may alias a or b.
func (c *Convolver) Convolve(dst, a, b []float64) error {
	if dst == nil || a == nil || b == nil {
		return ErrNilSlice
	}

	n := c.h * c.w
	if len(dst) != n || len(a) != n || len(b) != n {
		return fmt.Errorf("%w: convolve needs %d values", ErrLengthMismatch, n)
	}

	inA, inB := c.fwdA.Input(), c.fwdB.Input()
	for i := range n {
		inA[i] = complex(a[i], 0)
		inB[i] = complex(b[i], 0)
	}

	fa, err := c.fwdA.Execute(nil)
	if err != nil {
		return err
	}

	fb, err := c.fwdB.Execute(nil)
	if err != nil {
		return err
	}

	prod := c.bwd.Input()
	for i := range n {
		prod[i] = fa[i] * fb[i]
	}

	out, err := c.bwd.Execute(nil)
	if err != nil {
		return err
	}

	fft.ScaleComplex128InPlace(out, 1/float64(n))

	for i := range n {
		dst[i] = real(out[i])
	}

	return nil
}

// Convolve2D is a one-shot circular convolution of two h×w real images.
func Convolve2D(dst, a, b []float64, h, w int) error {
	c, err := NewConvolver(h, w, PlanOptions{})
	if err != nil {
		return err
	}

	return c.Convolve(dst, a, b)
}
