package centroid

import (
	"fmt"
	"math/cmplx"

	"github.com/cwbudde/aofft"
)

func (c *Centroider) initCorrelation() error {
	n := c.size * c.size

	switch {
	case c.size%2 != 0:
		return fmt.Errorf("centroid: correlation needs an even image size, got %d", c.size)
	case len(c.opts.Reference) == 0 || len(c.opts.Reference)%n != 0:
		return fmt.Errorf("%w: %d values for %d×%d images", ErrReference, len(c.opts.Reference), c.size, c.size)
	}

	shape := []int{c.size, c.size}

	fwdOpts := c.opts.Plan
	fwdOpts.Direction = aofft.Forward

	fwd, err := aofft.NewPlan[complex128](shape, fwdOpts)
	if err != nil {
		return err
	}

	bwdOpts := c.opts.Plan
	bwdOpts.Direction = aofft.Backward

	bwd, err := aofft.NewPlan[complex128](shape, bwdOpts)
	if err != nil {
		return err
	}

	c.fwd, c.bwd = fwd, bwd

	for off := 0; off < len(c.opts.Reference); off += n {
		spec, err := c.spectrum(c.opts.Reference[off : off+n])
		if err != nil {
			return err
		}

		c.refFFT = append(c.refFFT, append([]complex128(nil), spec...))
	}

	return nil
}

func (c *Centroider) spectrum(img []float64) ([]complex128, error) {
	in := c.fwd.Input()
	for i, v := range img {
		in[i] = complex(v, 0)
	}

	return c.fwd.Execute(nil)
}

// correlate finds the thresholded centre of gravity of the circular
// cross-correlation between img and the reference, with zero lag moved to
// the image centre.
func (c *Centroider) correlate(img []float64, index int) ([2]float64, error) {
	ref := c.refFFT[0]
	if len(c.refFFT) > 1 {
		if index >= len(c.refFFT) {
			return [2]float64{}, fmt.Errorf("%w: no reference for image %d", ErrReference, index)
		}

		ref = c.refFFT[index]
	}

	spec, err := c.spectrum(img)
	if err != nil {
		return [2]float64{}, err
	}

	in := c.bwd.Input()
	for i, v := range spec {
		in[i] = v * cmplx.Conj(ref[i])
	}

	out, err := c.bwd.Execute(nil)
	if err != nil {
		return [2]float64{}, err
	}

	if err := aofft.Shift2D(out, []int{c.size, c.size}); err != nil {
		return [2]float64{}, err
	}

	for i, v := range out {
		c.scratch[i] = real(v)
	}

	applyThreshold(c.scratch, c.opts.Threshold)

	for i, v := range c.scratch {
		c.scratch[i] = max(v, 0)
	}

	return gravity(c.scratch, c.size, 0), nil
}
