package lgs

import (
	"fmt"
	"math"

	"github.com/cwbudde/aofft"
)

// AngularSpectrum propagates square fields between parallel planes with the
// two-scale angular spectrum method: the source grid spacing d1 maps to the
// destination spacing d2 through chirp factors on either side of a Fresnel
// transfer function.
type AngularSpectrum struct {
	n     int
	shape []int
	fwd   *aofft.Plan[complex128]
	bwd   *aofft.Plan[complex128]
}

// NewAngularSpectrum returns a propagator for n×n fields. n must be even.
func NewAngularSpectrum(n int, opts aofft.PlanOptions) (*AngularSpectrum, error) {
	if n < 2 || n%2 != 0 {
		return nil, fmt.Errorf("lgs: angular spectrum needs an even grid, got %d", n)
	}

	shape := []int{n, n}

	opts.Axes = nil
	opts.Direction = aofft.Forward

	fwd, err := aofft.NewPlan[complex128](shape, opts)
	if err != nil {
		return nil, err
	}

	opts.Direction = aofft.Backward

	bwd, err := aofft.NewPlan[complex128](shape, opts)
	if err != nil {
		return nil, err
	}

	return &AngularSpectrum{n: n, shape: shape, fwd: fwd, bwd: bwd}, nil
}

// Size returns the grid width.
func (a *AngularSpectrum) Size() int { return a.n }

// Propagate moves src, sampled at d1 metres, a distance z metres at
// wavelength wvl and writes the result sampled at d2 metres into dst.
// dst may alias src.
func (a *AngularSpectrum) Propagate(dst, src []complex128, wvl, d1, d2, z float64) error {
	n := a.n
	if len(src) != n*n || len(dst) != n*n {
		return fmt.Errorf("%w: propagate %d and %d values on a %d² grid", aofft.ErrLengthMismatch, len(src), len(dst), n)
	}

	if z == 0 {
		copy(dst, src)
		return nil
	}

	k := 2 * math.Pi / wvl
	m := d2 / d1
	df1 := 1 / (float64(n) * d1)
	half := float64(n / 2)

	// Q1: source chirp, scaled by 1/m.
	in := a.fwd.Input()
	q1 := k / 2 * (1 - m) / z

	for r := range n {
		y := (float64(r) - half) * d1

		for c := range n {
			x := (float64(c) - half) * d1
			in[r*n+c] = src[r*n+c] * chirp(q1*(x*x+y*y)) / complex(m, 0)
		}
	}

	spec, err := a.transform(a.fwd)
	if err != nil {
		return err
	}

	// Q2: Fresnel transfer function, with the forward transform's d1² scale.
	bin := a.bwd.Input()
	q2 := -math.Pi * math.Pi * 2 * z / m / k
	s1 := complex(d1*d1, 0)

	for r := range n {
		fy := (float64(r) - half) * df1

		for c := range n {
			fx := (float64(c) - half) * df1
			bin[r*n+c] = spec[r*n+c] * s1 * chirp(q2*(fx*fx+fy*fy))
		}
	}

	out, err := a.transform(a.bwd)
	if err != nil {
		return err
	}

	// Q3: destination chirp, with the inverse transform's df1² scale.
	q3 := k / 2 * (m - 1) / (m * z)
	s2 := complex(df1*df1, 0)

	for r := range n {
		y := (float64(r) - half) * d2

		for c := range n {
			x := (float64(c) - half) * d2
			dst[r*n+c] = out[r*n+c] * s2 * chirp(q3*(x*x+y*y))
		}
	}

	return nil
}

// transform runs a centred transform: shift, execute, shift.
func (a *AngularSpectrum) transform(p *aofft.Plan[complex128]) ([]complex128, error) {
	if err := aofft.Shift2D(p.Input(), a.shape); err != nil {
		return nil, err
	}

	out, err := p.Execute(nil)
	if err != nil {
		return nil, err
	}

	if err := aofft.Shift2D(out, a.shape); err != nil {
		return nil, err
	}

	return out, nil
}

func chirp(phase float64) complex128 {
	s, c := math.Sincos(phase)
	return complex(c, s)
}
