package lgs

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cwbudde/aofft"
	"github.com/cwbudde/aofft/internal/aolib"
)

// Physical propagates the launched beam layer by layer with the angular
// spectrum method, applying each layer's phase on the way up.
type Physical struct {
	*base

	prop  *AngularSpectrum
	order []int
	d1    float64

	mask  []float64
	field []complex128
	phase []float64
	full  []float64
	psf   []float64
}

var _ PSFModel = (*Physical)(nil)

func newPhysical(b *base) (*Physical, error) {
	prop, err := NewAngularSpectrum(b.simSize, b.planOptions(aofft.Forward))
	if err != nil {
		return nil, fmt.Errorf("lgs: physical propagator: %w", err)
	}

	order := make([]int, len(b.heights))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(i, j int) int {
		return cmp.Compare(b.heights[i], b.heights[j])
	})

	n := b.simSize

	return &Physical{
		base:  b,
		prop:  prop,
		order: order,
		d1:    1 / b.pxlScale,
		mask:  aolib.Circle(float64(b.lgsPupilSize)/2, n),
		field: make([]complex128, n*n),
		phase: make([]float64, n*n),
		full:  make([]float64, n*n),
	}, nil
}

// SetWFSParams implements PSFModel.
func (p *Physical) SetWFSParams(subapFOVRad float64, subapOversamp, subapFFTPadding int) error {
	if err := p.setWFSParams(subapFOVRad, subapOversamp, subapFFTPadding); err != nil {
		return err
	}

	p.psf = make([]float64, subapFFTPadding*subapFFTPadding)

	return nil
}

// GridScale is the sampling in metres at the guide star height that matches
// one subaperture focal-plane pixel.
func (p *Physical) GridScale() float64 {
	return p.fovRad * p.cfg.Height / float64(p.padding)
}

// PSF implements PSFModel. Layers at or above the guide star are ignored.
func (p *Physical) PSF(screens [][]float64) ([]float64, error) {
	if err := p.configured(); err != nil {
		return nil, err
	}

	if len(screens) != len(p.heights) {
		return nil, fmt.Errorf("lgs: %d screens for %d layers", len(screens), len(p.heights))
	}

	for i, m := range p.mask {
		p.field[i] = complex(m, 0)
	}

	wvl := p.cfg.Wavelength
	phs2Rad := p.provider.Phs2Rad()

	var height float64

	for _, layer := range p.order {
		h := p.heights[layer]
		if h >= p.cfg.Height {
			break
		}

		if z := h - height; z != 0 {
			if err := p.prop.Propagate(p.field, p.field, wvl, p.d1, p.d1, z); err != nil {
				return nil, err
			}
		}

		if err := p.provider.LayerPhase(p.phase, screens, layer, p.request); err != nil {
			return nil, err
		}

		for i, v := range p.phase {
			p.phase[i] = v * phs2Rad
		}

		applyPhase(p.field, p.phase)

		height = h
	}

	if err := p.prop.Propagate(p.field, p.field, wvl, p.d1, p.GridScale(), p.cfg.Height-height); err != nil {
		return nil, err
	}

	intensity(p.full, p.field)
	aolib.FitCentre(p.psf, p.padding, p.full, p.simSize)

	return p.psf, nil
}

// applyPhase multiplies the field by exp(-i·phase).
func applyPhase(field []complex128, phase []float64) {
	for i, v := range phase {
		field[i] *= chirp(-v)
	}
}
