package lgs

import (
	"fmt"

	"github.com/cwbudde/aofft"
	"github.com/cwbudde/aofft/internal/aolib"
	"github.com/cwbudde/aofft/internal/monitoring"
)

// Geometric stacks the layer phases at the launch aperture as if the beam
// crossed them all at one height, then images the aperture.
type Geometric struct {
	*base

	// fovPxls is the aperture sampling giving the subaperture field of
	// view; fovOversize multiplies it up to at least the launch pupil
	// sampling so zooming never discards information.
	fovPxls     int
	fovOversize int
	oversized   int
	// padFactor is the smallest k with k×padding ≥ oversized.
	padFactor int
	fftSize   int

	fft *aofft.Plan[complex128]

	phase    []float64
	pupil    []float64
	pupilMsk []float64
	field    []complex128
	scaled   []complex128
	geoMask  []float64
	focal    []float64
	crop     []float64
	psf      []float64
}

var _ PSFModel = (*Geometric)(nil)

// SetWFSParams implements PSFModel and builds the FFT plan.
func (g *Geometric) SetWFSParams(subapFOVRad float64, subapOversamp, subapFFTPadding int) error {
	if err := g.setWFSParams(subapFOVRad, subapOversamp, subapFFTPadding); err != nil {
		return err
	}

	g.fovPxls = max(roundInt(g.cfg.PupilDiam*subapFOVRad/g.cfg.Wavelength), 1)

	g.fovOversize = 1
	for g.fovPxls*g.fovOversize < g.lgsPupilSize {
		g.fovOversize++
	}

	g.oversized = g.fovPxls * g.fovOversize
	monitoring.Logf("lgs: field of view oversize %d (%d pixels)", g.fovOversize, g.oversized)

	g.padFactor = 1
	for g.padFactor*subapFFTPadding < g.oversized {
		g.padFactor++
	}

	g.fftSize = g.padFactor * subapFFTPadding * g.fovOversize

	fft, err := aofft.NewPlan[complex128]([]int{g.fftSize, g.fftSize}, g.planOptions(aofft.Forward))
	if err != nil {
		return fmt.Errorf("lgs: geometric plan: %w", err)
	}

	n := g.lgsPupilSize
	g.fft = fft
	g.phase = make([]float64, g.simSize*g.simSize)
	g.pupil = make([]float64, n*n)
	g.pupilMsk = aolib.Circle(float64(n)/2, n)
	g.field = make([]complex128, n*n)
	g.scaled = make([]complex128, g.oversized*g.oversized)
	g.geoMask = aolib.Circle(float64(g.oversized)/2, g.oversized)
	g.focal = make([]float64, g.fftSize*g.fftSize)
	g.crop = make([]float64, g.padFactor*subapFFTPadding*g.padFactor*subapFFTPadding)
	g.psf = make([]float64, subapFFTPadding*subapFFTPadding)

	return nil
}

// PadFactor reports the bin-down factor chosen by SetWFSParams.
func (g *Geometric) PadFactor() int { return g.padFactor }

// PSF implements PSFModel.
func (g *Geometric) PSF(screens [][]float64) ([]float64, error) {
	if err := g.configured(); err != nil {
		return nil, err
	}

	if err := g.provider.Phase(g.phase, screens, g.request); err != nil {
		return nil, err
	}

	n := g.lgsPupilSize
	off := (g.simSize - n) / 2
	aolib.Crop(g.pupil, n, g.phase, g.simSize, off, off)

	phs2Rad := g.provider.Phs2Rad()
	for i := range g.pupil {
		g.pupil[i] *= phs2Rad
	}

	removeTipTilt(g.pupil, g.pupilMsk, n)

	// The beam goes up, so the phase is conjugated.
	expPhase(g.field, g.pupil, -1)

	if err := aolib.ZoomComplex(g.scaled, g.oversized, g.field, n); err != nil {
		return nil, err
	}

	applyMask(g.scaled, g.geoMask)

	in := g.fft.Input()
	clear(in)
	aolib.Embed(in, g.fftSize, g.scaled, g.oversized, 0, 0)

	out, err := g.fft.Execute(nil)
	if err != nil {
		return nil, err
	}

	if err := aofft.Shift2D(out, []int{g.fftSize, g.fftSize}); err != nil {
		return nil, err
	}

	intensity(g.focal, out)

	side := g.padFactor * g.padding
	c := (g.fftSize - side) / 2
	aolib.Crop(g.crop, side, g.focal, g.fftSize, c, c)

	if err := aolib.Bin(g.psf, g.crop, side, g.padFactor); err != nil {
		return nil, err
	}

	return g.psf, nil
}

// removeTipTilt subtracts the least-squares tilt over the masked region of
// an n×n phase in place, as the launch telescope's pointing would.
func removeTipTilt(phase, mask []float64, n int) {
	c := float64(n-1) / 2

	var px, py, xx, yy float64

	for r := range n {
		y := float64(r) - c

		for col := range n {
			m := mask[r*n+col]
			if m == 0 {
				continue
			}

			x := float64(col) - c
			v := phase[r*n+col]
			px += v * x * m
			py += v * y * m
			xx += x * x * m
			yy += y * y * m
		}
	}

	var ax, ay float64
	if xx > 0 {
		ax = px / xx
	}

	if yy > 0 {
		ay = py / yy
	}

	for r := range n {
		y := float64(r) - c

		for col := range n {
			phase[r*n+col] -= ax*(float64(col)-c) + ay*y
		}
	}
}

func roundInt(v float64) int {
	if v < 0 {
		return -int(-v + 0.5)
	}

	return int(v + 0.5)
}
