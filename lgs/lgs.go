// Package lgs models the uplink point spread function of a laser guide star:
// the image of the launched beam at the sodium layer, sampled like a
// Shack-Hartmann subaperture focal plane so it can be convolved with it.
package lgs

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/aofft"
	"github.com/cwbudde/aofft/config"
	"github.com/cwbudde/aofft/los"
)

// ErrNotConfigured is returned by PSF before SetWFSParams.
var ErrNotConfigured = errors.New("lgs: sensor sampling not set")

// PSFModel produces uplink PSFs at sensor subaperture sampling.
type PSFModel interface {
	// SetWFSParams fixes the output sampling: the subaperture field of view
	// in radians spread over subapFFTPadding pixels.
	SetWFSParams(subapFOVRad float64, subapOversamp, subapFFTPadding int) error
	// PSF returns a subapFFTPadding² intensity image. The slice is reused by
	// the next call.
	PSF(screens [][]float64) ([]float64, error)
}

// Options configures a model.
type Options struct {
	// Provider samples the turbulence at the launch aperture. It must
	// return simSize² grids. Nil builds a los.Geometric one.
	Provider los.Provider
	// Plan selects the FFT backend.
	Plan aofft.PlanOptions
}

// New returns the model named by cfg.LGS.Propagation.
func New(cfg config.Config, opts Options) (PSFModel, error) {
	b, err := newBase(cfg, opts)
	if err != nil {
		return nil, err
	}

	switch cfg.LGS.Propagation {
	case config.PropagationGeometric:
		return &Geometric{base: b}, nil
	case config.PropagationPhysical:
		return newPhysical(b)
	default:
		return nil, fmt.Errorf("lgs: unknown propagation %q", cfg.LGS.Propagation)
	}
}

// base holds what both models share: the launch pupil, the line of sight
// from the launch telescope and the output sampling.
type base struct {
	cfg      config.LGS
	simSize  int
	pxlScale float64
	heights  []float64

	provider los.Provider
	request  los.Request
	plan     aofft.PlanOptions

	// lgsPupilSize is the launch aperture diameter in simulation pixels.
	lgsPupilSize int

	fovRad   float64
	oversamp int
	padding  int
}

func newBase(cfg config.Config, opts Options) (*base, error) {
	provider := opts.Provider
	if provider == nil {
		g, err := los.NewGeometric(cfg.Sim, cfg.Atmosphere, cfg.LGS.Wavelength, cfg.Sim.SimSize)
		if err != nil {
			return nil, err
		}

		provider = g
	}

	if provider.OutputSize() != cfg.Sim.SimSize {
		return nil, fmt.Errorf("lgs: provider returns %d² grids, want %d²", provider.OutputSize(), cfg.Sim.SimSize)
	}

	lgsPupil := int(math.Round(cfg.LGS.PupilDiam * cfg.Sim.PxlScale()))
	if lgsPupil < 1 || lgsPupil > cfg.Sim.SimSize {
		return nil, fmt.Errorf("lgs: launch pupil of %d pixels does not fit the %d pixel grid", lgsPupil, cfg.Sim.SimSize)
	}

	const arcsec = math.Pi / (180 * 3600)

	radius := cfg.Sim.TelDiam / 2

	return &base{
		cfg:      cfg.LGS,
		simSize:  cfg.Sim.SimSize,
		pxlScale: cfg.Sim.PxlScale(),
		heights:  append([]float64(nil), cfg.Atmosphere.ScreenHeights...),
		provider: provider,
		request: los.Request{
			Position: [2]float64{cfg.WFS.GSPosition[0] * arcsec, cfg.WFS.GSPosition[1] * arcsec},
			Offset:   [2]float64{cfg.LGS.LaunchPosition[0] * radius, cfg.LGS.LaunchPosition[1] * radius},
		},
		plan:         opts.Plan,
		lgsPupilSize: lgsPupil,
	}, nil
}

func (b *base) setWFSParams(subapFOVRad float64, subapOversamp, subapFFTPadding int) error {
	switch {
	case !(subapFOVRad > 0):
		return fmt.Errorf("lgs: invalid subaperture field of view %g", subapFOVRad)
	case subapFFTPadding < 2 || subapFFTPadding%2 != 0:
		return fmt.Errorf("lgs: subaperture padding must be even, got %d", subapFFTPadding)
	case subapOversamp < 1:
		return fmt.Errorf("lgs: invalid oversampling %d", subapOversamp)
	}

	b.fovRad, b.oversamp, b.padding = subapFOVRad, subapOversamp, subapFFTPadding

	return nil
}

func (b *base) configured() error {
	if b.padding == 0 {
		return ErrNotConfigured
	}

	return nil
}

func (b *base) planOptions(dir aofft.Direction) aofft.PlanOptions {
	opts := b.plan
	opts.Direction = dir
	opts.Axes = nil

	return opts
}

// expPhase writes exp(i·sign·phase) for phase in radians.
func expPhase(dst []complex128, phase []float64, sign float64) {
	for i, p := range phase {
		s, c := math.Sincos(sign * p)
		dst[i] = complex(c, s)
	}
}

// applyMask multiplies a field by a real mask.
func applyMask(field []complex128, mask []float64) {
	for i, m := range mask {
		field[i] *= complex(m, 0)
	}
}

// intensity writes |field|².
func intensity(dst []float64, field []complex128) {
	for i, v := range field {
		dst[i] = real(v)*real(v) + imag(v)*imag(v)
	}
}
