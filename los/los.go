// Package los computes the phase and complex field seen along a guide star's
// line of sight through a stack of turbulence layers.
//
// Phase screens are square arrays in nanometres of optical path, sampled at
// the simulation pixel scale and centred on the telescope axis. Layer heights
// come from the atmosphere configuration.
package los

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/aofft/config"
	"github.com/cwbudde/aofft/internal/aolib"
)

// ErrScreens is returned when the screens do not match the configured layers.
var ErrScreens = errors.New("los: phase screens do not match the atmosphere")

// Request describes one line of sight.
type Request struct {
	// Position is the guide star direction in radians (x, y).
	Position [2]float64
	// Height is the guide star height in metres; 0 is infinity.
	Height float64
	// Offset moves the pupil centre in metres, e.g. to an LGS launch
	// telescope.
	Offset [2]float64
	// PhaseAddition in radians at the output sampling, added before the
	// field is formed. May be nil.
	PhaseAddition []float64
	// Radii overrides the metapupil radius per layer in simulation pixels.
	// Nil derives it from Height.
	Radii []float64
}

// Provider is the line-of-sight collaborator used by the sensors.
type Provider interface {
	// OutputSize is the width of the phase and field grids returned.
	OutputSize() int
	// Phs2Rad converts nanometres of path to radians at the sensing
	// wavelength.
	Phs2Rad() float64
	// Phase writes the summed layer phase in nm at the output sampling.
	Phase(dst []float64, screens [][]float64, req Request) error
	// Field writes exp(i·phase) at the output sampling.
	Field(dst []complex128, screens [][]float64, req Request) error
	// FieldFromPhase zooms a size×size phase in nm to the output sampling
	// and writes its field.
	FieldFromPhase(dst []complex128, phase []float64, size int) error
	// LayerPhase writes one layer's metapupil phase in nm at the
	// simulation sampling.
	LayerPhase(dst []float64, screens [][]float64, layer int, req Request) error
}

// Geometric samples each layer's metapupil with bilinear interpolation and
// sums the layers, ignoring diffraction between them.
type Geometric struct {
	simSize  int
	outSize  int
	pxlScale float64
	phs2Rad  float64
	heights  []float64

	sum   []float64
	layer []float64
	out   []float64
}

var _ Provider = (*Geometric)(nil)

// NewGeometric returns a provider producing outSize×outSize grids for light
// of the given wavelength in metres.
func NewGeometric(sim config.Sim, atmos config.Atmosphere, wavelength float64, outSize int) (*Geometric, error) {
	switch {
	case sim.SimSize < 1 || outSize < 1:
		return nil, fmt.Errorf("los: invalid grid sizes %d→%d", sim.SimSize, outSize)
	case !(wavelength > 0):
		return nil, fmt.Errorf("los: invalid wavelength %g", wavelength)
	case len(atmos.ScreenHeights) == 0:
		return nil, fmt.Errorf("%w: no layers configured", ErrScreens)
	}

	return &Geometric{
		simSize:  sim.SimSize,
		outSize:  outSize,
		pxlScale: sim.PxlScale(),
		phs2Rad:  2 * math.Pi / (wavelength * 1e9),
		heights:  append([]float64(nil), atmos.ScreenHeights...),
		sum:      make([]float64, sim.SimSize*sim.SimSize),
		layer:    make([]float64, sim.SimSize*sim.SimSize),
		out:      make([]float64, outSize*outSize),
	}, nil
}

// OutputSize implements Provider.
func (g *Geometric) OutputSize() int { return g.outSize }

// Phs2Rad implements Provider.
func (g *Geometric) Phs2Rad() float64 { return g.phs2Rad }

// Phase implements Provider.
func (g *Geometric) Phase(dst []float64, screens [][]float64, req Request) error {
	if len(dst) != g.outSize*g.outSize {
		return fmt.Errorf("los: phase buffer has %d values, want %d", len(dst), g.outSize*g.outSize)
	}

	if err := g.checkScreens(screens); err != nil {
		return err
	}

	clear(g.sum)

	for i := range screens {
		if err := g.LayerPhase(g.layer, screens, i, req); err != nil {
			return err
		}

		for j, v := range g.layer {
			g.sum[j] += v
		}
	}

	return aolib.Zoom(dst, g.outSize, g.sum, g.simSize)
}

// Field implements Provider.
func (g *Geometric) Field(dst []complex128, screens [][]float64, req Request) error {
	if len(dst) != g.outSize*g.outSize {
		return fmt.Errorf("los: field buffer has %d values, want %d", len(dst), g.outSize*g.outSize)
	}

	if req.PhaseAddition != nil && len(req.PhaseAddition) != len(dst) {
		return fmt.Errorf("los: phase addition has %d values, want %d", len(req.PhaseAddition), len(dst))
	}

	if err := g.Phase(g.out, screens, req); err != nil {
		return err
	}

	for i, p := range g.out {
		phs := p * g.phs2Rad
		if req.PhaseAddition != nil {
			phs += req.PhaseAddition[i]
		}

		dst[i] = complex(math.Cos(phs), math.Sin(phs))
	}

	return nil
}

// FieldFromPhase implements Provider.
func (g *Geometric) FieldFromPhase(dst []complex128, phase []float64, size int) error {
	if len(dst) != g.outSize*g.outSize {
		return fmt.Errorf("los: field buffer has %d values, want %d", len(dst), g.outSize*g.outSize)
	}

	if err := aolib.Zoom(g.out, g.outSize, phase, size); err != nil {
		return err
	}

	for i, p := range g.out {
		s, c := math.Sincos(p * g.phs2Rad)
		dst[i] = complex(c, s)
	}

	return nil
}

// LayerPhase implements Provider. The metapupil is centred on the screen
// centre moved by the line of sight at the layer height and shrinks by the
// cone factor 1-h/H for a guide star at finite height H.
func (g *Geometric) LayerPhase(dst []float64, screens [][]float64, layer int, req Request) error {
	if layer < 0 || layer >= len(g.heights) || layer >= len(screens) {
		return fmt.Errorf("%w: layer %d out of range", ErrScreens, layer)
	}

	if len(dst) != g.simSize*g.simSize {
		return fmt.Errorf("los: layer buffer has %d values, want %d", len(dst), g.simSize*g.simSize)
	}

	screen := screens[layer]

	n := int(math.Sqrt(float64(len(screen))))
	if n*n != len(screen) || n < g.simSize {
		return fmt.Errorf("%w: layer %d screen has %d values", ErrScreens, layer, len(screen))
	}

	h := g.heights[layer]

	scale := 1.0

	switch {
	case req.Radii != nil:
		if layer >= len(req.Radii) {
			return fmt.Errorf("%w: no metapupil radius for layer %d", ErrScreens, layer)
		}

		scale = 2 * req.Radii[layer] / float64(g.simSize)
	case req.Height > 0:
		if h >= req.Height {
			clear(dst)
			return nil
		}

		scale = 1 - h/req.Height
	}

	centre := float64(n-1) / 2
	cx := centre + (req.Position[0]*h+req.Offset[0])*g.pxlScale
	cy := centre + (req.Position[1]*h+req.Offset[1])*g.pxlScale
	half := float64(g.simSize-1) / 2

	for r := range g.simSize {
		y := cy + (float64(r)-half)*scale

		for c := range g.simSize {
			x := cx + (float64(c)-half)*scale
			dst[r*g.simSize+c] = bilinear(screen, n, y, x)
		}
	}

	return nil
}

func (g *Geometric) checkScreens(screens [][]float64) error {
	if len(screens) != len(g.heights) {
		return fmt.Errorf("%w: got %d screens for %d layers", ErrScreens, len(screens), len(g.heights))
	}

	return nil
}

// bilinear samples the n×n image at fractional (y, x), clamping at the edges.
func bilinear(img []float64, n int, y, x float64) float64 {
	y = min(max(y, 0), float64(n-1))
	x = min(max(x, 0), float64(n-1))

	y0, x0 := int(y), int(x)
	y1, x1 := min(y0+1, n-1), min(x0+1, n-1)
	fy, fx := y-float64(y0), x-float64(x0)

	top := img[y0*n+x0]*(1-fx) + img[y0*n+x1]*fx
	bottom := img[y1*n+x0]*(1-fx) + img[y1*n+x1]*fx

	return top*(1-fy) + bottom*fy
}
