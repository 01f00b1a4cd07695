// Package wfs simulates wavefront sensor frames: the field along the guide
// star's line of sight is imaged to a focal plane, read out onto a noisy
// detector and reduced to slopes.
//
// A WFS runs frames synchronously and reuses its buffers, so the detector
// plane and slope vector it returns are only valid until the next Frame.
package wfs

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cwbudde/aofft"
	"github.com/cwbudde/aofft/config"
	"github.com/cwbudde/aofft/internal/aolib"
	"github.com/cwbudde/aofft/internal/monitoring"
	"github.com/cwbudde/aofft/los"
)

// ErrShapeMismatch is returned when a calibration screen or correction is
// not a single simSize×simSize array.
var ErrShapeMismatch = errors.New("wfs: phase array has the wrong sampling")

const arcsec = math.Pi / (180 * 3600)

// Type identifies a sensor variant.
type Type int

const (
	TypeShackHartmann Type = iota
	TypePyramid
)

func (t Type) String() string {
	switch t {
	case TypeShackHartmann:
		return config.TypeShackHartmann
	case TypePyramid:
		return config.TypePyramid
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType maps a configuration name to a Type.
func ParseType(name string) (Type, error) {
	switch name {
	case config.TypeShackHartmann:
		return TypeShackHartmann, nil
	case config.TypePyramid:
		return TypePyramid, nil
	default:
		return 0, fmt.Errorf("wfs: unknown sensor type %q", name)
	}
}

// State is the stage a frame last reached.
type State int

const (
	Idle State = iota
	PhaseAcquired
	FocalPlaneAccumulated
	DetectorSynthesized
	SlopesExtracted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PhaseAcquired:
		return "phase acquired"
	case FocalPlaneAccumulated:
		return "focal plane accumulated"
	case DetectorSynthesized:
		return "detector synthesized"
	case SlopesExtracted:
		return "slopes extracted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FrameOptions modify one Frame call.
type FrameOptions struct {
	// Correction in nm on the simSize×simSize grid is removed from the
	// phase before imaging.
	Correction []float64
	// NoReadout stops after the focal plane; no detector or slopes.
	NoReadout bool
	// Calibration measures a static response: screens must be a single
	// simSize×simSize phase, and elongation, noise, tip/tilt removal and
	// the LGS uplink are off for the call.
	Calibration bool
}

// sensor is implemented by each variant. The WFS drives the frame; the
// variant owns the focal plane, detector and slopes.
type sensor interface {
	fieldSize() int
	calcFocalPlane(field []complex128, weight float64) error
	makeDetectorPlane(screens [][]float64) error
	calculateSlopes() error
	zero(detector bool)
	detectorPlane() []float64
	slopeVector() []float64
	close() error
}

// settings are the frame-level switches calibration overrides. Variants
// read them through a shared pointer.
type settings struct {
	photonNoise bool
	readNoise   float64
	removeTT    bool
	angleNoise  float64
	uplink      bool
	calibrating bool
}

type options struct {
	src      rand.Source
	provider los.Provider
	mask     []float64
	plan     *aofft.PlanOptions
}

// Option configures New.
type Option func(*options)

// WithRand sets the noise source. The default is seeded from cfg.Sim.Seed.
func WithRand(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

// WithProvider replaces the line-of-sight provider. Its OutputSize must match
// the sensor's field sampling.
func WithProvider(p los.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithMask sets the simSize×simSize pupil mask. The default is a circle of
// diameter pupilSize.
func WithMask(mask []float64) Option {
	return func(o *options) { o.mask = mask }
}

// WithPlanOptions sets the FFT backend, threads and flags for every plan the
// sensor builds. The default follows cfg.Sim.
func WithPlanOptions(opts aofft.PlanOptions) Option {
	return func(o *options) { o.plan = &opts }
}

// WFS is one wavefront sensor.
type WFS struct {
	cfg   config.Config
	typ   Type
	state State

	settings *settings
	noise    *noise
	plan     aofft.PlanOptions

	mask     []float64
	provider los.Provider
	sensor   sensor

	request los.Request
	layers  []ElongationLayer

	field []complex128
	corr  []float64
}

// New builds the sensor named by cfg.WFS.Type. A Shack-Hartmann sensor runs
// one calibration frame to capture its static slope offsets.
func New(cfg config.Config, opts ...Option) (*WFS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	typ, err := ParseType(cfg.WFS.Type)
	if err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.src == nil {
		o.src = rand.NewPCG(cfg.Sim.Seed, cfg.Sim.Seed^0x9e3779b97f4a7c15)
	}

	sim := cfg.Sim
	mask := o.mask

	switch {
	case mask == nil:
		mask = aolib.Circle(float64(sim.PupilSize)/2, sim.SimSize)
	case len(mask) != sim.SimSize*sim.SimSize:
		return nil, fmt.Errorf("%w: mask has %d values, want %d", ErrShapeMismatch, len(mask), sim.SimSize*sim.SimSize)
	}

	w := &WFS{
		cfg: cfg,
		typ: typ,
		settings: &settings{
			photonNoise: cfg.WFS.PhotonNoise,
			readNoise:   cfg.WFS.EReadNoise,
			removeTT:    cfg.WFS.RemoveTT,
			angleNoise:  cfg.WFS.AngleEquivNoise,
			uplink:      cfg.WFS.LGS && cfg.LGS.Uplink,
		},
		noise: newNoise(o.src),
		plan:  defaultPlanOptions(sim),
		mask:  mask,
		request: los.Request{
			Position: [2]float64{cfg.WFS.GSPosition[0] * arcsec, cfg.WFS.GSPosition[1] * arcsec},
			Height:   cfg.WFS.GSHeight,
		},
	}

	if o.plan != nil {
		w.plan = *o.plan
	}

	switch typ {
	case TypeShackHartmann:
		w.sensor, err = newShackHartmann(w)
	case TypePyramid:
		w.sensor, err = newPyramid(w)
	}

	if err != nil {
		return nil, err
	}

	size := w.sensor.fieldSize()

	w.provider = o.provider
	if w.provider == nil {
		w.provider, err = los.NewGeometric(sim, cfg.Atmosphere, cfg.WFS.Wavelength, size)
		if err != nil {
			w.sensor.close()
			return nil, err
		}
	} else if w.provider.OutputSize() != size {
		w.sensor.close()
		return nil, fmt.Errorf("%w: provider returns %d² fields, sensor needs %d²", ErrShapeMismatch, w.provider.OutputSize(), size)
	}

	w.field = make([]complex128, size*size)
	w.corr = make([]float64, size*size)

	if err := w.initElongation(); err != nil {
		w.sensor.close()
		return nil, err
	}

	if sh, ok := w.sensor.(*shackHartmann); ok {
		if err := sh.captureStatic(); err != nil {
			w.sensor.close()
			return nil, err
		}
	}

	return w, nil
}

func defaultPlanOptions(sim config.Sim) aofft.PlanOptions {
	opts := aofft.PlanOptions{
		Backend: aofft.BackendTag(sim.FFTBackend),
		Threads: sim.FFTThreads,
	}

	if sim.FFTMeasure {
		opts.Flags |= aofft.FlagMeasure
	}

	return opts
}

// Frame runs one sensor frame and returns the slopes, all x then all y.
// With NoReadout it returns nil slopes after accumulating the focal plane.
// Non-finite slopes are replaced by zeros and logged.
func (w *WFS) Frame(screens [][]float64, opts FrameOptions) ([]float64, error) {
	if opts.Calibration {
		saved := *w.settings
		defer func() { *w.settings = saved }()

		w.settings.photonNoise = false
		w.settings.readNoise = 0
		w.settings.removeTT = false
		w.settings.angleNoise = 0
		w.settings.uplink = false
		w.settings.calibrating = true
	}

	w.state = Idle
	w.sensor.zero(!opts.NoReadout)

	if opts.Correction != nil {
		if err := w.zoomCorrection(opts.Correction); err != nil {
			return nil, err
		}
	}

	for _, layer := range w.frameLayers(opts.Calibration) {
		if err := w.acquire(screens, layer, opts); err != nil {
			return nil, err
		}

		w.state = PhaseAcquired

		if err := w.sensor.calcFocalPlane(w.field, layer.Intensity); err != nil {
			return nil, err
		}

		w.state = FocalPlaneAccumulated
	}

	if opts.NoReadout {
		return nil, nil
	}

	if err := w.sensor.makeDetectorPlane(screens); err != nil {
		return nil, err
	}

	w.state = DetectorSynthesized

	if err := w.sensor.calculateSlopes(); err != nil {
		return nil, err
	}

	w.state = SlopesExtracted
	w.sensor.zero(false)

	slopes := w.sensor.slopeVector()
	for _, s := range slopes {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			monitoring.Warnf("wfs: non-finite slopes in %s frame, zeroing %d values", w.typ, len(slopes))
			clear(slopes)

			break
		}
	}

	return slopes, nil
}

// frameLayers returns the elongation layers, or a single unweighted on-axis
// layer without them.
func (w *WFS) frameLayers(calibrating bool) []ElongationLayer {
	if len(w.layers) > 0 && !calibrating {
		return w.layers
	}

	return []ElongationLayer{{Height: w.request.Height, Position: w.request.Position, Intensity: 1}}
}

// acquire fills w.field for one layer and removes any correction.
func (w *WFS) acquire(screens [][]float64, layer ElongationLayer, opts FrameOptions) error {
	sim := w.cfg.Sim

	if opts.Calibration {
		if len(screens) != 1 || len(screens[0]) != sim.SimSize*sim.SimSize {
			return fmt.Errorf("%w: calibration needs one %d×%d screen", ErrShapeMismatch, sim.SimSize, sim.SimSize)
		}

		if err := w.provider.FieldFromPhase(w.field, screens[0], sim.SimSize); err != nil {
			return err
		}
	} else {
		req := w.request
		req.Position = layer.Position
		req.Height = layer.Height
		req.PhaseAddition = layer.PhaseAddition

		if err := w.provider.Field(w.field, screens, req); err != nil {
			return err
		}
	}

	if opts.Correction != nil {
		phs2Rad := w.provider.Phs2Rad()

		for i, c := range w.corr {
			s, co := math.Sincos(-c * phs2Rad)
			w.field[i] *= complex(co, s)
		}
	}

	return nil
}

func (w *WFS) zoomCorrection(correction []float64) error {
	sim := w.cfg.Sim
	if len(correction) != sim.SimSize*sim.SimSize {
		return fmt.Errorf("%w: correction has %d values, want %d", ErrShapeMismatch, len(correction), sim.SimSize*sim.SimSize)
	}

	return aolib.Zoom(w.corr, w.sensor.fieldSize(), correction, sim.SimSize)
}

// State returns the last stage reached.
func (w *WFS) State() State { return w.state }

// Type returns the sensor variant.
func (w *WFS) Type() Type { return w.typ }

// Slopes returns the last slope vector.
func (w *WFS) Slopes() []float64 { return w.sensor.slopeVector() }

// DetectorPlane returns the last detector image, row-major and square.
func (w *WFS) DetectorPlane() []float64 { return w.sensor.detectorPlane() }

// DetectorSize returns the detector width in pixels.
func (w *WFS) DetectorSize() int {
	return int(math.Sqrt(float64(len(w.sensor.detectorPlane()))))
}

// ElongationLayers returns the layers used per frame; empty when the guide
// star is not elongated.
func (w *WFS) ElongationLayers() []ElongationLayer { return w.layers }

// PhotonCount is the detected photons per frame before noise: the guide
// star flux through the pupil times the throughput.
func (w *WFS) PhotonCount() float64 {
	wc := w.cfg.WFS

	return aolib.PhotonsPerMag(wc.GSMag, w.mask, 1/w.cfg.Sim.PxlScale(), wc.WvlBandWidth, wc.ExposureTime) * wc.Throughput
}

// Close releases the sensor's FFT workers.
func (w *WFS) Close() error { return w.sensor.close() }
