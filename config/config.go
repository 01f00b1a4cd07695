// Package config holds the simulation, atmosphere, wavefront-sensor and
// laser-guide-star parameters. Files are JSON with comments and trailing
// commas allowed (HuJSON); missing fields keep their defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/tailscale/hujson"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Sensor type names accepted in WFS.Type.
const (
	TypeShackHartmann = "ShackHartmann"
	TypePyramid       = "Pyramid"
)

// LGS propagation names accepted in LGS.Propagation.
const (
	PropagationGeometric = "Geometric"
	PropagationPhysical  = "Physical"
)

// Config is a complete simulation configuration.
type Config struct {
	Sim        Sim        `json:"sim"`
	Atmosphere Atmosphere `json:"atmosphere"`
	WFS        WFS        `json:"wfs"`
	LGS        LGS        `json:"lgs"`
}

// Sim holds the simulation grid and FFT engine settings.
type Sim struct {
	// SimSize is the phase grid width in pixels, PupilSize plus padding.
	SimSize   int `json:"simSize"`
	PupilSize int `json:"pupilSize"`
	// TelDiam is the telescope diameter in metres.
	TelDiam float64 `json:"telDiam"`

	// FFTBackend names the preferred engine backend ("" = best available).
	FFTBackend string `json:"fftBackend"`
	FFTThreads int    `json:"fftThreads"`
	// FFTMeasure times the available backends when plans are created.
	FFTMeasure bool `json:"fftMeasure"`

	// Seed seeds the noise generator.
	Seed uint64 `json:"seed"`
}

// SimPad is the padding in pixels on each side of the pupil.
func (s Sim) SimPad() int { return (s.SimSize - s.PupilSize) / 2 }

// PxlScale is the pupil sampling in pixels per metre.
func (s Sim) PxlScale() float64 { return float64(s.PupilSize) / s.TelDiam }

// Atmosphere describes the turbulence layers.
type Atmosphere struct {
	// ScreenHeights in metres, one per phase screen.
	ScreenHeights []float64 `json:"screenHeights"`
}

// WFS configures one wavefront sensor.
type WFS struct {
	Type string `json:"type"`

	// GSPosition is the guide star offset in arcseconds.
	GSPosition [2]float64 `json:"gsPosition"`
	// GSHeight in metres; 0 puts the guide star at infinity.
	GSHeight float64 `json:"gsHeight"`
	GSMag    float64 `json:"gsMag"`

	NxSubaps     int `json:"nxSubaps"`
	PxlsPerSubap int `json:"pxlsPerSubap"`
	// SubapFOV is the subaperture field of view in arcseconds. For the
	// pyramid it is the full field.
	SubapFOV       float64 `json:"subapFOV"`
	SubapThreshold float64 `json:"subapThreshold"`
	SubapFieldStop bool    `json:"subapFieldStop"`

	// Wavelength in metres.
	Wavelength   float64 `json:"wavelength"`
	FFTOversamp  int     `json:"fftOversamp"`
	FFTProcesses int     `json:"fftProcesses"`

	BitDepth     int     `json:"bitDepth"`
	Throughput   float64 `json:"throughput"`
	ExposureTime float64 `json:"exposureTime"`
	// WvlBandWidth in nm.
	WvlBandWidth float64 `json:"wvlBandWidth"`

	PhotonNoise bool    `json:"photonNoise"`
	EReadNoise  float64 `json:"eReadNoise"`
	RemoveTT    bool    `json:"removeTT"`
	// AngleEquivNoise is the slope noise sigma in arcseconds.
	AngleEquivNoise float64 `json:"angleEquivNoise"`

	CentMethod     string  `json:"centMethod"`
	CentThreshold  float64 `json:"centThreshold"`
	ReferenceImage string  `json:"referenceImage"`

	// LGS makes this sensor use the laser guide star settings.
	LGS bool `json:"lgs"`
}

// LGS configures the laser guide star.
type LGS struct {
	// Uplink convolves the sensor images with the uplink PSF.
	Uplink      bool   `json:"uplink"`
	Propagation string `json:"propagation"`

	// PupilDiam is the launch aperture diameter in metres.
	PupilDiam  float64 `json:"pupilDiam"`
	Wavelength float64 `json:"wavelength"`
	Height     float64 `json:"height"`

	ElongationDepth  float64 `json:"elongationDepth"`
	ElongationLayers int     `json:"elongationLayers"`
	// LaunchPosition in units of the telescope radius.
	LaunchPosition [2]float64 `json:"launchPosition"`
	// NaProfile weights the elongation layers; empty means uniform.
	NaProfile []float64 `json:"naProfile"`
}

// Default returns a small 8×8 Shack-Hartmann setup on a natural guide star.
func Default() Config {
	return Config{
		Sim:        DefaultSim(),
		Atmosphere: Atmosphere{ScreenHeights: []float64{0}},
		WFS:        DefaultWFS(),
		LGS:        DefaultLGS(),
	}
}

// DefaultSim returns the default grid: a 64 pixel pupil on a 4.2 m telescope.
func DefaultSim() Sim {
	return Sim{
		SimSize:   80,
		PupilSize: 64,
		TelDiam:   4.2,
	}
}

// DefaultWFS returns the default Shack-Hartmann sensor.
func DefaultWFS() WFS {
	return WFS{
		Type:           TypeShackHartmann,
		GSMag:          8,
		NxSubaps:       8,
		PxlsPerSubap:   10,
		SubapFOV:       2.5,
		SubapThreshold: 0.5,
		Wavelength:     600e-9,
		FFTOversamp:    3,
		FFTProcesses:   1,
		BitDepth:       8,
		Throughput:     1,
		ExposureTime:   0.01,
		WvlBandWidth:   100,
		CentMethod:     "centreOfGravity",
		CentThreshold:  0.1,
	}
}

// DefaultLGS returns a sodium LGS at 90 km without uplink or elongation.
func DefaultLGS() LGS {
	return LGS{
		Propagation:      PropagationGeometric,
		PupilDiam:        0.3,
		Wavelength:       600e-9,
		Height:           90000,
		ElongationLayers: 1,
	}
}

// Load reads a HuJSON file over Default and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes HuJSON data over Default and validates the result.
func Parse(data []byte) (Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks ranges and the integer subdivisions the sensors rely on:
// the padding around the pupil must split evenly, the pupil must divide into
// whole subapertures, and the grids that are quadrant-shifted must be even.
func (c Config) Validate() error {
	s, w := c.Sim, c.WFS

	switch {
	case s.PupilSize < 2 || s.SimSize < s.PupilSize:
		return fmt.Errorf("%w: need 2 <= pupilSize <= simSize, got %d and %d", ErrInvalid, s.PupilSize, s.SimSize)
	case (s.SimSize-s.PupilSize)%2 != 0:
		return fmt.Errorf("%w: simSize-pupilSize must be even, got %d", ErrInvalid, s.SimSize-s.PupilSize)
	case s.SimSize%2 != 0:
		return fmt.Errorf("%w: simSize must be even, got %d", ErrInvalid, s.SimSize)
	case !(s.TelDiam > 0):
		return fmt.Errorf("%w: telDiam must be positive", ErrInvalid)
	case s.FFTThreads < 0:
		return fmt.Errorf("%w: fftThreads must not be negative", ErrInvalid)
	}

	if len(c.Atmosphere.ScreenHeights) == 0 {
		return fmt.Errorf("%w: at least one screen height is required", ErrInvalid)
	}

	switch w.Type {
	case TypeShackHartmann, TypePyramid:
	default:
		return fmt.Errorf("%w: unknown wfs type %q", ErrInvalid, w.Type)
	}

	switch {
	case w.NxSubaps < 1 || s.PupilSize%w.NxSubaps != 0:
		return fmt.Errorf("%w: pupilSize %d is not a whole number of %d subapertures", ErrInvalid, s.PupilSize, w.NxSubaps)
	case w.PxlsPerSubap < 1:
		return fmt.Errorf("%w: pxlsPerSubap must be positive", ErrInvalid)
	case !(w.SubapFOV > 0) || !(w.Wavelength > 0):
		return fmt.Errorf("%w: subapFOV and wavelength must be positive", ErrInvalid)
	case w.FFTOversamp < 1:
		return fmt.Errorf("%w: fftOversamp must be at least 1", ErrInvalid)
	case w.FFTProcesses < 0:
		return fmt.Errorf("%w: fftProcesses must not be negative", ErrInvalid)
	case w.BitDepth < 1 || w.BitDepth > 32:
		return fmt.Errorf("%w: bitDepth %d out of range", ErrInvalid, w.BitDepth)
	case w.EReadNoise < 0 || w.AngleEquivNoise < 0:
		return fmt.Errorf("%w: noise levels must not be negative", ErrInvalid)
	case w.Throughput < 0 || w.ExposureTime < 0 || w.WvlBandWidth < 0:
		return fmt.Errorf("%w: throughput, exposure and bandwidth must not be negative", ErrInvalid)
	case w.GSHeight < 0:
		return fmt.Errorf("%w: gsHeight must not be negative", ErrInvalid)
	}

	if w.LGS {
		if err := c.LGS.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (l LGS) validate() error {
	switch l.Propagation {
	case PropagationGeometric, PropagationPhysical:
	default:
		return fmt.Errorf("%w: unknown lgs propagation %q", ErrInvalid, l.Propagation)
	}

	switch {
	case !(l.PupilDiam > 0) || !(l.Wavelength > 0) || !(l.Height > 0):
		return fmt.Errorf("%w: lgs pupilDiam, wavelength and height must be positive", ErrInvalid)
	case l.ElongationDepth < 0 || math.IsNaN(l.ElongationDepth):
		return fmt.Errorf("%w: elongationDepth must not be negative", ErrInvalid)
	case l.ElongationDepth > 0 && l.ElongationLayers < 1:
		return fmt.Errorf("%w: elongation needs at least one layer", ErrInvalid)
	case len(l.NaProfile) != 0 && len(l.NaProfile) != l.ElongationLayers:
		return fmt.Errorf("%w: naProfile has %d weights for %d layers", ErrInvalid, len(l.NaProfile), l.ElongationLayers)
	}

	return nil
}
