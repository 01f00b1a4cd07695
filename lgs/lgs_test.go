package lgs

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/cwbudde/aofft"
	"github.com/cwbudde/aofft/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testFOV     = 2.4e-6
	testPadding = 8
)

func testConfig(propagation string, heights ...float64) config.Config {
	cfg := config.Default()
	cfg.Sim.SimSize, cfg.Sim.PupilSize, cfg.Sim.TelDiam = 32, 32, 4
	cfg.Atmosphere.ScreenHeights = heights
	cfg.LGS.Propagation = propagation
	cfg.LGS.PupilDiam = 1
	cfg.LGS.Wavelength = 600e-9
	cfg.LGS.Height = 90000

	return cfg
}

func flatScreens(n, size int) [][]float64 {
	screens := make([][]float64, n)
	for i := range screens {
		screens[i] = make([]float64, size*size)
	}

	return screens
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}

	return best
}

func TestGeometricPSFIsCentred(t *testing.T) {
	t.Parallel()

	model, err := New(testConfig(config.PropagationGeometric, 0, 5000), Options{})
	require.NoError(t, err)
	require.NoError(t, model.SetWFSParams(testFOV, 1, testPadding))

	geo := model.(*Geometric)
	assert.Equal(t, 1, geo.PadFactor())
	assert.Equal(t, 2, geo.fovOversize)

	psf, err := model.PSF(flatScreens(2, 32))
	require.NoError(t, err)
	require.Len(t, psf, testPadding*testPadding)

	assert.Equal(t, testPadding/2*testPadding+testPadding/2, argmax(psf))
}

func TestGeometricRemovesLaunchTilt(t *testing.T) {
	t.Parallel()

	cfg := testConfig(config.PropagationGeometric, 0)

	flat, err := New(cfg, Options{})
	require.NoError(t, err)
	require.NoError(t, flat.SetWFSParams(testFOV, 1, testPadding))

	tilted, err := New(cfg, Options{})
	require.NoError(t, err)
	require.NoError(t, tilted.SetWFSParams(testFOV, 1, testPadding))

	want, err := flat.PSF(flatScreens(1, 32))
	require.NoError(t, err)

	screen := make([]float64, 32*32)
	for r := range 32 {
		for c := range 32 {
			screen[r*32+c] = 50 * float64(c)
		}
	}

	got, err := tilted.PSF([][]float64{screen})
	require.NoError(t, err)

	peak := want[argmax(want)]
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9*peak, "pixel %d", i)
	}
}

func TestPSFBeforeSetWFSParams(t *testing.T) {
	t.Parallel()

	for _, prop := range []string{config.PropagationGeometric, config.PropagationPhysical} {
		model, err := New(testConfig(prop, 0), Options{})
		require.NoError(t, err)

		_, err = model.PSF(flatScreens(1, 32))
		assert.ErrorIs(t, err, ErrNotConfigured, prop)

		assert.Error(t, model.SetWFSParams(testFOV, 1, 7), prop)
	}

	_, err := New(testConfig("Wave", 0), Options{})
	assert.Error(t, err)
}

func TestPhysicalIgnoresLayersAboveGuideStar(t *testing.T) {
	t.Parallel()

	cfg := testConfig(config.PropagationPhysical, 100000, 0)

	model, err := New(cfg, Options{})
	require.NoError(t, err)
	require.NoError(t, model.SetWFSParams(testFOV, 1, testPadding))

	calm, err := model.PSF(flatScreens(2, 32))
	require.NoError(t, err)

	calm = append([]float64(nil), calm...)

	rng := rand.New(rand.NewPCG(3, 4))
	screens := flatScreens(2, 32)

	for i := range screens[0] {
		screens[0][i] = 200 * rng.NormFloat64()
	}

	high, err := model.PSF(screens)
	require.NoError(t, err)

	require.Len(t, high, testPadding*testPadding)
	assert.Equal(t, calm, high)

	var total float64
	for _, v := range high {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		require.GreaterOrEqual(t, v, 0.0)
		total += v
	}

	assert.Positive(t, total)
}

func gaussianBeam(n int, d, w float64) []complex128 {
	out := make([]complex128, n*n)
	half := float64(n / 2)

	for r := range n {
		for c := range n {
			x, y := (float64(c)-half)*d, (float64(r)-half)*d
			out[r*n+c] = complex(math.Exp(-(x*x+y*y)/(w*w)), 0)
		}
	}

	return out
}

func energy(v []complex128) float64 {
	var e float64
	for _, x := range v {
		e += real(x)*real(x) + imag(x)*imag(x)
	}

	return e
}

func TestAngularSpectrumConservesEnergy(t *testing.T) {
	t.Parallel()

	const (
		n   = 32
		d   = 0.01
		wvl = 600e-9
	)

	prop, err := NewAngularSpectrum(n, aofft.PlanOptions{})
	require.NoError(t, err)

	src := gaussianBeam(n, d, 0.05)
	dst := make([]complex128, n*n)

	require.NoError(t, prop.Propagate(dst, src, wvl, d, d, 100))
	assert.InEpsilon(t, energy(src), energy(dst), 1e-9)

	// Propagating back returns the source.
	back := make([]complex128, n*n)
	require.NoError(t, prop.Propagate(back, dst, wvl, d, d, -100))

	for i := range src {
		assert.InDelta(t, 0, cmplx.Abs(back[i]-src[i]), 1e-9, "index %d", i)
	}
}

func TestAngularSpectrumEdgeCases(t *testing.T) {
	t.Parallel()

	_, err := NewAngularSpectrum(7, aofft.PlanOptions{})
	assert.Error(t, err)

	prop, err := NewAngularSpectrum(8, aofft.PlanOptions{Backend: aofft.BackendGonum})
	require.NoError(t, err)
	assert.Equal(t, 8, prop.Size())

	src := gaussianBeam(8, 0.1, 0.3)
	dst := make([]complex128, 64)
	require.NoError(t, prop.Propagate(dst, src, 500e-9, 0.1, 0.2, 0))
	assert.Equal(t, src, dst)

	assert.ErrorIs(t, prop.Propagate(dst[:10], src, 500e-9, 0.1, 0.1, 1), aofft.ErrLengthMismatch)
}
