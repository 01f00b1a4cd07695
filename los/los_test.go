package los

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/aofft/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float64 {
	out := make([]float64, n*n)
	for r := range n {
		for c := range n {
			out[r*n+c] = float64(10*r + c)
		}
	}

	return out
}

func testSim() config.Sim {
	return config.Sim{SimSize: 8, PupilSize: 8, TelDiam: 8}
}

func TestGroundLayerIsScreen(t *testing.T) {
	t.Parallel()

	g, err := NewGeometric(testSim(), config.Atmosphere{ScreenHeights: []float64{0}}, 500e-9, 8)
	require.NoError(t, err)

	screen := ramp(8)
	dst := make([]float64, 64)
	req := Request{Position: [2]float64{1e-5, -2e-5}}
	require.NoError(t, g.LayerPhase(dst, [][]float64{screen}, 0, req))

	for i := range screen {
		assert.InDelta(t, screen[i], dst[i], 1e-9, "index %d", i)
	}
}

func TestLayerShiftFollowsLineOfSight(t *testing.T) {
	t.Parallel()

	// 1 px per metre; 2 px shift at 1 km for 2 mrad.
	g, err := NewGeometric(testSim(), config.Atmosphere{ScreenHeights: []float64{1000}}, 500e-9, 8)
	require.NoError(t, err)

	screen := ramp(16)
	dst := make([]float64, 64)
	require.NoError(t, g.LayerPhase(dst, [][]float64{screen}, 0, Request{Position: [2]float64{2e-3, 0}}))

	// Centred 8×8 window of the 16×16 screen starts at (4, 4); moved 2 columns.
	for r := range 8 {
		for c := range 8 {
			assert.InDelta(t, screen[(r+4)*16+c+6], dst[r*8+c], 1e-9)
		}
	}
}

func TestConeShrinksMetapupil(t *testing.T) {
	t.Parallel()

	g, err := NewGeometric(testSim(), config.Atmosphere{ScreenHeights: []float64{5000}}, 500e-9, 8)
	require.NoError(t, err)

	screen := ramp(8)
	full := make([]float64, 64)
	half := make([]float64, 64)
	require.NoError(t, g.LayerPhase(full, [][]float64{screen}, 0, Request{}))
	require.NoError(t, g.LayerPhase(half, [][]float64{screen}, 0, Request{Height: 10000}))

	spanFull := full[63] - full[0]
	spanHalf := half[63] - half[0]
	assert.InDelta(t, spanFull/2, spanHalf, 1e-9)

	above := make([]float64, 64)
	require.NoError(t, g.LayerPhase(above, [][]float64{screen}, 0, Request{Height: 4000}))
	assert.Equal(t, make([]float64, 64), above)
}

func TestFieldAddsPhase(t *testing.T) {
	t.Parallel()

	g, err := NewGeometric(testSim(), config.Atmosphere{ScreenHeights: []float64{0, 2000}}, 500e-9, 4)
	require.NoError(t, err)

	flat := [][]float64{make([]float64, 64), make([]float64, 64)}
	add := make([]float64, 16)

	for i := range add {
		add[i] = math.Pi
	}

	field := make([]complex128, 16)
	require.NoError(t, g.Field(field, flat, Request{PhaseAddition: add}))

	for _, v := range field {
		assert.InDelta(t, -1, real(v), 1e-12)
		assert.InDelta(t, 1, cmplx.Abs(v), 1e-12)
	}

	// A quarter wave of path is π/2.
	phase := make([]float64, 64)
	for i := range phase {
		phase[i] = 125
	}

	require.NoError(t, g.FieldFromPhase(field, phase, 8))
	assert.InDelta(t, 1, imag(field[5]), 1e-12)
}

func TestScreenMismatch(t *testing.T) {
	t.Parallel()

	g, err := NewGeometric(testSim(), config.Atmosphere{ScreenHeights: []float64{0, 2000}}, 500e-9, 8)
	require.NoError(t, err)

	dst := make([]float64, 64)
	assert.ErrorIs(t, g.Phase(dst, [][]float64{make([]float64, 64)}, Request{}), ErrScreens)
	assert.ErrorIs(t, g.Phase(dst, [][]float64{make([]float64, 64), make([]float64, 10)}, Request{}), ErrScreens)
}
