package wfs

import (
	"math"

	"github.com/cwbudde/aofft/internal/aolib"
	"github.com/cwbudde/aofft/internal/monitoring"
	"gonum.org/v1/gonum/floats"
)

// ElongationLayer is one slice of an elongated laser guide star.
type ElongationLayer struct {
	// Height of the slice in metres.
	Height float64
	// PhaseAddition in radians at the sensor field sampling: the focus and
	// tilt path difference to the nominal guide star height.
	PhaseAddition []float64
	// Position is the apparent direction of the slice in radians.
	Position [2]float64
	// Intensity weights the slice's focal plane.
	Intensity float64
}

// initElongation computes the elongation layers once. Elongation is only
// meaningful for a guide star at finite height; at infinity it is dropped
// with a warning.
func (w *WFS) initElongation() error {
	lc := w.cfg.LGS
	if !w.cfg.WFS.LGS || lc.ElongationDepth == 0 {
		return nil
	}

	if w.cfg.WFS.GSHeight == 0 {
		monitoring.Warnf("wfs: LGS elongation needs a guide star at finite height, disabling it")
		return nil
	}

	n := lc.ElongationLayers
	gsHeight := w.cfg.WFS.GSHeight

	heights := make([]float64, n)
	if n == 1 {
		heights[0] = gsHeight
	} else {
		floats.Span(heights, gsHeight-lc.ElongationDepth/2, gsHeight+lc.ElongationDepth/2)
	}

	sim := w.cfg.Sim
	tip := aolib.Zernike(aolib.Tip, sim.PupilSize)
	tilt := aolib.Zernike(aolib.Tilt, sim.PupilSize)
	focus := aolib.Zernike(aolib.Focus, sim.PupilSize)

	pupil := make([]float64, sim.PupilSize*sim.PupilSize)
	padded := make([]float64, sim.SimSize*sim.SimSize)
	size := w.sensor.fieldSize()

	w.layers = make([]ElongationLayer, n)

	for i, h := range heights {
		fp, tp := w.pathDifferences(h)

		for j := range pupil {
			pupil[j] = focus[j]*fp + tip[j]*tp[0] + tilt[j]*tp[1]
		}

		clear(padded)
		aolib.Embed(padded, sim.SimSize, pupil, sim.PupilSize, sim.SimPad(), sim.SimPad())

		add := make([]float64, size*size)
		if err := aolib.Zoom(add, size, padded, sim.SimSize); err != nil {
			return err
		}

		intensity := 1.0
		if len(lc.NaProfile) == n {
			intensity = lc.NaProfile[i]
		}

		w.layers[i] = ElongationLayer{
			Height:        h,
			PhaseAddition: add,
			Position:      w.elongationPosition(h),
			Intensity:     intensity,
		}
	}

	return nil
}

// launchOffset is the launch telescope position in metres.
func (w *WFS) launchOffset() [2]float64 {
	r := w.cfg.Sim.TelDiam / 2
	lp := w.cfg.LGS.LaunchPosition

	return [2]float64{lp[0] * r, lp[1] * r}
}

// pathDifferences returns the focus and (x, y) tilt path differences in
// radians between a slice at height h and the nominal guide star.
func (w *WFS) pathDifferences(h float64) (float64, [2]float64) {
	k := 2 * math.Pi / w.cfg.WFS.Wavelength
	dh := h - w.cfg.WFS.GSHeight
	bigH := w.cfg.LGS.Height
	bigD := w.cfg.Sim.TelDiam
	r := bigD / 2
	d := w.launchOffset()

	focus := k * (math.Hypot(r, h) - math.Hypot(r, bigH) - dh)

	var tilt [2]float64

	for j := range 2 {
		theta := d[j]/bigH - w.request.Position[j]
		up := dh + bigH

		tilt[j] = k * (math.Hypot(up, up*theta-d[j]-r) +
			math.Hypot(bigH, r-d[j]+bigH*theta) -
			math.Hypot(bigH, bigH*theta-d[j]-r) -
			math.Hypot(up, r-d[j]+up*theta))
	}

	return focus, tilt
}

// elongationPosition is the apparent direction of a slice at height h seen
// from the pupil centre when the laser is launched off axis.
func (w *WFS) elongationPosition(h float64) [2]float64 {
	gsHeight := w.cfg.WFS.GSHeight
	dh := h - gsHeight
	xl := w.launchOffset()

	var pos [2]float64
	for j := range 2 {
		pos[j] = w.request.Position[j] - dh*xl[j]/(gsHeight*(gsHeight+dh))
	}

	return pos
}
