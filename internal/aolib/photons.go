package aolib

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PhotonsPerMag returns the photons collected through mask in one exposure.
//
// The zero point is 1000 photons/s/cm²/Å at magnitude 0. pxlScale is the
// pupil sampling in metres per pixel, bandwidth is in nm and expTime in s.
func PhotonsPerMag(mag float64, mask []float64, pxlScale, bandwidth, expTime float64) float64 {
	perSecPerAreaPerAngstrom := 1000 * math.Pow(10, -mag/2.5)
	areaCm2 := floats.Sum(mask) * pxlScale * pxlScale * 1e4

	return perSecPerAreaPerAngstrom * areaCm2 * bandwidth * 10 * expTime
}
