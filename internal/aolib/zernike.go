package aolib

import "gonum.org/v1/gonum/floats"

// Mode is a low order Zernike mode (Noll index).
type Mode int

const (
	Tip   Mode = 2
	Tilt  Mode = 3
	Focus Mode = 4
)

// Zernike returns mode m on a size×size grid spanning the unit circle,
// zero outside it and normalized to a peak of 1.
func Zernike(m Mode, size int) []float64 {
	out := make([]float64, size*size)
	coords := make([]float64, size)

	if size == 1 {
		coords[0] = 0
	} else {
		floats.Span(coords, -1, 1)
	}

	for r, y := range coords {
		for c, x := range coords {
			rho2 := x*x + y*y
			if rho2 > 1 {
				continue
			}

			var v float64

			switch m {
			case Tip:
				v = x
			case Tilt:
				v = y
			case Focus:
				v = 2*rho2 - 1
			}

			out[r*size+c] = v
		}
	}

	if peak := floats.Max(out); peak > 0 {
		floats.Scale(1/peak, out)
	}

	return out
}
