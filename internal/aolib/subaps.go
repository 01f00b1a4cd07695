package aolib

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Subaperture is one lenslet footprint selected from a pupil mask.
type Subaperture struct {
	// Coord is the top-left corner in pupil pixels (row, column).
	Coord [2]float64
	// FillFactor is the mean mask value inside the footprint.
	FillFactor float64
}

// FindActiveSubaps divides the size×size mask into nx×nx footprints and
// keeps those whose mean mask value exceeds threshold, in row-major order.
func FindActiveSubaps(nx int, mask []float64, size int, threshold float64) []Subaperture {
	spacing := float64(size) / float64(nx)

	var (
		subaps []Subaperture
		window []float64
	)

	for i := range nx {
		r0 := int(math.Round(float64(i) * spacing))
		r1 := int(math.Round(float64(i+1) * spacing))

		for j := range nx {
			c0 := int(math.Round(float64(j) * spacing))
			c1 := int(math.Round(float64(j+1) * spacing))

			window = window[:0]
			for r := r0; r < r1; r++ {
				window = append(window, mask[r*size+c0:r*size+c1]...)
			}

			if len(window) == 0 {
				continue
			}

			fill := floats.Sum(window) / float64(len(window))
			if fill > threshold {
				subaps = append(subaps, Subaperture{
					Coord:      [2]float64{float64(i) * spacing, float64(j) * spacing},
					FillFactor: fill,
				})
			}
		}
	}

	return subaps
}
