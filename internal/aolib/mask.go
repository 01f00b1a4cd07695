package aolib

import "math"

// Circle returns a size×size mask that is 1 within radius pixels of the grid
// centre ((size-1)/2, (size-1)/2) and 0 elsewhere.
func Circle(radius float64, size int) []float64 {
	mask := make([]float64, size*size)
	c := float64(size-1) / 2

	for y := range size {
		dy := float64(y) - c

		for x := range size {
			dx := float64(x) - c
			if math.Hypot(dx, dy) <= radius {
				mask[y*size+x] = 1
			}
		}
	}

	return mask
}

// Square returns a size×size mask with an open centred square of side pixels.
func Square(side, size int) []float64 {
	mask := make([]float64, size*size)
	start := (size - side) / 2

	for y := start; y < start+side; y++ {
		for x := start; x < start+side; x++ {
			mask[y*size+x] = 1
		}
	}

	return mask
}
