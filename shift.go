package aofft

import "fmt"

// Shift2D swaps the quadrants of every trailing 2-D slab of data so the zero
// frequency moves to the centre. Leading axes are treated as a batch. Both
// trailing axes must be even, which makes the shift its own inverse.
func Shift2D[E any](data []E, shape []int) error {
	if len(shape) < 2 {
		return fmt.Errorf("%w: shift needs at least 2 axes, got %v", ErrInvalidShape, shape)
	}

	h, w := shape[len(shape)-2], shape[len(shape)-1]
	if h < 1 || w < 1 || h%2 != 0 || w%2 != 0 {
		return fmt.Errorf("%w: shift needs even trailing axes, got %v", ErrInvalidShape, shape)
	}

	batch := 1
	for _, d := range shape[:len(shape)-2] {
		batch *= d
	}

	if len(data) != batch*h*w {
		return fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(data), batch*h*w)
	}

	hh, hw := h/2, w/2

	for b := range batch {
		slab := data[b*h*w : (b+1)*h*w]

		for r := range hh {
			top := slab[r*w : (r+1)*w]
			bottom := slab[(r+hh)*w : (r+hh+1)*w]

			for c := range hw {
				top[c], bottom[c+hw] = bottom[c+hw], top[c]
				top[c+hw], bottom[c] = bottom[c], top[c+hw]
			}
		}
	}

	return nil
}

// ShiftReal2D is Shift2D for real images.
func ShiftReal2D(data []float64, shape []int) error {
	return Shift2D(data, shape)
}
