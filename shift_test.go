package aofft

import (
	"errors"
	"slices"
	"testing"

	"github.com/cwbudde/aofft/internal/reference"
)

func TestShift2DMovesZeroFrequencyToCentre(t *testing.T) {
	t.Parallel()

	data := make([]float64, 16)
	data[0] = 1

	if err := ShiftReal2D(data, []int{4, 4}); err != nil {
		t.Fatal(err)
	}

	if data[2*4+2] != 1 {
		t.Fatalf("zero frequency not at centre: %v", data)
	}
}

func TestShift2DMatchesIndexFormula(t *testing.T) {
	t.Parallel()

	const h, w = 4, 6

	data := make([]int, h*w)
	for i := range data {
		data[i] = i
	}

	if err := Shift2D(data, []int{h, w}); err != nil {
		t.Fatal(err)
	}

	for r := range h {
		for c := range w {
			src := ((r+h/2)%h)*w + (c+w/2)%w
			if data[r*w+c] != src {
				t.Fatalf("(%d,%d) = %d, want %d", r, c, data[r*w+c], src)
			}
		}
	}
}

func TestShift2DInvolution(t *testing.T) {
	t.Parallel()

	shapes := [][]int{{2, 2}, {4, 8}, {3, 6, 4}, {2, 2, 10, 2}}

	for _, shape := range shapes {
		n := 1
		for _, d := range shape {
			n *= d
		}

		orig := reference.RandomComplex(n, uint64(n))
		data := slices.Clone(orig)

		for range 2 {
			if err := Shift2D(data, shape); err != nil {
				t.Fatalf("%v: %v", shape, err)
			}
		}

		if !slices.Equal(data, orig) {
			t.Fatalf("%v: shifting twice did not restore the input", shape)
		}
	}
}

func TestShift2DErrors(t *testing.T) {
	t.Parallel()

	if err := Shift2D(make([]float64, 4), []int{4}); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("1-D shape: err = %v", err)
	}

	if err := Shift2D(make([]float64, 15), []int{3, 5}); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("odd shape: err = %v", err)
	}

	if err := Shift2D(make([]float64, 15), []int{4, 4}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("short data: err = %v", err)
	}
}
