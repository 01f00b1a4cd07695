package aofft

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func naiveCircularConvolve(a, b []float64, h, w int) []float64 {
	out := make([]float64, h*w)

	for r := range h {
		for c := range w {
			var sum float64

			for i := range h {
				for j := range w {
					sum += a[i*w+j] * b[((r-i+h)%h)*w+(c-j+w)%w]
				}
			}

			out[r*w+c] = sum
		}
	}

	return out
}

func TestConvolve2DMatchesNaive(t *testing.T) {
	t.Parallel()

	const h, w = 6, 8

	rng := rand.New(rand.NewPCG(1, 2))
	a := make([]float64, h*w)
	b := make([]float64, h*w)

	for i := range a {
		a[i] = rng.Float64()
		b[i] = rng.Float64()
	}

	got := make([]float64, h*w)
	if err := Convolve2D(got, a, b, h, w); err != nil {
		t.Fatal(err)
	}

	want := naiveCircularConvolve(a, b, h, w)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestConvolverDeltaIsIdentity(t *testing.T) {
	t.Parallel()

	c, err := NewConvolver(4, 4, PlanOptions{Backend: BackendGonum})
	if err != nil {
		t.Fatal(err)
	}

	img := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	delta := make([]float64, 16)
	delta[0] = 1

	dst := make([]float64, 16)
	if err := c.Convolve(dst, img, delta); err != nil {
		t.Fatal(err)
	}

	for i := range img {
		if math.Abs(dst[i]-img[i]) > 1e-12 {
			t.Fatalf("index %d: got %v want %v", i, dst[i], img[i])
		}
	}
}

func TestConvolveErrors(t *testing.T) {
	t.Parallel()

	c, err := NewConvolver(2, 2, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Convolve(nil, make([]float64, 4), make([]float64, 4)); !errors.Is(err, ErrNilSlice) {
		t.Errorf("nil dst: err = %v", err)
	}

	if err := c.Convolve(make([]float64, 4), make([]float64, 3), make([]float64, 4)); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("short a: err = %v", err)
	}
}
