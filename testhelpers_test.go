package aofft

import (
	"math/cmplx"
	"testing"

	"github.com/cwbudde/aofft/internal/monitoring"
	"github.com/cwbudde/aofft/internal/reference"
)

// Shared test helper functions used across multiple test files

func assertApproxComplex128Tolf(t *testing.T, got, want complex128, tol float64, format string, args ...any) {
	t.Helper()

	if cmplx.Abs(got-want) > tol {
		t.Fatalf(format+": got %v want %v (diff=%v)", append(args, got, want, cmplx.Abs(got-want))...)
	}
}

func randomComplex64(n int, seed uint64) []complex64 {
	src := reference.RandomComplex(n, seed)
	out := make([]complex64, n)

	for i, v := range src {
		out[i] = complex64(v)
	}

	return out
}

// captureWarnings redirects the diagnostic logger for the duration of a test.
// Tests using it must not run in parallel.
func captureWarnings(t *testing.T) *[]string {
	t.Helper()

	var lines []string

	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...any) {
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.Logf = prev })

	return &lines
}

// naiveDFT2 is the row-column naive DFT of an h×w array.
func naiveDFT2(src []complex128, h, w int, inverse bool) []complex128 {
	out := make([]complex128, h*w)
	row := make([]complex128, w)

	for r := range h {
		reference.Transform(row, src[r*w:(r+1)*w], inverse)
		copy(out[r*w:], row)
	}

	col := make([]complex128, h)
	colOut := make([]complex128, h)

	for c := range w {
		for r := range h {
			col[r] = out[r*w+c]
		}

		reference.Transform(colOut, col, inverse)

		for r := range h {
			out[r*w+c] = colOut[r]
		}
	}

	return out
}
