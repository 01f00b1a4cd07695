package aolib

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// Zoom resamples the srcSize×srcSize image src onto a dstSize×dstSize grid
// by separable linear interpolation. The corner pixels of both grids
// coincide, so symmetric images stay symmetric.
func Zoom(dst []float64, dstSize int, src []float64, srcSize int) error {
	if len(src) != srcSize*srcSize || len(dst) != dstSize*dstSize {
		return fmt.Errorf("aolib: zoom %d→%d with buffers %d, %d", srcSize, dstSize, len(src), len(dst))
	}

	if srcSize == dstSize {
		copy(dst, src)
		return nil
	}

	if srcSize == 1 {
		for i := range dst {
			dst[i] = src[0]
		}

		return nil
	}

	xs := make([]float64, srcSize)
	floats.Span(xs, 0, float64(srcSize-1))

	at := make([]float64, dstSize)
	if dstSize == 1 {
		at[0] = float64(srcSize-1) / 2
	} else {
		floats.Span(at, 0, float64(srcSize-1))
	}

	// Rows first: srcSize rows of dstSize samples.
	tmp := make([]float64, srcSize*dstSize)

	var pl interp.PiecewiseLinear

	for r := range srcSize {
		if err := pl.Fit(xs, src[r*srcSize:(r+1)*srcSize]); err != nil {
			return err
		}

		for c, x := range at {
			tmp[r*dstSize+c] = pl.Predict(x)
		}
	}

	col := make([]float64, srcSize)

	for c := range dstSize {
		for r := range srcSize {
			col[r] = tmp[r*dstSize+c]
		}

		if err := pl.Fit(xs, col); err != nil {
			return err
		}

		for r, y := range at {
			dst[r*dstSize+c] = pl.Predict(y)
		}
	}

	return nil
}

// ZoomComplex zooms the real and imaginary parts of src independently.
func ZoomComplex(dst []complex128, dstSize int, src []complex128, srcSize int) error {
	if srcSize == dstSize && len(src) == len(dst) {
		copy(dst, src)
		return nil
	}

	re := make([]float64, len(src))
	im := make([]float64, len(src))

	for i, v := range src {
		re[i], im[i] = real(v), imag(v)
	}

	outRe := make([]float64, len(dst))
	outIm := make([]float64, len(dst))

	if err := Zoom(outRe, dstSize, re, srcSize); err != nil {
		return err
	}

	if err := Zoom(outIm, dstSize, im, srcSize); err != nil {
		return err
	}

	for i := range dst {
		dst[i] = complex(outRe[i], outIm[i])
	}

	return nil
}
