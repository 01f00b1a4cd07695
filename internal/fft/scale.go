package fft

// ScaleComplex128InPlace multiplies each element in dst by scale.
func ScaleComplex128InPlace(dst []complex128, scale float64) {
	if scale == 1 {
		return
	}

	factor := complex(scale, 0)
	for i := range dst {
		dst[i] *= factor
	}
}
