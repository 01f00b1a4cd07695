package aolib

import "fmt"

// Bin sums factor×factor blocks of the size×size image src into dst, which
// holds (size/factor)² values. size must be a multiple of factor.
func Bin(dst, src []float64, size, factor int) error {
	if factor < 1 || size%factor != 0 {
		return fmt.Errorf("aolib: cannot bin %d pixels by %d", size, factor)
	}

	out := size / factor
	if len(dst) < out*out || len(src) < size*size {
		return fmt.Errorf("aolib: bin buffers too small for %d→%d", size, out)
	}

	clear(dst[:out*out])

	for y := range size {
		row := dst[(y/factor)*out : (y/factor+1)*out]
		for x, v := range src[y*size : (y+1)*size] {
			row[x/factor] += v
		}
	}

	return nil
}

// BinBatch bins every image of a batch of size×size images.
func BinBatch(dst, src []float64, batch, size, factor int) error {
	out := size / factor

	for b := range batch {
		if err := Bin(dst[b*out*out:(b+1)*out*out], src[b*size*size:(b+1)*size*size], size, factor); err != nil {
			return err
		}
	}

	return nil
}
