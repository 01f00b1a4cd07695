package aolib

// Crop copies the size×size window of src (srcSize wide) starting at
// (row, col) into dst.
func Crop[E any](dst []E, size int, src []E, srcSize, row, col int) {
	for r := range size {
		copy(dst[r*size:(r+1)*size], src[(row+r)*srcSize+col:(row+r)*srcSize+col+size])
	}
}

// FitCentre centre-crops src into dst when src is larger, or zero-pads it into
// the centre of dst when it is smaller.
func FitCentre[E any](dst []E, dstSize int, src []E, srcSize int) {
	if srcSize >= dstSize {
		off := (srcSize - dstSize) / 2
		Crop(dst, dstSize, src, srcSize, off, off)

		return
	}

	clear(dst)

	off := (dstSize - srcSize) / 2
	for r := range srcSize {
		copy(dst[(off+r)*dstSize+off:(off+r)*dstSize+off+srcSize], src[r*srcSize:(r+1)*srcSize])
	}
}

// Embed copies the size×size image src into dst (dstSize wide) at (row, col).
func Embed[E any](dst []E, dstSize int, src []E, size, row, col int) {
	for r := range size {
		copy(dst[(row+r)*dstSize+col:(row+r)*dstSize+col+size], src[r*size:(r+1)*size])
	}
}
