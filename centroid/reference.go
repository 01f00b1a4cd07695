package centroid

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"
)

// LoadReference decodes a square TIFF or PNG image into grey values in
// [0, 1], row-major, and returns them with the image width.
func LoadReference(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrReference, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrReference, err)
	}

	b := img.Bounds()
	if b.Dx() != b.Dy() {
		return nil, 0, fmt.Errorf("%w: %s image is %dx%d, want square", ErrReference, format, b.Dx(), b.Dy())
	}

	size := b.Dx()
	out := make([]float64, size*size)

	for y := range size {
		for x := range size {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			out[y*size+x] = float64(g.Y) / 0xffff
		}
	}

	return out, size, nil
}
