package centroid

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]Method{
		"centreOfGravity": CentreOfGravity,
		"COG":             CentreOfGravity,
		"brightestPxl":    Brightest,
		"correlation":     Correlation,
	} {
		got, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := Lookup("quadCell")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestCentreOfGravity(t *testing.T) {
	t.Parallel()

	const size = 8

	c, err := New(CentreOfGravity, size, Options{Threshold: 0.1})
	require.NoError(t, err)

	imgs := make([]float64, 2*size*size)
	// A single pixel at row 2, column 5.
	imgs[2*size+5] = 10
	// A 2×2 spot centred on the image, plus a faint pixel below threshold.
	second := imgs[size*size:]
	for _, i := range []int{3*size + 3, 3*size + 4, 4*size + 3, 4*size + 4} {
		second[i] = 1
	}
	second[0] = 0.05

	dst := make([][2]float64, 2)
	require.NoError(t, c.Centroids(dst, imgs))

	assert.InDeltaSlice(t, []float64{5.5, 2.5}, dst[0][:], 1e-12)
	assert.InDeltaSlice(t, []float64{size / 2, size / 2}, dst[1][:], 1e-12)
	assert.Error(t, c.Centroids(dst, imgs[:10]))
}

func TestBrightestKeepsPeak(t *testing.T) {
	t.Parallel()

	const size = 4

	c, err := New(Brightest, size, Options{Threshold: 2.0 / 16})
	require.NoError(t, err)

	img := []float64{
		1, 1, 1, 1,
		1, 1, 1, 1,
		1, 1, 9, 5,
		1, 1, 1, 1,
	}

	dst := make([][2]float64, 1)
	require.NoError(t, c.Centroids(dst, img))

	// Cut at 5: only the 9 survives.
	assert.InDeltaSlice(t, []float64{2.5, 2.5}, dst[0][:], 1e-12)
}

func TestCorrelationFindsShift(t *testing.T) {
	t.Parallel()

	const size = 8

	ref := make([]float64, size*size)
	ref[3*size+3] = 1

	c, err := New(Correlation, size, Options{Threshold: 0.5, Reference: ref})
	require.NoError(t, err)

	img := make([]float64, size*size)
	img[1*size+4] = 3

	dst := make([][2]float64, 1)
	require.NoError(t, c.Centroids(dst, img))

	assert.InDeltaSlice(t, []float64{size/2 + 1, size/2 - 2}, dst[0][:], 1e-9)

	// Identical images correlate at the centre.
	require.NoError(t, c.Centroids(dst, ref))
	assert.InDeltaSlice(t, []float64{size / 2, size / 2}, dst[0][:], 1e-9)
}

func TestCorrelationErrors(t *testing.T) {
	t.Parallel()

	_, err := New(Correlation, 8, Options{})
	assert.ErrorIs(t, err, ErrReference)

	_, err = New(Correlation, 5, Options{Reference: make([]float64, 25)})
	assert.Error(t, err)

	_, err = New(Method(42), 8, Options{})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestLoadReference(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 16)
	}

	dir := t.TempDir()

	encoders := map[string]func(*os.File) error{
		"ref.png":  func(f *os.File) error { return png.Encode(f, img) },
		"ref.tiff": func(f *os.File) error { return tiff.Encode(f, img, nil) },
	}

	for name, encode := range encoders {
		path := filepath.Join(dir, name)

		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, encode(f))
		require.NoError(t, f.Close())

		pix, size, err := LoadReference(path)
		require.NoError(t, err, name)
		require.Equal(t, 4, size)

		for i, v := range pix {
			assert.InDelta(t, float64(i*16)/255, v, 1e-9, "%s pixel %d", name, i)
		}
	}

	wide := image.NewGray(image.Rect(0, 0, 4, 2))
	path := filepath.Join(dir, "wide.png")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, wide))
	require.NoError(t, f.Close())

	_, _, err = LoadReference(path)
	assert.ErrorIs(t, err, ErrReference)

	_, _, err = LoadReference(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, ErrReference)
}
