// Package centroid measures spot positions in batches of square subaperture
// images. Strategies are resolved by name once, when a sensor is built.
package centroid

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cwbudde/aofft"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrUnknownMethod is returned by Lookup for unregistered names.
	ErrUnknownMethod = errors.New("centroid: unknown method")
	// ErrReference is returned when the correlation reference is missing or
	// does not match the images.
	ErrReference = errors.New("centroid: bad reference image")
)

// Method selects a centroiding strategy.
type Method int

const (
	// CentreOfGravity is the thresholded intensity-weighted mean position.
	CentreOfGravity Method = iota
	// Brightest keeps only the brightest fraction of pixels before taking
	// the centre of gravity.
	Brightest
	// Correlation locates the peak of the cross-correlation with a
	// reference image.
	Correlation
)

var methodNames = map[string]Method{
	"centreofgravity": CentreOfGravity,
	"cog":             CentreOfGravity,
	"brightestpxl":    Brightest,
	"brightest":       Brightest,
	"correlation":     Correlation,
}

// Lookup resolves a method name case-insensitively.
func Lookup(name string) (Method, error) {
	m, ok := methodNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}

	return m, nil
}

func (m Method) String() string {
	switch m {
	case CentreOfGravity:
		return "centreOfGravity"
	case Brightest:
		return "brightestPxl"
	case Correlation:
		return "correlation"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Options configures a Centroider.
type Options struct {
	// Threshold is relative to each image's peak for CentreOfGravity and
	// Correlation, and the fraction of pixels kept for Brightest.
	Threshold float64
	// Reference holds one size×size image shared by all subapertures or
	// one per subaperture. Only Correlation uses it.
	Reference []float64
	// Plan selects the FFT backend for Correlation.
	Plan aofft.PlanOptions
}

// Centroider measures batches of size×size images with one method.
// It is not safe for concurrent use.
type Centroider struct {
	method Method
	size   int
	opts   Options

	scratch []float64

	fwd    *aofft.Plan[complex128]
	bwd    *aofft.Plan[complex128]
	refFFT [][]complex128
}

// New returns a Centroider for size×size images. Correlation needs an even
// size and a reference image.
func New(method Method, size int, opts Options) (*Centroider, error) {
	if size < 1 {
		return nil, fmt.Errorf("centroid: invalid image size %d", size)
	}

	c := &Centroider{
		method:  method,
		size:    size,
		opts:    opts,
		scratch: make([]float64, size*size),
	}

	switch method {
	case CentreOfGravity, Brightest:
	case Correlation:
		if err := c.initCorrelation(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMethod, method)
	}

	return c, nil
}

// Method returns the strategy in use.
func (c *Centroider) Method() Method { return c.method }

// Centroids writes the (x, y) position of each image in imgs, which holds
// len(dst) row-major size×size images. Positions are in pixels from the
// image corner, so a spot centred in the image reads size/2.
func (c *Centroider) Centroids(dst [][2]float64, imgs []float64) error {
	n := c.size * c.size
	if len(imgs) != len(dst)*n {
		return fmt.Errorf("centroid: %d pixels for %d images of %d", len(imgs), len(dst), n)
	}

	for i := range dst {
		img := imgs[i*n : (i+1)*n]

		var err error

		switch c.method {
		case CentreOfGravity:
			copy(c.scratch, img)
			applyThreshold(c.scratch, c.opts.Threshold)
			dst[i] = gravity(c.scratch, c.size, 0.5)
		case Brightest:
			copy(c.scratch, img)
			keepBrightest(c.scratch, c.opts.Threshold)
			dst[i] = gravity(c.scratch, c.size, 0.5)
		case Correlation:
			dst[i], err = c.correlate(img, i)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func applyThreshold(img []float64, threshold float64) {
	cut := threshold * floats.Max(img)

	for i, v := range img {
		if v < cut {
			img[i] = 0
		}
	}
}

// keepBrightest zeroes all but the brightest fraction of pixels and
// subtracts the cut level from those kept.
func keepBrightest(img []float64, fraction float64) {
	keep := int(fraction*float64(len(img)) + 0.5)
	keep = min(max(keep, 1), len(img))

	sorted := slices.Clone(img)
	slices.Sort(sorted)
	cut := sorted[len(sorted)-keep]

	for i, v := range img {
		img[i] = max(v-cut, 0)
	}
}

// gravity returns the intensity-weighted mean position plus offset. An
// empty image yields NaN.
func gravity(img []float64, size int, offset float64) [2]float64 {
	var sx, sy, total float64

	for r := range size {
		for c, v := range img[r*size : (r+1)*size] {
			sx += v * float64(c)
			sy += v * float64(r)
			total += v
		}
	}

	return [2]float64{sx/total + offset, sy/total + offset}
}
