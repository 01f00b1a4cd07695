package wfs

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// noise draws detector and measurement noise from one seeded source.
type noise struct {
	src rand.Source
}

func newNoise(src rand.Source) *noise {
	return &noise{src: src}
}

// photon replaces each pixel by a Poisson draw with the pixel as mean.
// Pixels that are not positive read zero.
func (n *noise) photon(plane []float64) {
	for i, v := range plane {
		if !(v > 0) {
			plane[i] = 0
			continue
		}

		plane[i] = distuv.Poisson{Lambda: v, Src: n.src}.Rand()
	}
}

// gaussian adds zero-mean normal noise of standard deviation sigma.
func (n *noise) gaussian(values []float64, sigma float64) {
	if sigma <= 0 {
		return
	}

	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: n.src}
	for i := range values {
		values[i] += dist.Rand()
	}
}
