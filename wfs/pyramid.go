package wfs

import (
	"fmt"
	"math"

	"github.com/cwbudde/aofft"
	"github.com/cwbudde/aofft/internal/aolib"
	"github.com/cwbudde/aofft/internal/monitoring"
	"gonum.org/v1/gonum/floats"
)

// fovOversamp is the focal plane sampling per diffraction element at the
// pyramid tip.
const fovOversamp = 4

// pyramid splits the focal plane into four quadrants at the pyramid tip and
// reimages each onto its own quarter of the detector.
type pyramid struct {
	w *WFS

	fovPxlNo  int
	fftSize   int
	pxls      int
	oversamp  int
	imageSize int
	paddedDet int
	detPxls   int

	pupilField []complex128
	zoomed     []complex128
	scaledMask []float64
	tiltFix    []complex128

	fft  batchFFT
	ifft batchFFT

	padded   []float64
	detector []float64
	slopes   []float64
}

func newPyramid(w *WFS) (*pyramid, error) {
	sim, wc := w.cfg.Sim, w.cfg.WFS

	p := &pyramid{
		w:        w,
		fovPxlNo: int(math.Round(sim.TelDiam * wc.SubapFOV * arcsec / wc.Wavelength)),
		pxls:     wc.PxlsPerSubap,
		oversamp: wc.FFTOversamp,
	}

	if p.fovPxlNo < 1 {
		return nil, fmt.Errorf("wfs: pyramid field of view %g\" is below one diffraction element", wc.SubapFOV)
	}

	if wc.LGS && w.cfg.LGS.Uplink {
		monitoring.Warnf("wfs: LGS uplink is not modelled for the pyramid sensor, ignoring it")
		w.settings.uplink = false
	}

	if p.pxls*p.oversamp < p.fovPxlNo {
		for p.pxls*p.oversamp < p.fovPxlNo {
			p.oversamp++
		}

		monitoring.Warnf("wfs: pyramid detector undersamples the field of view, oversampling set to %d", p.oversamp)
	}

	p.fftSize = fovOversamp * p.fovPxlNo
	p.imageSize = 4 * p.oversamp * p.pxls
	p.paddedDet = 2 * p.pxls * p.oversamp
	p.detPxls = 2 * p.pxls

	pupil := make([]float64, sim.PupilSize*sim.PupilSize)
	aolib.Crop(pupil, sim.PupilSize, w.mask, sim.SimSize, sim.SimPad(), sim.SimPad())

	p.scaledMask = make([]float64, p.fovPxlNo*p.fovPxlNo)
	if err := aolib.Zoom(p.scaledMask, p.fovPxlNo, pupil, sim.PupilSize); err != nil {
		return nil, err
	}

	p.calcTiltCorrect()

	var err error

	p.fft, err = newBatchFFT([]int{p.fftSize, p.fftSize}, aofft.Forward, 1, w.plan)
	if err != nil {
		return nil, err
	}

	p.ifft, err = newBatchFFT([]int{4, p.imageSize, p.imageSize}, aofft.Backward, wc.FFTProcesses, w.plan)
	if err != nil {
		return nil, err
	}

	p.pupilField = make([]complex128, sim.PupilSize*sim.PupilSize)
	p.zoomed = make([]complex128, p.fovPxlNo*p.fovPxlNo)
	p.padded = make([]float64, p.paddedDet*p.paddedDet)
	p.detector = make([]float64, p.detPxls*p.detPxls)
	p.slopes = make([]float64, 2*p.pxls*p.pxls)

	return p, nil
}

// calcTiltCorrect centres the focal plane on the pyramid tip, between the
// four central samples.
func (p *pyramid) calcTiltCorrect() {
	n := p.fovPxlNo
	x0 := float64(n-1) / 2
	a := -math.Pi / float64(p.fftSize)

	p.tiltFix = make([]complex128, n*n)

	for r := range n {
		for c := range n {
			s, co := math.Sincos(a * ((float64(r) - x0) + (float64(c) - x0)))
			p.tiltFix[r*n+c] = complex(co, s)
		}
	}
}

func (p *pyramid) fieldSize() int { return p.w.cfg.Sim.SimSize }

func (p *pyramid) calcFocalPlane(field []complex128, weight float64) error {
	sim := p.w.cfg.Sim
	aolib.Crop(p.pupilField, sim.PupilSize, field, sim.SimSize, sim.SimPad(), sim.SimPad())

	n, f := p.fovPxlNo, p.fftSize

	if err := aolib.ZoomComplex(p.zoomed, n, p.pupilField, sim.PupilSize); err != nil {
		return err
	}

	in := p.fft.Input()
	clear(in)

	for r := range n {
		for c := range n {
			j := r*n + c
			in[r*f+c] = p.zoomed[j] * complex(p.scaledMask[j], 0) * p.tiltFix[j]
		}
	}

	focal, err := p.fft.Execute()
	if err != nil {
		return err
	}

	if err := aofft.Shift2D(focal, []int{f, f}); err != nil {
		return err
	}

	half, pad := f/2, p.imageSize
	plane := pad * pad

	quads := p.ifft.Input()
	clear(quads)

	for x := range 2 {
		for y := range 2 {
			dst := quads[(2*x+y)*plane:]

			for r := range half {
				copy(dst[r*pad:r*pad+half], focal[(x*half+r)*f+y*half:(x*half+r)*f+y*half+half])
			}
		}
	}

	images, err := p.ifft.Execute()
	if err != nil {
		return err
	}

	if err := aofft.Shift2D(images, []int{4, pad, pad}); err != nil {
		return err
	}

	size := p.paddedDet / 2
	start := pad / 2

	for x := range 2 {
		for y := range 2 {
			img := images[(2*x+y)*plane:]

			for r := range size {
				src := img[(start+r)*pad+start:]
				dst := p.padded[(x*size+r)*p.paddedDet+y*size:]

				for c := range size {
					v := src[c]
					dst[c] += weight * (real(v)*real(v) + imag(v)*imag(v))
				}
			}
		}
	}

	return nil
}

func (p *pyramid) makeDetectorPlane([][]float64) error {
	if err := aolib.Bin(p.detector, p.padded, p.paddedDet, p.oversamp); err != nil {
		return err
	}

	if total := floats.Sum(p.detector); total > 0 {
		floats.Scale(p.w.PhotonCount()/total, p.detector)
	}

	set := p.w.settings

	if set.photonNoise {
		p.w.noise.photon(p.detector)
	}

	if set.readNoise != 0 {
		p.w.noise.gaussian(p.detector, set.readNoise)
	}

	return nil
}

// calculateSlopes normalises the quadrant differences pixel by pixel: x is
// right minus left and y is bottom minus top, so a wavefront rising along an
// axis reads positive as it does on a Shack-Hartmann. A pixel with no light
// in any quadrant gives zero slope.
func (p *pyramid) calculateSlopes() error {
	n, det := p.pxls, p.detPxls
	half := n * n

	for r := range n {
		for c := range n {
			q00 := p.detector[r*det+c]
			q01 := p.detector[r*det+c+n]
			q10 := p.detector[(r+n)*det+c]
			q11 := p.detector[(r+n)*det+c+n]

			i := r*n + c
			sum := q00 + q01 + q10 + q11

			if sum == 0 {
				p.slopes[i], p.slopes[half+i] = 0, 0
				continue
			}

			p.slopes[i] = ((q01 - q00) + (q11 - q10)) / sum
			p.slopes[half+i] = ((q10 - q00) + (q11 - q01)) / sum
		}
	}

	return nil
}

func (p *pyramid) zero(detector bool) {
	clear(p.padded)

	if detector {
		clear(p.detector)
	}
}

func (p *pyramid) detectorPlane() []float64 { return p.detector }

func (p *pyramid) slopeVector() []float64 { return p.slopes }

func (p *pyramid) close() error {
	var first error

	for _, f := range []batchFFT{p.fft, p.ifft} {
		if f == nil {
			continue
		}

		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
