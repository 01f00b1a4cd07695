package wfs

import (
	"fmt"
	"math"

	"github.com/cwbudde/aofft"
	"github.com/cwbudde/aofft/centroid"
	"github.com/cwbudde/aofft/internal/aolib"
	"github.com/cwbudde/aofft/internal/monitoring"
	"github.com/cwbudde/aofft/lgs"
	"gonum.org/v1/gonum/floats"
)

// shackHartmann images every active subaperture through its own lenslet.
//
// Each subaperture field of fovSpacing² samples is zero-padded to pad² and
// transformed; pad is a multiple of the oversized detector window pxls2 so
// the focal plane bins down by oversamp.
type shackHartmann struct {
	w *WFS

	subapFOVRad float64
	subapDiam   float64

	nx         int
	pxls       int
	pxls2      int
	oversize   int
	oversamp   int
	pad        int
	fovSpacing int
	detPxls    int
	scaledSize int
	cropOffset int

	subaps      []aolib.Subaperture
	fieldCoords [][2]int
	detCoords   [][2]int
	scaledMask  []float64
	tiltFix     []complex128
	maxFlux     float64

	fft    batchFFT
	ifft   batchFFT
	lgsFFT *aofft.Plan[complex128]
	uplink lgs.PSFModel

	focal    []float64
	binned   []float64
	detector []float64

	centroider *centroid.Centroider
	centImgs   []float64
	cents      [][2]float64
	static     []float64
	slopes     []float64
}

func newShackHartmann(w *WFS) (*shackHartmann, error) {
	sim, wc := w.cfg.Sim, w.cfg.WFS

	sh := &shackHartmann{
		w:           w,
		subapFOVRad: wc.SubapFOV * arcsec,
		subapDiam:   sim.TelDiam / float64(wc.NxSubaps),
		nx:          wc.NxSubaps,
		pxls:        wc.PxlsPerSubap,
		oversize:    2,
		oversamp:    wc.FFTOversamp,
	}

	if wc.SubapFieldStop {
		sh.oversize = 1
	}

	spacing := int(math.Round(sh.subapDiam * sh.subapFOVRad / wc.Wavelength))
	if spacing < 1 {
		return nil, fmt.Errorf("wfs: subaperture field of view %g\" is below one diffraction element", wc.SubapFOV)
	}

	sh.fovSpacing = spacing * sh.oversize
	sh.pxls2 = sh.oversize * sh.pxls
	sh.detPxls = sh.pxls * sh.nx
	sh.scaledSize = int(math.Round(float64(sh.nx*sh.fovSpacing) * float64(sim.SimSize) / float64(sim.PupilSize)))
	sh.cropOffset = int(math.Round(float64(sh.scaledSize)/2 - float64(sh.nx*sh.fovSpacing)/2))

	sh.pad = sh.pxls2 * sh.oversamp
	if sh.pad < sh.fovSpacing || sh.pad%2 != 0 {
		for sh.pad < sh.fovSpacing || sh.pad%2 != 0 {
			sh.oversamp++
			sh.pad = sh.pxls2 * sh.oversamp
		}

		monitoring.Warnf("wfs: FFT padding below the field of view, oversampling set to %d", sh.oversamp)
	}

	if err := sh.findActiveSubaps(); err != nil {
		return nil, err
	}

	sh.calcTiltCorrect()
	sh.maxFlux = 0.7*math.Exp2(float64(wc.BitDepth)) - 1

	if err := sh.initFFTs(); err != nil {
		return nil, err
	}

	if err := sh.initCentroider(); err != nil {
		sh.close()
		return nil, err
	}

	active := len(sh.subaps)
	sh.focal = make([]float64, active*sh.pad*sh.pad)
	sh.binned = make([]float64, active*sh.pxls2*sh.pxls2)
	sh.detector = make([]float64, sh.detPxls*sh.detPxls)
	sh.centImgs = make([]float64, active*sh.pxls*sh.pxls)
	sh.cents = make([][2]float64, active)
	sh.slopes = make([]float64, 2*active)

	return sh, nil
}

func (sh *shackHartmann) findActiveSubaps() error {
	sim := sh.w.cfg.Sim
	pupil := make([]float64, sim.PupilSize*sim.PupilSize)
	aolib.Crop(pupil, sim.PupilSize, sh.w.mask, sim.SimSize, sim.SimPad(), sim.SimPad())

	sh.subaps = aolib.FindActiveSubaps(sh.nx, pupil, sim.PupilSize, sh.w.cfg.WFS.SubapThreshold)
	if len(sh.subaps) == 0 {
		return fmt.Errorf("wfs: no subaperture passes the %g fill threshold", sh.w.cfg.WFS.SubapThreshold)
	}

	ppSpacing := float64(sim.PupilSize) / float64(sh.nx)

	for _, s := range sh.subaps {
		var field, det [2]int

		for j := range 2 {
			field[j] = sh.cropOffset + int(math.Round(s.Coord[j]*float64(sh.fovSpacing)/ppSpacing))
			det[j] = int(math.Round(s.Coord[j] * float64(sh.detPxls) / float64(sim.PupilSize)))
		}

		sh.fieldCoords = append(sh.fieldCoords, field)
		sh.detCoords = append(sh.detCoords, det)
	}

	sh.scaledMask = make([]float64, sh.scaledSize*sh.scaledSize)
	return aolib.Zoom(sh.scaledMask, sh.scaledSize, sh.w.mask, sim.SimSize)
}

// calcTiltCorrect builds a half-bin tilt for even pixel counts so the spot
// of a flat wavefront lands on the corner of four detector pixels.
func (sh *shackHartmann) calcTiltCorrect() {
	n := sh.fovSpacing
	sh.tiltFix = make([]complex128, n*n)

	if sh.pxls%2 != 0 {
		for i := range sh.tiltFix {
			sh.tiltFix[i] = 1
		}

		return
	}

	c := float64(n-1) / 2
	a := -math.Pi / float64(sh.pad)

	for r := range n {
		for col := range n {
			s, co := math.Sincos(a * ((float64(r) - c) + (float64(col) - c)))
			sh.tiltFix[r*n+col] = complex(co, s)
		}
	}
}

func (sh *shackHartmann) initFFTs() error {
	w := sh.w
	shape := []int{len(sh.subaps), sh.pad, sh.pad}

	var err error

	sh.fft, err = newBatchFFT(shape, aofft.Forward, w.cfg.WFS.FFTProcesses, w.plan)
	if err != nil {
		return err
	}

	if !w.settings.uplink {
		return nil
	}

	sh.ifft, err = newBatchFFT(shape, aofft.Backward, w.cfg.WFS.FFTProcesses, w.plan)
	if err != nil {
		sh.close()
		return err
	}

	lgsOpts := w.plan
	lgsOpts.Direction = aofft.Backward

	sh.lgsFFT, err = aofft.NewPlan[complex128]([]int{sh.pad, sh.pad}, lgsOpts)
	if err != nil {
		sh.close()
		return err
	}

	sh.uplink, err = lgs.New(w.cfg, lgs.Options{Plan: w.plan})
	if err != nil {
		sh.close()
		return err
	}

	if err := sh.uplink.SetWFSParams(float64(sh.oversize)*sh.subapFOVRad, sh.oversamp, sh.pad); err != nil {
		sh.close()
		return err
	}

	return nil
}

func (sh *shackHartmann) initCentroider() error {
	wc := sh.w.cfg.WFS

	method, err := centroid.Lookup(wc.CentMethod)
	if err != nil {
		return err
	}

	opts := centroid.Options{Threshold: wc.CentThreshold, Plan: sh.w.plan}

	if method == centroid.Correlation {
		opts.Reference, err = sh.loadReference(wc.ReferenceImage)
		if err != nil {
			return err
		}
	}

	sh.centroider, err = centroid.New(method, sh.pxls, opts)

	return err
}

// loadReference reads a correlation reference that is either one subaperture
// window or a whole detector plane, which is cut into subaperture windows.
func (sh *shackHartmann) loadReference(path string) ([]float64, error) {
	pix, size, err := centroid.LoadReference(path)
	if err != nil {
		return nil, err
	}

	switch size {
	case sh.pxls:
		return pix, nil
	case sh.detPxls:
		n := sh.pxls * sh.pxls
		ref := make([]float64, len(sh.subaps)*n)

		for i, d := range sh.detCoords {
			aolib.Crop(ref[i*n:(i+1)*n], sh.pxls, pix, size, d[0], d[1])
		}

		return ref, nil
	default:
		return nil, fmt.Errorf("%w: %d pixel image for %d pixel subapertures on a %d pixel detector",
			centroid.ErrReference, size, sh.pxls, sh.detPxls)
	}
}

func (sh *shackHartmann) fieldSize() int { return sh.scaledSize }

func (sh *shackHartmann) calcFocalPlane(field []complex128, weight float64) error {
	n, pad := sh.fovSpacing, sh.pad
	plane := pad * pad

	in := sh.fft.Input()
	clear(in)

	for i, fc := range sh.fieldCoords {
		sub := in[i*plane : (i+1)*plane]

		for r := range n {
			row := (fc[0] + r) * sh.scaledSize

			for c := range n {
				j := row + fc[1] + c
				sub[r*pad+c] = field[j] * complex(sh.scaledMask[j], 0) * sh.tiltFix[r*n+c]
			}
		}
	}

	out, err := sh.fft.Execute()
	if err != nil {
		return err
	}

	if err := aofft.Shift2D(out, []int{len(sh.subaps), pad, pad}); err != nil {
		return err
	}

	for i, v := range out {
		sh.focal[i] += weight * (real(v)*real(v) + imag(v)*imag(v))
	}

	return nil
}

func (sh *shackHartmann) makeDetectorPlane(screens [][]float64) error {
	set := sh.w.settings

	if set.uplink && sh.uplink != nil {
		if err := sh.convolveUplink(screens); err != nil {
			return err
		}
	}

	active := len(sh.subaps)
	if err := aolib.BinBatch(sh.binned, sh.focal, active, sh.pad, sh.oversamp); err != nil {
		return err
	}

	window := sh.pxls2 * sh.pxls2

	for i, s := range sh.subaps {
		sub := sh.binned[i*window : (i+1)*window]
		if peak := floats.Max(sub); peak > 0 {
			floats.Scale(sh.maxFlux*s.FillFactor/peak, sub)
		}

		sh.scatter(sub, sh.detCoords[i])
	}

	if total := floats.Sum(sh.detector); total > 0 {
		floats.Scale(sh.w.PhotonCount()/total, sh.detector)
	}

	if set.photonNoise {
		sh.w.noise.photon(sh.detector)
	}

	if set.readNoise != 0 {
		sh.w.noise.gaussian(sh.detector, set.readNoise)
	}

	return nil
}

// scatter adds a pxls2² window centred on the subaperture's detector
// footprint, clipping rows and columns that fall off the detector.
func (sh *shackHartmann) scatter(sub []float64, det [2]int) {
	start := [2]int{det[0] - (sh.pxls2-sh.pxls)/2, det[1] - (sh.pxls2-sh.pxls)/2}

	var lo, hi [2]int
	for j := range 2 {
		lo[j] = max(start[j], 0)
		hi[j] = min(start[j]+sh.pxls2, sh.detPxls)
	}

	for r := lo[0]; r < hi[0]; r++ {
		src := sub[(r-start[0])*sh.pxls2:]
		dst := sh.detector[r*sh.detPxls:]

		for c := lo[1]; c < hi[1]; c++ {
			dst[c] += src[c-start[1]]
		}
	}
}

// convolveUplink convolves every subaperture focal plane with the LGS uplink
// PSF through the transforms' convolution theorem.
func (sh *shackHartmann) convolveUplink(screens [][]float64) error {
	psf, err := sh.uplink.PSF(screens)
	if err != nil {
		return err
	}

	lgsIn := sh.lgsFFT.Input()
	for i, v := range psf {
		lgsIn[i] = complex(v, 0)
	}

	kernel, err := sh.lgsFFT.Execute(nil)
	if err != nil {
		return err
	}

	in := sh.ifft.Input()
	for i, v := range sh.focal {
		in[i] = complex(v, 0)
	}

	spec, err := sh.ifft.Execute()
	if err != nil {
		return err
	}

	plane := sh.pad * sh.pad
	fwdIn := sh.fft.Input()

	for i, v := range spec {
		fwdIn[i] = v * kernel[i%plane]
	}

	out, err := sh.fft.Execute()
	if err != nil {
		return err
	}

	if err := aofft.Shift2D(out, []int{len(sh.subaps), sh.pad, sh.pad}); err != nil {
		return err
	}

	for i, v := range out {
		sh.focal[i] = real(v)
	}

	return nil
}

func (sh *shackHartmann) calculateSlopes() error {
	n := sh.pxls * sh.pxls

	for i, d := range sh.detCoords {
		aolib.Crop(sh.centImgs[i*n:(i+1)*n], sh.pxls, sh.detector, sh.detPxls, d[0], d[1])
	}

	if err := sh.centroider.Centroids(sh.cents, sh.centImgs); err != nil {
		return err
	}

	active := len(sh.subaps)
	half := float64(sh.pxls) / 2

	for i, c := range sh.cents {
		sh.slopes[i] = c[0] - half
		sh.slopes[active+i] = c[1] - half
	}

	if sh.static != nil {
		floats.Sub(sh.slopes, sh.static)
	}

	// A subaperture with no light reads zero.
	for i := range active {
		if floats.Sum(sh.centImgs[i*n:(i+1)*n]) == 0 {
			sh.slopes[i], sh.slopes[active+i] = 0, 0
		}
	}

	set := sh.w.settings

	if set.removeTT {
		for _, axis := range [][]float64{sh.slopes[:active], sh.slopes[active:]} {
			floats.AddConst(-floats.Sum(axis)/float64(active), axis)
		}
	}

	if set.angleNoise > 0 && !set.calibrating {
		sigma := set.angleNoise * float64(sh.pxls) / sh.w.cfg.WFS.SubapFOV
		sh.w.noise.gaussian(sh.slopes, sigma)
	}

	return nil
}

// captureStatic measures the slopes of a flat wavefront in calibration mode
// and subtracts them from every later frame.
func (sh *shackHartmann) captureStatic() error {
	sim := sh.w.cfg.Sim
	sh.static = nil

	slopes, err := sh.w.Frame([][]float64{make([]float64, sim.SimSize*sim.SimSize)}, FrameOptions{Calibration: true})
	if err != nil {
		return fmt.Errorf("wfs: static calibration: %w", err)
	}

	sh.static = append([]float64(nil), slopes...)

	return nil
}

func (sh *shackHartmann) zero(detector bool) {
	clear(sh.focal)

	if detector {
		clear(sh.detector)
	}
}

func (sh *shackHartmann) detectorPlane() []float64 { return sh.detector }

func (sh *shackHartmann) slopeVector() []float64 { return sh.slopes }

func (sh *shackHartmann) close() error {
	var first error

	for _, f := range []batchFFT{sh.fft, sh.ifft} {
		if f == nil {
			continue
		}

		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
