// Command wfsframe runs wavefront sensor frames from a configuration file
// and renders the last detector plane and slope vector.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cwbudde/aofft"
	"github.com/cwbudde/aofft/config"
	"github.com/cwbudde/aofft/wfs"
)

func main() {
	var (
		configFile = flag.String("config", "", "HuJSON configuration file; empty uses the defaults")
		frames     = flag.Int("frames", 1, "frames to run")
		rms        = flag.Float64("rms", 100, "phase screen rms in nm")
		smooth     = flag.Float64("smooth", 2, "phase screen correlation length in pixels")
		wisdomFile = flag.String("wisdom", "", "import FFT wisdom from file")
		detOut     = flag.String("detector", "detector.png", "detector heat map output")
		slopeOut   = flag.String("slopes", "slopes.png", "slope plot output")
		calibrate  = flag.Bool("calibrate", false, "run calibration frames on the first screen")
	)
	flag.Parse()

	if err := run(*configFile, *frames, *rms, *smooth, *wisdomFile, *detOut, *slopeOut, *calibrate); err != nil {
		fmt.Fprintln(os.Stderr, "wfsframe:", err)
		os.Exit(1)
	}
}

func run(configFile string, frames int, rms, smooth float64, wisdomFile, detOut, slopeOut string, calibrate bool) error {
	cfg := config.Default()

	if configFile != "" {
		var err error

		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
	}

	if wisdomFile != "" {
		if err := aofft.ImportWisdom(wisdomFile); err != nil {
			return err
		}
	}

	sensor, err := wfs.New(cfg)
	if err != nil {
		return err
	}
	defer sensor.Close()

	rng := rand.New(rand.NewPCG(cfg.Sim.Seed, cfg.Sim.Seed+1))
	opts := wfs.FrameOptions{Calibration: calibrate}

	var slopes []float64

	for i := range frames {
		screens, err := randomScreens(rng, cfg, rms, smooth)
		if err != nil {
			return err
		}

		if calibrate {
			screens = screens[:1]
		}

		start := time.Now()

		slopes, err = sensor.Frame(screens, opts)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}

		fmt.Printf("frame %d: %s, %d slopes, rms %.4f px, %.1f ms\n",
			i, sensor.State(), len(slopes), rmsOf(slopes), float64(time.Since(start).Microseconds())/1000)
	}

	fmt.Printf("photons/frame %.4g, detector sum %.4g\n", sensor.PhotonCount(), floats.Sum(sensor.DetectorPlane()))

	if err := saveDetector(detOut, sensor.DetectorPlane(), sensor.DetectorSize()); err != nil {
		return err
	}

	return saveSlopes(slopeOut, slopes)
}

// randomScreens draws white noise per layer and smooths it with a circular
// Gaussian kernel, scaled to the requested rms.
func randomScreens(rng *rand.Rand, cfg config.Config, rms, smooth float64) ([][]float64, error) {
	n := cfg.Sim.SimSize

	kernel := make([]float64, n*n)
	for r := range n {
		dr := float64(min(r, n-r))

		for c := range n {
			dc := float64(min(c, n-c))
			kernel[r*n+c] = math.Exp(-(dr*dr + dc*dc) / (2 * smooth * smooth))
		}
	}

	conv, err := aofft.NewConvolver(n, n, aofft.PlanOptions{})
	if err != nil {
		return nil, err
	}

	screens := make([][]float64, len(cfg.Atmosphere.ScreenHeights))
	noise := make([]float64, n*n)

	for i := range screens {
		for j := range noise {
			noise[j] = rng.NormFloat64()
		}

		screens[i] = make([]float64, n*n)
		if err := conv.Convolve(screens[i], noise, kernel); err != nil {
			return nil, err
		}

		mean := floats.Sum(screens[i]) / float64(n*n)
		floats.AddConst(-mean, screens[i])

		if s := rmsOf(screens[i]); s > 0 {
			floats.Scale(rms/s/math.Sqrt(float64(len(screens))), screens[i])
		}
	}

	return screens, nil
}

func rmsOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}

	return floats.Norm(v, 2) / math.Sqrt(float64(len(v)))
}

// detectorGrid adapts a square row-major image to plotter.GridXYZ with row 0
// at the top.
type detectorGrid struct {
	pix  []float64
	size int
}

func (g detectorGrid) Dims() (c, r int)   { return g.size, g.size }
func (g detectorGrid) Z(c, r int) float64 { return g.pix[(g.size-1-r)*g.size+c] }
func (g detectorGrid) X(c int) float64    { return float64(c) }
func (g detectorGrid) Y(r int) float64    { return float64(r) }

func saveDetector(path string, pix []float64, size int) error {
	p := plot.New()
	p.Title.Text = "Detector plane"
	p.X.Label.Text = "pixel"
	p.Y.Label.Text = "pixel"

	hm := plotter.NewHeatMap(detectorGrid{pix: pix, size: size}, palette.Heat(64, 1))
	p.Add(hm)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	return nil
}

func saveSlopes(path string, slopes []float64) error {
	p := plot.New()
	p.Title.Text = "Slopes (x then y)"
	p.X.Label.Text = "index"
	p.Y.Label.Text = "pixels"

	pts := make(plotter.XYs, len(slopes))
	for i, s := range slopes {
		pts[i] = plotter.XY{X: float64(i), Y: s}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}

	line.Width = vg.Points(1)
	p.Add(line)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	return nil
}
