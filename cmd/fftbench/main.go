package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/cwbudde/aofft"
	"github.com/cwbudde/aofft/gpu"
)

const (
	modeForward   = "forward"
	modeBackward  = "backward"
	modeRoundtrip = "roundtrip"
)

type benchResult struct {
	size    int
	backend string
	nsPerOp float64
}

func main() {
	var (
		sizeList   = flag.String("sizes", "16,32,64,128,256", "comma-separated square plane sizes")
		batch      = flag.Int("batch", 1, "planes per transform; >1 also times the parallel plan")
		workers    = flag.Int("workers", runtime.NumCPU(), "parallel plan workers")
		iters      = flag.Int("iters", 50, "benchmark iterations")
		warmup     = flag.Int("warmup", 5, "warmup iterations")
		mode       = flag.String("mode", modeForward, "benchmark mode: forward, backward, roundtrip, all")
		single     = flag.Bool("complex64", false, "benchmark complex64 instead of complex128")
		mockGPU    = flag.Bool("mock-gpu", false, "register the CPU-backed mock GPU device")
		wisdomFile = flag.String("wisdom", "", "record measured choices and export wisdom to file")
		seed       = flag.Uint64("seed", 1, "rng seed")
	)
	flag.Parse()

	sizes := parseSizes(*sizeList)
	if len(sizes) == 0 {
		fmt.Println("no sizes specified")
		return
	}

	if *mockGPU {
		gpu.RegisterMockBackend()
	}

	rnd := rand.New(rand.NewPCG(*seed, *seed))

	fmt.Printf("iters=%d warmup=%d batch=%d\n", *iters, *warmup, *batch)
	fmt.Printf("%8s  %10s  %12s  %12s\n", "size", "mode", "backend", "ns/op")

	for _, n := range sizes {
		for _, runMode := range resolveModes(*mode) {
			var results []benchResult
			if *single {
				results = benchmarkSize[complex64](rnd, n, *batch, *workers, *iters, *warmup, runMode)
			} else {
				results = benchmarkSize[complex128](rnd, n, *batch, *workers, *iters, *warmup, runMode)
			}

			sort.Slice(results, func(i, j int) bool {
				return results[i].nsPerOp < results[j].nsPerOp
			})

			for _, res := range results {
				fmt.Printf("%8d  %10s  %12s  %12.1f\n", n, runMode, res.backend, res.nsPerOp)
			}
		}

		if *wisdomFile != "" {
			if err := measure(n, *batch, *single); err != nil {
				fmt.Printf("error measuring %d: %v\n", n, err)
				os.Exit(1)
			}
		}
	}

	if *wisdomFile != "" {
		if err := aofft.ExportWisdom(*wisdomFile); err != nil {
			fmt.Printf("error exporting wisdom: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\nWisdom exported to: %s (%d entries)\n", *wisdomFile, aofft.WisdomLen())
	}
}

// measure builds FlagMeasure plans in both directions so the engine records
// its fastest backend for the shape in the default wisdom.
func measure(n, batch int, single bool) error {
	for _, dir := range []aofft.Direction{aofft.Forward, aofft.Backward} {
		opts := aofft.PlanOptions{Direction: dir, Flags: aofft.FlagMeasure, Axes: []int{-2, -1}}
		shape := planShape(n, batch)

		var err error
		if single {
			_, err = aofft.NewPlan[complex64](shape, opts)
		} else {
			_, err = aofft.NewPlan[complex128](shape, opts)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func planShape(n, batch int) []int {
	if batch > 1 {
		return []int{batch, n, n}
	}

	return []int{n, n}
}

func benchmarkSize[T aofft.Complex](rnd *rand.Rand, n, batch, workers, iters, warmup int, mode string) []benchResult {
	shape := planShape(n, batch)

	src := make([]T, batch*n*n)
	for i := range src {
		src[i] = T(complex(rnd.Float64(), rnd.Float64()))
	}

	var results []benchResult

	for _, b := range aofft.Backends() {
		if !b.Available() {
			continue
		}

		tag := b.Info().Tag

		fwd, err := aofft.NewPlan[T](shape, aofft.PlanOptions{Backend: tag, Axes: []int{-2, -1}})
		if err != nil {
			continue
		}

		bwd, err := aofft.NewPlan[T](shape, aofft.PlanOptions{Backend: tag, Axes: []int{-2, -1}, Direction: aofft.Backward})
		if err != nil {
			continue
		}

		run := func() error { return runPlanMode(fwd, bwd, src, mode) }

		if ns, ok := timeRuns(run, iters, warmup); ok {
			results = append(results, benchResult{size: n, backend: string(tag), nsPerOp: ns})
		}
	}

	if batch > 1 && mode != modeRoundtrip {
		dir := aofft.Forward
		if mode == modeBackward {
			dir = aofft.Backward
		}

		pp, err := aofft.NewParallelPlan[T](shape, workers, aofft.ParallelOptions{Direction: dir})
		if err == nil {
			defer pp.Close()

			run := func() error {
				copy(pp.Input(), src)
				_, err := pp.Execute(context.Background(), nil)

				return err
			}

			if ns, ok := timeRuns(run, iters, warmup); ok {
				results = append(results, benchResult{size: n, backend: fmt.Sprintf("parallel/%d", pp.Workers()), nsPerOp: ns})
			}
		}
	}

	return results
}

func timeRuns(run func() error, iters, warmup int) (float64, bool) {
	for range warmup {
		if err := run(); err != nil {
			return 0, false
		}
	}

	runtime.GC()

	start := time.Now()

	for range iters {
		if err := run(); err != nil {
			return 0, false
		}
	}

	return float64(time.Since(start).Nanoseconds()) / float64(iters), true
}

func runPlanMode[T aofft.Complex](fwd, bwd *aofft.Plan[T], src []T, mode string) error {
	switch mode {
	case modeBackward:
		copy(bwd.Input(), src)
		_, err := bwd.Execute(nil)

		return err
	case modeRoundtrip:
		copy(fwd.Input(), src)

		freq, err := fwd.Execute(nil)
		if err != nil {
			return err
		}

		copy(bwd.Input(), freq)
		_, err = bwd.Execute(nil)

		return err
	default:
		copy(fwd.Input(), src)
		_, err := fwd.Execute(nil)

		return err
	}
}

func resolveModes(mode string) []string {
	switch mode {
	case "all":
		return []string{modeForward, modeBackward, modeRoundtrip}
	case modeForward, modeBackward, modeRoundtrip:
		return []string{mode}
	default:
		return []string{modeForward}
	}
}

func parseSizes(list string) []int {
	parts := strings.Split(list, ",")

	out := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var n int

		_, err := fmt.Sscanf(part, "%d", &n)
		if err != nil || n <= 0 {
			continue
		}

		out = append(out, n)
	}

	return out
}
