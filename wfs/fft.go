package wfs

import (
	"context"

	"github.com/cwbudde/aofft"
)

// batchFFT is a transform over a batch of square planes whose input buffer
// the sensor fills directly.
type batchFFT interface {
	Input() []complex128
	Execute() ([]complex128, error)
	Close() error
}

// newBatchFFT returns a single plan, or a parallel plan when processes > 1
// and there is more than one plane.
func newBatchFFT(shape []int, dir aofft.Direction, processes int, opts aofft.PlanOptions) (batchFFT, error) {
	opts.Direction = dir

	if processes > 1 && len(shape) == 3 && shape[0] > 1 {
		pp, err := aofft.NewParallelPlan[complex128](shape, processes, aofft.ParallelOptions{
			Backend:   opts.Backend,
			Direction: dir,
			Flags:     opts.Flags,
			Registry:  opts.Registry,
		})
		if err != nil {
			return nil, err
		}

		return parallelFFT{pp}, nil
	}

	if len(shape) == 3 {
		opts.Axes = []int{1, 2}
	}

	p, err := aofft.NewPlan[complex128](shape, opts)
	if err != nil {
		return nil, err
	}

	return planFFT{p}, nil
}

type planFFT struct {
	p *aofft.Plan[complex128]
}

func (f planFFT) Input() []complex128            { return f.p.Input() }
func (f planFFT) Execute() ([]complex128, error) { return f.p.Execute(nil) }
func (f planFFT) Close() error                   { return nil }

type parallelFFT struct {
	pp *aofft.ParallelPlan[complex128]
}

func (f parallelFFT) Input() []complex128 { return f.pp.Input() }

func (f parallelFFT) Execute() ([]complex128, error) {
	return f.pp.Execute(context.Background(), nil)
}

func (f parallelFFT) Close() error { return f.pp.Close() }
