package aofft

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	mathpkg "github.com/cwbudde/aofft/internal/math"
	"github.com/cwbudde/aofft/internal/monitoring"
)

// DefaultWorkerTimeout bounds the gather step of a ParallelPlan when
// ParallelOptions.Timeout is zero.
const DefaultWorkerTimeout = 30 * time.Second

// ParallelOptions configures NewParallelPlan.
type ParallelOptions struct {
	// Axes are given relative to the full shape and must not include the
	// leading batch axis. nil transforms every non-batch axis.
	Axes      []int
	Backend   BackendTag
	Direction Direction
	Flags     Flags
	Registry  *Registry

	// Timeout bounds one Execute gather. Zero means DefaultWorkerTimeout.
	Timeout time.Duration
}

// ParallelPlan splits a batched transform across persistent worker
// goroutines. Worker i owns batch elements i, i+P, i+2P, ... and executes
// them on its own single-threaded Plan.
//
// A worker that errors, panics or misses the gather deadline breaks the plan:
// that Execute and every later one return ErrWorkerFailure until Close.
type ParallelPlan[T Complex] struct {
	shape   []int
	elem    int
	timeout time.Duration

	input  []T
	output []T

	workers []*parallelWorker[T]
	results chan parallelResult[T]
	done    chan struct{}
	wg      sync.WaitGroup

	seq    uint64
	broken error
	closed bool
}

type parallelWorker[T Complex] struct {
	index int
	batch []int // batch indices owned by this worker
	plan  *Plan[T]
	jobs  chan parallelJob
}

type parallelJob struct {
	seq uint64
}

type parallelResult[T Complex] struct {
	seq    uint64
	worker int
	data   []T
	err    error
}

// NewParallelPlan creates the worker plans and starts one goroutine per
// worker. shape[0] is the batch axis. workers is capped at the batch size.
func NewParallelPlan[T Complex](shape []int, workers int, opts ParallelOptions) (*ParallelPlan[T], error) {
	if len(shape) < 2 {
		return nil, fmt.Errorf("%w: parallel plan needs a batch axis and at least one transform axis, got %v", ErrInvalidShape, shape)
	}

	for _, d := range shape {
		if d < 1 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidShape, shape)
		}
	}

	axes, err := normalizeAxes(opts.Axes, len(shape))
	if err != nil {
		return nil, err
	}

	if opts.Axes == nil {
		axes = axes[1:]
	}

	if slices.Contains(axes, 0) {
		return nil, fmt.Errorf("%w: the batch axis cannot be transformed", ErrInvalidAxes)
	}

	batch := shape[0]
	if workers < 1 {
		workers = 1
	}

	if workers > batch {
		monitoring.Warnf("aofft: %d workers for batch %d, using %d", workers, batch, batch)
		workers = batch
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}

	elem := mathpkg.Product(shape[1:])
	total := batch * elem

	pp := &ParallelPlan[T]{
		shape:   slices.Clone(shape),
		elem:    elem,
		timeout: timeout,
		input:   make([]T, total),
		output:  make([]T, total),
		results: make(chan parallelResult[T], workers),
		done:    make(chan struct{}),
	}

	for i := range workers {
		var owned []int
		for b := i; b < batch; b += workers {
			owned = append(owned, b)
		}

		wshape := append([]int{len(owned)}, shape[1:]...)

		plan, err := NewPlan[T](wshape, PlanOptions{
			Axes:      axes,
			Backend:   opts.Backend,
			Direction: opts.Direction,
			Threads:   1,
			Flags:     opts.Flags,
			Registry:  opts.Registry,
		})
		if err != nil {
			return nil, fmt.Errorf("parallel worker %d: %w", i, err)
		}

		pp.workers = append(pp.workers, &parallelWorker[T]{
			index: i,
			batch: owned,
			plan:  plan,
			jobs:  make(chan parallelJob, 1),
		})
	}

	for _, w := range pp.workers {
		pp.wg.Add(1)

		go pp.run(w)
	}

	return pp, nil
}

func (pp *ParallelPlan[T]) run(w *parallelWorker[T]) {
	defer pp.wg.Done()

	for job := range w.jobs {
		res := pp.work(w, job)

		select {
		case pp.results <- res:
		case <-pp.done:
			return
		}
	}
}

func (pp *ParallelPlan[T]) work(w *parallelWorker[T], job parallelJob) (res parallelResult[T]) {
	res = parallelResult[T]{seq: job.seq, worker: w.index}

	defer func() {
		if r := recover(); r != nil {
			res.data = nil
			res.err = fmt.Errorf("panic: %v", r)
		}
	}()

	in := w.plan.Input()
	for k, b := range w.batch {
		copy(in[k*pp.elem:(k+1)*pp.elem], pp.input[b*pp.elem:(b+1)*pp.elem])
	}

	out, err := w.plan.Execute(nil)
	if err != nil {
		res.err = err
		return res
	}

	res.data = slices.Clone(out)

	return res
}

// Execute transforms the whole batch and returns the output buffer. data, if
// non-nil, is copied into the input buffer first. The gather is bounded by
// ctx and the plan timeout.
func (pp *ParallelPlan[T]) Execute(ctx context.Context, data []T) ([]T, error) {
	if pp.closed {
		return nil, ErrPlanClosed
	}

	if pp.broken != nil {
		return nil, pp.broken
	}

	if data != nil {
		if len(data) != len(pp.input) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(data), len(pp.input))
		}

		copy(pp.input, data)
	}

	pp.seq++

	for _, w := range pp.workers {
		select {
		case w.jobs <- parallelJob{seq: pp.seq}:
		default:
			return nil, pp.fail(fmt.Errorf("%w: worker %d is still busy", ErrWorkerFailure, w.index))
		}
	}

	timer := time.NewTimer(pp.timeout)
	defer timer.Stop()

	for reported := 0; reported < len(pp.workers); {
		select {
		case res := <-pp.results:
			if res.seq != pp.seq {
				continue
			}

			if res.err != nil {
				return nil, pp.fail(fmt.Errorf("%w: worker %d: %w", ErrWorkerFailure, res.worker, res.err))
			}

			w := pp.workers[res.worker]
			for k, b := range w.batch {
				copy(pp.output[b*pp.elem:(b+1)*pp.elem], res.data[k*pp.elem:(k+1)*pp.elem])
			}

			reported++
		case <-timer.C:
			return nil, pp.fail(fmt.Errorf("%w: %d of %d workers reported within %v",
				ErrWorkerFailure, reported, len(pp.workers), pp.timeout))
		case <-ctx.Done():
			return nil, pp.fail(fmt.Errorf("%w: %w", ErrWorkerFailure, ctx.Err()))
		}
	}

	return pp.output, nil
}

func (pp *ParallelPlan[T]) fail(err error) error {
	pp.broken = err
	monitoring.Warnf("aofft: parallel plan broken: %v", err)

	return err
}

// Close stops the workers and waits for them. A worker stuck inside a
// transform is waited for until that transform returns.
func (pp *ParallelPlan[T]) Close() error {
	if pp.closed {
		return nil
	}

	pp.closed = true
	close(pp.done)

	for _, w := range pp.workers {
		close(w.jobs)
	}

	pp.wg.Wait()

	return nil
}

// Input returns the shared input buffer.
func (pp *ParallelPlan[T]) Input() []T { return pp.input }

// Output returns the shared output buffer.
func (pp *ParallelPlan[T]) Output() []T { return pp.output }

// Workers returns the number of worker goroutines.
func (pp *ParallelPlan[T]) Workers() int { return len(pp.workers) }

// Shape returns a copy of the batched shape.
func (pp *ParallelPlan[T]) Shape() []int { return slices.Clone(pp.shape) }

// Len returns the number of elements in each buffer.
func (pp *ParallelPlan[T]) Len() int { return len(pp.input) }
