package aofft

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/aofft/internal/cpu"
	mathpkg "github.com/cwbudde/aofft/internal/math"
	"github.com/cwbudde/aofft/internal/monitoring"
)

// PlanOptions configures NewPlan.
type PlanOptions struct {
	// Axes to transform. Negative values count from the end; nil means all.
	Axes []int

	// Backend is the preferred backend. BackendAuto takes the best ranked.
	Backend BackendTag

	Direction Direction

	// Threads bounds the goroutines used per axis. 0 uses the CPU count.
	Threads int

	Flags Flags

	// Registry to pick backends from; nil uses DefaultRegistry.
	Registry *Registry
}

// Plan is a reusable multi-dimensional transform over row-major buffers.
//
// A plan owns its input and output buffers for its whole lifetime and is not
// safe for concurrent Execute calls.
type Plan[T Complex] struct {
	shape     []int
	axes      []int
	direction Direction
	flags     Flags
	threads   int

	backend Backend
	info    BackendInfo
	inPlace bool

	input  []T
	output []T

	lines []axisLines
	work  [][]complex128
}

// axisLines describes the lines along one axis of a row-major array.
// Element k of line l sits at (l/stride)*n*stride + l%stride + k*stride.
type axisLines struct {
	n       int
	stride  int
	count   int
	workers []LineTransform
}

// NewPlan creates a plan for arrays of the given shape.
//
// The backend is the first of opts.Backend (or the wisdom entry for this
// request when no backend is named) followed by the ranked registry backends
// that is available and supports the request. Each skipped
// preference is logged as a warning. ErrBackendUnavailable is returned when no
// backend is left.
func NewPlan[T Complex](shape []int, opts PlanOptions) (*Plan[T], error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: empty shape", ErrInvalidShape)
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

	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = cpu.DetectFeatures().DefaultThreads()
	}

	req := Request{
		Shape:     slices.Clone(shape),
		Axes:      axes,
		Direction: opts.Direction,
		Precision: precisionOf[T](),
		Threads:   threads,
		Flags:     opts.Flags,
	}

	p := &Plan[T]{
		shape:     req.Shape,
		axes:      axes,
		direction: opts.Direction,
		flags:     opts.Flags,
	}

	total := mathpkg.Product(shape)
	p.input = make([]T, total)
	p.output = make([]T, total)

	if opts.Flags&FlagMeasure != 0 {
		err = p.measure(registry, req, opts.Backend)
	} else {
		err = p.selectBackend(registry, req, opts.Backend)
	}

	if err != nil {
		return nil, err
	}

	return p, nil
}

func normalizeAxes(axes []int, rank int) ([]int, error) {
	if axes == nil {
		out := make([]int, rank)
		for i := range out {
			out[i] = i
		}

		return out, nil
	}

	if len(axes) == 0 {
		return nil, fmt.Errorf("%w: no axes", ErrInvalidAxes)
	}

	out := make([]int, len(axes))
	seen := make(map[int]bool, len(axes))

	for i, a := range axes {
		if a < 0 {
			a += rank
		}

		if a < 0 || a >= rank {
			return nil, fmt.Errorf("%w: axis %d for rank %d", ErrInvalidAxes, axes[i], rank)
		}

		if seen[a] {
			return nil, fmt.Errorf("%w: axis %d repeated", ErrInvalidAxes, a)
		}

		seen[a] = true
		out[i] = a
	}

	return out, nil
}

// chain returns the ordered candidate list for req.
func chain(registry *Registry, req Request, preferred BackendTag) []Backend {
	if preferred != BackendAuto {
		if b, ok := registry.Lookup(preferred); !ok || !b.Available() {
			monitoring.Warnf("aofft: backend %q unavailable, falling back", preferred)
		}
	}

	candidates := registry.candidates(preferred)

	if preferred != BackendAuto {
		return candidates
	}

	if tag, ok := DefaultWisdom.Lookup(wisdomKey(req)); ok {
		idx := slices.IndexFunc(candidates, func(b Backend) bool { return b.Info().Tag == tag })
		if idx > 0 {
			b := candidates[idx]
			candidates = append(candidates[:idx], candidates[idx+1:]...)
			candidates = append([]Backend{b}, candidates...)
		}
	}

	return candidates
}

func (p *Plan[T]) selectBackend(registry *Registry, req Request, preferred BackendTag) error {
	for _, b := range chain(registry, req, preferred) {
		tag := b.Info().Tag
		if !b.Supports(req) {
			monitoring.Warnf("aofft: backend %q does not support %v axes %v, falling back", tag, req.Shape, req.Axes)
			continue
		}

		if err := p.bind(b, req); err != nil {
			monitoring.Warnf("aofft: backend %q: %v, falling back", tag, err)
			continue
		}

		return nil
	}

	return fmt.Errorf("%w: shape %v axes %v", ErrBackendUnavailable, req.Shape, req.Axes)
}

// measure binds every supporting backend in turn, times it on random data and
// keeps the fastest. The winner is stored in DefaultWisdom.
func (p *Plan[T]) measure(registry *Registry, req Request, preferred BackendTag) error {
	var (
		best     Backend
		bestCost time.Duration
	)

	rng := rand.New(rand.NewPCG(uint64(len(p.input)), 0x5eed))

	for _, b := range registry.candidates(preferred) {
		if !b.Supports(req) {
			continue
		}

		if err := p.bind(b, req); err != nil {
			monitoring.Warnf("aofft: measuring backend %q: %v", b.Info().Tag, err)
			continue
		}

		for i := range p.input {
			p.input[i] = T(complex(rng.Float64()-0.5, rng.Float64()-0.5))
		}

		const rounds = 3

		start := time.Now()

		for range rounds {
			if _, err := p.Execute(nil); err != nil {
				return err
			}
		}

		cost := time.Since(start) / rounds
		if best == nil || cost < bestCost {
			best, bestCost = b, cost
		}
	}

	clear(p.input)
	clear(p.output)

	if best == nil {
		return fmt.Errorf("%w: shape %v axes %v", ErrBackendUnavailable, req.Shape, req.Axes)
	}

	DefaultWisdom.Store(wisdomKey(req), best.Info().Tag, bestCost)

	return p.bind(best, req)
}

// bind builds per-thread line transforms for every axis on b.
func (p *Plan[T]) bind(b Backend, req Request) error {
	info := b.Info()

	threads := req.Threads
	if info.MaxThreads > 0 && threads > info.MaxThreads {
		threads = info.MaxThreads
	}

	strides := mathpkg.Strides(p.shape)
	total := len(p.input)

	lines := make([]axisLines, len(p.axes))
	maxThreads := 1

	for i, a := range p.axes {
		n := p.shape[a]
		count := total / n

		workers := min(threads, count)
		al := axisLines{n: n, stride: strides[a], count: count, workers: make([]LineTransform, workers)}

		for w := range workers {
			lt, err := b.NewLineTransform(n, p.direction)
			if err != nil {
				return err
			}

			al.workers[w] = lt
		}

		maxThreads = max(maxThreads, workers)
		lines[i] = al
	}

	work := make([][]complex128, maxThreads)
	for w := range work {
		work[w] = make([]complex128, slices.Max(p.shape))
	}

	p.backend = b
	p.info = info
	p.threads = threads
	p.inPlace = info.InPlace || p.flags&FlagDestroyInput != 0
	p.lines = lines
	p.work = work

	return nil
}

// Execute runs the transform.
//
// When data is non-nil it is copied into the input buffer first; its length
// must equal the plan size. With nil data the current input buffer contents
// are transformed. The returned slice is the output buffer, or the input
// buffer for in-place backends and FlagDestroyInput plans, and stays valid
// until the next Execute.
func (p *Plan[T]) Execute(data []T) ([]T, error) {
	if data != nil {
		if len(data) != len(p.input) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(data), len(p.input))
		}

		copy(p.input, data)
	}

	buf := p.input
	if !p.inPlace {
		copy(p.output, p.input)
		buf = p.output
	}

	for i := range p.lines {
		if err := p.transformAxis(buf, &p.lines[i]); err != nil {
			return nil, fmt.Errorf("aofft: %s backend: %w", p.info.Tag, err)
		}
	}

	return buf, nil
}

func (p *Plan[T]) transformAxis(buf []T, al *axisLines) error {
	workers := len(al.workers)
	if workers == 1 {
		return p.transformLines(buf, al, 0, 0, al.count)
	}

	var g errgroup.Group

	chunk := (al.count + workers - 1) / workers
	for w := range workers {
		start := w * chunk
		end := min(start+chunk, al.count)

		if start >= end {
			break
		}

		g.Go(func() error {
			return p.transformLines(buf, al, w, start, end)
		})
	}

	return g.Wait()
}

// transformLines gathers each line into the worker scratch buffer, transforms
// it and scatters it back.
func (p *Plan[T]) transformLines(buf []T, al *axisLines, worker, start, end int) error {
	line := p.work[worker][:al.n]
	lt := al.workers[worker]

	for l := start; l < end; l++ {
		base := (l/al.stride)*al.n*al.stride + l%al.stride

		for k := range line {
			line[k] = complex128(buf[base+k*al.stride])
		}

		if err := lt.Transform(line, line); err != nil {
			return err
		}

		for k, v := range line {
			buf[base+k*al.stride] = T(v)
		}
	}

	return nil
}

// Input returns the plan's input buffer. Writing into it and calling
// Execute(nil) avoids a copy.
func (p *Plan[T]) Input() []T { return p.input }

// Output returns the plan's output buffer.
func (p *Plan[T]) Output() []T { return p.output }

// Shape returns a copy of the plan shape.
func (p *Plan[T]) Shape() []int { return slices.Clone(p.shape) }

// Axes returns the normalized transform axes.
func (p *Plan[T]) Axes() []int { return slices.Clone(p.axes) }

// Len returns the number of elements in each buffer.
func (p *Plan[T]) Len() int { return len(p.input) }

// Direction returns the transform direction.
func (p *Plan[T]) Direction() Direction { return p.direction }

// Backend returns the tag of the backend the plan executes on.
func (p *Plan[T]) Backend() BackendTag { return p.info.Tag }

// Threads returns the thread count after backend limits were applied.
func (p *Plan[T]) Threads() int { return p.threads }

// InPlace reports whether Execute returns the input buffer.
func (p *Plan[T]) InPlace() bool { return p.inPlace }

// Scale returns the round-trip factor: the product of transformed axis lengths.
func (p *Plan[T]) Scale() int {
	n := 1
	for _, a := range p.axes {
		n *= p.shape[a]
	}

	return n
}

// String describes the plan, e.g. "forward native complex128 [4 8 8] axes [1 2]".
func (p *Plan[T]) String() string {
	dims := make([]string, len(p.shape))
	for i, d := range p.shape {
		dims[i] = strconv.Itoa(d)
	}

	return fmt.Sprintf("%s %s %s [%s] axes %v", p.direction, p.info.Tag, precisionOf[T](), strings.Join(dims, " "), p.axes)
}
