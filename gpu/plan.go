package gpu

// Plan is a GPU-backed 1-D FFT plan for a specific size and precision.
//
// The plan owns its device buffers and streams. It is safe for concurrent
// use only if the underlying backend is thread-safe.
type Plan[T Complex] struct {
	n         int
	precision PrecisionKind
	ctx       Context
	streams   []Stream
	in, out   Buffer
	impl      PlanImpl
}

// NewPlan creates a GPU plan using the registered backend.
func NewPlan[T Complex](n int, opts PlanOptions) (*Plan[T], error) {
	if n < 1 {
		return nil, ErrInvalidLength
	}

	backend := getBackend()
	if backend == nil {
		return nil, ErrNoBackend
	}

	if !backend.Available() {
		return nil, ErrBackendUnavailable
	}

	ctx, err := backend.NewContext(opts.DeviceIndex)
	if err != nil {
		return nil, err
	}

	p := &Plan[T]{n: n, precision: precisionOf[T](), ctx: ctx}

	if err := p.init(opts); err != nil {
		_ = p.Close()
		return nil, err
	}

	return p, nil
}

func (p *Plan[T]) init(opts PlanOptions) error {
	streamCount := opts.StreamCount
	if streamCount <= 0 {
		streamCount = 1
	}

	for range streamCount {
		stream, err := p.ctx.NewStream()
		if err != nil {
			return err
		}

		p.streams = append(p.streams, stream)
	}

	var err error

	if p.in, err = p.ctx.NewBuffer(p.n, p.precision); err != nil {
		return err
	}

	if p.out, err = p.ctx.NewBuffer(p.n, p.precision); err != nil {
		return err
	}

	p.impl, err = p.ctx.NewFFTPlan(p.n, p.precision, opts)

	return err
}

func precisionOf[T Complex]() PrecisionKind {
	var zero T
	if _, ok := any(zero).(complex128); ok {
		return PrecisionComplex128
	}

	return PrecisionComplex64
}

// Len returns the FFT length (number of complex samples) for this Plan.
func (p *Plan[T]) Len() int {
	if p == nil {
		return 0
	}

	return p.n
}

// Precision returns the plan precision.
func (p *Plan[T]) Precision() PrecisionKind {
	if p == nil {
		return PrecisionComplex64
	}

	return p.precision
}

// Forward computes the unnormalized forward FFT on the device.
func (p *Plan[T]) Forward(dst, src []T) error {
	return p.run(dst, src, false)
}

// Inverse computes the unnormalized backward FFT on the device.
func (p *Plan[T]) Inverse(dst, src []T) error {
	return p.run(dst, src, true)
}

// ForwardInPlace computes the forward FFT in-place.
func (p *Plan[T]) ForwardInPlace(data []T) error {
	return p.Forward(data, data)
}

// InverseInPlace computes the inverse FFT in-place.
func (p *Plan[T]) InverseInPlace(data []T) error {
	return p.Inverse(data, data)
}

func (p *Plan[T]) run(dst, src []T, inverse bool) error {
	if p == nil || p.impl == nil {
		return ErrNotImplemented
	}

	if dst == nil || src == nil {
		return ErrNilSlice
	}

	if len(dst) < p.n || len(src) < p.n {
		return ErrLengthMismatch
	}

	if err := p.in.Upload(src[:p.n]); err != nil {
		return err
	}

	stream := p.streams[0]

	var err error
	if inverse {
		err = p.impl.Inverse(p.out, p.in, stream)
	} else {
		err = p.impl.Forward(p.out, p.in, stream)
	}

	if err != nil {
		return err
	}

	if err := stream.Synchronize(); err != nil {
		return err
	}

	return p.out.Download(dst[:p.n])
}

// Close releases GPU resources associated with the plan.
func (p *Plan[T]) Close() error {
	if p == nil {
		return nil
	}

	if p.impl != nil {
		_ = p.impl.Close()
		p.impl = nil
	}

	for _, b := range []Buffer{p.in, p.out} {
		if b != nil {
			_ = b.Close()
		}
	}

	p.in, p.out = nil, nil

	var firstErr error

	for _, s := range p.streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.streams = nil

	if p.ctx != nil {
		if err := p.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		p.ctx = nil
	}

	return firstErr
}
