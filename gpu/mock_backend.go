package gpu

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/aofft/internal/fft"
)

// MockBackend is a CPU-backed GPU backend for development and tests.
// It satisfies the GPU backend interfaces but executes on the CPU with the
// native kernels.
type MockBackend struct {
	device  DeviceInfo
	offline atomic.Bool
}

// NewMockBackend returns a mock backend with a single fake device.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		device: DeviceInfo{
			Name:       "MockGPU",
			Vendor:     "aofft",
			Driver:     "mock",
			MemoryMB:   0,
			ComputeCap: "cpu",
		},
	}
}

func (b *MockBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "mock",
		Version:     "0.2",
		Description: "CPU-backed mock GPU backend",
	}
}

// SetOffline makes Available report false, as if the driver went away.
func (b *MockBackend) SetOffline(offline bool) {
	b.offline.Store(offline)
}

func (b *MockBackend) Available() bool {
	return !b.offline.Load()
}

func (b *MockBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{b.device}, nil
}

func (b *MockBackend) NewContext(deviceIndex int) (Context, error) {
	if deviceIndex != 0 {
		return nil, fmt.Errorf("mock backend: device index %d out of range", deviceIndex)
	}

	return &mockContext{device: b.device}, nil
}

// RegisterMockBackend registers the mock backend as the active backend and
// returns it.
func RegisterMockBackend() *MockBackend {
	b := NewMockBackend()
	RegisterBackend(b)

	return b
}

type mockContext struct {
	device DeviceInfo
}

func (c *mockContext) Device() DeviceInfo {
	return c.device
}

func (c *mockContext) NewBuffer(elemCount int, precision PrecisionKind) (Buffer, error) {
	if elemCount < 0 {
		return nil, ErrInvalidLength
	}

	switch precision {
	case PrecisionComplex64:
		return &mockBuffer{precision: precision, len: elemCount, data64: make([]complex64, elemCount)}, nil
	case PrecisionComplex128:
		return &mockBuffer{precision: precision, len: elemCount, data128: make([]complex128, elemCount)}, nil
	default:
		return nil, ErrNotImplemented
	}
}

func (c *mockContext) NewStream() (Stream, error) {
	return &mockStream{}, nil
}

func (c *mockContext) NewFFTPlan(n int, precision PrecisionKind, _ PlanOptions) (PlanImpl, error) {
	if n < 1 {
		return nil, ErrInvalidLength
	}

	fwd, err := fft.NewKernel(n, false, fft.StrategyAuto)
	if err != nil {
		return nil, err
	}

	inv, err := fft.NewKernel(n, true, fft.StrategyAuto)
	if err != nil {
		return nil, err
	}

	return &mockPlan{n: n, precision: precision, fwd: fwd, inv: inv, scratch: make([]complex128, n)}, nil
}

func (c *mockContext) Close() error {
	return nil
}

type mockBuffer struct {
	precision PrecisionKind
	len       int
	data64    []complex64
	data128   []complex128
}

func (b *mockBuffer) Len() int {
	return b.len
}

func (b *mockBuffer) Precision() PrecisionKind {
	return b.precision
}

func (b *mockBuffer) Upload(src any) error {
	switch data := src.(type) {
	case []complex64:
		if b.precision != PrecisionComplex64 {
			return ErrNotImplemented
		}

		if len(data) < b.len {
			return ErrLengthMismatch
		}

		copy(b.data64, data[:b.len])
	case []complex128:
		if b.precision != PrecisionComplex128 {
			return ErrNotImplemented
		}

		if len(data) < b.len {
			return ErrLengthMismatch
		}

		copy(b.data128, data[:b.len])
	default:
		return ErrNotImplemented
	}

	return nil
}

func (b *mockBuffer) Download(dst any) error {
	switch data := dst.(type) {
	case []complex64:
		if b.precision != PrecisionComplex64 {
			return ErrNotImplemented
		}

		if len(data) < b.len {
			return ErrLengthMismatch
		}

		copy(data[:b.len], b.data64)
	case []complex128:
		if b.precision != PrecisionComplex128 {
			return ErrNotImplemented
		}

		if len(data) < b.len {
			return ErrLengthMismatch
		}

		copy(data[:b.len], b.data128)
	default:
		return ErrNotImplemented
	}

	return nil
}

// load widens the buffer into dst.
func (b *mockBuffer) load(dst []complex128) {
	if b.precision == PrecisionComplex64 {
		for i, v := range b.data64 {
			dst[i] = complex128(v)
		}

		return
	}

	copy(dst, b.data128)
}

// store narrows src into the buffer.
func (b *mockBuffer) store(src []complex128) {
	if b.precision == PrecisionComplex64 {
		for i, v := range src {
			b.data64[i] = complex64(v)
		}

		return
	}

	copy(b.data128, src)
}

func (b *mockBuffer) Close() error {
	b.data64 = nil
	b.data128 = nil
	b.len = 0

	return nil
}

type mockStream struct {
	pending int
}

func (s *mockStream) Synchronize() error {
	s.pending = 0
	return nil
}

func (s *mockStream) Close() error { return nil }

type mockPlan struct {
	n         int
	precision PrecisionKind
	fwd, inv  fft.Kernel
	scratch   []complex128
}

func (p *mockPlan) Len() int {
	return p.n
}

func (p *mockPlan) Precision() PrecisionKind {
	return p.precision
}

func (p *mockPlan) Forward(dst, src Buffer, stream Stream) error {
	return p.execute(p.fwd, dst, src, stream)
}

func (p *mockPlan) Inverse(dst, src Buffer, stream Stream) error {
	return p.execute(p.inv, dst, src, stream)
}

func (p *mockPlan) execute(k fft.Kernel, dst, src Buffer, stream Stream) error {
	if k == nil {
		return ErrNotImplemented
	}

	in, ok := src.(*mockBuffer)
	if !ok {
		return ErrNotImplemented
	}

	out, ok := dst.(*mockBuffer)
	if !ok {
		return ErrNotImplemented
	}

	if in.len != p.n || out.len != p.n {
		return ErrLengthMismatch
	}

	if in.precision != p.precision || out.precision != p.precision {
		return ErrNotImplemented
	}

	in.load(p.scratch)
	k.Transform(p.scratch, p.scratch)
	out.store(p.scratch)

	if s, ok := stream.(*mockStream); ok {
		s.pending++
	}

	return nil
}

func (p *mockPlan) Close() error {
	p.fwd, p.inv = nil, nil
	return nil
}
