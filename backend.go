package aofft

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/cwbudde/aofft/internal/cpu"
	"github.com/cwbudde/aofft/internal/fft"
	"github.com/cwbudde/aofft/internal/reference"
)

// Request describes what a plan needs from a backend.
type Request struct {
	Shape     []int
	Axes      []int
	Direction Direction
	Precision Precision
	Threads   int
	Flags     Flags
}

// Lengths returns the lengths of the transformed axes.
func (r Request) Lengths() []int {
	lengths := make([]int, len(r.Axes))
	for i, a := range r.Axes {
		lengths[i] = r.Shape[a]
	}

	return lengths
}

// BackendInfo describes a backend implementation.
type BackendInfo struct {
	Tag         BackendTag
	Description string

	// Rank orders backends by capability; lower is preferred.
	Rank int

	// InPlace backends overwrite the input buffer, and Execute returns it.
	InPlace bool

	// MaxThreads caps the plan thread count; 0 means unlimited.
	MaxThreads int
}

// LineTransform transforms contiguous lines of one fixed length.
// Implementations own scratch space and serve a single goroutine.
type LineTransform interface {
	Transform(dst, src []complex128) error
}

// Backend is implemented by every transform backend.
//
// Backends answer capability queries up front so plan construction never
// relies on a failed call to discover that a backend cannot serve a request.
type Backend interface {
	Info() BackendInfo
	Available() bool
	Supports(req Request) bool
	NewLineTransform(n int, dir Direction) (LineTransform, error)
}

// Registry holds the backends a plan may choose from.
type Registry struct {
	mu       sync.RWMutex
	backends map[BackendTag]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[BackendTag]Backend)}
}

// DefaultRegistry is used by plans that do not name a registry. It starts
// with the native, gonum and reference backends; package gpu adds "gpu".
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(nativeBackend{})
	r.Register(gonumBackend{})
	r.Register(referenceBackend{})

	return r
}

// Register adds b, replacing any backend with the same tag.
// Passing nil is a no-op.
func (r *Registry) Register(b Backend) {
	if b == nil {
		return
	}

	r.mu.Lock()
	r.backends[b.Info().Tag] = b
	r.mu.Unlock()
}

// Unregister removes the backend with the given tag.
func (r *Registry) Unregister(tag BackendTag) {
	r.mu.Lock()
	delete(r.backends, tag)
	r.mu.Unlock()
}

// Lookup returns the backend registered under tag.
func (r *Registry) Lookup(tag BackendTag) (Backend, bool) {
	r.mu.RLock()
	b, ok := r.backends[tag]
	r.mu.RUnlock()

	return b, ok
}

// Backends returns the available backends ordered by rank, then tag.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	all := make([]Backend, 0, len(r.backends))
	for _, b := range r.backends {
		all = append(all, b)
	}
	r.mu.RUnlock()

	ranked := all[:0]
	for _, b := range all {
		if b.Available() {
			ranked = append(ranked, b)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i].Info(), ranked[j].Info()
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}

		return a.Tag < b.Tag
	})

	return ranked
}

// Backends returns the available backends of the default registry, ranked.
func Backends() []Backend {
	return DefaultRegistry.Backends()
}

// RegisterBackend adds b to the default registry.
func RegisterBackend(b Backend) {
	DefaultRegistry.Register(b)
}

// candidates returns the backends to try for req: the preferred one first
// (if present), then every other available backend in rank order.
func (r *Registry) candidates(preferred BackendTag) []Backend {
	ranked := r.Backends()
	if preferred == BackendAuto {
		return ranked
	}

	idx := slices.IndexFunc(ranked, func(b Backend) bool { return b.Info().Tag == preferred })
	if idx <= 0 {
		return ranked
	}

	out := make([]Backend, 0, len(ranked))
	out = append(out, ranked[idx])
	out = append(out, ranked[:idx]...)
	out = append(out, ranked[idx+1:]...)

	return out
}

type nativeBackend struct{}

// Info ranks the native kernels ahead of gonum on hosts with a vector
// extension and behind it on generic hosts.
func (nativeBackend) Info() BackendInfo {
	rank := 10
	if !cpu.DetectFeatures().HasSIMD() {
		rank = 30
	}

	return BackendInfo{
		Tag:         BackendNative,
		Description: "pure Go radix-2 and Bluestein kernels",
		Rank:        rank,
	}
}

func (nativeBackend) Available() bool { return true }

func (nativeBackend) Supports(req Request) bool { return len(req.Axes) > 0 }

func (nativeBackend) NewLineTransform(n int, dir Direction) (LineTransform, error) {
	k, err := fft.NewKernel(n, dir == Backward, fft.StrategyAuto)
	if err != nil {
		return nil, err
	}

	return kernelLine{k}, nil
}

type kernelLine struct {
	k fft.Kernel
}

func (l kernelLine) Transform(dst, src []complex128) error {
	l.k.Transform(dst, src)
	return nil
}

type gonumBackend struct{}

func (gonumBackend) Info() BackendInfo {
	return BackendInfo{
		Tag:         BackendGonum,
		Description: "gonum dsp/fourier complex FFT",
		Rank:        20,
	}
}

func (gonumBackend) Available() bool { return true }

func (gonumBackend) Supports(req Request) bool { return len(req.Axes) > 0 }

func (gonumBackend) NewLineTransform(n int, dir Direction) (LineTransform, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: gonum line length %d", ErrInvalidShape, n)
	}

	return &gonumLine{fft: fourier.NewCmplxFFT(n), inverse: dir == Backward}, nil
}

type gonumLine struct {
	fft     *fourier.CmplxFFT
	inverse bool
}

func (l *gonumLine) Transform(dst, src []complex128) error {
	if l.inverse {
		l.fft.Sequence(dst, src)
	} else {
		l.fft.Coefficients(dst, src)
	}

	return nil
}

type referenceBackend struct{}

func (referenceBackend) Info() BackendInfo {
	return BackendInfo{
		Tag:         BackendReference,
		Description: "naive O(n^2) DFT",
		Rank:        100,
		MaxThreads:  1,
	}
}

func (referenceBackend) Available() bool { return true }

func (referenceBackend) Supports(req Request) bool { return len(req.Axes) > 0 }

func (referenceBackend) NewLineTransform(n int, dir Direction) (LineTransform, error) {
	return &referenceLine{scratch: make([]complex128, n), inverse: dir == Backward}, nil
}

type referenceLine struct {
	scratch []complex128
	inverse bool
}

func (l *referenceLine) Transform(dst, src []complex128) error {
	reference.Transform(l.scratch, src, l.inverse)
	copy(dst, l.scratch)

	return nil
}
