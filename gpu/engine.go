package gpu

import (
	"github.com/cwbudde/aofft"
)

// EngineBackend exposes the registered device backend to the aofft engine.
// It is available while a device backend is registered and available.
type EngineBackend struct{}

// Info implements aofft.Backend.
func (EngineBackend) Info() aofft.BackendInfo {
	desc := "GPU device FFT"
	if info, ok := CurrentBackendInfo(); ok {
		desc += " (" + info.Name + ")"
	}

	return aofft.BackendInfo{
		Tag:         aofft.BackendGPU,
		Description: desc,
		Rank:        0,
		InPlace:     true,
	}
}

// Available implements aofft.Backend.
func (EngineBackend) Available() bool {
	b := getBackend()
	return b != nil && b.Available()
}

// Supports accepts requests whose transformed axes all have power-of-two
// lengths.
func (EngineBackend) Supports(req aofft.Request) bool {
	if len(req.Axes) == 0 {
		return false
	}

	for _, n := range req.Lengths() {
		if n < 1 || n&(n-1) != 0 {
			return false
		}
	}

	return true
}

// NewLineTransform implements aofft.Backend. Each line transform owns a
// device context with one stream, two buffers and a device plan.
func (EngineBackend) NewLineTransform(n int, dir aofft.Direction) (aofft.LineTransform, error) {
	plan, err := NewPlan[complex128](n, PlanOptions{})
	if err != nil {
		return nil, err
	}

	return &deviceLine{plan: plan, inverse: dir == aofft.Backward}, nil
}

type deviceLine struct {
	plan    *Plan[complex128]
	inverse bool
}

func (l *deviceLine) Transform(dst, src []complex128) error {
	if len(dst) > 0 && len(src) > 0 && &dst[0] == &src[0] {
		if l.inverse {
			return l.plan.InverseInPlace(dst)
		}

		return l.plan.ForwardInPlace(dst)
	}

	if l.inverse {
		return l.plan.Inverse(dst, src)
	}

	return l.plan.Forward(dst, src)
}
