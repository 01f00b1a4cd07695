package gpu

import (
	"sync"

	"github.com/cwbudde/aofft"
)

// Backend is implemented by GPU backends (CUDA, ROCm, Metal, Vulkan, etc.).
// It is responsible for device discovery, buffer allocation, and execution.
type Backend interface {
	Info() BackendInfo
	Available() bool
	Devices() ([]DeviceInfo, error)
	NewContext(deviceIndex int) (Context, error)
}

// Context represents a backend-specific GPU context tied to a device.
type Context interface {
	Device() DeviceInfo
	// NewBuffer allocates a device buffer for complex data.
	NewBuffer(elemCount int, precision PrecisionKind) (Buffer, error)
	// NewStream creates an execution stream/queue.
	NewStream() (Stream, error)
	// NewFFTPlan creates a backend-specific FFT plan implementation.
	NewFFTPlan(n int, precision PrecisionKind, opts PlanOptions) (PlanImpl, error)
	Close() error
}

// Buffer is a device buffer.
type Buffer interface {
	Len() int
	Precision() PrecisionKind
	// Upload copies from host to device.
	Upload(src any) error
	// Download copies from device to host.
	Download(dst any) error
	Close() error
}

// Stream represents an execution queue/stream.
type Stream interface {
	Synchronize() error
	Close() error
}

// PlanImpl is a backend-specific FFT plan implementation operating on device
// buffers of the plan's length. Results are visible after the stream that
// enqueued them is synchronized.
type PlanImpl interface {
	Len() int
	Precision() PrecisionKind
	Forward(dst, src Buffer, stream Stream) error
	Inverse(dst, src Buffer, stream Stream) error
	Close() error
}

var (
	backendMu sync.RWMutex
	backend   Backend
)

// RegisterBackend registers a GPU backend and exposes it to the engine as
// aofft.BackendGPU. Passing nil clears the backend and removes the engine
// backend from aofft.DefaultRegistry.
func RegisterBackend(b Backend) {
	backendMu.Lock()
	backend = b
	backendMu.Unlock()

	if b == nil {
		aofft.DefaultRegistry.Unregister(aofft.BackendGPU)
		return
	}

	aofft.RegisterBackend(EngineBackend{})
}

// CurrentBackendInfo reports the currently registered backend, if any.
func CurrentBackendInfo() (BackendInfo, bool) {
	b := getBackend()
	if b == nil {
		return BackendInfo{}, false
	}

	return b.Info(), true
}

func getBackend() Backend {
	backendMu.RLock()
	b := backend
	backendMu.RUnlock()

	return b
}
