package gpu

import "github.com/cwbudde/aofft"

// Complex is the shared complex constraint used by aofft.
type Complex = aofft.Complex

// PrecisionKind describes the element precision of device buffers.
type PrecisionKind = aofft.Precision

const (
	PrecisionComplex64  = aofft.PrecisionComplex64
	PrecisionComplex128 = aofft.PrecisionComplex128
)

// DeviceInfo describes a GPU device.
type DeviceInfo struct {
	Name       string
	Vendor     string
	Driver     string
	MemoryMB   int
	ComputeCap string
}

// BackendInfo describes a device backend implementation.
type BackendInfo struct {
	Name        string
	Version     string
	Description string
}

// PlanOptions controls GPU plan creation.
type PlanOptions struct {
	// DeviceIndex selects which device to use (0 = default).
	DeviceIndex int

	// StreamCount requests a number of execution streams/queues.
	StreamCount int
}
