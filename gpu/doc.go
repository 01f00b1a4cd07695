// Package gpu connects device FFT backends to the aofft engine.
//
// A device backend (CUDA, OpenCL, or the CPU-backed mock used in tests)
// provides contexts, device buffers, streams and plan implementations.
// Registering one with RegisterBackend also registers the "gpu" engine
// backend in aofft.DefaultRegistry, ranked above the CPU backends, so plans
// created with BackendAuto or BackendGPU run on the device. The engine
// backend executes in place and only accepts power-of-two axis lengths.
package gpu
