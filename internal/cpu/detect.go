// Package cpu reports the host capabilities the FFT engine uses to rank its
// backends and choose default thread counts.
package cpu

import (
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// Features describes CPU capabilities relevant to backend selection.
type Features struct {
	HasSSE2 bool
	HasAVX2 bool
	HasNEON bool

	Architecture string
	NumCPU       int

	// ForceGeneric disables all SIMD-dependent fast paths. Set by tests.
	ForceGeneric bool
}

var (
	detectOnce sync.Once
	detected   Features

	overrideMu sync.RWMutex
	override   *Features
)

// DetectFeatures reports the available CPU features for the current process.
// Detection runs once; SetForcedFeatures can replace the result in tests.
func DetectFeatures() Features {
	overrideMu.RLock()
	o := override
	overrideMu.RUnlock()

	if o != nil {
		return *o
	}

	detectOnce.Do(func() {
		detected = detectFeaturesImpl()
	})

	return detected
}

// SetForcedFeatures overrides feature detection until ResetDetection is called.
func SetForcedFeatures(f Features) {
	overrideMu.Lock()
	override = &f
	overrideMu.Unlock()
}

// ResetDetection drops any override installed by SetForcedFeatures.
func ResetDetection() {
	overrideMu.Lock()
	override = nil
	overrideMu.Unlock()
}

func detectFeaturesImpl() Features {
	return Features{
		HasSSE2:      cpu.X86.HasSSE2,
		HasAVX2:      cpu.X86.HasAVX2,
		HasNEON:      cpu.ARM64.HasASIMD,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
	}
}

// HasSIMD reports whether a vector extension is present and not forced off.
func (f Features) HasSIMD() bool {
	if f.ForceGeneric {
		return false
	}

	return f.HasSSE2 || f.HasAVX2 || f.HasNEON
}

// DefaultThreads returns the thread count used when a plan asks for 0 threads.
func (f Features) DefaultThreads() int {
	if f.NumCPU < 1 {
		return 1
	}

	return f.NumCPU
}
