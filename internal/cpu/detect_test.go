package cpu

import (
	"runtime"
	"testing"
)

func TestDetectFeatures(t *testing.T) {
	f := DetectFeatures()

	if f.Architecture != runtime.GOARCH {
		t.Errorf("Architecture = %q, want %q", f.Architecture, runtime.GOARCH)
	}

	if f.DefaultThreads() < 1 {
		t.Errorf("DefaultThreads() = %d, want >= 1", f.DefaultThreads())
	}

	if runtime.GOARCH == "amd64" && !f.HasSSE2 {
		t.Error("amd64 without SSE2 reported")
	}
}

func TestSetForcedFeatures(t *testing.T) {
	SetForcedFeatures(Features{ForceGeneric: true, HasAVX2: true, NumCPU: 3})
	defer ResetDetection()

	f := DetectFeatures()
	if f.HasSIMD() {
		t.Error("HasSIMD() = true with ForceGeneric set")
	}

	if f.DefaultThreads() != 3 {
		t.Errorf("DefaultThreads() = %d, want 3", f.DefaultThreads())
	}

	ResetDetection()

	if got := DetectFeatures(); got.ForceGeneric {
		t.Error("override still active after ResetDetection")
	}
}
