package aofft

import (
	"errors"
	"fmt"
	"math/cmplx"
	"slices"
	"testing"

	"github.com/cwbudde/aofft/internal/cpu"
	"github.com/cwbudde/aofft/internal/reference"
)

type testBackend struct {
	tag       BackendTag
	rank      int
	available bool
	supports  func(Request) bool
	inPlace   bool
	newLine   func(n int, dir Direction) (LineTransform, error)
}

func (b *testBackend) Info() BackendInfo {
	return BackendInfo{Tag: b.tag, Rank: b.rank, InPlace: b.inPlace, Description: "test"}
}

func (b *testBackend) Available() bool { return b.available }

func (b *testBackend) Supports(req Request) bool {
	if b.supports == nil {
		return true
	}

	return b.supports(req)
}

func (b *testBackend) NewLineTransform(n int, dir Direction) (LineTransform, error) {
	if b.newLine != nil {
		return b.newLine(n, dir)
	}

	return nativeBackend{}.NewLineTransform(n, dir)
}

type lineFunc func(dst, src []complex128) error

func (f lineFunc) Transform(dst, src []complex128) error { return f(dst, src) }

var roundTripShapes = []struct {
	shape []int
	axes  []int
}{
	{[]int{16}, nil},
	{[]int{15}, nil},
	{[]int{8, 8}, nil},
	{[]int{6, 10}, nil},
	{[]int{3, 4, 6}, []int{-1, -2}},
	{[]int{4, 5, 2}, []int{0}},
}

func TestPlanRoundTripAllBackends(t *testing.T) {
	t.Parallel()

	for _, backend := range []BackendTag{BackendNative, BackendGonum, BackendReference} {
		for _, tc := range roundTripShapes {
			t.Run(fmt.Sprintf("%s/%v/%v", backend, tc.shape, tc.axes), func(t *testing.T) {
				t.Parallel()

				fwd, err := NewPlan[complex128](tc.shape, PlanOptions{Axes: tc.axes, Backend: backend, Threads: 2})
				if err != nil {
					t.Fatalf("NewPlan forward: %v", err)
				}

				bwd, err := NewPlan[complex128](tc.shape, PlanOptions{Axes: tc.axes, Backend: backend, Direction: Backward, Threads: 2})
				if err != nil {
					t.Fatalf("NewPlan backward: %v", err)
				}

				if fwd.Backend() != backend {
					t.Fatalf("Backend() = %q, want %q", fwd.Backend(), backend)
				}

				x := reference.RandomComplex(fwd.Len(), 7)

				freq, err := fwd.Execute(x)
				if err != nil {
					t.Fatalf("forward: %v", err)
				}

				got, err := bwd.Execute(freq)
				if err != nil {
					t.Fatalf("backward: %v", err)
				}

				scale := float64(fwd.Scale())
				for i := range x {
					assertApproxComplex128Tolf(t, got[i], x[i]*complex(scale, 0), 1e-9*scale, "index %d", i)
				}
			})
		}
	}
}

func TestPlanRoundTripComplex64(t *testing.T) {
	t.Parallel()

	for _, backend := range []BackendTag{BackendNative, BackendGonum, BackendReference} {
		fwd, err := NewPlan[complex64]([]int{8, 12}, PlanOptions{Backend: backend})
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		bwd, err := NewPlan[complex64]([]int{8, 12}, PlanOptions{Backend: backend, Direction: Backward})
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		x := randomComplex64(fwd.Len(), 3)

		freq, err := fwd.Execute(x)
		if err != nil {
			t.Fatal(err)
		}

		got, err := bwd.Execute(freq)
		if err != nil {
			t.Fatal(err)
		}

		for i := range x {
			want := complex128(x[i]) * 96
			if cmplx.Abs(complex128(got[i])-want) > 1e-3 {
				t.Fatalf("%s: index %d got %v want %v", backend, i, got[i], want)
			}
		}
	}
}

func TestPlanMatchesNaiveDFT2(t *testing.T) {
	t.Parallel()

	const h, w = 6, 8

	x := reference.RandomComplex(h*w, 11)

	for _, dir := range []Direction{Forward, Backward} {
		plan, err := NewPlan[complex128]([]int{h, w}, PlanOptions{Direction: dir})
		if err != nil {
			t.Fatal(err)
		}

		got, err := plan.Execute(x)
		if err != nil {
			t.Fatal(err)
		}

		want := naiveDFT2(x, h, w, dir == Backward)
		for i := range want {
			assertApproxComplex128Tolf(t, got[i], want[i], 1e-9, "%s index %d", dir, i)
		}
	}
}

func TestPlanImpulse(t *testing.T) {
	t.Parallel()

	plan, err := NewPlan[complex128]([]int{4, 4}, PlanOptions{Backend: BackendNative})
	if err != nil {
		t.Fatal(err)
	}

	plan.Input()[0] = 1

	out, err := plan.Execute(nil)
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range out {
		assertApproxComplex128Tolf(t, v, 1, 1e-12, "index %d", i)
	}
}

func TestPlanExecuteNilReusesInput(t *testing.T) {
	t.Parallel()

	plan, err := NewPlan[complex128]([]int{4, 6}, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}

	x := reference.RandomComplex(plan.Len(), 5)

	want, err := plan.Execute(x)
	if err != nil {
		t.Fatal(err)
	}

	want = slices.Clone(want)

	copy(plan.Input(), x)

	got, err := plan.Execute(nil)
	if err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(got, want) {
		t.Fatal("Execute(nil) on the same input gave a different result")
	}

	if &got[0] != &plan.Output()[0] {
		t.Fatal("Execute should return the output buffer")
	}

	if !slices.Equal(plan.Input(), x) {
		t.Fatal("out-of-place plan modified its input buffer")
	}
}

func TestPlanDestroyInputReturnsInput(t *testing.T) {
	t.Parallel()

	plan, err := NewPlan[complex128]([]int{8}, PlanOptions{Flags: FlagDestroyInput})
	if err != nil {
		t.Fatal(err)
	}

	if !plan.InPlace() {
		t.Fatal("FlagDestroyInput plan should be in place")
	}

	out, err := plan.Execute(reference.RandomComplex(8, 1))
	if err != nil {
		t.Fatal(err)
	}

	if &out[0] != &plan.Input()[0] {
		t.Fatal("in-place plan should return the input buffer")
	}
}

func TestPlanThreadsMatchSingleThread(t *testing.T) {
	t.Parallel()

	shape := []int{16, 12}
	x := reference.RandomComplex(16*12, 9)

	var outputs [][]complex128

	for _, threads := range []int{1, 3, 8} {
		plan, err := NewPlan[complex128](shape, PlanOptions{Threads: threads, Backend: BackendNative})
		if err != nil {
			t.Fatal(err)
		}

		out, err := plan.Execute(x)
		if err != nil {
			t.Fatal(err)
		}

		outputs = append(outputs, slices.Clone(out))
	}

	for i := 1; i < len(outputs); i++ {
		if !slices.Equal(outputs[0], outputs[i]) {
			t.Fatalf("thread count changed the result (run %d)", i)
		}
	}
}

func TestPlanReferenceIsSingleThreaded(t *testing.T) {
	t.Parallel()

	plan, err := NewPlan[complex128]([]int{4, 4}, PlanOptions{Backend: BackendReference, Threads: 8})
	if err != nil {
		t.Fatal(err)
	}

	if plan.Threads() != 1 {
		t.Fatalf("Threads() = %d, want 1", plan.Threads())
	}
}

func TestPlanErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		shape []int
		axes  []int
		want  error
	}{
		{"empty shape", nil, nil, ErrInvalidShape},
		{"zero dim", []int{4, 0}, nil, ErrInvalidShape},
		{"axis out of range", []int{4, 4}, []int{2}, ErrInvalidAxes},
		{"negative out of range", []int{4, 4}, []int{-3}, ErrInvalidAxes},
		{"repeated axis", []int{4, 4}, []int{1, -1}, ErrInvalidAxes},
		{"no axes", []int{4, 4}, []int{}, ErrInvalidAxes},
	}

	for _, tc := range cases {
		_, err := NewPlan[complex128](tc.shape, PlanOptions{Axes: tc.axes})
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	plan, err := NewPlan[complex128]([]int{4}, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := plan.Execute(make([]complex128, 3)); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Execute short slice: err = %v, want ErrLengthMismatch", err)
	}
}

func TestPlanFallbackLogsSkippedBackends(t *testing.T) {
	warnings := captureWarnings(t)

	reg := NewRegistry()
	reg.Register(&testBackend{tag: "picky", rank: 0, available: true, supports: func(Request) bool { return false }})
	reg.Register(&testBackend{tag: "offline", rank: 1, available: false})
	reg.Register(nativeBackend{})

	plan, err := NewPlan[complex128]([]int{8}, PlanOptions{Registry: reg, Backend: "offline"})
	if err != nil {
		t.Fatal(err)
	}

	if plan.Backend() != BackendNative {
		t.Fatalf("Backend() = %q, want native", plan.Backend())
	}

	if len(*warnings) < 2 {
		t.Fatalf("expected a warning per skipped backend, got %q", *warnings)
	}
}

func TestPlanFallbackOnLineTransformError(t *testing.T) {
	captureWarnings(t)

	reg := NewRegistry()
	reg.Register(&testBackend{tag: "broken", rank: 0, available: true, newLine: func(int, Direction) (LineTransform, error) {
		return nil, errors.New("no device memory")
	}})
	reg.Register(referenceBackend{})

	plan, err := NewPlan[complex128]([]int{4}, PlanOptions{Registry: reg})
	if err != nil {
		t.Fatal(err)
	}

	if plan.Backend() != BackendReference {
		t.Fatalf("Backend() = %q, want reference", plan.Backend())
	}
}

func TestPlanBackendUnavailable(t *testing.T) {
	captureWarnings(t)

	if _, err := NewPlan[complex128]([]int{8}, PlanOptions{Registry: NewRegistry()}); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("empty registry: err = %v, want ErrBackendUnavailable", err)
	}

	reg := NewRegistry()
	reg.Register(&testBackend{tag: "picky", available: true, supports: func(Request) bool { return false }})

	if _, err := NewPlan[complex128]([]int{8}, PlanOptions{Registry: reg}); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("unsupported request: err = %v, want ErrBackendUnavailable", err)
	}
}

func rankedTags(reg *Registry) []BackendTag {
	var tags []BackendTag
	for _, b := range reg.Backends() {
		tags = append(tags, b.Info().Tag)
	}

	return tags
}

func TestRegistryRanking(t *testing.T) {
	cpu.SetForcedFeatures(cpu.Features{HasSSE2: true, NumCPU: 2})
	defer cpu.ResetDetection()

	reg := NewRegistry()
	reg.Register(referenceBackend{})
	reg.Register(gonumBackend{})
	reg.Register(nativeBackend{})
	reg.Register(&testBackend{tag: "down", rank: -1, available: false})
	reg.Register(nil)

	want := []BackendTag{BackendNative, BackendGonum, BackendReference}
	if tags := rankedTags(reg); !slices.Equal(tags, want) {
		t.Fatalf("Backends() = %v, want %v", tags, want)
	}

	reg.Unregister(BackendGonum)

	if _, ok := reg.Lookup(BackendGonum); ok {
		t.Fatal("gonum still registered after Unregister")
	}
}

func TestRegistryRankingWithoutSIMD(t *testing.T) {
	cpu.SetForcedFeatures(cpu.Features{HasSSE2: true, HasAVX2: true, ForceGeneric: true, NumCPU: 2})
	defer cpu.ResetDetection()

	reg := NewRegistry()
	reg.Register(referenceBackend{})
	reg.Register(gonumBackend{})
	reg.Register(nativeBackend{})

	want := []BackendTag{BackendGonum, BackendNative, BackendReference}
	if tags := rankedTags(reg); !slices.Equal(tags, want) {
		t.Fatalf("Backends() = %v, want %v", tags, want)
	}

	plan, err := NewPlan[complex128]([]int{8}, PlanOptions{Registry: reg})
	if err != nil {
		t.Fatal(err)
	}

	if plan.Backend() != BackendGonum {
		t.Fatalf("Backend() = %q, want gonum on a generic host", plan.Backend())
	}

	cpu.ResetDetection()

	if cpu.DetectFeatures().HasSIMD() && rankedTags(reg)[0] != BackendNative {
		t.Fatalf("Backends() = %v after reset", rankedTags(reg))
	}
}

func TestPlanInPlaceBackend(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&testBackend{tag: "device", available: true, inPlace: true})

	plan, err := NewPlan[complex128]([]int{4, 4}, PlanOptions{Registry: reg})
	if err != nil {
		t.Fatal(err)
	}

	out, err := plan.Execute(reference.RandomComplex(16, 2))
	if err != nil {
		t.Fatal(err)
	}

	if &out[0] != &plan.Input()[0] {
		t.Fatal("in-place backend should return the input buffer")
	}
}

func TestPlanString(t *testing.T) {
	t.Parallel()

	plan, err := NewPlan[complex64]([]int{2, 4, 4}, PlanOptions{Axes: []int{1, 2}, Backend: BackendGonum, Direction: Backward})
	if err != nil {
		t.Fatal(err)
	}

	want := "backward gonum complex64 [2 4 4] axes [1 2]"
	if got := plan.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
