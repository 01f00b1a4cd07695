package aofft

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/cwbudde/aofft/internal/reference"
)

func TestParallelPlanMatchesSinglePlan(t *testing.T) {
	t.Parallel()

	const n = 8

	for _, batch := range []int{4, 7, 8} {
		for _, workers := range []int{1, 2, 4} {
			t.Run(fmt.Sprintf("B%d/P%d", batch, workers), func(t *testing.T) {
				t.Parallel()

				shape := []int{batch, n, n}
				x := reference.RandomComplex(batch*n*n, uint64(batch*10+workers))

				single, err := NewPlan[complex128](shape, PlanOptions{Axes: []int{1, 2}, Threads: 1, Backend: BackendNative})
				if err != nil {
					t.Fatal(err)
				}

				want, err := single.Execute(x)
				if err != nil {
					t.Fatal(err)
				}

				pp, err := NewParallelPlan[complex128](shape, workers, ParallelOptions{Backend: BackendNative})
				if err != nil {
					t.Fatal(err)
				}
				defer pp.Close()

				for frame := range 2 {
					got, err := pp.Execute(context.Background(), x)
					if err != nil {
						t.Fatalf("frame %d: %v", frame, err)
					}

					if !slices.Equal(got, want) {
						t.Fatalf("frame %d: parallel output differs from single plan", frame)
					}
				}
			})
		}
	}
}

func TestParallelPlanCapsWorkersAtBatch(t *testing.T) {
	captureWarnings(t)

	pp, err := NewParallelPlan[complex64]([]int{2, 4}, 8, ParallelOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer pp.Close()

	if pp.Workers() != 2 {
		t.Fatalf("Workers() = %d, want 2", pp.Workers())
	}
}

func TestParallelPlanErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewParallelPlan[complex128]([]int{4}, 2, ParallelOptions{}); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("no transform axis: err = %v", err)
	}

	if _, err := NewParallelPlan[complex128]([]int{4, 4}, 2, ParallelOptions{Axes: []int{0, 1}}); !errors.Is(err, ErrInvalidAxes) {
		t.Errorf("batch axis transformed: err = %v", err)
	}

	pp, err := NewParallelPlan[complex128]([]int{4, 4}, 2, ParallelOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pp.Execute(context.Background(), make([]complex128, 3)); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("short input: err = %v", err)
	}

	if err := pp.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := pp.Execute(context.Background(), nil); !errors.Is(err, ErrPlanClosed) {
		t.Errorf("closed plan: err = %v", err)
	}

	if err := pp.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestParallelPlanWorkerTimeout(t *testing.T) {
	captureWarnings(t)

	release := make(chan struct{})

	reg := NewRegistry()
	reg.Register(&testBackend{tag: "stuck", available: true, newLine: func(int, Direction) (LineTransform, error) {
		return lineFunc(func(dst, src []complex128) error {
			<-release
			return nil
		}), nil
	}})

	pp, err := NewParallelPlan[complex128]([]int{2, 4}, 2, ParallelOptions{Registry: reg, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	_, err = pp.Execute(context.Background(), nil)
	if !errors.Is(err, ErrWorkerFailure) {
		t.Fatalf("err = %v, want ErrWorkerFailure", err)
	}

	// The plan stays broken until closed.
	if _, err := pp.Execute(context.Background(), nil); !errors.Is(err, ErrWorkerFailure) {
		t.Fatalf("second Execute: err = %v, want ErrWorkerFailure", err)
	}

	close(release)

	if err := pp.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestParallelPlanWorkerErrorAndPanic(t *testing.T) {
	captureWarnings(t)

	cases := map[string]func(dst, src []complex128) error{
		"error": func(dst, src []complex128) error { return errors.New("device lost") },
		"panic": func(dst, src []complex128) error { panic("kernel fault") },
	}

	for name, fn := range cases {
		reg := NewRegistry()
		reg.Register(&testBackend{tag: "faulty", available: true, newLine: func(int, Direction) (LineTransform, error) {
			return lineFunc(fn), nil
		}})

		pp, err := NewParallelPlan[complex128]([]int{3, 4}, 3, ParallelOptions{Registry: reg, Timeout: time.Second})
		if err != nil {
			t.Fatal(err)
		}

		if _, err := pp.Execute(context.Background(), nil); !errors.Is(err, ErrWorkerFailure) {
			t.Errorf("%s: err = %v, want ErrWorkerFailure", name, err)
		}

		if err := pp.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestParallelPlanContextCancel(t *testing.T) {
	captureWarnings(t)

	release := make(chan struct{})

	reg := NewRegistry()
	reg.Register(&testBackend{tag: "slow", available: true, newLine: func(int, Direction) (LineTransform, error) {
		return lineFunc(func(dst, src []complex128) error {
			<-release
			return nil
		}), nil
	}})

	pp, err := NewParallelPlan[complex128]([]int{1, 4}, 1, ParallelOptions{Registry: reg})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = pp.Execute(ctx, nil)
	if !errors.Is(err, ErrWorkerFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrWorkerFailure wrapping DeadlineExceeded", err)
	}

	close(release)
	pp.Close()
}
