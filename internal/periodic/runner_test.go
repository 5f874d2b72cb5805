package periodic

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "tickbar/pkg/logx"
)

func TestEveryRunsAndStops(t *testing.T) {
	r := NewRunner(logx.Nop())
	r.Start()
	defer stopRunner(r)

	var ticks atomic.Int64
	h, err := r.Every("test.tick", time.Second, func() { ticks.Add(1) })
	if err != nil {
		t.Fatalf("Every: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for ticks.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if ticks.Load() == 0 {
		t.Fatalf("task never ran")
	}

	h.Stop()
	// Let any in-flight invocation land before sampling.
	time.Sleep(100 * time.Millisecond)
	after := ticks.Load()
	time.Sleep(1500 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Fatalf("task ran after Stop: %d -> %d", after, got)
	}
}

func TestEveryClampsSubSecondInterval(t *testing.T) {
	r := NewRunner(logx.Nop())
	h, err := r.Every("test.fast", 10*time.Millisecond, func() {})
	if err != nil {
		t.Fatalf("Every rejected clamped interval: %v", err)
	}
	h.Stop()
}

func TestEveryNilFunc(t *testing.T) {
	r := NewRunner(logx.Nop())
	if _, err := r.Every("test.nil", time.Second, nil); err == nil {
		t.Fatalf("nil func accepted")
	}
}

func TestHandleStopIdempotent(t *testing.T) {
	r := NewRunner(logx.Nop())
	h, err := r.Every("test.stop", time.Second, func() {})
	if err != nil {
		t.Fatalf("Every: %v", err)
	}
	h.Stop()
	h.Stop()

	var nilHandle *Handle
	nilHandle.Stop()
}

func TestPanicInTaskIsContained(t *testing.T) {
	r := NewRunner(logx.Nop())
	r.Start()
	defer stopRunner(r)

	var after atomic.Bool
	if _, err := r.Every("test.panic", time.Second, func() { panic("boom") }); err != nil {
		t.Fatalf("Every: %v", err)
	}
	if _, err := r.Every("test.after", time.Second, func() { after.Store(true) }); err != nil {
		t.Fatalf("Every: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !after.Load() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if !after.Load() {
		t.Fatalf("panic in one task starved the engine")
	}
}

func stopRunner(r *Runner) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.Stop(ctx)
}
