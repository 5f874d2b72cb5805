package countdown

import (
	"context"
	"sync"
	"testing"

	"tickbar/internal/eventbus"
	"tickbar/internal/settings"
	logx "tickbar/pkg/logx"
)

type fakeSpeaker struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSpeaker) Say(_ context.Context, text string) error {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSpeaker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestEngine(t *testing.T) (*Engine, *fakeSpeaker) {
	t.Helper()
	sp := &fakeSpeaker{}
	set := settings.New(nil, logx.Nop())
	return New(set, nil, sp, logx.Nop(), nil), sp
}

func TestStartSetsRemainingToTotal(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Configure(0, 1, 30, "done")
	e.Start()

	snap := e.Snapshot()
	if snap.State != StateRunning {
		t.Fatalf("state = %v, want running", snap.State)
	}
	if snap.RemainingSeconds != 90 || snap.TotalSeconds != 90 {
		t.Fatalf("remaining=%d total=%d, want 90/90", snap.RemainingSeconds, snap.TotalSeconds)
	}
}

func TestTickDecrementsByExactlyOne(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Configure(0, 0, 5, "")
	e.Start()

	for want := 4; want >= 1; want-- {
		e.Tick()
		if got := e.Snapshot().RemainingSeconds; got != want {
			t.Fatalf("after tick, remaining = %d, want %d", got, want)
		}
	}
}

func TestFinishFiresExactlyOnce(t *testing.T) {
	e, sp := newTestEngine(t)
	e.Configure(0, 0, 2, "tea is ready")
	e.Start()

	e.Tick()
	e.Tick()
	// Extra ticks after reaching zero must not re-trigger completion.
	e.Tick()
	e.Tick()

	if got := sp.count(); got != 1 {
		t.Fatalf("announcement fired %d times, want 1", got)
	}
	snap := e.Snapshot()
	if snap.State != StateFinished || !snap.Finished {
		t.Fatalf("state = %v finished = %v, want finished", snap.State, snap.Finished)
	}
	if snap.RemainingSeconds != 0 {
		t.Fatalf("remaining = %d, want 0", snap.RemainingSeconds)
	}
	if sp.calls[0] != "tea is ready" {
		t.Fatalf("spoke %q, want configured message", sp.calls[0])
	}
}

func TestZeroDurationStartIsNoop(t *testing.T) {
	e, sp := newTestEngine(t)
	e.Configure(0, 0, 0, "")
	e.Start()

	snap := e.Snapshot()
	if snap.State != StateIdle {
		t.Fatalf("state = %v, want idle", snap.State)
	}
	if sp.count() != 0 {
		t.Fatalf("unexpected announcement on zero-duration start")
	}
}

func TestConfigureRejectedWhileRunning(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Configure(0, 0, 10, "first")
	e.Start()

	e.Configure(1, 0, 0, "second")
	if cfg := e.Config(); cfg.Message != "first" || cfg.TotalSeconds() != 10 {
		t.Fatalf("configure while running mutated config: %+v", cfg)
	}
}

func TestStopClearsFinishedOnlyWhenUserInitiated(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Configure(0, 0, 1, "")
	e.Start()
	e.Tick()

	if !e.Snapshot().Finished {
		t.Fatalf("expected finished after final tick")
	}
	e.Stop(false)
	if !e.Snapshot().Finished {
		t.Fatalf("internal stop must not clear finished")
	}
	e.Stop(true)
	if e.Snapshot().Finished {
		t.Fatalf("user stop must clear finished")
	}
}

func TestAcknowledgeClearsFinished(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Configure(0, 0, 1, "")
	e.Start()
	e.Tick()

	e.Acknowledge()
	snap := e.Snapshot()
	if snap.Finished || snap.State != StateIdle {
		t.Fatalf("after acknowledge: state=%v finished=%v, want idle/false", snap.State, snap.Finished)
	}
	// Acknowledge with nothing pending is a no-op.
	e.Acknowledge()
}

func TestRestartAfterFinish(t *testing.T) {
	e, sp := newTestEngine(t)
	e.Configure(0, 0, 1, "go")
	e.Start()
	e.Tick()

	e.Start()
	snap := e.Snapshot()
	if snap.State != StateRunning || snap.Finished {
		t.Fatalf("restart after finish: state=%v finished=%v", snap.State, snap.Finished)
	}
	e.Tick()
	if got := sp.count(); got != 2 {
		t.Fatalf("announcement fired %d times across two runs, want 2", got)
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Configure(0, 0, 30, "")
	e.Start()
	e.Tick()

	e.Reset()
	snap := e.Snapshot()
	if snap.State != StateIdle || snap.RemainingSeconds != 0 || snap.TotalSeconds != 0 {
		t.Fatalf("after reset: %+v", snap)
	}
	if got := e.FormattedTime(); got != "00:00:00" {
		t.Fatalf("formatted after reset = %q", got)
	}
}

func TestTickWhileIdleIsNoop(t *testing.T) {
	e, sp := newTestEngine(t)
	e.Tick()
	if sp.count() != 0 {
		t.Fatalf("idle tick triggered announcement")
	}
	if snap := e.Snapshot(); snap.State != StateIdle {
		t.Fatalf("idle tick changed state: %v", snap.State)
	}
}

func TestFinishedEventPublished(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	set := settings.New(nil, logx.Nop())
	e := New(set, nil, &fakeSpeaker{}, logx.Nop(), bus)
	e.Configure(0, 0, 1, "")
	e.Start()
	e.Tick()

	var seen []string
	for {
		select {
		case ev := <-events:
			seen = append(seen, ev.Type)
		default:
			goto done
		}
	}
done:
	var hasStart, hasFinish bool
	for _, typ := range seen {
		switch typ {
		case eventbus.EventCountdownStarted:
			hasStart = true
		case eventbus.EventCountdownFinished:
			hasFinish = true
		}
	}
	if !hasStart || !hasFinish {
		t.Fatalf("events = %v, want started+finished", seen)
	}
}
