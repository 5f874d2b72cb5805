package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logx "tickbar/pkg/logx"
)

type fakeAdapter struct {
	mu        sync.Mutex
	authErr   error
	delivered []Notification
	failures  int // fail this many Deliver calls before succeeding
	calls     int
}

func (f *fakeAdapter) Authorize(context.Context) error { return f.authErr }

func (f *fakeAdapter) Deliver(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("delivery failed")
	}
	f.delivered = append(f.delivered, n)
	return nil
}

func (f *fakeAdapter) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNotifyDeliversThroughWorker(t *testing.T) {
	ad := &fakeAdapter{}
	s := New(Config{Enabled: true, RatePerSec: 100}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	defer stopService(s)

	if err := s.Notify(context.Background(), Notification{ID: IdentTest, Title: "t", Body: "b"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, "delivery", func() bool { return ad.deliveredCount() == 1 })

	if got := ad.delivered[0]; got.ID != IdentTest || got.Body != "b" {
		t.Fatalf("delivered %+v", got)
	}
	if hist := s.Snapshot(); len(hist) != 1 {
		t.Fatalf("history length = %d, want 1", len(hist))
	}
}

func TestDisabledServiceRejects(t *testing.T) {
	s := New(Config{Enabled: false}, &fakeAdapter{}, logx.Nop(), nil)
	s.Start(context.Background())
	if err := s.Notify(context.Background(), Notification{Title: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestNotifyBeforeStartReturnsStopped(t *testing.T) {
	s := New(Config{Enabled: true}, &fakeAdapter{}, logx.Nop(), nil)
	if err := s.Notify(context.Background(), Notification{Title: "x"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestAuthDenialSuppressesDelivery(t *testing.T) {
	ad := &fakeAdapter{authErr: errors.New("denied")}
	s := New(Config{Enabled: true, RatePerSec: 100}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	defer stopService(s)

	if s.AuthError() == nil {
		t.Fatalf("expected recorded auth error")
	}
	// Enqueue still succeeds; delivery is suppressed, not erroring.
	if err := s.Notify(context.Background(), Notification{Title: "t", Body: "b"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if ad.deliveredCount() != 0 {
		t.Fatalf("delivery happened despite denied authorization")
	}
}

func TestRetryEventuallyDelivers(t *testing.T) {
	ad := &fakeAdapter{failures: 2}
	s := New(Config{
		Enabled:    true,
		RatePerSec: 100,
		RetryMax:   3,
		RetryBase:  time.Millisecond,
	}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	defer stopService(s)

	if err := s.Notify(context.Background(), Notification{Title: "t", Body: "b"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, "retried delivery", func() bool { return ad.deliveredCount() == 1 })

	ad.mu.Lock()
	calls := ad.calls
	ad.mu.Unlock()
	if calls != 3 {
		t.Fatalf("adapter called %d times, want 3 (two failures + success)", calls)
	}
}

func TestQueueFull(t *testing.T) {
	// Adapter that blocks forever keeps the queue occupied.
	blocked := make(chan struct{})
	ad := &blockingAdapter{release: blocked}
	s := New(Config{Enabled: true, QueueSize: 1, RatePerSec: 1000}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	defer close(blocked)
	defer stopService(s)

	// First lands in the worker, second fills the queue; give the worker a
	// moment to pull the first off the channel.
	if err := s.Notify(context.Background(), Notification{Title: "a", Body: "x"}); err != nil {
		t.Fatalf("first Notify: %v", err)
	}
	waitFor(t, "worker pickup", func() bool { return ad.started.Load() })
	if err := s.Notify(context.Background(), Notification{Title: "b", Body: "x"}); err != nil {
		t.Fatalf("second Notify: %v", err)
	}

	err := s.Notify(context.Background(), Notification{Title: "c", Body: "x"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

type blockingAdapter struct {
	started atomic.Bool
	release chan struct{}
}

func (b *blockingAdapter) Authorize(context.Context) error { return nil }

func (b *blockingAdapter) Deliver(ctx context.Context, _ Notification) error {
	b.started.Store(true)
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(Config{Enabled: true}, &fakeAdapter{}, logx.Nop(), nil)
	s.Start(context.Background())
	stopService(s)
	stopService(s)

	if err := s.Notify(context.Background(), Notification{Title: "x"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err after stop = %v, want ErrStopped", err)
	}
}

func stopService(s *Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
}
