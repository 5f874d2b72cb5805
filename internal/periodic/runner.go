package periodic

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "tickbar/pkg/logx"
)

// Runner schedules repeating tasks on one shared cron engine.
//
// The engine runs with seconds resolution so one-second countdown ticks and
// coarse poll intervals share the same machinery.
type Runner struct {
	mu      sync.Mutex
	c       *cron.Cron
	log     logx.Logger
	started bool
}

func NewRunner(log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Runner{
		c:   cron.New(cron.WithParser(parser)),
		log: log,
	}
}

func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.c.Start()
}

// Stop halts the cron engine and waits for running jobs, honoring ctx.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	c := r.c
	r.mu.Unlock()

	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Every registers fn to run every interval and returns a handle owning the
// registration. Intervals below one second are clamped to one second (the
// engine's resolution).
func (r *Runner) Every(name string, interval time.Duration, fn func()) (*Handle, error) {
	if fn == nil {
		return nil, fmt.Errorf("periodic: nil func for %q", name)
	}
	if interval < time.Second {
		interval = time.Second
	}

	h := &Handle{runner: r, name: name}
	wrapped := func() {
		if h.stopped.Load() {
			return
		}
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("panic in periodic task",
					logx.String("name", name),
					logx.Any("panic", rec),
					logx.String("stack", string(debug.Stack())),
				)
			}
		}()
		fn()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.c.AddFunc(fmt.Sprintf("@every %s", interval), wrapped)
	if err != nil {
		return nil, fmt.Errorf("periodic: register %q: %w", name, err)
	}
	h.id = id
	r.log.Debug("periodic task registered", logx.String("name", name), logx.Duration("interval", interval))
	return h, nil
}

// Handle is the cancellation token for one registered task.
type Handle struct {
	runner  *Runner
	name    string
	id      cron.EntryID
	stopped atomic.Bool
}

// Stop deregisters the task. Safe to call more than once. After Stop returns,
// the task function will not be invoked again (an already-queued invocation
// sees the stopped flag and returns immediately).
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	if h.stopped.Swap(true) {
		return
	}
	h.runner.mu.Lock()
	h.runner.c.Remove(h.id)
	h.runner.mu.Unlock()
	h.runner.log.Debug("periodic task stopped", logx.String("name", h.name))
}
