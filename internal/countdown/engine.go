package countdown

import (
	"context"
	"sync"
	"time"

	"tickbar/internal/eventbus"
	"tickbar/internal/notify"
	"tickbar/internal/periodic"
	"tickbar/internal/settings"
	logx "tickbar/pkg/logx"
)

// State is the engine's externally visible phase.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view published to the UI.
type Snapshot struct {
	State            State
	TotalSeconds     int
	RemainingSeconds int
	Formatted        string
	Finished         bool
	Message          string
}

// Engine is the countdown state machine.
//
// All transitions happen under one mutex; the periodic tick, the UI, and the
// CLI launcher never race. The tick handle is always cancelled before a new
// one is registered (guards against double-start).
type Engine struct {
	mu sync.Mutex

	log     logx.Logger
	bus     eventbus.Bus
	store   *settings.Store
	speaker notify.Speaker
	runner  *periodic.Runner

	cfg settings.Timer

	tick      *periodic.Handle
	total     int
	remaining int
	running   bool
	finished  bool
}

// New loads the persisted timer configuration and returns an idle engine.
// runner may be nil (tests drive Tick directly).
func New(store *settings.Store, runner *periodic.Runner, speaker notify.Speaker, log logx.Logger, bus eventbus.Bus) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if speaker == nil {
		speaker = notify.NopSpeaker{}
	}
	e := &Engine{
		log:     log,
		bus:     bus,
		store:   store,
		speaker: speaker,
		runner:  runner,
	}
	if store != nil {
		e.cfg = store.Timer()
	}
	return e
}

// Configure sets the countdown duration and completion message.
// It is rejected (no-op) while a countdown is running.
func (e *Engine) Configure(hours, minutes, seconds int, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.log.Debug("configure ignored while running")
		return
	}
	if hours < 0 || minutes < 0 || seconds < 0 {
		e.log.Debug("configure ignored (negative field)")
		return
	}
	e.cfg = settings.Timer{Hours: hours, Minutes: minutes, Seconds: seconds, Message: message}
}

// SetSpeaker swaps the completion announcer (live config reload).
func (e *Engine) SetSpeaker(s notify.Speaker) {
	if s == nil {
		s = notify.NopSpeaker{}
	}
	e.mu.Lock()
	e.speaker = s
	e.mu.Unlock()
}

// Config returns the current timer configuration.
func (e *Engine) Config() settings.Timer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Start begins the countdown. With a zero configured duration it does
// nothing (silent no-op, not an error). A fresh start always clears a
// pending finished indication and persists the configuration.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := e.cfg.TotalSeconds()
	if total <= 0 {
		e.log.Debug("start ignored (zero duration)")
		return
	}

	// Cancel any pre-existing tick first.
	e.cancelTickLocked()

	e.total = total
	e.remaining = total
	e.running = true
	e.finished = false

	if e.store != nil {
		e.store.SetTimer(e.cfg)
	}
	e.scheduleTickLocked()

	e.log.Info("countdown started", logx.Int("total_seconds", total))
	e.publish(eventbus.EventCountdownStarted, e.snapshotLocked())
}

// Stop halts the countdown and returns to idle.
//
// userInitiated distinguishes the user pressing stop (which also clears any
// pending finished indication) from the internal stop performed on the
// finish path (which must leave the flag for finish() to set).
func (e *Engine) Stop(userInitiated bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(userInitiated)
	e.publish(eventbus.EventCountdownStopped, e.snapshotLocked())
}

func (e *Engine) stopLocked(userInitiated bool) {
	e.cancelTickLocked()
	e.running = false
	e.remaining = 0
	if userInitiated {
		e.finished = false
	}
}

// Reset is a user-initiated stop plus clearing remaining/finished state,
// persisted.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(true)
	e.total = 0
	if e.store != nil {
		e.store.SetTimer(e.cfg)
	}
	e.publish(eventbus.EventCountdownStopped, e.snapshotLocked())
}

// Acknowledge clears the finished/flashing indication. The UI calls this
// when the user dismisses or reopens the panel; it is independent of
// Stop/Reset.
func (e *Engine) Acknowledge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.finished {
		return
	}
	e.finished = false
	e.publish(eventbus.EventCountdownAcknowledged, e.snapshotLocked())
}

// Tick advances the countdown by one second. It is invoked by the periodic
// handle while running; tests call it directly.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		// A tick that fires between finish and cancellation is a no-op.
		return
	}
	if e.remaining > 0 {
		e.remaining--
	}
	if e.remaining == 0 {
		e.finishLocked()
	}
}

// finishLocked performs the one-shot completion transition. Idempotent:
// re-entrant calls (tick firing again before cancellation lands) see
// finished==true and return without re-triggering side effects.
func (e *Engine) finishLocked() {
	if e.finished {
		return
	}
	e.stopLocked(false)
	e.finished = true

	msg := e.cfg.Message
	e.log.Info("countdown finished", logx.String("message", msg))
	e.publish(eventbus.EventCountdownFinished, e.snapshotLocked())

	// Spoken announcement is fire-and-forget; it never interrupts the state
	// machine.
	_ = e.speaker.Say(context.Background(), msg)
}

// FormattedTime returns the remaining time as zero-padded "HH:MM:SS".
// It is a pure function of state: 00:00:00 when idle or finished.
func (e *Engine) FormattedTime() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return FormatHMS(e.remaining)
}

// Snapshot returns the published state for the UI.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	st := StateIdle
	switch {
	case e.running:
		st = StateRunning
	case e.finished:
		st = StateFinished
	}
	return Snapshot{
		State:            st,
		TotalSeconds:     e.total,
		RemainingSeconds: e.remaining,
		Formatted:        FormatHMS(e.remaining),
		Finished:         e.finished,
		Message:          e.cfg.Message,
	}
}

func (e *Engine) scheduleTickLocked() {
	if e.runner == nil {
		return
	}
	h, err := e.runner.Every("countdown.tick", time.Second, e.Tick)
	if err != nil {
		// Scheduling is assumed reliable; a failure here leaves the engine
		// running but never ticking, so surface it loudly.
		e.log.Error("tick scheduling failed", logx.Err(err))
		return
	}
	e.tick = h
}

func (e *Engine) cancelTickLocked() {
	if e.tick != nil {
		e.tick.Stop()
		e.tick = nil
	}
}

func (e *Engine) publish(typ string, snap Snapshot) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: snap})
}
