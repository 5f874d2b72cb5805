package staleness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"tickbar/internal/eventbus"
	"tickbar/internal/notify"
	"tickbar/internal/periodic"
	"tickbar/internal/settings"
	logx "tickbar/pkg/logx"
)

// Source identifies where the currently known marker date came from.
type Source string

const (
	SourcePrimary Source = "primary"
	SourceMirror  Source = "mirror"
	SourceNone    Source = "none"
)

// Status is the monitor's published diagnostic state. The UI may display it
// but never must; nothing in here gates further checks.
type Status struct {
	LastCheckAt  time.Time
	MarkerRaw    string
	MarkerDate   time.Time
	Source       Source
	Age          time.Duration
	AgeHuman     string
	Stale        bool
	MissingSince time.Time
	Halted       bool
	HaltReason   string
	LastError    string
	LastNotifyAt time.Time
}

// Notifier is the slice of the notification pipeline the monitor needs.
// *notify.Service satisfies it.
type Notifier interface {
	Start(ctx context.Context)
	Notify(ctx context.Context, n notify.Notification) error
}

// Monitor polls the backup marker and notifies on staleness, at most once
// per distinct marker state.
type Monitor struct {
	mu sync.Mutex

	log      logx.Logger
	bus      eventbus.Bus
	store    *settings.Store
	notifier Notifier
	runner   *periodic.Runner

	poll      *periodic.Handle
	applied   settings.Monitor
	unobserve func()

	mirrorPath string
	now        func() time.Time

	// lastSentKey caps alert volume to one per distinct stale state. It is
	// cleared only on a not-stale observation, so a persistent stale state
	// never re-notifies every poll.
	lastSentKey string

	status Status
}

// Option tweaks construction (test seams).
type Option func(*Monitor)

// WithClock replaces the monitor's time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithMirrorPath overrides the fallback mirror location.
func WithMirrorPath(path string) Option {
	return func(m *Monitor) { m.mirrorPath = path }
}

func New(store *settings.Store, notifier Notifier, runner *periodic.Runner, log logx.Logger, bus eventbus.Bus, opts ...Option) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Monitor{
		log:        log,
		bus:        bus,
		store:      store,
		notifier:   notifier,
		runner:     runner,
		mirrorPath: defaultMirrorPath(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start applies the persisted configuration, begins polling, and registers
// for settings changes. Notification authorization is requested (once,
// idempotently) through the notifier.
func (m *Monitor) Start(ctx context.Context) {
	if m.notifier != nil {
		m.notifier.Start(ctx)
	}

	if m.store != nil && m.unobserve == nil {
		m.unobserve = m.store.Observe(func(key string) {
			// missing_since is written by Check itself; restarting on it
			// would loop.
			if !strings.HasPrefix(key, "monitor.") || key == "monitor.missing_since" {
				return
			}
			m.Restart()
		})
	}

	m.Restart()
}

// Stop cancels polling and deregisters the settings observer.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.cancelPollLocked()
	un := m.unobserve
	m.unobserve = nil
	m.mu.Unlock()
	if un != nil {
		un()
	}
}

// SetConfiguration validates and persists monitor settings. Values that fail
// validation (threshold or interval below one second) are still persisted so
// the UI round-trips, but polling halts with a diagnostic state instead of
// running with garbage.
func (m *Monitor) SetConfiguration(enabled bool, thresholdSeconds, pollSeconds int64) {
	if m.store == nil {
		return
	}
	cur := m.store.Monitor()
	cur.Enabled = enabled
	cur.ThresholdSeconds = thresholdSeconds
	cur.PollSeconds = pollSeconds
	// Persisting triggers the settings observer, which restarts polling.
	m.store.SetMonitor(cur)
}

// UpdateMarkerPath persists a new marker location and restarts polling.
func (m *Monitor) UpdateMarkerPath(path string) {
	if m.store == nil {
		return
	}
	m.store.SetMarkerPath(path)
}

// Restart cancels the poll task, re-reads settings, and (when enabled and
// valid) schedules a fresh poll task plus an immediate check. The cancel
// always happens before the new registration.
func (m *Monitor) Restart() {
	m.mu.Lock()

	var cfg settings.Monitor
	if m.store != nil {
		cfg = m.store.Monitor()
	}

	m.cancelPollLocked()
	m.applied = cfg

	if !cfg.Enabled {
		m.status.Halted = false
		m.status.HaltReason = ""
		m.mu.Unlock()
		m.log.Info("monitor disabled")
		return
	}
	if !cfg.Valid() {
		m.status.Halted = true
		m.status.HaltReason = "threshold and poll interval must be at least 1s"
		m.mu.Unlock()
		m.log.Warn("monitor halted (invalid configuration)",
			logx.Int64("threshold_s", cfg.ThresholdSeconds),
			logx.Int64("poll_s", cfg.PollSeconds),
		)
		m.publish(eventbus.EventMonitorHalted, m.Snapshot())
		return
	}

	m.status.Halted = false
	m.status.HaltReason = ""

	if m.runner != nil {
		h, err := m.runner.Every("staleness.check", cfg.PollInterval(), m.Check)
		if err != nil {
			m.status.Halted = true
			m.status.HaltReason = err.Error()
			m.mu.Unlock()
			m.log.Error("poll scheduling failed", logx.Err(err))
			return
		}
		m.poll = h
	}
	m.mu.Unlock()

	m.log.Info("monitor polling",
		logx.Duration("interval", cfg.PollInterval()),
		logx.Duration("threshold", cfg.Threshold()),
	)

	// Immediate check so a settings change is reflected without waiting a
	// full interval.
	m.Check()
}

func (m *Monitor) cancelPollLocked() {
	if m.poll != nil {
		m.poll.Stop()
		m.poll = nil
	}
}

// markerPath resolves the primary marker location.
func (m *Monitor) markerPath(cfg settings.Monitor) string {
	if cfg.MarkerPath != "" {
		return cfg.MarkerPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, filepath.FromSlash(DefaultMarkerRelPath))
}

// Check performs one staleness evaluation. It runs on every poll tick and
// on demand after settings changes.
func (m *Monitor) Check() {
	m.mu.Lock()
	cfg := m.applied
	if !cfg.Enabled || !cfg.Valid() {
		m.mu.Unlock()
		return
	}
	now := m.now()
	threshold := cfg.Threshold()
	primary := m.markerPath(cfg)
	mirror := m.mirrorPath
	m.mu.Unlock()

	st := Status{LastCheckAt: now, Source: SourceNone}

	raw, err := readMarker(primary)
	var date time.Time
	var parseErr error
	if err == nil {
		date, parseErr = parseMarkerDate(raw)
	}

	var stale bool
	var key string

	switch {
	case err == nil && parseErr == nil:
		// Valid primary marker: presence supersedes any missing tracking.
		if m.store != nil {
			m.store.SetMissingSince(time.Time{})
		}
		if werr := writeMirror(mirror, raw); werr != nil {
			m.log.Debug("mirror write failed", logx.Err(werr))
		}
		st.MarkerRaw = raw
		st.MarkerDate = date
		st.Source = SourcePrimary
		st.Age = now.Sub(date)
		st.AgeHuman = humanize.RelTime(date, now, "ago", "from now")
		stale = st.Age >= threshold
		key = "stale:date:" + raw

	default:
		// Primary unreadable or unparsable: both count as absence. Record
		// the first observation and require the absence to persist past the
		// threshold before alerting (transient failures never alert).
		readableErr := err
		if readableErr == nil {
			readableErr = parseErr
		}
		st.LastError = readableErr.Error()
		m.log.Debug("marker unavailable", logx.String("path", primary), logx.Err(readableErr))

		var missingSince time.Time
		if m.store != nil {
			missingSince = m.store.MissingSince()
			if missingSince.IsZero() {
				missingSince = now
				m.store.SetMissingSince(now)
			}
		} else {
			missingSince = now
		}
		st.MissingSince = missingSince

		// Fall back to the mirror so the last known good date is not lost.
		// Absence timing still tracks the primary source.
		if mraw, merr := readMarker(mirror); merr == nil {
			if mdate, mperr := parseMarkerDate(mraw); mperr == nil {
				st.MarkerRaw = mraw
				st.MarkerDate = mdate
				st.Source = SourceMirror
				st.Age = now.Sub(mdate)
				st.AgeHuman = humanize.RelTime(mdate, now, "ago", "from now")
			}
		}

		sustained := now.Sub(missingSince)
		switch st.Source {
		case SourceMirror:
			// Last known date is available: stale when it is too old, or
			// when the primary has been gone long enough on its own.
			stale = st.Age >= threshold || sustained >= threshold
			key = "stale:date:" + st.MarkerRaw
		default:
			stale = sustained >= threshold
			key = "stale:missing"
		}
	}

	st.Stale = stale

	m.mu.Lock()
	if stale {
		if key != m.lastSentKey {
			m.mu.Unlock()
			err := m.sendAlert(st)
			m.mu.Lock()
			// Commit the dedupe key only once the alert is actually queued;
			// a rejected enqueue gets another try on the next poll.
			if err == nil {
				m.lastSentKey = key
				st.LastNotifyAt = now
			}
		} else if m.bus != nil {
			m.bus.Publish(eventbus.Event{Type: eventbus.EventNotifyDeduped, Time: now, Data: notify.DeliveryEvent{ID: notify.IdentStale, At: now}})
		}
	} else {
		// Clear only on not-stale: the next distinct stale condition will
		// notify again, a persisting one will not.
		m.lastSentKey = ""
	}
	st.Halted = m.status.Halted
	st.HaltReason = m.status.HaltReason
	if st.LastNotifyAt.IsZero() {
		st.LastNotifyAt = m.status.LastNotifyAt
	}
	m.status = st
	m.mu.Unlock()

	typ := eventbus.EventMonitorChecked
	if stale {
		typ = eventbus.EventMonitorStale
	}
	m.publish(typ, st)
}

// sendAlert builds the human-readable staleness message and enqueues it.
// Delivery reuses one identifier so stacked duplicates never appear. The
// returned error reflects enqueueing only; async delivery failures stay
// fire-and-forget.
func (m *Monitor) sendAlert(st Status) error {
	var body string
	switch {
	case st.MarkerRaw != "":
		body = "Last successful backup " + st.MarkerRaw + " (" + st.AgeHuman + ")"
	case !st.MissingSince.IsZero():
		body = "Backup marker missing since " + humanize.RelTime(st.MissingSince, st.LastCheckAt, "ago", "from now")
	default:
		body = "Backup marker missing"
	}

	if m.notifier == nil {
		return nil
	}
	err := m.notifier.Notify(context.Background(), notify.Notification{
		ID:    notify.IdentStale,
		Title: "Backup may be stale",
		Body:  body,
	})
	if err != nil {
		// Enqueue problems are diagnostics, never fatal to checking.
		m.log.Warn("stale alert enqueue failed", logx.Err(err))
	}
	return err
}

// Snapshot returns the current diagnostic state.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) publish(typ string, st Status) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: typ, Time: st.LastCheckAt, Data: st})
}
