// Package settings is the persisted, runtime-mutable configuration store
// shared by the countdown engine and the staleness monitor.
//
// It fronts a storage.Store with typed accessors and change observation. The
// core depends only on this type, never on a concrete persistence backend;
// with no backend attached it degrades to in-memory state (settings then
// simply don't survive a restart).
package settings

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"tickbar/internal/config"
	"tickbar/internal/storage"
	logx "tickbar/pkg/logx"
)

// Keys persisted in the backing store.
const (
	keyTimerHours   = "timer.hours"
	keyTimerMinutes = "timer.minutes"
	keyTimerSeconds = "timer.seconds"
	keyTimerMessage = "timer.message"

	keyMonitorEnabled      = "monitor.enabled"
	keyMonitorThreshold    = "monitor.threshold_seconds"
	keyMonitorPollInterval = "monitor.poll_interval_seconds"
	keyMonitorMarkerPath   = "monitor.marker_path"
	keyMonitorMissingSince = "monitor.missing_since"
)

// Timer is the persisted countdown configuration.
type Timer struct {
	Hours   int
	Minutes int
	Seconds int
	Message string
}

// TotalSeconds returns the configured duration in seconds.
func (t Timer) TotalSeconds() int {
	return t.Hours*3600 + t.Minutes*60 + t.Seconds
}

// Monitor is the persisted staleness-monitor configuration.
//
// Threshold and PollInterval are in whole seconds; both must be >= 1 for the
// monitor to poll.
type Monitor struct {
	Enabled          bool
	ThresholdSeconds int64
	PollSeconds      int64
	MarkerPath       string
}

func (m Monitor) Threshold() time.Duration    { return time.Duration(m.ThresholdSeconds) * time.Second }
func (m Monitor) PollInterval() time.Duration { return time.Duration(m.PollSeconds) * time.Second }

// Valid reports whether the threshold and interval are usable.
func (m Monitor) Valid() bool {
	return m.ThresholdSeconds >= 1 && m.PollSeconds >= 1
}

type Store struct {
	mu  sync.Mutex
	kv  storage.Store // may be nil
	mem map[string]string
	log logx.Logger

	obsMu     sync.Mutex
	observers map[uint64]func(key string)
	obsSeq    uint64
}

func New(kv storage.Store, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{
		kv:        kv,
		mem:       map[string]string{},
		log:       log,
		observers: map[uint64]func(string){},
	}
	s.loadAll()
	return s
}

func (s *Store) loadAll() {
	if s.kv == nil {
		return
	}
	keys := []string{
		keyTimerHours, keyTimerMinutes, keyTimerSeconds, keyTimerMessage,
		keyMonitorEnabled, keyMonitorThreshold, keyMonitorPollInterval,
		keyMonitorMarkerPath, keyMonitorMissingSince,
	}
	ctx := context.Background()
	for _, k := range keys {
		v, ok, err := s.kv.Get(ctx, k)
		if err != nil {
			s.log.Warn("settings load failed", logx.String("key", k), logx.Err(err))
			continue
		}
		if ok {
			s.mem[k] = v
		}
	}
}

// Seed applies config-file defaults for keys that have never been persisted.
// Existing persisted values always win.
func (s *Store) Seed(cfg *config.Config) {
	if cfg == nil {
		return
	}
	thr, _ := config.ParseDurationOrDefault("monitor.threshold", cfg.Monitor.Threshold, 5*24*time.Hour)
	ivl, _ := config.ParseDurationOrDefault("monitor.poll_interval", cfg.Monitor.PollInterval, time.Hour)

	s.seedKey(keyTimerHours, strconv.Itoa(cfg.Timer.Hours))
	s.seedKey(keyTimerMinutes, strconv.Itoa(cfg.Timer.Minutes))
	s.seedKey(keyTimerSeconds, strconv.Itoa(cfg.Timer.Seconds))
	s.seedKey(keyTimerMessage, cfg.Timer.Message)
	s.seedKey(keyMonitorEnabled, strconv.FormatBool(cfg.Monitor.Enabled))
	s.seedKey(keyMonitorThreshold, strconv.FormatInt(int64(thr/time.Second), 10))
	s.seedKey(keyMonitorPollInterval, strconv.FormatInt(int64(ivl/time.Second), 10))
	if p := strings.TrimSpace(cfg.Monitor.MarkerPath); p != "" {
		s.seedKey(keyMonitorMarkerPath, p)
	}
}

func (s *Store) seedKey(key, value string) {
	s.mu.Lock()
	_, exists := s.mem[key]
	s.mu.Unlock()
	if exists {
		return
	}
	s.set(key, value)
}

// Observe registers fn to be called (synchronously) with the key of every
// applied change. The returned func unregisters.
func (s *Store) Observe(fn func(key string)) (unregister func()) {
	if fn == nil {
		return func() {}
	}
	s.obsMu.Lock()
	s.obsSeq++
	id := s.obsSeq
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) notify(key string) {
	s.obsMu.Lock()
	fns := make([]func(string), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn(key)
	}
}

// set updates memory and persists best-effort. Persistence failures are
// logged, never propagated: an unwritable store must not break the timer.
func (s *Store) set(key, value string) {
	s.mu.Lock()
	prev, had := s.mem[key]
	s.mem[key] = value
	kv := s.kv
	s.mu.Unlock()

	if had && prev == value {
		return
	}
	if kv != nil {
		if err := kv.Put(context.Background(), key, value); err != nil {
			s.log.Warn("settings persist failed", logx.String("key", key), logx.Err(err))
		}
	}
	s.notify(key)
}

func (s *Store) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.mem[key]
	return v, ok
}

func (s *Store) getInt(key string, def int) int {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func (s *Store) getInt64(key string, def int64) int64 {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (s *Store) getBool(key string, def bool) bool {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// ---- Timer ----

func (s *Store) Timer() Timer {
	msg, _ := s.get(keyTimerMessage)
	return Timer{
		Hours:   s.getInt(keyTimerHours, 0),
		Minutes: s.getInt(keyTimerMinutes, 0),
		Seconds: s.getInt(keyTimerSeconds, 0),
		Message: msg,
	}
}

func (s *Store) SetTimer(t Timer) {
	s.set(keyTimerHours, strconv.Itoa(t.Hours))
	s.set(keyTimerMinutes, strconv.Itoa(t.Minutes))
	s.set(keyTimerSeconds, strconv.Itoa(t.Seconds))
	s.set(keyTimerMessage, t.Message)
}

// ---- Monitor ----

func (s *Store) Monitor() Monitor {
	path, _ := s.get(keyMonitorMarkerPath)
	return Monitor{
		Enabled:          s.getBool(keyMonitorEnabled, false),
		ThresholdSeconds: s.getInt64(keyMonitorThreshold, 0),
		PollSeconds:      s.getInt64(keyMonitorPollInterval, 0),
		MarkerPath:       strings.TrimSpace(path),
	}
}

func (s *Store) SetMonitor(m Monitor) {
	s.set(keyMonitorEnabled, strconv.FormatBool(m.Enabled))
	s.set(keyMonitorThreshold, strconv.FormatInt(m.ThresholdSeconds, 10))
	s.set(keyMonitorPollInterval, strconv.FormatInt(m.PollSeconds, 10))
	s.set(keyMonitorMarkerPath, strings.TrimSpace(m.MarkerPath))
}

func (s *Store) SetMarkerPath(path string) {
	s.set(keyMonitorMarkerPath, strings.TrimSpace(path))
}

// MissingSince returns the recorded first-absence time, or zero if the
// marker has not been observed missing.
func (s *Store) MissingSince() time.Time {
	n := s.getInt64(keyMonitorMissingSince, 0)
	if n <= 0 {
		return time.Time{}
	}
	return time.Unix(n, 0)
}

func (s *Store) SetMissingSince(t time.Time) {
	if t.IsZero() {
		s.set(keyMonitorMissingSince, "0")
		return
	}
	s.set(keyMonitorMissingSince, strconv.FormatInt(t.Unix(), 10))
}
