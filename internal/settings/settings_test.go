package settings

import (
	"path/filepath"
	"testing"
	"time"

	"tickbar/internal/config"
	"tickbar/internal/storage"
	logx "tickbar/pkg/logx"
)

func TestTimerTotalSeconds(t *testing.T) {
	cases := []struct {
		timer Timer
		want  int
	}{
		{Timer{}, 0},
		{Timer{Seconds: 30}, 30},
		{Timer{Minutes: 2}, 120},
		{Timer{Hours: 1, Minutes: 1, Seconds: 1}, 3661},
	}
	for _, c := range cases {
		if got := c.timer.TotalSeconds(); got != c.want {
			t.Fatalf("TotalSeconds(%+v) = %d, want %d", c.timer, got, c.want)
		}
	}
}

func TestMonitorValid(t *testing.T) {
	if (Monitor{ThresholdSeconds: 1, PollSeconds: 1}).Valid() != true {
		t.Fatalf("minimal valid monitor rejected")
	}
	for _, m := range []Monitor{
		{ThresholdSeconds: 0, PollSeconds: 1},
		{ThresholdSeconds: 1, PollSeconds: 0},
		{ThresholdSeconds: -5, PollSeconds: 60},
	} {
		if m.Valid() {
			t.Fatalf("invalid monitor accepted: %+v", m)
		}
	}
}

func TestInMemoryWithoutBackend(t *testing.T) {
	s := New(nil, logx.Nop())
	s.SetTimer(Timer{Hours: 1, Message: "done"})
	got := s.Timer()
	if got.Hours != 1 || got.Message != "done" {
		t.Fatalf("Timer() = %+v", got)
	}
}

func TestRoundTripThroughStorage(t *testing.T) {
	dir := t.TempDir()
	open := func() storage.Store {
		st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(dir, "store")}, logx.Nop())
		if err != nil {
			t.Fatalf("storage.Open: %v", err)
		}
		return st
	}

	st := open()
	s := New(st, logx.Nop())
	s.SetTimer(Timer{Minutes: 5, Message: "tea"})
	s.SetMonitor(Monitor{Enabled: true, ThresholdSeconds: 432000, PollSeconds: 3600, MarkerPath: "/tmp/m"})
	s.SetMissingSince(time.Unix(1700000000, 0))
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2 := open()
	defer st2.Close()
	s2 := New(st2, logx.Nop())

	if tm := s2.Timer(); tm.Minutes != 5 || tm.Message != "tea" {
		t.Fatalf("timer lost: %+v", tm)
	}
	mon := s2.Monitor()
	if !mon.Enabled || mon.ThresholdSeconds != 432000 || mon.PollSeconds != 3600 || mon.MarkerPath != "/tmp/m" {
		t.Fatalf("monitor lost: %+v", mon)
	}
	if ms := s2.MissingSince(); ms.Unix() != 1700000000 {
		t.Fatalf("missing-since lost: %v", ms)
	}
}

func TestSeedDoesNotOverridePersisted(t *testing.T) {
	s := New(nil, logx.Nop())
	s.SetTimer(Timer{Minutes: 3})

	s.Seed(&config.Config{
		Timer:   config.TimerConfig{Minutes: 10, Message: "from config"},
		Monitor: config.MonitorConfig{Enabled: true},
	})

	if tm := s.Timer(); tm.Minutes != 3 {
		t.Fatalf("seed overrode persisted minutes: %+v", tm)
	}
	// Never-persisted keys take the config default.
	if !s.Monitor().Enabled {
		t.Fatalf("seed skipped unpersisted monitor.enabled")
	}
}

func TestSeedDefaultDurations(t *testing.T) {
	s := New(nil, logx.Nop())
	s.Seed(&config.Config{Monitor: config.MonitorConfig{Enabled: true}})

	mon := s.Monitor()
	if mon.Threshold() != 5*24*time.Hour {
		t.Fatalf("default threshold = %v", mon.Threshold())
	}
	if mon.PollInterval() != time.Hour {
		t.Fatalf("default poll interval = %v", mon.PollInterval())
	}
}

func TestObserveFiresOnChangeOnly(t *testing.T) {
	s := New(nil, logx.Nop())
	var keys []string
	unreg := s.Observe(func(key string) { keys = append(keys, key) })
	defer unreg()

	s.SetMarkerPath("/tmp/a")
	s.SetMarkerPath("/tmp/a") // unchanged, no event
	s.SetMarkerPath("/tmp/b")

	if len(keys) != 2 {
		t.Fatalf("observer fired %d times, want 2: %v", len(keys), keys)
	}
	unreg()
	s.SetMarkerPath("/tmp/c")
	if len(keys) != 2 {
		t.Fatalf("observer fired after unregister")
	}
}

func TestMissingSinceZeroRoundTrip(t *testing.T) {
	s := New(nil, logx.Nop())
	s.SetMissingSince(time.Unix(1700000000, 0))
	s.SetMissingSince(time.Time{})
	if !s.MissingSince().IsZero() {
		t.Fatalf("cleared missing-since still set: %v", s.MissingSince())
	}
}
