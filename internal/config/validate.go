package config

import (
	"fmt"
	"time"
)

// Validate checks structural constraints that would otherwise surface as
// runtime misbehavior. It is used both at startup and as the ConfigManager's
// pre-commit hook during live reload.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Timer.Hours < 0 || cfg.Timer.Minutes < 0 || cfg.Timer.Seconds < 0 {
		return fmt.Errorf("timer: hours/minutes/seconds must be >= 0")
	}

	if cfg.Monitor.Enabled {
		thr, err := ParseDurationField("monitor.threshold", cfg.Monitor.Threshold)
		if err != nil {
			return err
		}
		if thr > 0 && thr < time.Second {
			return fmt.Errorf("monitor.threshold: must be >= 1s")
		}
		ivl, err := ParseDurationField("monitor.poll_interval", cfg.Monitor.PollInterval)
		if err != nil {
			return err
		}
		if ivl > 0 && ivl < time.Second {
			return fmt.Errorf("monitor.poll_interval: must be >= 1s")
		}
	}

	if n := cfg.Notifier; n != nil {
		if n.QueueSize < 0 {
			return fmt.Errorf("notifier.queue_size: must be >= 0")
		}
		if n.RatePerSec < 0 {
			return fmt.Errorf("notifier.rate_per_sec: must be >= 0")
		}
		if n.RetryMax < 0 {
			return fmt.Errorf("notifier.retry_max: must be >= 0")
		}
		if _, err := ParseDurationField("notifier.retry_base", n.RetryBase); err != nil {
			return err
		}
		if _, err := ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay); err != nil {
			return err
		}
	}

	if s := cfg.Storage; s != nil {
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}

	return nil
}
