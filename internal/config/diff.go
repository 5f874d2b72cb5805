package config

import (
	"reflect"
	"sort"
	"strings"

	logx "tickbar/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging. The app uses the section list to decide which
// services need a re-apply or restart after a live reload.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Notifier section may be nil (omitted); nil means runtime defaults.
	oldN := derefNotifier(oldCfg.Notifier)
	newN := derefNotifier(newCfg.Notifier)
	if oldN != newN {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.queue_size", newN.QueueSize),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Int("notifier.retry_max", newN.RetryMax),
		)
	}

	oldSp := derefSpeech(oldCfg.Speech)
	newSp := derefSpeech(newCfg.Speech)
	if oldSp != newSp {
		changed = append(changed, "speech")
		attrs = append(attrs,
			logx.Bool("speech.enabled", newSp.Enabled),
			logx.Bool("speech.voice_set", strings.TrimSpace(newSp.Voice) != ""),
		)
	}

	// Storage: nil means disabled. Driver/path changes require a restart, so
	// only surface them; the app logs a warning instead of re-opening stores.
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		var driver string
		var pathSet bool
		if newCfg.Storage != nil {
			driver = strings.TrimSpace(newCfg.Storage.Driver)
			pathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
		}
		attrs = append(attrs,
			logx.String("storage.driver", driver),
			logx.Bool("storage.path_set", pathSet),
		)
	}

	// Timer/Monitor sections only seed first-run defaults; a change here does
	// not override persisted settings, but it is still worth surfacing.
	if oldCfg.Timer != newCfg.Timer {
		changed = append(changed, "timer")
	}
	if oldCfg.Monitor != newCfg.Monitor {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.Bool("monitor.enabled", newCfg.Monitor.Enabled),
			logx.String("monitor.threshold", strings.TrimSpace(newCfg.Monitor.Threshold)),
			logx.String("monitor.poll_interval", strings.TrimSpace(newCfg.Monitor.PollInterval)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefNotifier(n *NotifierConfig) NotifierConfig {
	if n == nil {
		return NotifierConfig{Enabled: true}
	}
	return *n
}

func derefSpeech(s *SpeechConfig) SpeechConfig {
	if s == nil {
		return SpeechConfig{Enabled: true}
	}
	return *s
}
