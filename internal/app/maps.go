package app

import (
	"fmt"
	"strings"
	"time"

	"tickbar/internal/config"
	"tickbar/internal/notify"
	"tickbar/internal/storage"
	logx "tickbar/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.TrimSpace(sc.Driver)
	if driver == "" || strings.EqualFold(driver, "none") {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	dl := strings.ToLower(driver)
	switch dl {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: dl, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", driver)
	}
}

// mapNotifierConfig translates the config section. An omitted section means
// notifications on, with pipeline defaults.
func mapNotifierConfig(cfg *config.Config) (notify.Config, error) {
	if cfg == nil || cfg.Notifier == nil {
		return notify.Config{Enabled: true}, nil
	}
	nc := cfg.Notifier

	base, err := config.ParseDurationOrDefault("notifier.retry_base", nc.RetryBase, 0)
	if err != nil {
		return notify.Config{}, err
	}
	maxDelay, err := config.ParseDurationOrDefault("notifier.retry_max_delay", nc.RetryMaxDelay, 0)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		Enabled:       nc.Enabled,
		QueueSize:     nc.QueueSize,
		RatePerSec:    nc.RatePerSec,
		RetryMax:      nc.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// newSpeaker builds the completion announcer. An omitted section means
// speech on with the platform default command.
func newSpeaker(cfg *config.Config, log logx.Logger) notify.Speaker {
	if cfg == nil || cfg.Speech == nil {
		return notify.NewExecSpeaker("", "", log)
	}
	sc := cfg.Speech
	if !sc.Enabled {
		return notify.NopSpeaker{}
	}
	return notify.NewExecSpeaker(sc.Command, sc.Voice, log)
}
