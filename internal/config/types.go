package config

// Config is the on-disk application configuration (JSON or YAML).
//
// It covers process-level concerns: logging sinks, the persistence layer,
// the notification pipeline, speech output, and the *initial defaults* for
// the timer and the backup monitor. The runtime-mutable copies of the timer
// and monitor settings live in the settings store and survive restarts
// independently of this file.
type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Speech   *SpeechConfig   `json:"speech,omitempty"`

	// Timer holds default countdown settings applied the first time the
	// process runs (before anything was persisted).
	Timer TimerConfig `json:"timer"`

	// Monitor holds default backup-staleness monitor settings, applied the
	// same way.
	Monitor MonitorConfig `json:"monitor"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer backing the settings store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./tickbar_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier defaults to enabled=true.
type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
}

// SpeechConfig controls the spoken completion announcement.
//
// Command defaults to "say" (the macOS speech synthesizer). Voice is passed
// through verbatim when set.
type SpeechConfig struct {
	Enabled bool   `json:"enabled"`
	Command string `json:"command,omitempty"`
	Voice   string `json:"voice,omitempty"`
}

// TimerConfig is the countdown duration plus the message spoken on completion.
type TimerConfig struct {
	Hours   int    `json:"hours"`
	Minutes int    `json:"minutes"`
	Seconds int    `json:"seconds"`
	Message string `json:"message"`
}

// MonitorConfig configures the backup-staleness monitor.
//
// Threshold and PollInterval are Go duration strings; both must be >= 1s
// when the monitor is enabled. MarkerPath overrides the default marker
// location under the user's home directory.
type MonitorConfig struct {
	Enabled      bool   `json:"enabled"`
	Threshold    string `json:"threshold"`
	PollInterval string `json:"poll_interval"`
	MarkerPath   string `json:"marker_path,omitempty"`
}
