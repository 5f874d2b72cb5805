package notify

import "time"

// Config controls the async notification pipeline.
type Config struct {
	Enabled       bool
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

// Notification is one alert to deliver.
//
// ID is a stable identifier: delivering under an ID that was already
// delivered replaces the earlier notification instead of stacking a
// duplicate in the system tray.
type Notification struct {
	ID    string
	Title string
	Body  string
}

// Reused notification identifiers. Staleness alerts always post under the
// same ID so the tray never accumulates duplicates; test posts use their own.
const (
	IdentStale = "tickbar.backup-stale"
	IdentTest  = "tickbar.test"
)

type HistoryItem struct {
	At   time.Time
	Text string
}

// DeliveryEvent is emitted on the event bus for notifier lifecycle events.
type DeliveryEvent struct {
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}
