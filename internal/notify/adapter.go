package notify

import (
	"context"
	"sync"

	dbusnotify "github.com/esiqveland/notify"
	"github.com/gen2brain/beeep"
	"github.com/godbus/dbus/v5"
)

// Adapter posts notifications to the platform notification center.
//
// Contract:
//   - Authorize is idempotent. A denied authorization must be returned as an
//     error but must not prevent later Authorize retries.
//   - Deliver removes any previously delivered notification carrying the same
//     Notification.ID before posting, where the platform supports removal.
type Adapter interface {
	Authorize(ctx context.Context) error
	Deliver(ctx context.Context, n Notification) error
}

// poster is the raw posting primitive. replaces is the server-assigned handle
// of the notification to replace, zero for a fresh one; the returned handle
// replaces the stored one for that Notification.ID.
type poster interface {
	post(appName string, replaces uint32, title, body string) (uint32, error)
}

// DesktopAdapter delivers through the OS notification facility. Successive
// deliveries under the same Notification.ID replace the on-screen instance
// instead of stacking a new one.
type DesktopAdapter struct {
	// AppName is shown as the notification source where supported.
	AppName string

	mu     sync.Mutex
	dialed bool
	poster poster
	lastID map[string]uint32
}

func NewDesktopAdapter() *DesktopAdapter {
	return &DesktopAdapter{AppName: "tickbar"}
}

// Authorize is a no-op for the desktop backend: the OS prompts the user on
// first delivery and remembers the answer per application.
func (a *DesktopAdapter) Authorize(ctx context.Context) error {
	_ = ctx
	return nil
}

func (a *DesktopAdapter) Deliver(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	p := a.posterLocked()
	replaces := a.lastID[n.ID]
	a.mu.Unlock()

	if p == nil {
		// No notification daemon on the session bus. beeep's fallback paths
		// cannot remove a posted notification, so replacement is lost here.
		return beeep.Notify(n.Title, n.Body, "")
	}

	id, err := p.post(a.AppName, replaces, n.Title, n.Body)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.lastID == nil {
		a.lastID = make(map[string]uint32)
	}
	a.lastID[n.ID] = id
	a.mu.Unlock()
	return nil
}

// posterLocked dials the session bus on first use. A failed dial is final for
// the adapter's lifetime; Deliver then stays on the fallback path.
func (a *DesktopAdapter) posterLocked() poster {
	if !a.dialed {
		a.dialed = true
		if conn, err := dbus.SessionBus(); err == nil {
			a.poster = &dbusPoster{conn: conn}
		}
	}
	return a.poster
}

type dbusPoster struct {
	conn *dbus.Conn
}

func (p *dbusPoster) post(appName string, replaces uint32, title, body string) (uint32, error) {
	return dbusnotify.SendNotification(p.conn, dbusnotify.Notification{
		AppName:       appName,
		ReplacesID:    replaces,
		Summary:       title,
		Body:          body,
		ExpireTimeout: dbusnotify.ExpireTimeoutSetByNotificationServer,
	})
}
