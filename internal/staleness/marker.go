package staleness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMarkerRelPath is the marker location under the user's home
// directory when no explicit path is configured.
const DefaultMarkerRelPath = "Parallels/.backup-staging/.last-successful-run"

// mirrorFileName is the fallback copy under the app support directory.
const mirrorFileName = "last-backup-marker"

// markerDateLayout parses the date component only; the marker carries no
// time or zone information.
const markerDateLayout = "2006-01-02"

// readMarker reads and trims the single-line marker file.
func readMarker(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	raw := strings.TrimSpace(string(b))
	if i := strings.IndexAny(raw, "\r\n"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	if raw == "" {
		return "", fmt.Errorf("marker file %s is empty", path)
	}
	return raw, nil
}

// parseMarkerDate parses the marker text as a calendar date in UTC.
// Locale and timezone never influence the result.
func parseMarkerDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(markerDateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("marker date %q: %w", raw, err)
	}
	return t, nil
}

// writeMirror copies the last valid marker text to the fallback location.
// Best-effort: the caller logs and continues on failure.
func writeMirror(path, raw string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(raw+"\n"), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// defaultMirrorPath returns the monitor-owned fallback file under the
// application support directory.
func defaultMirrorPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "tickbar", mirrorFileName)
}
