// Package staleness watches an external backup marker file and raises a
// local notification when the last successful backup is too old.
//
// The marker is a one-line text file containing a YYYY-MM-DD date. Absence is
// only treated as stale once it has persisted past the threshold (a single
// transient read failure never alerts), and every valid read is mirrored to a
// monitor-owned fallback file so the last known good date survives deletion
// of the source.
package staleness
