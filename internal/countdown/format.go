package countdown

import "fmt"

// FormatHMS renders a second count as zero-padded "HH:MM:SS".
// Negative inputs render as 00:00:00.
func FormatHMS(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
