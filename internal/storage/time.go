package storage

import "time"

// timeLayout is RFC3339Nano in UTC, matching the original implementation's
// ISO-8601 timestamp columns.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
