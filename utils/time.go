// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// MillisSince returns the elapsed wall time since start in milliseconds
func MillisSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// FormatTimestamp renders t in UTC using RFC3339, or "" for the zero time
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
