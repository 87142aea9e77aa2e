package utils

import "time"

// NowRFC3339 returns the current UTC time in RFC3339 format. Audit
// timestamps are stored as RFC3339 strings so they survive import/export
// round-trips byte for byte.
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ParseRFC3339 parses a time string in RFC3339 format
func ParseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// SnapshotKeyTimestamp returns the current UTC time formatted for use in
// object-store keys (no colons).
func SnapshotKeyTimestamp() string {
	return time.Now().UTC().Format("20060102T150405Z")
}
