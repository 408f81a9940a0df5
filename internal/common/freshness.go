package common

import "time"

// Freshness TTLs for derived data
const (
	FreshnessCatalog = 24 * time.Hour
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}

// NeedsUpdate reports whether data last refreshed at `last` is due for a rebuild at `now`.
// A zero timestamp always needs an update; otherwise strictly more than maxAge must have elapsed.
func NeedsUpdate(last, now time.Time, maxAge time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > maxAge
}
