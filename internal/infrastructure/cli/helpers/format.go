package helpers

import (
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// FormatAge renders t relative to now, e.g. "3 minutes ago".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// FormatExpiry renders when an entry goes stale relative to now.
func FormatExpiry(expires, now time.Time) string {
	if !expires.After(now) {
		return "expired"
	}
	return "expires " + humanize.RelTime(expires, now, "ago", "from now")
}

// FormatCount renders n with thousands separators.
func FormatCount(n uint64) string {
	return humanize.Comma(int64(n))
}

// FormatBytes renders a byte count, e.g. "4.1 kB".
func FormatBytes(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// HitRate returns the cache hit rate as a percentage.
func HitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if n <= 3 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}
