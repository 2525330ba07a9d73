package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, unix milliseconds and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		// 1e11 seconds is year 5138, anything above is milliseconds
		if ts > 1e11 {
			return FromUnixMillis(ts), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

func FromUnixMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func ToUnixMillis(t time.Time) int64 { return t.UnixMilli() }

// AlignTo truncates t to the start of its bar of length d.
func AlignTo(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t
	}
	return t.Truncate(d)
}

// BarClosed reports whether the bar opened at openTime has fully elapsed at now.
func BarClosed(openTime time.Time, d time.Duration, now time.Time) bool {
	return !openTime.Add(d).After(now)
}

// AlignFromTo rounds the time range to bar boundaries.
func AlignFromTo(from, to time.Time, d time.Duration) (time.Time, time.Time) {
	return AlignTo(from, d), AlignTo(to, d)
}
