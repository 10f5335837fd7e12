package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	timeStringRegex = regexp.MustCompile(`^(\d+)([smhd])$`)
	timeValueRegex  = regexp.MustCompile(`^(\d+)([smhdwy])$`)
)

var unitDurations = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
	"y": time.Duration(365.25 * float64(24*time.Hour)),
}

// ParseTimeString interpreta expiraciones como "15m" o "30d".
func ParseTimeString(s string) (time.Duration, error) {
	m := timeStringRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time string %q, expected a number followed by s, m, h or d", s)
	}
	return toDuration(m[1], m[2])
}

// ParseTimeValue acepta además semanas (w) y años (y).
func ParseTimeValue(s string) (time.Duration, error) {
	m := timeValueRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time value %q, expected a number followed by s, m, h, d, w or y", s)
	}
	return toDuration(m[1], m[2])
}

// ExpiryFrom devuelve now + s.
func ExpiryFrom(now time.Time, s string) (time.Time, error) {
	d, err := ParseTimeValue(s)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(d), nil
}

func toDuration(num, unit string) (time.Duration, error) {
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time amount %q: %w", num, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("time amount must be greater than zero, got %d", n)
	}
	return time.Duration(n) * unitDurations[unit], nil
}
