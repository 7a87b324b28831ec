// Package timeutil provides timezone and reporting-period helpers.
// Attendance is recorded per calendar month in the college's local zone,
// so "the current month" depends on the configured location.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone is the zone the college operates in.
const DefaultTimezone = "Asia/Kolkata"

// istFallback is used when the tz database is not available (UTC+5:30, no DST).
var istFallback = time.FixedZone("IST", 5*60*60+30*60)

// Clock returns the current time. Handlers take one so tests can pin "now".
type Clock func() time.Time

// SystemClock is the real clock.
func SystemClock() time.Time {
	return time.Now()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// LoadLocation loads a named zone. An empty name means DefaultTimezone.
// If DefaultTimezone is missing from the tz database, a fixed IST zone is used.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == DefaultTimezone {
			return istFallback, nil
		}
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// MonthYear returns the English month name and year of t in loc.
func MonthYear(t time.Time, loc *time.Location) (string, int) {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Month().String(), t.Year()
}

// CurrentPeriod returns the month name and year of now in loc.
func CurrentPeriod(clock Clock, loc *time.Location) (string, int) {
	if clock == nil {
		clock = SystemClock
	}
	return MonthYear(clock(), loc)
}

// MonthName returns the English long name of m, or "" if m is out of range.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return m.String()
}

// ParseMonth accepts a full English month name, a three-letter abbreviation
// or a number 1-12, case-insensitively, and returns the canonical long name.
func ParseMonth(s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", fmt.Errorf("timeutil: empty month")
	}

	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 || n > 12 {
			return "", fmt.Errorf("timeutil: month %d out of range", n)
		}
		return time.Month(n).String(), nil
	}

	lower := strings.ToLower(v)
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if lower == name || (len(lower) == 3 && strings.HasPrefix(name, lower)) {
			return m.String(), nil
		}
	}
	return "", fmt.Errorf("timeutil: unknown month %q", s)
}

// FormatDate formats t as "2006-01-02" in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02")
}
