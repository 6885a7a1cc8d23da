package formula

import (
	"math"
	"time"
)

// serial day 1 is 1900-01-01, so the epoch is the day before
var epoch1900 = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)

// first real day after the fictitious 1900-02-29
var march1900 = time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)

const secondsPerDay = 24 * 60 * 60

// Clock provides the current time, replaceable in tests
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (WallClock) Now() time.Time {
	return time.Now()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// normalizeYear applies the two-digit-year rule: 0..1899 means 1900..3799.
func normalizeYear(year int) int {
	if year >= 0 && year <= 1899 {
		return year + 1900
	}
	return year
}

// YMDToSerial converts a calendar date to a 1900-system day serial. the
// legacy calendar counts a 1900-02-29, so (1900,2,29) is 60 and every date
// from 1900-03-01 on is one day later than a plain day count. month and day
// overflow roll over like a calendar. ok is false for non-finite input and
// negative years.
func YMDToSerial(year, month, day float64) (float64, bool) {
	if !isFinite(year) || !isFinite(month) || !isFinite(day) {
		return 0, false
	}
	y := normalizeYear(int(math.Trunc(year)))
	m := int(math.Trunc(month))
	d := int(math.Trunc(day))
	if y < 0 {
		return 0, false
	}
	if y == 1900 && m == 2 && d == 29 {
		return 60, true
	}

	t := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, m-1, d-1)
	days := math.Floor(float64(t.Unix()-epoch1900.Unix()) / secondsPerDay)
	if !t.Before(march1900) {
		days++
	}
	return days, true
}

// SerialToParts converts a day serial back to (year, month, day). the
// fraction is dropped. serial 60 is 1900-02-29 and serials above it are
// shifted back one day before projecting. ok is false for negative or
// non-finite serials.
func SerialToParts(serial float64) (year, month, day int, ok bool) {
	if !isFinite(serial) {
		return 0, 0, 0, false
	}
	s := math.Floor(serial)
	if s < 0 {
		return 0, 0, 0, false
	}
	if s == 60 {
		return 1900, 2, 29, true
	}
	days := int(s)
	if s > 60 {
		days--
	}
	t := epoch1900.AddDate(0, 0, days)
	return t.Year(), int(t.Month()), t.Day(), true
}

// TodaySerial returns the serial of the clock's local calendar date.
func TodaySerial(clock Clock) float64 {
	now := clock.Now()
	serial, _ := YMDToSerial(float64(now.Year()), float64(now.Month()), float64(now.Day()))
	return serial
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
