// Package timeseries provides the date-indexed container every analytics
// kernel consumes. Series are immutable once constructed; operations return
// new series or scalars.
package timeseries

import "time"

// Timestamp is a calendar instant. It is totally ordered and equality is
// defined by the instant value. Construction is the caller's responsibility;
// the library never parses dates.
type Timestamp struct {
	time.Time
}

// Date constructs a timestamp at midnight UTC.
func Date(year int, month time.Month, day int) Timestamp {
	return Timestamp{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime wraps an existing time.Time.
func FromTime(t time.Time) Timestamp {
	return Timestamp{t}
}

// AddDays returns a new instant n days later (earlier for negative n).
func (t Timestamp) AddDays(n int) Timestamp {
	return Timestamp{t.Time.AddDate(0, 0, n)}
}

// IsWeekday reports whether the instant falls on Monday through Friday.
func (t Timestamp) IsWeekday() bool {
	wd := t.Time.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Before, After and Equal come from the embedded time.Time.

// quarter returns the 1-based calendar quarter.
func (t Timestamp) quarter() int {
	return (int(t.Month())-1)/3 + 1
}
