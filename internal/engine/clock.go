package engine

import "time"

// Clock supplies wall-clock timestamps for run transitions and commits.
//
// Ordering within a run never depends on the clock: actions are ordered by
// the run's CurrentIndex and snapshots by their per-document sequence. Time
// is only recorded for status reporting, durations and eligibility sorting.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns time.Now() in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}
