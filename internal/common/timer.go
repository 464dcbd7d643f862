// Package common provides shared utilities including timing functionality.
package common

import (
	"fmt"
	"time"
)

// Timer accumulates the duration of repeated tic/toc intervals so that callers
// can report a running average per call.
type Timer struct {
	name    string
	start   time.Time
	running bool
	last    time.Duration
	total   time.Duration
	calls   int
}

// NewTimer creates a new, unnamed timer.
func NewTimer() *Timer {
	return &Timer{}
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name}
}

// Tic starts an interval. Calling Tic again before Toc restarts it.
func (t *Timer) Tic() {
	t.start = time.Now()
	t.running = true
}

// Toc ends the current interval, adds it to the running total and returns it.
// Toc without a matching Tic records nothing and returns zero.
func (t *Timer) Toc() time.Duration {
	if !t.running {
		return 0
	}
	t.running = false
	t.last = time.Since(t.start)
	t.total += t.last
	t.calls++
	return t.last
}

// Last returns the most recent interval.
func (t *Timer) Last() time.Duration {
	return t.last
}

// Total returns the sum of all completed intervals.
func (t *Timer) Total() time.Duration {
	return t.total
}

// Calls returns the number of completed intervals.
func (t *Timer) Calls() int {
	return t.calls
}

// AverageTime returns the mean interval, or zero before the first Toc.
func (t *Timer) AverageTime() time.Duration {
	if t.calls == 0 {
		return 0
	}
	return t.total / time.Duration(t.calls)
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v avg over %d calls", t.name, t.AverageTime(), t.calls)
	}
	return fmt.Sprintf("%v avg over %d calls", t.AverageTime(), t.calls)
}
