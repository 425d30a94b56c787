// Package clock provides an injectable time source so scheduling logic can
// run against either the wall clock or a pinned instant.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time {
	return time.Now()
}

// Fixed always returns the same instant. Used in tests and in development
// environments that pin "today" for reproducible scheduling.
type Fixed struct {
	Instant time.Time
}

// NewFixed creates a Fixed clock pinned to t.
func NewFixed(t time.Time) Fixed {
	return Fixed{Instant: t}
}

// Now returns the pinned instant.
func (f Fixed) Now() time.Time {
	return f.Instant
}
