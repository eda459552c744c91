// Package system provides a real clock implementation.
package system

import "time"

// Clock implements relay.Clock using the time package.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Sleep blocks for the given duration.
func (Clock) Sleep(d time.Duration) {
	time.Sleep(d)
}
