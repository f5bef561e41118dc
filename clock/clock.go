// Package clock provides the time and timer capabilities the engine
// depends on. Everything timer-driven (heartbeats, rebuffer polling,
// beacon backoff) goes through a Scheduler so tests can run on
// virtual time.
package clock

import "time"

// TimeProvider provides the current time in milliseconds.
type TimeProvider interface {
	NowUnixMilli() int64
}

// CancelFunc cancels a scheduled callback. Safe to call more than once.
type CancelFunc func()

// Scheduler schedules callbacks on wall or virtual time.
type Scheduler interface {
	// After runs fn once after d.
	After(d time.Duration, fn func()) CancelFunc
	// Every runs fn repeatedly with period d until canceled.
	Every(d time.Duration, fn func()) CancelFunc
}
