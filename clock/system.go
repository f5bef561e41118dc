package clock

import (
	"sync"
	"time"
)

// SystemClock provides time based on the local system clock.
type SystemClock struct{}

// NewSystemClock creates a new system clock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// NowUnixMilli returns the current local system time in Unix milliseconds.
func (s *SystemClock) NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// SystemScheduler schedules callbacks on real timers.
type SystemScheduler struct{}

// NewSystemScheduler creates a scheduler backed by time.AfterFunc.
func NewSystemScheduler() *SystemScheduler {
	return &SystemScheduler{}
}

// After runs fn once after d.
func (s *SystemScheduler) After(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Every runs fn with period d until canceled. The next tick is armed
// only after fn returns, so a slow callback cannot pile up ticks.
func (s *SystemScheduler) Every(d time.Duration, fn func()) CancelFunc {
	var mu sync.Mutex
	var t *time.Timer
	stopped := false

	var arm func()
	arm = func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		t = time.AfterFunc(d, func() {
			fn()
			arm()
		})
		mu.Unlock()
	}
	arm()

	return func() {
		mu.Lock()
		stopped = true
		if t != nil {
			t.Stop()
		}
		mu.Unlock()
	}
}
