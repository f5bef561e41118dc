package clock

import (
	"sort"
	"sync"
	"time"
)

// Virtual is a deterministic TimeProvider and Scheduler for tests.
// Time only moves when Advance is called; due callbacks run inline on
// the advancing goroutine, in due-time order, with the clock set to
// each callback's due time. Callbacks may schedule further callbacks.
// Safe for concurrent use: background goroutines may read the clock
// and schedule timers while a test goroutine advances.
type Virtual struct {
	mu  sync.Mutex
	now int64
	seq int64
	due []*virtualTimer
}

type virtualTimer struct {
	at       int64
	seq      int64
	period   int64 // 0 for one-shot
	fn       func()
	canceled bool
}

// NewVirtual creates a virtual clock starting at start Unix millis.
func NewVirtual(start int64) *Virtual {
	return &Virtual{now: start}
}

// NowUnixMilli returns the current virtual time.
func (v *Virtual) NowUnixMilli() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// After schedules fn once after d of virtual time.
func (v *Virtual) After(d time.Duration, fn func()) CancelFunc {
	return v.schedule(d, 0, fn)
}

// Every schedules fn with period d of virtual time.
func (v *Virtual) Every(d time.Duration, fn func()) CancelFunc {
	return v.schedule(d, d.Milliseconds(), fn)
}

func (v *Virtual) schedule(d time.Duration, period int64, fn func()) CancelFunc {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTimer{
		at:     v.now + d.Milliseconds(),
		seq:    v.seq,
		period: period,
		fn:     fn,
	}
	v.due = append(v.due, t)
	return func() {
		v.mu.Lock()
		t.canceled = true
		v.mu.Unlock()
	}
}

// Advance moves virtual time forward by d, firing every callback that
// comes due, in order. The lock is released around each callback so
// callbacks can schedule, cancel and read the clock.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now + d.Milliseconds()
	for {
		t := v.nextLocked(target)
		if t == nil {
			break
		}
		v.now = t.at
		if t.period > 0 {
			t.at += t.period
		} else {
			t.canceled = true
		}
		fn := t.fn
		v.mu.Unlock()
		fn()
		v.mu.Lock()
	}
	v.now = target
	v.compactLocked()
	v.mu.Unlock()
}

// nextLocked returns the earliest non-canceled timer due at or before
// target.
func (v *Virtual) nextLocked(target int64) *virtualTimer {
	var best *virtualTimer
	for _, t := range v.due {
		if t.canceled || t.at > target {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (v *Virtual) compactLocked() {
	live := v.due[:0]
	for _, t := range v.due {
		if !t.canceled {
			live = append(live, t)
		}
	}
	v.due = live
	sort.Slice(v.due, func(i, j int) bool {
		if v.due[i].at != v.due[j].at {
			return v.due[i].at < v.due[j].at
		}
		return v.due[i].seq < v.due[j].seq
	})
}
