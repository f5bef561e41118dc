package tracker

import (
	"time"

	"github.com/viewtrace/viewtrace/event"
)

const (
	// DefaultSleepThreshold: a wall-clock gap between consecutive
	// events beyond this means the device slept or the page was
	// frozen.
	DefaultSleepThreshold = 30 * time.Second

	// DefaultLongResumeThreshold: a gap this long ends the view and
	// starts a fresh one on resume instead of stretching the old one.
	DefaultLongResumeThreshold = 25 * time.Minute
)

// Sleep watches for wall-clock gaps in the event stream. Short gaps
// become devicesleep/devicewake pairs (backdated to the last activity
// seen); a gap past the long-resume threshold restarts the view.
type Sleep struct {
	core          Core
	sleepGap      int64
	longResumeGap int64
	longResume    bool

	lastActivity int64
	hasActivity  bool
	emitting     bool

	subs subscriptions
}

// NewSleep registers the sleep watcher. Zero durations select the
// defaults; longResume enables view restart on very long gaps.
func NewSleep(core Core, sleepGap, longResumeGap time.Duration, longResume bool) *Sleep {
	if sleepGap <= 0 {
		sleepGap = DefaultSleepThreshold
	}
	if longResumeGap <= 0 {
		longResumeGap = DefaultLongResumeThreshold
	}
	s := &Sleep{
		core:          core,
		sleepGap:      sleepGap.Milliseconds(),
		longResumeGap: longResumeGap.Milliseconds(),
		longResume:    longResume,
		subs:          subscriptions{bus: core.Bus},
	}
	s.subs.on(event.BeforeAny, s.onAny)
	return s
}

// Stop detaches listeners.
func (s *Sleep) Stop() {
	s.subs.stop()
}

func (s *Sleep) onAny(ev event.Event) {
	if s.emitting {
		return
	}
	switch ev.Type {
	case event.DeviceSleep, event.DeviceWake, event.ViewInit:
		s.lastActivity = ev.ViewerTime
		s.hasActivity = true
		return
	}

	last, had := s.lastActivity, s.hasActivity
	s.lastActivity = ev.ViewerTime
	s.hasActivity = true
	if !had {
		return
	}

	gap := ev.ViewerTime - last
	if gap <= s.sleepGap {
		return
	}

	s.emitting = true
	defer func() { s.emitting = false }()

	if s.longResume && gap > s.longResumeGap {
		s.core.Emitter.RestartView()
		return
	}

	// Backdate the sleep to the last event actually observed.
	s.core.Emitter.EmitAt(event.DeviceSleep, nil, last)
	s.core.Emitter.Emit(event.DeviceWake, nil)
}
