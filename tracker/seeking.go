package tracker

import (
	"time"

	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// DefaultSeekCoalesceWindow: repeated seeking events closer together
// than this are one user gesture (scrubbing), not separate seeks.
const DefaultSeekCoalesceWindow = 2 * time.Second

// Seeking tracks seek count and duration, coalescing rapid-fire
// seeking events during scrubbing.
type Seeking struct {
	core     Core
	coalesce int64

	openAt     int64 // -1 = no open seek
	lastSeekAt int64

	subs subscriptions
}

// NewSeeking registers the seeking tracker. coalesce <= 0 selects the
// default window.
func NewSeeking(core Core, coalesce time.Duration) *Seeking {
	if coalesce <= 0 {
		coalesce = DefaultSeekCoalesceWindow
	}
	s := &Seeking{
		core:     core,
		coalesce: coalesce.Milliseconds(),
		openAt:   -1,
		subs:     subscriptions{bus: core.Bus},
	}
	s.subs.on(event.Seeking, s.onSeeking)
	s.subs.on(event.Seeked, s.onSeeked)
	s.subs.on(event.ViewEnd, s.onViewEnd)
	s.subs.on(event.ViewInit, func(event.Event) { s.openAt = -1 })
	return s
}

// Stop detaches listeners.
func (s *Seeking) Stop() {
	s.subs.stop()
}

func (s *Seeking) onSeeking(ev event.Event) {
	s.core.Data.Set(viewdata.PlayerIsSeeking, true)

	if s.openAt >= 0 {
		if ev.ViewerTime-s.lastSeekAt < s.coalesce {
			// Continuation of the same scrub gesture.
			s.lastSeekAt = ev.ViewerTime
			return
		}
		s.closeSeek(ev.ViewerTime)
	}

	s.openAt = ev.ViewerTime
	s.lastSeekAt = ev.ViewerTime
	s.core.Data.Inc(viewdata.ViewSeekCount, 1)
	s.core.Emitter.Send(event.Seeking)
}

func (s *Seeking) onSeeked(ev event.Event) {
	s.closeSeek(ev.ViewerTime)
}

func (s *Seeking) onViewEnd(ev event.Event) {
	if s.openAt < 0 {
		return
	}
	// Flush the open seek so its duration isn't lost with the view.
	s.closeSeek(ev.ViewerTime)
	s.core.Emitter.Send(event.Seeked)
}

func (s *Seeking) closeSeek(viewerTime int64) {
	if s.openAt < 0 {
		return
	}
	if d := viewerTime - s.openAt; d > 0 {
		s.core.Data.Inc(viewdata.ViewSeekDuration, d)
		s.core.Data.SetMax(viewdata.ViewMaxSeekTime, float64(d))
	}
	s.openAt = -1
	s.core.Data.Set(viewdata.PlayerIsSeeking, false)
}
