package tracker

import (
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// Startup measures time to first frame and player startup latency.
type Startup struct {
	core Core

	hasFirstFrame bool
	subs          subscriptions
}

// NewStartup registers the startup tracker.
func NewStartup(core Core) *Startup {
	s := &Startup{core: core, subs: subscriptions{bus: core.Bus}}
	s.subs.on(event.PlayerReady, s.onPlayerReady)
	s.subs.on(event.Playing, s.onFirstFrame)
	s.subs.on(event.TimeUpdate, s.onFirstFrame)
	s.subs.on(event.ViewInit, func(event.Event) { s.hasFirstFrame = false })
	return s
}

// Stop detaches listeners.
func (s *Startup) Stop() {
	s.subs.stop()
}

func (s *Startup) onPlayerReady(ev event.Event) {
	if init := s.core.Data.GetInt64(viewdata.PlayerInitTime); init > 0 && !s.core.Data.Has(viewdata.PlayerStartupTime) {
		s.core.Data.Set(viewdata.PlayerStartupTime, ev.ViewerTime-init)
	}
}

func (s *Startup) onFirstFrame(ev event.Event) {
	if s.hasFirstFrame {
		return
	}
	viewStart := s.core.Data.GetInt64(viewdata.ViewStart)
	if viewStart == 0 {
		return
	}
	s.hasFirstFrame = true
	ttff := ev.ViewerTime - viewStart
	if ttff < 0 {
		ttff = 0
	}
	s.core.Data.Set(viewdata.ViewTimeToFirstFrame, ttff)

	// Aggregate startup counts from player init when the player was
	// constructed for this view; otherwise from view start.
	if init := s.core.Data.GetInt64(viewdata.PlayerInitTime); init > 0 && init <= viewStart {
		s.core.Data.Set(viewdata.ViewAggregateStartupTime, ev.ViewerTime-init)
	} else {
		s.core.Data.Set(viewdata.ViewAggregateStartupTime, ttff)
	}
}
