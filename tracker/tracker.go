// Package tracker contains the stateful observers that turn the
// normalized event stream into per-view metrics. Each tracker hangs
// listeners off the shared bus and mutates the shared accumulator;
// none of them owns it. Registration order matters: trackers that
// read a field must be registered after the tracker that produces it
// (heartbeat before watch-time, watch-time before the rebuffer ratio
// computation).
package tracker

import (
	log "github.com/sirupsen/logrus"

	"github.com/viewtrace/viewtrace/clock"
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// Emitter is the slice of the view controller trackers are allowed to
// use: emitting derived events and forcing beacons out.
type Emitter interface {
	// Emit dispatches a derived event with the current viewer time.
	Emit(typ string, data map[string]any)
	// EmitAt dispatches a derived event with an explicit viewer time,
	// used for backdated synthetic rebuffer events.
	EmitAt(typ string, data map[string]any, viewerTime int64)
	// Send queues a beacon for typ immediately, bypassing normal
	// batching.
	Send(typ string)
	// RestartView ends the current view and starts a fresh one,
	// keeping the video metadata. Used on long-resume.
	RestartView()
}

// Core bundles the shared collaborators handed to every tracker.
type Core struct {
	Bus       *event.Bus
	Data      *viewdata.Data
	Clock     clock.TimeProvider
	Scheduler clock.Scheduler
	Emitter   Emitter
	Log       *log.Entry
}

// Tracker is anything that can detach its listeners and timers.
type Tracker interface {
	Stop()
}

// subscriptions collects bus subscriptions for bulk teardown.
type subscriptions struct {
	bus  *event.Bus
	subs []*event.Subscription
}

func (s *subscriptions) on(typ string, fn event.Listener) {
	s.subs = append(s.subs, s.bus.On(typ, fn))
}

func (s *subscriptions) stop() {
	for _, sub := range s.subs {
		s.bus.Off(sub)
	}
	s.subs = nil
}
