package tracker

import (
	"time"

	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// DefaultRebufferAbandonThreshold is the accumulated rebuffer
// duration past which the view is considered abandoned. Product-tuned
// constant, kept configurable.
const DefaultRebufferAbandonThreshold = 300 * time.Second

// Rebuffer is the event-driven rebuffer tracker: it counts
// rebufferstart/rebufferend windows and accrues their duration on
// every heartbeat, so a long stall shows up in beacons before it
// ends. At most one window is open at a time per view.
type Rebuffer struct {
	core             Core
	abandonThreshold int64

	open      bool
	lastMark  int64
	abandoned bool
	endSub    *event.Subscription

	subs subscriptions
}

// NewRebuffer registers the event-driven rebuffer tracker. Must come
// after the watch-time tracker so its ratio computation sees the
// current watch time. abandonThreshold <= 0 selects the default.
func NewRebuffer(core Core, abandonThreshold time.Duration) *Rebuffer {
	if abandonThreshold <= 0 {
		abandonThreshold = DefaultRebufferAbandonThreshold
	}
	r := &Rebuffer{
		core:             core,
		abandonThreshold: abandonThreshold.Milliseconds(),
		subs:             subscriptions{bus: core.Bus},
	}
	r.subs.on(event.RebufferStart, r.onStart)
	r.subs.on(event.PlaybackHeartbeat, r.onBeat)
	r.subs.on(event.ViewInit, r.onViewInit)
	return r
}

// Stop detaches listeners.
func (r *Rebuffer) Stop() {
	if r.endSub != nil {
		r.core.Bus.Off(r.endSub)
		r.endSub = nil
	}
	r.subs.stop()
}

func (r *Rebuffer) onViewInit(event.Event) {
	if r.endSub != nil {
		r.core.Bus.Off(r.endSub)
		r.endSub = nil
	}
	r.open = false
	r.abandoned = false
}

func (r *Rebuffer) onStart(ev event.Event) {
	if r.open || r.abandoned {
		return
	}
	r.open = true
	r.lastMark = ev.ViewerTime
	r.core.Data.Inc(viewdata.ViewRebufferCount, 1)
	r.recomputeRatios()
	r.endSub = r.core.Bus.One(event.RebufferEnd, r.onEnd)
}

func (r *Rebuffer) onEnd(ev event.Event) {
	r.endSub = nil
	if !r.open {
		return
	}
	r.accrue(ev.ViewerTime)
	r.open = false
}

func (r *Rebuffer) onBeat(ev event.Event) {
	if !r.open {
		return
	}
	r.accrue(ev.ViewerTime)

	if r.core.Data.GetInt64(viewdata.ViewRebufferDuration) > r.abandonThreshold {
		r.abandoned = true
		r.core.Log.WithField("threshold_ms", r.abandonThreshold).
			Warn("rebuffer duration exceeded abandon threshold, ending view")
		r.core.Emitter.Emit(event.ViewEnd, nil)
	}
}

func (r *Rebuffer) accrue(viewerTime int64) {
	if delta := viewerTime - r.lastMark; delta > 0 {
		r.core.Data.Inc(viewdata.ViewRebufferDuration, delta)
	}
	r.lastMark = viewerTime
	r.recomputeRatios()
}

func (r *Rebuffer) recomputeRatios() {
	watch := r.core.Data.GetFloat64(viewdata.ViewWatchTime)
	count := r.core.Data.GetInt64(viewdata.ViewRebufferCount)
	if watch <= 0 || count == 0 {
		return
	}
	r.core.Data.Set(viewdata.ViewRebufferFrequency, float64(count)/watch)
	r.core.Data.Set(viewdata.ViewRebufferPercentage,
		r.core.Data.GetFloat64(viewdata.ViewRebufferDuration)/watch)
}
