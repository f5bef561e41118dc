package tracker

import (
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// WatchTime accumulates view_watch_time as the sum of inter-heartbeat
// deltas while the heartbeat is live.
type WatchTime struct {
	core        Core
	lastChecked int64 // -1 = not tracking
	subs        subscriptions
}

// NewWatchTime registers the watch-time tracker. Must come after the
// heartbeat tracker so it sees the beats it measures.
func NewWatchTime(core Core) *WatchTime {
	w := &WatchTime{core: core, lastChecked: -1, subs: subscriptions{bus: core.Bus}}
	w.subs.on(event.PlaybackHeartbeat, w.onBeat)
	w.subs.on(event.PlaybackHeartbeatEnd, w.onBeatEnd)
	w.subs.on(event.ViewInit, func(event.Event) { w.lastChecked = -1 })
	return w
}

// Stop detaches listeners.
func (w *WatchTime) Stop() {
	w.subs.stop()
}

func (w *WatchTime) onBeat(ev event.Event) {
	w.accumulate(ev.ViewerTime)
	w.lastChecked = ev.ViewerTime
}

func (w *WatchTime) onBeatEnd(ev event.Event) {
	// One final flush, then stop measuring until the next beat.
	w.accumulate(ev.ViewerTime)
	w.lastChecked = -1
}

func (w *WatchTime) accumulate(viewerTime int64) {
	if w.lastChecked < 0 {
		return
	}
	if delta := viewerTime - w.lastChecked; delta > 0 {
		w.core.Data.Inc(viewdata.ViewWatchTime, delta)
	}
}
