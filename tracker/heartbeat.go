package tracker

import (
	"time"

	"github.com/viewtrace/viewtrace/clock"
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// DefaultHeartbeatPeriod is the repeating playbackheartbeat interval.
const DefaultHeartbeatPeriod = 25 * time.Second

var heartbeatStartEvents = []string{
	event.Play, event.Playing, event.AdBreakStart, event.AdPlay,
	event.AdPlaying, event.DeviceWake, event.ViewStart, event.RebufferStart,
}

var heartbeatStopEvents = []string{
	event.Pause, event.Ended, event.ViewEnd, event.Error, event.AdError,
	event.AdPause, event.AdEnded, event.AdBreakEnd,
}

// Heartbeat emits playbackheartbeat on a repeating timer while
// playback is expected to be progressing, and playbackheartbeatend
// when it stops. Every time-based metric downstream (watch time,
// rebuffer duration, playhead polling) samples on these beats.
type Heartbeat struct {
	core   Core
	period time.Duration

	active         bool
	paused         bool
	cancel         clock.CancelFunc
	lastViewerTime int64

	subs subscriptions
}

// NewHeartbeat registers the heartbeat tracker. period <= 0 selects
// DefaultHeartbeatPeriod.
func NewHeartbeat(core Core, period time.Duration) *Heartbeat {
	if period <= 0 {
		period = DefaultHeartbeatPeriod
	}
	h := &Heartbeat{core: core, period: period, subs: subscriptions{bus: core.Bus}}

	for _, typ := range heartbeatStartEvents {
		h.subs.on(typ, h.onStart)
	}
	for _, typ := range heartbeatStopEvents {
		h.subs.on(typ, h.onStop)
	}
	h.subs.on(event.Seeked, h.onSeeked)
	h.subs.on(event.TimeUpdate, h.onTimeUpdate)
	h.subs.on(event.DeviceSleep, h.onDeviceSleep)
	return h
}

// Active reports whether playback is currently expected to progress.
// The playhead-derived rebuffer tracker keys off this.
func (h *Heartbeat) Active() bool {
	return h.active
}

// Stop detaches listeners and kills the timer.
func (h *Heartbeat) Stop() {
	h.stopTimer()
	h.subs.stop()
}

func (h *Heartbeat) onStart(ev event.Event) {
	h.lastViewerTime = ev.ViewerTime
	switch ev.Type {
	case event.Play, event.Playing, event.AdPlay, event.AdPlaying:
		h.paused = false
	}
	if h.active {
		return
	}
	h.active = true
	h.beat()
	h.cancel = h.core.Scheduler.Every(h.period, h.beat)
}

func (h *Heartbeat) onStop(ev event.Event) {
	h.lastViewerTime = ev.ViewerTime
	if ev.Type == event.Pause || ev.Type == event.AdPause {
		h.paused = true
	}
	h.end(ev.ViewerTime)
}

// A seek landing while paused must not resume the heartbeat. The
// tracker keeps its own paused flag from pause/play events; the
// accumulator field is an extra signal hosts can feed via state data.
func (h *Heartbeat) onSeeked(ev event.Event) {
	if h.paused || h.core.Data.GetBool(viewdata.PlayerIsPaused) {
		return
	}
	h.onStart(ev)
}

func (h *Heartbeat) onTimeUpdate(ev event.Event) {
	h.lastViewerTime = ev.ViewerTime
	if h.active {
		// An extra beat keeps watch-time granularity tight during
		// steady playback.
		h.core.Emitter.Emit(event.PlaybackHeartbeat, nil)
	}
}

func (h *Heartbeat) onDeviceSleep(ev event.Event) {
	if !h.active {
		return
	}
	// The wall clock jumped; close the heartbeat at the last viewer
	// time actually observed before the gap.
	h.stopTimer()
	h.active = false
	h.core.Emitter.EmitAt(event.PlaybackHeartbeatEnd, nil, h.lastViewerTime)
}

func (h *Heartbeat) beat() {
	h.lastViewerTime = h.core.Clock.NowUnixMilli()
	h.core.Emitter.Emit(event.PlaybackHeartbeat, nil)
}

func (h *Heartbeat) end(viewerTime int64) {
	if !h.active {
		return
	}
	h.stopTimer()
	h.active = false
	h.core.Emitter.EmitAt(event.PlaybackHeartbeatEnd, nil, viewerTime)
}

func (h *Heartbeat) stopTimer() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}
