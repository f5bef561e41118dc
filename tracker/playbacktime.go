package tracker

import (
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// maxPlaybackDelta: playhead or wall-clock jumps beyond this are
// discontinuities (seeks, resets), not playback, and are discarded.
const maxPlaybackDelta = 1000 // ms

// PlaybackTime accumulates view_content_playback_time from playhead
// deltas, falling back to wall-clock deltas while an ad is playing
// (the content playhead is frozen during ads).
type PlaybackTime struct {
	core Core

	lastPlayhead   float64
	hasPlayhead    bool
	inAdBreak      bool
	lastAdWallTime int64

	subs subscriptions
}

// NewPlaybackTime registers the playback-time tracker. Must come
// after the playhead tracker.
func NewPlaybackTime(core Core) *PlaybackTime {
	p := &PlaybackTime{core: core, subs: subscriptions{bus: core.Bus}}
	p.subs.on(event.TimeUpdate, p.onTimeUpdate)
	p.subs.on(event.PlaybackHeartbeat, p.onBeat)
	p.subs.on(event.AdBreakStart, p.onAdBreakStart)
	p.subs.on(event.AdBreakEnd, func(event.Event) { p.inAdBreak = false })
	p.subs.on(event.Seeking, func(event.Event) { p.hasPlayhead = false })
	p.subs.on(event.ViewInit, p.onViewInit)
	return p
}

// Stop detaches listeners.
func (p *PlaybackTime) Stop() {
	p.subs.stop()
}

func (p *PlaybackTime) onViewInit(event.Event) {
	p.hasPlayhead = false
	p.inAdBreak = false
}

func (p *PlaybackTime) onAdBreakStart(ev event.Event) {
	p.inAdBreak = true
	p.lastAdWallTime = ev.ViewerTime
}

func (p *PlaybackTime) onTimeUpdate(ev event.Event) {
	if p.inAdBreak {
		return
	}
	ph := p.core.Data.GetFloat64(viewdata.PlayerPlayheadTime)
	if p.hasPlayhead {
		if delta := ph - p.lastPlayhead; delta > 0 && delta <= maxPlaybackDelta {
			p.core.Data.IncFloat(viewdata.ViewContentPlaybackTime, delta)
		}
	}
	p.lastPlayhead = ph
	p.hasPlayhead = true
}

func (p *PlaybackTime) onBeat(ev event.Event) {
	if !p.inAdBreak {
		return
	}
	// No content playhead movement during ads; fall back to wall
	// clock, bounded the same way.
	if delta := ev.ViewerTime - p.lastAdWallTime; delta > 0 && delta <= maxPlaybackDelta {
		p.core.Data.IncFloat(viewdata.ViewContentPlaybackTime, float64(delta))
	}
	p.lastAdWallTime = ev.ViewerTime
}
