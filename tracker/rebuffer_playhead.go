package tracker

import (
	"time"

	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

const (
	// DefaultSustainedRebufferThreshold is how long the playhead must
	// sit still, while playback should progress, before a stall is
	// synthesized.
	DefaultSustainedRebufferThreshold = time.Second

	// DefaultMinimumRebufferDuration is the smallest stall worth
	// reporting; synthesized rebufferstart events are backdated by it
	// to avoid false positives on heartbeat tick boundaries.
	DefaultMinimumRebufferDuration = 250 * time.Millisecond
)

// PlayheadRebuffer is the fallback rebuffer heuristic for engines
// without a reliable stall signal: on each heartbeat it compares the
// playhead against the last observed position and synthesizes
// rebufferstart/rebufferend around sustained standstills. It stays
// quiet during seeks and ad breaks. Independent of the event-driven
// tracker; both can run, the event-driven one ignores a second
// rebufferstart while a window is open.
type PlayheadRebuffer struct {
	core      Core
	heartbeat *Heartbeat
	sustained int64
	minimum   int64

	lastPlayhead  float64
	lastChangedAt int64
	hasBaseline   bool
	rebuffering   bool
	seeking       bool
	inAdBreak     bool

	subs subscriptions
}

// NewPlayheadRebuffer registers the playhead-derived rebuffer
// tracker. Zero durations select the defaults.
func NewPlayheadRebuffer(core Core, hb *Heartbeat, sustained, minimum time.Duration) *PlayheadRebuffer {
	if sustained <= 0 {
		sustained = DefaultSustainedRebufferThreshold
	}
	if minimum <= 0 {
		minimum = DefaultMinimumRebufferDuration
	}
	p := &PlayheadRebuffer{
		core:      core,
		heartbeat: hb,
		sustained: sustained.Milliseconds(),
		minimum:   minimum.Milliseconds(),
		subs:      subscriptions{bus: core.Bus},
	}
	p.subs.on(event.PlaybackHeartbeat, p.onBeat)
	p.subs.on(event.Seeking, func(event.Event) { p.seeking = true })
	p.subs.on(event.Seeked, p.onSeeked)
	p.subs.on(event.AdBreakStart, func(event.Event) { p.inAdBreak = true })
	p.subs.on(event.AdBreakEnd, func(event.Event) { p.inAdBreak = false })
	p.subs.on(event.ViewInit, p.onViewInit)
	return p
}

// Stop detaches listeners.
func (p *PlayheadRebuffer) Stop() {
	p.subs.stop()
}

func (p *PlayheadRebuffer) onViewInit(event.Event) {
	p.hasBaseline = false
	p.rebuffering = false
	p.seeking = false
	p.inAdBreak = false
}

func (p *PlayheadRebuffer) onSeeked(ev event.Event) {
	p.seeking = false
	// A seek moves the playhead without playback progress; reset the
	// baseline so the jump doesn't mask a stall.
	p.lastPlayhead = p.core.Data.GetFloat64(viewdata.PlayerPlayheadTime)
	p.lastChangedAt = ev.ViewerTime
	p.hasBaseline = true
}

func (p *PlayheadRebuffer) onBeat(ev event.Event) {
	now := ev.ViewerTime
	playhead := p.core.Data.GetFloat64(viewdata.PlayerPlayheadTime)

	if !p.hasBaseline {
		p.lastPlayhead = playhead
		p.lastChangedAt = now
		p.hasBaseline = true
		return
	}

	if playhead != p.lastPlayhead {
		if p.rebuffering {
			p.rebuffering = false
			// Report the end no earlier than the minimum gap past the
			// backdated start.
			end := p.lastChangedAt + p.minimum
			if now > end {
				end = now
			}
			p.core.Emitter.EmitAt(event.RebufferEnd, nil, end)
		}
		p.lastPlayhead = playhead
		p.lastChangedAt = now
		return
	}

	if p.rebuffering || p.seeking || p.inAdBreak || !p.heartbeat.Active() {
		return
	}
	if now-p.lastChangedAt > p.sustained {
		p.rebuffering = true
		p.core.Emitter.EmitAt(event.RebufferStart, nil, p.lastChangedAt+p.minimum)
	}
}
