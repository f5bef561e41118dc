package tracker

import (
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// Playhead maintains player_playhead_time from event payloads or a
// host-supplied capability, derives player_program_time when a
// program-date-time anchor is known, and tracks the running max
// playhead position. Registered before the trackers that read the
// playhead (playback time, playhead rebuffering).
type Playhead struct {
	core Core

	// GetPlayheadTime is the optional host capability, consulted on
	// time-driven events when the payload carries no playhead.
	getPlayheadTime func() (float64, bool)

	fragmentPDT   float64
	fragmentStart float64
	hasAnchor     bool

	subs subscriptions
}

// NewPlayhead registers the playhead tracker. getPlayheadTime may be
// nil.
func NewPlayhead(core Core, getPlayheadTime func() (float64, bool)) *Playhead {
	p := &Playhead{
		core:            core,
		getPlayheadTime: getPlayheadTime,
		subs:            subscriptions{bus: core.Bus},
	}
	p.subs.on(event.BeforeAny, p.onAny)
	p.subs.on(event.FragmentChange, p.onFragmentChange)
	p.subs.on(event.ViewInit, p.onViewInit)
	return p
}

// Stop detaches listeners.
func (p *Playhead) Stop() {
	p.subs.stop()
}

func (p *Playhead) onViewInit(event.Event) {
	p.hasAnchor = false
}

func (p *Playhead) onAny(ev event.Event) {
	ph, ok := ev.Float64Field(viewdata.PlayerPlayheadTime)
	if !ok {
		if p.getPlayheadTime == nil {
			return
		}
		switch ev.Type {
		case event.TimeUpdate, event.PlaybackHeartbeat, event.Seeked, event.Playing:
			ph, ok = p.getPlayheadTime()
		}
		if !ok {
			return
		}
	}

	p.core.Data.Set(viewdata.PlayerPlayheadTime, ph)
	p.core.Data.SetMax(viewdata.ViewMaxPlayheadPosition, ph)

	if p.hasAnchor {
		p.core.Data.Set(viewdata.PlayerProgramTime, p.fragmentPDT+(ph-p.fragmentStart))
	}
}

func (p *Playhead) onFragmentChange(ev event.Event) {
	pdt, okPDT := ev.Float64Field("fragment_pdt")
	start, okStart := ev.Float64Field("fragment_start")
	if !okPDT || !okStart {
		return
	}
	p.fragmentPDT = pdt
	p.fragmentStart = start
	p.hasAnchor = true
}
