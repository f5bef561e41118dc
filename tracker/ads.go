package tracker

import (
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// prerollPlayheadCeiling: an ad break that starts with no content
// played, or at most this far in, counts as a preroll.
const prerollPlayheadCeiling = 1000 // ms

// Ads tracks the ad lifecycle: request/response pairing by
// correlation id, preroll timing, and once-per-ad-play counts.
type Ads struct {
	core Core

	requestedAt      map[string]int64 // correlation id -> request viewer time
	inAdBreak        bool
	wouldBeNewAdPlay bool
	clickedThisPlay  bool
	skippedThisPlay  bool

	prerollRequested   bool
	prerollRequestedAt int64
	prerollPlayed      bool

	subs subscriptions
}

// NewAds registers the ad tracker.
func NewAds(core Core) *Ads {
	a := &Ads{
		core:        core,
		requestedAt: make(map[string]int64),
		subs:        subscriptions{bus: core.Bus},
	}
	a.subs.on(event.AdRequest, a.onRequest)
	a.subs.on(event.AdResponse, a.onResponse)
	a.subs.on(event.AdBreakStart, a.onBreakStart)
	a.subs.on(event.AdBreakEnd, func(event.Event) { a.inAdBreak = false })
	a.subs.on(event.AdPlay, a.onPlay)
	a.subs.on(event.AdPlaying, a.onPlaying)
	a.subs.on(event.AdClicked, a.onClicked)
	a.subs.on(event.AdSkipped, a.onSkipped)
	a.subs.on(event.AdEnded, func(event.Event) { a.wouldBeNewAdPlay = true })
	a.subs.on(event.AdError, func(event.Event) { a.core.Data.Inc(viewdata.ViewAdErrorCount, 1) })
	a.subs.on(event.Play, func(event.Event) { a.inAdBreak = false })
	a.subs.on(event.Playing, func(event.Event) { a.inAdBreak = false })
	a.subs.on(event.ViewEnd, func(event.Event) { a.inAdBreak = false })
	a.subs.on(event.ViewInit, a.onViewInit)
	return a
}

// Stop detaches listeners.
func (a *Ads) Stop() {
	a.subs.stop()
}

// InAdBreak reports whether an ad break is currently open.
func (a *Ads) InAdBreak() bool {
	return a.inAdBreak
}

func (a *Ads) onViewInit(event.Event) {
	a.requestedAt = make(map[string]int64)
	a.inAdBreak = false
	a.wouldBeNewAdPlay = false
	a.clickedThisPlay = false
	a.skippedThisPlay = false
	a.prerollRequested = false
	a.prerollRequestedAt = 0
	a.prerollPlayed = false
}

// isPreroll: content has not meaningfully played yet.
func (a *Ads) isPreroll() bool {
	if !a.core.Data.Has(viewdata.ViewContentPlaybackTime) {
		return true
	}
	return a.core.Data.GetInt64(viewdata.ViewContentPlaybackTime) <= prerollPlayheadCeiling
}

func (a *Ads) onRequest(ev event.Event) {
	a.core.Data.Inc(viewdata.ViewAdRequestCount, 1)
	if id, ok := ev.StringField("ad_request_id"); ok {
		a.requestedAt[id] = ev.ViewerTime
	}
	if a.isPreroll() && !a.prerollRequested {
		a.prerollRequested = true
		a.prerollRequestedAt = ev.ViewerTime
		a.core.Data.Set(viewdata.ViewPrerollRequested, true)
	}
}

func (a *Ads) onResponse(ev event.Event) {
	a.core.Data.Inc(viewdata.ViewAdResponseCount, 1)
	id, ok := ev.StringField("ad_request_id")
	if !ok {
		return
	}
	requested, ok := a.requestedAt[id]
	if !ok {
		return
	}
	delete(a.requestedAt, id)
	latency := ev.ViewerTime - requested
	if latency < 0 {
		return
	}
	a.core.Data.Inc(viewdata.ViewAdRequestTime, latency)
	a.core.Data.SetMax(viewdata.ViewMaxAdRequestTime, float64(latency))
	if a.isPreroll() && !a.core.Data.Has(viewdata.ViewPrerollRequestTime) {
		a.core.Data.Set(viewdata.ViewPrerollRequestTime, latency)
	}
}

func (a *Ads) onBreakStart(ev event.Event) {
	a.inAdBreak = true
	a.wouldBeNewAdPlay = true
	a.clickedThisPlay = false
	a.skippedThisPlay = false
	if id, ok := ev.StringField("ad_creative_id"); ok {
		a.core.Data.Set(viewdata.AdCreativeID, id)
	}
	if id, ok := ev.StringField("ad_id"); ok {
		a.core.Data.Set(viewdata.AdID, id)
	}
}

func (a *Ads) onPlay(ev event.Event) {
	if a.isPreroll() && !a.prerollPlayed && a.prerollRequested &&
		!a.core.Data.Has(viewdata.ViewPrerollLoadTime) {
		a.core.Data.Set(viewdata.ViewPrerollLoadTime, ev.ViewerTime-a.prerollRequestedAt)
	}
}

func (a *Ads) onPlaying(ev event.Event) {
	// Repeated adplaying from one ad must not double count; the flag
	// re-arms on adbreakstart / adended / adskipped.
	if !a.wouldBeNewAdPlay {
		return
	}
	a.wouldBeNewAdPlay = false
	a.clickedThisPlay = false
	a.skippedThisPlay = false
	a.core.Data.Inc(viewdata.ViewAdPlayedCount, 1)

	if a.isPreroll() && !a.prerollPlayed {
		a.prerollPlayed = true
		a.core.Data.Set(viewdata.ViewPrerollPlayed, true)
		if a.prerollRequested {
			a.core.Data.Set(viewdata.ViewPrerollPlayTime, ev.ViewerTime-a.prerollRequestedAt)
		}
	}
}

func (a *Ads) onClicked(ev event.Event) {
	if a.clickedThisPlay {
		return
	}
	a.clickedThisPlay = true
	a.core.Data.Inc(viewdata.ViewAdClickCount, 1)
}

func (a *Ads) onSkipped(ev event.Event) {
	if !a.skippedThisPlay {
		a.skippedThisPlay = true
		a.core.Data.Inc(viewdata.ViewAdSkipCount, 1)
	}
	a.wouldBeNewAdPlay = true
}
