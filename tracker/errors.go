package tracker

import (
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// ErrorTranslator maps a raw error payload to the fields attached to
// the error beacon. Returning nil means "no translated fields": the
// view is still marked errored. A panicking translator degrades the
// same way.
type ErrorTranslator func(payload map[string]any) map[string]any

// Errors attaches translated player errors to the current view and
// scrubs them once the error beacon is out.
type Errors struct {
	core       Core
	translator ErrorTranslator
	subs       subscriptions
}

// NewErrors registers the error tracker. translator may be nil, in
// which case the raw payload's error fields are used as is.
func NewErrors(core Core, translator ErrorTranslator) *Errors {
	e := &Errors{core: core, translator: translator, subs: subscriptions{bus: core.Bus}}
	e.subs.on(event.Error, e.onError)
	// The after-phase runs once the error beacon has been queued, so
	// error fields never leak into subsequent beacons.
	e.subs.on(event.AfterPrefix+event.Error, e.onAfterError)
	e.subs.on(event.ViewInit, func(event.Event) {
		e.core.Data.Delete(viewdata.ViewErrored)
	})
	return e
}

// Stop detaches listeners.
func (e *Errors) Stop() {
	e.subs.stop()
}

func (e *Errors) onError(ev event.Event) {
	e.core.Data.Set(viewdata.ViewErrored, true)

	translated := e.translate(ev.Data)
	if translated == nil {
		return
	}
	for _, key := range viewdata.ErrorKeys {
		if v, ok := translated[key]; ok {
			e.core.Data.Set(key, v)
		}
	}
}

func (e *Errors) onAfterError(event.Event) {
	e.core.Data.Delete(viewdata.ErrorKeys...)
}

func (e *Errors) translate(payload map[string]any) (out map[string]any) {
	if e.translator == nil {
		return payload
	}
	defer func() {
		if r := recover(); r != nil {
			e.core.Log.WithField("panic", r).Warn("error translator panicked, dropping translated fields")
			out = nil
		}
	}()
	return e.translator(payload)
}
