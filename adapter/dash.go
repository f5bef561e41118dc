package adapter

import (
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// Dash raw event names, as surfaced by a dash.js-style engine Source.
const (
	dashFragmentLoadingCompleted = "fragmentLoadingCompleted"
	dashFragmentLoadingAbandoned = "fragmentLoadingAbandoned"
	dashQualityChangeRendered    = "qualityChangeRendered"
	dashError                    = "error"
)

// Dash normalizes dash.js-style events into request and rendition
// telemetry.
type Dash struct {
	base
	emit Emitter
}

// NewDash attaches a Dash adapter to src.
func NewDash(src Source, emit Emitter) *Dash {
	a := &Dash{emit: emit}
	a.listen(src, dashFragmentLoadingCompleted, a.onFragmentLoadingCompleted)
	a.listen(src, dashFragmentLoadingAbandoned, a.onFragmentLoadingAbandoned)
	a.listen(src, dashQualityChangeRendered, a.onQualityChangeRendered)
	a.listen(src, dashError, a.onError)
	return a
}

// Kind reports the engine kind.
func (a *Dash) Kind() Kind { return KindDash }

func (a *Dash) onFragmentLoadingCompleted(payload map[string]any) {
	// dash.js reports an error flag on the same completion event.
	if failed, _ := payload["failed"].(bool); failed {
		a.emit.Emit(event.RequestFailed, map[string]any{"request_type": "media"})
		return
	}
	out := map[string]any{"request_type": "media"}
	if v, ok := floatField(payload, "requestStartDate"); ok {
		out["request_start"] = v
	}
	if v, ok := floatField(payload, "firstByteDate"); ok {
		out["request_response_start"] = v
	}
	if v, ok := floatField(payload, "requestEndDate"); ok {
		out["request_response_end"] = v
	}
	if v, ok := floatField(payload, "bytesLoaded"); ok {
		out["request_bytes_loaded"] = int64(v)
	}
	if u, ok := stringField(payload, "url"); ok {
		if host := hostname(u); host != "" {
			out["request_hostname"] = host
		}
	}
	if headers, ok := payload["responseHeaders"].(map[string]any); ok {
		if filtered := filterHeaders(headers); filtered != nil {
			out["request_response_headers"] = filtered
		}
	}
	a.emit.Emit(event.RequestCompleted, out)
}

func (a *Dash) onFragmentLoadingAbandoned(map[string]any) {
	a.emit.Emit(event.RequestCanceled, map[string]any{"request_type": "media"})
}

func (a *Dash) onQualityChangeRendered(payload map[string]any) {
	out := map[string]any{}
	if v, ok := floatField(payload, "width"); ok {
		out["rendition_width"] = int64(v)
	}
	if v, ok := floatField(payload, "height"); ok {
		out["rendition_height"] = int64(v)
	}
	if v, ok := floatField(payload, "bitrate"); ok {
		out["rendition_bitrate"] = int64(v)
	}
	if len(out) == 0 {
		return
	}
	a.emit.Emit(event.RenditionChange, out)
}

func (a *Dash) onError(payload map[string]any) {
	out := map[string]any{}
	if v, ok := floatField(payload, "code"); ok {
		out[viewdata.PlayerErrorCode] = int64(v)
	}
	if msg, ok := stringField(payload, "message"); ok {
		out[viewdata.PlayerErrorMessage] = msg
	}
	a.emit.Emit(event.Error, out)
}
