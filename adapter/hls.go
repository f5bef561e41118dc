package adapter

import (
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// HLS raw event names, as surfaced by an hls.js-style engine Source.
const (
	hlsFragLoaded    = "hlsFragLoaded"
	hlsFragLoadError = "hlsFragLoadError"
	hlsFragChanged   = "hlsFragChanged"
	hlsLevelSwitched = "hlsLevelSwitched"
	hlsError         = "hlsError"
)

// HLS normalizes hls.js-style events: fragment loads become request
// telemetry, level switches become rendition changes, and fragment
// changes carry the program-date-time anchor.
type HLS struct {
	base
	emit Emitter
}

// NewHLS attaches an HLS adapter to src.
func NewHLS(src Source, emit Emitter) *HLS {
	a := &HLS{emit: emit}
	a.listen(src, hlsFragLoaded, a.onFragLoaded)
	a.listen(src, hlsFragLoadError, a.onFragLoadError)
	a.listen(src, hlsFragChanged, a.onFragChanged)
	a.listen(src, hlsLevelSwitched, a.onLevelSwitched)
	a.listen(src, hlsError, a.onError)
	return a
}

// Kind reports the engine kind.
func (a *HLS) Kind() Kind { return KindHLS }

func (a *HLS) onFragLoaded(payload map[string]any) {
	out := map[string]any{"request_type": "media"}
	if v, ok := floatField(payload, "trequest"); ok {
		out["request_start"] = v
	}
	if v, ok := floatField(payload, "tfirst"); ok {
		out["request_response_start"] = v
	}
	if v, ok := floatField(payload, "tload"); ok {
		out["request_response_end"] = v
	}
	if v, ok := floatField(payload, "bytes"); ok {
		out["request_bytes_loaded"] = int64(v)
	}
	if u, ok := stringField(payload, "url"); ok {
		if host := hostname(u); host != "" {
			out["request_hostname"] = host
		}
	}
	if headers, ok := payload["headers"].(map[string]any); ok {
		if filtered := filterHeaders(headers); filtered != nil {
			out["request_response_headers"] = filtered
		}
	}
	a.emit.Emit(event.RequestCompleted, out)
}

func (a *HLS) onFragLoadError(payload map[string]any) {
	out := map[string]any{"request_type": "media"}
	if u, ok := stringField(payload, "url"); ok {
		if host := hostname(u); host != "" {
			out["request_hostname"] = host
		}
	}
	a.emit.Emit(event.RequestFailed, out)
}

func (a *HLS) onFragChanged(payload map[string]any) {
	pdt, okPDT := floatField(payload, "programDateTime")
	start, okStart := floatField(payload, "start")
	if !okPDT || !okStart {
		return
	}
	a.emit.Emit(event.FragmentChange, map[string]any{
		"fragment_pdt":   pdt,
		"fragment_start": start,
	})
}

func (a *HLS) onLevelSwitched(payload map[string]any) {
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

func (a *HLS) onError(payload map[string]any) {
	fatal, _ := payload["fatal"].(bool)
	kind, _ := stringField(payload, "type")
	details, _ := stringField(payload, "details")

	if !fatal && kind == "networkError" {
		// Non-fatal network hiccups are request telemetry, not player
		// errors; hls.js retries them internally.
		out := map[string]any{"request_type": "media", "request_error": details}
		if u, ok := stringField(payload, "url"); ok {
			if host := hostname(u); host != "" {
				out["request_hostname"] = host
			}
		}
		a.emit.Emit(event.RequestFailed, out)
		return
	}
	if !fatal {
		return
	}
	a.emit.Emit(event.Error, map[string]any{
		viewdata.PlayerErrorCode:    kind,
		viewdata.PlayerErrorMessage: details,
	})
}
