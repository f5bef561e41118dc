package viewdata

import (
	"strings"

	"github.com/viewtrace/viewtrace/event"
)

// alwaysSendKeys are present on every beacon of a view regardless of
// whether their value changed since the previous beacon.
var alwaysSendKeys = map[string]bool{
	ViewID:               true,
	ViewSequenceNumber:   true,
	PlayerSequenceNumber: true,
	ViewStart:            true,
	ViewerID:             true,
	SessionID:            true,
	EnvKey:               true,
	ViewerTime:           true,

	PlayerErrorCode:              true,
	PlayerErrorMessage:           true,
	PlayerErrorContext:           true,
	PlayerErrorSeverity:          true,
	PlayerErrorBusinessException: true,
}

// adCreativeKeys are only resent on ad quartile events; on other
// events they diff away like any ordinary field.
var adCreativeKeys = map[string]bool{
	AdCreativeID: true,
	AdID:         true,
	AdUniverseID: true,
}

func isQuartileEvent(t string) bool {
	switch t {
	case event.AdFirstQuartile, event.AdMidpoint, event.AdThirdQuartile:
		return true
	}
	return false
}

// Diff returns the fields of next that must go out on a beacon of
// eventType, given that prev was the previous beacon's snapshot for
// the same view. Unchanged fields are omitted, except:
//   - the always-send allow-list,
//   - request_* fields with object values on request* events (object
//     values cannot be diffed shallowly, so they are always resent),
//   - ad creative ids on quartile events.
func Diff(prev, next map[string]any, eventType string) map[string]any {
	out := make(map[string]any, len(next))
	for k, v := range next {
		if alwaysSendKeys[k] {
			out[k] = v
			continue
		}
		if adCreativeKeys[k] {
			if isQuartileEvent(eventType) || !shallowEqual(prev[k], v) {
				out[k] = v
			}
			continue
		}
		if strings.HasPrefix(k, "request_") && event.IsRequestEvent(eventType) {
			if _, isObj := v.(map[string]any); isObj {
				out[k] = v
				continue
			}
		}
		pv, had := prev[k]
		if !had || !shallowEqual(pv, v) {
			out[k] = v
		}
	}
	return out
}

// shallowEqual compares scalar values; anything non-comparable is
// treated as changed.
func shallowEqual(a, b any) bool {
	if _, ok := a.(map[string]any); ok {
		return false
	}
	if _, ok := b.(map[string]any); ok {
		return false
	}
	if _, ok := a.([]any); ok {
		return false
	}
	if _, ok := b.([]any); ok {
		return false
	}
	return a == b
}
