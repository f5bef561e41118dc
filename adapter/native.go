package adapter

import (
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// nativePassthrough: media-element events whose canonical name equals
// the raw name, forwarded with their payload intact.
var nativePassthrough = []string{
	event.Play,
	event.Playing,
	event.Pause,
	event.TimeUpdate,
	event.Seeking,
	event.Seeked,
	event.Ended,
}

// Native adapts a bare media element: lifecycle events pass through,
// stall events become rebuffer signals, and the element's error
// object becomes a canonical error.
type Native struct {
	base
	emit Emitter
}

// NewNative attaches a native media element adapter to src.
func NewNative(src Source, emit Emitter) *Native {
	a := &Native{emit: emit}
	for _, name := range nativePassthrough {
		name := name
		a.listen(src, name, func(payload map[string]any) {
			a.emit.Emit(name, payload)
		})
	}
	a.listen(src, "waiting", a.onStall)
	a.listen(src, "stalled", a.onStall)
	a.listen(src, "canplaythrough", a.onRecovered)
	a.listen(src, "error", a.onError)
	return a
}

// Kind reports the engine kind.
func (a *Native) Kind() Kind { return KindNative }

func (a *Native) onStall(payload map[string]any) {
	a.emit.Emit(event.RebufferStart, payload)
}

func (a *Native) onRecovered(payload map[string]any) {
	a.emit.Emit(event.RebufferEnd, payload)
}

func (a *Native) onError(payload map[string]any) {
	out := map[string]any{}
	if v, ok := floatField(payload, "code"); ok {
		out[viewdata.PlayerErrorCode] = int64(v)
	}
	if msg, ok := stringField(payload, "message"); ok {
		out[viewdata.PlayerErrorMessage] = msg
	}
	a.emit.Emit(event.Error, out)
}
