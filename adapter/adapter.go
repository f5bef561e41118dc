// Package adapter normalizes engine-native playback events into the
// canonical event vocabulary. One adapter exists per engine kind;
// adapters are attached and detached dynamically as the host player
// swaps engines mid-view.
package adapter

import (
	"net/url"
	"strings"
)

// Kind identifies the playback engine behind a Source.
type Kind int

const (
	KindNative Kind = iota
	KindHLS
	KindDash
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindHLS:
		return "hls"
	case KindDash:
		return "dash"
	default:
		return "unknown"
	}
}

// Source is the engine-side half of an adapter: the host player
// exposes its native event stream through it. On registers a listener
// and returns its detach function.
type Source interface {
	On(name string, fn func(payload map[string]any)) (off func())
}

// Emitter is the sink for normalized events, implemented by the view
// controller.
type Emitter interface {
	Emit(typ string, data map[string]any)
}

// Adapter binds a Source to an Emitter until stopped.
type Adapter interface {
	Kind() Kind
	// Stop detaches all engine listeners. Idempotent.
	Stop()
}

// base carries the detach bookkeeping shared by all adapters.
type base struct {
	offs    []func()
	stopped bool
}

func (b *base) listen(src Source, name string, fn func(map[string]any)) {
	b.offs = append(b.offs, src.On(name, fn))
}

func (b *base) Stop() {
	if b.stopped {
		return
	}
	b.stopped = true
	for _, off := range b.offs {
		off()
	}
	b.offs = nil
}

// allowedHeaders is the response-header allow-list attached to
// request events. Everything else is dropped before emission.
var allowedHeaders = map[string]bool{
	"x-cdn":               true,
	"content-type":        true,
	"content-length":      true,
	"x-request-id":        true,
	"cf-ray":              true,
	"x-amz-cf-id":         true,
	"x-amz-cf-pop":        true,
	"akamai-grn":          true,
	"x-akamai-request-id": true,
	"x-served-by":         true,
	"x-cache":             true,
}

func filterHeaders(raw map[string]any) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]any)
	for k, v := range raw {
		if allowedHeaders[strings.ToLower(k)] {
			out[strings.ToLower(k)] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func floatField(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func stringField(payload map[string]any, key string) (string, bool) {
	s, ok := payload[key].(string)
	return s, ok
}
