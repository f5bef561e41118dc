package tracker

import (
	"github.com/influxdata/tdigest"

	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// Requests aggregates segment/manifest request telemetry: counts,
// bytes, latency (with a t-digest for the p95), and throughput
// extremes.
type Requests struct {
	core Core

	latencySum   float64
	latencyCount int64
	digest       *tdigest.TDigest
	tputSum      float64
	tputCount    int64

	subs subscriptions
}

// NewRequests registers the request/throughput tracker.
func NewRequests(core Core) *Requests {
	r := &Requests{
		core:   core,
		digest: tdigest.NewWithCompression(100),
		subs:   subscriptions{bus: core.Bus},
	}
	r.subs.on(event.RequestCompleted, r.onCompleted)
	r.subs.on(event.RequestFailed, func(event.Event) {
		r.core.Data.Inc(viewdata.ViewRequestFailedCount, 1)
	})
	r.subs.on(event.RequestCanceled, func(event.Event) {
		r.core.Data.Inc(viewdata.ViewRequestCanceledCount, 1)
	})
	r.subs.on(event.RenditionChange, r.onRenditionChange)
	r.subs.on(event.ViewInit, r.onViewInit)
	return r
}

// Stop detaches listeners.
func (r *Requests) Stop() {
	r.subs.stop()
}

func (r *Requests) onViewInit(event.Event) {
	r.latencySum = 0
	r.latencyCount = 0
	r.tputSum = 0
	r.tputCount = 0
	r.digest = tdigest.NewWithCompression(100)
}

func (r *Requests) onCompleted(ev event.Event) {
	r.core.Data.Inc(viewdata.ViewRequestCount, 1)

	if bytes, ok := ev.Int64Field("request_bytes_loaded"); ok && bytes > 0 {
		r.core.Data.Inc(viewdata.ViewRequestBytesLoaded, bytes)
	}
	if host, ok := ev.StringField("request_hostname"); ok {
		r.core.Data.Set(viewdata.VideoSourceDomain, host)
	}

	start, okStart := ev.Float64Field("request_start")
	respStart, okRespStart := ev.Float64Field("request_response_start")
	respEnd, okRespEnd := ev.Float64Field("request_response_end")

	if okStart && okRespEnd && respEnd > start {
		latency := respEnd - start
		r.latencySum += latency
		r.latencyCount++
		r.digest.Add(latency, 1)
		r.core.Data.SetMax(viewdata.ViewMaxRequestLatency, latency)
		r.core.Data.Set(viewdata.ViewAverageRequestLatency, r.latencySum/float64(r.latencyCount))
		r.core.Data.Set(viewdata.ViewRequestLatencyP95, r.digest.Quantile(0.95))
	}

	if bytes, ok := ev.Int64Field("request_bytes_loaded"); ok && bytes > 0 && okRespStart && okRespEnd && respEnd > respStart {
		// Bytes per second over the body transfer window.
		tput := float64(bytes) / (respEnd - respStart) * 1000
		r.tputSum += tput
		r.tputCount++
		r.core.Data.SetMin(viewdata.ViewMinRequestThroughput, tput)
		r.core.Data.Set(viewdata.ViewAverageRequestThroughput, r.tputSum/float64(r.tputCount))
	}
}

func (r *Requests) onRenditionChange(ev event.Event) {
	if w, ok := ev.Int64Field("rendition_width"); ok {
		r.core.Data.Set(viewdata.VideoSourceWidth, w)
	}
	if h, ok := ev.Int64Field("rendition_height"); ok {
		r.core.Data.Set(viewdata.VideoSourceHeight, h)
	}
	if b, ok := ev.Int64Field("rendition_bitrate"); ok {
		r.core.Data.Set(viewdata.VideoSourceBitrate, b)
	}
}
