package tracker

import (
	"testing"

	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

func completedRequest(start, respStart, respEnd float64, bytes int64) map[string]any {
	return map[string]any{
		"request_start":          start,
		"request_response_start": respStart,
		"request_response_end":   respEnd,
		"request_bytes_loaded":   bytes,
	}
}

func TestRequestsLatencyAndThroughput(t *testing.T) {
	h := newHarness()
	r := NewRequests(h.core())
	defer r.Stop()

	// latency 100, throughput 500000/50*1000 = 1e7 B/s
	h.Emit(event.RequestCompleted, completedRequest(0, 50, 100, 500000))
	// latency 300, throughput 100000/100*1000 = 1e6 B/s
	h.Emit(event.RequestCompleted, completedRequest(1000, 1200, 1300, 100000))

	if got := h.data.GetInt64(viewdata.ViewRequestCount); got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
	if got := h.data.GetInt64(viewdata.ViewRequestBytesLoaded); got != 600000 {
		t.Errorf("bytes loaded = %d, want 600000", got)
	}
	if got := h.data.GetFloat64(viewdata.ViewMaxRequestLatency); got != 300 {
		t.Errorf("max latency = %v, want 300", got)
	}
	if got := h.data.GetFloat64(viewdata.ViewAverageRequestLatency); got != 200 {
		t.Errorf("avg latency = %v, want 200", got)
	}
	if got := h.data.GetFloat64(viewdata.ViewMinRequestThroughput); got != 1e6 {
		t.Errorf("min throughput = %v, want 1e6", got)
	}
	if got := h.data.GetFloat64(viewdata.ViewAverageRequestThroughput); got != 5.5e6 {
		t.Errorf("avg throughput = %v, want 5.5e6", got)
	}
	p95 := h.data.GetFloat64(viewdata.ViewRequestLatencyP95)
	if p95 < 100 || p95 > 300 {
		t.Errorf("p95 latency = %v, want within [100, 300]", p95)
	}
}

func TestRequestsFailedAndCanceled(t *testing.T) {
	h := newHarness()
	r := NewRequests(h.core())
	defer r.Stop()

	h.Emit(event.RequestFailed, nil)
	h.Emit(event.RequestFailed, nil)
	h.Emit(event.RequestCanceled, nil)

	if got := h.data.GetInt64(viewdata.ViewRequestFailedCount); got != 2 {
		t.Errorf("failed count = %d, want 2", got)
	}
	if got := h.data.GetInt64(viewdata.ViewRequestCanceledCount); got != 1 {
		t.Errorf("canceled count = %d, want 1", got)
	}
	if got := h.data.GetInt64(viewdata.ViewRequestCount); got != 0 {
		t.Errorf("completed count = %d, want 0", got)
	}
}

func TestRequestsHostnameAndMalformedTimings(t *testing.T) {
	h := newHarness()
	r := NewRequests(h.core())
	defer r.Stop()

	h.Emit(event.RequestCompleted, map[string]any{
		"request_hostname": "cdn.example.com",
		// response_end before start: latency is discarded
		"request_start":        float64(500),
		"request_response_end": float64(100),
	})

	if got := h.data.GetString(viewdata.VideoSourceDomain); got != "cdn.example.com" {
		t.Errorf("source domain = %q, want cdn.example.com", got)
	}
	if got := h.data.GetInt64(viewdata.ViewRequestCount); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
	if h.data.Has(viewdata.ViewAverageRequestLatency) {
		t.Error("latency recorded from malformed timings")
	}
}

func TestRequestsRenditionChange(t *testing.T) {
	h := newHarness()
	r := NewRequests(h.core())
	defer r.Stop()

	h.Emit(event.RenditionChange, map[string]any{
		"rendition_width":   int64(1920),
		"rendition_height":  int64(1080),
		"rendition_bitrate": int64(6000000),
	})

	if got := h.data.GetInt64(viewdata.VideoSourceWidth); got != 1920 {
		t.Errorf("width = %d, want 1920", got)
	}
	if got := h.data.GetInt64(viewdata.VideoSourceHeight); got != 1080 {
		t.Errorf("height = %d, want 1080", got)
	}
	if got := h.data.GetInt64(viewdata.VideoSourceBitrate); got != 6000000 {
		t.Errorf("bitrate = %d, want 6000000", got)
	}
}
