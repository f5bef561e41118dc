package tracker

import (
	"testing"
	"time"

	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

func TestWatchTimeAccumulatesBetweenBeats(t *testing.T) {
	h := newHarness()
	w := NewWatchTime(h.core())
	defer w.Stop()

	h.Emit(event.PlaybackHeartbeat, nil) // t=0, baseline
	h.clk.Advance(10 * time.Second)
	h.Emit(event.PlaybackHeartbeat, nil)
	h.clk.Advance(5 * time.Second)
	h.Emit(event.PlaybackHeartbeatEnd, nil)

	if got := h.data.GetInt64(viewdata.ViewWatchTime); got != 15000 {
		t.Fatalf("watch time = %d, want 15000", got)
	}

	// Time passing while the heartbeat is down is not watch time.
	h.clk.Advance(time.Minute)
	h.Emit(event.PlaybackHeartbeat, nil)
	h.clk.Advance(2 * time.Second)
	h.Emit(event.PlaybackHeartbeat, nil)

	if got := h.data.GetInt64(viewdata.ViewWatchTime); got != 17000 {
		t.Fatalf("watch time after pause = %d, want 17000", got)
	}
}

func TestWatchTimeMonotonic(t *testing.T) {
	h := newHarness()
	w := NewWatchTime(h.core())
	defer w.Stop()

	h.Emit(event.PlaybackHeartbeat, nil)
	h.clk.Advance(time.Second)
	h.Emit(event.PlaybackHeartbeat, nil)

	// A backdated beat must not subtract.
	h.EmitAt(event.PlaybackHeartbeat, nil, 200)
	if got := h.data.GetInt64(viewdata.ViewWatchTime); got != 1000 {
		t.Fatalf("watch time = %d, want 1000", got)
	}
}

func TestWatchTimeResetOnViewInit(t *testing.T) {
	h := newHarness()
	w := NewWatchTime(h.core())
	defer w.Stop()

	h.Emit(event.PlaybackHeartbeat, nil)
	h.clk.Advance(time.Second)
	h.Emit(event.ViewInit, nil)
	h.data.ResetView()

	// The first beat of the new view only re-establishes the baseline.
	h.clk.Advance(time.Second)
	h.Emit(event.PlaybackHeartbeat, nil)
	if got := h.data.GetInt64(viewdata.ViewWatchTime); got != 0 {
		t.Fatalf("watch time after reset = %d, want 0", got)
	}
}
