package tracker

import (
	"testing"
	"time"

	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

func newPlayheadFixture(t *testing.T) (*harness, *Heartbeat, *PlayheadRebuffer) {
	t.Helper()
	h := newHarness()
	hb := NewHeartbeat(h.core(), 0)
	pr := NewPlayheadRebuffer(h.core(), hb, 0, 0)
	t.Cleanup(func() {
		pr.Stop()
		hb.Stop()
	})
	return h, hb, pr
}

func TestPlayheadRebufferSynthesizesStall(t *testing.T) {
	h, _, _ := newPlayheadFixture(t)

	h.data.Set(viewdata.PlayerPlayheadTime, 1000.0)
	h.Emit(event.Playing, nil) // immediate beat establishes the baseline

	// Next timer beat sees the same playhead, well past the sustained
	// threshold, so a backdated rebufferstart is synthesized.
	h.clk.Advance(25 * time.Second)
	if got := h.countSeen(event.RebufferStart); got != 1 {
		t.Fatalf("rebufferstart count = %d, want 1", got)
	}
	start, _ := h.lastSeen(event.RebufferStart)
	if start.ViewerTime != 250 {
		t.Errorf("rebufferstart viewer time = %d, want 250", start.ViewerTime)
	}

	// The playhead moves again; the window closes at the current time.
	h.data.Set(viewdata.PlayerPlayheadTime, 2000.0)
	h.clk.Advance(25 * time.Second)
	if got := h.countSeen(event.RebufferEnd); got != 1 {
		t.Fatalf("rebufferend count = %d, want 1", got)
	}
	end, _ := h.lastSeen(event.RebufferEnd)
	if end.ViewerTime != 50000 {
		t.Errorf("rebufferend viewer time = %d, want 50000", end.ViewerTime)
	}
}

func TestPlayheadRebufferQuietDuringSeek(t *testing.T) {
	h, _, _ := newPlayheadFixture(t)

	h.data.Set(viewdata.PlayerPlayheadTime, 1000.0)
	h.Emit(event.Playing, nil)
	h.Emit(event.Seeking, nil)

	h.clk.Advance(25 * time.Second)
	if got := h.countSeen(event.RebufferStart); got != 0 {
		t.Fatalf("rebufferstart during seek = %d, want 0", got)
	}

	// The seek lands on a new position; the jump is not a stall.
	h.data.Set(viewdata.PlayerPlayheadTime, 90000.0)
	h.Emit(event.Seeked, nil)
	h.clk.Advance(25 * time.Second)
	if got := h.countSeen(event.RebufferStart); got != 1 {
		t.Fatalf("rebufferstart after landed seek = %d, want 1", got)
	}
}

func TestPlayheadRebufferQuietDuringAdBreak(t *testing.T) {
	h, _, _ := newPlayheadFixture(t)

	h.data.Set(viewdata.PlayerPlayheadTime, 1000.0)
	h.Emit(event.Playing, nil)
	h.Emit(event.AdBreakStart, nil)

	// Content playhead legitimately sits still through the break.
	h.clk.Advance(50 * time.Second)
	if got := h.countSeen(event.RebufferStart); got != 0 {
		t.Fatalf("rebufferstart during ad break = %d, want 0", got)
	}
}

func TestPlayheadRebufferQuietWhilePaused(t *testing.T) {
	h, _, _ := newPlayheadFixture(t)

	h.data.Set(viewdata.PlayerPlayheadTime, 1000.0)
	h.Emit(event.Playing, nil)
	h.clk.Advance(5 * time.Second)
	h.Emit(event.Pause, nil)

	// Paused playback keeps the playhead still by design of the
	// player, not because of a stall. With the heartbeat stopped no
	// beats fire, and a manual beat must not synthesize either.
	h.clk.Advance(time.Minute)
	h.Emit(event.PlaybackHeartbeat, nil)
	if got := h.countSeen(event.RebufferStart); got != 0 {
		t.Fatalf("rebufferstart while paused = %d, want 0", got)
	}
}
