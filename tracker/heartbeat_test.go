package tracker

import (
	"testing"
	"time"

	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

func TestHeartbeatRoundTrip(t *testing.T) {
	h := newHarness()
	hb := NewHeartbeat(h.core(), 0)
	defer hb.Stop()
	wt := NewWatchTime(h.core())
	defer wt.Stop()

	// viewinit -> play -> playing -> one heartbeat tick -> pause.
	h.Emit(event.ViewInit, nil)
	h.Emit(event.Play, nil)
	h.Emit(event.Playing, nil)

	if got := h.countSeen(event.PlaybackHeartbeat); got != 1 {
		t.Fatalf("expected exactly one immediate heartbeat, got %d", got)
	}
	if !hb.Active() {
		t.Fatal("heartbeat must be active during playback")
	}

	h.clk.Advance(25100 * time.Millisecond)
	if got := h.countSeen(event.PlaybackHeartbeat); got != 2 {
		t.Fatalf("expected one timer-driven heartbeat, got %d total", got)
	}

	h.Emit(event.Pause, nil)
	if got := h.countSeen(event.PlaybackHeartbeatEnd); got != 1 {
		t.Fatalf("expected heartbeatend on pause, got %d", got)
	}
	if hb.Active() {
		t.Fatal("heartbeat must stop on pause")
	}

	// Watch time covers the 25s tick plus the 100ms tail to pause.
	if got := h.data.GetInt64(viewdata.ViewWatchTime); got < 25000 {
		t.Fatalf("view_watch_time = %d, want >= 25000", got)
	}

	// No further beats after the end.
	h.clk.Advance(time.Minute)
	if got := h.countSeen(event.PlaybackHeartbeat); got != 2 {
		t.Fatalf("heartbeat kept firing after pause: %d", got)
	}
}

func TestHeartbeatNotRestartedWhileActive(t *testing.T) {
	h := newHarness()
	hb := NewHeartbeat(h.core(), 0)
	defer hb.Stop()

	h.Emit(event.Play, nil)
	h.Emit(event.Playing, nil)
	h.Emit(event.RebufferStart, nil)

	if got := h.countSeen(event.PlaybackHeartbeat); got != 1 {
		t.Fatalf("start events while active must not re-emit, got %d", got)
	}
}

func TestHeartbeatTimeUpdateEmitsExtraBeat(t *testing.T) {
	h := newHarness()
	hb := NewHeartbeat(h.core(), 0)
	defer hb.Stop()

	h.Emit(event.TimeUpdate, nil)
	if got := h.countSeen(event.PlaybackHeartbeat); got != 0 {
		t.Fatalf("timeupdate while idle must not beat, got %d", got)
	}

	h.Emit(event.Playing, nil)
	h.Emit(event.TimeUpdate, nil)
	if got := h.countSeen(event.PlaybackHeartbeat); got != 2 {
		t.Fatalf("expected extra beat on timeupdate during playback, got %d", got)
	}
}

func TestHeartbeatSeekedRespectsPause(t *testing.T) {
	h := newHarness()
	hb := NewHeartbeat(h.core(), 0)
	defer hb.Stop()

	h.data.Set(viewdata.PlayerIsPaused, true)
	h.Emit(event.Seeked, nil)
	if hb.Active() {
		t.Fatal("seeked while paused must not resume the heartbeat")
	}

	h.data.Set(viewdata.PlayerIsPaused, false)
	h.Emit(event.Seeked, nil)
	if !hb.Active() {
		t.Fatal("seeked while playing must resume the heartbeat")
	}
}

func TestHeartbeatTracksPauseWithoutStateData(t *testing.T) {
	h := newHarness()
	hb := NewHeartbeat(h.core(), 0)
	defer hb.Stop()

	// No host state data: the tracker must infer paused from the
	// event stream alone.
	h.Emit(event.Play, nil)
	h.Emit(event.Pause, nil)
	if hb.Active() {
		t.Fatal("pause must stop the heartbeat")
	}

	h.Emit(event.Seeked, nil)
	if hb.Active() {
		t.Fatal("seeked after pause must not resume the heartbeat")
	}

	h.Emit(event.Playing, nil)
	h.Emit(event.Seeked, nil)
	if !hb.Active() {
		t.Fatal("seeked after playing must keep the heartbeat running")
	}
}

func TestHeartbeatDeviceSleepClosesAtLastActivity(t *testing.T) {
	h := newHarness()
	hb := NewHeartbeat(h.core(), 0)
	defer hb.Stop()

	h.Emit(event.Playing, nil)
	h.clk.Advance(5 * time.Second)
	h.Emit(event.TimeUpdate, nil) // last activity at t=5000

	// The sleep is detected later, within the heartbeat period.
	h.clk.Advance(10 * time.Second)
	h.EmitAt(event.DeviceSleep, nil, 5000)

	end, ok := h.lastSeen(event.PlaybackHeartbeatEnd)
	if !ok {
		t.Fatal("expected heartbeatend on devicesleep")
	}
	if end.ViewerTime != 5000 {
		t.Fatalf("heartbeatend must carry last known viewer time 5000, got %d", end.ViewerTime)
	}
	if hb.Active() {
		t.Fatal("heartbeat must stop on devicesleep")
	}
}
