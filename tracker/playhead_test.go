package tracker

import (
	"testing"

	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

func TestPlayheadFromPayload(t *testing.T) {
	h := newHarness()
	p := NewPlayhead(h.core(), nil)
	defer p.Stop()

	h.Emit(event.TimeUpdate, map[string]any{viewdata.PlayerPlayheadTime: 12500.0})

	if got := h.data.GetFloat64(viewdata.PlayerPlayheadTime); got != 12500 {
		t.Fatalf("playhead = %v, want 12500", got)
	}
	if got := h.data.GetFloat64(viewdata.ViewMaxPlayheadPosition); got != 12500 {
		t.Fatalf("max playhead = %v, want 12500", got)
	}

	// A backwards seek moves the playhead but not the max.
	h.Emit(event.TimeUpdate, map[string]any{viewdata.PlayerPlayheadTime: 3000.0})
	if got := h.data.GetFloat64(viewdata.PlayerPlayheadTime); got != 3000 {
		t.Fatalf("playhead after seek = %v, want 3000", got)
	}
	if got := h.data.GetFloat64(viewdata.ViewMaxPlayheadPosition); got != 12500 {
		t.Fatalf("max playhead after seek = %v, want 12500", got)
	}
}

func TestPlayheadFromCapability(t *testing.T) {
	h := newHarness()
	current := 7000.0
	p := NewPlayhead(h.core(), func() (float64, bool) { return current, true })
	defer p.Stop()

	h.Emit(event.TimeUpdate, nil)
	if got := h.data.GetFloat64(viewdata.PlayerPlayheadTime); got != 7000 {
		t.Fatalf("playhead = %v, want 7000", got)
	}

	// The capability is only consulted on time-driven events.
	current = 9000
	h.Emit(event.Pause, nil)
	if got := h.data.GetFloat64(viewdata.PlayerPlayheadTime); got != 7000 {
		t.Fatalf("playhead after pause = %v, want 7000", got)
	}
	h.Emit(event.PlaybackHeartbeat, nil)
	if got := h.data.GetFloat64(viewdata.PlayerPlayheadTime); got != 9000 {
		t.Fatalf("playhead after beat = %v, want 9000", got)
	}
}

func TestPlayheadProgramTimeFromFragmentAnchor(t *testing.T) {
	h := newHarness()
	p := NewPlayhead(h.core(), nil)
	defer p.Stop()

	h.Emit(event.TimeUpdate, map[string]any{viewdata.PlayerPlayheadTime: 5000.0})
	if h.data.Has(viewdata.PlayerProgramTime) {
		t.Fatal("program time set without an anchor")
	}

	h.Emit(event.FragmentChange, map[string]any{
		"fragment_pdt":   1.7e12,
		"fragment_start": 4000.0,
	})
	h.Emit(event.TimeUpdate, map[string]any{viewdata.PlayerPlayheadTime: 6000.0})

	want := 1.7e12 + 2000
	if got := h.data.GetFloat64(viewdata.PlayerProgramTime); got != want {
		t.Fatalf("program time = %v, want %v", got, want)
	}
}
