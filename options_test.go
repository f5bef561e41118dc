package viewtrace

import (
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()

	if o.Clock == nil || o.Scheduler == nil || o.Sender == nil ||
		o.FinalSender == nil || o.Store == nil || o.Log == nil {
		t.Fatalf("defaults left a nil dependency: %+v", o)
	}
	if now := o.Clock.NowUnixMilli(); now <= 0 {
		t.Errorf("system clock time = %d", now)
	}
	cancel := o.Scheduler.After(time.Hour, func() {})
	cancel()

	if got := o.beaconURL(); got != DefaultBeaconURL {
		t.Errorf("beacon url = %q, want %q", got, DefaultBeaconURL)
	}
	if got := o.sampleRate(); got != 1 {
		t.Errorf("sample rate = %v, want 1", got)
	}
	if got := o.staleDiffThreshold(); got != DefaultStaleDiffThreshold {
		t.Errorf("stale diff threshold = %v, want %v", got, DefaultStaleDiffThreshold)
	}
}

func TestOptionsBeaconDomain(t *testing.T) {
	o := Options{BeaconCollectionDomain: "ingest.example.com"}
	if got := o.beaconURL(); got != "https://ingest.example.com/events" {
		t.Errorf("beacon url = %q", got)
	}

	o.BeaconURL = "http://localhost:8080/events"
	if got := o.beaconURL(); got != "http://localhost:8080/events" {
		t.Errorf("explicit beacon url not honored: %q", got)
	}
}
