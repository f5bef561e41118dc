package viewdata

import (
	"testing"

	"github.com/viewtrace/viewtrace/event"
)

func TestDiffOmitsUnchangedFields(t *testing.T) {
	prev := map[string]any{
		ViewID:             "v1",
		ViewSequenceNumber: int64(1),
		PlayerPlayheadTime: int64(1000),
		PlayerSoftwareName: "testplayer",
	}
	next := map[string]any{
		ViewID:             "v1",
		ViewSequenceNumber: int64(2),
		PlayerPlayheadTime: int64(2000),
		PlayerSoftwareName: "testplayer",
	}

	out := Diff(prev, next, event.TimeUpdate)

	if _, ok := out[PlayerSoftwareName]; ok {
		t.Fatal("unchanged field must be omitted")
	}
	if out[PlayerPlayheadTime] != int64(2000) {
		t.Fatalf("changed field must be present, got %v", out)
	}
	// Allow-listed fields always ride along.
	if out[ViewID] != "v1" {
		t.Fatal("view_id is allow-listed and must always be present")
	}
	if out[ViewSequenceNumber] != int64(2) {
		t.Fatal("view_sequence_number must always be present")
	}
}

func TestDiffRequestObjectAlwaysResent(t *testing.T) {
	headers := map[string]any{"x_cdn": "edge-1"}
	prev := map[string]any{"request_response_headers": headers}
	next := map[string]any{"request_response_headers": headers}

	out := Diff(prev, next, event.RequestCompleted)
	if _, ok := out["request_response_headers"]; !ok {
		t.Fatal("object-valued request_ field must be resent on request events")
	}
}

func TestDiffAdCreativeOnlyOnQuartiles(t *testing.T) {
	prev := map[string]any{AdCreativeID: "cr-9"}
	next := map[string]any{AdCreativeID: "cr-9"}

	if out := Diff(prev, next, event.AdPlaying); len(out) != 0 {
		t.Fatalf("ad creative id must diff away on non-quartile events, got %v", out)
	}
	out := Diff(prev, next, event.AdMidpoint)
	if out[AdCreativeID] != "cr-9" {
		t.Fatal("ad creative id must be resent on quartile events")
	}
}
