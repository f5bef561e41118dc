package viewdata

import (
	"testing"
)

func TestWordCodesBijective(t *testing.T) {
	seen := make(map[string]string)
	for word, code := range wordCodes {
		if prev, dup := seen[code]; dup {
			t.Fatalf("code %q assigned to both %q and %q", code, prev, word)
		}
		seen[code] = word
	}
	// A code must never collide with a different dictionary word, or
	// expansion would rewrite that word.
	for word := range wordCodes {
		if owner, ok := codeWords[word]; ok && owner != word {
			t.Fatalf("word %q is also the code for %q", word, owner)
		}
	}
}

func TestShortenExpandRoundTrip(t *testing.T) {
	keys := []string{
		ViewWatchTime,
		ViewRebufferDuration,
		PlayerErrorCode,
		ViewTimeToFirstFrame,
		ViewMaxPlayheadPosition,
		SessionExpires,
		EnvKey,
		"custom_dimension_1", // unknown tokens pass through
	}
	for _, k := range keys {
		short := ShortenKey(k)
		if got := ExpandKey(short); got != k {
			t.Fatalf("round trip %q -> %q -> %q", k, short, got)
		}
	}
	if ShortenKey(ViewWatchTime) == ViewWatchTime {
		t.Fatal("expected view_watch_time to actually shorten")
	}
}

func TestShortenFieldsNested(t *testing.T) {
	in := map[string]any{
		ViewID: "v1",
		"request_response_headers": map[string]any{
			"content_type": "video/mp4",
		},
	}
	short := ShortenFields(in)
	if _, ok := short[ShortenKey(ViewID)]; !ok {
		t.Fatalf("missing shortened view id key in %v", short)
	}
	back := ExpandFields(short)
	headers, ok := back["request_response_headers"].(map[string]any)
	if !ok {
		t.Fatalf("nested object lost in round trip: %v", back)
	}
	if headers["content_type"] != "video/mp4" {
		t.Fatalf("nested value lost: %v", headers)
	}
}
