package collector

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/viewtrace/viewtrace/viewdata"
)

func newTestHandler(t *testing.T) (*Handler, *MemStorage) {
	t.Helper()
	storage := NewMemStorage()
	extractor, err := NewRealIPExtractor([]string{"0.0.0.0/0"})
	if err != nil {
		t.Fatal(err)
	}
	return NewHandler(storage, NoopLiveCache{}, extractor, 1<<20), storage
}

func postBatch(t *testing.T, h *Handler, events []map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := sonic.Marshal(beaconPayload{
		Metadata: beaconMetadata{TransmissionTimestamp: time.Now().UnixMilli(), RTTMS: 40},
		Events:   events,
	})
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "203.0.113.7:54321"
	rec := httptest.NewRecorder()
	if err := h.IngestHandler(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	return rec
}

func wireEvent(typ string, fields map[string]any) map[string]any {
	ev := viewdata.ShortenFields(fields)
	ev[viewdata.ShortenKey(viewdata.EventType)] = typ
	return ev
}

func TestIngestExpandsAndStores(t *testing.T) {
	h, storage := newTestHandler(t)

	rec := postBatch(t, h, []map[string]any{
		wireEvent("viewstart", map[string]any{
			viewdata.ViewID:     "view-1",
			viewdata.ViewerID:   "viewer-1",
			viewdata.EnvKey:     "env-test",
			viewdata.ViewerTime: int64(1000),
			"video_title":       "first",
		}),
		wireEvent("pause", map[string]any{
			viewdata.ViewID:     "view-1",
			viewdata.ViewerTime: int64(2500),
		}),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	events, err := storage.ViewEvents(context.Background(), "view-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("stored %d events, want 2", len(events))
	}

	first := events[0]
	if first.Type != "viewstart" || first.ViewerID != "viewer-1" || first.EnvKey != "env-test" {
		t.Errorf("bad first event: %+v", first)
	}
	if first.ViewerTime != 1000 {
		t.Errorf("viewer time %d, want 1000", first.ViewerTime)
	}
	if got := first.Fields["video_title"]; got != "first" {
		t.Errorf("video_title %v, expansion broken", got)
	}
	if _, short := first.Fields[viewdata.ShortenKey("video_title")]; short {
		t.Error("abbreviated key survived expansion")
	}
	if got := first.Fields[viewdata.ViewerIP]; got != "203.0.113.7" {
		t.Errorf("viewer_ip %v, want client address", got)
	}

	if events[1].Type != "pause" || events[1].ViewerTime != 2500 {
		t.Errorf("bad second event: %+v", events[1])
	}
}

func TestIngestRejectsBadBatches(t *testing.T) {
	h, storage := newTestHandler(t)

	rec := postBatch(t, h, []map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch: status %d, want 400", rec.Code)
	}

	rec = postBatch(t, h, []map[string]any{
		viewdata.ShortenFields(map[string]any{viewdata.ViewID: "view-2"}),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("untyped event: status %d, want 400", rec.Code)
	}

	events, err := storage.ViewEvents(context.Background(), "view-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("rejected batch was stored: %d events", len(events))
	}
}

func TestIngestRejectsOversizedBody(t *testing.T) {
	storage := NewMemStorage()
	extractor, err := NewRealIPExtractor([]string{"0.0.0.0/0"})
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(storage, NoopLiveCache{}, extractor, 64)

	rec := postBatch(t, h, []map[string]any{
		wireEvent("viewstart", map[string]any{
			viewdata.ViewID: "view-3",
			"video_title":   "a title long enough to push the body past sixty-four bytes",
		}),
	})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d, want 413", rec.Code)
	}
}

func TestViewEventsHandler(t *testing.T) {
	h, _ := newTestHandler(t)

	postBatch(t, h, []map[string]any{
		wireEvent("viewstart", map[string]any{
			viewdata.ViewID:     "view-4",
			viewdata.ViewerTime: int64(0),
		}),
		wireEvent("viewend", map[string]any{
			viewdata.ViewID:     "view-4",
			viewdata.ViewerTime: int64(9000),
		}),
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/views/:id/events")
	c.SetParamNames("id")
	c.SetParamValues("view-4")
	if err := h.ViewEventsHandler(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var out []viewEventJSON
	if err := sonic.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d events, want 2", len(out))
	}
	if out[0].Type != "viewstart" || out[1].Type != "viewend" {
		t.Errorf("bad order: %s, %s", out[0].Type, out[1].Type)
	}
	if out[1].ViewerTime != 9000 {
		t.Errorf("viewer time %d, want 9000", out[1].ViewerTime)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetPath("/views/:id/events")
	c.SetParamNames("id")
	c.SetParamValues("no-such-view")
	rec2 := c.Response().Writer.(*httptest.ResponseRecorder)
	if err := h.ViewEventsHandler(c); err != nil {
		t.Fatal(err)
	}
	if rec2.Code != http.StatusNotFound {
		t.Fatalf("missing view: status %d, want 404", rec2.Code)
	}
}
