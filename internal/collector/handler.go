package collector

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/viewtrace/viewtrace/viewdata"
)

type HttpRes struct {
	Message    string `json:"message,omitempty" example:"status ok"`
	StatusCode int    `json:"statusCode,omitempty" example:"200"`
}

func HttpResOk() HttpRes {
	return HttpRes{
		Message:    "OK",
		StatusCode: http.StatusOK,
	}
}

func HttpResError(errMsg string, statusCode int) (int, HttpRes) {
	return statusCode, HttpRes{
		Message:    errMsg,
		StatusCode: statusCode,
	}
}

type beaconMetadata struct {
	TransmissionTimestamp int64 `json:"transmission_timestamp"`
	RTTMS                 int64 `json:"rtt_ms"`
}

type beaconPayload struct {
	Metadata beaconMetadata   `json:"metadata"`
	Events   []map[string]any `json:"events"`
}

type Handler struct {
	storage     Storage
	live        LiveCache
	realIP      *RealIPExtractor
	maxBodySize int64
}

func NewHandler(storage Storage, live LiveCache, extractor *RealIPExtractor, maxBodySize int64) *Handler {
	return &Handler{
		storage:     storage,
		live:        live,
		realIP:      extractor,
		maxBodySize: maxBodySize,
	}
}

// IngestHandler accepts one beacon batch on POST /events. Keys arrive
// abbreviated on the wire and are expanded before storage; each stored
// event is enriched with the sender's client IP.
func (h *Handler) IngestHandler(c echo.Context) error {
	log := log.WithField("prefix", "IngestHandler")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, h.maxBodySize+1))
	if err != nil {
		BeaconsRejectedMetric.WithLabelValues("read_error").Inc()
		return c.JSON(HttpResError("failed to read request body", http.StatusBadRequest))
	}
	if int64(len(body)) > h.maxBodySize {
		BeaconsRejectedMetric.WithLabelValues("too_large").Inc()
		return c.JSON(HttpResError("request body too large", http.StatusRequestEntityTooLarge))
	}

	var batch beaconPayload
	if err := sonic.Unmarshal(body, &batch); err != nil {
		BeaconsRejectedMetric.WithLabelValues("bad_json").Inc()
		return c.JSON(HttpResError("invalid payload", http.StatusBadRequest))
	}
	if len(batch.Events) == 0 {
		BeaconsRejectedMetric.WithLabelValues("empty").Inc()
		return c.JSON(HttpResError("empty batch", http.StatusBadRequest))
	}

	now := time.Now()
	clientIP := h.realIP.Extract(c.Request())

	events := make([]StoredEvent, 0, len(batch.Events))
	liveViews := map[string]bool{}
	for _, raw := range batch.Events {
		fields := viewdata.ExpandFields(raw)
		typ, _ := fields[viewdata.EventType].(string)
		if typ == "" {
			BeaconsRejectedMetric.WithLabelValues("untyped_event").Inc()
			return c.JSON(HttpResError("event without a type", http.StatusBadRequest))
		}
		delete(fields, viewdata.EventType)
		if clientIP != "" {
			fields[viewdata.ViewerIP] = clientIP
		}

		ev := StoredEvent{
			ViewID:     stringField(fields, viewdata.ViewID),
			ViewerID:   stringField(fields, viewdata.ViewerID),
			EnvKey:     stringField(fields, viewdata.EnvKey),
			Type:       typ,
			ViewerTime: int64Field(fields, viewdata.ViewerTime),
			ReceivedAt: now,
			Fields:     fields,
		}
		events = append(events, ev)
		if ev.ViewID != "" {
			liveViews[ev.ViewID] = true
		}
		EventsReceivedMetric.WithLabelValues(typ).Inc()
	}

	ctx := c.Request().Context()
	if err := h.storage.SaveEvents(ctx, events); err != nil {
		log.Errorf("save batch: %v", err)
		return c.JSON(HttpResError("storage error", http.StatusInternalServerError))
	}
	for viewID := range liveViews {
		if err := h.live.Touch(ctx, viewID, now); err != nil {
			log.Warnf("live cache touch: %v", err)
		}
	}

	BeaconsReceivedMetric.Inc()
	BeaconEventsMetric.Observe(float64(len(events)))
	log.WithFields(map[string]interface{}{
		"events": len(events),
		"rtt_ms": batch.Metadata.RTTMS,
	}).Debug("beacon accepted")

	return c.JSON(http.StatusOK, HttpResOk())
}

type viewEventJSON struct {
	Type       string         `json:"event"`
	ViewerTime int64          `json:"viewer_time"`
	ReceivedAt time.Time      `json:"received_at"`
	Fields     map[string]any `json:"fields"`
}

// ViewEventsHandler returns the stored events of one view, expanded,
// on GET /views/:id/events.
func (h *Handler) ViewEventsHandler(c echo.Context) error {
	viewID := c.Param("id")
	if viewID == "" {
		return c.JSON(HttpResError("missing view id", http.StatusBadRequest))
	}

	events, err := h.storage.ViewEvents(c.Request().Context(), viewID)
	if err != nil {
		log.WithField("prefix", "ViewEventsHandler").Errorf("load view %s: %v", viewID, err)
		return c.JSON(HttpResError("storage error", http.StatusInternalServerError))
	}
	if len(events) == 0 {
		return c.JSON(HttpResError(fmt.Sprintf("view %s not found", viewID), http.StatusNotFound))
	}

	out := make([]viewEventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, viewEventJSON{
			Type:       ev.Type,
			ViewerTime: ev.ViewerTime,
			ReceivedAt: ev.ReceivedAt,
			Fields:     ev.Fields,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func int64Field(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
