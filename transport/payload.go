package transport

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/viewtrace/viewtrace/event"
)

// MaxStringFieldLength is the per-field cap applied when value
// dropping alone cannot bring a payload under the size limit.
const MaxStringFieldLength = 51200

// Entry is one queued beacon event: the canonical event type plus the
// flattened, key-abbreviated snapshot taken at send time. Immutable
// once queued.
type Entry struct {
	Type   string
	Fields map[string]any
}

type payloadMetadata struct {
	TransmissionTimestamp int64 `json:"transmission_timestamp"`
	RTTMS                 int64 `json:"rtt_ms,omitempty"`
}

type payload struct {
	Metadata payloadMetadata  `json:"metadata"`
	Events   []map[string]any `json:"events"`
}

// eventTypeKey carries the event type inside each wire event object.
const eventTypeKey = "e"

// droppableTypes are high-frequency, low-value event types shed first
// when a batch exceeds the payload size limit.
var droppableTypes = map[string]bool{
	event.PlaybackHeartbeat: true,
	event.Heartbeat:         true,
	event.TimeUpdate:        true,
	event.RequestCompleted:  true,
	event.RequestFailed:     true,
	event.RequestCanceled:   true,
}

// BuildPayload serializes a batch. If the serialized size exceeds
// maxKB it first drops droppable event types, re-measures, and only
// then truncates oversized string fields across the remaining events.
// It returns the body and the entries actually included.
func BuildPayload(entries []Entry, transmissionTS, rttMS int64, maxKB int) ([]byte, []Entry, error) {
	body, err := marshal(entries, transmissionTS, rttMS)
	if err != nil {
		return nil, nil, err
	}
	if maxKB <= 0 || len(body) <= maxKB*1024 {
		return body, entries, nil
	}

	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !droppableTypes[e.Type] {
			kept = append(kept, e)
		}
	}
	body, err = marshal(kept, transmissionTS, rttMS)
	if err != nil {
		return nil, nil, err
	}
	if len(body) <= maxKB*1024 {
		return body, kept, nil
	}

	truncated := make([]Entry, len(kept))
	for i, e := range kept {
		truncated[i] = Entry{Type: e.Type, Fields: truncateStrings(e.Fields)}
	}
	body, err = marshal(truncated, transmissionTS, rttMS)
	if err != nil {
		return nil, nil, err
	}
	return body, truncated, nil
}

func marshal(entries []Entry, transmissionTS, rttMS int64) ([]byte, error) {
	events := make([]map[string]any, len(entries))
	for i, e := range entries {
		obj := make(map[string]any, len(e.Fields)+1)
		for k, v := range e.Fields {
			obj[k] = v
		}
		obj[eventTypeKey] = e.Type
		events[i] = obj
	}
	body, err := sonic.Marshal(payload{
		Metadata: payloadMetadata{TransmissionTimestamp: transmissionTS, RTTMS: rttMS},
		Events:   events,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal beacon payload: %w", err)
	}
	return body, nil
}

func truncateStrings(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			if len(val) > MaxStringFieldLength {
				val = val[:MaxStringFieldLength]
			}
			out[k] = val
		case map[string]any:
			out[k] = truncateStrings(val)
		default:
			out[k] = v
		}
	}
	return out
}

// EstimateKB returns the serialized size of entries in whole KB,
// rounded up.
func EstimateKB(entries []Entry) int {
	body, err := marshal(entries, 0, 0)
	if err != nil {
		return 0
	}
	return (len(body) + 1023) / 1024
}
