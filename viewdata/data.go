// Package viewdata holds the mutable metric accumulator shared by all
// trackers, the wire-key abbreviation dictionary, and the per-view
// beacon field deduplication.
package viewdata

import (
	"strings"

	"golang.org/x/exp/maps"
)

// Data is the per-player metric accumulator: a key/value superset of
// the current view's fields plus player- and page-level static
// fields. The view controller owns it exclusively; trackers receive a
// reference and mutate in place. All access is serialized by the view
// controller, so no locking happens here.
type Data struct {
	m map[string]any
}

// New creates an empty accumulator.
func New() *Data {
	return &Data{m: make(map[string]any)}
}

// Set stores a field. A nil value removes it.
func (d *Data) Set(key string, value any) {
	if value == nil {
		delete(d.m, key)
		return
	}
	d.m[key] = value
}

// Get returns a field value.
func (d *Data) Get(key string) (any, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Delete removes fields.
func (d *Data) Delete(keys ...string) {
	for _, k := range keys {
		delete(d.m, k)
	}
}

// GetInt64 returns a numeric field as int64, 0 when unset.
func (d *Data) GetInt64(key string) int64 {
	switch v := d.m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetFloat64 returns a numeric field as float64, 0 when unset.
func (d *Data) GetFloat64(key string) float64 {
	switch v := d.m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// GetString returns a string field, "" when unset.
func (d *Data) GetString(key string) string {
	s, _ := d.m[key].(string)
	return s
}

// GetBool returns a bool field, false when unset.
func (d *Data) GetBool(key string) bool {
	b, _ := d.m[key].(bool)
	return b
}

// Has reports whether a field is set.
func (d *Data) Has(key string) bool {
	_, ok := d.m[key]
	return ok
}

// Inc adds delta to an integer counter, creating it at delta.
func (d *Data) Inc(key string, delta int64) {
	d.m[key] = d.GetInt64(key) + delta
}

// IncFloat adds delta to a float field, creating it at delta.
func (d *Data) IncFloat(key string, delta float64) {
	d.m[key] = d.GetFloat64(key) + delta
}

// SetMax stores value only if it exceeds the current value, creating
// the field on first call.
func (d *Data) SetMax(key string, value float64) {
	if !d.Has(key) || value > d.GetFloat64(key) {
		d.m[key] = value
	}
}

// SetMin stores value only if it is below the current value, creating
// the field on first call.
func (d *Data) SetMin(key string, value float64) {
	if !d.Has(key) || value < d.GetFloat64(key) {
		d.m[key] = value
	}
}

// Snapshot returns a shallow copy of all fields.
func (d *Data) Snapshot() map[string]any {
	return maps.Clone(d.m)
}

// ResetView clears everything view-scoped (view_*, video_*, ad_* and
// the error fields) while preserving player-, viewer-, session- and
// page-level fields. Called on viewinit.
func (d *Data) ResetView() {
	for k := range d.m {
		if strings.HasPrefix(k, "view_") || strings.HasPrefix(k, "video_") || strings.HasPrefix(k, "ad_") {
			delete(d.m, k)
		}
	}
	d.Delete(ErrorKeys...)
}

// Len returns the number of fields set.
func (d *Data) Len() int {
	return len(d.m)
}
