// Package viewtrace is a playback analytics engine: it observes a
// media player through engine adapters, derives a normalized stream
// of playback lifecycle events, aggregates per-view metrics (watch
// time, rebuffering, startup latency, request throughput), and ships
// them to a collector endpoint in batched, key-abbreviated beacons
// with backoff and deduplication.
//
// The Monitor is the per-player entry point; a Registry keeps one
// Monitor per tracked player. Events flow:
//
//	engine -> adapter -> Monitor.Emit -> event.Bus -> trackers
//	       -> viewdata.Data snapshots -> transport.Queue -> collector
//
// All processing for one Monitor is serialized, so trackers can
// share the accumulator without locking.
package viewtrace
