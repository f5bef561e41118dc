package viewtrace

import (
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/viewtrace/viewtrace/clock"
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/identity"
	"github.com/viewtrace/viewtrace/ids"
	"github.com/viewtrace/viewtrace/tracker"
	"github.com/viewtrace/viewtrace/transport"
	"github.com/viewtrace/viewtrace/viewdata"
)

// noAutoSend: events that never produce a beacon by themselves.
// viewinit/videochange/programchange are lifecycle triggers (their
// beacons are the synthesized viewstart/viewend), seeking beacons are
// forced out by the seeking tracker with its own coalescing, and
// fragmentchange only feeds the program-time anchor.
var noAutoSend = map[string]bool{
	event.ViewInit:             true,
	event.VideoChange:          true,
	event.ProgramChange:        true,
	event.Seeking:              true,
	event.FragmentChange:       true,
	event.PlaybackHeartbeatEnd: true,
}

// payloadPrefixes: event payload keys with these prefixes are merged
// into the accumulator before dispatch.
var payloadPrefixes = []string{
	"video_", "view_", "player_", "page_", "viewer_", "session_",
	"custom_", "experiment_", "ad_", "env_",
}

// Monitor is the view controller for one tracked player: it owns the
// event bus, the metric accumulator, the tracker set, and the beacon
// queue, and serializes all event processing behind one mutex so the
// emission model stays single-threaded no matter which goroutine the
// host engine calls from.
type Monitor struct {
	mu   sync.Mutex
	opts Options

	bus      *event.Bus
	data     *viewdata.Data
	queue    *transport.Queue
	identity *identity.Manager
	trackers []tracker.Tracker
	log      *log.Entry

	tracking bool // false: do-not-track, no beacons ever
	sampled  bool // false: sampled out, no beacons this player

	viewActive bool
	viewEnded  bool // ignore events until the next videochange
	viewSeq    int64
	playerSeq  int64

	lastBeacon   map[string]any
	lastBeaconAt int64
	hadBeacon    bool
	rateLimited  bool

	destroyed bool
}

// NewMonitor builds a monitor from opts. The returned monitor is idle
// until the first viewinit (or videochange) event.
func NewMonitor(opts Options) *Monitor {
	opts = opts.withDefaults()

	m := &Monitor{
		opts:     opts,
		bus:      event.NewBus(),
		data:     viewdata.New(),
		identity: identity.NewManager(opts.Store, opts.Clock, 0),
		log:      opts.Log,
		tracking: !(opts.RespectDoNotTrack && opts.DoNotTrack),
	}

	m.queue = transport.NewQueue(transport.Config{
		URL:            opts.beaconURL(),
		Sender:         opts.Sender,
		FinalSender:    opts.FinalSender,
		Clock:          opts.Clock,
		Scheduler:      opts.Scheduler,
		MaxQueueLength: opts.MaxQueueLength,
		MaxBeaconSize:  opts.MaxBeaconSize,
		MaxPayloadKB:   opts.MaxPayloadKB,
		BaseInterval:   opts.BaseBeaconInterval,
		Metrics:        opts.Metrics,
	})

	m.sampled = m.identity.SampleNumber() < opts.sampleRate()
	if !m.tracking {
		m.log.Info("do-not-track set, beacons disabled")
	} else if !m.sampled {
		m.log.WithField("sample_rate", opts.sampleRate()).
			Debug("player sampled out, beacons disabled")
	}

	// Trackers never see the raw scheduler: their timer callbacks
	// emit, so they must hold the monitor mutex like any host call.
	core := tracker.Core{
		Bus:       m.bus,
		Data:      m.data,
		Clock:     opts.Clock,
		Scheduler: &lockedScheduler{m: m, inner: opts.Scheduler},
		Emitter:   (*monitorEmitter)(m),
		Log:       m.log,
	}

	// Registration order is a contract: the playhead must be current
	// before anything reads it, the heartbeat before anything samples
	// on beats, watch time before the rebuffer ratios.
	m.trackers = append(m.trackers,
		tracker.NewPlayhead(core, opts.GetPlayheadTime),
		tracker.NewSleep(core, 0, 0, true),
	)
	hb := tracker.NewHeartbeat(core, opts.PlaybackHeartbeatTime)
	m.trackers = append(m.trackers, hb, tracker.NewWatchTime(core))
	if !opts.DisableRebufferTracking {
		m.trackers = append(m.trackers,
			tracker.NewRebuffer(core, opts.RebufferAbandonThreshold))
	}
	if !opts.DisableRebufferTracking && !opts.DisablePlayheadRebufferTracking {
		m.trackers = append(m.trackers,
			tracker.NewPlayheadRebuffer(core, hb,
				opts.SustainedRebufferThreshold, opts.MinimumRebufferDuration))
	}
	m.trackers = append(m.trackers,
		tracker.NewSeeking(core, 0),
		tracker.NewAds(core),
		tracker.NewPlaybackTime(core),
		tracker.NewStartup(core),
		tracker.NewRequests(core),
		tracker.NewErrors(core, opts.ErrorTranslator),
	)

	return m
}

// Emit feeds one event into the pipeline. Safe to call from any
// goroutine; events are processed in call order under one lock.
func (m *Monitor) Emit(typ string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.emitLocked(typ, data, m.opts.Clock.NowUnixMilli())
}

// Send forces a beacon for typ out of normal batching.
func (m *Monitor) Send(typ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.sendLocked(typ)
}

// Destroy ends the current view, flushes the queue best-effort, and
// detaches every tracker. The monitor is unusable afterwards.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	if m.viewActive {
		m.emitLocked(event.ViewEnd, nil, m.opts.Clock.NowUnixMilli())
	}
	m.destroyed = true
	for _, t := range m.trackers {
		t.Stop()
	}
	m.queue.Destroy(true)
}

// lockedScheduler wraps the configured scheduler for tracker use:
// each callback takes the monitor mutex before running, so a timer
// goroutine serializes with host Emit calls instead of racing them.
type lockedScheduler struct {
	m     *Monitor
	inner clock.Scheduler
}

func (s *lockedScheduler) After(d time.Duration, fn func()) clock.CancelFunc {
	return s.inner.After(d, s.locked(fn))
}

func (s *lockedScheduler) Every(d time.Duration, fn func()) clock.CancelFunc {
	return s.inner.Every(d, s.locked(fn))
}

func (s *lockedScheduler) locked(fn func()) func() {
	return func() {
		s.m.mu.Lock()
		defer s.m.mu.Unlock()
		// A callback can already be waiting on the mutex while
		// Destroy cancels its timer.
		if s.m.destroyed {
			return
		}
		fn()
	}
}

// monitorEmitter is the tracker-facing surface. Trackers only run
// inside emitLocked's dispatch or under a lockedScheduler callback,
// so these entry points must not re-acquire the mutex.
type monitorEmitter Monitor

func (e *monitorEmitter) Emit(typ string, data map[string]any) {
	m := (*Monitor)(e)
	m.emitLocked(typ, data, m.opts.Clock.NowUnixMilli())
}

func (e *monitorEmitter) EmitAt(typ string, data map[string]any, viewerTime int64) {
	(*Monitor)(e).emitLocked(typ, data, viewerTime)
}

func (e *monitorEmitter) Send(typ string) {
	(*Monitor)(e).sendLocked(typ)
}

func (e *monitorEmitter) RestartView() {
	m := (*Monitor)(e)
	m.log.Info("long resume detected, restarting view")
	now := m.opts.Clock.NowUnixMilli()

	// Same content continues in the new view, so the video metadata
	// survives the reset.
	video := make(map[string]any)
	for k, v := range m.data.Snapshot() {
		if strings.HasPrefix(k, "video_") {
			video[k] = v
		}
	}
	if m.viewActive {
		m.emitLocked(event.ViewEnd, nil, now)
	}
	m.startViewLocked(now, video)
}

func (m *Monitor) emitLocked(typ string, data map[string]any, viewerTime int64) {
	if typ, data = m.translateEmit(typ, data); typ == "" {
		return
	}

	switch typ {
	case event.VideoChange, event.ProgramChange:
		if m.viewActive {
			m.emitLocked(event.ViewEnd, nil, viewerTime)
		}
		m.startViewLocked(viewerTime, data)
	case event.ViewInit:
		if m.viewActive {
			m.log.Warn("viewinit while a view is active, restarting")
			m.emitLocked(event.ViewEnd, nil, viewerTime)
		}
		// startViewLocked dispatches the viewinit reset itself.
		m.startViewLocked(viewerTime, data)
		return
	default:
		if m.viewEnded {
			return
		}
	}

	m.mergePayload(data)
	m.mergeStateData()
	if event.IsAdEvent(typ) && m.opts.GetAdData != nil {
		m.mergePrefixed(m.opts.GetAdData())
	}

	// request_* payload fields ride only the beacon of their own
	// event (headers, hostname, byte counts); they are scrubbed once
	// it is out so they never bleed into later beacons.
	var requestKeys []string
	if event.IsRequestEvent(typ) {
		for k, v := range data {
			if strings.HasPrefix(k, "request_") {
				m.data.Set(k, v)
				requestKeys = append(requestKeys, k)
			}
		}
	}

	ev := event.Event{Type: typ, ViewerTime: viewerTime, Data: data}
	m.bus.EmitMain(ev)
	if !noAutoSend[typ] && !strings.HasPrefix(typ, event.AfterPrefix) {
		m.queueBeaconLocked(typ, viewerTime)
	}
	m.bus.EmitAfter(ev)

	for _, k := range requestKeys {
		m.data.Delete(k)
	}

	if typ == event.ViewEnd {
		m.viewActive = false
		m.viewEnded = true
		m.data.Delete(viewdata.ViewID)
		m.queue.FlushEvents(false)
	}
}

func (m *Monitor) sendLocked(typ string) {
	m.queueBeaconLocked(typ, m.opts.Clock.NowUnixMilli())
	m.queue.FlushEvents(false)
}

func (m *Monitor) startViewLocked(viewerTime int64, carry map[string]any) {
	m.data.ResetView()
	m.mergePrefixed(carry)
	m.viewSeq = 0
	m.viewActive = true
	m.viewEnded = false
	m.lastBeacon = nil
	m.hadBeacon = false

	m.data.Set(viewdata.ViewID, ids.New())
	m.data.Set(viewdata.ViewStart, viewerTime)
	if m.opts.EnvKey != "" {
		m.data.Set(viewdata.EnvKey, m.opts.EnvKey)
	}

	m.data.Set(viewdata.ViewerID, m.identity.ViewerID())
	m.data.Set(viewdata.ViewerSampleNumber, m.identity.SampleNumber())
	sess := m.identity.Session()
	m.data.Set(viewdata.SessionID, sess.ID)
	m.data.Set(viewdata.SessionStart, sess.Start)
	m.data.Set(viewdata.SessionExpires, sess.Expires)

	// Every tracker resets on viewinit; it carries no beacon of its
	// own, the synthesized viewstart right after does.
	m.bus.Emit(event.Event{Type: event.ViewInit, ViewerTime: viewerTime})
	m.emitLocked(event.ViewStart, nil, viewerTime)
}

// queueBeaconLocked snapshots the accumulator, diffs it against the
// previous beacon of this view, abbreviates the keys, and queues it.
func (m *Monitor) queueBeaconLocked(typ string, viewerTime int64) {
	if !m.tracking || !m.sampled {
		return
	}

	m.playerSeq++
	m.viewSeq++
	m.data.Set(viewdata.PlayerSequenceNumber, m.playerSeq)
	m.data.Set(viewdata.ViewSequenceNumber, m.viewSeq)

	snapshot := m.data.Snapshot()
	snapshot[viewdata.ViewerTime] = viewerTime

	full := !m.hadBeacon ||
		typ == event.ViewStart || typ == event.ViewEnd ||
		viewerTime-m.lastBeaconAt > m.opts.staleDiffThreshold().Milliseconds()

	fields := snapshot
	if !full {
		fields = viewdata.Diff(m.lastBeacon, snapshot, typ)
	}
	m.lastBeacon = snapshot
	m.lastBeaconAt = viewerTime
	m.hadBeacon = true

	entry := transport.Entry{Type: typ, Fields: viewdata.ShortenFields(fields)}
	if m.queue.QueueEvent(entry) {
		m.rateLimited = false
		return
	}
	if typ == event.EventRateExceeded || m.rateLimited {
		return
	}
	// One marker per rate-limited stretch; it is always accepted.
	m.rateLimited = true
	m.log.Warn("beacon queue rate limited, dropping events")
	m.queue.QueueEvent(transport.Entry{
		Type:   event.EventRateExceeded,
		Fields: viewdata.ShortenFields(map[string]any{viewdata.ViewerTime: viewerTime}),
	})
}

func (m *Monitor) translateEmit(typ string, data map[string]any) (string, map[string]any) {
	if m.opts.EmitTranslator == nil {
		return typ, data
	}
	outTyp, outData, ok := typ, data, true
	func() {
		defer func() {
			if r := recover(); r != nil {
				m.log.WithField("panic", r).Warn("emit translator panicked, passing event through")
				outTyp, outData = typ, data
			}
		}()
		outTyp, outData, ok = m.opts.EmitTranslator(typ, data)
	}()
	if !ok {
		return "", nil
	}
	return outTyp, outData
}

func (m *Monitor) mergeStateData() {
	if m.opts.GetStateData == nil {
		return
	}
	state := m.opts.GetStateData()
	if m.opts.StateDataTranslator != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.WithField("panic", r).Warn("state data translator panicked, using raw state")
				}
			}()
			state = m.opts.StateDataTranslator(state)
		}()
	}
	m.mergePrefixed(state)
}

func (m *Monitor) mergePayload(data map[string]any) {
	m.mergePrefixed(data)
}

func (m *Monitor) mergePrefixed(fields map[string]any) {
	for k, v := range fields {
		for _, prefix := range payloadPrefixes {
			if strings.HasPrefix(k, prefix) {
				m.data.Set(k, v)
				break
			}
		}
	}
}
