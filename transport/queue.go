package transport

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/viewtrace/viewtrace/clock"
	"github.com/viewtrace/viewtrace/event"
)

const (
	// DefaultMaxQueueLength caps the number of queued events; beyond
	// it new events are dropped and the caller is told it was rate
	// limited.
	DefaultMaxQueueLength = 3600

	// DefaultMaxBeaconSize is the maximum events per POST.
	DefaultMaxBeaconSize = 300

	// DefaultMaxPayloadKB is the serialized payload cap per POST.
	DefaultMaxPayloadKB = 500

	// DefaultBaseInterval is the base delay between beacon sends.
	DefaultBaseInterval = 10 * time.Second

	// markerQueueTruncated annotates the first surviving event after
	// an immediate destroy dropped older queued events.
	markerQueueTruncated = "b_queue_truncated"
)

// trivialTypes are not worth a dedicated beacon: a flush on teardown
// with exactly one of these queued drops it instead of sending.
var trivialTypes = map[string]bool{
	event.PlaybackHeartbeat: true,
	event.Heartbeat:         true,
	event.TimeUpdate:        true,
}

// Config configures a beacon Queue. Zero values select the defaults
// above.
type Config struct {
	URL         string
	Sender      Sender
	FinalSender Sender // destroy path; falls back to Sender
	Clock       clock.TimeProvider
	Scheduler   clock.Scheduler

	MaxQueueLength int
	MaxBeaconSize  int
	MaxPayloadKB   int
	BaseInterval   time.Duration

	// Rand supplies jitter for the backoff delay; defaults to
	// rand.Float64. Injectable for tests.
	Rand func() float64

	Metrics *Metrics
}

// Queue is the per-destination beacon state machine: an ordered event
// queue, a self-rescheduling send timer with jittered exponential
// backoff, and at most one POST in flight. Failed batches are
// re-prepended so FIFO order survives retries.
type Queue struct {
	mu  sync.Mutex
	cfg Config
	log *log.Entry

	events          []Entry
	postInFlight    bool
	resendAfterPost bool
	failureCount    int
	lastRTT         int64

	timerCancel clock.CancelFunc
	destroyed   bool
}

// NewQueue creates a queue and arms its send timer.
func NewQueue(cfg Config) *Queue {
	if cfg.MaxQueueLength <= 0 {
		cfg.MaxQueueLength = DefaultMaxQueueLength
	}
	if cfg.MaxBeaconSize <= 0 {
		cfg.MaxBeaconSize = DefaultMaxBeaconSize
	}
	if cfg.MaxPayloadKB <= 0 {
		cfg.MaxPayloadKB = DefaultMaxPayloadKB
	}
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = DefaultBaseInterval
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.FinalSender == nil {
		cfg.FinalSender = cfg.Sender
	}
	q := &Queue{
		cfg: cfg,
		log: log.WithField("prefix", "transport"),
	}
	q.mu.Lock()
	q.scheduleLocked()
	q.mu.Unlock()
	return q
}

// QueueEvent appends an event. It returns false when the queue is at
// capacity and the event was dropped; the synthetic
// eventrateexceeded marker is always accepted.
func (q *Queue) QueueEvent(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return false
	}
	if len(q.events) >= q.cfg.MaxQueueLength && e.Type != event.EventRateExceeded {
		q.gaugeLocked()
		return false
	}
	q.events = append(q.events, e)
	q.gaugeLocked()
	return true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// FailureCount returns the consecutive send failure count.
func (q *Queue) FailureCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failureCount
}

// NextDelay returns the delay the timer uses for the next send cycle:
// the base interval, scaled by 1 + rand()*2^(failureCount-1) while
// sends are failing. Growth is uncapped but resets on one success.
func (q *Queue) NextDelay() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delayLocked()
}

func (q *Queue) delayLocked() time.Duration {
	if q.failureCount <= 0 {
		return q.cfg.BaseInterval
	}
	scale := 1 + q.cfg.Rand()*math.Pow(2, float64(q.failureCount-1))
	return time.Duration(float64(q.cfg.BaseInterval) * scale)
}

func (q *Queue) scheduleLocked() {
	if q.destroyed {
		return
	}
	q.timerCancel = q.cfg.Scheduler.After(q.delayLocked(), q.tick)
}

func (q *Queue) tick() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return
	}
	q.sendLocked(q.cfg.Sender)
	q.scheduleLocked()
}

// FlushEvents sends whatever is queued now instead of waiting for the
// timer. With immediate=true and exactly one trivial event queued,
// the event is dropped instead of sent.
func (q *Queue) FlushEvents(immediate bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return
	}
	if immediate && len(q.events) == 1 && trivialTypes[q.events[0].Type] {
		q.events = q.events[:0]
		q.gaugeLocked()
		return
	}
	q.sendLocked(q.cfg.Sender)
}

// Destroy cancels the timer and performs a final flush. With
// immediate=true, everything except the most recent MaxBeaconSize
// events is dropped (the first survivor is annotated with a queue
// truncation marker) and one best-effort send goes out over the
// final-dispatch sender.
func (q *Queue) Destroy(immediate bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return
	}
	if q.timerCancel != nil {
		q.timerCancel()
		q.timerCancel = nil
	}
	if immediate {
		if dropped := len(q.events) - q.cfg.MaxBeaconSize; dropped > 0 {
			q.log.WithField("dropped", dropped).Warn("dropping queued events on immediate destroy")
			q.events = q.events[dropped:]
			if len(q.events) > 0 {
				annotated := make(map[string]any, len(q.events[0].Fields)+1)
				for k, v := range q.events[0].Fields {
					annotated[k] = v
				}
				annotated[markerQueueTruncated] = dropped
				q.events[0] = Entry{Type: q.events[0].Type, Fields: annotated}
			}
		}
		q.sendLocked(q.cfg.FinalSender)
	} else {
		q.sendLocked(q.cfg.Sender)
	}
	q.destroyed = true
}

// sendLocked starts one POST for up to MaxBeaconSize queued events.
// If a POST is already in flight the request is deferred and runs as
// soon as the in-flight one resolves.
func (q *Queue) sendLocked(sender Sender) {
	if len(q.events) == 0 {
		return
	}
	if q.postInFlight {
		q.resendAfterPost = true
		return
	}

	n := len(q.events)
	if n > q.cfg.MaxBeaconSize {
		n = q.cfg.MaxBeaconSize
	}
	batch := q.events[:n:n]
	q.events = q.events[n:]
	q.gaugeLocked()

	now := q.cfg.Clock.NowUnixMilli()
	body, kept, err := BuildPayload(batch, now, q.lastRTT, q.cfg.MaxPayloadKB)
	if err != nil {
		// Serialization failure is not retryable; the batch is lost.
		q.log.WithError(err).Error("failed to serialize beacon batch")
		return
	}

	q.postInFlight = true
	url := q.cfg.URL
	go func() {
		start := q.cfg.Clock.NowUnixMilli()
		sendErr := sender.Send(context.Background(), url, body)
		rtt := q.cfg.Clock.NowUnixMilli() - start
		q.completeSend(kept, sendErr, rtt)
	}()
}

func (q *Queue) completeSend(batch []Entry, sendErr error, rtt int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.postInFlight = false

	if sendErr != nil {
		q.failureCount++
		// Preserve FIFO order: the failed batch goes back in front of
		// anything queued while the POST was in flight.
		q.events = append(batch, q.events...)
		q.gaugeLocked()
		if q.cfg.Metrics != nil {
			q.cfg.Metrics.Failed.Inc()
		}
		q.log.WithError(sendErr).WithField("failures", q.failureCount).
			Warn("beacon send failed, batch requeued")
	} else {
		q.failureCount = 0
		q.lastRTT = rtt
		if q.cfg.Metrics != nil {
			q.cfg.Metrics.Sent.Add(float64(len(batch)))
			q.cfg.Metrics.RTT.Observe(float64(rtt) / 1000)
		}
	}

	if q.resendAfterPost && !q.destroyed {
		q.resendAfterPost = false
		q.sendLocked(q.cfg.Sender)
	}
}

func (q *Queue) gaugeLocked() {
	if q.cfg.Metrics != nil {
		q.cfg.Metrics.QueueLength.Set(float64(len(q.events)))
	}
}
