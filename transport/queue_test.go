package transport

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/viewtrace/viewtrace/clock"
	"github.com/viewtrace/viewtrace/event"
)

// fakeSender records every payload and fails while failErr is set.
type fakeSender struct {
	mu      sync.Mutex
	bodies  [][]byte
	failErr error
	done    chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{done: make(chan struct{}, 128)}
}

func (f *fakeSender) Send(_ context.Context, _ string, body []byte) error {
	f.mu.Lock()
	err := f.failErr
	if err == nil {
		f.bodies = append(f.bodies, body)
	}
	f.mu.Unlock()
	f.done <- struct{}{}
	return err
}

func (f *fakeSender) setFail(err error) {
	f.mu.Lock()
	f.failErr = err
	f.mu.Unlock()
}

func (f *fakeSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

// waitFor polls cond until it holds or the deadline lapses.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func testQueue(sender Sender, maxQueue, maxBeacon int) (*Queue, *clock.Virtual) {
	clk := clock.NewVirtual(0)
	q := NewQueue(Config{
		URL:            "http://collector.test/events",
		Sender:         sender,
		Clock:          clk,
		Scheduler:      clk,
		MaxQueueLength: maxQueue,
		MaxBeaconSize:  maxBeacon,
		Rand:           func() float64 { return 1 },
	})
	return q, clk
}

func entry(typ string) Entry {
	return Entry{Type: typ, Fields: map[string]any{"x_id": "view-1"}}
}

func TestQueueEventRateLimit(t *testing.T) {
	q, _ := testQueue(newFakeSender(), 3, 300)
	defer q.Destroy(false)

	for i := 0; i < 3; i++ {
		if !q.QueueEvent(entry(event.Play)) {
			t.Fatalf("expected event %d to queue", i)
		}
	}
	if q.QueueEvent(entry(event.Play)) {
		t.Fatal("expected queue at capacity to report rate limited")
	}
	if q.Len() != 3 {
		t.Fatalf("queue length = %d, want 3", q.Len())
	}

	// The synthetic marker is always accepted.
	if !q.QueueEvent(entry(event.EventRateExceeded)) {
		t.Fatal("eventrateexceeded must always be accepted")
	}
	if q.Len() != 4 {
		t.Fatalf("queue length = %d, want 4", q.Len())
	}
}

func TestTimerSendsBatches(t *testing.T) {
	s := newFakeSender()
	q, clk := testQueue(s, 0, 300)
	defer q.Destroy(false)

	q.QueueEvent(entry(event.ViewStart))
	q.QueueEvent(entry(event.Play))

	clk.Advance(DefaultBaseInterval)
	waitFor(t, func() bool { return s.sent() == 1 && q.Len() == 0 })

	var p struct {
		Metadata struct {
			TransmissionTimestamp int64 `json:"transmission_timestamp"`
		} `json:"metadata"`
		Events []map[string]any `json:"events"`
	}
	if err := sonic.Unmarshal(s.bodies[0], &p); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if len(p.Events) != 2 {
		t.Fatalf("expected 2 events in batch, got %d", len(p.Events))
	}
	if p.Events[0]["e"] != event.ViewStart || p.Events[1]["e"] != event.Play {
		t.Fatalf("batch order lost: %v", p.Events)
	}
}

func TestBackoffGrowsAndResets(t *testing.T) {
	s := newFakeSender()
	s.setFail(context.DeadlineExceeded)
	q, _ := testQueue(s, 0, 300)
	defer q.Destroy(false)

	q.QueueEvent(entry(event.ViewStart))

	prev := q.NextDelay()
	if prev != DefaultBaseInterval {
		t.Fatalf("initial delay = %v, want base", prev)
	}

	// Drive consecutive failures; with Rand pinned at 1 the delay is
	// base * (1 + 2^(n-1)) and must be non-decreasing.
	for i := 1; i <= 4; i++ {
		q.FlushEvents(false)
		<-s.done
		waitFor(t, func() bool { return q.FailureCount() == i })
		d := q.NextDelay()
		if d < prev {
			t.Fatalf("delay decreased under failures: %v -> %v", prev, d)
		}
		prev = d
	}
	if prev <= DefaultBaseInterval {
		t.Fatalf("expected backed-off delay above base, got %v", prev)
	}

	// The failed batch stays queued the whole time.
	if q.Len() != 1 {
		t.Fatalf("failed batch must remain queued, len = %d", q.Len())
	}

	// One success resets the backoff to the base delay.
	s.setFail(nil)
	q.FlushEvents(false)
	<-s.done
	waitFor(t, func() bool { return q.FailureCount() == 0 && q.Len() == 0 })
	if d := q.NextDelay(); d != DefaultBaseInterval {
		t.Fatalf("delay after success = %v, want base", d)
	}
}

func TestFailedBatchRePrependedInOrder(t *testing.T) {
	s := newFakeSender()
	s.setFail(context.DeadlineExceeded)
	q, clk := testQueue(s, 0, 300)
	defer q.Destroy(false)

	q.QueueEvent(entry(event.ViewStart))
	clk.Advance(DefaultBaseInterval)
	<-s.done
	waitFor(t, func() bool { return q.FailureCount() == 1 })

	// An event queued after the failure must end up behind the
	// requeued batch.
	q.QueueEvent(entry(event.Pause))

	s.setFail(nil)
	q.FlushEvents(false)
	waitFor(t, func() bool { return s.sent() == 1 })

	var p struct {
		Events []map[string]any `json:"events"`
	}
	if err := sonic.Unmarshal(s.bodies[0], &p); err != nil {
		t.Fatal(err)
	}
	if len(p.Events) != 2 || p.Events[0]["e"] != event.ViewStart || p.Events[1]["e"] != event.Pause {
		t.Fatalf("FIFO order lost across retry: %v", p.Events)
	}
}

func TestSingleInFlightAndResendAfterPost(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	inFlight, maxInFlight, sends := 0, 0, 0

	blocking := senderFunc(func(context.Context, string, []byte) error {
		mu.Lock()
		inFlight++
		sends++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		<-block
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	q, _ := testQueue(blocking, 0, 300)
	defer q.Destroy(false)

	q.QueueEvent(entry(event.ViewStart))
	q.FlushEvents(false)
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return sends == 1 })

	// Second flush while a POST is in flight must defer, not start a
	// concurrent POST.
	q.QueueEvent(entry(event.Pause))
	q.FlushEvents(false)
	mu.Lock()
	if maxInFlight != 1 || sends != 1 {
		mu.Unlock()
		t.Fatalf("expected a single in-flight POST, got inflight=%d sends=%d", maxInFlight, sends)
	}
	mu.Unlock()

	// Releasing the in-flight POST triggers the deferred one.
	block <- struct{}{}
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return sends == 2 })
	block <- struct{}{}
	waitFor(t, func() bool { return q.Len() == 0 })

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight != 1 {
		t.Fatalf("max concurrent POSTs = %d, want 1", maxInFlight)
	}
}

type senderFunc func(context.Context, string, []byte) error

func (f senderFunc) Send(ctx context.Context, url string, body []byte) error {
	return f(ctx, url, body)
}

func TestFlushImmediateDropsSingleTrivialEvent(t *testing.T) {
	s := newFakeSender()
	q, _ := testQueue(s, 0, 300)
	defer q.Destroy(false)

	q.QueueEvent(entry(event.PlaybackHeartbeat))
	q.FlushEvents(true)

	if q.Len() != 0 {
		t.Fatalf("expected trivial event to be dropped, len = %d", q.Len())
	}
	if s.sent() != 0 {
		t.Fatal("expected no beacon for a lone heartbeat on immediate flush")
	}

	// A non-trivial single event still goes out.
	q.QueueEvent(entry(event.ViewEnd))
	q.FlushEvents(true)
	waitFor(t, func() bool { return s.sent() == 1 })
}

func TestDestroyImmediateTruncatesQueue(t *testing.T) {
	s := newFakeSender()
	q, _ := testQueue(s, 0, 5)

	for i := 0; i < 17; i++ {
		q.QueueEvent(entry(event.RequestCompleted))
	}
	q.Destroy(true)
	waitFor(t, func() bool { return s.sent() == 1 })

	if q.Len() > 5 {
		t.Fatalf("destroy(true) left %d events queued, want <= 5", q.Len())
	}

	var p struct {
		Events []map[string]any `json:"events"`
	}
	if err := sonic.Unmarshal(s.bodies[0], &p); err != nil {
		t.Fatal(err)
	}
	if len(p.Events) != 5 {
		t.Fatalf("final beacon has %d events, want 5", len(p.Events))
	}
	if _, ok := p.Events[0][markerQueueTruncated]; !ok {
		t.Fatal("first surviving event must carry the truncation marker")
	}

	// The queue refuses work after destroy.
	if q.QueueEvent(entry(event.Play)) {
		t.Fatal("destroyed queue must not accept events")
	}
}

func TestDestroyCancelsTimer(t *testing.T) {
	s := newFakeSender()
	q, clk := testQueue(s, 0, 300)

	q.Destroy(false)
	q.QueueEvent(entry(event.Play))
	clk.Advance(10 * DefaultBaseInterval)

	if s.sent() != 0 {
		t.Fatal("expected no sends after destroy")
	}
}

func TestChainSenderFallsBack(t *testing.T) {
	calls := []string{}
	failing := senderFunc(func(context.Context, string, []byte) error {
		calls = append(calls, "primary")
		return context.DeadlineExceeded
	})
	ok := senderFunc(func(context.Context, string, []byte) error {
		calls = append(calls, "fallback")
		return nil
	})

	chain := ChainSender{failing, ok}
	if err := chain.Send(context.Background(), "http://x", nil); err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if len(calls) != 2 || calls[0] != "primary" || calls[1] != "fallback" {
		t.Fatalf("unexpected call order: %v", calls)
	}
}

func TestPayloadContainsEventTypeKey(t *testing.T) {
	body, kept, err := BuildPayload([]Entry{entry(event.ViewStart)}, 42, 7, 500)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 {
		t.Fatalf("kept = %d, want 1", len(kept))
	}
	raw := string(body)
	if !strings.Contains(raw, `"transmission_timestamp":42`) || !strings.Contains(raw, `"rtt_ms":7`) {
		t.Fatalf("metadata missing from payload: %s", raw)
	}
}
