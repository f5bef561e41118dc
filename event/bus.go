package event

import (
	log "github.com/sirupsen/logrus"
)

// BeforeAny is the reserved subscription type whose listeners run
// before the type-specific listeners of every emitted event.
const BeforeAny = "before*"

// AfterPrefix registers a listener for the post-dispatch phase of one
// event type: listeners under "after"+type run after the type's own
// listeners. The error tracker uses "aftererror" to scrub error
// fields once the error beacon has been queued.
const AfterPrefix = "after"

// Listener receives dispatched events.
type Listener func(Event)

// Subscription identifies one registered listener so it can be
// removed. Returned by On and One.
type Subscription struct {
	typ     string
	fn      Listener
	once    bool
	removed bool
}

// Bus is a synchronous, re-entrant publish/subscribe hub. Dispatch is
// single-threaded: the owning view controller serializes all calls.
// Listeners run in registration order; a panicking listener is logged
// and does not abort dispatch to the remaining listeners.
type Bus struct {
	listeners map[string][]*Subscription
	log       *log.Entry
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[string][]*Subscription),
		log:       log.WithField("prefix", "bus"),
	}
}

// On registers a listener for one event type (or BeforeAny /
// AfterPrefix+type phases).
func (b *Bus) On(typ string, fn Listener) *Subscription {
	sub := &Subscription{typ: typ, fn: fn}
	b.listeners[typ] = append(b.listeners[typ], sub)
	return sub
}

// One registers a listener that unsubscribes itself after its first
// invocation.
func (b *Bus) One(typ string, fn Listener) *Subscription {
	sub := &Subscription{typ: typ, fn: fn, once: true}
	b.listeners[typ] = append(b.listeners[typ], sub)
	return sub
}

// Off removes a subscription. Removing an already-removed
// subscription is a no-op.
func (b *Bus) Off(sub *Subscription) {
	if sub == nil || sub.removed {
		return
	}
	sub.removed = true
	subs := b.listeners[sub.typ]
	for i, s := range subs {
		if s == sub {
			b.listeners[sub.typ] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// Emit dispatches ev to BeforeAny listeners, then the type's
// listeners, then "after"+type listeners, all in registration order.
// The listener list for each phase is snapshotted before iterating,
// so listeners added or removed during dispatch take effect on the
// next emit, and nested Emit calls are safe.
func (b *Bus) Emit(ev Event) {
	b.EmitMain(ev)
	b.EmitAfter(ev)
}

// EmitMain dispatches only the BeforeAny and type-specific phases.
// The view controller uses the split phases so the after-phase runs
// once the event's beacon has been queued.
func (b *Bus) EmitMain(ev Event) {
	b.dispatch(BeforeAny, ev)
	b.dispatch(ev.Type, ev)
}

// EmitAfter dispatches the "after"+type phase.
func (b *Bus) EmitAfter(ev Event) {
	b.dispatch(AfterPrefix+ev.Type, ev)
}

func (b *Bus) dispatch(typ string, ev Event) {
	subs := b.listeners[typ]
	if len(subs) == 0 {
		return
	}
	snapshot := make([]*Subscription, len(subs))
	copy(snapshot, subs)

	for _, sub := range snapshot {
		if sub.removed {
			continue
		}
		if sub.once {
			b.Off(sub)
		}
		b.invoke(sub, ev)
	}
}

func (b *Bus) invoke(sub *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(log.Fields{
				"event": ev.Type,
				"panic": r,
			}).Error("listener panicked during dispatch")
		}
	}()
	sub.fn(ev)
}
