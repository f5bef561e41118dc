package tracker

import (
	log "github.com/sirupsen/logrus"

	"github.com/viewtrace/viewtrace/clock"
	"github.com/viewtrace/viewtrace/event"
	"github.com/viewtrace/viewtrace/viewdata"
)

// harness stands in for the view controller: it assigns viewer times
// from a virtual clock and records forced sends and view restarts.
type harness struct {
	bus      *event.Bus
	clk      *clock.Virtual
	data     *viewdata.Data
	sends    []string
	restarts int

	// every event seen on the bus, for assertions on derived events
	seen []event.Event
}

func newHarness() *harness {
	h := &harness{
		bus:  event.NewBus(),
		clk:  clock.NewVirtual(0),
		data: viewdata.New(),
	}
	h.bus.On(event.BeforeAny, func(ev event.Event) { h.seen = append(h.seen, ev) })
	return h
}

func (h *harness) Emit(typ string, data map[string]any) {
	h.EmitAt(typ, data, h.clk.NowUnixMilli())
}

func (h *harness) EmitAt(typ string, data map[string]any, viewerTime int64) {
	h.bus.Emit(event.Event{Type: typ, ViewerTime: viewerTime, Data: data})
}

func (h *harness) Send(typ string) {
	h.sends = append(h.sends, typ)
}

func (h *harness) RestartView() {
	h.restarts++
}

func (h *harness) core() Core {
	return Core{
		Bus:       h.bus,
		Data:      h.data,
		Clock:     h.clk,
		Scheduler: h.clk,
		Emitter:   h,
		Log:       log.WithField("prefix", "tracker-test"),
	}
}

func (h *harness) countSeen(typ string) int {
	n := 0
	for _, ev := range h.seen {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (h *harness) lastSeen(typ string) (event.Event, bool) {
	for i := len(h.seen) - 1; i >= 0; i-- {
		if h.seen[i].Type == typ {
			return h.seen[i], true
		}
	}
	return event.Event{}, false
}
