package viewtrace

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registry maps player ids to their monitors. It replaces ambient
// global state: the application owns one registry and passes it where
// needed.
type Registry struct {
	mu       sync.Mutex
	monitors map[string]*Monitor
	log      *log.Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		monitors: make(map[string]*Monitor),
		log:      log.WithField("prefix", "viewtrace-registry"),
	}
}

// Monitor starts monitoring the player identified by id. Monitoring
// the same player twice is a usage error: it is logged and the
// existing monitor is returned rather than double-tracking.
func (r *Registry) Monitor(id string, opts Options) *Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.monitors[id]; ok {
		r.log.WithField("player_id", id).Warn("player already monitored, reusing existing monitor")
		return existing
	}
	m := NewMonitor(opts)
	r.monitors[id] = m
	return m
}

// Get returns the monitor for id, if any.
func (r *Registry) Get(id string) (*Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[id]
	return m, ok
}

// Stop destroys the monitor for id and forgets it. Unknown ids are a
// no-op.
func (r *Registry) Stop(id string) {
	r.mu.Lock()
	m, ok := r.monitors[id]
	delete(r.monitors, id)
	r.mu.Unlock()
	if ok {
		m.Destroy()
	}
}

// StopAll destroys every monitor.
func (r *Registry) StopAll() {
	r.mu.Lock()
	monitors := r.monitors
	r.monitors = make(map[string]*Monitor)
	r.mu.Unlock()
	for _, m := range monitors {
		m.Destroy()
	}
}
