package identity

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/viewtrace/viewtrace/clock"
	"github.com/viewtrace/viewtrace/ids"
)

const (
	keyViewerID     = "viewer_id"
	keySampleNumber = "sample_number"
	keySessionID    = "session_id"
	keySessionStart = "session_start"

	// ViewerTTL is how long the viewer id persists.
	ViewerTTL = 365 * 24 * time.Hour

	// DefaultSessionWindow is the sliding session expiry: the session
	// stays alive as long as reads happen within the window.
	DefaultSessionWindow = 25 * time.Minute
)

// Session is one sliding-window viewer session.
type Session struct {
	ID      string
	Start   int64
	Expires int64
}

// Manager resolves viewer and session identity against a Store,
// regenerating whatever has expired.
type Manager struct {
	store         Store
	clk           clock.TimeProvider
	sessionWindow time.Duration
	randFloat     func() float64
}

// NewManager creates an identity manager. sessionWindow <= 0 selects
// DefaultSessionWindow.
func NewManager(store Store, clk clock.TimeProvider, sessionWindow time.Duration) *Manager {
	if sessionWindow <= 0 {
		sessionWindow = DefaultSessionWindow
	}
	return &Manager{
		store:         store,
		clk:           clk,
		sessionWindow: sessionWindow,
		randFloat:     rand.Float64,
	}
}

// ViewerID returns the persisted viewer id, creating it on first use.
func (m *Manager) ViewerID() string {
	if id, ok := m.store.Get(keyViewerID); ok {
		// Sliding 365-day refresh.
		m.store.Set(keyViewerID, id, ViewerTTL)
		return id
	}
	id := ids.New()
	m.store.Set(keyViewerID, id, ViewerTTL)
	return id
}

// SampleNumber returns the persisted per-viewer sample number in
// [0, 1), used for probabilistic sampling decisions that must be
// stable across views.
func (m *Manager) SampleNumber() float64 {
	if raw, ok := m.store.Get(keySampleNumber); ok {
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	}
	n := m.randFloat()
	m.store.Set(keySampleNumber, strconv.FormatFloat(n, 'f', -1, 64), ViewerTTL)
	return n
}

// Session returns the current session, starting a fresh one if the
// previous session's sliding window has lapsed. Every read extends
// the window.
func (m *Manager) Session() Session {
	now := m.clk.NowUnixMilli()

	id, okID := m.store.Get(keySessionID)
	startRaw, okStart := m.store.Get(keySessionStart)
	start, err := strconv.ParseInt(startRaw, 10, 64)
	if !okID || !okStart || err != nil {
		id = ids.New()
		start = now
	}

	m.store.Set(keySessionID, id, m.sessionWindow)
	m.store.Set(keySessionStart, strconv.FormatInt(start, 10), m.sessionWindow)

	return Session{
		ID:      id,
		Start:   start,
		Expires: now + m.sessionWindow.Milliseconds(),
	}
}
