package viewtrace

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/viewtrace/viewtrace/clock"
	"github.com/viewtrace/viewtrace/identity"
	"github.com/viewtrace/viewtrace/tracker"
	"github.com/viewtrace/viewtrace/transport"
)

// DefaultBeaconURL receives beacons when no collection domain is
// configured.
const DefaultBeaconURL = "https://collector.viewtrace.io/events"

// DefaultStaleDiffThreshold: a beacon this long after the previous
// one for the same view carries a full snapshot instead of a diff.
const DefaultStaleDiffThreshold = 600 * time.Second

// EmitTranslator may rewrite or veto an event before it reaches the
// bus. Returning ok=false drops the event.
type EmitTranslator func(typ string, data map[string]any) (string, map[string]any, bool)

// StateDataTranslator maps the host's raw state snapshot to canonical
// accumulator fields.
type StateDataTranslator func(state map[string]any) map[string]any

// Options configures a Monitor. The zero value is usable: beacons go
// to DefaultBeaconURL over HTTP, identity lives in memory, and all
// thresholds take their documented defaults.
type Options struct {
	// EnvKey identifies the customer environment on every beacon.
	EnvKey string

	// BeaconCollectionDomain routes beacons to
	// https://<domain>/events. BeaconURL overrides it entirely.
	BeaconCollectionDomain string
	BeaconURL              string

	// SampleRate is the probability a view's beacons are shipped at
	// all, in (0, 1]. Zero means 1 (track everything).
	SampleRate float64

	// DoNotTrack is the host-reported viewer preference; it disables
	// all beacon traffic when RespectDoNotTrack is set.
	DoNotTrack        bool
	RespectDoNotTrack bool

	// DisableCookies keeps viewer/session identity out of the
	// persistent store; a fresh in-memory identity is used instead.
	DisableCookies bool

	DisableRebufferTracking         bool
	DisablePlayheadRebufferTracking bool

	// Tracker thresholds; zero selects the documented defaults.
	PlaybackHeartbeatTime      time.Duration
	MinimumRebufferDuration    time.Duration
	SustainedRebufferThreshold time.Duration
	RebufferAbandonThreshold   time.Duration
	StaleDiffThreshold         time.Duration

	// Host capabilities. All optional.
	ErrorTranslator     tracker.ErrorTranslator
	EmitTranslator      EmitTranslator
	StateDataTranslator StateDataTranslator
	GetStateData        func() map[string]any
	GetPlayheadTime     func() (float64, bool)
	GetAdData           func() map[string]any

	// Injected infrastructure; nil selects system implementations.
	Clock       clock.TimeProvider
	Scheduler   clock.Scheduler
	Sender      transport.Sender
	FinalSender transport.Sender
	Store       identity.Store
	Metrics     *transport.Metrics
	Log         *log.Entry

	// Transport tuning; zero selects the transport defaults.
	MaxQueueLength     int
	MaxBeaconSize      int
	MaxPayloadKB       int
	BaseBeaconInterval time.Duration
}

func (o *Options) beaconURL() string {
	if o.BeaconURL != "" {
		return o.BeaconURL
	}
	if o.BeaconCollectionDomain != "" {
		return "https://" + o.BeaconCollectionDomain + "/events"
	}
	return DefaultBeaconURL
}

func (o *Options) sampleRate() float64 {
	if o.SampleRate <= 0 || o.SampleRate > 1 {
		return 1
	}
	return o.SampleRate
}

func (o *Options) staleDiffThreshold() time.Duration {
	if o.StaleDiffThreshold <= 0 {
		return DefaultStaleDiffThreshold
	}
	return o.StaleDiffThreshold
}

// withDefaults fills in system implementations for anything the host
// did not inject.
func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.NewSystemClock()
	}
	if o.Scheduler == nil {
		o.Scheduler = clock.NewSystemScheduler()
	}
	if o.Sender == nil {
		o.Sender = transport.NewHTTPSender(0)
	}
	if o.FinalSender == nil {
		o.FinalSender = transport.NewFireAndForgetSender(o.Sender, 0)
	}
	if o.Store == nil || o.DisableCookies {
		o.Store = identity.NewMemoryStore(o.Clock)
	}
	if o.Log == nil {
		o.Log = log.WithField("prefix", "viewtrace")
	}
	return o
}
