// Package event defines the canonical playback event vocabulary and
// the synchronous publish/subscribe bus the trackers hang off of.
package event

// Event is one normalized playback event. Immutable once emitted;
// ViewerTime is assigned at emission time by the view controller, not
// when the event is queued for transport.
type Event struct {
	Type       string
	ViewerTime int64
	Data       map[string]any
}

// Field returns a payload field, or nil when absent.
func (e Event) Field(key string) any {
	if e.Data == nil {
		return nil
	}
	return e.Data[key]
}

// Int64Field returns a numeric payload field as int64.
func (e Event) Int64Field(key string) (int64, bool) {
	switch v := e.Field(key).(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Float64Field returns a numeric payload field as float64.
func (e Event) Float64Field(key string) (float64, bool) {
	switch v := e.Field(key).(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// StringField returns a string payload field.
func (e Event) StringField(key string) (string, bool) {
	s, ok := e.Field(key).(string)
	return s, ok
}

// Canonical event vocabulary. Engine adapters translate native player
// events into these; trackers and the view controller never see
// engine-specific names.
const (
	ViewInit      = "viewinit"
	ViewStart     = "viewstart"
	ViewEnd       = "viewend"
	VideoChange   = "videochange"
	ProgramChange = "programchange"

	PlayerReady = "playerready"
	LoadStart   = "loadstart"
	Play        = "play"
	Playing     = "playing"
	Pause       = "pause"
	Ended       = "ended"
	Seeking     = "seeking"
	Seeked      = "seeked"
	TimeUpdate  = "timeupdate"
	RateChange  = "ratechange"
	Waiting     = "waiting"
	Error       = "error"

	RebufferStart = "rebufferstart"
	RebufferEnd   = "rebufferend"

	RenditionChange  = "renditionchange"
	FragmentChange   = "fragmentchange"
	RequestCompleted = "requestcompleted"
	RequestFailed    = "requestfailed"
	RequestCanceled  = "requestcanceled"

	AdRequest       = "adrequest"
	AdResponse      = "adresponse"
	AdBreakStart    = "adbreakstart"
	AdBreakEnd      = "adbreakend"
	AdPlay          = "adplay"
	AdPlaying       = "adplaying"
	AdPause         = "adpause"
	AdEnded         = "adended"
	AdError         = "aderror"
	AdClicked       = "adclicked"
	AdSkipped       = "adskipped"
	AdFirstQuartile = "adfirstquartile"
	AdMidpoint      = "admidpoint"
	AdThirdQuartile = "adthirdquartile"

	DeviceSleep = "devicesleep"
	DeviceWake  = "devicewake"
	Heartbeat   = "hb"

	PlaybackHeartbeat    = "playbackheartbeat"
	PlaybackHeartbeatEnd = "playbackheartbeatend"

	EventRateExceeded = "eventrateexceeded"
)

// IsAdEvent reports whether the type belongs to the ad lifecycle.
func IsAdEvent(t string) bool {
	switch t {
	case AdRequest, AdResponse, AdBreakStart, AdBreakEnd, AdPlay, AdPlaying,
		AdPause, AdEnded, AdError, AdClicked, AdSkipped,
		AdFirstQuartile, AdMidpoint, AdThirdQuartile:
		return true
	}
	return false
}

// IsRequestEvent reports whether the type is a request telemetry event.
func IsRequestEvent(t string) bool {
	switch t {
	case RequestCompleted, RequestFailed, RequestCanceled:
		return true
	}
	return false
}
