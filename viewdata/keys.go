package viewdata

// Field keys for the metric accumulator. View-scoped keys carry the
// "view_" prefix and are cleared on every new view; player- and
// page-level keys survive across views.
const (
	// View lifecycle.
	ViewID             = "view_id"
	ViewSequenceNumber = "view_sequence_number"
	ViewStart          = "view_start"
	ViewEnd            = "view_end"
	ViewErrored        = "view_errored"

	// Watch / playback time.
	ViewWatchTime            = "view_watch_time"
	ViewContentPlaybackTime  = "view_content_playback_time"
	ViewMaxPlayheadPosition  = "view_max_playhead_position"
	ViewTimeToFirstFrame     = "view_time_to_first_frame"
	ViewAggregateStartupTime = "view_aggregate_startup_time"

	// Rebuffering.
	ViewRebufferCount      = "view_rebuffer_count"
	ViewRebufferDuration   = "view_rebuffer_duration"
	ViewRebufferFrequency  = "view_rebuffer_frequency"
	ViewRebufferPercentage = "view_rebuffer_percentage"

	// Seeking.
	ViewSeekCount    = "view_seek_count"
	ViewSeekDuration = "view_seek_duration"
	ViewMaxSeekTime  = "view_max_seek_time"

	// Requests.
	ViewRequestCount             = "view_request_count"
	ViewRequestFailedCount       = "view_request_failed_count"
	ViewRequestCanceledCount     = "view_request_canceled_count"
	ViewRequestBytesLoaded       = "view_request_bytes_loaded"
	ViewMaxRequestLatency        = "view_max_request_latency"
	ViewAverageRequestLatency    = "view_average_request_latency"
	ViewRequestLatencyP95        = "view_request_latency_p95"
	ViewMinRequestThroughput     = "view_min_request_throughput"
	ViewAverageRequestThroughput = "view_average_request_throughput"

	// Ads.
	ViewAdRequestCount     = "view_ad_request_count"
	ViewAdResponseCount    = "view_ad_response_count"
	ViewAdPlayedCount      = "view_ad_played_count"
	ViewAdSkipCount        = "view_ad_skip_count"
	ViewAdClickCount       = "view_ad_click_count"
	ViewAdErrorCount       = "view_ad_error_count"
	ViewAdRequestTime      = "view_ad_request_time"
	ViewMaxAdRequestTime   = "view_max_ad_request_time"
	ViewPrerollRequestTime = "view_preroll_request_time"
	ViewPrerollLoadTime    = "view_preroll_load_time"
	ViewPrerollPlayTime    = "view_preroll_play_time"
	ViewPrerollRequested   = "view_preroll_requested"
	ViewPrerollPlayed      = "view_preroll_played"

	// Player state and identity.
	PlayerSequenceNumber         = "player_sequence_number"
	PlayerInitTime               = "player_init_time"
	PlayerStartupTime            = "player_startup_time"
	PlayerPlayheadTime           = "player_playhead_time"
	PlayerProgramTime            = "player_program_time"
	PlayerIsPaused               = "player_is_paused"
	PlayerIsSeeking              = "player_is_seeking"
	PlayerPlaybackRate           = "player_playback_rate"
	PlayerSoftwareName           = "player_software_name"
	PlayerSoftwareVersion        = "player_software_version"
	PlayerErrorCode              = "player_error_code"
	PlayerErrorMessage           = "player_error_message"
	PlayerErrorContext           = "player_error_context"
	PlayerErrorSeverity          = "player_error_severity"
	PlayerErrorBusinessException = "player_error_business_exception"

	// Video / rendition.
	VideoSourceWidth   = "video_source_width"
	VideoSourceHeight  = "video_source_height"
	VideoSourceBitrate = "video_source_bitrate"
	VideoSourceDomain  = "video_source_domain"

	// Ad creative identity, resent on quartile events.
	AdCreativeID = "ad_creative_id"
	AdID         = "ad_id"
	AdUniverseID = "ad_universe_id"

	// Identity and session.
	ViewerID           = "viewer_id"
	ViewerSampleNumber = "viewer_sample_number"
	SessionID          = "session_id"
	SessionStart       = "session_start"
	SessionExpires     = "session_expires"

	// Page / environment.
	PageURL              = "page_url"
	ViewerConnectionType = "viewer_connection_type"
	ViewerIP             = "viewer_ip" // set collector-side, never sent by the SDK
	EnvKey               = "env_key"
	EventType            = "event"
	ViewerTime           = "viewer_time"
	BeaconRTT            = "beacon_rtt"
)

// ErrorKeys are the accumulator fields scrubbed after an error beacon
// has been queued, so an error never leaks into subsequent beacons.
var ErrorKeys = []string{
	PlayerErrorCode,
	PlayerErrorMessage,
	PlayerErrorContext,
	PlayerErrorSeverity,
	PlayerErrorBusinessException,
}
