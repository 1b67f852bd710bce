package internaldefs

import (
	tanglr "github.com/artyultra/tanglr-client"
)

// CounterDef names one client counter for exporters.
type CounterDef struct {
	ID   tanglr.MetricID
	Name string
	Help string
}

// HistogramDef names one client histogram for exporters.
type HistogramDef struct {
	ID   tanglr.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: tanglr.MetricLoginSuccess, Name: "tanglr_login_success_total", Help: "Logins that stored a session."},
	{ID: tanglr.MetricLoginFailure, Name: "tanglr_login_failure_total", Help: "Rejected or malformed logins."},
	{ID: tanglr.MetricRefreshSuccess, Name: "tanglr_refresh_success_total", Help: "Access token refreshes that succeeded."},
	{ID: tanglr.MetricRefreshFailure, Name: "tanglr_refresh_failure_total", Help: "Access token refreshes that failed."},
	{ID: tanglr.MetricRefreshQueued, Name: "tanglr_refresh_queued_total", Help: "Callers that waited on an in-flight refresh."},
	{ID: tanglr.MetricRequestRetried, Name: "tanglr_request_retried_total", Help: "Requests replayed after a refresh."},
	{ID: tanglr.MetricSessionExpired, Name: "tanglr_session_expired_total", Help: "Sessions cleared by a failed refresh."},
	{ID: tanglr.MetricRequestTimeout, Name: "tanglr_request_timeout_total", Help: "Requests that exceeded their timeout."},
	{ID: tanglr.MetricHTTPError, Name: "tanglr_http_error_total", Help: "Non-2xx API responses."},
	{ID: tanglr.MetricLogout, Name: "tanglr_logout_total", Help: "Completed logouts."},
	{ID: tanglr.MetricRevokeFailure, Name: "tanglr_revoke_failure_total", Help: "Refresh token revocations that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: tanglr.MetricRequestLatency, Name: "tanglr_request_latency_seconds", Help: "API request latency."},
}

// HistogramBounds are the upper bounds of the latency buckets in seconds.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket for exporters that cannot carry a le label.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
