package internaldefs

import (
	"github.com/MrEthical07/softoken"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   softoken.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   softoken.MetricID
	Name string
	Help string
}

// Name and help of the dropped audit events counter.
const (
	AuditDroppedName = "softoken_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: softoken.MetricSessionCreated, Name: "softoken_session_created_total", Help: "Created sessions."},
	{ID: softoken.MetricSessionCreateFailure, Name: "softoken_session_create_failure_total", Help: "Session creations rejected or failed."},
	{ID: softoken.MetricGetSuccess, Name: "softoken_get_success_total", Help: "Tokens resolved to a live session."},
	{ID: softoken.MetricGetMalformed, Name: "softoken_get_malformed_total", Help: "Credentials rejected as malformed."},
	{ID: softoken.MetricGetInvalid, Name: "softoken_get_invalid_total", Help: "Credentials rejected for signature or content."},
	{ID: softoken.MetricGetUnknown, Name: "softoken_get_unknown_total", Help: "Valid tokens with no live session."},
	{ID: softoken.MetricSessionExtended, Name: "softoken_session_extended_total", Help: "Session window resets."},
	{ID: softoken.MetricSessionDestroyed, Name: "softoken_session_destroyed_total", Help: "Sessions revoked by token."},
	{ID: softoken.MetricUserSessionsDestroyed, Name: "softoken_user_sessions_destroyed_total", Help: "Sessions revoked by user."},
	{ID: softoken.MetricCleanupRun, Name: "softoken_cleanup_run_total", Help: "Completed cleanup passes."},
	{ID: softoken.MetricCleanupRemoved, Name: "softoken_cleanup_removed_total", Help: "Entries removed by cleanup."},
	{ID: softoken.MetricCleanupSkipped, Name: "softoken_cleanup_skipped_total", Help: "Scheduled cleanups skipped because another process held the lock."},
	{ID: softoken.MetricCleanupFailure, Name: "softoken_cleanup_failure_total", Help: "Failed cleanup passes."},
	{ID: softoken.MetricStoreError, Name: "softoken_store_error_total", Help: "Operations that failed on the session store."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: softoken.MetricGetLatency, Name: "softoken_get_latency_seconds", Help: "Get latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is the +Inf overflow.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, including +Inf, for exporters
// that publish buckets as separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed 8-bucket array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
