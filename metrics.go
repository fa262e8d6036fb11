package softoken

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts successful Create calls.
	MetricSessionCreated MetricID = iota
	// MetricSessionCreateFailure counts Create calls rejected or failed.
	MetricSessionCreateFailure
	// MetricGetSuccess counts Get calls that resolved a live session.
	MetricGetSuccess
	// MetricGetMalformed counts credentials rejected as malformed.
	MetricGetMalformed
	// MetricGetInvalid counts credentials with a bad signature or content.
	MetricGetInvalid
	// MetricGetUnknown counts valid tokens with no live session.
	MetricGetUnknown
	// MetricSessionExtended counts successful Extend calls.
	MetricSessionExtended
	// MetricSessionDestroyed counts Destroy calls that removed a session.
	MetricSessionDestroyed
	// MetricUserSessionsDestroyed counts sessions removed by DestroyUser.
	MetricUserSessionsDestroyed
	// MetricCleanupRun counts completed reconciliation passes.
	MetricCleanupRun
	// MetricCleanupRemoved counts entries removed by reconciliation.
	MetricCleanupRemoved
	// MetricCleanupSkipped counts scheduled passes skipped because another
	// process held the sweep lock.
	MetricCleanupSkipped
	// MetricCleanupFailure counts failed reconciliation passes.
	MetricCleanupFailure
	// MetricStoreError counts operations that failed on the backing store.
	MetricStoreError
	// MetricGetLatency is the Get latency histogram.
	MetricGetLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus the Get latency
// histogram. A nil or disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram
// buckets are non-cumulative, bounded at 5, 10, 25, 50, 100, 250 and 500ms
// with a final overflow bucket.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram id. Only [MetricGetLatency] carries a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricGetLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Individual loads are atomic; the snapshot
// as a whole is not.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricGetLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricGetLatency].buckets[i])
		}
		s.Histograms[MetricGetLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
