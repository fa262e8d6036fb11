package prometheus

import (
	"net/http"

	"github.com/MrEthical07/softoken"
	"github.com/MrEthical07/softoken/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is what the collector reads on every scrape. [softoken.Engine]
// implements it.
type Source interface {
	MetricsSnapshot() softoken.MetricsSnapshot
	AuditDropped() uint64
}

type counterDesc struct {
	id   softoken.MetricID
	desc *prometheus.Desc
}

// Collector is a prometheus.Collector over the engine's in-process
// counters. It holds no state of its own; each Collect reads a fresh
// snapshot.
type Collector struct {
	source     Source
	counters   []counterDesc
	histograms []counterDesc
	dropped    *prometheus.Desc
}

// NewCollector returns a collector reading from engine.
func NewCollector(engine *softoken.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource returns a collector reading from source.
func NewCollectorFromSource(source Source) *Collector {
	c := &Collector{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]counterDesc, 0, len(internaldefs.HistogramDefs)),
		dropped:    prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, counterDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	for _, hd := range c.histograms {
		ch <- hd.desc
	}
	ch <- c.dropped
}

// Collect implements prometheus.Collector. Nothing is emitted while engine
// metrics are disabled and no audit events were dropped.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	dropped := c.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(snapshot.Counters[cd.id]))
	}

	for _, hd := range c.histograms {
		raw, ok := snapshot.Histograms[hd.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, bound := range internaldefs.HistogramUpperBounds {
			buckets[bound] = cumulative[i]
		}
		// The engine does not track a latency sum.
		ch <- prometheus.MustNewConstHistogram(hd.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(dropped))
}

// Handler serves the collector from a private registry, leaving the global
// default registry untouched.
func (c *Collector) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
