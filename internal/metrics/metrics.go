// Package metrics holds the exporter's gauge registry.
//
// Node gauges are reset at the start of every poll so label pairs from a
// previous identity never linger. Exporter self-metrics survive resets.
package metrics

import (
	"bytes"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/tinytelemetry/quil-exporter/internal/model"
)

// ContentType is the exposition format produced by Render.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var nodeGauges = []struct {
	name string
	help string
}{
	{model.MetricPeerScore, "Peer score of the node"},
	{model.MetricMaxFrame, "Max frame of the node"},
	{model.MetricUnclaimedBalance, "Unclaimed balance of the node"},
	{model.MetricPeerStoreCount, "Peers in store"},
	{model.MetricNetworkPeerCount, "Network peer count"},
	{model.MetricRing, "Prover ring of the node, -1 when unknown"},
	{model.MetricSeniority, "Seniority"},
	{model.MetricCreatingDataProof, "Frame age when the last data shard ring proof was created"},
	{model.MetricSubmittedDataProof, "Frame age when the last data proof was submitted"},
	{model.MetricActiveWorkers, "Active workers"},
	{model.MetricProofIncrement, "Increment of the last completed duration proof"},
	{model.MetricProofTimeTaken, "Seconds taken by the last completed duration proof"},
}

// Registry is the sink of one exporter process. It is not safe for a reset
// to interleave with another cycle's writes; the collector serializes cycles.
type Registry struct {
	reg    *prometheus.Registry
	gauges map[string]*prometheus.GaugeVec

	// ScrapesTotal counts poll cycles by outcome.
	ScrapesTotal   *prometheus.CounterVec
	// ScrapeDuration observes the wall time of one poll cycle.
	ScrapeDuration prometheus.Histogram
	// ParseMisses counts lines whose marker matched but whose pattern did not.
	// A rising rate usually means the node's log schema changed.
	ParseMisses    *prometheus.CounterVec
	// LinesScanned reports how many log lines the last scan inspected.
	LinesScanned   prometheus.Gauge
}

// NewRegistry creates a registry with every node gauge registered.
var _ model.GaugeSink = (*Registry)(nil)

func NewRegistry() *Registry {
	r := &Registry{
		reg:    prometheus.NewRegistry(),
		gauges: make(map[string]*prometheus.GaugeVec, len(nodeGauges)),
	}

	r.ScrapesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quilibrium_exporter_scrapes_total",
			Help: "Total number of poll cycles by result",
		},
		[]string{"result"},
	)
	r.ScrapeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quilibrium_exporter_scrape_duration_seconds",
			Help:    "Duration of poll cycles in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
	r.ParseMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quilibrium_exporter_parse_misses_total",
			Help: "Log lines whose signal marker matched but whose field pattern did not",
		},
		[]string{"signal"},
	)
	r.LinesScanned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quilibrium_exporter_log_lines_scanned",
			Help: "Number of log lines inspected by the last scan",
		},
	)

	for _, g := range nodeGauges {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: g.name, Help: g.help}, model.LabelNames)
		r.reg.MustRegister(vec)
		r.gauges[g.name] = vec
	}
	r.reg.MustRegister(r.ScrapesTotal, r.ScrapeDuration, r.ParseMisses, r.LinesScanned)

	return r
}

// Reset drops every label combination of every node gauge.
func (r *Registry) Reset() {
	for _, vec := range r.gauges {
		vec.Reset()
	}
}

// Set upserts the value of metric for labels.
func (r *Registry) Set(metric string, labels model.Labels, value float64) error {
	vec, ok := r.gauges[metric]
	if !ok {
		return errors.Newf("unknown metric %q", metric)
	}
	vec.WithLabelValues(labels.Values()...).Set(value)
	return nil
}

// Gauge returns the vector backing metric, for tests and diagnostics.
func (r *Registry) Gauge(metric string) (*prometheus.GaugeVec, bool) {
	vec, ok := r.gauges[metric]
	return vec, ok
}

// Names returns the registered node gauge names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gauges))
	for name := range r.gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecordScrape counts one poll cycle with its outcome and duration.
func (r *Registry) RecordScrape(result string, d time.Duration) {
	r.ScrapesTotal.WithLabelValues(result).Inc()
	r.ScrapeDuration.Observe(d.Seconds())
}

// RecordParseMisses adds n misses for signal.
func (r *Registry) RecordParseMisses(signal string, n int) {
	if n > 0 {
		r.ParseMisses.WithLabelValues(signal).Add(float64(n))
	}
}

// Render serializes the current registry contents in text exposition format.
func (r *Registry) Render() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", errors.Wrap(err, "gather metrics")
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", errors.Wrapf(err, "encode %s", mf.GetName())
		}
	}
	return buf.String(), nil
}
