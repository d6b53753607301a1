// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"Go2TraceSpectra/internal/core/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Line outcomes.
const (
	LineParsed   = "parsed"
	LineSkipped  = "skipped"
	LineFiltered = "filtered"
)

// Metrics holds the engine collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	lines         *prometheus.CounterVec
	groupPackets  *prometheus.GaugeVec
	groupBytes    *prometheus.GaugeVec
	groupPeers    *prometheus.GaugeVec
	groupSyns     *prometheus.GaugeVec
	signatureHits *prometheus.GaugeVec
	writes        *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracespectra_lines_total",
			Help: "Trace lines and frames seen by the engine, by outcome.",
		}, []string{"outcome"}),
		groupPackets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracespectra_group_packets",
			Help: "Packets attributed to an endpoint group in the current report.",
		}, []string{"group"}),
		groupBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracespectra_group_bytes",
			Help: "Bytes attributed to an endpoint group in the current report.",
		}, []string{"group"}),
		groupPeers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracespectra_group_unique_peers",
			Help: "Distinct client endpoints seen by an endpoint group in the current report.",
		}, []string{"group"}),
		groupSyns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracespectra_group_syns",
			Help: "Connection initiations towards an endpoint group in the current report.",
		}, []string{"group"}),
		signatureHits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracespectra_signature_hits",
			Help: "Packets matching a size signature in the current report.",
		}, []string{"signature"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracespectra_report_writes_total",
			Help: "Report writes by writer and status.",
		}, []string{"writer", "status"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracespectra_alerts_total",
			Help: "Triggered alert rules.",
		}, []string{"rule"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracespectra_run_duration_seconds",
			Help:    "Duration of complete engine passes over a trace.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.lines, m.groupPackets, m.groupBytes, m.groupPeers, m.groupSyns,
		m.signatureHits, m.writes, m.alerts, m.runDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLine counts one input line by outcome.
func (m *Metrics) ObserveLine(outcome string) {
	if m == nil {
		return
	}
	m.lines.WithLabelValues(outcome).Inc()
}

// ObserveResult publishes the per-group and per-signature values of a result.
func (m *Metrics) ObserveResult(res *model.Result) {
	if m == nil || res == nil {
		return
	}
	for _, g := range res.Groups {
		m.groupPackets.WithLabelValues(g.Name).Set(float64(g.PacketCount))
		m.groupBytes.WithLabelValues(g.Name).Set(float64(g.ByteCount))
		m.groupPeers.WithLabelValues(g.Name).Set(float64(len(g.UniquePeers)))
	}
	for _, h := range res.Handshakes {
		m.groupSyns.WithLabelValues(h.Group).Set(float64(h.SynCount))
	}
	m.signatureHits.Reset()
	for _, s := range res.Signatures {
		m.signatureHits.WithLabelValues(s.Name).Set(float64(s.Count))
	}
}

// ObserveWrite counts one report write.
func (m *Metrics) ObserveWrite(writer string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.writes.WithLabelValues(writer, status).Inc()
}

// ObserveAlert counts one triggered rule.
func (m *Metrics) ObserveAlert(rule string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(rule).Inc()
}

// ObserveRun records the duration of a complete pass.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}
