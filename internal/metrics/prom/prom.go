// Package prom exposes the metrics package through a Prometheus registry
// scraped at /metrics.
package prom

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"titus/internal/metrics"
)

type Backend struct {
	reg *prometheus.Registry

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// labelNames fixes the label set of every metric. Values for missing labels
// are recorded as "".
var labelNames = map[string][]string{
	metrics.DatasetLoads:        {"source", "status"},
	metrics.DatasetLoadDuration: {"source", "status"},
	metrics.DatasetRows:         {"source"},
	metrics.SectionsEvaluated:   {"kind", "status"},
	metrics.ChartsRendered:      {"format", "status"},
	metrics.ActiveSessions:      nil,
	metrics.SessionsEvicted:     nil,
	metrics.HTTPRequests:        {"route", "method", "code"},
	metrics.HTTPDuration:        {"route", "method"},
}

func NewBackend() (*Backend, error) {
	b := &Backend{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	counter := func(name, help string) {
		b.counters[name] = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames[name])
	}
	counter(metrics.DatasetLoads, "Dataset load attempts by source and status.")
	counter(metrics.SectionsEvaluated, "Report sections evaluated by kind and status.")
	counter(metrics.ChartsRendered, "Chart payloads rendered by format and status.")
	counter(metrics.SessionsEvicted, "Browser sessions dropped by capacity or idle timeout.")
	counter(metrics.HTTPRequests, "HTTP requests by route, method and status code.")

	b.histograms[metrics.DatasetLoadDuration] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metrics.DatasetLoadDuration,
		Help:    "Time to read and normalize a dataset.",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, labelNames[metrics.DatasetLoadDuration])
	b.histograms[metrics.HTTPDuration] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metrics.HTTPDuration,
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, labelNames[metrics.HTTPDuration])

	b.gauges[metrics.DatasetRows] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metrics.DatasetRows,
		Help: "Rows in the most recently loaded dataset per source.",
	}, labelNames[metrics.DatasetRows])
	b.gauges[metrics.ActiveSessions] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metrics.ActiveSessions,
		Help: "Browser sessions currently held in memory.",
	}, nil)

	collectorsToRegister := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range b.counters {
		collectorsToRegister = append(collectorsToRegister, c)
	}
	for _, h := range b.histograms {
		collectorsToRegister = append(collectorsToRegister, h)
	}
	for _, g := range b.gauges {
		collectorsToRegister = append(collectorsToRegister, g)
	}
	for _, c := range collectorsToRegister {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prom: register collector: %w", err)
		}
	}
	return b, nil
}

func values(name string, labels metrics.Labels) []string {
	names := labelNames[name]
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = labels[n]
	}
	return out
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if c, ok := b.counters[name]; ok {
		c.WithLabelValues(values(name, labels)...).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if h, ok := b.histograms[name]; ok {
		h.WithLabelValues(values(name, labels)...).Observe(value)
	}
}

func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	if g, ok := b.gauges[name]; ok {
		g.WithLabelValues(values(name, labels)...).Set(value)
	}
}

// Handler serves the registry in the Prometheus text format.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry to tests.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }
