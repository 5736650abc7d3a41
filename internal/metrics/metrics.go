// Package metrics exposes ingestion outcomes to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vvka-141/polingest/internal/ingest"
	"github.com/vvka-141/polingest/pkg/polingest"
)

const namespace = "polingest"

// Run outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeParseError        = "parse_error"
	OutcomeUnsupportedFormat = "unsupported_format"
	OutcomeStoreError        = "store_error"
	OutcomeError             = "error"
)

// Collector records ingestion runs. It implements ingest.Observer.
type Collector struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	entities *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ ingest.Observer = (*Collector)(nil)

// New creates a Collector on its own registry, alongside the Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Total number of ingestion runs by outcome.",
		}, []string{"outcome"}),
		entities: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_entities_total",
			Help:      "Entities seen by successful runs, by kind and state (existing, created, duplicate).",
		}, []string{"kind", "state"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_policy_rows_skipped_total",
			Help:      "Rows that produced no policy, by reason.",
		}, []string{"reason"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Duration of ingestion runs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRun records one finished run.
func (c *Collector) ObserveRun(sum *ingest.Summary, elapsed time.Duration, err error) {
	outcome := Outcome(err)
	c.runs.WithLabelValues(outcome).Inc()
	c.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if sum == nil {
		return
	}

	for _, k := range sum.Kinds() {
		c.entities.WithLabelValues(k.Kind, "existing").Add(float64(k.Counts.Existing))
		c.entities.WithLabelValues(k.Kind, "created").Add(float64(k.Counts.Created))
		c.entities.WithLabelValues(k.Kind, "duplicate").Add(float64(k.Counts.Duplicates))
	}
	p := sum.Policies
	c.entities.WithLabelValues("policies", "created").Add(float64(p.Created))
	c.entities.WithLabelValues("policies", "duplicate").Add(float64(p.Duplicates))

	c.skipped.WithLabelValues(string(ingest.SkipExisting)).Add(float64(p.SkippedExisting))
	c.skipped.WithLabelValues(string(ingest.SkipDuplicate)).Add(float64(p.SkippedDuplicate))
	c.skipped.WithLabelValues(string(ingest.SkipUnresolved)).Add(float64(p.SkippedUnresolved))
	c.skipped.WithLabelValues(string(ingest.SkipInvalid)).Add(float64(p.SkippedInvalid))
}

// Outcome classifies a run error into a label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, polingest.ErrUnsupportedFormat):
		return OutcomeUnsupportedFormat
	case errors.Is(err, polingest.ErrParse):
		return OutcomeParseError
	case errors.Is(err, polingest.ErrStore):
		return OutcomeStoreError
	default:
		return OutcomeError
	}
}
