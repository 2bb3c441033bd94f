// Package metrics exposes Prometheus instrumentation for the plugin
// pipeline. A nil *Collector records nothing.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/wippyai/wasm-plugins/diag"
)

// Compile results.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

// Collector holds the pipeline's metrics.
type Collector struct {
	CompilesTotal       *prometheus.CounterVec
	CompileDuration     prometheus.Histogram
	DiagnosticsTotal    *prometheus.CounterVec
	ModulesCompiled     prometheus.Counter
	ArtifactLoadsTotal  prometheus.Counter
	ArtifactCacheHits   prometheus.Counter
	UnitsScannedTotal   *prometheus.CounterVec
	ClassificationTotal *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		CompilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wasmplug_compiles_total",
				Help: "Total number of compile runs by result",
			},
			[]string{"result"},
		),
		CompileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wasmplug_compile_duration_seconds",
				Help:    "Compile run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		DiagnosticsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wasmplug_diagnostics_total",
				Help: "Total number of compiler diagnostics by severity",
			},
			[]string{"severity"},
		),
		ModulesCompiled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wasmplug_modules_compiled_total",
				Help: "Total number of modules placed in a namespace",
			},
		),
		ArtifactLoadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wasmplug_artifact_loads_total",
				Help: "Total number of artifacts materialized",
			},
		),
		ArtifactCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wasmplug_artifact_cache_hits_total",
				Help: "Total number of loads served from the loader cache",
			},
		),
		UnitsScannedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wasmplug_units_scanned_total",
				Help: "Total number of scanned units by outcome",
			},
			[]string{"outcome"},
		),
		ClassificationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wasmplug_classifications_total",
				Help: "Total number of category selections",
			},
			[]string{"category"},
		),
	}

	reg.MustRegister(
		c.CompilesTotal,
		c.CompileDuration,
		c.DiagnosticsTotal,
		c.ModulesCompiled,
		c.ArtifactLoadsTotal,
		c.ArtifactCacheHits,
		c.UnitsScannedTotal,
		c.ClassificationTotal,
	)
	return c
}

// CompileFinished records one compile run.
func (c *Collector) CompileFinished(result string, elapsed time.Duration, d diag.Diagnostics, modules int) {
	if c == nil {
		return
	}
	c.CompilesTotal.WithLabelValues(result).Inc()
	c.CompileDuration.Observe(elapsed.Seconds())
	for _, e := range d.Entries {
		c.DiagnosticsTotal.WithLabelValues(e.Severity.String()).Inc()
	}
	c.ModulesCompiled.Add(float64(modules))
}

// CompileRejected records a run refused because another was in progress.
func (c *Collector) CompileRejected() {
	if c == nil {
		return
	}
	c.CompilesTotal.WithLabelValues(ResultRejected).Inc()
}

func (c *Collector) ArtifactLoaded() {
	if c == nil {
		return
	}
	c.ArtifactLoadsTotal.Inc()
}

func (c *Collector) CacheHit() {
	if c == nil {
		return
	}
	c.ArtifactCacheHits.Inc()
}

// UnitScanned records a scanned unit; outcome is "abstract" or "concrete".
func (c *Collector) UnitScanned(outcome string) {
	if c == nil {
		return
	}
	c.UnitsScannedTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) Classified(category string) {
	if c == nil {
		return
	}
	c.ClassificationTotal.WithLabelValues(category).Inc()
}

// WriteText writes every metric family of g in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
