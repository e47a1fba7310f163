package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/streamscout/internal/model"
)

// Namespace prefixes every metric name.
const Namespace = "streamscout"

// Recorder receives resolution measurements.
type Recorder interface {
	// ObserveProbe records one probe outcome and its wall time.
	ObserveProbe(tag string, status model.Status, elapsed time.Duration)

	// ObserveResolution records one full dispatch for an identifier.
	ObserveResolution(providers, urls int, elapsed time.Duration)

	// CacheHit and CacheMiss record report cache lookups.
	CacheHit()
	CacheMiss()
}

var (
	_ Recorder = (*Prometheus)(nil)
	_ Recorder = Nop{}
)

// Prometheus is a Recorder backed by its own registry, so tests and
// multiple servers in one process never collide on the default registry.
type Prometheus struct {
	registry *prometheus.Registry

	probes        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	resolutions   prometheus.Counter
	resolveTime   prometheus.Histogram
	urlsFound     prometheus.Histogram
	cache         *prometheus.CounterVec
}

// NewPrometheus creates a Recorder with Go runtime and process collectors
// registered alongside the resolution metrics.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "probe_outcomes_total",
			Help:      "Probe outcomes by provider and status.",
		}, []string{"provider", "status"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "probe_duration_seconds",
			Help:      "Wall time of a single provider probe.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"provider"}),
		resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "resolutions_total",
			Help:      "Identifiers resolved by dispatching probes.",
		}),
		resolveTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Wall time from dispatch to merged report.",
			Buckets:   prometheus.DefBuckets,
		}),
		urlsFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "resolution_urls_found",
			Help:      "Manifest URLs found per resolution.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "report_cache_lookups_total",
			Help:      "Report cache lookups by result.",
		}, []string{"result"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.probes,
		p.probeDuration,
		p.resolutions,
		p.resolveTime,
		p.urlsFound,
		p.cache,
	)
	return p
}

// ObserveProbe implements Recorder.
func (p *Prometheus) ObserveProbe(tag string, status model.Status, elapsed time.Duration) {
	p.probes.WithLabelValues(tag, status.String()).Inc()
	p.probeDuration.WithLabelValues(tag).Observe(elapsed.Seconds())
}

// ObserveResolution implements Recorder.
func (p *Prometheus) ObserveResolution(_ int, urls int, elapsed time.Duration) {
	p.resolutions.Inc()
	p.resolveTime.Observe(elapsed.Seconds())
	p.urlsFound.Observe(float64(urls))
}

// CacheHit implements Recorder.
func (p *Prometheus) CacheHit() {
	p.cache.WithLabelValues("hit").Inc()
}

// CacheMiss implements Recorder.
func (p *Prometheus) CacheMiss() {
	p.cache.WithLabelValues("miss").Inc()
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns the exposition handler for GET /metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Nop discards every measurement. It is the default for the CLI.
type Nop struct{}

// ObserveProbe implements Recorder.
func (Nop) ObserveProbe(string, model.Status, time.Duration) {}

// ObserveResolution implements Recorder.
func (Nop) ObserveResolution(int, int, time.Duration) {}

// CacheHit implements Recorder.
func (Nop) CacheHit() {}

// CacheMiss implements Recorder.
func (Nop) CacheMiss() {}
