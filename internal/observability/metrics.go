package observability

import (
	"net/http"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	promRegistry = prom.NewRegistry()

	generationsTotal = prom.NewCounter(prom.CounterOpts{
		Namespace: "readmegen", Name: "generations_total",
		Help: "Total generation runs started",
	})
	generationsFailedTotal = prom.NewCounter(prom.CounterOpts{
		Namespace: "readmegen", Name: "generations_failed_total",
		Help: "Generation runs that ended in failure",
	})
	generationDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "readmegen", Name: "generation_duration_seconds",
		Help:    "Wall-clock duration of complete generation runs",
		Buckets: prom.ExponentialBuckets(0.25, 2, 10),
	})
	stepFailuresTotal = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "readmegen", Name: "step_failures_total",
		Help: "Pipeline step failures by step name",
	}, []string{"step"})
	upstreamRequestsTotal = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "readmegen", Name: "upstream_requests_total",
		Help: "Outbound requests to upstream providers by provider and outcome",
	}, []string{"provider", "outcome"})
)

var registerMetricsOnce sync.Once

func registerCollectors() {
	registerMetricsOnce.Do(func() {
		promRegistry.MustRegister(generationsTotal, generationsFailedTotal, generationDuration, stepFailuresTotal, upstreamRequestsTotal)
		promRegistry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	})
}

// RecordGenerationStarted increments the run counter.
func RecordGenerationStarted() {
	registerCollectors()
	generationsTotal.Inc()
}

// RecordGenerationFinished records a completed run with its duration.
func RecordGenerationFinished(seconds float64, failed bool) {
	registerCollectors()
	generationDuration.Observe(seconds)
	if failed {
		generationsFailedTotal.Inc()
	}
}

// RecordStepFailure counts a failed pipeline step.
func RecordStepFailure(step string) {
	registerCollectors()
	stepFailuresTotal.WithLabelValues(step).Inc()
}

// RecordUpstreamRequest counts an outbound provider request.
func RecordUpstreamRequest(provider, outcome string) {
	registerCollectors()
	upstreamRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// MetricsHandler returns the Prometheus scrape handler backed by the
// process-local registry.
func MetricsHandler() http.Handler {
	registerCollectors()
	return promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
}
