// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "research_agent"

var (
	metricAdapterItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adapter_items_total",
		Help:      "Items returned by each source adapter.",
	}, []string{"adapter"})
	metricAdapterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adapter_failures_total",
		Help:      "Source adapter calls that failed and returned no items.",
	}, []string{"adapter"})
	metricGenerateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generate_duration_seconds",
		Help:      "Latency of model generate calls.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"model", "outcome"})
	metricModelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_loads_total",
		Help:      "Backend load attempts per model.",
	}, []string{"model", "outcome"})
	metricRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_runs_total",
		Help:      "Workflow executions by terminal stage.",
	}, []string{"stage"})
	metricRefinements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_refinements_total",
		Help:      "Loop-backs from evaluation to planning.",
	})
	metricQuality = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_quality_score",
		Help:      "Overall quality score of the most recent evaluation.",
	})
	metricCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache reads by result (hit, miss, expired).",
	}, []string{"result"})
)

// RecordAdapter counts the items an adapter returned, or a failure.
func RecordAdapter(adapter string, items int, failed bool) {
	if failed {
		metricAdapterFailures.WithLabelValues(adapter).Inc()
		return
	}
	metricAdapterItems.WithLabelValues(adapter).Add(float64(items))
}

// RecordGenerate observes one generate call.
func RecordGenerate(model, outcome string, d time.Duration) {
	metricGenerateDuration.WithLabelValues(model, outcome).Observe(d.Seconds())
}

// RecordModelLoad counts one backend load attempt.
func RecordModelLoad(model string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	metricModelLoads.WithLabelValues(model, outcome).Inc()
}

// RecordRun counts a finished workflow run by its terminal stage.
func RecordRun(stage string) {
	metricRuns.WithLabelValues(stage).Inc()
}

// RecordRefinement counts one loop-back to planning.
func RecordRefinement() {
	metricRefinements.Inc()
}

// RecordQuality publishes the latest overall quality score.
func RecordQuality(score float64) {
	metricQuality.Set(score)
}

// RecordCacheLookup counts a cache read.
func RecordCacheLookup(result string) {
	metricCacheLookups.WithLabelValues(result).Inc()
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
