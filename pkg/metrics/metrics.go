// Package metrics defines the Prometheus collectors for the scoring service
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	JobsSubmittedTotal   prometheus.Counter
	JobsDedupedTotal     prometheus.Counter
	JobsCompletedTotal   *prometheus.CounterVec
	JobDuration          prometheus.Histogram
	QueueDepth           prometheus.Gauge
	FetchRetriesTotal    prometheus.Counter
	ScoredTokens         prometheus.Histogram
	LeaderboardCacheHits prometheus.Counter
	LeaderboardCacheMiss prometheus.Counter
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		JobsSubmittedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scoring_jobs_submitted_total",
				Help: "Total scoring jobs accepted into the queue.",
			},
		),
		JobsDedupedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scoring_jobs_deduped_total",
				Help: "Total submissions answered by an already-pending job.",
			},
		),
		JobsCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scoring_jobs_completed_total",
				Help: "Total finished jobs by terminal state and error kind.",
			},
			[]string{"state", "kind"},
		),
		JobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scoring_job_duration_seconds",
				Help:    "Wall-clock duration of job execution.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scoring_queue_depth",
				Help: "Number of jobs waiting for a worker.",
			},
		),
		FetchRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "corpus_fetch_retries_total",
				Help: "Total transient fetch failures that were retried.",
			},
		),
		ScoredTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scored_corpus_tokens",
				Help:    "Lemma token count per successfully scored corpus.",
				Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000},
			},
		),
		LeaderboardCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "leaderboard_cache_hits_total",
				Help: "Total leaderboard reads served from cache.",
			},
		),
		LeaderboardCacheMiss: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "leaderboard_cache_misses_total",
				Help: "Total leaderboard reads that recomputed the ranking.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.JobsSubmittedTotal,
		m.JobsDedupedTotal,
		m.JobsCompletedTotal,
		m.JobDuration,
		m.QueueDepth,
		m.FetchRetriesTotal,
		m.ScoredTokens,
		m.LeaderboardCacheHits,
		m.LeaderboardCacheMiss,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
