// Package metrics exposes Prometheus collectors for fetch sessions.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DocumentsAccepted tracks files sniffed as an allowed type and committed.
	DocumentsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docfetch_documents_accepted_total",
		Help: "The total number of documents accepted and written to disk.",
	})
	// DocumentsRejected tracks downloads discarded because of their content type.
	DocumentsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docfetch_documents_rejected_total",
		Help: "The total number of downloads rejected by type classification.",
	})
	// DownloadsFailed tracks jobs that exhausted retries or failed fatally.
	DownloadsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docfetch_downloads_failed_total",
		Help: "The total number of failed download jobs, labeled by error kind.",
	}, []string{"kind"})
	// SearchResults tracks candidate URLs yielded per engine.
	SearchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docfetch_search_results_total",
		Help: "The total number of candidate URLs produced, labeled by engine.",
	}, []string{"engine"})
	// DownloadDuration observes wall time per download attempt.
	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docfetch_download_duration_seconds",
		Help:    "Histogram of download attempt latencies.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

// Handler returns the HTTP surface served when --metrics-listen is set.
func Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
