// Package metrics exposes Prometheus collectors for the harvesting service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal       *prometheus.CounterVec
	harvestPagesTotal        *prometheus.CounterVec
	discoveryPagesTotal      prometheus.Counter
	discoveryCandidatesTotal prometheus.Counter
	discoverySkippedTotal    *prometheus.CounterVec
	jobsTotal                *prometheus.CounterVec
	archiveDownloadsTotal    *prometheus.CounterVec
	cacheEntries             prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvestd_fetch_requests_total",
				Help: "Total fetch attempts, labeled by result (hit, fetched, challenged, error).",
			},
			[]string{"result"},
		)

		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvestd_pages_total",
				Help: "Total pages run through the harvest pipeline, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		discoveryPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvestd_discovery_pages_total",
				Help: "Total search result pages fetched during discovery.",
			},
		)

		discoveryCandidatesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvestd_discovery_candidates_total",
				Help: "Total candidate URLs accepted by discovery filtering.",
			},
		)

		discoverySkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvestd_discovery_skipped_total",
				Help: "Candidates dropped during discovery, labeled by reason.",
			},
			[]string{"reason"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvestd_jobs_total",
				Help: "Total jobs accepted, labeled by mode.",
			},
			[]string{"mode"},
		)

		archiveDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvestd_archive_downloads_total",
				Help: "Archive download attempts, labeled by status.",
			},
			[]string{"status"},
		)

		cacheEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvestd_fetch_cache_entries",
				Help: "Current number of entries in the fetch cache.",
			},
		)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// FetchResult records the outcome of one fetch attempt.
func FetchResult(result string) {
	Init()
	fetchRequestsTotal.WithLabelValues(result).Inc()
}

// PageOutcome records the outcome of one pipeline run.
func PageOutcome(outcome string) {
	Init()
	harvestPagesTotal.WithLabelValues(outcome).Inc()
}

// DiscoveryPage counts one search result page fetch.
func DiscoveryPage() {
	Init()
	discoveryPagesTotal.Inc()
}

// DiscoveryCandidate counts one accepted candidate URL.
func DiscoveryCandidate() {
	Init()
	discoveryCandidatesTotal.Inc()
}

// DiscoverySkipped counts one dropped candidate.
func DiscoverySkipped(reason string) {
	Init()
	discoverySkippedTotal.WithLabelValues(reason).Inc()
}

// JobAccepted counts one accepted job.
func JobAccepted(mode string) {
	Init()
	jobsTotal.WithLabelValues(mode).Inc()
}

// ArchiveDownload counts one download attempt.
func ArchiveDownload(status string) {
	Init()
	archiveDownloadsTotal.WithLabelValues(status).Inc()
}

// SetCacheEntries publishes the current fetch cache size.
func SetCacheEntries(n int) {
	Init()
	cacheEntries.Set(float64(n))
}
