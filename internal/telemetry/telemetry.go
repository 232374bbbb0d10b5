// Package telemetry exposes Prometheus metrics for the scraper.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ProfilesScraped   = prometheus.NewCounter(prometheus.CounterOpts{Name: "scraper_profiles_scraped_total", Help: "Profiles scraped successfully"})
	ProfilesFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "scraper_profiles_failed_total", Help: "Profiles that failed after exhausting accounts"})
	ProfilesSkipped   = prometheus.NewCounter(prometheus.CounterOpts{Name: "scraper_profiles_skipped_total", Help: "Subjects skipped (missing identifier or fresh enough)"})
	CheckpointsHit    = prometheus.NewCounter(prometheus.CounterOpts{Name: "scraper_checkpoints_total", Help: "Security checkpoints encountered"})
	AccountsFlagged   = prometheus.NewCounter(prometheus.CounterOpts{Name: "scraper_accounts_flagged_total", Help: "Accounts flagged and removed from rotation"})
	PDFsUploaded      = prometheus.NewCounter(prometheus.CounterOpts{Name: "scraper_pdfs_uploaded_total", Help: "PDF snapshots stored"})
	QueueDepthGauge   = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scraper_queue_depth", Help: "Pending items in the scraping queue"})
	PoolCapacityGauge = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scraper_pool_capacity", Help: "Remaining scrapes across all available accounts today"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ProfilesScraped,
			ProfilesFailed,
			ProfilesSkipped,
			CheckpointsHit,
			AccountsFlagged,
			PDFsUploaded,
			QueueDepthGauge,
			PoolCapacityGauge,
		)
	})
	return promhttp.Handler()
}
