package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	splitFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitmerge",
			Name:      "split_files_total",
			Help:      "Output files produced by split, by result (written, failed)",
		},
		[]string{"result"},
	)

	splitNoMatch = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfsplitmerge",
			Name:      "split_no_matching_pages_total",
			Help:      "Split requests whose range text matched no pages",
		},
	)

	merges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitmerge",
			Name:      "merges_total",
			Help:      "Merge operations by result",
		},
		[]string{"result"},
	)

	previewRebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitmerge",
			Name:      "preview_rebuilds_total",
			Help:      "Preview rebuilds by outcome (empty, single, ready, failed, stale)",
		},
		[]string{"outcome"},
	)

	previewLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfsplitmerge",
			Name:      "preview_rebuild_duration_seconds",
			Help:      "Duration of preview rebuilds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	renders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitmerge",
			Name:      "renders_total",
			Help:      "Page renders by result (rendered, cached, unavailable, failed)",
		},
		[]string{"result"},
	)

	tempCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfsplitmerge",
			Name:      "temp_cleanup_failures_total",
			Help:      "Temp files that could not be removed",
		},
	)
)

var registerOnce sync.Once

// Init registers collectors. Calling it again is a no-op.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(splitFiles, splitNoMatch, merges, previewRebuilds, previewLatency, renders, tempCleanupFailures)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncSplitFile(result string) { splitFiles.WithLabelValues(result).Inc() }
func IncSplitNoMatch()           { splitNoMatch.Inc() }
func IncMerge(result string)     { merges.WithLabelValues(result).Inc() }
func IncRender(result string)    { renders.WithLabelValues(result).Inc() }
func IncTempCleanupFailure()     { tempCleanupFailures.Inc() }

// ObservePreview records one finished rebuild.
func ObservePreview(outcome string, dur time.Duration) {
	previewRebuilds.WithLabelValues(outcome).Inc()
	previewLatency.Observe(dur.Seconds())
}
