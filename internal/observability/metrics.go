package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lampd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the boundary API.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lampd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	feedNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lampd",
			Subsystem: "feed",
			Name:      "notifications_total",
			Help:      "Feed notifications processed, by reconcile result.",
		},
		[]string{"result"},
	)
	feedDisconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lampd",
			Subsystem: "feed",
			Name:      "disconnects_total",
			Help:      "Feed broker connection losses.",
		},
	)
	storeCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lampd",
			Subsystem: "store",
			Name:      "commits_total",
			Help:      "Transition commits attempted against the persistence service.",
		},
		[]string{"outcome"},
	)
	storeCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lampd",
			Subsystem: "store",
			Name:      "commit_duration_seconds",
			Help:      "Commit round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	historyRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lampd",
			Subsystem: "history",
			Name:      "refreshes_total",
			Help:      "History cache refreshes, by outcome.",
		},
		[]string{"outcome"},
	)
	bannerNotifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lampd",
			Subsystem: "banner",
			Name:      "notifications_total",
			Help:      "User-facing failure notifications raised.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			feedNotifications,
			feedDisconnects,
			storeCommits,
			storeCommitDuration,
			historyRefreshes,
			bannerNotifications,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, code).Inc()
	httpDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}

func RecordFeedNotification(result string) {
	feedNotifications.WithLabelValues(result).Inc()
}

func RecordFeedDisconnect() {
	feedDisconnects.Inc()
}

func RecordCommit(outcome string, elapsed time.Duration) {
	storeCommits.WithLabelValues(outcome).Inc()
	storeCommitDuration.Observe(elapsed.Seconds())
}

func RecordHistoryRefresh(outcome string) {
	historyRefreshes.WithLabelValues(outcome).Inc()
}

func RecordBannerNotification() {
	bannerNotifications.Inc()
}
