package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fortify",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests by route template, method and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	sessionsLogged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fortify",
		Subsystem: "sessions",
		Name:      "logged_total",
		Help:      "Number of practice sessions logged, by quality rating.",
	}, []string{"quality"})

	tempoSuggestions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fortify",
		Subsystem: "tempo",
		Name:      "suggestions_total",
		Help:      "Number of tempo suggestions computed, split by cold start vs progression.",
	}, []string{"source"})

	statsCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fortify",
		Subsystem: "dashboard",
		Name:      "cache_lookups_total",
		Help:      "Dashboard stats cache lookups by result.",
	}, []string{"result"})

	eventPublishErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fortify",
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Number of domain events that could not be published.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(httpRequestDuration, sessionsLogged, tempoSuggestions, statsCacheLookups, eventPublishErrors)
}

// Tempo suggestion sources.
const (
	SourceColdStart   = "cold_start"
	SourceProgression = "progression"
)

// ObserveRequest records one served HTTP request.
func ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func RecordSessionLogged(quality int) {
	sessionsLogged.WithLabelValues(strconv.Itoa(quality)).Inc()
}

func RecordTempoSuggestion(source string) {
	tempoSuggestions.WithLabelValues(source).Inc()
}

// RecordCacheLookup counts a dashboard cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	statsCacheLookups.WithLabelValues(result).Inc()
}

func RecordPublishError(eventType string) {
	eventPublishErrors.WithLabelValues(eventType).Inc()
}
