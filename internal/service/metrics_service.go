package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a lightweight summary of the process counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	AssignmentsTotal         uint64    `json:"assignments_total"`
	UncoveredTotal           uint64    `json:"uncovered_total"`
	SessionsPlacedTotal      uint64    `json:"sessions_placed_total"`
	UnresolvedTotal          uint64    `json:"unresolved_total"`
	NotificationsSent        uint64    `json:"notifications_sent"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and
// allocation activity.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	assignments     prometheus.Counter
	uncovered       prometheus.Counter
	sessionsPlaced  prometheus.Counter
	unresolved      *prometheus.CounterVec
	searchAttempts  prometheus.Histogram
	notifications   *prometheus.CounterVec
	confirmations   prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	assignmentCount      uint64
	uncoveredCount       uint64
	sessionCount         uint64
	unresolvedCount      uint64
	notificationCount    uint64
}

// NewMetricsService registers collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache reads",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "standby_assignments_total",
			Help: "Waiting assignments created by the substitute allocator",
		}),
		uncovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "standby_uncovered_periods_total",
			Help: "Periods left uncovered because the eligible pool was exhausted",
		}),
		sessionsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_sessions_placed_total",
			Help: "Class sessions placed by the timetable generator",
		}),
		unresolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_unresolved_demand_total",
			Help: "Demand the timetable generator could not place",
		}, []string{"reason"}),
		searchAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetable_slot_search_attempts",
			Help:    "Random slot draws per generation run",
			Buckets: prometheus.ExponentialBuckets(16, 2, 10),
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "standby_notifications_total",
			Help: "Substitute notifications by channel and result",
		}, []string{"channel", "result"}),
		confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "standby_confirmations_total",
			Help: "Assignments confirmed by the substitute",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheHitRatio, m.cacheLookups,
		m.assignments, m.uncovered, m.sessionsPlaced, m.unresolved, m.searchAttempts,
		m.notifications, m.confirmations, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	if ratio, ok := m.hitRatio(); ok {
		m.cacheHitRatio.Set(ratio)
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordAllocation counts the outcome of one substitute allocation.
func (m *MetricsService) RecordAllocation(assigned, uncovered int) {
	if m == nil {
		return
	}
	m.assignments.Add(float64(assigned))
	m.uncovered.Add(float64(uncovered))
	atomic.AddUint64(&m.assignmentCount, uint64(assigned))
	atomic.AddUint64(&m.uncoveredCount, uint64(uncovered))
}

// RecordGeneration counts the outcome of one timetable generation.
func (m *MetricsService) RecordGeneration(result TimetableResult) {
	if m == nil {
		return
	}
	m.sessionsPlaced.Add(float64(len(result.Sessions)))
	for _, u := range result.Unresolved {
		m.unresolved.WithLabelValues(u.Reason).Inc()
	}
	m.searchAttempts.Observe(float64(result.Attempts))
	atomic.AddUint64(&m.sessionCount, uint64(len(result.Sessions)))
	atomic.AddUint64(&m.unresolvedCount, uint64(len(result.Unresolved)))
}

// RecordNotification counts a delivery attempt.
func (m *MetricsService) RecordNotification(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	} else {
		atomic.AddUint64(&m.notificationCount, 1)
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

// RecordConfirmation counts a substitute confirmation.
func (m *MetricsService) RecordConfirmation() {
	if m == nil {
		return
	}
	m.confirmations.Inc()
}

func (m *MetricsService) hitRatio() (float64, bool) {
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}

// Snapshot returns aggregated counters for the metrics endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(atomic.LoadUint64(&m.requestDurationTotal)) / float64(requests) / float64(time.Millisecond)
	}
	ratio, _ := m.hitRatio()

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHitRatio:            ratio,
		AssignmentsTotal:         atomic.LoadUint64(&m.assignmentCount),
		UncoveredTotal:           atomic.LoadUint64(&m.uncoveredCount),
		SessionsPlacedTotal:      atomic.LoadUint64(&m.sessionCount),
		UnresolvedTotal:          atomic.LoadUint64(&m.unresolvedCount),
		NotificationsSent:        atomic.LoadUint64(&m.notificationCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
