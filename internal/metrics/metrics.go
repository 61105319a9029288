package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kin1d_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kin1d_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kin1d_resolutions_total",
			Help: "Resolutions by combination and outcome.",
		},
		[]string{"combination", "outcome"},
	)

	resolveDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kin1d_resolve_duration_seconds",
			Help:    "Time spent in the resolver, cache misses only.",
			Buckets: []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3},
		},
	)

	batchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kin1d_batch_size",
			Help:    "Number of problems per batch request.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
	)

	solverWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kin1d_solver_workers",
		Help: "Configured batch worker pool size.",
	})

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kin1d_cache_hits_total",
		Help: "Resolution cache hits.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kin1d_cache_misses_total",
		Help: "Resolution cache misses.",
	})
	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kin1d_cache_evictions_total",
		Help: "Resolution cache entries evicted.",
	})
	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kin1d_cache_entries",
		Help: "Resolution cache entries currently held.",
	})

	historyWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kin1d_history_writes_total",
			Help: "History store writes by result.",
		},
		[]string{"result"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kin1d_streams_active",
		Help: "Open trajectory SSE streams.",
	})
	streamConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kin1d_stream_connections_total",
			Help: "Trajectory stream connect/disconnect events.",
		},
		[]string{"event"},
	)
	streamMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kin1d_stream_messages_total",
		Help: "SSE messages sent.",
	})
	streamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kin1d_stream_bytes_total",
		Help: "SSE bytes sent.",
	})
	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kin1d_stream_errors_total",
			Help: "Trajectory stream errors by reason.",
		},
		[]string{"reason"},
	)

	liveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kin1d_live_sessions_active",
		Help: "Open WebSocket sessions.",
	})
	liveMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kin1d_live_messages_total",
			Help: "WebSocket messages by direction.",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		resolutionsTotal,
		resolveDurationSeconds,
		batchSize,
		solverWorkers,
		cacheHits,
		cacheMisses,
		cacheEvictions,
		cacheEntries,
		historyWrites,
		streamsActive,
		streamConnections,
		streamMessages,
		streamBytes,
		streamErrors,
		liveSessions,
		liveMessages,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":                         true,
	"/healthz":                  true,
	"/readyz":                   true,
	"/metrics":                  true,
	"/app.js":                   true,
	"/styles.css":               true,
	"/api/v1/resolve":           true,
	"/api/v1/resolve/batch":     true,
	"/api/v1/combinations":      true,
	"/api/v1/about":             true,
	"/api/v1/stats":             true,
	"/api/v1/trajectory":        true,
	"/api/v1/resolutions":       true,
	"/api/v1/stream/trajectory": true,
	"/api/v1/live":              true,
}

const resolutionPrefix = "/api/v1/resolutions/"

// normalizeRoute maps a request path to a bounded set of labels so that
// per-record paths and scanner noise do not explode metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, resolutionPrefix) && len(path) > len(resolutionPrefix) &&
		!strings.Contains(path[len(resolutionPrefix):], "/") {
		return resolutionPrefix + "{id}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so SSE handlers behind the middleware can stream.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through so WebSocket upgrades work behind the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

// RecordResolution counts a resolver outcome. combination is empty when the
// inputs did not match any combination.
func RecordResolution(combination, outcome string) {
	if combination == "" {
		combination = "none"
	}
	resolutionsTotal.WithLabelValues(combination, outcome).Inc()
}

func ObserveResolveDuration(d time.Duration) { resolveDurationSeconds.Observe(d.Seconds()) }
func ObserveBatchSize(n int) { batchSize.Observe(float64(n)) }
func SetSolverWorkers(n int) { solverWorkers.Set(float64(n)) }

func IncCacheHits() { cacheHits.Inc() }
func IncCacheMisses() { cacheMisses.Inc() }
func AddCacheEvictions(n int) { cacheEvictions.Add(float64(n)) }
func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }
func IncHistoryWrites(r string) { historyWrites.WithLabelValues(r).Inc() }

func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }
func IncStreamConnections(event string) { streamConnections.WithLabelValues(event).Inc() }
func IncStreamMessages() { streamMessages.Inc() }
func AddStreamBytes(n int64) { streamBytes.Add(float64(n)) }
func IncStreamErrors(reason string) { streamErrors.WithLabelValues(reason).Inc() }

func IncLiveSessions() { liveSessions.Inc() }
func DecLiveSessions() { liveSessions.Dec() }
func IncLiveMessages(direction string) { liveMessages.WithLabelValues(direction).Inc() }
