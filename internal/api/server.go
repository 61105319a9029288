package api

import (
	"bufio"
	"context"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/star/kinematics1d/internal/auth"
	"github.com/star/kinematics1d/internal/cache"
	"github.com/star/kinematics1d/internal/health"
	"github.com/star/kinematics1d/internal/history"
	"github.com/star/kinematics1d/internal/httputil"
	"github.com/star/kinematics1d/internal/live"
	"github.com/star/kinematics1d/internal/metrics"
	"github.com/star/kinematics1d/internal/solver"
	"github.com/star/kinematics1d/internal/stream"
)

// About describes the deployment to the web UI.
type About struct {
	AppURL           string `json:"app_url"`
	OnCloud          bool   `json:"on_cloud"`
	DefaultPrecision int    `json:"default_precision"`
	Combinations     int    `json:"combinations"`
}

// Options carries the server's dependencies. History, Cache and Static may be
// nil.
type Options struct {
	Auth       auth.Config
	TrustProxy bool
	MaxSamples int

	Solver  *solver.Service
	Cache   *cache.ResolutionCache
	History *history.Store
	Stream  *stream.Handler
	Live    *live.Handler
	Static  fs.FS
	About   About
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, opts Options) *Server {
	mux := http.NewServeMux()
	h := &handlers{
		solver:     opts.Solver,
		cache:      opts.Cache,
		history:    opts.History,
		maxSamples: opts.MaxSamples,
		about:      opts.About,
		logger:     logger,
	}

	var checks []health.Check
	if opts.History != nil {
		checks = append(checks, opts.History.Ping)
	}

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(logger, checks...))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/resolve", h.resolveQuery)
	mux.HandleFunc("POST /api/v1/resolve", h.resolveBody)
	mux.HandleFunc("POST /api/v1/resolve/batch", h.resolveBatch)
	mux.HandleFunc("GET /api/v1/combinations", h.combinations)
	mux.HandleFunc("GET /api/v1/trajectory", h.trajectory)
	mux.HandleFunc("GET /api/v1/resolutions", h.listResolutions)
	mux.HandleFunc("GET /api/v1/resolutions/{id}", h.getResolution)
	mux.HandleFunc("GET /api/v1/about", h.aboutInfo)
	mux.HandleFunc("GET /api/v1/stats", h.stats)

	if opts.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/trajectory", opts.Stream.HandleTrajectory)
	}
	if opts.Live != nil {
		mux.HandleFunc("GET /api/v1/live", opts.Live.HandleLive)
	}
	if opts.Static != nil {
		mux.Handle("GET /", http.FileServerFS(opts.Static))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(opts.Auth)(handler)
	handler = loggingMiddleware(logger, opts.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(sr.ResponseWriter).Hijack()
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
