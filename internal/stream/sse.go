// Package stream plays a resolved motion back over Server-Sent Events (SSE).
// Clients connect via GET /api/v1/stream/trajectory with the known quantities
// as query parameters and receive the sampled trajectory in real time, scaled
// by the playback rate.
//
// SSE message format:
//
//	data: {"type":"sample","i":3,"t":1.5,"x":20.6,"v":17.5,"a":5}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","combination":"vi,vf,t","known":["vi","vf","t"],"formulas":[...],"result":{...},"samples":41,"step":0.1,"rate":1}\n\n
//
// The stream ends with {"type":"done","samples":41}. Keep-alive comments
// (:\n\n) are sent every KeepaliveInterval while waiting between samples.
package stream

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/star/kinematics1d/internal/httputil"
	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/metrics"
	"github.com/star/kinematics1d/internal/solver"
	"github.com/star/kinematics1d/internal/trajectory"
)

// DefaultSamples is the number of intervals used when the client sends no step.
const DefaultSamples = 100

const (
	maxRate         = 1000.0
	minSendInterval = time.Millisecond
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10)
	MaxConcurrent      int           // Global stream cap (default: 1000)
	KeepaliveInterval  time.Duration // Keep-alive comment interval (default: 30s)
	MaxSamples         int           // Upper bound on points per stream (default: 10000)
	TrustProxy         bool          // Read client IP from X-Forwarded-For
}

// Handler manages SSE streaming connections.
type Handler struct {
	solver  *solver.Service
	config  Config
	limiter *httputil.ConnLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(svc *solver.Service, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1000
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.MaxSamples <= 0 {
		config.MaxSamples = 10000
	}
	return &Handler{
		solver:  svc,
		config:  config,
		limiter: httputil.NewConnLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

// Plan is a resolved and sampled motion ready to send.
type Plan struct {
	Resolution kinematics.Resolution
	Step       float64
	Points     []trajectory.Point
}

// PlanTrajectory resolves the query's known quantities and samples the
// motion. step defaults to a hundredth of the duration. It is shared with
// the non-streaming trajectory endpoint.
func PlanTrajectory(r *http.Request, svc *solver.Service, source string, maxSamples int) (Plan, error) {
	q := r.URL.Query()
	state, err := httputil.StateFromQuery(q, "precision", "step", "rate")
	if err != nil {
		return Plan{}, err
	}
	precision, err := httputil.IntParam(q, "precision")
	if err != nil {
		return Plan{}, err
	}
	step, err := httputil.FloatParam(q, "step", 0)
	if err != nil {
		return Plan{}, err
	}

	out, err := svc.Resolve(r.Context(), solver.Request{Source: source, State: state, Precision: precision})
	if err != nil {
		return Plan{}, err
	}
	res := *out.Resolution

	if q.Get("step") == "" {
		step = res.Solution.T / DefaultSamples
	}
	points, err := trajectory.Sample(res.Solution, step, maxSamples)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Resolution: res, Step: step, Points: points}, nil
}

// HandleTrajectory serves the SSE trajectory stream.
// GET /api/v1/stream/trajectory?vi=0&a=2&t=10&step=0.5&rate=2
func (h *Handler) HandleTrajectory(w http.ResponseWriter, r *http.Request) {
	rate, err := httputil.FloatParam(r.URL.Query(), "rate", 1)
	if err != nil || !(rate > 0) || rate > maxRate {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorBody{
			Error: fmt.Sprintf("invalid rate parameter, must be in (0, %g]", maxRate),
			Kind:  "bad_parameter",
		})
		return
	}

	plan, err := PlanTrajectory(r, h.solver, "stream", h.config.MaxSamples)
	if err != nil {
		httputil.WriteInputError(w, err, h.config.MaxSamples)
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.Acquire(ip)
	if !ok {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.Count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"combination", plan.Resolution.Combination.String(),
		"samples", len(plan.Points),
		"rate", rate,
		"active_streams", h.limiter.Active(),
	)

	// Cleanup on disconnect: release rate limit slot and update metrics.
	defer func() {
		release()
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	retryMs := 3000 + rand.Intn(4000)
	if err := c.sendRetry(retryMs); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	if err := c.sendJSON(buildMetadataMessage(plan, rate)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	interval := time.Duration(plan.Step / rate * float64(time.Second))
	if interval < minSendInterval {
		interval = minSendInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	next := 0
	send := func() bool {
		if err := c.sendJSON(buildSampleMessage(next, plan.Points[next])); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return false
		}
		next++
		keepaliveTicker.Reset(h.config.KeepaliveInterval)
		return true
	}

	// The first sample goes out immediately; the rest are paced.
	if !send() {
		return
	}
	for next < len(plan.Points) {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !send() {
				return
			}

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}

	if err := c.sendJSON(doneMessage{Type: "done", Samples: len(plan.Points)}); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (done)", "remote_ip", ip, "error", err)
	}
}

func buildMetadataMessage(plan Plan, rate float64) metadataMessage {
	res := plan.Resolution
	return metadataMessage{
		Type:        "metadata",
		Combination: res.Combination,
		Known:       res.Known,
		Formulas:    res.Formulas(),
		Result:      res.Solution,
		Samples:     len(plan.Points),
		Step:        plan.Step,
		Rate:        rate,
	}
}

func buildSampleMessage(i int, p trajectory.Point) sampleMessage {
	return sampleMessage{Type: "sample", Index: i, Point: p}
}

// SSE message payload types.

type metadataMessage struct {
	Type        string                 `json:"type"`
	Combination kinematics.Combination `json:"combination"`
	Known       kinematics.QuantitySet `json:"known"`
	Formulas    []string               `json:"formulas"`
	Result      kinematics.Solution    `json:"result"`
	Samples     int                    `json:"samples"`
	Step        float64                `json:"step"`
	Rate        float64                `json:"rate"`
}

type sampleMessage struct {
	Type  string `json:"type"`
	Index int    `json:"i"`
	trajectory.Point
}

type doneMessage struct {
	Type    string `json:"type"`
	Samples int    `json:"samples"`
}
