// Package live serves interactive resolution over WebSocket. A client sends
// the quantities it knows and receives the full solution each time, which
// lets a form recalculate on every keystroke without a request per change.
//
// Client → server:
//
//	{"id":"7","values":{"vi":10,"vf":30,"t":4,"a":null},"precision":3}
//
// Server → client:
//
//	{"type":"resolution","id":"7","resolution":{...},"cached":false}
//	{"type":"error","id":"7","kind":"insufficient_parameters","error":"..."}
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/star/kinematics1d/internal/httputil"
	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/metrics"
	"github.com/star/kinematics1d/internal/solver"
)

// Config holds WebSocket session limits.
type Config struct {
	ReadLimit      int64         // Max inbound message size in bytes (default: 4096)
	PongWait       time.Duration // Read deadline extended by each pong (default: 60s)
	WriteWait      time.Duration // Deadline for a single write (default: 10s)
	AllowAnyOrigin bool          // Skip the same-origin check (development only)
	TrustProxy     bool

	MaxSessionsPerIP int // Concurrent sessions per client (default: 4)
	MaxSessions      int // Global session cap (default: 1000)
}

// Handler upgrades requests and runs one session per connection.
type Handler struct {
	solver   *solver.Service
	upgrader websocket.Upgrader
	limiter  *httputil.ConnLimiter
	config   Config
	logger   *slog.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(svc *solver.Service, config Config, logger *slog.Logger) *Handler {
	if config.ReadLimit <= 0 {
		config.ReadLimit = 4096
	}
	if config.PongWait <= 0 {
		config.PongWait = 60 * time.Second
	}
	if config.WriteWait <= 0 {
		config.WriteWait = 10 * time.Second
	}
	if config.MaxSessionsPerIP <= 0 {
		config.MaxSessionsPerIP = 4
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = 1000
	}

	h := &Handler{
		solver:  svc,
		limiter: httputil.NewConnLimiter(config.MaxSessionsPerIP, config.MaxSessions),
		config:  config,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	if config.AllowAnyOrigin {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return h
}

// request is one inbound message. A null value marks the quantity unknown.
type request struct {
	ID        string              `json:"id,omitempty"`
	Values    map[string]*float64 `json:"values"`
	Precision *int                `json:"precision,omitempty"`
}

type response struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id,omitempty"`
	Resolution *kinematics.Resolution `json:"resolution,omitempty"`
	Cached     bool                   `json:"cached,omitempty"`
	Kind       string                 `json:"kind,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// HandleLive upgrades the connection and serves it until the client leaves.
// GET /api/v1/live
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.Acquire(ip)
	if !ok {
		h.logger.Warn("live session limit exceeded", "remote_ip", ip, "current_count", h.limiter.Count(ip))
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many live sessions")
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	metrics.IncLiveSessions()
	start := time.Now()
	h.logger.Info("live session opened", "remote_ip", ip)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		conn.Close()
		metrics.DecLiveSessions()
		h.logger.Info("live session closed",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(start).Seconds()),
		)
	}()

	conn.SetReadLimit(h.config.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	go h.ping(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("live read error", "remote_ip", ip, "error", err)
			}
			return
		}
		metrics.IncLiveMessages("in")

		resp := h.handleMessage(ctx, data)
		conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
		if err := conn.WriteJSON(resp); err != nil {
			h.logger.Warn("live write error", "remote_ip", ip, "error", err)
			return
		}
		metrics.IncLiveMessages("out")
	}
}

// ping keeps the connection alive; WriteControl is safe alongside WriteJSON.
func (h *Handler) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.config.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.config.WriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, data []byte) response {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return response{Type: "error", Kind: "bad_message", Error: "message is not valid JSON"}
	}

	state, err := httputil.StateFromValues(req.Values)
	if err != nil {
		return errorResponse(req.ID, err)
	}

	out, err := h.solver.Resolve(ctx, solver.Request{
		Label:     req.ID,
		Source:    "live",
		State:     state,
		Precision: req.Precision,
	})
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return response{Type: "resolution", ID: req.ID, Resolution: out.Resolution, Cached: out.Cached}
}

func errorResponse(id string, err error) response {
	kind := kinematics.Kind(err)
	msg := err.Error()
	if !kinematics.IsInputError(err) {
		msg = "internal error"
		if errors.Is(err, context.Canceled) {
			msg = "session closed"
		}
	}
	return response{Type: "error", ID: id, Kind: kind, Error: msg}
}
