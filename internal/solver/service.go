// Package solver runs the kinematics resolver for the HTTP, WebSocket and CLI
// front ends. It adds memoization, history recording, metrics and a worker
// pool for batches on top of the pure resolver.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/star/kinematics1d/internal/cache"
	"github.com/star/kinematics1d/internal/history"
	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/metrics"
)

// Recorder persists resolutions. *history.Store satisfies it.
type Recorder interface {
	Save(ctx context.Context, source string, inputs kinematics.MotionState, res kinematics.Resolution) (history.Record, error)
}

// Service orchestrates resolution requests.
type Service struct {
	cache   *cache.ResolutionCache // nil disables memoization
	history Recorder               // nil disables recording
	pool    *WorkerPool
	config  Config
	logger  *slog.Logger
}

// NewService creates a solver. c and h may be nil.
func NewService(config Config, c *cache.ResolutionCache, h Recorder, logger *slog.Logger) *Service {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.MaxBatch <= 0 {
		config.MaxBatch = 1000
	}
	metrics.SetSolverWorkers(config.Workers)

	s := &Service{
		cache:   c,
		history: h,
		config:  config,
		logger:  logger,
	}
	s.pool = NewWorkerPool(config.Workers, s.Resolve)
	return s
}

// Precision returns p, or the configured default when p is nil.
func (s *Service) Precision(p *int) int {
	if p == nil {
		return s.config.DefaultPrecision
	}
	return *p
}

// MaxBatch returns the configured batch limit.
func (s *Service) MaxBatch() int {
	return s.config.MaxBatch
}

// Resolve resolves a single request. Resolver errors are returned as-is so
// callers can classify them with kinematics.Kind; the outcome's Err carries
// the same value.
func (s *Service) Resolve(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{Label: req.Label}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out, err
	}

	precision := s.Precision(req.Precision)
	key := cache.Key(req.State, precision)

	if s.cache != nil {
		if res, ok := s.cache.Get(key); ok {
			metrics.RecordResolution(res.Combination.String(), "cached")
			out.Resolution = &res
			out.Cached = true
			s.record(ctx, req, &out)
			return out, nil
		}
	}

	start := time.Now()
	res, err := kinematics.Resolve(req.State, precision)
	metrics.ObserveResolveDuration(time.Since(start))

	if err != nil {
		kind := kinematics.Kind(err)
		metrics.RecordResolution("", kind)
		s.logger.Debug("resolution rejected",
			"label", req.Label,
			"known", req.State.Known().String(),
			"kind", kind,
			"error", err,
		)
		out.Err = err
		return out, err
	}

	metrics.RecordResolution(res.Combination.String(), "ok")
	if s.cache != nil {
		s.cache.Put(key, res)
	}

	s.logger.Debug("resolved",
		"label", req.Label,
		"combination", res.Combination.String(),
		"precision", precision,
	)

	out.Resolution = &res
	s.record(ctx, req, &out)
	return out, nil
}

// record appends a successful outcome to history. Failures are logged and
// never fail the resolution.
func (s *Service) record(ctx context.Context, req Request, out *Outcome) {
	if s.history == nil {
		return
	}
	source := req.Source
	if source == "" {
		source = "api"
	}
	rec, err := s.history.Save(ctx, source, req.State, *out.Resolution)
	if err != nil {
		metrics.IncHistoryWrites("error")
		s.logger.Warn("history write failed", "source", source, "error", err)
		return
	}
	metrics.IncHistoryWrites("ok")
	out.RecordID = rec.ID
}

// ResolveBatch resolves reqs on the worker pool. Outcomes are returned in
// request order along with success and failure counts. The only error is
// ErrBatchTooLarge; per-problem failures are reported in each Outcome.
func (s *Service) ResolveBatch(ctx context.Context, reqs []Request) ([]Outcome, int, int, error) {
	if len(reqs) > s.config.MaxBatch {
		return nil, 0, 0, fmt.Errorf("%w: %d problems, limit %d", ErrBatchTooLarge, len(reqs), s.config.MaxBatch)
	}
	if len(reqs) == 0 {
		return nil, 0, 0, nil
	}

	metrics.ObserveBatchSize(len(reqs))

	start := time.Now()
	outcomes, ok, failed := s.pool.Run(ctx, reqs)
	duration := time.Since(start)

	s.logger.Info("batch resolved",
		"problems", len(reqs),
		"ok", ok,
		"failed", failed,
		"workers", s.config.Workers,
		"duration_ms", duration.Milliseconds(),
	)

	return outcomes, ok, failed, nil
}
