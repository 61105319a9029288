package solver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/star/kinematics1d/internal/cache"
	"github.com/star/kinematics1d/internal/history"
	"github.com/star/kinematics1d/internal/kinematics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeRecorder collects saved resolutions in memory.
type fakeRecorder struct {
	mu      sync.Mutex
	sources []string
	err     error
}

func (f *fakeRecorder) Save(_ context.Context, source string, _ kinematics.MotionState, _ kinematics.Resolution) (history.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return history.Record{}, f.err
	}
	f.sources = append(f.sources, source)
	return history.Record{ID: "rec-1", Source: source}, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

func state(known map[kinematics.Quantity]float64) kinematics.MotionState {
	return kinematics.NewMotionState(known)
}

func newService(t *testing.T, rec Recorder) (*Service, *cache.ResolutionCache) {
	t.Helper()
	c := cache.NewResolutionCache(cache.Config{TTL: time.Minute, MaxEntries: 100}, testLogger())
	svc := NewService(Config{Workers: 4, DefaultPrecision: kinematics.DefaultPrecision, MaxBatch: 10}, c, rec, testLogger())
	return svc, c
}

func TestResolveUsesCache(t *testing.T) {
	svc, c := newService(t, nil)
	req := Request{State: state(map[kinematics.Quantity]float64{kinematics.Vi: 10, kinematics.Vf: 30, kinematics.T: 4})}

	first, err := svc.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.Cached {
		t.Error("first resolution should not be cached")
	}
	if first.Resolution.Solution.Dx != 80 {
		t.Errorf("Dx = %v, want 80", first.Resolution.Solution.Dx)
	}

	second, err := svc.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !second.Cached {
		t.Error("second resolution should come from the cache")
	}
	if second.Resolution.Solution != first.Resolution.Solution {
		t.Errorf("cached solution differs: %+v vs %+v", second.Resolution.Solution, first.Resolution.Solution)
	}
	if stats := c.Stats(); stats.Hits != 1 || stats.Entries != 1 {
		t.Errorf("cache stats = %+v", stats)
	}
}

func TestResolvePrecisionOverride(t *testing.T) {
	svc, _ := newService(t, nil)
	p := 2
	out, err := svc.Resolve(context.Background(), Request{
		State:     state(map[kinematics.Quantity]float64{kinematics.Dx: 225, kinematics.A: -1.8, kinematics.T: 12.75}),
		Precision: &p,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Resolution.Solution.VAvg != 17.65 {
		t.Errorf("v_avg = %v, want 17.65", out.Resolution.Solution.VAvg)
	}
	if out.Resolution.Precision != 2 {
		t.Errorf("precision = %d, want 2", out.Resolution.Precision)
	}
}

func TestResolveError(t *testing.T) {
	rec := &fakeRecorder{}
	svc, _ := newService(t, rec)

	out, err := svc.Resolve(context.Background(), Request{
		State: state(map[kinematics.Quantity]float64{kinematics.Vi: 1, kinematics.Vf: 2}),
	})
	if !errors.Is(err, kinematics.ErrInsufficientParameters) {
		t.Fatalf("err = %v, want ErrInsufficientParameters", err)
	}
	if out.Resolution != nil || out.Err != err {
		t.Errorf("outcome = %+v", out)
	}
	if rec.count() != 0 {
		t.Error("failed resolutions must not be recorded")
	}
}

func TestResolveRecordsHistory(t *testing.T) {
	rec := &fakeRecorder{}
	svc, _ := newService(t, rec)

	out, err := svc.Resolve(context.Background(), Request{
		Source: "live",
		State:  state(map[kinematics.Quantity]float64{kinematics.Vi: 0, kinematics.A: 2, kinematics.T: 3}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.RecordID != "rec-1" {
		t.Errorf("RecordID = %q, want rec-1", out.RecordID)
	}
	if rec.sources[0] != "live" {
		t.Errorf("source = %q, want live", rec.sources[0])
	}
}

// TestResolveHistoryFailure verifies a broken store does not fail resolution.
func TestResolveHistoryFailure(t *testing.T) {
	svc, _ := newService(t, &fakeRecorder{err: errors.New("disk full")})

	out, err := svc.Resolve(context.Background(), Request{
		State: state(map[kinematics.Quantity]float64{kinematics.Vi: 0, kinematics.A: 2, kinematics.T: 3}),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Resolution == nil || out.RecordID != "" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestResolveBatchOrder(t *testing.T) {
	svc, _ := newService(t, nil)

	reqs := []Request{
		{Label: "a", State: state(map[kinematics.Quantity]float64{kinematics.Vi: 1, kinematics.Vf: 3, kinematics.T: 2})},
		{Label: "b", State: state(map[kinematics.Quantity]float64{kinematics.Vi: 1})},
		{Label: "c", State: state(map[kinematics.Quantity]float64{kinematics.Vi: 2, kinematics.Vf: 6, kinematics.T: 2})},
		{Label: "d", State: state(map[kinematics.Quantity]float64{kinematics.Dx: 10, kinematics.A: 1, kinematics.VAvg: 2})},
		{Label: "e", State: state(map[kinematics.Quantity]float64{kinematics.Vi: 3, kinematics.Vf: 9, kinematics.T: 2})},
	}

	outcomes, ok, failed, err := svc.ResolveBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}
	if ok != 3 || failed != 2 {
		t.Errorf("ok/failed = %d/%d, want 3/2", ok, failed)
	}
	for i, out := range outcomes {
		if out.Label != reqs[i].Label {
			t.Errorf("outcome %d label = %q, want %q", i, out.Label, reqs[i].Label)
		}
	}
	if outcomes[2].Resolution.Solution.A != 2 {
		t.Errorf("c: a = %v, want 2", outcomes[2].Resolution.Solution.A)
	}
	if !errors.Is(outcomes[1].Err, kinematics.ErrInsufficientParameters) {
		t.Errorf("b: err = %v", outcomes[1].Err)
	}
	if !errors.Is(outcomes[3].Err, kinematics.ErrUnsupportedCombination) {
		t.Errorf("d: err = %v", outcomes[3].Err)
	}
}

func TestResolveBatchTooLarge(t *testing.T) {
	svc, _ := newService(t, nil)
	reqs := make([]Request, 11)
	_, _, _, err := svc.ResolveBatch(context.Background(), reqs)
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("err = %v, want ErrBatchTooLarge", err)
	}
}

func TestResolveBatchEmpty(t *testing.T) {
	svc, _ := newService(t, nil)
	outcomes, ok, failed, err := svc.ResolveBatch(context.Background(), nil)
	if err != nil || outcomes != nil || ok != 0 || failed != 0 {
		t.Errorf("got %v %d %d %v", outcomes, ok, failed, err)
	}
}

// TestWorkerPoolCancelled verifies every slot is filled after cancellation.
func TestWorkerPoolCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewWorkerPool(2, func(ctx context.Context, req Request) (Outcome, error) {
		return Outcome{Label: req.Label, Err: ctx.Err()}, ctx.Err()
	})

	reqs := make([]Request, 20)
	for i := range reqs {
		reqs[i].Label = string(rune('a' + i))
	}
	outcomes, ok, failed := pool.Run(ctx, reqs)
	if len(outcomes) != len(reqs) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(reqs))
	}
	if ok != 0 || failed != len(reqs) {
		t.Errorf("ok/failed = %d/%d", ok, failed)
	}
	for i, out := range outcomes {
		if !errors.Is(out.Err, context.Canceled) {
			t.Errorf("outcome %d err = %v, want context.Canceled", i, out.Err)
		}
	}
}

func TestNewServiceDefaults(t *testing.T) {
	svc := NewService(Config{}, nil, nil, testLogger())
	if svc.config.Workers < 1 {
		t.Errorf("workers = %d", svc.config.Workers)
	}
	if svc.MaxBatch() != 1000 {
		t.Errorf("MaxBatch = %d, want 1000", svc.MaxBatch())
	}
	if svc.Precision(nil) != 0 {
		t.Errorf("Precision(nil) = %d", svc.Precision(nil))
	}
}
