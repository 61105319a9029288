package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/star/kinematics1d/internal/kinematics"
)

func tempDB(t *testing.T, maxRecords int) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"), maxRecords)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func resolve(t *testing.T, known map[kinematics.Quantity]float64) (kinematics.MotionState, kinematics.Resolution) {
	t.Helper()
	in := kinematics.NewMotionState(known)
	res, err := kinematics.Resolve(in, kinematics.DefaultPrecision)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return in, res
}

func TestSaveAndGet(t *testing.T) {
	s := tempDB(t, 0)
	ctx := context.Background()
	in, res := resolve(t, map[kinematics.Quantity]float64{kinematics.Dx: 225, kinematics.A: -1.8, kinematics.T: 12.75})

	rec, err := s.Save(ctx, "api", in, res)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected non-empty ID")
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Source != "api" {
		t.Errorf("source = %q, want api", got.Source)
	}
	if got.Resolution.Combination != kinematics.KnownDxAT {
		t.Errorf("combination = %s, want Dx,a,t", got.Resolution.Combination)
	}
	if got.Resolution.Solution != res.Solution {
		t.Errorf("solution = %+v, want %+v", got.Resolution.Solution, res.Solution)
	}
	if len(got.Resolution.Steps) != 3 || got.Resolution.Steps[1].Quantity != kinematics.Vf {
		t.Errorf("steps = %+v", got.Resolution.Steps)
	}
	if got.Inputs.Known() != kinematics.SetOf(kinematics.Dx, kinematics.A, kinematics.T) {
		t.Errorf("inputs known = %s", got.Inputs.Known())
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not decoded")
	}
}

func TestGetNotFound(t *testing.T) {
	s := tempDB(t, 0)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestListNewestFirst verifies ordering and the limit.
func TestListNewestFirst(t *testing.T) {
	s := tempDB(t, 0)
	ctx := context.Background()

	var ids []string
	for _, vi := range []float64{1, 2, 3} {
		in, res := resolve(t, map[kinematics.Quantity]float64{kinematics.Vi: vi, kinematics.Vf: 10, kinematics.T: 2})
		rec, err := s.Save(ctx, "batch", in, res)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}

	recs, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID != ids[2] || recs[1].ID != ids[1] {
		t.Errorf("order = [%s %s], want [%s %s]", recs[0].ID, recs[1].ID, ids[2], ids[1])
	}
}

// TestPruneKeepsNewest verifies the table is trimmed to maxRecords on save.
func TestPruneKeepsNewest(t *testing.T) {
	s := tempDB(t, 2)
	ctx := context.Background()

	var last string
	for i := 0; i < 5; i++ {
		in, res := resolve(t, map[kinematics.Quantity]float64{kinematics.Vi: float64(i), kinematics.A: 1, kinematics.T: 1})
		rec, err := s.Save(ctx, "api", in, res)
		if err != nil {
			t.Fatal(err)
		}
		last = rec.ID
	}

	recs, err := s.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID != last {
		t.Errorf("newest record %s missing", last)
	}
}

func TestPing(t *testing.T) {
	s := tempDB(t, 0)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
