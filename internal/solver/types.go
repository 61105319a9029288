package solver

import (
	"errors"

	"github.com/star/kinematics1d/internal/kinematics"
)

// ErrBatchTooLarge is returned when a batch exceeds Config.MaxBatch.
var ErrBatchTooLarge = errors.New("batch too large")

// Config holds solver configuration loaded from environment variables.
type Config struct {
	Workers          int // Batch worker pool size (default: NumCPU)
	DefaultPrecision int // Digits used when a request names none
	MaxBatch         int // Upper bound on problems per batch (default: 1000)
}

// Request is one problem to resolve.
type Request struct {
	Label     string // Optional caller-supplied name, echoed in the outcome
	Source    string // Where the request came from (api, batch, live, cli)
	State     kinematics.MotionState
	Precision *int // nil uses Config.DefaultPrecision
}

// Outcome is the result of one Request. Exactly one of Resolution and Err is
// set.
type Outcome struct {
	Label      string
	Resolution *kinematics.Resolution
	RecordID   string // History ID, empty when history is disabled
	Cached     bool
	Err        error
}
