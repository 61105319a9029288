// Package trajectory samples a resolved motion over its duration.
package trajectory

import (
	"errors"
	"fmt"
	"math"

	"github.com/star/kinematics1d/internal/kinematics"
)

var (
	// ErrInvalidStep is returned for a non-positive or non-finite step.
	ErrInvalidStep = errors.New("sample step must be a positive number")

	// ErrNoDuration is returned when the motion's duration is not positive.
	ErrNoDuration = errors.New("motion has no positive duration to sample")

	// ErrTooManySamples is returned when the requested step would produce more
	// points than allowed.
	ErrTooManySamples = errors.New("too many samples")
)

// Point is the motion state at elapsed time T.
type Point struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
	V float64 `json:"v"`
	A float64 `json:"a"`
}

// At returns the state of sol at elapsed time tau.
func At(sol kinematics.Solution, tau float64) Point {
	return Point{
		T: tau,
		X: sol.Vi*tau + 0.5*sol.A*tau*tau,
		V: sol.Vi + sol.A*tau,
		A: sol.A,
	}
}

// Count returns how many points Sample would produce for step, or an error
// when the inputs cannot be sampled.
func Count(sol kinematics.Solution, step float64) (int, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStep, step)
	}
	if !(sol.T > 0) || math.IsInf(sol.T, 0) {
		return 0, fmt.Errorf("%w: t = %v", ErrNoDuration, sol.T)
	}
	// The tolerance absorbs division error such as 0.3/0.1 = 2.9999999999999996.
	intervals := math.Ceil(sol.T/step - 1e-9)
	if intervals > math.MaxInt32 {
		return 0, fmt.Errorf("%w: step %v over %v s", ErrTooManySamples, step, sol.T)
	}
	return int(intervals) + 1, nil
}

// Sample returns points at 0, step, 2·step and so on up to sol.T. The last
// point is always exactly at sol.T. limit bounds the number of points; zero or
// less means no bound.
func Sample(sol kinematics.Solution, step float64, limit int) ([]Point, error) {
	n, err := Count(sol, step)
	if err != nil {
		return nil, err
	}
	if limit > 0 && n > limit {
		return nil, fmt.Errorf("%w: %d points exceeds limit %d", ErrTooManySamples, n, limit)
	}

	points := make([]Point, n)
	for i := range points {
		tau := math.Min(float64(i)*step, sol.T)
		if i == n-1 {
			tau = sol.T
		}
		points[i] = At(sol, tau)
	}
	return points, nil
}
