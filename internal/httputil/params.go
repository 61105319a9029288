package httputil

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/star/kinematics1d/internal/kinematics"
)

// ErrBadParameter is returned for a query parameter that does not parse.
var ErrBadParameter = errors.New("invalid parameter")

// StateFromQuery builds a MotionState from query parameters. Every parameter
// not listed in reserved must name a quantity. Empty values mean unknown.
func StateFromQuery(q url.Values, reserved ...string) (kinematics.MotionState, error) {
	skip := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		skip[r] = true
	}

	var s kinematics.MotionState
	for name, vals := range q {
		if skip[name] {
			continue
		}
		qty, err := kinematics.ParseQuantity(name)
		if err != nil {
			return kinematics.MotionState{}, err
		}
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		if len(vals) > 1 {
			return kinematics.MotionState{}, fmt.Errorf("%w: %s given %d times", kinematics.ErrInvalidValue, qty, len(vals))
		}
		if _, dup := s.Get(qty); dup {
			return kinematics.MotionState{}, fmt.Errorf("%w: %s given twice", kinematics.ErrInvalidValue, qty)
		}
		v, err := strconv.ParseFloat(vals[0], 64)
		if err != nil {
			return kinematics.MotionState{}, fmt.Errorf("%w: %s=%q is not a number", kinematics.ErrInvalidValue, name, vals[0])
		}
		s = s.With(qty, v)
	}
	return s, nil
}

// IntParam returns the named query parameter as an int, or nil when absent.
func IntParam(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q is not an integer", ErrBadParameter, name, v)
	}
	return &n, nil
}

// FloatParam returns the named query parameter as a float64, or def when
// absent.
func FloatParam(q url.Values, name string, def float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrBadParameter, name, v)
	}
	return f, nil
}

// StateFromValues builds a MotionState from a JSON-style mapping where null
// marks a quantity unknown. Names, including those mapped to null, must be
// quantities.
func StateFromValues(values map[string]*float64) (kinematics.MotionState, error) {
	known := make(map[string]float64, len(values))
	for name, v := range values {
		if v == nil {
			if _, err := kinematics.ParseQuantity(name); err != nil {
				return kinematics.MotionState{}, err
			}
			continue
		}
		known[name] = *v
	}
	return kinematics.StateFromNames(known)
}
