package kinematics

import (
	"fmt"
	"math"
)

// MotionState holds the quantities known before resolution. A nil field is
// unknown. A MotionState is never modified by the resolver.
type MotionState struct {
	Dx   *float64 `json:"Dx,omitempty"`
	A    *float64 `json:"a,omitempty"`
	VAvg *float64 `json:"v_avg,omitempty"`
	Vi   *float64 `json:"vi,omitempty"`
	Vf   *float64 `json:"vf,omitempty"`
	T    *float64 `json:"t,omitempty"`
}

// NewMotionState builds a state from quantity/value pairs.
func NewMotionState(values map[Quantity]float64) MotionState {
	var s MotionState
	for q, v := range values {
		s = s.With(q, v)
	}
	return s
}

// StateFromNames builds a state from a name → value mapping, accepting the
// spellings understood by ParseQuantity. Two names resolving to the same
// quantity is an error.
func StateFromNames(values map[string]float64) (MotionState, error) {
	var s MotionState
	for name, v := range values {
		q, err := ParseQuantity(name)
		if err != nil {
			return MotionState{}, err
		}
		if _, ok := s.Get(q); ok {
			return MotionState{}, fmt.Errorf("%w: %s given twice", ErrInvalidValue, q)
		}
		s = s.With(q, v)
	}
	return s, nil
}

func (s *MotionState) field(q Quantity) **float64 {
	switch q {
	case Dx:
		return &s.Dx
	case A:
		return &s.A
	case VAvg:
		return &s.VAvg
	case Vi:
		return &s.Vi
	case Vf:
		return &s.Vf
	case T:
		return &s.T
	}
	panic(fmt.Sprintf("kinematics: invalid quantity %d", uint8(q)))
}

// Get returns the value of q and whether it is known.
func (s MotionState) Get(q Quantity) (float64, bool) {
	p := *s.field(q)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// With returns a copy of s with q set to v.
func (s MotionState) With(q Quantity, v float64) MotionState {
	*s.field(q) = &v
	return s
}

// Known returns the set of known quantities.
func (s MotionState) Known() QuantitySet {
	var set QuantitySet
	for _, q := range Quantities {
		if _, ok := s.Get(q); ok {
			set = set.With(q)
		}
	}
	return set
}

// Validate rejects known values that are NaN or infinite.
func (s MotionState) Validate() error {
	for _, q := range Quantities {
		if v, ok := s.Get(q); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidValue, q, v)
		}
	}
	return nil
}

// Solution is a fully-resolved motion: every quantity has a value.
type Solution struct {
	Dx   float64 `json:"Dx"`
	A    float64 `json:"a"`
	VAvg float64 `json:"v_avg"`
	Vi   float64 `json:"vi"`
	Vf   float64 `json:"vf"`
	T    float64 `json:"t"`
}

// Get returns the value of q.
func (s Solution) Get(q Quantity) float64 {
	switch q {
	case Dx:
		return s.Dx
	case A:
		return s.A
	case VAvg:
		return s.VAvg
	case Vi:
		return s.Vi
	case Vf:
		return s.Vf
	case T:
		return s.T
	}
	panic(fmt.Sprintf("kinematics: invalid quantity %d", uint8(q)))
}

// Map returns the solution keyed by canonical quantity name.
func (s Solution) Map() map[string]float64 {
	m := make(map[string]float64, numQuantities)
	for _, q := range Quantities {
		m[q.String()] = s.Get(q)
	}
	return m
}

// State returns the solution as a MotionState with every quantity known.
func (s Solution) State() MotionState {
	var st MotionState
	for _, q := range Quantities {
		st = st.With(q, s.Get(q))
	}
	return st
}

// Subset returns a MotionState holding only the quantities in set.
func (s Solution) Subset(set QuantitySet) MotionState {
	var st MotionState
	for _, q := range set.Slice() {
		st = st.With(q, s.Get(q))
	}
	return st
}
