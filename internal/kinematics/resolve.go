package kinematics

import (
	"fmt"
	"math"
)

// DefaultPrecision is the number of decimal digits results are rounded to
// when the caller does not ask for anything else.
const DefaultPrecision = 5

// maxPrecision bounds rounding; beyond it float64 carries no more digits.
const maxPrecision = 15

// Step records one derivation applied during resolution.
type Step struct {
	Quantity Quantity `json:"quantity"`
	Formula  string   `json:"formula"`
}

// Resolution is the result of resolving a MotionState.
type Resolution struct {
	Combination Combination `json:"combination"`
	Known       QuantitySet `json:"known"`
	Precision   int         `json:"precision"`
	Solution    Solution    `json:"result"`
	Steps       []Step      `json:"steps"`
}

// Formulas returns the trace as plain formula strings, in derivation order.
func (r Resolution) Formulas() []string {
	out := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Formula
	}
	return out
}

// Resolve derives the unknown quantities of s.
//
// The known set must match one of the recognized combinations exactly. Values
// are carried at full precision through the chain; only the returned solution
// is rounded to precision digits.
func Resolve(s MotionState, precision int) (Resolution, error) {
	if err := s.Validate(); err != nil {
		return Resolution{}, err
	}

	known := s.Known()
	combo, err := Match(known)
	if err != nil {
		return Resolution{}, err
	}

	var v values
	for _, q := range known.Slice() {
		v[q], _ = s.Get(q)
	}

	chain := combos[combo].chain
	steps := make([]Step, 0, len(chain))
	for _, d := range chain {
		x := d.eval(&v)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Resolution{}, fmt.Errorf("%w: %s evaluates to %v from known %s", ErrDegenerateMotion, d.target, x, combo)
		}
		v[d.target] = x
		steps = append(steps, Step{Quantity: d.target, Formula: d.formula})
	}

	return Resolution{
		Combination: combo,
		Known:       known,
		Precision:   precision,
		Solution: Solution{
			Dx:   Round(v[Dx], precision),
			A:    Round(v[A], precision),
			VAvg: Round(v[VAvg], precision),
			Vi:   Round(v[Vi], precision),
			Vf:   Round(v[Vf], precision),
			T:    Round(v[T], precision),
		},
		Steps: steps,
	}, nil
}

// ResolveValues resolves a name → value mapping. Names are parsed with
// ParseQuantity.
func ResolveValues(known map[string]float64, precision int) (Resolution, error) {
	s, err := StateFromNames(known)
	if err != nil {
		return Resolution{}, err
	}
	return Resolve(s, precision)
}

// Round rounds v to digits decimal places, half to even. Negative digits
// round to tens, hundreds and so on. Negative zero is normalized to zero.
func Round(v float64, digits int) float64 {
	if digits > maxPrecision || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	var r float64
	if digits < 0 {
		p := math.Pow(10, float64(-digits))
		if math.IsInf(p, 0) {
			return 0
		}
		r = math.RoundToEven(v/p) * p
	} else {
		p := math.Pow(10, float64(digits))
		scaled := v * p
		if math.IsInf(scaled, 0) {
			return v
		}
		r = math.RoundToEven(scaled) / p
	}
	if r == 0 {
		return 0
	}
	return r
}
