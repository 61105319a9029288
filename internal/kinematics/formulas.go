package kinematics

import "math"

// values is the working set of a resolution, indexed by Quantity.
type values [numQuantities]float64

// derivation computes one quantity from others already present in values.
type derivation struct {
	target  Quantity
	formula string
	eval    func(v *values) float64
}

// Formulas are LaTeX rows meant to sit inside an aligned environment.
var (
	avgFromEnds = derivation{VAvg, `v_{avg} &= \frac{\left( v_{i} + v_{f} \right)}{2}`,
		func(v *values) float64 { return 0.5 * (v[Vi] + v[Vf]) }}

	avgFromDisplacement = derivation{VAvg, `v_{avg} &= \frac{\Delta x}{t}`,
		func(v *values) float64 { return v[Dx] / v[T] }}

	displacementFromAvg = derivation{Dx, `\Delta x &= v_{avg} t`,
		func(v *values) float64 { return v[VAvg] * v[T] }}

	accelFromEnds = derivation{A, `a &= \frac{\left( v_{f} - v_{i} \right)}{t}`,
		func(v *values) float64 { return (v[Vf] - v[Vi]) / v[T] }}

	timeFromEnds = derivation{T, `t &= \frac{\left( v_{f} - v_{i} \right)}{a}`,
		func(v *values) float64 { return (v[Vf] - v[Vi]) / v[A] }}

	timeFromAvg = derivation{T, `t &= \frac{\Delta x}{v_{avg}}`,
		func(v *values) float64 { return v[Dx] / v[VAvg] }}

	finalFromInitial = derivation{Vf, `v_{f} &= v_{i} + a t`,
		func(v *values) float64 { return v[Vi] + v[A]*v[T] }}

	initialFromFinal = derivation{Vi, `v_{i} &= v_{f} - a t`,
		func(v *values) float64 { return v[Vf] - v[A]*v[T] }}

	finalFromAvgAccel = derivation{Vf, `v_{f} &= v_{avg} + \frac{1}{2} a t`,
		func(v *values) float64 { return v[VAvg] + 0.5*v[A]*v[T] }}

	initialFromAvgAccel = derivation{Vi, `v_{i} &= v_{avg} - \frac{1}{2} a t`,
		func(v *values) float64 { return v[VAvg] - 0.5*v[A]*v[T] }}

	finalFromAvg = derivation{Vf, `v_{f} &= 2 v_{avg} - v_{i}`,
		func(v *values) float64 { return 2*v[VAvg] - v[Vi] }}

	initialFromAvg = derivation{Vi, `v_{i} &= 2 v_{avg} - v_{f}`,
		func(v *values) float64 { return 2*v[VAvg] - v[Vf] }}

	finalFromDisplacement = derivation{Vf, `v_{f}^{2} &= v_{i}^{2} + 2 a \Delta x`,
		func(v *values) float64 {
			vf := math.Sqrt(v[Vi]*v[Vi] + 2*v[A]*v[Dx])
			if incoherent(v[A], v[Vi], vf) {
				vf = -vf
			}
			return vf
		}}

	initialFromDisplacement = derivation{Vi, `v_{i}^{2} &= v_{f}^{2} - 2 a \Delta x`,
		func(v *values) float64 {
			vi := math.Sqrt(v[Vf]*v[Vf] - 2*v[A]*v[Dx])
			if incoherent(v[A], vi, v[Vf]) {
				vi = -vi
			}
			return vi
		}}
)

// incoherent reports whether the velocity change vi → vf points against the
// acceleration. The quadratic relation only yields |v|, so the root it
// produced is negated when this holds.
func incoherent(a, vi, vf float64) bool {
	return (a > 0 && vf < vi) || (a < 0 && vf > vi)
}
