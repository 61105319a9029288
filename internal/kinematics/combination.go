package kinematics

import (
	"fmt"
	"strings"
)

// Combination is one of the sixteen recognized sets of known quantities.
// The zero value is not a valid combination.
type Combination uint8

const (
	KnownViVfT Combination = iota + 1
	KnownViVfA
	KnownViVfDx
	KnownDxAT
	KnownViAT
	KnownVfAT
	KnownViADx
	KnownVfADx
	KnownViVAvgT
	KnownVfVAvgT
	KnownViVAvgA
	KnownVfVAvgA
	KnownViVAvgDx
	KnownVfVAvgDx
	KnownViDxT
	KnownVfDxT

	numCombinations = int(KnownVfDxT)
)

const (
	bDx   QuantitySet = 1 << Dx
	bA    QuantitySet = 1 << A
	bVAvg QuantitySet = 1 << VAvg
	bVi   QuantitySet = 1 << Vi
	bVf   QuantitySet = 1 << Vf
	bT    QuantitySet = 1 << T
)

type comboSpec struct {
	known QuantitySet
	chain [3]derivation
}

// combos is indexed by Combination; slot 0 is unused.
var combos = [numCombinations + 1]comboSpec{
	KnownViVfT:    {bVi | bVf | bT, [3]derivation{avgFromEnds, displacementFromAvg, accelFromEnds}},
	KnownViVfA:    {bVi | bVf | bA, [3]derivation{timeFromEnds, avgFromEnds, displacementFromAvg}},
	KnownViVfDx:   {bVi | bVf | bDx, [3]derivation{avgFromEnds, timeFromAvg, accelFromEnds}},
	KnownDxAT:     {bDx | bA | bT, [3]derivation{avgFromDisplacement, finalFromAvgAccel, initialFromAvgAccel}},
	KnownViAT:     {bVi | bA | bT, [3]derivation{finalFromInitial, avgFromEnds, displacementFromAvg}},
	KnownVfAT:     {bVf | bA | bT, [3]derivation{initialFromFinal, avgFromEnds, displacementFromAvg}},
	KnownViADx:    {bVi | bA | bDx, [3]derivation{finalFromDisplacement, avgFromEnds, timeFromAvg}},
	KnownVfADx:    {bVf | bA | bDx, [3]derivation{initialFromDisplacement, avgFromEnds, timeFromAvg}},
	KnownViVAvgT:  {bVi | bVAvg | bT, [3]derivation{finalFromAvg, accelFromEnds, displacementFromAvg}},
	KnownVfVAvgT:  {bVf | bVAvg | bT, [3]derivation{initialFromAvg, accelFromEnds, displacementFromAvg}},
	KnownViVAvgA:  {bVi | bVAvg | bA, [3]derivation{finalFromAvg, timeFromEnds, displacementFromAvg}},
	KnownVfVAvgA:  {bVf | bVAvg | bA, [3]derivation{initialFromAvg, timeFromEnds, displacementFromAvg}},
	KnownViVAvgDx: {bVi | bVAvg | bDx, [3]derivation{finalFromAvg, timeFromAvg, accelFromEnds}},
	KnownVfVAvgDx: {bVf | bVAvg | bDx, [3]derivation{initialFromAvg, timeFromAvg, accelFromEnds}},
	KnownViDxT:    {bVi | bDx | bT, [3]derivation{avgFromDisplacement, finalFromAvg, accelFromEnds}},
	KnownVfDxT:    {bVf | bDx | bT, [3]derivation{avgFromDisplacement, initialFromAvg, accelFromEnds}},
}

// Match returns the combination whose known set equals known exactly.
func Match(known QuantitySet) (Combination, error) {
	if known.Len() < 3 {
		return 0, fmt.Errorf("%w: got %d (%s)", ErrInsufficientParameters, known.Len(), known)
	}

	switch known {
	case bVi | bVf | bT:
		return KnownViVfT, nil
	case bVi | bVf | bA:
		return KnownViVfA, nil
	case bVi | bVf | bDx:
		return KnownViVfDx, nil
	case bDx | bA | bT:
		return KnownDxAT, nil
	case bVi | bA | bT:
		return KnownViAT, nil
	case bVf | bA | bT:
		return KnownVfAT, nil
	case bVi | bA | bDx:
		return KnownViADx, nil
	case bVf | bA | bDx:
		return KnownVfADx, nil
	case bVi | bVAvg | bT:
		return KnownViVAvgT, nil
	case bVf | bVAvg | bT:
		return KnownVfVAvgT, nil
	case bVi | bVAvg | bA:
		return KnownViVAvgA, nil
	case bVf | bVAvg | bA:
		return KnownVfVAvgA, nil
	case bVi | bVAvg | bDx:
		return KnownViVAvgDx, nil
	case bVf | bVAvg | bDx:
		return KnownVfVAvgDx, nil
	case bVi | bDx | bT:
		return KnownViDxT, nil
	case bVf | bDx | bT:
		return KnownVfDxT, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedCombination, known)
}

// Combinations returns every recognized combination in table order.
func Combinations() []Combination {
	out := make([]Combination, numCombinations)
	for i := range out {
		out[i] = Combination(i + 1)
	}
	return out
}

// Valid reports whether c is one of the recognized combinations.
func (c Combination) Valid() bool {
	return c >= KnownViVfT && c <= KnownVfDxT
}

// Known returns the quantities that must be supplied for c.
func (c Combination) Known() QuantitySet {
	if !c.Valid() {
		return 0
	}
	return combos[c].known
}

// Derives returns the derived quantities in the order they are computed.
func (c Combination) Derives() []Quantity {
	if !c.Valid() {
		return nil
	}
	chain := combos[c].chain
	return []Quantity{chain[0].target, chain[1].target, chain[2].target}
}

// Formulas returns the formulas c applies, in order.
func (c Combination) Formulas() []string {
	if !c.Valid() {
		return nil
	}
	chain := combos[c].chain
	return []string{chain[0].formula, chain[1].formula, chain[2].formula}
}

// String returns the known names joined by commas in table order, e.g. "vi,vf,t".
func (c Combination) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Combination(%d)", uint8(c))
	}
	return knownLabel(c)
}

func (c Combination) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("kinematics: invalid combination %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// knownLabel orders the names the way the combination table reads:
// velocities first, then v_avg, a, Dx and t.
func knownLabel(c Combination) string {
	order := [...]Quantity{Vi, Vf, VAvg, A, Dx, T}
	if c == KnownDxAT {
		order = [...]Quantity{Dx, A, T, Vi, Vf, VAvg}
	}
	known := combos[c].known
	names := make([]string, 0, 3)
	for _, q := range order {
		if known.Has(q) {
			names = append(names, q.String())
		}
	}
	return strings.Join(names, ",")
}

func (c *Combination) UnmarshalText(b []byte) error {
	parsed, err := ParseCombination(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCombination parses a comma-separated list of quantity names in any
// order, e.g. "t,vi,vf".
func ParseCombination(s string) (Combination, error) {
	var set QuantitySet
	for _, name := range strings.Split(s, ",") {
		q, err := ParseQuantity(name)
		if err != nil {
			return 0, err
		}
		set = set.With(q)
	}
	return Match(set)
}
