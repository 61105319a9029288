// Package kinematics resolves one-dimensional constant-acceleration motion.
//
// Six quantities describe the motion: displacement (Dx), initial velocity (vi),
// final velocity (vf), acceleration (a), time (t) and average velocity (v_avg).
// Given exactly three of them in one of sixteen recognized combinations, the
// resolver derives the other three through a fixed formula chain and records
// each formula it applied.
//
// All distances are in metres, velocities in m/s, acceleration in m/s² and
// time in seconds.
package kinematics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Quantity identifies one of the six motion variables.
type Quantity uint8

const (
	Dx Quantity = iota
	A
	VAvg
	Vi
	Vf
	T

	numQuantities = 6
)

// Quantities lists every quantity in display order.
var Quantities = [numQuantities]Quantity{Dx, A, VAvg, Vi, Vf, T}

var quantityNames = [numQuantities]string{"Dx", "a", "v_avg", "vi", "vf", "t"}

// quantityAliases maps lowercased input spellings to quantities.
var quantityAliases = map[string]Quantity{
	"dx":           Dx,
	"displacement": Dx,
	"a":            A,
	"acceleration": A,
	"v_avg":        VAvg,
	"vavg":         VAvg,
	"v_average":    VAvg,
	"vi":           Vi,
	"v_i":          Vi,
	"v0":           Vi,
	"vf":           Vf,
	"v_f":          Vf,
	"t":            T,
	"time":         T,
}

// String returns the canonical short name ("Dx", "a", "v_avg", "vi", "vf", "t").
func (q Quantity) String() string {
	if int(q) < numQuantities {
		return quantityNames[q]
	}
	return fmt.Sprintf("Quantity(%d)", uint8(q))
}

// ParseQuantity accepts the canonical names and a few common aliases,
// case-insensitively.
func ParseQuantity(s string) (Quantity, error) {
	q, ok := quantityAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownQuantity, s)
	}
	return q, nil
}

// QuantitySet is a bitset of quantities.
type QuantitySet uint8

// SetOf builds a set from the given quantities.
func SetOf(qs ...Quantity) QuantitySet {
	var s QuantitySet
	for _, q := range qs {
		s = s.With(q)
	}
	return s
}

// With returns a copy of s that includes q.
func (s QuantitySet) With(q Quantity) QuantitySet { return s | 1<<q }

// Has reports whether q is in s.
func (s QuantitySet) Has(q Quantity) bool { return s&(1<<q) != 0 }

// Len returns the number of quantities in s.
func (s QuantitySet) Len() int {
	n := 0
	for _, q := range Quantities {
		if s.Has(q) {
			n++
		}
	}
	return n
}

// Slice returns the members of s in display order.
func (s QuantitySet) Slice() []Quantity {
	out := make([]Quantity, 0, numQuantities)
	for _, q := range Quantities {
		if s.Has(q) {
			out = append(out, q)
		}
	}
	return out
}

// Names returns the canonical names of the members of s in display order.
func (s QuantitySet) Names() []string {
	qs := s.Slice()
	names := make([]string, len(qs))
	for i, q := range qs {
		names[i] = q.String()
	}
	return names
}

func (s QuantitySet) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

func (q Quantity) MarshalText() ([]byte, error) {
	if int(q) >= numQuantities {
		return nil, fmt.Errorf("kinematics: invalid quantity %d", uint8(q))
	}
	return []byte(q.String()), nil
}

func (q *Quantity) UnmarshalText(b []byte) error {
	parsed, err := ParseQuantity(string(b))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// MarshalJSON encodes the set as an array of canonical names.
func (s QuantitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *QuantitySet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var set QuantitySet
	for _, n := range names {
		q, err := ParseQuantity(n)
		if err != nil {
			return err
		}
		set = set.With(q)
	}
	*s = set
	return nil
}
