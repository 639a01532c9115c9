package hpt

import (
	"math"
	"sort"
)

type dimensionKind uint8

const (
	fixedDimension dimensionKind = iota
	rangeDimension
	valuesDimension
)

// Dimension describes how one argument slot is searched.
type Dimension struct {
	kind   dimensionKind
	value  any
	min    float64
	max    float64
	values []float64
}

// Fixed keeps a slot at value for the whole run.
func Fixed(value any) Dimension {
	return Dimension{kind: fixedDimension, value: value}
}

// Range searches a slot over the closed interval [min, max].
func Range(min, max float64) Dimension {
	return Dimension{kind: rangeDimension, min: min, max: max}
}

// Values searches a slot over a finite set of candidates.
func Values(values ...float64) Dimension {
	vs := append([]float64(nil), values...)
	sort.Float64s(vs)
	d := Dimension{kind: valuesDimension, values: vs}
	if len(vs) > 0 {
		d.min, d.max = vs[0], vs[len(vs)-1]
	}
	return d
}

// IsFixed reports whether the dimension is bound to a single value.
func (d Dimension) IsFixed() bool { return d.kind == fixedDimension }

// SearchSpace lists one Dimension per argument slot, in declaration order.
type SearchSpace []Dimension

// Validate checks every searched dimension.
func (s SearchSpace) Validate() error {
	const op = "SearchSpace.Validate"
	for i, d := range s {
		switch d.kind {
		case rangeDimension:
			if math.IsNaN(d.min) || math.IsNaN(d.max) || math.IsInf(d.min, 0) || math.IsInf(d.max, 0) {
				return configError(op, ErrSearchSpace, "slot %d: range bounds must be finite", i)
			}
			if d.min > d.max {
				return configError(op, ErrSearchSpace, "slot %d: range min %v exceeds max %v", i, d.min, d.max)
			}
		case valuesDimension:
			if len(d.values) == 0 {
				return configError(op, ErrSearchSpace, "slot %d: empty value set", i)
			}
			for _, v := range d.values {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return configError(op, ErrSearchSpace, "slot %d: candidate values must be finite", i)
				}
			}
		}
	}
	return nil
}

// BoundArguments returns the fixed slots as bound arguments, in slot order.
func (s SearchSpace) BoundArguments() []BoundArgument {
	var bound []BoundArgument
	for i, d := range s {
		if d.kind == fixedDimension {
			bound = append(bound, Bind(i, d.value))
		}
	}
	return bound
}

// Bounds returns the [min, max] box of the free slots, in slot order.
func (s SearchSpace) Bounds() [][2]float64 {
	var bounds [][2]float64
	for _, d := range s {
		if d.kind != fixedDimension {
			bounds = append(bounds, [2]float64{d.min, d.max})
		}
	}
	return bounds
}

// Candidates returns the candidate sets of the free slots. Range slots get a
// nil entry. The result is nil when no slot has a value set.
func (s SearchSpace) Candidates() [][]float64 {
	var (
		out  [][]float64
		some bool
	)
	for _, d := range s {
		switch d.kind {
		case rangeDimension:
			out = append(out, nil)
		case valuesDimension:
			out = append(out, append([]float64(nil), d.values...))
			some = true
		}
	}
	if !some {
		return nil
	}
	return out
}
