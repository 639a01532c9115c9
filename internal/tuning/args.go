package tuning

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/copyleftdev/cvtune/internal/hpt"
)

// ArgSpec describes how one learner argument is searched. Exactly one of
// Fixed, Range and Values must be set.
type ArgSpec struct {
	Fixed  any       `json:"fixed,omitempty"`
	Range  []float64 `json:"range,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

// Dimension converts the spec into a search space dimension.
func (a ArgSpec) Dimension() (hpt.Dimension, error) {
	set := 0
	if a.Fixed != nil {
		set++
	}
	if a.Range != nil {
		set++
	}
	if a.Values != nil {
		set++
	}
	if set != 1 {
		return hpt.Dimension{}, invalidf("exactly one of fixed, range or values is required")
	}

	switch {
	case a.Fixed != nil:
		return hpt.Fixed(normalizeFixed(a.Fixed)), nil
	case a.Range != nil:
		if len(a.Range) != 2 {
			return hpt.Dimension{}, invalidf("range needs [min, max], got %v", a.Range)
		}
		return hpt.Range(a.Range[0], a.Range[1]), nil
	default:
		return hpt.Values(a.Values...), nil
	}
}

// normalizeFixed maps decoded JSON numbers to float64.
func normalizeFixed(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}

// ParseArgSpec parses the command line form of an argument spec:
//
//	0.01:10        range
//	values:1,2,4   value set
//	fixed:rbf      fixed value; true, false and numbers are converted
func ParseArgSpec(s string) (ArgSpec, error) {
	switch {
	case strings.HasPrefix(s, "fixed:"):
		return ArgSpec{Fixed: parseScalar(strings.TrimPrefix(s, "fixed:"))}, nil
	case strings.HasPrefix(s, "values:"):
		parts := strings.Split(strings.TrimPrefix(s, "values:"), ",")
		values := make([]float64, 0, len(parts))
		for _, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return ArgSpec{}, invalidf("bad value %q in %q", p, s)
			}
			values = append(values, v)
		}
		return ArgSpec{Values: values}, nil
	}

	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return ArgSpec{}, invalidf("expected min:max, values:a,b,... or fixed:v, got %q", s)
	}
	min, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	max, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err1 != nil || err2 != nil {
		return ArgSpec{}, invalidf("bad range %q", s)
	}
	return ArgSpec{Range: []float64{min, max}}, nil
}

func parseScalar(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		return f
	}
	return s
}
