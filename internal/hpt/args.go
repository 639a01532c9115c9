package hpt

import (
	"math"
)

// The accessors below read assembled arguments for learners. Free slots
// always hold float64 values, so integer and boolean hyperparameters can be
// searched over numeric ranges.

// Float reads argument i as a float64.
func Float(args []any, i int) (float64, error) {
	v, err := at(args, i)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, typeError(i, "float", v)
}

// Int reads argument i as an int, rounding float values to the nearest
// integer.
func Int(args []any, i int) (int, error) {
	v, err := at(args, i)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, typeError(i, "int", v)
		}
		return int(math.Round(x)), nil
	}
	return 0, typeError(i, "int", v)
}

// Bool reads argument i as a bool. Float values of 0.5 and above are true.
func Bool(args []any, i int) (bool, error) {
	v, err := at(args, i)
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x >= 0.5, nil
	}
	return false, typeError(i, "bool", v)
}

// String reads argument i as a string.
func String(args []any, i int) (string, error) {
	v, err := at(args, i)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", typeError(i, "string", v)
}

func at(args []any, i int) (any, error) {
	if i < 0 || i >= len(args) {
		return nil, configError("hpt.Argument", ErrArgumentType,
			"argument %d requested from a list of %d", i, len(args))
	}
	return args[i], nil
}

func typeError(i int, want string, got any) error {
	return configError("hpt.Argument", ErrArgumentType, "argument %d: want %s, got %T", i, want, got)
}
