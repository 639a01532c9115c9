package hpt

// BoundArgument is an argument whose value stays fixed for the lifetime of
// a CVFunction. Index is its position among all argument slots.
type BoundArgument struct {
	Index int
	Value any
}

// Bind returns a BoundArgument for slot index.
func Bind(index int, value any) BoundArgument {
	return BoundArgument{Index: index, Value: value}
}

// Source tells where the value of an argument slot comes from.
type Source uint8

const (
	// SourceParameter slots take the next entry of the parameter vector.
	SourceParameter Source = iota
	// SourceBound slots take a bound argument.
	SourceBound
)

func (s Source) String() string {
	if s == SourceBound {
		return "bound"
	}
	return "parameter"
}

type slot struct {
	source Source
	index  int
}

// Plan is the resolved argument layout of a CVFunction: for every slot it
// records whether the value comes from a bound argument or from the
// parameter vector, together with the rank inside that source. A Plan is
// immutable once built.
type Plan struct {
	slots   []slot
	bound   []any
	nParams int
}

// NewPlan resolves the layout of totalArgs slots given the bound arguments.
// Bound arguments must be ordered by strictly increasing Index and every
// Index must lie in [0, totalArgs).
func NewPlan(totalArgs int, bound []BoundArgument) (*Plan, error) {
	const op = "hpt.NewPlan"

	if totalArgs < 0 {
		return nil, configError(op, ErrInvalidBinding, "negative argument count %d", totalArgs)
	}
	if len(bound) > totalArgs {
		return nil, configError(op, ErrInvalidBinding,
			"%d bound arguments exceed %d argument slots", len(bound), totalArgs)
	}

	values := make([]any, len(bound))
	prev := -1
	for i, b := range bound {
		switch {
		case b.Index < 0 || b.Index >= totalArgs:
			return nil, configError(op, ErrInvalidBinding,
				"bound argument %d has index %d outside [0, %d)", i, b.Index, totalArgs)
		case b.Index == prev:
			return nil, configError(op, ErrInvalidBinding,
				"bound argument %d duplicates index %d", i, b.Index)
		case b.Index < prev:
			return nil, configError(op, ErrInvalidBinding,
				"bound argument %d has index %d after index %d", i, b.Index, prev)
		}
		prev = b.Index
		values[i] = b.Value
	}

	p := &Plan{
		slots:   make([]slot, totalArgs),
		bound:   values,
		nParams: totalArgs - len(bound),
	}

	next, param := 0, 0
	for i := range p.slots {
		if next < len(bound) && bound[next].Index == i {
			p.slots[i] = slot{source: SourceBound, index: next}
			next++
			continue
		}
		p.slots[i] = slot{source: SourceParameter, index: param}
		param++
	}

	return p, nil
}

// TotalArgs returns the number of argument slots.
func (p *Plan) TotalArgs() int { return len(p.slots) }

// NumParameters returns the length of the parameter vector the plan expects.
func (p *Plan) NumParameters() int { return p.nParams }

// Source returns the source of slot i and its rank within that source.
func (p *Plan) Source(i int) (Source, int) {
	s := p.slots[i]
	return s.source, s.index
}

// Assemble builds the full ordered argument list for one evaluation.
func (p *Plan) Assemble(params []float64) ([]any, error) {
	if len(params) != p.nParams {
		return nil, usageError("Plan.Assemble", ErrParameterCount,
			"got %d parameters, plan has %d free slots", len(params), p.nParams)
	}

	args := make([]any, len(p.slots))
	for i, s := range p.slots {
		if s.source == SourceBound {
			args[i] = p.bound[s.index]
		} else {
			args[i] = params[s.index]
		}
	}
	return args, nil
}
