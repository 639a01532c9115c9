// Package tuning turns a tuning request (data, learner, search space and
// optimizer names) into a runnable job. It is shared by the HTTP service and
// the command line tool.
package tuning

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/cvtune/internal/cv"
	"github.com/copyleftdev/cvtune/internal/model/gpr"
	"github.com/copyleftdev/cvtune/internal/model/ridge"
)

// Learner is a learner that can be tuned by name.
type Learner struct {
	Name string
	// Args names the training arguments in declaration order.
	Args  []string
	Train cv.LearnerFunc[cv.Predictor]
}

var learners = map[string]Learner{
	"ridge": {
		Name: "ridge",
		Args: []string{"lambda", "intercept"},
		Train: func(X mat.Matrix, y mat.Vector, args ...any) (cv.Predictor, error) {
			m, err := ridge.Train(X, y, args...)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	},
	"gpr": {
		Name: "gpr",
		Args: []string{"kernel", "length_scale", "signal_var", "noise_var"},
		Train: func(X mat.Matrix, y mat.Vector, args ...any) (cv.Predictor, error) {
			m, err := gpr.Train(X, y, args...)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	},
}

// LookupLearner returns the learner registered under name.
func LookupLearner(name string) (Learner, error) {
	l, ok := learners[name]
	if !ok {
		return Learner{}, invalidf("unknown learner %q, available: %v", name, LearnerNames())
	}
	return l, nil
}

// LearnerNames lists the registered learners.
func LearnerNames() []string {
	names := make([]string, 0, len(learners))
	for name := range learners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
