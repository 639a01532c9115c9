package tuning

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/cvtune/internal/optimization"
	"github.com/copyleftdev/cvtune/internal/optimization/bayesian"
	"github.com/copyleftdev/cvtune/internal/optimization/grid"
	"github.com/copyleftdev/cvtune/internal/optimization/mayfly"
	"github.com/copyleftdev/cvtune/internal/optimization/neldermead"
)

// OptimizerNames lists the optimizers NewOptimizer knows.
var OptimizerNames = []string{"bayesian", "grid", "mayfly", "neldermead"}

// NewOptimizer builds the optimizer called name. Population only applies to
// mayfly.
func NewOptimizer(name string, config optimization.OptimizerConfig, population int, logger *zap.Logger) (optimization.Optimizer, error) {
	switch name {
	case "grid":
		return grid.NewGridSearch(logger), nil
	case "neldermead", "nelder-mead":
		return neldermead.NewNelderMead(logger), nil
	case "bayesian":
		return bayesian.NewBayesianOptimizer(config, logger)
	case "mayfly":
		return mayfly.NewMayfly(population, logger), nil
	}
	return nil, invalidf("unknown optimizer %q, available: %v", name, OptimizerNames)
}
