// Package kernels provides covariance functions for Gaussian-process
// regression.
package kernels

import (
	"math"
	"strings"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
)

// ErrInvalidKernel is returned for unknown kernels and bad hyperparameters.
var ErrInvalidKernel = cverrors.Sentinel("invalid kernel")

func invalid(format string, args ...interface{}) error {
	return cverrors.Wrapf(ErrInvalidKernel, format, args...).
		WithComponent("kernels").
		WithKind(cverrors.KindConfiguration)
}

// Kernel represents a kernel function for Gaussian Processes
type Kernel interface {
	// Name identifies the kernel family
	Name() string

	// Eval computes the kernel value between two points x1 and x2
	Eval(x1, x2 []float64) float64

	// Hyperparameters returns the current hyperparameters
	Hyperparameters() []float64

	// SetHyperparameters sets the kernel's hyperparameters
	SetHyperparameters(params []float64) error
}

// Kernel family names accepted by New.
const (
	RBF      = "rbf"
	Matern52 = "matern52"
)

// New builds the kernel family called name.
func New(name string, lengthScale, signalVar float64) (Kernel, error) {
	if err := checkPositive(lengthScale, signalVar); err != nil {
		return nil, err
	}
	switch strings.ToLower(name) {
	case RBF, "gaussian", "squared_exponential":
		return &RBFKernel{scaled{lengthScale: lengthScale, signalVar: signalVar}}, nil
	case Matern52, "matern":
		return &Matern52Kernel{scaled{lengthScale: lengthScale, signalVar: signalVar}}, nil
	}
	return nil, invalid("unknown kernel %q", name)
}

// scaled holds the two hyperparameters shared by the stationary kernels.
type scaled struct {
	// Length scale parameter (larger = smoother function)
	lengthScale float64
	// Signal variance (controls the amplitude of the function)
	signalVar float64
}

func (s *scaled) Hyperparameters() []float64 {
	return []float64{s.lengthScale, s.signalVar}
}

func (s *scaled) SetHyperparameters(params []float64) error {
	if len(params) != 2 {
		return invalid("expected 2 hyperparameters, got %d", len(params))
	}
	if err := checkPositive(params[0], params[1]); err != nil {
		return err
	}
	s.lengthScale = params[0]
	s.signalVar = params[1]
	return nil
}

// RBFKernel implements the Radial Basis Function (squared exponential) kernel
type RBFKernel struct {
	scaled
}

// NewRBFKernel creates a new RBF kernel with the given parameters
func NewRBFKernel(lengthScale, signalVar float64) (*RBFKernel, error) {
	if err := checkPositive(lengthScale, signalVar); err != nil {
		return nil, err
	}
	return &RBFKernel{scaled{lengthScale: lengthScale, signalVar: signalVar}}, nil
}

func (k *RBFKernel) Name() string { return RBF }

// Eval computes the RBF kernel value between x1 and x2
func (k *RBFKernel) Eval(x1, x2 []float64) float64 {
	r2 := sqDist(x1, x2) / (2.0 * k.lengthScale * k.lengthScale)
	return k.signalVar * math.Exp(-r2)
}

// Matern52Kernel implements the Matérn 5/2 kernel
type Matern52Kernel struct {
	scaled
}

// NewMatern52Kernel creates a new Matérn 5/2 kernel with the given parameters
func NewMatern52Kernel(lengthScale, signalVar float64) (*Matern52Kernel, error) {
	if err := checkPositive(lengthScale, signalVar); err != nil {
		return nil, err
	}
	return &Matern52Kernel{scaled{lengthScale: lengthScale, signalVar: signalVar}}, nil
}

func (k *Matern52Kernel) Name() string { return Matern52 }

// Eval computes the Matérn 5/2 kernel value between x1 and x2
func (k *Matern52Kernel) Eval(x1, x2 []float64) float64 {
	r := math.Sqrt(sqDist(x1, x2)) / k.lengthScale
	polyTerm := 1.0 + math.Sqrt(5)*r + (5.0/3.0)*r*r
	return k.signalVar * polyTerm * math.Exp(-math.Sqrt(5)*r)
}

func sqDist(x1, x2 []float64) float64 {
	sum := 0.0
	for i := range x1 {
		d := x1[i] - x2[i]
		sum += d * d
	}
	return sum
}

func checkPositive(lengthScale, signalVar float64) error {
	if !(lengthScale > 0) || !(signalVar > 0) || math.IsInf(lengthScale, 0) || math.IsInf(signalVar, 0) {
		return invalid("hyperparameters must be positive, got [%v %v]", lengthScale, signalVar)
	}
	return nil
}
