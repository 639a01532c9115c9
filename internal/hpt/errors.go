package hpt

import (
	cverrors "github.com/copyleftdev/cvtune/internal/errors"
)

const component = "hpt"

var (
	// ErrInvalidBinding is returned when bound argument positions do not
	// describe a valid argument plan.
	ErrInvalidBinding = cverrors.Sentinel("invalid bound argument")
	// ErrParameterCount is returned when a parameter vector does not have
	// exactly one entry per non-bound argument slot.
	ErrParameterCount = cverrors.Sentinel("parameter vector does not match argument plan")
	// ErrNotEvaluated is returned when the best result is queried before any
	// evaluation has completed.
	ErrNotEvaluated = cverrors.Sentinel("no evaluation has completed")
	// ErrModelTaken is returned when the best model was already transferred
	// out and no better model has been found since.
	ErrModelTaken = cverrors.Sentinel("best model was already taken")
	// ErrArgumentType is returned when an assembled argument cannot be read
	// as the type a learner expects.
	ErrArgumentType = cverrors.Sentinel("unexpected argument type")
	// ErrSearchSpace is returned for malformed search space dimensions.
	ErrSearchSpace = cverrors.Sentinel("invalid search space")
)

func configError(op string, err error, format string, args ...interface{}) error {
	return cverrors.Wrapf(err, format, args...).
		WithOperation(op).
		WithComponent(component).
		WithKind(cverrors.KindConfiguration)
}

func usageError(op string, err error, format string, args ...interface{}) error {
	return cverrors.Wrapf(err, format, args...).
		WithOperation(op).
		WithComponent(component).
		WithKind(cverrors.KindUsage)
}
