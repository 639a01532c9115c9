package hpt

import "go.uber.org/zap"

// Option configures a CVFunction or a Tuner.
type Option func(*settings)

type settings struct {
	logger    *zap.Logger
	observers []Observer
	maximize  bool
}

func newSettings(opts []Option) settings {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver adds an observer called after every evaluation.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Maximize makes a Tuner treat higher cross-validation scores as better.
// It has no effect on a CVFunction, which always minimizes.
func Maximize() Option {
	return func(s *settings) { s.maximize = true }
}
