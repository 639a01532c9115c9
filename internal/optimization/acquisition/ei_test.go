package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedImprovement(t *testing.T) {
	tests := []struct {
		name          string
		bestObserved  float64
		xi            float64
		mu            float64
		sigma         float64
		expectedValue float64
	}{
		{
			name:          "no improvement",
			bestObserved:  1.0,
			xi:            0.01,
			mu:            1.5,
			sigma:         0.1,
			expectedValue: 0.0,
		},
		{
			name:          "definite improvement",
			bestObserved:  1.0,
			xi:            0.01,
			mu:            0.5,
			sigma:         0.2,
			expectedValue: 0.4905,
		},
		{
			name:          "zero sigma",
			bestObserved:  1.0,
			xi:            0.0,
			mu:            0.5,
			sigma:         0.0,
			expectedValue: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ei := NewExpectedImprovement(tt.bestObserved, tt.xi)
			assert.InDelta(t, tt.expectedValue, ei.Compute(tt.mu, tt.sigma), 1e-4)
		})
	}
}

func TestExpectedImprovementUpdate(t *testing.T) {
	ei := NewExpectedImprovement(1.0, 0.01)
	assert.Equal(t, 1.0, ei.BestObserved())

	ei.UpdateBest(0.5)
	assert.Equal(t, 0.5, ei.BestObserved())

	ei.SetXi(0.01)
	assert.Greater(t, ei.Compute(0.4, 0.1), 0.0, "expected positive EI after update")
	assert.Equal(t, 0.0, ei.Compute(0.6, 0.1), "a worse mean with small sigma has almost no improvement")
}

func TestExpectedImprovementGradient(t *testing.T) {
	tests := []struct {
		name     string
		minimize bool
		mu       float64
	}{
		{"minimize", true, 0.5},
		{"maximize", false, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ei := NewExpectedImprovement(1.0, 0.01)
			ei.minimize = tt.minimize

			const (
				sigma, dmu, dsigma = 0.5, 1.0, 1.0
				h                  = 1e-6
			)
			grad := ei.Gradient(tt.mu, dmu, sigma, dsigma)

			f := func(eps float64) float64 {
				return ei.Compute(tt.mu+eps*dmu, sigma+eps*dsigma)
			}
			numerical := (f(h) - f(-h)) / (2 * h)

			assert.InDelta(t, numerical, grad, 1e-6)
		})
	}
}
