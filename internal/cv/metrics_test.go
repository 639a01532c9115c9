package cv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestMetrics(t *testing.T) {
	truth := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	pred := mat.NewVecDense(4, []float64{1, 3, 3, 2})

	assert.InDelta(t, 5.0/4, MSE(pred, truth), 1e-12)
	assert.InDelta(t, 3.0/4, MAE(pred, truth), 1e-12)
	assert.InDelta(t, 1-5.0/5, R2(pred, truth), 1e-12)
	assert.Equal(t, 1.0, R2(truth, truth))
}

func TestR2ConstantTruth(t *testing.T) {
	truth := mat.NewVecDense(2, []float64{3, 3})
	assert.Equal(t, 1.0, R2(truth, truth))
	assert.True(t, math.IsInf(R2(mat.NewVecDense(2, []float64{1, 1}), truth), -1))
}

func TestMetricByName(t *testing.T) {
	tests := []struct {
		name         string
		higherBetter bool
		ok           bool
	}{
		{"", false, true},
		{"mse", false, true},
		{"mae", false, true},
		{"r2", true, true},
		{"auc", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, higher, ok := MetricByName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.higherBetter, higher)
			assert.Equal(t, tt.ok, m != nil)
		})
	}
}
