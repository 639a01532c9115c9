package cv

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Metric scores predictions against the truth.
type Metric func(pred, truth mat.Vector) float64

// MSE is the mean squared error. Lower is better.
func MSE(pred, truth mat.Vector) float64 {
	n := truth.Len()
	if n == 0 {
		return math.NaN()
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := pred.AtVec(i) - truth.AtVec(i)
		sum += d * d
	}
	return sum / float64(n)
}

// MAE is the mean absolute error. Lower is better.
func MAE(pred, truth mat.Vector) float64 {
	n := truth.Len()
	if n == 0 {
		return math.NaN()
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(pred.AtVec(i) - truth.AtVec(i))
	}
	return sum / float64(n)
}

// R2 is the coefficient of determination. Higher is better, so tune it with
// hpt.Maximize.
func R2(pred, truth mat.Vector) float64 {
	n := truth.Len()
	if n == 0 {
		return math.NaN()
	}
	y := mat.Col(nil, 0, truth)
	mean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i, v := range y {
		d := v - pred.AtVec(i)
		ssRes += d * d
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return math.Inf(-1)
	}
	return 1 - ssRes/ssTot
}

// MetricByName returns a metric and whether higher values are better.
func MetricByName(name string) (Metric, bool, bool) {
	switch name {
	case "", "mse":
		return MSE, false, true
	case "mae":
		return MAE, false, true
	case "r2":
		return R2, true, true
	}
	return nil, false, false
}
