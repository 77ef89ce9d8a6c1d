package predict

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RMSE reports the root mean squared error between predictions and truth.
func RMSE(pred, truth []float64) float64 {
	if len(pred) == 0 || len(pred) != len(truth) {
		return math.NaN()
	}
	var sum float64
	for i := range pred {
		d := pred[i] - truth[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(pred)))
}

// Correlation reports the Pearson correlation between predictions and
// truth, or 0 when either side is constant.
func Correlation(pred, truth []float64) float64 {
	if len(pred) < 2 || len(pred) != len(truth) {
		return math.NaN()
	}
	r := stat.Correlation(pred, truth, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// Accuracy reports the fraction of matching labels. The complement is
// the misclassification rate.
func Accuracy(pred, truth []float64) float64 {
	if len(pred) == 0 || len(pred) != len(truth) {
		return math.NaN()
	}
	var hits int
	for i := range pred {
		if pred[i] == truth[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(pred))
}
