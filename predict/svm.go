package predict

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// svmClassifier trains a linear support vector machine by Pegasos-style
// stochastic subgradient descent. The objective is strongly convex, so the
// 1/(lambda*t) step schedule converges without tuning.
type svmClassifier struct {
	linearModel
	alpha   float64
	maxIter int
	seed    int64
	classes [2]float64
}

func (r *svmClassifier) Fit(x *mat.Dense, y []float64) error {
	signed, classes, err := signedLabels(y)
	if err != nil {
		return err
	}
	r.classes = classes

	n, p := x.Dims()
	lambda := r.alpha / float64(n)
	rng := rand.New(rand.NewSource(r.seed))

	// Augment with a constant column so the bias rides along in the same
	// update; its share of the penalty is negligible at this lambda.
	w := make([]float64, p+1)
	row := make([]float64, p+1)
	row[p] = 1

	steps := r.maxIter * n
	for t := 1; t <= steps; t++ {
		i := rng.Intn(n)
		mat.Row(row[:p], i, x)

		var score float64
		for j, v := range row {
			score += w[j] * v
		}

		eta := 1 / (lambda * float64(t))
		shrink := 1 - eta*lambda
		if shrink < 0 {
			shrink = 0
		}
		for j := range w {
			w[j] *= shrink
		}
		if signed[i]*score < 1 {
			scale := eta * signed[i]
			for j, v := range row {
				w[j] += scale * v
			}
		}
	}

	r.coef = w[:p]
	r.intercept = w[p]
	return nil
}

func (r *svmClassifier) DecisionFunction(x *mat.Dense) []float64 { return r.decision(x) }

func (r *svmClassifier) Predict(x *mat.Dense) []float64 {
	scores := r.decision(x)
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = labelFromScore(s, r.classes)
	}
	return out
}

// svrRegressor fits linear support vector regression with an
// epsilon-insensitive loss by full-batch subgradient descent on centered
// data.
type svrRegressor struct {
	linearModel
	alpha   float64
	maxIter int
	epsilon float64
}

func (r *svrRegressor) Fit(x *mat.Dense, y []float64) error {
	c, err := centerXY(x, y)
	if err != nil {
		return err
	}
	n, p := c.x.Dims()

	coef := make([]float64, p)
	grad := make([]float64, p)
	row := make([]float64, p)

	for t := 1; t <= r.maxIter; t++ {
		for j := range grad {
			grad[j] = r.alpha * coef[j]
		}
		for i := 0; i < n; i++ {
			mat.Row(row, i, c.x)
			var score float64
			for j, v := range row {
				score += coef[j] * v
			}
			resid := score - c.y[i]
			if math.Abs(resid) <= r.epsilon {
				continue
			}
			sign := 1.0
			if resid < 0 {
				sign = -1.0
			}
			for j, v := range row {
				grad[j] += sign * v / float64(n)
			}
		}

		eta := 1 / (r.alpha * float64(t+1))
		for j := range coef {
			coef[j] -= eta * grad[j]
		}
	}

	r.coef = coef
	r.intercept = c.intercept(coef)
	return nil
}

func (r *svrRegressor) Predict(x *mat.Dense) []float64 { return r.decision(x) }
