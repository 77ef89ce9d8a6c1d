package predict

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// logisticClassifier fits L2-penalized logistic regression by full-batch
// gradient descent with a Lipschitz step size, which converges without line
// search for this loss.
type logisticClassifier struct {
	linearModel
	alpha   float64
	maxIter int
	tol     float64
	classes [2]float64
}

func (r *logisticClassifier) Fit(x *mat.Dense, y []float64) error {
	signed, classes, err := signedLabels(y)
	if err != nil {
		return err
	}
	r.classes = classes

	n, p := x.Dims()
	// 0/1 targets for the likelihood.
	targets := make([]float64, n)
	for i, s := range signed {
		if s > 0 {
			targets[i] = 1
		}
	}

	// Lipschitz constant of the penalized gradient: ||X||_F^2 / (4n) + alpha.
	var frob float64
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			v := x.At(i, j)
			frob += v * v
		}
	}
	step := 1 / (frob/(4*float64(n)) + r.alpha + 1)

	coef := make([]float64, p)
	intercept := 0.0
	probs := make([]float64, n)
	grad := make([]float64, p)

	for iter := 0; iter < r.maxIter; iter++ {
		// Forward pass.
		w := mat.NewVecDense(p, coef)
		var scores mat.VecDense
		scores.MulVec(x, w)
		for i := 0; i < n; i++ {
			probs[i] = sigmoid(scores.AtVec(i) + intercept)
		}

		// Gradient: X'(p - y)/n + alpha*coef, intercept unpenalized.
		var gradNorm float64
		var bGrad float64
		for j := 0; j < p; j++ {
			var g float64
			for i := 0; i < n; i++ {
				g += x.At(i, j) * (probs[i] - targets[i])
			}
			g = g/float64(n) + r.alpha*coef[j]
			grad[j] = g
			gradNorm += g * g
		}
		for i := 0; i < n; i++ {
			bGrad += probs[i] - targets[i]
		}
		bGrad /= float64(n)
		gradNorm += bGrad * bGrad

		for j := 0; j < p; j++ {
			coef[j] -= step * grad[j]
		}
		intercept -= step * bGrad

		if math.Sqrt(gradNorm) < r.tol {
			break
		}
	}

	r.coef = coef
	r.intercept = intercept
	return nil
}

// DecisionFunction returns the log-odds of the positive class.
func (r *logisticClassifier) DecisionFunction(x *mat.Dense) []float64 { return r.decision(x) }

func (r *logisticClassifier) Proba(x *mat.Dense) []float64 {
	scores := r.decision(x)
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = sigmoid(s)
	}
	return out
}

func (r *logisticClassifier) Predict(x *mat.Dense) []float64 {
	probs := r.Proba(x)
	out := make([]float64, len(probs))
	for i, p := range probs {
		if p >= 0.5 {
			out[i] = r.classes[1]
		} else {
			out[i] = r.classes[0]
		}
	}
	return out
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}
