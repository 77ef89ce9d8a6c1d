// Package predict implements the prediction engine of voxlearn.
//
// This package provides the estimators, cross-validation schemes, and run
// orchestration used to train predictive models on masked voxel data. The
// engine fits a model on the full dataset to recover a voxel-space weight
// map, then refits per cross-validation fold to estimate out-of-sample
// performance, running folds in parallel.
//
// Key components:
//   - Estimator: the Fit/Predict/Weights contract all algorithms satisfy
//   - Linear family: ols, ridge, lasso, logistic, svm, svr, pcr, lassopcr
//   - Splitters: k-fold, stratified k-fold, leave-one-subject-out
//   - Engine: fit-all plus parallel CV with metric assembly
//   - Model files: CRC-checked binary persistence of trained weights
//
// All estimators are linear in voxel space, so a trained model is fully
// described by a coefficient vector and an intercept; the coefficient vector
// is the weight map projected back into the brain by the dataset's masker.
package predict

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Estimator is the contract every prediction algorithm satisfies. X is an
// images-by-voxels matrix; y has one value per image.
type Estimator interface {
	Fit(x *mat.Dense, y []float64) error
	Predict(x *mat.Dense) []float64
	Weights() (coef []float64, intercept float64)
}

// Classifier is an Estimator whose raw output is a signed distance from the
// decision boundary.
type Classifier interface {
	Estimator
	DecisionFunction(x *mat.Dense) []float64
}

// ProbEstimator is an Estimator that can report the probability of the
// positive class.
type ProbEstimator interface {
	Estimator
	Proba(x *mat.Dense) []float64
}

// Params collects the tunables shared across the algorithm family. Zero
// values fall back to the defaults of DefaultParams.
type Params struct {
	Alpha      float64 // regularization strength
	Components int     // pcr/lassopcr component cap, 0 keeps all
	MaxIter    int
	Tol        float64
	Epsilon    float64 // svr insensitivity margin
	Seed       int64
}

// DefaultParams returns the parameter defaults.
func DefaultParams() Params {
	return Params{
		Alpha:   1.0,
		MaxIter: 1000,
		Tol:     1e-4,
		Epsilon: 0.1,
		Seed:    42,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.Alpha == 0 {
		p.Alpha = def.Alpha
	}
	if p.MaxIter == 0 {
		p.MaxIter = def.MaxIter
	}
	if p.Tol == 0 {
		p.Tol = def.Tol
	}
	if p.Epsilon == 0 {
		p.Epsilon = def.Epsilon
	}
	if p.Seed == 0 {
		p.Seed = def.Seed
	}
	return p
}

// Algorithm names accepted by New.
const (
	AlgoOLS             = "ols"
	AlgoRidge           = "ridge"
	AlgoRidgeClassifier = "ridgeClassifier"
	AlgoLasso           = "lasso"
	AlgoLogistic        = "logistic"
	AlgoSVM             = "svm"
	AlgoSVR             = "svr"
	AlgoPCR             = "pcr"
	AlgoLassoPCR        = "lassopcr"
)

var classifierAlgos = map[string]bool{
	AlgoRidgeClassifier: true,
	AlgoLogistic:        true,
	AlgoSVM:             true,
}

// IsClassifier reports whether the named algorithm predicts class labels.
func IsClassifier(name string) bool { return classifierAlgos[name] }

// Algorithms lists the supported algorithm names, sorted.
func Algorithms() []string {
	names := []string{
		AlgoOLS, AlgoRidge, AlgoRidgeClassifier, AlgoLasso,
		AlgoLogistic, AlgoSVM, AlgoSVR, AlgoPCR, AlgoLassoPCR,
	}
	sort.Strings(names)
	return names
}

// New constructs the named estimator.
func New(name string, p Params) (Estimator, error) {
	p = p.withDefaults()
	switch name {
	case AlgoOLS:
		return &olsRegressor{}, nil
	case AlgoRidge:
		return &ridgeRegressor{alpha: p.Alpha}, nil
	case AlgoRidgeClassifier:
		return &ridgeClassifier{alpha: p.Alpha}, nil
	case AlgoLasso:
		return &lassoRegressor{alpha: p.Alpha, maxIter: p.MaxIter, tol: p.Tol}, nil
	case AlgoLogistic:
		return &logisticClassifier{alpha: p.Alpha, maxIter: p.MaxIter, tol: p.Tol}, nil
	case AlgoSVM:
		return &svmClassifier{alpha: p.Alpha, maxIter: p.MaxIter, seed: p.Seed}, nil
	case AlgoSVR:
		return &svrRegressor{alpha: p.Alpha, maxIter: p.MaxIter, epsilon: p.Epsilon}, nil
	case AlgoPCR:
		return &pcrRegressor{components: p.Components}, nil
	case AlgoLassoPCR:
		return &pcrRegressor{components: p.Components, lassoAlpha: p.Alpha}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q (supported: %v)", name, Algorithms())
	}
}

// linearModel is the trained state every estimator reduces to.
type linearModel struct {
	coef      []float64
	intercept float64
}

// Weights returns the voxel-space coefficient vector and intercept.
func (m *linearModel) Weights() ([]float64, float64) { return m.coef, m.intercept }

// decision computes Xw + b for every row.
func (m *linearModel) decision(x *mat.Dense) []float64 {
	n, p := x.Dims()
	if p != len(m.coef) {
		panic(fmt.Sprintf("predict: %d features, model has %d", p, len(m.coef)))
	}
	out := make([]float64, n)
	w := mat.NewVecDense(p, m.coef)
	var scores mat.VecDense
	scores.MulVec(x, w)
	for i := 0; i < n; i++ {
		out[i] = scores.AtVec(i) + m.intercept
	}
	return out
}

// centered holds a column-centered copy of the training data. All linear
// fits run on centered data and fold the means back into the intercept.
type centered struct {
	x        *mat.Dense
	y        []float64
	colMeans []float64
	yMean    float64
}

func centerXY(x *mat.Dense, y []float64) (*centered, error) {
	n, p := x.Dims()
	if n == 0 {
		return nil, fmt.Errorf("empty training data")
	}
	if len(y) != n {
		return nil, fmt.Errorf("%d labels for %d images", len(y), n)
	}

	c := &centered{
		x:        mat.NewDense(n, p, nil),
		y:        make([]float64, n),
		colMeans: make([]float64, p),
	}
	for j := 0; j < p; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x.At(i, j)
		}
		c.colMeans[j] = sum / float64(n)
	}
	for _, v := range y {
		c.yMean += v
	}
	c.yMean /= float64(n)

	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			c.x.Set(i, j, x.At(i, j)-c.colMeans[j])
		}
		c.y[i] = y[i] - c.yMean
	}
	return c, nil
}

// intercept folds the removed means back: b = yMean - colMeans . coef.
func (c *centered) intercept(coef []float64) float64 {
	b := c.yMean
	for j, m := range c.colMeans {
		b -= m * coef[j]
	}
	return b
}

// signedLabels maps a two-class label vector onto -1/+1. Returns the sorted
// class values so predictions can be mapped back.
func signedLabels(y []float64) ([]float64, [2]float64, error) {
	seen := map[float64]bool{}
	for _, v := range y {
		seen[v] = true
	}
	if len(seen) != 2 {
		return nil, [2]float64{}, fmt.Errorf("classification needs exactly 2 classes, found %d", len(seen))
	}
	classes := make([]float64, 0, 2)
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Float64s(classes)

	signed := make([]float64, len(y))
	for i, v := range y {
		if v == classes[1] {
			signed[i] = 1
		} else {
			signed[i] = -1
		}
	}
	return signed, [2]float64{classes[0], classes[1]}, nil
}

// labelFromScore maps a signed decision score back to the original labels.
func labelFromScore(score float64, classes [2]float64) float64 {
	if score >= 0 {
		return classes[1]
	}
	return classes[0]
}
