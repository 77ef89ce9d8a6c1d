package predict

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// makeRegressionData builds y = X w + b + noise with only the first few
// features informative.
func makeRegressionData(n, p int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = 2.0 + 5.0*x.At(i, 0) - 3.0*x.At(i, 1) + 0.05*rng.NormFloat64()
	}
	return x, y
}

// makeClassData builds a two-class mean-shift problem with labels 0 and 1.
func makeClassData(n, p int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		cls := float64(i % 2)
		shift := -2.0
		if cls == 1 {
			shift = 2.0
		}
		for j := 0; j < p; j++ {
			v := rng.NormFloat64()
			if j < 3 {
				v += shift
			}
			x.Set(i, j, v)
		}
		y[i] = cls
	}
	return x, y
}

func TestRegressorsRecoverLinearSignal(t *testing.T) {
	x, y := makeRegressionData(60, 10, 3)

	for _, name := range []string{AlgoOLS, AlgoRidge, AlgoLasso, AlgoPCR, AlgoLassoPCR, AlgoSVR} {
		name := name
		t.Run(name, func(t *testing.T) {
			est, err := New(name, Params{Alpha: 0.1})
			require.NoError(t, err)
			require.NoError(t, est.Fit(x, y))

			pred := est.Predict(x)
			require.Len(t, pred, 60)
			assert.Greater(t, Correlation(pred, y), 0.8, "in-sample fit too weak")
		})
	}
}

func TestOLSExactFit(t *testing.T) {
	x, y := makeRegressionData(50, 5, 9)
	est, err := New(AlgoOLS, Params{})
	require.NoError(t, err)
	require.NoError(t, est.Fit(x, y))

	coef, intercept := est.Weights()
	assert.InDelta(t, 5.0, coef[0], 0.1)
	assert.InDelta(t, -3.0, coef[1], 0.1)
	assert.InDelta(t, 2.0, intercept, 0.1)
}

func TestOLSMoreVoxelsThanImages(t *testing.T) {
	// p >> n is the normal case for masked brain data; the pseudo-inverse
	// must still produce a usable minimum-norm fit.
	x, y := makeRegressionData(15, 100, 21)
	est, err := New(AlgoOLS, Params{})
	require.NoError(t, err)
	require.NoError(t, est.Fit(x, y))

	pred := est.Predict(x)
	assert.Greater(t, Correlation(pred, y), 0.99)
}

func TestRidgeShrinksRelativeToOLS(t *testing.T) {
	x, y := makeRegressionData(40, 6, 5)

	ols, err := New(AlgoOLS, Params{})
	require.NoError(t, err)
	require.NoError(t, ols.Fit(x, y))
	ridge, err := New(AlgoRidge, Params{Alpha: 50})
	require.NoError(t, err)
	require.NoError(t, ridge.Fit(x, y))

	oc, _ := ols.Weights()
	rc, _ := ridge.Weights()
	var olsNorm, ridgeNorm float64
	for j := range oc {
		olsNorm += oc[j] * oc[j]
		ridgeNorm += rc[j] * rc[j]
	}
	assert.Less(t, ridgeNorm, olsNorm)
}

func TestLassoZeroesIrrelevantFeatures(t *testing.T) {
	x, y := makeRegressionData(60, 10, 7)
	est, err := New(AlgoLasso, Params{Alpha: 0.5})
	require.NoError(t, err)
	require.NoError(t, est.Fit(x, y))

	coef, _ := est.Weights()
	assert.NotZero(t, coef[0])
	assert.NotZero(t, coef[1])
	var zeros int
	for _, c := range coef[2:] {
		if c == 0 {
			zeros++
		}
	}
	assert.Greater(t, zeros, 0, "expected sparsity on noise features")
}

func TestPCRComponentCap(t *testing.T) {
	x, y := makeRegressionData(40, 8, 13)
	est, err := New(AlgoPCR, Params{Components: 3})
	require.NoError(t, err)
	require.NoError(t, est.Fit(x, y))

	pred := est.Predict(x)
	// Three components are enough to span a two-feature signal.
	assert.Greater(t, Correlation(pred, y), 0.9)
}

func TestClassifiersSeparateMeanShift(t *testing.T) {
	x, y := makeClassData(60, 6, 17)

	for _, name := range []string{AlgoSVM, AlgoLogistic, AlgoRidgeClassifier} {
		name := name
		t.Run(name, func(t *testing.T) {
			est, err := New(name, Params{})
			require.NoError(t, err)
			require.NoError(t, est.Fit(x, y))

			pred := est.Predict(x)
			assert.GreaterOrEqual(t, Accuracy(pred, y), 0.9)

			clf, ok := est.(Classifier)
			require.True(t, ok)
			dist := clf.DecisionFunction(x)
			for i := range pred {
				if dist[i] >= 0 {
					assert.Equal(t, 1.0, pred[i])
				} else {
					assert.Equal(t, 0.0, pred[i])
				}
			}
		})
	}
}

func TestLogisticProba(t *testing.T) {
	x, y := makeClassData(60, 6, 19)
	est, err := New(AlgoLogistic, Params{})
	require.NoError(t, err)
	require.NoError(t, est.Fit(x, y))

	pe, ok := est.(ProbEstimator)
	require.True(t, ok)
	probs := pe.Proba(x)
	for i, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		if y[i] == 1 {
			assert.Greater(t, p, 0.5, "image %d", i)
		} else {
			assert.Less(t, p, 0.5, "image %d", i)
		}
	}
}

func TestClassifierRejectsMoreThanTwoClasses(t *testing.T) {
	x, _ := makeClassData(30, 4, 23)
	y := make([]float64, 30)
	for i := range y {
		y[i] = float64(i % 3)
	}
	for _, name := range []string{AlgoSVM, AlgoLogistic, AlgoRidgeClassifier} {
		est, err := New(name, Params{})
		require.NoError(t, err)
		assert.Error(t, est.Fit(x, y), name)
	}
}

func TestNewUnknownAlgorithm(t *testing.T) {
	_, err := New("forest", Params{})
	assert.ErrorContains(t, err, "unknown algorithm")
}
