package dataset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRegressRecoversBetas(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	n := 40

	// Design: intercept plus one regressor.
	x := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, rng.NormFloat64())
	}

	// Voxel 0: y = 3 + 2*x + tiny noise. Voxel 1: pure noise.
	data := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		data.Set(i, 0, 3+2*x.At(i, 1)+0.01*rng.NormFloat64())
		data.Set(i, 1, rng.NormFloat64())
	}

	d := &Dataset{Data: data}
	require.NoError(t, d.SetDesign(x))

	res, err := d.Regress()
	require.NoError(t, err)

	assert.Equal(t, n-2, res.DF)
	assert.InDelta(t, 3.0, res.Beta.At(0, 0), 0.05)
	assert.InDelta(t, 2.0, res.Beta.At(1, 0), 0.05)

	// The true effect is overwhelming; the noise voxel is not.
	assert.Less(t, res.P.At(1, 0), 1e-6)
	assert.Greater(t, res.P.At(1, 1), 0.001)

	// Residuals of the signal voxel are at the noise scale.
	assert.Less(t, res.Sigma[0], 0.05)
}

func TestRegressErrors(t *testing.T) {
	t.Parallel()

	t.Run("no design", func(t *testing.T) {
		d := datasetFrom([][]float64{{1}, {2}, {3}})
		_, err := d.Regress()
		assert.ErrorContains(t, err, "no design matrix")
	})

	t.Run("too few images", func(t *testing.T) {
		d := datasetFrom([][]float64{{1}, {2}})
		require.NoError(t, d.SetDesign(mat.NewDense(2, 2, []float64{1, 0, 1, 1})))
		_, err := d.Regress()
		assert.ErrorContains(t, err, "cannot identify")
	})

	t.Run("rank deficient design", func(t *testing.T) {
		d := datasetFrom([][]float64{{1}, {2}, {3}, {4}})
		// Second column duplicates the first.
		x := mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4})
		require.NoError(t, d.SetDesign(x))
		_, err := d.Regress()
		assert.Error(t, err)
	})
}

func TestTTest(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(11))
	n := 30

	// Voxel 0: strong positive shift. Voxel 1: zero-centered noise.
	// Voxel 2: constant zero.
	data := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		data.Set(i, 0, 5+0.5*rng.NormFloat64())
		data.Set(i, 1, rng.NormFloat64())
		data.Set(i, 2, 0)
	}
	d := &Dataset{Data: data}

	res, err := d.TTest(nil)
	require.NoError(t, err)

	assert.Equal(t, n-1, res.DF)
	assert.Greater(t, res.T[0], 10.0)
	assert.Less(t, res.P[0], 1e-9)
	assert.Greater(t, res.P[1], 0.001)
	assert.Equal(t, 0.0, res.T[2])
	assert.Equal(t, 1.0, res.P[2])
}

func TestTTestTooFewImages(t *testing.T) {
	t.Parallel()
	d := datasetFrom([][]float64{{1, 2}})
	_, err := d.TTest(nil)
	assert.Error(t, err)
}

func TestTTestUncThreshold(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(3))
	n := 25
	data := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		data.Set(i, 0, 4+rng.NormFloat64())
		data.Set(i, 1, rng.NormFloat64())
	}
	d := &Dataset{Data: data}

	res, err := d.TTest(&Threshold{Unc: 0.001})
	require.NoError(t, err)
	assert.NotZero(t, res.T[0])
	assert.Zero(t, res.T[1]) // noise voxel does not survive
}

func TestTTestFDRThreshold(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(5))
	n := 25
	nv := 20

	// First five voxels carry real signal, the rest are noise.
	data := mat.NewDense(n, nv, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < nv; j++ {
			if j < 5 {
				data.Set(i, j, 6+rng.NormFloat64())
			} else {
				data.Set(i, j, rng.NormFloat64())
			}
		}
	}
	d := &Dataset{Data: data}

	res, err := d.TTest(&Threshold{FDR: 0.05})
	require.NoError(t, err)
	for j := 0; j < 5; j++ {
		assert.NotZerof(t, res.T[j], "signal voxel %d should survive FDR", j)
	}
	survivors := 0
	for j := 5; j < nv; j++ {
		if res.T[j] != 0 {
			survivors++
		}
	}
	assert.LessOrEqual(t, survivors, 1, "noise voxels surviving FDR")
}

func TestBenjaminiHochberg(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		pvals  []float64
		q      float64
		reject []bool
	}{
		{
			name:   "classic staircase",
			pvals:  []float64{0.01, 0.04, 0.03, 0.005},
			q:      0.05,
			reject: []bool{true, true, true, true},
		},
		{
			name:   "nothing significant",
			pvals:  []float64{0.5, 0.9, 0.7},
			q:      0.05,
			reject: []bool{false, false, false},
		},
		{
			name:   "partial rejection",
			pvals:  []float64{0.001, 0.8, 0.9, 0.95},
			q:      0.05,
			reject: []bool{true, false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reject, benjaminiHochberg(tt.pvals, tt.q))
		})
	}
}
