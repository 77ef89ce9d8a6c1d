package dataset

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RegressResult holds voxelwise OLS statistics: one column per voxel, one
// row per design regressor (beta, t, p) or per image (residuals).
type RegressResult struct {
	Beta     *mat.Dense // regressors x voxels
	T        *mat.Dense // regressors x voxels
	P        *mat.Dense // regressors x voxels, two-sided
	Sigma    []float64  // per-voxel residual standard deviation
	Residual *mat.Dense // images x voxels
	DF       int
}

// Regress fits the attached design matrix to every voxel column by ordinary
// least squares and returns betas with t and two-sided p statistics.
func (d *Dataset) Regress() (*RegressResult, error) {
	if d.X == nil {
		return nil, fmt.Errorf("dataset has no design matrix")
	}
	n, nv := d.Data.Dims()
	xn, k := d.X.Dims()
	if xn != n {
		return nil, fmt.Errorf("design matrix has %d rows for %d images", xn, n)
	}
	if n <= k {
		return nil, fmt.Errorf("%d images cannot identify %d regressors", n, k)
	}

	// (X'X)^-1, reused for both the projector and the standard errors.
	var xtx mat.Dense
	xtx.Mul(d.X.T(), d.X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("design matrix is rank deficient: %w", err)
	}

	// Beta = (X'X)^-1 X' Data
	var proj mat.Dense
	proj.Mul(&inv, d.X.T())
	var beta mat.Dense
	beta.Mul(&proj, d.Data)

	// Residuals and per-voxel noise level.
	var fitted mat.Dense
	fitted.Mul(d.X, &beta)
	var res mat.Dense
	res.Sub(d.Data, &fitted)

	sigma := make([]float64, nv)
	for j := 0; j < nv; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			r := res.At(i, j)
			sum += r * r
		}
		sigma[j] = math.Sqrt(sum / float64(n))
	}

	df := n - k
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}

	tmat := mat.NewDense(k, nv, nil)
	pmat := mat.NewDense(k, nv, nil)
	for i := 0; i < k; i++ {
		se := math.Sqrt(inv.At(i, i))
		for j := 0; j < nv; j++ {
			stderr := se * sigma[j]
			if stderr == 0 {
				tmat.Set(i, j, 0)
				pmat.Set(i, j, 1)
				continue
			}
			t := beta.At(i, j) / stderr
			tmat.Set(i, j, t)
			pmat.Set(i, j, 2*dist.Survival(math.Abs(t)))
		}
	}

	return &RegressResult{
		Beta:     &beta,
		T:        tmat,
		P:        pmat,
		Sigma:    sigma,
		Residual: &res,
		DF:       df,
	}, nil
}

// Threshold selects a multiple-comparison policy for TTest. Exactly one
// field should be set: Unc keeps voxels with p below the given uncorrected
// cutoff, FDR controls the false discovery rate at the given level by the
// Benjamini-Hochberg procedure.
type Threshold struct {
	Unc float64
	FDR float64
}

// TTestResult holds voxelwise one-sample t statistics. When a threshold is
// applied, T is zeroed at voxels that do not survive.
type TTestResult struct {
	T  []float64
	P  []float64
	DF int
}

// TTest runs a two-sided one-sample t-test against zero at every voxel.
func (d *Dataset) TTest(thr *Threshold) (*TTestResult, error) {
	n, nv := d.Data.Dims()
	if n < 2 {
		return nil, fmt.Errorf("t-test needs at least 2 images, have %d", n)
	}

	df := n - 1
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}

	tvals := make([]float64, nv)
	pvals := make([]float64, nv)
	col := make([]float64, n)
	for j := 0; j < nv; j++ {
		mat.Col(col, j, d.Data)
		mean, sd := meanSampleSD(col)
		if sd == 0 {
			tvals[j] = 0
			pvals[j] = 1
			continue
		}
		t := mean / (sd / math.Sqrt(float64(n)))
		tvals[j] = t
		pvals[j] = 2 * dist.Survival(math.Abs(t))
	}

	if thr != nil {
		applyThreshold(tvals, pvals, thr)
	}
	return &TTestResult{T: tvals, P: pvals, DF: df}, nil
}

func meanSampleSD(x []float64) (mean, sd float64) {
	n := float64(len(x))
	for _, v := range x {
		mean += v
	}
	mean /= n
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}

func applyThreshold(tvals, pvals []float64, thr *Threshold) {
	switch {
	case thr.Unc > 0:
		for j, p := range pvals {
			if p > thr.Unc {
				tvals[j] = 0
			}
		}
	case thr.FDR > 0:
		reject := benjaminiHochberg(pvals, thr.FDR)
		for j := range tvals {
			if !reject[j] {
				tvals[j] = 0
			}
		}
	}
}

// benjaminiHochberg returns the rejection mask controlling FDR at level q:
// with p-values sorted ascending, every hypothesis up to the largest k with
// p(k) <= q*k/m is rejected.
func benjaminiHochberg(pvals []float64, q float64) []bool {
	m := len(pvals)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return pvals[order[a]] < pvals[order[b]]
	})

	cut := -1
	for rank, idx := range order {
		if pvals[idx] <= q*float64(rank+1)/float64(m) {
			cut = rank
		}
	}

	reject := make([]bool, m)
	for rank := 0; rank <= cut; rank++ {
		reject[order[rank]] = true
	}
	return reject
}
