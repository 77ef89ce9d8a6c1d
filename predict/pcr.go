package predict

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// pcrRegressor fits ordinary or lasso-penalized regression on the
// principal component scores of the training matrix and folds the
// component loadings back into a single voxel-space coefficient vector.
// With lassoAlpha > 0 the per-component problem is orthogonal, so the
// lasso solution is an exact soft-threshold rather than an iteration.
type pcrRegressor struct {
	linearModel
	components int
	lassoAlpha float64
}

func (r *pcrRegressor) Fit(x *mat.Dense, y []float64) error {
	c, err := centerXY(x, y)
	if err != nil {
		return err
	}
	n, p := c.x.Dims()

	var svd mat.SVD
	if !svd.Factorize(c.x, mat.SVDThin) {
		return fmt.Errorf("pcr: svd factorization failed")
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rank := len(s)
	tol := s[0] * 1e-10
	for rank > 0 && s[rank-1] <= tol {
		rank--
	}
	if r.components > 0 && r.components < rank {
		rank = r.components
	}
	if rank == 0 {
		return fmt.Errorf("pcr: training matrix has no variance")
	}

	// Scores are T = U*S, so for component j the least-squares solution
	// on the score is (t_j . yc) / s_j^2 = (u_j . yc) / s_j.
	gamma := make([]float64, rank)
	for j := 0; j < rank; j++ {
		var proj float64
		for i := 0; i < n; i++ {
			proj += u.At(i, j) * c.y[i]
		}
		if r.lassoAlpha > 0 {
			gamma[j] = softThreshold(s[j]*proj, r.lassoAlpha*float64(n)) / (s[j] * s[j])
		} else {
			gamma[j] = proj / s[j]
		}
	}

	coef := make([]float64, p)
	for j := 0; j < rank; j++ {
		if gamma[j] == 0 {
			continue
		}
		for k := 0; k < p; k++ {
			coef[k] += v.At(k, j) * gamma[j]
		}
	}

	r.coef = coef
	r.intercept = c.intercept(coef)
	return nil
}

func (r *pcrRegressor) Predict(x *mat.Dense) []float64 {
	return r.decision(x)
}
