package predict

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// olsRegressor fits ordinary least squares through the SVD pseudo-inverse,
// which stays defined when voxels outnumber images (the minimum-norm
// solution).
type olsRegressor struct {
	linearModel
}

func (r *olsRegressor) Fit(x *mat.Dense, y []float64) error {
	c, err := centerXY(x, y)
	if err != nil {
		return err
	}

	var svd mat.SVD
	if !svd.Factorize(c.x, mat.SVDThin) {
		return fmt.Errorf("svd failed to converge")
	}
	coef, err := pinvSolve(&svd, c.y)
	if err != nil {
		return err
	}

	r.coef = coef
	r.intercept = c.intercept(coef)
	return nil
}

func (r *olsRegressor) Predict(x *mat.Dense) []float64 { return r.decision(x) }

// pinvSolve computes V * diag(1/s) * U' * y with a relative tolerance cutoff
// on the singular values.
func pinvSolve(svd *mat.SVD, y []float64) ([]float64, error) {
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)
	if len(s) == 0 {
		return nil, fmt.Errorf("degenerate training data")
	}

	tol := s[0] * 1e-10
	p, k := v.Dims()
	coef := make([]float64, p)
	for j := 0; j < k; j++ {
		if s[j] <= tol {
			continue
		}
		// gamma_j = (u_j . y) / s_j
		var dot float64
		for i := range y {
			dot += u.At(i, j) * y[i]
		}
		gamma := dot / s[j]
		for i := 0; i < p; i++ {
			coef[i] += v.At(i, j) * gamma
		}
	}
	return coef, nil
}

// ridgeRegressor fits L2-penalized least squares in the dual (Gram) form:
// the solve is images-by-images, which is the cheap direction when voxels
// vastly outnumber images.
type ridgeRegressor struct {
	linearModel
	alpha float64
}

func (r *ridgeRegressor) Fit(x *mat.Dense, y []float64) error {
	c, err := centerXY(x, y)
	if err != nil {
		return err
	}
	coef, err := ridgeDual(c.x, c.y, r.alpha)
	if err != nil {
		return err
	}
	r.coef = coef
	r.intercept = c.intercept(coef)
	return nil
}

func (r *ridgeRegressor) Predict(x *mat.Dense) []float64 { return r.decision(x) }

// ridgeDual solves (XX' + alpha I) a = y, then maps back with coef = X'a.
func ridgeDual(xc *mat.Dense, yc []float64, alpha float64) ([]float64, error) {
	n, p := xc.Dims()

	var gram mat.Dense
	gram.Mul(xc, xc.T())
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := gram.At(i, j)
			if i == j {
				v += alpha
			}
			sym.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, fmt.Errorf("gram matrix not positive definite (alpha %g too small)", alpha)
	}
	var a mat.VecDense
	if err := chol.SolveVecTo(&a, mat.NewVecDense(n, yc)); err != nil {
		return nil, err
	}

	coef := make([]float64, p)
	var w mat.VecDense
	w.MulVec(xc.T(), &a)
	for j := 0; j < p; j++ {
		coef[j] = w.AtVec(j)
	}
	return coef, nil
}

// ridgeClassifier trains ridge regression on -1/+1 labels and classifies by
// the sign of the decision value.
type ridgeClassifier struct {
	linearModel
	alpha   float64
	classes [2]float64
}

func (r *ridgeClassifier) Fit(x *mat.Dense, y []float64) error {
	signed, classes, err := signedLabels(y)
	if err != nil {
		return err
	}
	r.classes = classes

	c, err := centerXY(x, signed)
	if err != nil {
		return err
	}
	coef, err := ridgeDual(c.x, c.y, r.alpha)
	if err != nil {
		return err
	}
	r.coef = coef
	r.intercept = c.intercept(coef)
	return nil
}

func (r *ridgeClassifier) DecisionFunction(x *mat.Dense) []float64 { return r.decision(x) }

func (r *ridgeClassifier) Predict(x *mat.Dense) []float64 {
	scores := r.decision(x)
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = labelFromScore(s, r.classes)
	}
	return out
}

// lassoRegressor fits L1-penalized least squares by cyclic coordinate
// descent with soft-thresholding.
type lassoRegressor struct {
	linearModel
	alpha   float64
	maxIter int
	tol     float64
}

func (r *lassoRegressor) Fit(x *mat.Dense, y []float64) error {
	c, err := centerXY(x, y)
	if err != nil {
		return err
	}
	n, p := c.x.Dims()

	// Column views and squared norms, computed once.
	cols := make([][]float64, p)
	norms := make([]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		mat.Col(col, j, c.x)
		cols[j] = col
		for _, v := range col {
			norms[j] += v * v
		}
	}

	coef := make([]float64, p)
	residual := append([]float64(nil), c.y...)
	penalty := r.alpha * float64(n)

	for iter := 0; iter < r.maxIter; iter++ {
		var maxChange float64
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			old := coef[j]
			var rho float64
			for i, v := range cols[j] {
				rho += v * residual[i]
			}
			rho += old * norms[j]

			next := softThreshold(rho, penalty) / norms[j]
			if next != old {
				delta := next - old
				for i, v := range cols[j] {
					residual[i] -= delta * v
				}
				coef[j] = next
				if d := absFloat(delta); d > maxChange {
					maxChange = d
				}
			}
		}
		if maxChange < r.tol {
			break
		}
	}

	r.coef = coef
	r.intercept = c.intercept(coef)
	return nil
}

func (r *lassoRegressor) Predict(x *mat.Dense) []float64 { return r.decision(x) }

func softThreshold(v, penalty float64) float64 {
	switch {
	case v > penalty:
		return v - penalty
	case v < -penalty:
		return v + penalty
	default:
		return 0
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
