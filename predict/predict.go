package predict

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/sbl8/voxlearn/dataset"
)

// Spec names the algorithm, its tunables, and an optional cross-validation
// strategy for one training run.
type Spec struct {
	Algorithm string
	Params    Params
	CV        Splitter // nil fits on all images without cross-validation
}

// Options configures an Engine.
type Options struct {
	Workers int // concurrent fold fits, 0 means 1
	Logger  *zap.Logger
}

// Result collects everything a training run produces. Cross-validated
// fields are nil when the Spec carried no CV strategy.
type Result struct {
	Algorithm string

	// All-data fit.
	Yfit      []float64
	Intercept float64
	WeightMap *dataset.Dataset // one image, voxelwise coefficients

	// Cross-validation, index-aligned with the input images.
	YfitXval           []float64
	InterceptXval      []float64        // one per fold
	WeightMapXval      *dataset.Dataset // one image per fold
	DistFromHyperplane []float64        // classifiers only
	Prob               []float64        // probability-capable classifiers only

	// Summary metrics. Computed on cross-validated predictions when CV
	// ran, on the in-sample fit otherwise.
	MCR  float64 // classifiers
	RMSE float64 // regressors
	R    float64 // regressors

	Stats RunStats
}

// RunStats holds wall-clock timings for one training run.
type RunStats struct {
	FitDuration   time.Duration
	FoldDurations []time.Duration
}

// Engine runs training jobs. The zero value is usable; NewEngine fills in
// worker and logger defaults.
type Engine struct {
	workers int
	logger  *zap.Logger
}

func NewEngine(opts Options) *Engine {
	e := &Engine{workers: opts.Workers, logger: opts.Logger}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Run fits the algorithm on all images, then cross-validates when the spec
// asks for it. Folds are fit concurrently up to the worker limit; each fold
// writes only its own test indices, so the shared output slices need no
// locking.
func (e *Engine) Run(ctx context.Context, ds *dataset.Dataset, spec Spec) (*Result, error) {
	n := ds.NumImages()
	nv := ds.NumVoxels()
	if n < 2 {
		return nil, fmt.Errorf("predict: need at least 2 images, got %d", n)
	}
	if ds.Y == nil {
		return nil, fmt.Errorf("predict: dataset has no labels")
	}

	est, err := New(spec.Algorithm, spec.Params)
	if err != nil {
		return nil, err
	}

	e.logger.Info("fitting model",
		zap.String("algorithm", spec.Algorithm),
		zap.Int("images", n),
		zap.Int("voxels", nv))

	start := time.Now()
	if err := est.Fit(ds.Data, ds.Y); err != nil {
		return nil, fmt.Errorf("predict: %s fit: %w", spec.Algorithm, err)
	}
	fitDur := time.Since(start)
	coef, intercept := est.Weights()

	res := &Result{
		Algorithm: spec.Algorithm,
		Yfit:      est.Predict(ds.Data),
		Intercept: intercept,
		WeightMap: &dataset.Dataset{
			Data:   mat.NewDense(1, nv, append([]float64{}, coef...)),
			Masker: ds.Masker,
		},
		Stats: RunStats{FitDuration: fitDur},
	}

	if spec.CV != nil {
		if err := e.crossValidate(ctx, ds, spec, res); err != nil {
			return nil, err
		}
	}

	scored := res.YfitXval
	dist := res.DistFromHyperplane
	if scored == nil {
		scored = res.Yfit
		if c, ok := est.(Classifier); ok {
			dist = c.DecisionFunction(ds.Data)
		}
	}
	if IsClassifier(spec.Algorithm) {
		res.MCR = 1 - Accuracy(scored, ds.Y)
		res.DistFromHyperplane = dist
		e.logger.Info("classification done",
			zap.Float64("mcr", res.MCR),
			zap.Duration("fit", res.Stats.FitDuration))
	} else {
		res.RMSE = RMSE(scored, ds.Y)
		res.R = Correlation(scored, ds.Y)
		e.logger.Info("regression done",
			zap.Float64("rmse", res.RMSE),
			zap.Float64("r", res.R),
			zap.Duration("fit", res.Stats.FitDuration))
	}
	return res, nil
}

func (e *Engine) crossValidate(ctx context.Context, ds *dataset.Dataset, spec Spec, res *Result) error {
	n := ds.NumImages()
	nv := ds.NumVoxels()

	folds, err := spec.CV.Split(n, ds.Y, ds.Subjects)
	if err != nil {
		return err
	}
	e.logger.Info("cross-validating", zap.Int("folds", len(folds)))

	res.YfitXval = make([]float64, n)
	res.InterceptXval = make([]float64, len(folds))
	res.Stats.FoldDurations = make([]time.Duration, len(folds))
	xvalWeights := mat.NewDense(len(folds), nv, nil)
	isClf := IsClassifier(spec.Algorithm)
	var dist, prob []float64
	if isClf {
		dist = make([]float64, n)
	}
	if spec.Algorithm == AlgoLogistic {
		prob = make([]float64, n)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for f := range folds {
		f := f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			defer func() { res.Stats.FoldDurations[f] = time.Since(start) }()

			fold := folds[f]
			trainX := subsetRows(ds.Data, fold.Train)
			trainY := subsetValues(ds.Y, fold.Train)
			testX := subsetRows(ds.Data, fold.Test)

			est, err := New(spec.Algorithm, spec.Params)
			if err != nil {
				return err
			}
			if err := est.Fit(trainX, trainY); err != nil {
				return fmt.Errorf("predict: fold %d fit: %w", f, err)
			}

			coef, b := est.Weights()
			res.InterceptXval[f] = b
			xvalWeights.SetRow(f, coef)

			pred := est.Predict(testX)
			for pos, i := range fold.Test {
				res.YfitXval[i] = pred[pos]
			}
			if c, ok := est.(Classifier); ok && dist != nil {
				d := c.DecisionFunction(testX)
				for pos, i := range fold.Test {
					dist[i] = d[pos]
				}
			}
			if p, ok := est.(ProbEstimator); ok && prob != nil {
				pr := p.Proba(testX)
				for pos, i := range fold.Test {
					prob[i] = pr[pos]
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	res.WeightMapXval = &dataset.Dataset{Data: xvalWeights, Masker: ds.Masker}
	res.DistFromHyperplane = dist
	res.Prob = prob
	return nil
}

func subsetRows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for pos, i := range idx {
		out.SetRow(pos, m.RawRowView(i))
	}
	return out
}

func subsetValues(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for pos, i := range idx {
		out[pos] = v[i]
	}
	return out
}
