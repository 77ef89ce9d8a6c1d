// Package config loads prediction job files. A job YAML names the input
// volumes, an optional mask and label files, the algorithm with its
// tunables, the cross-validation strategy, and where outputs go.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sbl8/voxlearn/predict"
)

const (
	defaultAlgorithm = predict.AlgoRidge
	defaultFolds     = 5
	defaultSeed      = 42
)

// ParamsConfig holds the algorithm tunables. Zero values defer to the
// algorithm defaults.
type ParamsConfig struct {
	Alpha      float64 `yaml:"alpha,omitempty"`
	Components int     `yaml:"components,omitempty"`
	MaxIter    int     `yaml:"max_iter,omitempty"`
	Tol        float64 `yaml:"tol,omitempty"`
	Epsilon    float64 `yaml:"epsilon,omitempty"`
	Seed       int64   `yaml:"seed,omitempty"`
}

// CVConfig selects the cross-validation strategy.
type CVConfig struct {
	Type    string `yaml:"type"` // kfold, stratified, loso, or none
	Folds   int    `yaml:"folds,omitempty"`
	Shuffle bool   `yaml:"shuffle,omitempty"`
	Seed    int64  `yaml:"seed,omitempty"`
}

// OutputConfig names the files a job writes. Empty entries are skipped.
type OutputConfig struct {
	WeightMap string `yaml:"weight_map,omitempty"`
	Scores    string `yaml:"scores,omitempty"`
	Model     string `yaml:"model,omitempty"`
}

// Job models one prediction job file.
type Job struct {
	Data     []string `yaml:"data"` // NIfTI files or DICOM directories, concatenated in order
	Mask     string   `yaml:"mask,omitempty"`
	Labels   string   `yaml:"labels,omitempty"`
	Subjects string   `yaml:"subjects,omitempty"`

	Algorithm string       `yaml:"algorithm"`
	Params    ParamsConfig `yaml:"params,omitempty"`
	CV        CVConfig     `yaml:"cv,omitempty"`
	Output    OutputConfig `yaml:"output,omitempty"`
}

// Load reads and validates a job file. Relative paths inside the job are
// resolved against the job file's directory.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var job Job
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&job); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	job.ApplyDefaults()
	job.normalize(filepath.Dir(path))
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &job, nil
}

// ApplyDefaults fills in the ridge/5-fold defaults for fields the job
// left unset. Load calls this; jobs assembled from flags should too.
func (j *Job) ApplyDefaults() {
	if j.Algorithm == "" {
		j.Algorithm = defaultAlgorithm
	}
	if j.CV.Type == "" {
		j.CV.Type = "kfold"
	}
	if j.CV.Folds == 0 {
		j.CV.Folds = defaultFolds
	}
	if j.CV.Seed == 0 {
		j.CV.Seed = defaultSeed
	}
}

func (j *Job) normalize(base string) {
	j.Algorithm = strings.TrimSpace(j.Algorithm)
	j.CV.Type = strings.ToLower(strings.TrimSpace(j.CV.Type))
	for i := range j.Data {
		j.Data[i] = resolvePath(base, j.Data[i])
	}
	j.Mask = resolvePath(base, j.Mask)
	j.Labels = resolvePath(base, j.Labels)
	j.Subjects = resolvePath(base, j.Subjects)
	j.Output.WeightMap = resolvePath(base, j.Output.WeightMap)
	j.Output.Scores = resolvePath(base, j.Output.Scores)
	j.Output.Model = resolvePath(base, j.Output.Model)
}

// Validate checks the job for contradictions before any data is read.
func (j *Job) Validate() error {
	if len(j.Data) == 0 {
		return fmt.Errorf("data is required")
	}
	if _, err := predict.New(j.Algorithm, predict.Params{}); err != nil {
		return err
	}
	switch j.CV.Type {
	case "none":
	case "kfold", "stratified":
		if j.CV.Folds < 2 {
			return fmt.Errorf("cv.folds must be >= 2, got %d", j.CV.Folds)
		}
	case "loso":
		if j.Subjects == "" {
			return fmt.Errorf("cv type loso requires a subjects file")
		}
	default:
		return fmt.Errorf("cv.type must be kfold, stratified, loso, or none")
	}
	if j.Labels == "" {
		return fmt.Errorf("labels file is required for prediction")
	}
	return nil
}

// PredictParams converts the YAML tunables to the predict package form.
func (j *Job) PredictParams() predict.Params {
	return predict.Params{
		Alpha:      j.Params.Alpha,
		Components: j.Params.Components,
		MaxIter:    j.Params.MaxIter,
		Tol:        j.Params.Tol,
		Epsilon:    j.Params.Epsilon,
		Seed:       j.Params.Seed,
	}
}

// Splitter builds the cross-validation strategy the job asked for, or nil
// for cv type none.
func (j *Job) Splitter() predict.Splitter {
	switch j.CV.Type {
	case "kfold":
		return predict.KFold{K: j.CV.Folds, Shuffle: j.CV.Shuffle, Seed: j.CV.Seed}
	case "stratified":
		return predict.StratifiedKFold{K: j.CV.Folds, Seed: j.CV.Seed}
	case "loso":
		return predict.LOSO{}
	default:
		return nil
	}
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
