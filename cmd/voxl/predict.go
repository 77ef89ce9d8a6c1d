package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbl8/voxlearn/config"
	"github.com/sbl8/voxlearn/dataset"
	"github.com/sbl8/voxlearn/predict"
	"github.com/sbl8/voxlearn/volume"
)

var (
	jobPath    string
	labelsPath string
	subjPath   string
	algorithm  string
	cvType     string
	cvFolds    int
	alpha      float64
	workers    int

	modelPath   string
	weightsPath string
	simMethod   string
)

var predictCmd = &cobra.Command{
	Use:   "predict [-c job.yaml | flags] [<volume>...]",
	Short: "Train a cross-validated model on labeled volumes",
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := resolveJob(args)
		if err != nil {
			return err
		}

		ds, err := buildJobDataset(job)
		if err != nil {
			return err
		}

		engine := predict.NewEngine(predict.Options{Workers: workers, Logger: logger})
		res, err := engine.Run(cmd.Context(), ds, predict.Spec{
			Algorithm: job.Algorithm,
			Params:    job.PredictParams(),
			CV:        job.Splitter(),
		})
		if err != nil {
			return err
		}

		if predict.IsClassifier(job.Algorithm) {
			fmt.Printf("%s: mcr=%.4f\n", job.Algorithm, res.MCR)
		} else {
			fmt.Printf("%s: rmse=%.4f r=%.4f\n", job.Algorithm, res.RMSE, res.R)
		}
		return writeOutputs(job, ds, res)
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <volume>...",
	Short: "Apply a stored model or weight map to new volumes",
	Long: `Apply scores each input image against a trained model (--model) or a
voxelwise weight map volume (--weights). Weight map scoring supports
correlation and dot_product methods; model scoring evaluates the stored
linear model inside its training mask.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case modelPath != "":
			return applyModel(args)
		case weightsPath != "":
			return applyWeights(args)
		default:
			return fmt.Errorf("apply requires --model or --weights")
		}
	},
}

// resolveJob builds the job either from a YAML file or from flags.
func resolveJob(args []string) (*config.Job, error) {
	if jobPath != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("-c and positional volumes are mutually exclusive")
		}
		return config.Load(jobPath)
	}

	job := &config.Job{
		Data:      args,
		Mask:      maskPath,
		Labels:    labelsPath,
		Subjects:  subjPath,
		Algorithm: algorithm,
		Params:    config.ParamsConfig{Alpha: alpha},
		CV:        config.CVConfig{Type: cvType, Folds: cvFolds},
		Output:    config.OutputConfig{WeightMap: outPath, Model: modelPath},
	}
	job.ApplyDefaults()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func buildJobDataset(job *config.Job) (*dataset.Dataset, error) {
	vol, err := volume.LoadAll(job.Data)
	if err != nil {
		return nil, err
	}
	var m *dataset.Masker
	if job.Mask != "" {
		if m, err = dataset.FromMaskFile(job.Mask); err != nil {
			return nil, err
		}
	}
	ds, err := dataset.FromVolume(vol, m)
	if err != nil {
		return nil, err
	}
	if err := ds.LoadLabels(job.Labels); err != nil {
		return nil, err
	}
	if job.Subjects != "" {
		subjects, err := dataset.ReadSubjects(job.Subjects)
		if err != nil {
			return nil, err
		}
		if err := ds.SetSubjects(subjects); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func writeOutputs(job *config.Job, ds *dataset.Dataset, res *predict.Result) error {
	if job.Output.WeightMap != "" {
		vol, err := res.WeightMap.ToVolume()
		if err != nil {
			return err
		}
		if err := volume.Save(job.Output.WeightMap, vol); err != nil {
			return err
		}
		logger.Info("wrote weight map", zap.String("path", job.Output.WeightMap))
	}
	if job.Output.Scores != "" {
		scores := res.YfitXval
		if scores == nil {
			scores = res.Yfit
		}
		if err := writeScoresCSV(job.Output.Scores, ds.Y, scores); err != nil {
			return err
		}
		logger.Info("wrote scores", zap.String("path", job.Output.Scores))
	}
	if job.Output.Model != "" {
		m, err := predict.FromResult(res)
		if err != nil {
			return err
		}
		if err := m.Save(job.Output.Model); err != nil {
			return err
		}
		logger.Info("wrote model", zap.String("path", job.Output.Model))
	}
	return nil
}

func writeScoresCSV(path string, y, yfit []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"image", "y", "yfit"}); err != nil {
		return err
	}
	for i := range yfit {
		row := []string{strconv.Itoa(i), "", strconv.FormatFloat(yfit[i], 'g', -1, 64)}
		if y != nil {
			row[1] = strconv.FormatFloat(y[i], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func applyModel(paths []string) error {
	if maskPath == "" {
		return fmt.Errorf("--model requires -m with the training mask")
	}
	m, err := predict.LoadModel(modelPath)
	if err != nil {
		return err
	}
	masker, err := dataset.FromMaskFile(maskPath)
	if err != nil {
		return err
	}
	if masker.NumVoxels() != len(m.Coef) {
		return fmt.Errorf("mask selects %d voxels, model was trained on %d",
			masker.NumVoxels(), len(m.Coef))
	}

	vol, err := volume.LoadAll(paths)
	if err != nil {
		return err
	}
	data, err := masker.Transform(vol)
	if err != nil {
		return err
	}
	n, _ := data.Dims()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = data.RawRowView(i)
	}
	scores, err := m.Apply(rows)
	if err != nil {
		return err
	}
	for i, s := range scores {
		fmt.Printf("%d\t%g\n", i, s)
	}
	return nil
}

func applyWeights(paths []string) error {
	wvol, err := volume.Load(weightsPath)
	if err != nil {
		return err
	}
	masker, err := dataset.MaskerFromVolume(wvol)
	if err != nil {
		return err
	}
	weights, err := dataset.FromVolume(wvol, masker)
	if err != nil {
		return err
	}

	vol, err := volume.LoadAll(paths)
	if err != nil {
		return err
	}
	ds, err := dataset.FromVolume(vol, masker)
	if err != nil {
		return err
	}

	scores, err := ds.Similarity(weights, simMethod)
	if err != nil {
		return err
	}
	for i, s := range scores {
		fmt.Printf("%d\t%g\n", i, s)
	}
	return nil
}

func init() {
	predictCmd.Flags().StringVarP(&jobPath, "config", "c", "", "job YAML file")
	predictCmd.Flags().StringVarP(&maskPath, "mask", "m", "", "mask volume")
	predictCmd.Flags().StringVar(&labelsPath, "labels", "", "labels CSV, one value per image")
	predictCmd.Flags().StringVar(&subjPath, "subjects", "", "subjects CSV for loso")
	predictCmd.Flags().StringVar(&algorithm, "algorithm", "", "algorithm name")
	predictCmd.Flags().StringVar(&cvType, "cv", "", "cross-validation type (kfold, stratified, loso, none)")
	predictCmd.Flags().IntVar(&cvFolds, "folds", 0, "number of folds")
	predictCmd.Flags().Float64Var(&alpha, "alpha", 0, "regularization strength")
	predictCmd.Flags().StringVarP(&outPath, "out", "o", "", "weight map output path")
	predictCmd.Flags().StringVar(&modelPath, "save-model", "", "write the fitted model here")
	predictCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "concurrent fold fits")

	applyCmd.Flags().StringVar(&modelPath, "model", "", "stored model file")
	applyCmd.Flags().StringVarP(&maskPath, "mask", "m", "", "mask used at training time")
	applyCmd.Flags().StringVar(&weightsPath, "weights", "", "weight map volume")
	applyCmd.Flags().StringVar(&simMethod, "method", dataset.SimilarityCorrelation, "correlation or dot_product")
}
