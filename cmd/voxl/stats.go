package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbl8/voxlearn/dataset"
	"github.com/sbl8/voxlearn/volume"
)

var (
	maskPath    string
	outPath     string
	uncAlpha    float64
	fdrQ        float64
	standardize bool
)

// loadDataset reads one or more volumes, concatenates them, and masks them
// with the explicit mask when given or an implicit data-derived mask.
func loadDataset(paths []string) (*dataset.Dataset, error) {
	vol, err := volume.LoadAll(paths)
	if err != nil {
		return nil, err
	}
	var m *dataset.Masker
	if maskPath != "" {
		m, err = dataset.FromMaskFile(maskPath)
		if err != nil {
			return nil, err
		}
	}
	ds, err := dataset.FromVolume(vol, m)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset loaded",
		zap.Int("images", ds.NumImages()),
		zap.Int("voxels", ds.NumVoxels()))
	return ds, nil
}

var maskCmd = &cobra.Command{
	Use:   "mask <volume>...",
	Short: "Apply a mask and write the masked volume back out",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if maskPath == "" {
			return fmt.Errorf("mask requires -m")
		}
		if outPath == "" {
			return fmt.Errorf("mask requires -o")
		}
		ds, err := loadDataset(args)
		if err != nil {
			return err
		}
		if standardize {
			ds.Standardize()
		}
		vol, err := ds.ToVolume()
		if err != nil {
			return err
		}
		return volume.Save(outPath, vol)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <mean|std|ttest> <volume>...",
	Short: "Compute voxelwise statistics across images",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if outPath == "" {
			return fmt.Errorf("stats requires -o")
		}
		ds, err := loadDataset(args[1:])
		if err != nil {
			return err
		}

		var out *dataset.Dataset
		switch args[0] {
		case "mean":
			out = ds.Mean()
		case "std":
			out = ds.Std()
		case "ttest":
			var thr *dataset.Threshold
			if uncAlpha > 0 || fdrQ > 0 {
				thr = &dataset.Threshold{Unc: uncAlpha, FDR: fdrQ}
			}
			res, err := ds.TTest(thr)
			if err != nil {
				return err
			}
			logger.Info("t-test done", zap.Int("df", res.DF))
			m := ds.Masker
			vol, err := m.InverseRow(res.T)
			if err != nil {
				return err
			}
			return volume.Save(outPath, vol)
		default:
			return fmt.Errorf("unknown statistic %q (mean, std, ttest)", args[0])
		}

		vol, err := out.ToVolume()
		if err != nil {
			return err
		}
		return volume.Save(outPath, vol)
	},
}

func init() {
	for _, c := range []*cobra.Command{maskCmd, statsCmd} {
		c.Flags().StringVarP(&maskPath, "mask", "m", "", "mask volume (default: derive from data)")
		c.Flags().StringVarP(&outPath, "out", "o", "", "output volume path")
	}
	maskCmd.Flags().BoolVar(&standardize, "zscore", false, "zscore each voxel across images")
	statsCmd.Flags().Float64Var(&uncAlpha, "unc", 0, "uncorrected p threshold for ttest")
	statsCmd.Flags().Float64Var(&fdrQ, "fdr", 0, "Benjamini-Hochberg q threshold for ttest")
}
