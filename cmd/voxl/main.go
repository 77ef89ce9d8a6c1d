// Command voxl is the command line front end for the voxlearn toolbox. It
// loads 4D volumes, applies masks, computes voxelwise statistics, trains
// predictive models, and applies stored weight maps to new data.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbl8/voxlearn/logging"
	"github.com/sbl8/voxlearn/volume"
)

var (
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "voxl",
	Short: "Multivariate analysis of neuroimaging volumes",
	Long: `voxl reads NIfTI-1 volumes and DICOM series, masks them into
image-by-voxel matrices, and runs voxelwise statistics and
cross-validated prediction on them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <volume>...",
	Short: "Print grid and timing information for volumes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			vol, err := volume.Load(path)
			if err != nil {
				return err
			}
			g := vol.Grid
			fmt.Printf("%s: %dx%dx%d voxels, %d frames, pixdim %gx%gx%g mm, TR %gs\n",
				path, g.Dims[0], g.Dims[1], g.Dims[2], vol.NT,
				g.Pixdim[0], g.Pixdim[1], g.Pixdim[2], g.TR)
		}
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <dicom-dir> <out.nii[.gz]>",
	Short: "Convert a DICOM series directory to NIfTI-1",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vol, err := volume.LoadDICOMDir(args[0])
		if err != nil {
			return err
		}
		logger.Info("converted series",
			zap.String("dir", args[0]),
			zap.Int("frames", vol.NT),
			zap.Int("voxels", vol.Grid.NumVoxels()))
		return volume.Save(args[1], vol)
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(infoCmd, convertCmd, maskCmd, statsCmd, predictCmd, applyCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
