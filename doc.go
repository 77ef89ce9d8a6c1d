// Package voxlearn is a toolbox for multivariate analysis of 4D neuroimaging data.
//
// Voxlearn loads stacks of 3D brain volumes (functional MRI runs, beta images,
// contrast maps), reduces them through a binary mask into a flat images-by-voxels
// matrix, and runs voxelwise statistics and cross-validated predictive models on
// the result. Trained models produce 3D weight maps that can be written back out
// as volumes and applied to new data as pattern-expression templates.
//
// # Architecture Overview
//
// The toolbox consists of several key components:
//
//   - Volumes: 4D float32 arrays with grid geometry, read and written as NIfTI-1
//   - Maskers: bidirectional mappings between volume space and matrix space
//   - Datasets: masked matrices with labels and design matrices attached
//   - Predictors: linear estimators with cross-validation and weight-map recovery
//
// # Basic Usage
//
//	// Mask a 4D run down to a dataset
//	vol, err := volume.Load("run1.nii.gz")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	masker, err := dataset.FromMaskFile("gray_matter.nii.gz")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ds, err := dataset.FromVolume(vol, masker)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Cross-validated ridge prediction
//	ds.SetY(labels)
//	engine := predict.NewEngine(predict.Options{Workers: 4})
//	res, err := engine.Run(ctx, ds, predict.Spec{
//	    Algorithm: "ridge",
//	    CV:        predict.KFold{K: 5, Shuffle: true, Seed: 42},
//	})
//
// # Package Structure
//
//   - volume: 4D volume primitive, NIfTI-1 codec, DICOM series import
//   - voxops: in-place float32 kernels for mask gather/scatter and voxel math
//   - dataset: masked matrix view, voxelwise statistics, pattern expression
//   - predict: estimators, cross-validation, prediction engine, model files
//   - config: YAML job specifications for batch prediction runs
//   - cmd/voxl: command-line interface
//
// For more information, see the documentation at https://pkg.go.dev/voxlearn
// and the project repository at https://github.com/sbl8/voxlearn
package voxlearn
