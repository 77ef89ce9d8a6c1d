// Package dataset provides the masked matrix view over 4D volumes.
//
// This package implements the central abstraction of the toolbox: a Dataset
// is an images-by-voxels float64 matrix produced by pushing a 4D volume
// through a Masker, together with optional labels and a design matrix. All
// statistics and prediction run on Datasets; Maskers carry enough geometry
// to project any row back into a 3D volume.
//
// Key components:
//   - Masker: bidirectional mapping between volume space and matrix space
//   - Dataset: matrix view with labels, design matrix, and per-voxel stats
//   - Voxelwise OLS regression and one-sample t-tests with thresholding
//
// Matrix space is float64 (gonum mat); volume space is float32. The Masker
// converts at the boundary.
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sbl8/voxlearn/volume"
	"github.com/sbl8/voxlearn/voxops"
)

// Masker maps between a volume grid and the flat voxel axis of a Dataset.
// The mapping is a sorted list of linear voxel indices; everything outside
// it is dropped on Transform and zero-filled on Inverse.
type Masker struct {
	grid    volume.Grid
	indices []int32
}

// MaskerFromVolume builds a Masker from a binary mask image. Voxels with a
// nonzero, finite value are kept. The mask must be a single 3D frame.
func MaskerFromVolume(mask *volume.Volume) (*Masker, error) {
	if err := mask.Validate(); err != nil {
		return nil, fmt.Errorf("mask: %w", err)
	}
	if mask.NT != 1 {
		return nil, fmt.Errorf("mask has %d frames, expected a single 3D volume", mask.NT)
	}

	var idx []int32
	for i, v := range mask.Data {
		if v != 0 && !math.IsNaN(float64(v)) {
			idx = append(idx, int32(i))
		}
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("mask selects no voxels")
	}
	return &Masker{grid: mask.Grid, indices: idx}, nil
}

// MaskerFromData derives an implicit mask from the data itself: voxels that
// are finite in every frame and vary across frames. Used when no explicit
// mask image is supplied.
func MaskerFromData(vol *volume.Volume) (*Masker, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}

	nv := vol.Grid.NumVoxels()
	keep := make([]bool, nv)
	for j := 0; j < nv; j++ {
		keep[j] = true
	}

	for t := 0; t < vol.NT; t++ {
		frame := vol.Frame(t)
		for j := 0; j < nv; j++ {
			f := float64(frame[j])
			if math.IsNaN(f) || math.IsInf(f, 0) {
				keep[j] = false
			}
		}
	}

	var idx []int32
	for j := 0; j < nv; j++ {
		if !keep[j] {
			continue
		}
		if vol.NT > 1 && constantAcross(vol, j) {
			continue
		}
		if vol.NT == 1 && vol.Data[j] == 0 {
			continue // single frame: drop background zeros
		}
		idx = append(idx, int32(j))
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("no usable voxels in data")
	}
	return &Masker{grid: vol.Grid, indices: idx}, nil
}

func constantAcross(vol *volume.Volume, j int) bool {
	first := vol.Data[j]
	nv := vol.Grid.NumVoxels()
	for t := 1; t < vol.NT; t++ {
		if vol.Data[t*nv+j] != first {
			return false
		}
	}
	return true
}

// FromMaskFile loads a mask image from disk and builds a Masker from it.
func FromMaskFile(path string) (*Masker, error) {
	mask, err := volume.Load(path)
	if err != nil {
		return nil, err
	}
	return MaskerFromVolume(mask)
}

// Grid returns the grid the masker was built on.
func (m *Masker) Grid() volume.Grid { return m.grid }

// NumVoxels returns the number of voxels inside the mask.
func (m *Masker) NumVoxels() int { return len(m.indices) }

// Indices returns the sorted linear voxel indices of the mask.
func (m *Masker) Indices() []int32 { return m.indices }

// Transform extracts the masked voxels of every frame into an
// images-by-voxels matrix. The volume must be sampled on the masker's grid;
// mismatched grids are an error, not an implicit resample.
func (m *Masker) Transform(vol *volume.Volume) (*mat.Dense, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	if !vol.Grid.Equal(m.grid) {
		return nil, fmt.Errorf("data is sampled on a different grid than the mask")
	}

	nv := len(m.indices)
	raw := make([]float64, vol.NT*nv)
	scratch := make([]float32, nv)
	for t := 0; t < vol.NT; t++ {
		voxops.Gather(scratch, vol.Frame(t), m.indices)
		row := raw[t*nv : (t+1)*nv]
		for j, v := range scratch {
			row[j] = float64(v)
		}
	}
	return mat.NewDense(vol.NT, nv, raw), nil
}

// InverseRow scatters one matrix row back into a 3D volume. Voxels outside
// the mask are zero.
func (m *Masker) InverseRow(row []float64) (*volume.Volume, error) {
	if len(row) != len(m.indices) {
		return nil, fmt.Errorf("row has %d values, mask has %d voxels", len(row), len(m.indices))
	}
	vol := volume.New(m.grid, 1)
	scratch := make([]float32, len(row))
	for j, v := range row {
		scratch[j] = float32(v)
	}
	voxops.Scatter(vol.Data, scratch, m.indices)
	return vol, nil
}

// InverseMatrix scatters every row of a matrix into the frames of a 4D
// volume.
func (m *Masker) InverseMatrix(x *mat.Dense) (*volume.Volume, error) {
	nt, nv := x.Dims()
	if nv != len(m.indices) {
		return nil, fmt.Errorf("matrix has %d columns, mask has %d voxels", nv, len(m.indices))
	}
	vol := volume.New(m.grid, nt)
	scratch := make([]float32, nv)
	for t := 0; t < nt; t++ {
		row := x.RawRowView(t)
		for j, v := range row {
			scratch[j] = float32(v)
		}
		voxops.Scatter(vol.Frame(t), scratch, m.indices)
	}
	return vol, nil
}
