// Package volume provides the fundamental 4D volume primitive for voxlearn.
//
// This package implements the Volume data structure, which is the fundamental
// data unit in voxlearn's pipeline. Each Volume couples a flat float32 voxel
// buffer with the grid geometry (dimensions, voxel spacing, affine) needed to
// interpret it, and carries one or more time frames in frame-major order.
//
// Key components:
//   - Grid: spatial geometry shared by all frames of a volume
//   - Volume: frame-major float32 voxel storage with validation and cloning
//   - NIfTI-1 codec for .nii and .nii.gz files
//   - DICOM series import for scanner output directories
//   - BufferPool for decode scratch reuse
//
// Frames are stored x-fastest: the voxel at (x, y, z) in frame t lives at
// index t*nx*ny*nz + z*nx*ny + y*nx + x. All loaders normalize voxel data to
// float32 regardless of the on-disk datatype.
package volume

import (
	"errors"
	"fmt"
	"math"
)

// Grid describes the spatial geometry of a volume: dimensions, voxel spacing
// in millimeters, repetition time in seconds, and the voxel-to-world affine.
type Grid struct {
	Dims   [3]int
	Pixdim [3]float32 // mm per voxel along x, y, z
	TR     float32    // seconds per frame, zero for static images
	Affine [4][4]float32
}

// NumVoxels returns the number of voxels in a single frame.
func (g Grid) NumVoxels() int {
	return g.Dims[0] * g.Dims[1] * g.Dims[2]
}

// Equal reports whether two grids describe the same sampling. Dimensions must
// match exactly; spacing and affine entries are compared within tolerance to
// absorb float32 header round-tripping.
func (g Grid) Equal(other Grid) bool {
	const tol = 1e-4
	if g.Dims != other.Dims {
		return false
	}
	for i := 0; i < 3; i++ {
		if math.Abs(float64(g.Pixdim[i]-other.Pixdim[i])) > tol {
			return false
		}
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(float64(g.Affine[i][j]-other.Affine[i][j])) > tol {
				return false
			}
		}
	}
	return true
}

// DefaultAffine builds a diagonal affine from the grid spacing. Used when a
// source file carries no spatial transform.
func (g Grid) DefaultAffine() [4][4]float32 {
	var a [4][4]float32
	a[0][0] = g.Pixdim[0]
	a[1][1] = g.Pixdim[1]
	a[2][2] = g.Pixdim[2]
	a[3][3] = 1
	return a
}

// Volume is a stack of frames sampled on a common grid.
type Volume struct {
	Grid Grid
	NT   int       // number of frames
	Data []float32 // frame-major voxel data, len = NT * Grid.NumVoxels()
}

// New allocates a zeroed volume with nt frames on the given grid.
func New(g Grid, nt int) *Volume {
	return &Volume{
		Grid: g,
		NT:   nt,
		Data: make([]float32, nt*g.NumVoxels()),
	}
}

// Frame returns the voxel slice for frame t. The slice aliases the volume's
// backing buffer.
func (v *Volume) Frame(t int) []float32 {
	nv := v.Grid.NumVoxels()
	return v.Data[t*nv : (t+1)*nv]
}

// At returns the voxel value at (x, y, z) in frame t.
func (v *Volume) At(x, y, z, t int) float32 {
	nx, ny := v.Grid.Dims[0], v.Grid.Dims[1]
	return v.Frame(t)[z*nx*ny+y*nx+x]
}

// SetAt stores a voxel value at (x, y, z) in frame t.
func (v *Volume) SetAt(x, y, z, t int, val float32) {
	nx, ny := v.Grid.Dims[0], v.Grid.Dims[1]
	v.Frame(t)[z*nx*ny+y*nx+x] = val
}

// Validate checks the structural integrity of a Volume.
func (v *Volume) Validate() error {
	if v == nil {
		return errors.New("volume is nil")
	}
	for i, d := range v.Grid.Dims {
		if d <= 0 {
			return fmt.Errorf("grid dimension %d is %d, must be positive", i, d)
		}
	}
	if v.NT <= 0 {
		return fmt.Errorf("frame count is %d, must be positive", v.NT)
	}
	if want := v.NT * v.Grid.NumVoxels(); len(v.Data) != want {
		return fmt.Errorf("data length %d does not match %d frames of %d voxels",
			len(v.Data), v.NT, v.Grid.NumVoxels())
	}
	return nil
}

// Clone creates a deep copy of the Volume.
func (v *Volume) Clone() *Volume {
	clone := &Volume{
		Grid: v.Grid,
		NT:   v.NT,
		Data: make([]float32, len(v.Data)),
	}
	copy(clone.Data, v.Data)
	return clone
}

// Concat stacks the frames of several volumes into one. All inputs must share
// the same grid.
func Concat(vols ...*Volume) (*Volume, error) {
	if len(vols) == 0 {
		return nil, errors.New("no volumes to concatenate")
	}
	nt := 0
	for i, v := range vols {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("volume %d: %w", i, err)
		}
		if !v.Grid.Equal(vols[0].Grid) {
			return nil, fmt.Errorf("volume %d is sampled on a different grid", i)
		}
		nt += v.NT
	}
	out := New(vols[0].Grid, nt)
	off := 0
	for _, v := range vols {
		copy(out.Data[off:], v.Data)
		off += len(v.Data)
	}
	return out, nil
}
