package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sbl8/voxlearn/volume"
)

// Dataset is a masked view of 4D data: one row per image, one column per
// masked voxel, with optional labels and a design matrix attached.
type Dataset struct {
	Data     *mat.Dense // images x voxels
	Y        []float64  // labels, one per image; nil when absent
	X        *mat.Dense // design matrix, one row per image; nil when absent
	Subjects []string   // subject identifier per image; nil when absent
	Masker   *Masker
}

// FromVolume masks a 4D volume into a Dataset. A nil masker derives an
// implicit mask from the data.
func FromVolume(vol *volume.Volume, m *Masker) (*Dataset, error) {
	if m == nil {
		var err error
		m, err = MaskerFromData(vol)
		if err != nil {
			return nil, err
		}
	}
	data, err := m.Transform(vol)
	if err != nil {
		return nil, err
	}
	return &Dataset{Data: data, Masker: m}, nil
}

// NumImages returns the number of rows (images).
func (d *Dataset) NumImages() int {
	if d.Data == nil {
		return 0
	}
	n, _ := d.Data.Dims()
	return n
}

// NumVoxels returns the number of columns (masked voxels).
func (d *Dataset) NumVoxels() int {
	if d.Data == nil {
		return 0
	}
	_, v := d.Data.Dims()
	return v
}

// Shape returns (images, voxels).
func (d *Dataset) Shape() (int, int) { return d.NumImages(), d.NumVoxels() }

// IsEmpty reports whether the dataset holds no data.
func (d *Dataset) IsEmpty() bool { return d.NumImages() == 0 }

// Slice returns a one-image dataset for row i, with the label carried along.
func (d *Dataset) Slice(i int) (*Dataset, error) {
	if i < 0 || i >= d.NumImages() {
		return nil, fmt.Errorf("image index %d out of range [0,%d)", i, d.NumImages())
	}
	row := mat.NewDense(1, d.NumVoxels(), nil)
	row.SetRow(0, d.Data.RawRowView(i))
	out := &Dataset{Data: row, Masker: d.Masker}
	if d.Y != nil {
		out.Y = []float64{d.Y[i]}
	}
	return out, nil
}

// SetY attaches labels, one per image.
func (d *Dataset) SetY(y []float64) error {
	if len(y) != d.NumImages() {
		return fmt.Errorf("%d labels for %d images", len(y), d.NumImages())
	}
	d.Y = y
	return nil
}

// SetSubjects attaches one subject identifier per image.
func (d *Dataset) SetSubjects(subjects []string) error {
	if len(subjects) != d.NumImages() {
		return fmt.Errorf("%d subject labels for %d images", len(subjects), d.NumImages())
	}
	d.Subjects = subjects
	return nil
}

// SetDesign attaches a design matrix, one row per image.
func (d *Dataset) SetDesign(x *mat.Dense) error {
	n, _ := x.Dims()
	if n != d.NumImages() {
		return fmt.Errorf("design matrix has %d rows for %d images", n, d.NumImages())
	}
	d.X = x
	return nil
}

// Append stacks another dataset's images under this one. Both must have the
// same number of voxels. Labels are concatenated when both sides carry them.
func (d *Dataset) Append(other *Dataset) (*Dataset, error) {
	if d.IsEmpty() {
		return other, nil
	}
	if d.NumVoxels() != other.NumVoxels() {
		return nil, fmt.Errorf("data has a different number of voxels than the dataset being appended")
	}

	n1, nv := d.Data.Dims()
	n2, _ := other.Data.Dims()
	out := mat.NewDense(n1+n2, nv, nil)
	for i := 0; i < n1; i++ {
		out.SetRow(i, d.Data.RawRowView(i))
	}
	for i := 0; i < n2; i++ {
		out.SetRow(n1+i, other.Data.RawRowView(i))
	}

	res := &Dataset{Data: out, Masker: d.Masker}
	if d.Y != nil && other.Y != nil {
		res.Y = append(append([]float64{}, d.Y...), other.Y...)
	}
	if d.Subjects != nil && other.Subjects != nil {
		res.Subjects = append(append([]string{}, d.Subjects...), other.Subjects...)
	}
	return res, nil
}

// Mean returns a one-image dataset holding the voxelwise mean across images.
func (d *Dataset) Mean() *Dataset {
	return d.reduce(func(col []float64) float64 {
		return stat.Mean(col, nil)
	})
}

// Std returns a one-image dataset holding the voxelwise population standard
// deviation across images.
func (d *Dataset) Std() *Dataset {
	return d.reduce(func(col []float64) float64 {
		return math.Sqrt(stat.PopVariance(col, nil))
	})
}

func (d *Dataset) reduce(fn func(col []float64) float64) *Dataset {
	n, nv := d.Data.Dims()
	out := mat.NewDense(1, nv, nil)
	col := make([]float64, n)
	for j := 0; j < nv; j++ {
		mat.Col(col, j, d.Data)
		out.Set(0, j, fn(col))
	}
	return &Dataset{Data: out, Masker: d.Masker}
}

// Standardize zscores each voxel column across images in place. Constant
// voxels become zero.
func (d *Dataset) Standardize() {
	n, nv := d.Data.Dims()
	col := make([]float64, n)
	for j := 0; j < nv; j++ {
		mat.Col(col, j, d.Data)
		mean := stat.Mean(col, nil)
		sd := math.Sqrt(stat.PopVariance(col, nil))
		for i := 0; i < n; i++ {
			if sd == 0 {
				d.Data.Set(i, j, 0)
			} else {
				d.Data.Set(i, j, (col[i]-mean)/sd)
			}
		}
	}
}

// Similarity methods.
const (
	SimilarityCorrelation = "correlation"
	SimilarityDotProduct  = "dot_product"
)

// Similarity computes the pattern expression of each image against a single
// template image (typically a weight map): one value per image, by Pearson
// correlation or dot product. Voxel counts must match.
func (d *Dataset) Similarity(image *Dataset, method string) ([]float64, error) {
	if image.NumImages() != 1 {
		return nil, fmt.Errorf("template has %d images, expected exactly one", image.NumImages())
	}
	if d.NumVoxels() != image.NumVoxels() {
		return nil, fmt.Errorf("data has a different number of voxels than the template image")
	}

	tmpl := image.Data.RawRowView(0)
	out := make([]float64, d.NumImages())
	for i := range out {
		row := d.Data.RawRowView(i)
		switch method {
		case SimilarityCorrelation, "":
			out[i] = stat.Correlation(row, tmpl, nil)
		case SimilarityDotProduct:
			out[i] = floats.Dot(row, tmpl)
		default:
			return nil, fmt.Errorf("unknown similarity method %q", method)
		}
	}
	return out, nil
}

// ToVolume projects the dataset back into a 4D volume through its masker.
func (d *Dataset) ToVolume() (*volume.Volume, error) {
	if d.Masker == nil {
		return nil, fmt.Errorf("dataset has no masker")
	}
	return d.Masker.InverseMatrix(d.Data)
}
