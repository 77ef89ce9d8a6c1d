package volume

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func mustElement(t *testing.T, tg tag.Tag, value interface{}) *dicom.Element {
	t.Helper()
	el, err := dicom.NewElement(tg, value)
	if err != nil {
		t.Fatalf("NewElement(%v) error = %v", tg, err)
	}
	return el
}

// writeSliceFile writes one single-frame grayscale slice. Pixel values are
// row-major with columns fastest, matching scanner output.
func writeSliceFile(t *testing.T, path string, instance, rows, cols int, spacing []string, thickness string, pixels []int) {
	t.Helper()

	data := make([][]int, len(pixels))
	for i, px := range pixels {
		data[i] = []int{px}
	}

	// Elements in ascending tag order, as the standard requires.
	elements := []*dicom.Element{
		mustElement(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		mustElement(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3." + strconv.Itoa(instance)}),
		mustElement(t, tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
	}
	if thickness != "" {
		elements = append(elements, mustElement(t, tag.SliceThickness, []string{thickness}))
	}
	elements = append(elements,
		mustElement(t, tag.InstanceNumber, []string{strconv.Itoa(instance)}),
		mustElement(t, tag.SamplesPerPixel, []int{1}),
		mustElement(t, tag.Rows, []int{rows}),
		mustElement(t, tag.Columns, []int{cols}),
	)
	if spacing != nil {
		elements = append(elements, mustElement(t, tag.PixelSpacing, spacing))
	}
	elements = append(elements,
		mustElement(t, tag.BitsAllocated, []int{16}),
		mustElement(t, tag.BitsStored, []int{16}),
		mustElement(t, tag.HighBit, []int{15}),
		mustElement(t, tag.PixelRepresentation, []int{0}),
	)
	elements = append(elements, mustElement(t, tag.PixelData, dicom.PixelDataInfo{
		IsEncapsulated: false,
		Frames: []*frame.Frame{{
			Encapsulated: false,
			NativeData: frame.NativeFrame{
				BitsPerSample: 16,
				Rows:          rows,
				Cols:          cols,
				Data:          data,
			},
		}},
	}))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := dicom.Write(f, dicom.Dataset{Elements: elements}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

// constantPixels fills a rows x cols slice with one value.
func constantPixels(rows, cols, value int) []int {
	px := make([]int, rows*cols)
	for i := range px {
		px[i] = value
	}
	return px
}

func TestLoadDICOMDirOrdersByInstance(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// Files land on disk out of order; assembly must follow InstanceNumber,
	// not the directory listing.
	const rows, cols = 2, 3
	spacing := []string{"3.0", "2.0"} // (row spacing, column spacing)
	writeSliceFile(t, filepath.Join(dir, "a.dcm"), 3, rows, cols, spacing, "2.5", constantPixels(rows, cols, 30))
	writeSliceFile(t, filepath.Join(dir, "b.dcm"), 1, rows, cols, spacing, "2.5", constantPixels(rows, cols, 10))
	writeSliceFile(t, filepath.Join(dir, "c.dcm"), 2, rows, cols, spacing, "2.5", constantPixels(rows, cols, 20))

	vol, err := LoadDICOMDir(dir)
	if err != nil {
		t.Fatalf("LoadDICOMDir() error = %v", err)
	}

	if vol.NT != 1 {
		t.Fatalf("frames = %d, want 1", vol.NT)
	}
	if vol.Grid.Dims != [3]int{cols, rows, 3} {
		t.Fatalf("dims = %v, want [%d %d 3]", vol.Grid.Dims, cols, rows)
	}
	// Row spacing maps to y, column spacing to x.
	if vol.Grid.Pixdim != [3]float32{2.0, 3.0, 2.5} {
		t.Fatalf("pixdim = %v, want [2 3 2.5]", vol.Grid.Pixdim)
	}

	nxy := rows * cols
	for z, want := range []float32{10, 20, 30} {
		for i := 0; i < nxy; i++ {
			if got := vol.Data[z*nxy+i]; got != want {
				t.Fatalf("slice %d voxel %d = %v, want %v", z, i, got, want)
			}
		}
	}
}

func TestLoadDICOMDirDefaultSpacing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSliceFile(t, filepath.Join(dir, "s.dcm"), 1, 2, 2, nil, "", constantPixels(2, 2, 5))

	vol, err := LoadDICOMDir(dir)
	if err != nil {
		t.Fatalf("LoadDICOMDir() error = %v", err)
	}
	if vol.Grid.Pixdim != [3]float32{1, 1, 1} {
		t.Fatalf("pixdim = %v, want [1 1 1]", vol.Grid.Pixdim)
	}
}

func TestLoadDICOMDirDimensionMismatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSliceFile(t, filepath.Join(dir, "a.dcm"), 1, 2, 3, nil, "", constantPixels(2, 3, 1))
	writeSliceFile(t, filepath.Join(dir, "b.dcm"), 2, 4, 3, nil, "", constantPixels(4, 3, 1))

	_, err := LoadDICOMDir(dir)
	if err == nil {
		t.Fatal("LoadDICOMDir() accepted mixed slice dimensions")
	}
	if !strings.Contains(err.Error(), "expected") {
		t.Errorf("error = %q, want dimension mismatch", err)
	}
}

func TestLoadDICOMDirEmpty(t *testing.T) {
	t.Parallel()
	_, err := LoadDICOMDir(t.TempDir())
	if err == nil {
		t.Fatal("LoadDICOMDir() accepted an empty directory")
	}
	if !strings.Contains(err.Error(), "no DICOM slices") {
		t.Errorf("error = %q, want no-slices message", err)
	}
}

func TestLoadDispatchesDirectoryToDICOM(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSliceFile(t, filepath.Join(dir, "s.dcm"), 1, 2, 2, nil, "", constantPixels(2, 2, 7))

	vol, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if vol.Grid.Dims != [3]int{2, 2, 1} {
		t.Fatalf("dims = %v, want [2 2 1]", vol.Grid.Dims)
	}
}
