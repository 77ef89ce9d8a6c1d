package volume

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// dicomSlice is one decoded single-frame slice file, ordered by instance
// number before assembly into a volume.
type dicomSlice struct {
	instance int
	rows     int
	cols     int
	pixels   []float32
	spacing  [3]float32
}

// LoadDICOMDir reads a directory of single-frame DICOM slice files and stacks
// them into one 3D volume, ordered by InstanceNumber.
func LoadDICOMDir(dir string) (*Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var slices []dicomSlice
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		s, err := readDICOMSlice(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		slices = append(slices, s)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("no DICOM slices found in %s", dir)
	}

	sort.Slice(slices, func(i, j int) bool {
		return slices[i].instance < slices[j].instance
	})

	first := slices[0]
	for i, s := range slices {
		if s.rows != first.rows || s.cols != first.cols {
			return nil, fmt.Errorf("slice %d is %dx%d, expected %dx%d",
				i, s.cols, s.rows, first.cols, first.rows)
		}
	}

	g := Grid{
		Dims:   [3]int{first.cols, first.rows, len(slices)},
		Pixdim: first.spacing,
	}
	g.Affine = g.DefaultAffine()

	vol := New(g, 1)
	nxy := first.cols * first.rows
	for z, s := range slices {
		copy(vol.Data[z*nxy:(z+1)*nxy], s.pixels)
	}
	return vol, nil
}

func readDICOMSlice(path string) (dicomSlice, error) {
	var s dicomSlice

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return s, err
	}

	s.instance = dicomInt(&ds, tag.InstanceNumber, 0)
	s.spacing = [3]float32{1, 1, 1}
	if sp := dicomFloats(&ds, tag.PixelSpacing); len(sp) == 2 {
		// PixelSpacing is (row spacing, column spacing)
		s.spacing[0] = sp[1]
		s.spacing[1] = sp[0]
	}
	if th := dicomFloats(&ds, tag.SliceThickness); len(th) == 1 {
		s.spacing[2] = th[0]
	}

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return s, fmt.Errorf("no pixel data: %w", err)
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) != 1 {
		return s, fmt.Errorf("expected a single-frame slice, found %d frames", len(info.Frames))
	}
	native, err := info.Frames[0].GetNativeFrame()
	if err != nil {
		return s, fmt.Errorf("decode pixel frame: %w", err)
	}

	s.rows = native.Rows
	s.cols = native.Cols
	s.pixels = make([]float32, len(native.Data))
	for i, px := range native.Data {
		s.pixels[i] = float32(px[0]) // first sample; grayscale scanner output
	}
	return s, nil
}

// dicomInt reads the first value of an integer-string element, or fallback.
func dicomInt(ds *dicom.Dataset, t tag.Tag, fallback int) int {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return fallback
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0]
		}
	case []string:
		if len(v) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(v[0])); err == nil {
				return n
			}
		}
	}
	return fallback
}

// dicomFloats reads a decimal-string element as float32 values.
func dicomFloats(ds *dicom.Dataset, t tag.Tag) []float32 {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	raw, ok := el.Value.GetValue().([]string)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(raw))
	for _, s := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}
