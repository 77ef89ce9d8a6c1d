package volume

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// NIfTI-1 datatype codes, the subset this codec accepts.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
)

const (
	niftiHeaderSize = 348
	niftiVoxOffset  = 352 // header + 4-byte extension flag
)

// nifti1Header mirrors the fixed 348-byte NIfTI-1 header layout field for
// field. Reserved analyze-era fields are kept so binary.Read walks the file
// at the right offsets.
type nifti1Header struct {
	SizeofHdr     int32
	DataTypeName  [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// Load reads a volume from path. Dispatch is by shape: directories are read
// as DICOM series, .nii and .nii.gz as NIfTI-1.
func Load(path string) (*Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadDICOMDir(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	vol, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return vol, nil
}

// LoadAll reads several volumes and concatenates their frames. Used to build
// a 4D dataset from per-image files (one beta or contrast map per row).
func LoadAll(paths []string) (*Volume, error) {
	vols := make([]*Volume, 0, len(paths))
	for _, p := range paths {
		v, err := Load(p)
		if err != nil {
			return nil, err
		}
		vols = append(vols, v)
	}
	return Concat(vols...)
}

// Decode reads a single-file NIfTI-1 image from r.
func Decode(r io.Reader) (*Volume, error) {
	raw := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	hdr, order, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	grid, nt, err := gridFromHeader(hdr)
	if err != nil {
		return nil, err
	}

	// Skip the gap between the header and the voxel section. vox_offset is
	// at least 352 in conforming single-file images.
	skip := int64(hdr.VoxOffset) - niftiHeaderSize
	if skip < 0 {
		return nil, fmt.Errorf("vox_offset %f precedes end of header", hdr.VoxOffset)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, fmt.Errorf("skip to voxel data: %w", err)
	}

	vol := New(grid, nt)
	if err := decodeVoxels(r, order, hdr, vol); err != nil {
		return nil, err
	}
	return vol, nil
}

// parseHeader decodes the fixed header, detecting byte order from sizeof_hdr.
func parseHeader(raw []byte) (*nifti1Header, binary.ByteOrder, error) {
	var hdr nifti1Header
	var order binary.ByteOrder = binary.LittleEndian
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, nil, err
	}
	if hdr.SizeofHdr != niftiHeaderSize {
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
			return nil, nil, err
		}
		if hdr.SizeofHdr != niftiHeaderSize {
			return nil, nil, fmt.Errorf("sizeof_hdr is %d, not a NIfTI-1 file", hdr.SizeofHdr)
		}
	}

	switch {
	case hdr.Magic[0] == 'n' && hdr.Magic[1] == '+' && hdr.Magic[2] == '1':
		// single-file image
	case hdr.Magic[0] == 'n' && hdr.Magic[1] == 'i' && hdr.Magic[2] == '1':
		return nil, nil, errors.New("two-file (.hdr/.img) NIfTI pairs are not supported")
	default:
		return nil, nil, fmt.Errorf("invalid magic %q", hdr.Magic[:3])
	}
	return &hdr, order, nil
}

// gridFromHeader extracts the sampling grid and frame count.
func gridFromHeader(hdr *nifti1Header) (Grid, int, error) {
	var g Grid
	ndim := int(hdr.Dim[0])
	if ndim < 3 || ndim > 4 {
		return g, 0, fmt.Errorf("dim[0] is %d, expected a 3D or 4D image", ndim)
	}
	for i := 0; i < 3; i++ {
		d := int(hdr.Dim[i+1])
		if d <= 0 {
			return g, 0, fmt.Errorf("dim[%d] is %d, must be positive", i+1, d)
		}
		g.Dims[i] = d
		g.Pixdim[i] = float32(math.Abs(float64(hdr.Pixdim[i+1])))
	}

	nt := 1
	if ndim == 4 {
		nt = int(hdr.Dim[4])
		if nt <= 0 {
			return g, 0, fmt.Errorf("dim[4] is %d, must be positive", nt)
		}
		g.TR = hdr.Pixdim[4]
	}

	if hdr.SformCode > 0 {
		g.Affine[0] = hdr.SrowX
		g.Affine[1] = hdr.SrowY
		g.Affine[2] = hdr.SrowZ
		g.Affine[3] = [4]float32{0, 0, 0, 1}
	} else {
		g.Affine = g.DefaultAffine()
	}
	return g, nt, nil
}

// decodeVoxels reads the voxel section frame by frame, widening to float32
// and applying the header's value scaling.
func decodeVoxels(r io.Reader, order binary.ByteOrder, hdr *nifti1Header, vol *Volume) error {
	bpv, err := bytesPerVoxel(hdr.Datatype)
	if err != nil {
		return err
	}

	slope, inter := hdr.SclSlope, hdr.SclInter
	if slope == 0 {
		slope = 1 // a zero slope means "no scaling" by convention
	}

	nv := vol.Grid.NumVoxels()
	pool := NewBufferPool(1, nv*bpv)
	for t := 0; t < vol.NT; t++ {
		buf := pool.Get()
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("voxel data truncated at frame %d: %w", t, err)
		}
		convertFrame(buf, order, hdr.Datatype, slope, inter, vol.Frame(t))
		pool.Put(buf)
	}
	return nil
}

func bytesPerVoxel(datatype int16) (int, error) {
	switch datatype {
	case dtUint8:
		return 1, nil
	case dtInt16:
		return 2, nil
	case dtInt32, dtFloat32:
		return 4, nil
	case dtFloat64:
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported datatype code %d", datatype)
	}
}

func convertFrame(buf []byte, order binary.ByteOrder, datatype int16, slope, inter float32, dst []float32) {
	switch datatype {
	case dtUint8:
		for i := range dst {
			dst[i] = float32(buf[i])*slope + inter
		}
	case dtInt16:
		for i := range dst {
			dst[i] = float32(int16(order.Uint16(buf[i*2:])))*slope + inter
		}
	case dtInt32:
		for i := range dst {
			dst[i] = float32(int32(order.Uint32(buf[i*4:])))*slope + inter
		}
	case dtFloat32:
		for i := range dst {
			dst[i] = math.Float32frombits(order.Uint32(buf[i*4:]))*slope + inter
		}
	case dtFloat64:
		for i := range dst {
			dst[i] = float32(math.Float64frombits(order.Uint64(buf[i*8:])))*slope + inter
		}
	}
}

// Save writes vol to path as a single-file NIfTI-1 image, gzip-compressed
// when the path ends in .gz. Voxels are written as float32.
func Save(path string, vol *Volume) error {
	if err := vol.Validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}
	return Encode(w, vol)
}

// Encode writes vol to w in NIfTI-1 single-file format.
func Encode(w io.Writer, vol *Volume) error {
	hdr := headerFor(vol)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	// Extension flag: four zero bytes, no header extensions.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, vol.Data); err != nil {
		return fmt.Errorf("write voxel data: %w", err)
	}
	return nil
}

func headerFor(vol *Volume) nifti1Header {
	var hdr nifti1Header
	hdr.SizeofHdr = niftiHeaderSize
	hdr.Regular = 'r'

	if vol.NT > 1 {
		hdr.Dim[0] = 4
		hdr.Dim[4] = int16(vol.NT)
	} else {
		hdr.Dim[0] = 3
		hdr.Dim[4] = 1
	}
	for i := 0; i < 3; i++ {
		hdr.Dim[i+1] = int16(vol.Grid.Dims[i])
		hdr.Pixdim[i+1] = vol.Grid.Pixdim[i]
	}
	for i := 5; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	hdr.Pixdim[4] = vol.Grid.TR

	hdr.Datatype = dtFloat32
	hdr.Bitpix = 32
	hdr.VoxOffset = niftiVoxOffset
	hdr.SclSlope = 1
	hdr.XyztUnits = 2 | 8 // millimeters, seconds

	hdr.SformCode = 1
	hdr.SrowX = vol.Grid.Affine[0]
	hdr.SrowY = vol.Grid.Affine[1]
	hdr.SrowZ = vol.Grid.Affine[2]

	copy(hdr.Descrip[:], "voxlearn")
	copy(hdr.Magic[:], "n+1\x00")
	return hdr
}
