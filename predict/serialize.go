package predict

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Model is a fitted linear model in a form that can be written to disk and
// later applied to new images without refitting.
type Model struct {
	Algorithm string
	Intercept float64
	Coef      []float64
}

// modelHeader provides metadata for a serialized model.
// Layout: [Magic(4)][Version(2)][Checksum(4)] then the payload.
type modelHeader struct {
	Magic    uint32
	Version  uint16
	Checksum uint32 // CRC32 over the payload
}

const (
	modelMagic      = 0x4D584F56 // "VOXM" in little endian
	modelVersion    = 1
	modelHeaderSize = 10
)

// FromResult captures the all-data fit of a training run as a Model.
func FromResult(res *Result) (*Model, error) {
	if res.WeightMap == nil {
		return nil, errors.New("result carries no weight map")
	}
	return &Model{
		Algorithm: res.Algorithm,
		Intercept: res.Intercept,
		Coef:      append([]float64{}, res.WeightMap.Data.RawRowView(0)...),
	}, nil
}

// Apply evaluates the model on masked data rows, one score per row.
func (m *Model) Apply(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(m.Coef) {
			return nil, fmt.Errorf("row %d has %d voxels, model has %d", i, len(row), len(m.Coef))
		}
		s := m.Intercept
		for j, v := range row {
			s += m.Coef[j] * v
		}
		out[i] = s
	}
	return out, nil
}

// Serialize writes the model to a byte slice in binary form.
// Payload layout: [len(Algorithm)(2)][Algorithm bytes][Intercept(8)][len(Coef)(4)][Coef elems(8*len)]
func (m *Model) Serialize() ([]byte, error) {
	if len(m.Algorithm) > 0xFFFF {
		return nil, errors.New("algorithm name too long")
	}

	payload := &bytes.Buffer{}
	if err := binary.Write(payload, binary.LittleEndian, uint16(len(m.Algorithm))); err != nil {
		return nil, err
	}
	payload.WriteString(m.Algorithm)
	if err := binary.Write(payload, binary.LittleEndian, m.Intercept); err != nil {
		return nil, err
	}
	if err := binary.Write(payload, binary.LittleEndian, uint32(len(m.Coef))); err != nil {
		return nil, err
	}
	for _, c := range m.Coef {
		if err := binary.Write(payload, binary.LittleEndian, c); err != nil {
			return nil, err
		}
	}

	header := modelHeader{
		Magic:    modelMagic,
		Version:  modelVersion,
		Checksum: crc32.ChecksumIEEE(payload.Bytes()),
	}
	buf := bytes.NewBuffer(make([]byte, 0, modelHeaderSize+payload.Len()))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	buf.Write(payload.Bytes())
	return buf.Bytes(), nil
}

// Deserialize reads a model from a byte slice with integrity checking.
func Deserialize(data []byte) (*Model, error) {
	if len(data) < modelHeaderSize {
		return nil, errors.New("data too short for header")
	}

	buf := bytes.NewReader(data)
	var header modelHeader
	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Magic != modelMagic {
		return nil, errors.New("invalid magic number")
	}
	if header.Version != modelVersion {
		return nil, fmt.Errorf("unsupported model version %d", header.Version)
	}

	payload := data[len(data)-buf.Len():]
	if crc32.ChecksumIEEE(payload) != header.Checksum {
		return nil, errors.New("data corruption detected")
	}

	m := &Model{}
	r := bytes.NewReader(payload)
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, errors.New("failed to read algorithm name")
	}
	m.Algorithm = string(name)
	if err := binary.Read(r, binary.LittleEndian, &m.Intercept); err != nil {
		return nil, err
	}
	var nCoef uint32
	if err := binary.Read(r, binary.LittleEndian, &nCoef); err != nil {
		return nil, err
	}
	if int(nCoef)*8 != r.Len() {
		return nil, errors.New("coefficient count does not match payload size")
	}
	m.Coef = make([]float64, nCoef)
	for i := range m.Coef {
		if err := binary.Read(r, binary.LittleEndian, &m.Coef[i]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Save writes the serialized model to path.
func (m *Model) Save(path string) error {
	data, err := m.Serialize()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadModel reads a serialized model from path.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
