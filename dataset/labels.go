package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadLabels reads a one-column, headerless CSV of numeric labels.
func ReadLabels(path string) ([]float64, error) {
	rows, err := readColumn(path)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, s := range rows {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %q is not numeric", path, i+1, s)
		}
		out[i] = v
	}
	return out, nil
}

// ReadSubjects reads a one-column, headerless CSV of subject identifiers,
// used for leave-one-subject-out cross-validation.
func ReadSubjects(path string) ([]string, error) {
	return readColumn(path)
}

func readColumn(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	out := make([]string, 0, len(records))
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		if len(rec) != 1 {
			return nil, fmt.Errorf("%s line %d: expected one column, found %d", path, i+1, len(rec))
		}
		out = append(out, strings.TrimSpace(rec[0]))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return out, nil
}

// LoadLabels reads labels from a CSV file and attaches them to the dataset.
func (d *Dataset) LoadLabels(path string) error {
	y, err := ReadLabels(path)
	if err != nil {
		return err
	}
	return d.SetY(y)
}
