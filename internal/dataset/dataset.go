// Package dataset reads labelled text from CSV files and writes predictions back.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrEmpty is returned when a file holds a header but no rows.
var ErrEmpty = errors.New("dataset has no rows")

// Dataset is a set of texts with optional integer labels.
// Labels is nil when the source had no label column.
type Dataset struct {
	Texts  []string
	Labels []int
}

// Len is the number of rows.
func (d Dataset) Len() int { return len(d.Texts) }

// Labelled reports whether every row carries a label.
func (d Dataset) Labelled() bool { return d.Labels != nil }

// Load reads a CSV file with a header naming a "text" column and, optionally,
// a "label" column.
func Load(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return ds, nil
}

// Read parses CSV from r. See Load.
func Read(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return Dataset{}, ErrEmpty
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("header: %w", err)
	}

	textCol, labelCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "text":
			textCol = i
		case "label":
			labelCol = i
		}
	}
	if textCol < 0 {
		return Dataset{}, fmt.Errorf("header %v has no \"text\" column", header)
	}

	var ds Dataset
	if labelCol >= 0 {
		ds.Labels = []int{}
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		if textCol >= len(rec) {
			return Dataset{}, fmt.Errorf("line %d: missing text column", line)
		}
		ds.Texts = append(ds.Texts, rec[textCol])

		if labelCol < 0 {
			continue
		}
		if labelCol >= len(rec) {
			return Dataset{}, fmt.Errorf("line %d: missing label column", line)
		}
		label, err := strconv.Atoi(strings.TrimSpace(rec[labelCol]))
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d: label %q: %w", line, rec[labelCol], err)
		}
		ds.Labels = append(ds.Labels, label)
	}

	if ds.Len() == 0 {
		return Dataset{}, ErrEmpty
	}
	return ds, nil
}

// WritePredictions writes a text,label CSV pairing each text with its predicted label.
func WritePredictions(w io.Writer, texts []string, labels []int) error {
	if len(texts) != len(labels) {
		return fmt.Errorf("write predictions: %d texts but %d labels", len(texts), len(labels))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"text", "label"}); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	for i, text := range texts {
		if err := cw.Write([]string{text, strconv.Itoa(labels[i])}); err != nil {
			return fmt.Errorf("write predictions: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
