// Copyright 2026 pricer Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alugaai/pricer/base"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// ProcessedPattern returns the glob matching processed files of a prefix.
func ProcessedPattern(prefix string) string {
	return prefix + "_processed_*.csv"
}

// LatestProcessed returns the most recently modified processed file in dir.
func LatestProcessed(dir, prefix string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, ProcessedPattern(prefix)))
	if err != nil {
		return "", errors.Trace(err)
	}
	var (
		latest     string
		latestTime time.Time
	)
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest, latestTime = match, info.ModTime()
		}
	}
	if latest == "" {
		return "", base.Errorf(base.ErrDataUnavailable,
			"no processed dataset matching %s in %s; run `pricer-cli etl` to generate one",
			ProcessedPattern(prefix), dir)
	}
	return latest, nil
}

// Frame is a column-oriented view of a processed CSV file.
type Frame struct {
	columns []string
	index   map[string]int
	records [][]string
}

// ReadProcessed reads a processed CSV file.
func ReadProcessed(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return ReadFrame(file)
}

// ReadFrame reads a CSV stream with a header line.
func ReadFrame(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Annotate(err, "read csv header")
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Trace(err)
	}
	frame := &Frame{columns: header, index: make(map[string]int, len(header)), records: records}
	for i, column := range header {
		frame.index[strings.TrimSpace(column)] = i
	}
	return frame, nil
}

// Columns returns the header.
func (f *Frame) Columns() []string {
	return f.columns
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.records)
}

// Has reports whether the column exists.
func (f *Frame) Has(column string) bool {
	_, ok := f.index[column]
	return ok
}

// Filter returns a frame holding the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	filtered := &Frame{columns: f.columns, index: f.index}
	for i, record := range f.records {
		if keep(i) {
			filtered.records = append(filtered.records, record)
		}
	}
	return filtered
}

// Strings returns a column as strings. Missing cells are empty.
func (f *Frame) Strings(column string) []string {
	i, ok := f.index[column]
	values := make([]string, len(f.records))
	if !ok {
		return values
	}
	for j, record := range f.records {
		if i < len(record) {
			values[j] = strings.TrimSpace(record[i])
		}
	}
	return values
}

// Floats returns a column as numbers. Booleans become 0 or 1 and empty or NaN cells become 0.
func (f *Frame) Floats(column string) ([]float64, error) {
	if !f.Has(column) {
		return nil, errors.NotFoundf("column %s", column)
	}
	cells := f.Strings(column)
	values := make([]float64, len(cells))
	for i, cell := range cells {
		value, err := ParseCell(cell)
		if err != nil {
			return nil, errors.Annotatef(err, "column %s row %d", column, i+1)
		}
		values[i] = value
	}
	return values, nil
}

// ParseCell parses a numeric or boolean CSV cell.
func ParseCell(cell string) (float64, error) {
	switch strings.ToLower(cell) {
	case "", "nan", "null", "none":
		return 0, nil
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	value, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if math.IsNaN(value) {
		return 0, nil
	}
	return value, nil
}

// WriteProcessed writes rows to <dir>/<prefix>_processed_<timestamp>.csv and returns the path.
func WriteProcessed(dir, prefix string, rows []FeatureRow, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", errors.Trace(err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_processed_%s.csv", prefix, now.Format("20060102_150405")))
	file, err := os.Create(path)
	if err != nil {
		return "", errors.Trace(err)
	}
	if err = WriteFrame(file, rows); err != nil {
		_ = file.Close()
		return "", errors.Trace(err)
	}
	return path, errors.Trace(file.Close())
}

// WriteFrame writes rows as CSV with the Columns header.
func WriteFrame(w io.Writer, rows []FeatureRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return errors.Trace(err)
	}
	for _, row := range rows {
		record := lo.Map(Columns, func(column string, _ int) string {
			if category, ok := row.Category(column); ok {
				return category
			}
			value, _ := row.Value(column)
			return strconv.FormatFloat(value, 'f', -1, 64)
		})
		if err := writer.Write(record); err != nil {
			return errors.Trace(err)
		}
	}
	writer.Flush()
	return errors.Trace(writer.Error())
}
