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

package transform

import (
	"math"
	"sort"
	"strings"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/dataset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/stat"
)

// Encoding kinds of categorical columns.
const (
	OneHot = "onehot"
	Label  = "label"
)

// LabelEncoder maps categories to their index in the sorted list of classes.
type LabelEncoder struct {
	Classes []string
}

// FitLabelEncoder collects the distinct values.
func FitLabelEncoder(values []string) *LabelEncoder {
	classes := mapset.NewThreadUnsafeSet(values...).ToSlice()
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

// Transform encodes a value. Values not seen by FitLabelEncoder are an inference failure.
func (e *LabelEncoder) Transform(value string) (float64, error) {
	i := sort.SearchStrings(e.Classes, value)
	if i < len(e.Classes) && e.Classes[i] == value {
		return float64(i), nil
	}
	return 0, base.Errorf(base.ErrInferenceFailure, "unseen category %q", value)
}

// OneHotEncoder expands a category into indicator columns. Unseen values
// produce an all-zero block.
type OneHotEncoder struct {
	Categories []string
}

// FitOneHotEncoder collects the distinct values.
func FitOneHotEncoder(values []string) *OneHotEncoder {
	return &OneHotEncoder{Categories: FitLabelEncoder(values).Classes}
}

// FeatureNames returns "<column>=<category>" for every category.
func (e *OneHotEncoder) FeatureNames(column string) []string {
	names := make([]string, len(e.Categories))
	for i, category := range e.Categories {
		names[i] = column + "=" + category
	}
	return names
}

// Encoders holds the fitted categorical encoders of a model.
type Encoders struct {
	Kind   string
	Labels map[string]*LabelEncoder
	OneHot map[string]*OneHotEncoder
}

// NewEncoders creates an empty encoder set of the given kind.
func NewEncoders(kind string) *Encoders {
	return &Encoders{
		Kind:   kind,
		Labels: make(map[string]*LabelEncoder),
		OneHot: make(map[string]*OneHotEncoder),
	}
}

// FitOneHot fits one-hot encoders over rows and returns the feature names: the
// indicator columns of each categorical column followed by the numeric columns.
func FitOneHot(rows []dataset.FeatureRow, categorical, numeric []string) (*Encoders, []string) {
	encoders := NewEncoders(OneHot)
	var features []string
	for _, column := range categorical {
		values := make([]string, len(rows))
		for i := range rows {
			values[i], _ = rows[i].Category(column)
		}
		encoder := FitOneHotEncoder(values)
		encoders.OneHot[column] = encoder
		features = append(features, encoder.FeatureNames(column)...)
	}
	return encoders, append(features, numeric...)
}

// Vectorize assembles the feature vector of row in the order of features.
func (e *Encoders) Vectorize(features []string, row *dataset.FeatureRow) ([]float64, error) {
	x := make([]float64, len(features))
	for i, name := range features {
		if column, category, ok := strings.Cut(name, "="); ok {
			if _, exist := e.OneHot[column]; !exist {
				return nil, base.Errorf(base.ErrInferenceFailure, "no encoder for feature %s", name)
			}
			if value, _ := row.Category(column); value == category {
				x[i] = 1
			}
			continue
		}
		if encoder, ok := e.Labels[name]; ok {
			value, _ := row.Category(name)
			code, err := encoder.Transform(value)
			if err != nil {
				return nil, errors.Annotatef(err, "feature %s", name)
			}
			x[i] = code
			continue
		}
		value, ok := row.Value(name)
		if !ok {
			return nil, base.Errorf(base.ErrInferenceFailure, "unknown feature %s", name)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, base.Errorf(base.ErrInferenceFailure, "feature %s is not finite", name)
		}
		x[i] = value
	}
	return x, nil
}

// StandardScaler removes the mean and scales to unit variance. Columns not
// selected at fit time keep mean 0 and scale 1.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitStandardScaler fits on the columns of matrix for which scaled is true. A nil
// mask scales every column. Standard deviations are population ones; a zero
// deviation is replaced by 1.
func FitStandardScaler(matrix [][]float64, scaled []bool) *StandardScaler {
	if len(matrix) == 0 {
		return &StandardScaler{}
	}
	width := len(matrix[0])
	scaler := &StandardScaler{Mean: make([]float64, width), Scale: make([]float64, width)}
	column := make([]float64, len(matrix))
	for j := 0; j < width; j++ {
		scaler.Scale[j] = 1
		if scaled != nil && !scaled[j] {
			continue
		}
		for i := range matrix {
			column[i] = matrix[i][j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		scaler.Mean[j] = mean
		if std > 0 {
			scaler.Scale[j] = std
		}
	}
	return scaler
}

// Width returns the number of columns the scaler was fitted on.
func (s *StandardScaler) Width() int {
	return len(s.Mean)
}

// Transform scales x in place.
func (s *StandardScaler) Transform(x []float64) error {
	if len(x) != len(s.Mean) {
		return base.Errorf(base.ErrInferenceFailure, "scaler expects %d features, got %d", len(s.Mean), len(x))
	}
	for j := range x {
		x[j] = (x[j] - s.Mean[j]) / s.Scale[j]
	}
	return nil
}

// TransformMatrix scales every row of matrix in place.
func (s *StandardScaler) TransformMatrix(matrix [][]float64) error {
	for _, x := range matrix {
		if err := s.Transform(x); err != nil {
			return err
		}
	}
	return nil
}
