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
	"testing"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/dataset"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoder(t *testing.T) {
	encoder := FitLabelEncoder([]string{"house", "apartment", "house", "studio"})
	assert.Equal(t, []string{"apartment", "house", "studio"}, encoder.Classes)
	code, err := encoder.Transform("house")
	assert.NoError(t, err)
	assert.Equal(t, 1.0, code)
	_, err = encoder.Transform("castle")
	assert.True(t, errors.Is(err, base.ErrInferenceFailure))
}

func TestOneHot(t *testing.T) {
	rows := []dataset.FeatureRow{
		{PropertyType: "House", City: "Recife", AreaM2: 100},
		{PropertyType: "Apartment", City: "Olinda", AreaM2: 50},
		{PropertyType: "House", City: "Recife", AreaM2: 80},
	}
	encoders, features := FitOneHot(rows,
		[]string{dataset.ColumnPropertyType, dataset.ColumnCity},
		[]string{dataset.ColumnAreaM2})
	assert.Equal(t, []string{
		"property_type=Apartment", "property_type=House",
		"address_city=Olinda", "address_city=Recife",
		"area_m2",
	}, features)

	x, err := encoders.Vectorize(features, &dataset.FeatureRow{PropertyType: "House", City: "Olinda", AreaM2: 70})
	assert.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 0, 70}, x)

	// unseen categories are ignored
	x, err = encoders.Vectorize(features, &dataset.FeatureRow{PropertyType: "Studio", City: "Natal", AreaM2: 30})
	assert.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 30}, x)

	_, err = encoders.Vectorize(features, &dataset.FeatureRow{AreaM2: math.NaN()})
	assert.True(t, errors.Is(err, base.ErrInferenceFailure))
	_, err = encoders.Vectorize([]string{"no_such_column"}, &rows[0])
	assert.True(t, errors.Is(err, base.ErrInferenceFailure))
	_, err = encoders.Vectorize([]string{"address_neighborhood=Boa Viagem"}, &rows[0])
	assert.True(t, errors.Is(err, base.ErrInferenceFailure))
}

func TestVectorizeLabel(t *testing.T) {
	encoders := NewEncoders(Label)
	encoders.Labels[dataset.ColumnCity] = FitLabelEncoder([]string{"Recife", "Olinda"})
	features := []string{dataset.ColumnBedrooms, dataset.ColumnCity}
	x, err := encoders.Vectorize(features, &dataset.FeatureRow{City: "Recife", Bedrooms: 2})
	assert.NoError(t, err)
	assert.Equal(t, []float64{2, 1}, x)
	_, err = encoders.Vectorize(features, &dataset.FeatureRow{City: "Natal"})
	assert.True(t, errors.Is(err, base.ErrInferenceFailure))
}

func TestStandardScaler(t *testing.T) {
	matrix := [][]float64{
		{1, 10, 5},
		{3, 10, 0},
	}
	scaler := FitStandardScaler(matrix, []bool{true, true, false})
	assert.Equal(t, 3, scaler.Width())
	assert.Equal(t, []float64{2, 10, 0}, scaler.Mean)
	assert.Equal(t, []float64{1, 1, 1}, scaler.Scale)
	require.NoError(t, scaler.TransformMatrix(matrix))
	assert.Equal(t, [][]float64{{-1, 0, 5}, {1, 0, 0}}, matrix)
	assert.True(t, errors.Is(scaler.Transform([]float64{1}), base.ErrInferenceFailure))

	scaler = FitStandardScaler([][]float64{{0}, {4}}, nil)
	assert.Equal(t, []float64{2}, scaler.Mean)
	assert.Equal(t, []float64{2}, scaler.Scale)
}
