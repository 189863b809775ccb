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

package pricing

import (
	"context"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/config"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/model"
	"github.com/alugaai/pricer/model/artifact"
	"github.com/alugaai/pricer/model/forest"
	"github.com/alugaai/pricer/model/transform"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

var (
	// OneHotCategorical are the one-hot encoded columns of a freshly trained model.
	OneHotCategorical = []string{dataset.ColumnPropertyType, dataset.ColumnCity}
	// OneHotNumeric are the scaled numeric columns of a freshly trained model.
	OneHotNumeric = []string{
		dataset.ColumnAreaM2,
		dataset.ColumnBedrooms,
		dataset.ColumnBathrooms,
		dataset.ColumnParkingSpots,
		dataset.ColumnCondoFee,
		dataset.ColumnPropertyTax,
	}
)

// Train fits a learned estimator on rows with positive area and price.
// Categorical columns are one-hot encoded and numeric columns are standardized.
func Train(ctx context.Context, rows []dataset.FeatureRow, cfg config.ModelConfig) (*artifact.Bundle, error) {
	rows = lo.Filter(rows, func(row dataset.FeatureRow, _ int) bool { return row.Valid() })
	if len(rows) == 0 {
		return nil, base.Errorf(base.ErrDataUnavailable, "no listing with positive area and price")
	}
	encoders, features := transform.FitOneHot(rows, OneHotCategorical, OneHotNumeric)
	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i := range rows {
		var err error
		if x[i], err = encoders.Vectorize(features, &rows[i]); err != nil {
			return nil, errors.Trace(err)
		}
		y[i] = rows[i].RentalPrice
	}
	scaled := make([]bool, len(features))
	for i := len(features) - len(OneHotNumeric); i < len(features); i++ {
		scaled[i] = true
	}
	scaler := transform.FitStandardScaler(x, scaled)
	if err := scaler.TransformMatrix(x); err != nil {
		return nil, errors.Trace(err)
	}
	params := model.Params{
		model.NTrees:          cfg.NumTrees,
		model.MaxDepth:        cfg.MaxDepth,
		model.MinSamplesSplit: cfg.MinSamplesSplit,
		model.MinSamplesLeaf:  cfg.MinSamplesLeaf,
		model.RandomState:     cfg.RandomState,
	}
	f := forest.NewForest(params)
	if err := f.Fit(ctx, x, y, cfg.FitJobs); err != nil {
		return nil, errors.Trace(err)
	}
	predictions, err := f.PredictMatrix(x)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &artifact.Bundle{
		Forest:   f,
		Encoders: encoders,
		Scaler:   scaler,
		Metadata: artifact.Metadata{
			ModelType:   artifact.ModelTypeRandomForest,
			Features:    features,
			Categorical: OneHotCategorical,
			Numeric:     OneHotNumeric,
			Encoding:    transform.OneHot,
			Metrics:     model.Evaluate(y, predictions),
			TrainingInfo: &artifact.TrainingInfo{
				Dataset:  "raw listings",
				NumTrain: len(rows),
				Params:   params.ToMap(),
			},
		},
	}, nil
}
