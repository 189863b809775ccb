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

package trainer

import (
	"math"
	"math/rand"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/model/transform"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	// BaseFeatures are used when present in the dataset.
	BaseFeatures = []string{
		dataset.ColumnPropertyType,
		dataset.ColumnBedrooms,
		dataset.ColumnBathrooms,
		dataset.ColumnParkingSpots,
		dataset.ColumnAreaM2,
		dataset.ColumnFurnished,
		dataset.ColumnWifi,
		dataset.ColumnDistanceSubway,
		dataset.ColumnDistanceBus,
		dataset.ColumnGuestCapacity,
		dataset.ColumnListingAge,
		dataset.ColumnYearBuilt,
		dataset.ColumnFloor,
		dataset.ColumnCondoFee,
		dataset.ColumnPropertyTax,
		dataset.ColumnAvgRating,
		dataset.ColumnAmenityCount,
		dataset.ColumnPhotoCount,
		dataset.ColumnReviewCount,
		dataset.ColumnRuleCount,
		dataset.ColumnTagCount,
		dataset.ColumnNearTransit,
		dataset.ColumnQualityScore,
	}
	// OptionalFeatures follow the base features when present.
	OptionalFeatures = []string{
		dataset.ColumnCity,
		dataset.ColumnNeighborhood,
		dataset.ColumnCancellationPolicy,
		dataset.ColumnHostSuperhost,
	}
)

// Features is a label encoded design matrix.
type Features struct {
	Names       []string
	Categorical []string
	Numeric     []string
	Encoders    *transform.Encoders
	X           [][]float64
	Y           []float64
}

// Prepare selects the known feature columns of frame, label encodes the
// categorical ones and reads the rest as numbers. Booleans become 0 or 1 and
// missing values become 0. The target column is required, and rows without a
// positive target or a positive area are dropped.
func Prepare(frame *dataset.Frame) (*Features, error) {
	if !frame.Has(dataset.ColumnRentalPrice) {
		return nil, base.Errorf(base.ErrDataUnavailable, "target column %s is missing", dataset.ColumnRentalPrice)
	}
	frame, err := usableRows(frame)
	if err != nil {
		return nil, err
	}
	if frame.Len() < 2 {
		return nil, base.Errorf(base.ErrDataUnavailable, "need at least 2 rows to train, got %d", frame.Len())
	}
	features := &Features{Encoders: transform.NewEncoders(transform.Label)}
	for _, name := range append(lo.Filter(BaseFeatures, func(name string, _ int) bool {
		return frame.Has(name)
	}), lo.Filter(OptionalFeatures, func(name string, _ int) bool {
		return frame.Has(name)
	})...) {
		features.Names = append(features.Names, name)
		if lo.Contains(dataset.CategoricalColumns, name) {
			features.Categorical = append(features.Categorical, name)
		} else {
			features.Numeric = append(features.Numeric, name)
		}
	}
	if len(features.Names) == 0 {
		return nil, base.Errorf(base.ErrDataUnavailable, "dataset has no feature column")
	}

	columns := make([][]float64, len(features.Names))
	for j, name := range features.Names {
		if lo.Contains(features.Categorical, name) {
			values := frame.Strings(name)
			encoder := transform.FitLabelEncoder(values)
			features.Encoders.Labels[name] = encoder
			columns[j] = make([]float64, len(values))
			for i, value := range values {
				columns[j][i] = lo.Must(encoder.Transform(value))
			}
			continue
		}
		if columns[j], err = frame.Floats(name); err != nil {
			return nil, base.Wrapf(err, base.ErrDataUnavailable, "read feature %s", name)
		}
	}
	y, err := frame.Floats(dataset.ColumnRentalPrice)
	if err != nil {
		return nil, base.Wrapf(err, base.ErrDataUnavailable, "read target")
	}
	features.Y = y
	features.X = make([][]float64, frame.Len())
	for i := range features.X {
		features.X[i] = make([]float64, len(columns))
		for j := range columns {
			features.X[i][j] = columns[j][i]
		}
	}
	return features, nil
}

// usableRows drops rows whose target is empty or not positive, and rows whose
// area is not positive when the area column exists.
func usableRows(frame *dataset.Frame) (*dataset.Frame, error) {
	prices, err := frame.Floats(dataset.ColumnRentalPrice)
	if err != nil {
		return nil, base.Wrapf(err, base.ErrDataUnavailable, "read target")
	}
	var areas []float64
	if frame.Has(dataset.ColumnAreaM2) {
		if areas, err = frame.Floats(dataset.ColumnAreaM2); err != nil {
			return nil, base.Wrapf(err, base.ErrDataUnavailable, "read feature %s", dataset.ColumnAreaM2)
		}
	}
	usable := frame.Filter(func(row int) bool {
		return prices[row] > 0 && (areas == nil || areas[row] > 0)
	})
	if dropped := frame.Len() - usable.Len(); dropped > 0 {
		log.Logger().Warn("drop rows without positive price or area",
			zap.Int("n_dropped", dropped), zap.Int("n_records", usable.Len()))
	}
	return usable, nil
}

// Split shuffles row indices with seed and holds out ceil(testRatio * n) of
// them for testing. Both parts keep at least one row.
func Split(n int, testRatio float64, seed int64) (train, test []int) {
	nTest := int(math.Ceil(testRatio * float64(n)))
	nTest = max(1, min(n-1, nTest))
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest]
}

// KFold splits n consecutive indices into k folds. The first n % k folds hold
// one extra index. It returns the held out indices of each fold.
func KFold(n, k int) [][]int {
	folds := make([][]int, k)
	begin := 0
	for i := range folds {
		size := n / k
		if i < n%k {
			size++
		}
		folds[i] = lo.Range(size)
		for j := range folds[i] {
			folds[i][j] += begin
		}
		begin += size
	}
	return folds
}

func gather[T any](values []T, indices []int) []T {
	return lo.Map(indices, func(i int, _ int) T { return values[i] })
}

func copyMatrix(x [][]float64) [][]float64 {
	return lo.Map(x, func(row []float64, _ int) []float64 {
		return append([]float64(nil), row...)
	})
}
