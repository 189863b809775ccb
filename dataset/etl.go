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
	"time"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/config"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Price quantiles outside of which rows are dropped as outliers.
const (
	lowerPriceQuantile = 0.01
	upperPriceQuantile = 0.99
)

// ETL turns raw listings into a processed CSV dataset.
type ETL struct {
	loader    *Loader
	outputDir string
	prefix    string
	now       func() time.Time
}

// NewETL creates an ETL writing into the processed directory of cfg.
func NewETL(loader *Loader, cfg config.DatasetConfig) *ETL {
	return &ETL{
		loader:    loader,
		outputDir: cfg.ProcessedDir,
		prefix:    cfg.ProcessedPrefix,
		now:       time.Now,
	}
}

// Run extracts, transforms and writes the dataset. It returns the output path.
func (e *ETL) Run() (string, error) {
	rows, err := e.loader.Load()
	if err != nil {
		return "", errors.Trace(err)
	}
	log.Logger().Info("extract listings", zap.Int("n_records", len(rows)))
	rows = Transform(rows)
	path, err := WriteProcessed(e.outputDir, e.prefix, rows, e.now())
	if err != nil {
		return "", errors.Trace(err)
	}
	log.Logger().Info("write processed dataset",
		zap.String("path", path),
		zap.Int("n_records", len(rows)),
		zap.Int("n_columns", len(Columns)))
	return path, nil
}

// Transform computes quality scores and drops rows whose price falls outside
// the [1%, 99%] quantile range.
func Transform(rows []FeatureRow) []FeatureRow {
	if len(rows) == 0 {
		return rows
	}
	maxReviews := lo.Max(lo.Map(rows, func(row FeatureRow, _ int) int { return row.ReviewCount }))
	for i := range rows {
		rows[i].QualityScore = QualityScore(&rows[i], maxReviews)
	}
	prices := lo.Map(rows, func(row FeatureRow, _ int) float64 { return row.RentalPrice })
	lower := base.Quantile(prices, lowerPriceQuantile)
	upper := base.Quantile(prices, upperPriceQuantile)
	kept := lo.Filter(rows, func(row FeatureRow, _ int) bool {
		return row.RentalPrice >= lower && row.RentalPrice <= upper
	})
	log.Logger().Info("filter price outliers",
		zap.Float64("lower", lower),
		zap.Float64("upper", upper),
		zap.Int("n_dropped", len(rows)-len(kept)))
	return kept
}

// QualityScore rates a listing from its rating, review volume, photos and host status.
// The score is 0 when no listing has reviews.
func QualityScore(row *FeatureRow, maxReviews int) float64 {
	if maxReviews == 0 {
		return 0
	}
	score := row.AvgRating*0.4 +
		float64(row.ReviewCount)/float64(maxReviews)*2 +
		float64(row.PhotoCount)/10*0.5
	if row.HostSuperhost {
		score += 1
	}
	return score
}
