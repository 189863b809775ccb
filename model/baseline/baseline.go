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

// Package baseline implements a closed-form price estimator that needs no trained artifact.
//
// Coefficients are fitted by sequential residualization in a fixed order: the
// per-area rate first, then bedroom, bathroom and parking slopes, then the
// overall bias and finally per-city and per-type offsets. The order is part
// of the estimator's behavior and is not equivalent to a joint least squares fit.
package baseline

import (
	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/dataset"
	"github.com/samber/lo"
)

// Coefficients used before any fit or when no row is usable.
const (
	DefaultAreaRate       = 45.0
	DefaultBedroomWeight  = 300.0
	DefaultBathroomWeight = 220.0
	DefaultParkingWeight  = 180.0
	DefaultOverallBias    = 1000.0
)

// Coefficients of the baseline estimator.
type Coefficients struct {
	AreaRate       float64
	BedroomWeight  float64
	BathroomWeight float64
	ParkingWeight  float64
	OverallBias    float64
	CityBias       map[string]float64
	TypeBias       map[string]float64
}

// Estimator is the baseline price estimator.
type Estimator struct {
	Coefficients
}

// NewEstimator creates an estimator with default coefficients.
func NewEstimator() *Estimator {
	return &Estimator{Coefficients: Coefficients{
		AreaRate:       DefaultAreaRate,
		BedroomWeight:  DefaultBedroomWeight,
		BathroomWeight: DefaultBathroomWeight,
		ParkingWeight:  DefaultParkingWeight,
		OverallBias:    DefaultOverallBias,
		CityBias:       map[string]float64{},
		TypeBias:       map[string]float64{},
	}}
}

// Fit recomputes every coefficient from rows with positive area and price. It
// keeps the current coefficients when no such row exists.
func (e *Estimator) Fit(rows []dataset.FeatureRow) *Estimator {
	rows = lo.Filter(rows, func(row dataset.FeatureRow, _ int) bool { return row.Valid() })
	if len(rows) == 0 {
		return e
	}
	var c Coefficients

	// price per square meter
	c.AreaRate = base.Median(lo.Map(rows, func(row dataset.FeatureRow, _ int) float64 {
		return row.RentalPrice / max(row.AreaM2, 1)
	}))
	residual := lo.Map(rows, func(row dataset.FeatureRow, _ int) float64 {
		return row.RentalPrice - c.AreaRate*row.AreaM2
	})

	// bedrooms, bathrooms, parking: each slope is fitted on the residual of the previous step
	c.BedroomWeight = fitStep(rows, residual, func(row dataset.FeatureRow) int { return row.Bedrooms })
	c.BathroomWeight = fitStep(rows, residual, func(row dataset.FeatureRow) int { return row.Bathrooms })
	c.ParkingWeight = fitStep(rows, residual, func(row dataset.FeatureRow) int { return row.ParkingSpots })

	// bias and group offsets
	c.OverallBias = base.Median(residual)
	byCity := make(map[string][]float64)
	byType := make(map[string][]float64)
	for i, row := range rows {
		byCity[row.City] = append(byCity[row.City], residual[i])
		byType[row.PropertyType] = append(byType[row.PropertyType], residual[i])
	}
	c.CityBias = lo.MapValues(byCity, func(values []float64, _ string) float64 {
		return base.Median(values) - c.OverallBias
	})
	c.TypeBias = lo.MapValues(byType, func(values []float64, _ string) float64 {
		return base.Median(values) - c.OverallBias
	})
	e.Coefficients = c
	return e
}

// fitStep fits the slope of residual against a count column and removes the
// fitted term from residual in place.
func fitStep(rows []dataset.FeatureRow, residual []float64, count func(dataset.FeatureRow) int) float64 {
	x := lo.Map(rows, func(row dataset.FeatureRow, _ int) float64 { return float64(count(row)) })
	slope := base.Slope(x, residual)
	for i := range residual {
		residual[i] -= slope * x[i]
	}
	return slope
}

// Predict estimates the price of a row. The estimate is never negative.
func (e *Estimator) Predict(row dataset.FeatureRow) float64 {
	value := e.AreaRate*row.AreaM2 +
		e.BedroomWeight*float64(row.Bedrooms) +
		e.BathroomWeight*float64(row.Bathrooms) +
		e.ParkingWeight*float64(row.ParkingSpots) +
		e.OverallBias
	if row.City != "" {
		value += e.CityBias[row.City]
	}
	if row.PropertyType != "" {
		value += e.TypeBias[row.PropertyType]
	}
	return max(0, value)
}

// Details returns the fitted coefficients.
func (e *Estimator) Details() map[string]float64 {
	return map[string]float64{
		"area_rate":       e.AreaRate,
		"bedroom_weight":  e.BedroomWeight,
		"bathroom_weight": e.BathroomWeight,
		"parking_weight":  e.ParkingWeight,
		"overall_bias":    e.OverallBias,
	}
}
