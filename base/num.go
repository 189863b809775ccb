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

package base

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Median returns the median of values. The median of an even number of values is the mean of
// the middle two. It returns 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Slope returns the least squares slope of y against x, cov(x,y)/var(x). It returns 0 if x is
// constant or empty.
func Slope(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	variance := stat.Variance(x, nil)
	if variance == 0 || math.IsNaN(variance) {
		return 0
	}
	return stat.Covariance(x, y, nil) / variance
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Quantile returns the p-quantile of values by linear interpolation between
// closest ranks, i.e. sorted[(n-1)*p]. It returns 0 for an empty slice.
func Quantile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	pos := float64(len(sorted)-1) * Clamp(p, 0, 1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	return sorted[lower] + (sorted[upper]-sorted[lower])*(pos-float64(lower))
}
