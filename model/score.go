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

package model

import (
	"encoding/json"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Score is the evaluation of a regression model on a test set.
type Score struct {
	RMSE float64
	MAE  float64
	R2   float64
	// MAPE is a percentage computed over non-zero targets. It is NaN when every target is zero.
	MAPE float64
}

// Evaluate scores predictions against true values.
func Evaluate(yTrue, yPred []float64) Score {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return Score{RMSE: math.NaN(), MAE: math.NaN(), R2: math.NaN(), MAPE: math.NaN()}
	}
	var (
		squared, absolute, percentage float64
		nonZero                       int
	)
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		squared += diff * diff
		absolute += math.Abs(diff)
		if yTrue[i] != 0 {
			percentage += math.Abs(diff / yTrue[i])
			nonZero++
		}
	}
	n := float64(len(yTrue))
	score := Score{
		RMSE: math.Sqrt(squared / n),
		MAE:  absolute / n,
		R2:   R2(yTrue, yPred),
		MAPE: math.NaN(),
	}
	if nonZero > 0 {
		score.MAPE = percentage / float64(nonZero) * 100
	}
	return score
}

// R2 returns the coefficient of determination. A constant target scores 1 when
// predicted exactly and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	if stat.Variance(yTrue, nil) == 0 || len(yTrue) < 2 {
		for i := range yTrue {
			if yTrue[i] != yPred[i] {
				return 0
			}
		}
		return 1
	}
	return stat.RSquaredFrom(yPred, yTrue, nil)
}

// BetterThan reports whether s has a higher R².
func (s Score) BetterThan(other Score) bool {
	if math.IsNaN(other.R2) {
		return !math.IsNaN(s.R2)
	}
	return s.R2 > other.R2
}

func (s Score) ZapFields() []zap.Field {
	return []zap.Field{
		zap.Float64("r2", s.R2),
		zap.Float64("rmse", s.RMSE),
		zap.Float64("mae", s.MAE),
		zap.Float64("mape", s.MAPE),
	}
}

type jsonScore struct {
	RMSE *float64 `json:"rmse"`
	MAE  *float64 `json:"mae"`
	R2   *float64 `json:"r2"`
	MAPE *float64 `json:"mape"`
}

// MarshalJSON writes NaN metrics as null.
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonScore{RMSE: finite(s.RMSE), MAE: finite(s.MAE), R2: finite(s.R2), MAPE: finite(s.MAPE)})
}

// UnmarshalJSON reads null metrics as NaN.
func (s *Score) UnmarshalJSON(data []byte) error {
	var raw jsonScore
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.RMSE, s.MAE, s.R2, s.MAPE = orNaN(raw.RMSE), orNaN(raw.MAE), orNaN(raw.R2), orNaN(raw.MAPE)
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
