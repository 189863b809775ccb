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
	"math"
	"time"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/model/artifact"
	"github.com/alugaai/pricer/model/baseline"
	"github.com/alugaai/pricer/storage/audit"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Methods of a prediction.
const (
	MethodML       = "ml"
	MethodBaseline = "baseline"
)

// Prediction is the result of PriceModel.Predict. Method tells which estimator served it.
type Prediction struct {
	Price   float64            `json:"predicted_price"`
	Method  string             `json:"method"`
	Details map[string]float64 `json:"details,omitempty"`
}

// LearnedEstimator predicts a price and the deviation among ensemble members.
type LearnedEstimator interface {
	Predict(row *dataset.FeatureRow) (float64, float64, error)
}

// PriceModel serves predictions from the learned estimator when it is
// available, falling back to the baseline call by call. It is read-only after
// construction and safe for concurrent use.
type PriceModel struct {
	learned  LearnedEstimator
	bundle   *artifact.Bundle
	baseline *baseline.Estimator
	recorder *audit.Recorder
}

// NewPriceModel creates a price model. bundle and recorder may be nil.
func NewPriceModel(bundle *artifact.Bundle, baseline *baseline.Estimator, recorder *audit.Recorder) *PriceModel {
	m := &PriceModel{bundle: bundle, baseline: baseline, recorder: recorder}
	if bundle != nil {
		m.learned = bundle
	}
	return m
}

// Method returns the method serving predictions unless a call falls back.
func (m *PriceModel) Method() string {
	if m.learned != nil {
		return MethodML
	}
	return MethodBaseline
}

// Bundle returns the loaded learned estimator, or nil.
func (m *PriceModel) Bundle() *artifact.Bundle {
	return m.bundle
}

// Baseline returns the baseline estimator.
func (m *PriceModel) Baseline() *baseline.Estimator {
	return m.baseline
}

// Predict never fails. Errors of the learned estimator downgrade this call to the baseline.
func (m *PriceModel) Predict(features dataset.FeatureRow, withDetails bool) Prediction {
	start := time.Now()
	prediction, ok := m.predictLearned(&features, withDetails)
	if !ok {
		prediction = Prediction{
			Price:  base.Round(m.baseline.Predict(features), 2),
			Method: MethodBaseline,
		}
		if withDetails {
			prediction.Details = m.baseline.Details()
		}
	}
	PredictSeconds.Observe(time.Since(start).Seconds())
	PredictionsTotal.WithLabelValues(prediction.Method).Inc()
	m.record(&features, prediction)
	return prediction
}

func (m *PriceModel) predictLearned(features *dataset.FeatureRow, withDetails bool) (Prediction, bool) {
	if m.learned == nil {
		return Prediction{}, false
	}
	price, std, err := m.safePredict(features)
	if err == nil && (math.IsNaN(price) || math.IsInf(price, 0)) {
		err = base.Errorf(base.ErrInferenceFailure, "prediction is not finite")
	}
	if err != nil {
		switch {
		case errors.Is(err, base.ErrInferenceFailure):
			FallbacksTotal.WithLabelValues("inference_failure").Inc()
			log.Logger().Debug("learned estimator failed, fall back to baseline", zap.Error(err))
		case errors.Is(err, base.ErrArtifactCorrupt):
			FallbacksTotal.WithLabelValues("artifact_corrupt").Inc()
			log.Logger().Error("learned estimator is corrupt, fall back to baseline", zap.Error(err))
		default:
			FallbacksTotal.WithLabelValues("unknown").Inc()
			log.Logger().Error("learned estimator failed, fall back to baseline", zap.Error(err))
		}
		return Prediction{}, false
	}
	prediction := Prediction{
		Price:  base.Round(math.Max(0, price), 2),
		Method: MethodML,
	}
	if withDetails {
		prediction.Details = map[string]float64{"std_pred": base.Round(std, 2)}
	}
	return prediction, true
}

// safePredict turns a panic of the learned estimator into base.ErrInferenceFailure.
func (m *PriceModel) safePredict(features *dataset.FeatureRow) (price, std float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = base.Errorf(base.ErrInferenceFailure, "learned estimator panicked: %v", r)
		}
	}()
	return m.learned.Predict(features)
}

func (m *PriceModel) record(features *dataset.FeatureRow, prediction Prediction) {
	if m.recorder == nil {
		return
	}
	m.recorder.Record(audit.Entry{
		Timestamp: time.Now().UTC(),
		Method:    prediction.Method,
		Price:     prediction.Price,
		Features:  auditFeatures(features),
		Details:   prediction.Details,
	})
}

func auditFeatures(features *dataset.FeatureRow) map[string]any {
	m := make(map[string]any, len(OneHotCategorical)+len(OneHotNumeric))
	for _, column := range OneHotCategorical {
		m[column], _ = features.Category(column)
	}
	for _, column := range OneHotNumeric {
		m[column], _ = features.Value(column)
	}
	return m
}
