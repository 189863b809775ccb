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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricer",
		Subsystem: "pricing",
		Name:      "predictions_total",
	}, []string{"method"})
	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricer",
		Subsystem: "pricing",
		Name:      "fallbacks_total",
	}, []string{"reason"})
	PredictSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pricer",
		Subsystem: "pricing",
		Name:      "predict_seconds",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
	})
	InitSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pricer",
		Subsystem: "pricing",
		Name:      "init_seconds",
	})
)
