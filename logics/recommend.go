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

package logics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/config"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/model/pricing"
	"github.com/alugaai/pricer/storage/data"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const DefaultLimit = 10

const (
	maxScore        = 1.5
	affordableBonus = 0.2
	cityBonus       = 0.1
)

var (
	RecommendSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pricer",
		Subsystem: "logics",
		Name:      "recommend_seconds",
		Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
	}, []string{"kind"})
	PersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pricer",
		Subsystem: "logics",
		Name:      "persist_failures_total",
	})
)

// Predictor prices a property. Both *pricing.PriceModel and *pricing.Provider implement it.
type Predictor interface {
	Predict(features dataset.FeatureRow, withDetails bool) pricing.Prediction
}

// ScoredCandidate is a ranked candidate. Scores are recomputed on every request.
type ScoredCandidate struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	City           string   `json:"city"`
	PredictedPrice float64  `json:"predicted_price"`
	Method         string   `json:"method"`
	Score          float64  `json:"score"`
	Affordable     bool     `json:"affordable"`
	Reasons        []string `json:"reasons,omitempty"`
}

// RecommendRequest ranks candidates against a budget. Without candidates,
// active listings are used, then the sample candidates.
type RecommendRequest struct {
	Candidates []Candidate `json:"candidates,omitempty" validate:"omitempty,dive"`
	Budget     float64     `json:"budget" validate:"gte=100"`
	City       string      `json:"city,omitempty"`
	Limit      int         `json:"limit,omitempty" validate:"omitempty,gte=1,lte=50"`
}

type Recommender struct {
	model      Predictor
	database   data.Database
	samplePath string
	filter     *vm.Program
}

// NewRecommender creates a recommender. database may be nil.
func NewRecommender(model Predictor, database data.Database, cfg *config.Config) (*Recommender, error) {
	if database == nil {
		database = data.NoDatabase{}
	}
	r := &Recommender{
		model:      model,
		database:   database,
		samplePath: cfg.Dataset.SampleCandidates,
	}
	if cfg.Recommend.Filter != "" {
		program, err := expr.Compile(cfg.Recommend.Filter,
			expr.Env(map[string]any{"candidate": Candidate{}}),
			expr.AsBool())
		if err != nil {
			return nil, errors.Annotate(err, "compile candidate filter")
		}
		r.filter = program
	}
	return r, nil
}

// Recommend scores candidates by closeness of their predicted price to the
// budget, with bonuses for affordability and for the requested city.
func (r *Recommender) Recommend(ctx context.Context, req RecommendRequest) ([]ScoredCandidate, error) {
	start := time.Now()
	defer func() {
		RecommendSeconds.WithLabelValues("budget").Observe(time.Since(start).Seconds())
	}()
	if err := checkRequest(req.Budget, req.Limit); err != nil {
		return nil, err
	}
	candidates, err := r.candidates(ctx, req.Candidates)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return r.rank(candidates, req.Budget, req.City, req.Limit), nil
}

// checkRequest rejects budgets and limits that cannot be ranked. A zero limit means DefaultLimit.
func checkRequest(budget float64, limit int) error {
	if budget < 0 || math.IsNaN(budget) || math.IsInf(budget, 0) {
		return base.Errorf(base.ErrValidation, "budget must be a non-negative number, got %v", budget)
	}
	if limit < 0 {
		return base.Errorf(base.ErrValidation, "limit must not be negative, got %d", limit)
	}
	return nil
}

func (r *Recommender) rank(candidates []Candidate, budget float64, city string, limit int) []ScoredCandidate {
	if city != "" {
		candidates = lo.Filter(candidates, func(c Candidate, _ int) bool {
			return dataset.NormalizeCity(c.City) == dataset.NormalizeCity(city)
		})
	}
	results := make([]ScoredCandidate, 0, len(candidates))
	for i := range candidates {
		results = append(results, r.score(&candidates[i], budget, city))
	}
	return top(results, limit)
}

func (r *Recommender) score(c *Candidate, budget float64, city string) ScoredCandidate {
	prediction := r.model.Predict(c.Features(), false)
	score := Closeness(prediction.Price, budget)
	affordable := prediction.Price <= budget
	if affordable {
		score += affordableBonus
	}
	if city != "" && dataset.NormalizeCity(c.City) == dataset.NormalizeCity(city) {
		score += cityBonus
	}
	return ScoredCandidate{
		ID:             c.ID,
		Title:          c.Title,
		City:           c.City,
		PredictedPrice: prediction.Price,
		Method:         prediction.Method,
		Score:          base.Round(math.Min(maxScore, score), 4),
		Affordable:     affordable,
	}
}

// Closeness is 1 when price equals target and decreases linearly to 0.
func Closeness(price, target float64) float64 {
	return math.Max(0, 1-math.Abs(price-target)/math.Max(target, 1))
}

// top sorts by score then affordability, both descending. Ties keep their input order.
func top(results []ScoredCandidate, limit int) []ScoredCandidate {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Affordable && !results[j].Affordable
	})
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// candidates returns explicit candidates if any, otherwise active listings,
// otherwise the sample candidates. A failing listing store falls back to the samples.
func (r *Recommender) candidates(ctx context.Context, explicit []Candidate) ([]Candidate, error) {
	if len(explicit) > 0 {
		return r.applyFilter(explicit), nil
	}
	properties, err := r.database.GetActiveProperties(ctx, 0)
	if err != nil {
		if !errors.Is(err, data.ErrNoDatabase) {
			log.Logger().Warn("failed to load active listings, use sample candidates", zap.Error(err))
		}
	} else if len(properties) > 0 {
		return r.applyFilter(lo.Map(properties, func(p data.Property, _ int) Candidate {
			return FromProperty(p)
		})), nil
	}
	samples, err := LoadSampleCandidates(r.samplePath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return r.applyFilter(samples), nil
}

func (r *Recommender) applyFilter(candidates []Candidate) []Candidate {
	if r.filter == nil {
		return candidates
	}
	return lo.Filter(candidates, func(c Candidate, _ int) bool {
		result, err := expr.Run(r.filter, map[string]any{"candidate": c})
		if err != nil {
			log.Logger().Error("evaluate candidate filter", zap.Int64("id", c.ID), zap.Error(err))
			return false
		}
		return result.(bool)
	})
}
