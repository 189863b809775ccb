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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/storage/data"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const SourcePersonal = "personal"

// Status of a personal recommendation.
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
)

const (
	typeWeight          = 0.3
	cityWeight          = 0.2
	amenityWeight       = 0.1
	maxAmenityOverlap   = 3
	minAmenityFavorites = 2
	closePriceFit       = 0.8
)

// Profile is the preference of a user inferred from favorites.
type Profile struct {
	PropertyType string   `json:"property_type"`
	City         string   `json:"city"`
	AvgPrice     float64  `json:"avg_price"`
	Amenities    []string `json:"amenities"`
}

// NewProfile summarizes favorites: the most frequent type and city (earliest
// favorite wins ties), the average listed price and the amenities shared by
// at least two favorites.
func NewProfile(favorites []data.Property) Profile {
	if len(favorites) == 0 {
		return Profile{}
	}
	candidates := lo.Map(favorites, func(p data.Property, _ int) Candidate { return FromProperty(p) })
	types := lo.Map(candidates, func(c Candidate, _ int) string { return c.Features().PropertyType })
	cities := lo.Map(candidates, func(c Candidate, _ int) string { return strings.TrimSpace(c.City) })
	amenityCounts := make(map[string]int)
	for _, c := range candidates {
		for amenity := range mapset.NewSet(c.Amenities...).Iter() {
			amenityCounts[amenity]++
		}
	}
	amenities := lo.Keys(lo.PickBy(amenityCounts, func(_ string, count int) bool {
		return count >= minAmenityFavorites
	}))
	sort.Strings(amenities)
	return Profile{
		PropertyType: mode(types, strings.ToLower),
		City:         mode(cities, dataset.NormalizeCity),
		AvgPrice:     base.Round(lo.MeanBy(candidates, func(c Candidate) float64 { return c.ListedPrice }), 2),
		Amenities:    amenities,
	}
}

// mode returns the most frequent value by key. Among equally frequent keys
// the one appearing first wins.
func mode(values []string, key func(string) string) string {
	counts := lo.CountValuesBy(values, key)
	var (
		best      string
		bestCount int
	)
	for _, value := range values {
		if count := counts[key(value)]; count > bestCount {
			best, bestCount = value, count
		}
	}
	return best
}

// Similarity rates how well a candidate matches the profile, in [0, 0.8],
// with a human readable reason for each contribution.
func (p *Profile) Similarity(c *Candidate) (float64, []string) {
	var (
		similarity float64
		reasons    []string
	)
	if p.PropertyType != "" && strings.EqualFold(c.Features().PropertyType, p.PropertyType) {
		similarity += typeWeight
		reasons = append(reasons, fmt.Sprintf("same property type as your favorites (%s)", p.PropertyType))
	}
	if p.City != "" && dataset.NormalizeCity(c.City) == dataset.NormalizeCity(p.City) {
		similarity += cityWeight
		reasons = append(reasons, fmt.Sprintf("located in %s like your favorites", p.City))
	}
	overlap := mapset.NewSet(p.Amenities...).Intersect(mapset.NewSet(c.Amenities...)).ToSlice()
	if len(overlap) > 0 {
		sort.Strings(overlap)
		similarity += amenityWeight * float64(min(maxAmenityOverlap, len(overlap)))
		reasons = append(reasons, "has amenities you like: "+strings.Join(overlap, ", "))
	}
	return similarity, reasons
}

// PersonalResult is the outcome of RecommendPersonal. Status is StatusEmpty
// when the user has no favorites.
type PersonalResult struct {
	Status   string            `json:"status"`
	Results  []ScoredCandidate `json:"results"`
	AvgPrice float64           `json:"avg_price"`
	Profile  *Profile          `json:"profile,omitempty"`
}

// RecommendPersonal ranks listings the user has not favorited by an equal
// blend of price fit and similarity to the favorites. The top results replace
// the stored personal recommendations of the user.
func (r *Recommender) RecommendPersonal(ctx context.Context, userID string, limit int) (PersonalResult, error) {
	start := time.Now()
	defer func() {
		RecommendSeconds.WithLabelValues(SourcePersonal).Observe(time.Since(start).Seconds())
	}()
	favorites, err := r.database.GetFavoriteProperties(ctx, userID)
	if err != nil {
		return PersonalResult{}, errors.Trace(err)
	}
	if len(favorites) == 0 {
		return PersonalResult{Status: StatusEmpty, Results: []ScoredCandidate{}}, nil
	}
	profile := NewProfile(favorites)

	candidates, err := r.candidates(ctx, nil)
	if err != nil {
		return PersonalResult{}, errors.Trace(err)
	}
	favoriteSet := mapset.NewSet(lo.Map(favorites, func(p data.Property, _ int) int64 { return p.ID })...)
	candidates = lo.Reject(candidates, func(c Candidate, _ int) bool {
		return favoriteSet.Contains(c.ID)
	})

	results := make([]ScoredCandidate, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		prediction := r.model.Predict(c.Features(), false)
		priceFit := Closeness(prediction.Price, profile.AvgPrice)
		similarity, reasons := profile.Similarity(c)
		if priceFit >= closePriceFit {
			reasons = append(reasons, "price close to the average of your favorites")
		}
		results = append(results, ScoredCandidate{
			ID:             c.ID,
			Title:          c.Title,
			City:           c.City,
			PredictedPrice: prediction.Price,
			Method:         prediction.Method,
			Score:          base.Round(0.5*priceFit+0.5*similarity, 4),
			Affordable:     prediction.Price <= profile.AvgPrice,
			Reasons:        reasons,
		})
	}
	results = top(results, limit)
	r.persist(ctx, userID, results)
	return PersonalResult{
		Status:   StatusOK,
		Results:  results,
		AvgPrice: profile.AvgPrice,
		Profile:  &profile,
	}, nil
}

func (r *Recommender) persist(ctx context.Context, userID string, results []ScoredCandidate) {
	recommendations := lo.Map(results, func(result ScoredCandidate, _ int) data.Recommendation {
		return data.Recommendation{
			UserID:         userID,
			Source:         SourcePersonal,
			PropertyID:     result.ID,
			Score:          result.Score,
			PredictedPrice: result.PredictedPrice,
		}
	})
	if err := r.database.ReplaceRecommendations(ctx, userID, SourcePersonal, recommendations); err != nil {
		PersistFailuresTotal.Inc()
		log.Logger().Warn("failed to persist personal recommendations",
			zap.String("user_id", userID), zap.Error(err))
	}
}
