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
	"strings"
	"time"

	"github.com/alugaai/pricer/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// SurveyRequest holds answers of a preference survey. Zero values leave a
// constraint unset.
type SurveyRequest struct {
	Candidates   []Candidate `json:"candidates,omitempty" validate:"omitempty,dive"`
	Budget       float64     `json:"budget" validate:"gte=0"`
	City         string      `json:"city,omitempty"`
	PropertyType string      `json:"property_type,omitempty"`
	MinArea      float64     `json:"min_area,omitempty" validate:"gte=0"`
	MaxArea      float64     `json:"max_area,omitempty" validate:"gte=0"`
	Bedrooms     int         `json:"bedrooms,omitempty" validate:"gte=0"`
	Bathrooms    int         `json:"bathrooms,omitempty" validate:"gte=0"`
	Parking      int         `json:"parking,omitempty" validate:"gte=0"`
	Limit        int         `json:"limit,omitempty" validate:"omitempty,gte=1,lte=50"`
}

// Match reports whether a candidate satisfies every answered constraint.
func (s *SurveyRequest) Match(c *Candidate) bool {
	switch {
	case s.City != "" && dataset.NormalizeCity(c.City) != dataset.NormalizeCity(s.City):
		return false
	case s.PropertyType != "" && !strings.EqualFold(dataset.NormalizeType(c.PropertyType), dataset.NormalizeType(s.PropertyType)):
		return false
	case s.MinArea > 0 && c.AreaM2 < s.MinArea:
		return false
	case s.MaxArea > 0 && c.AreaM2 > s.MaxArea:
		return false
	case s.Bedrooms > 0 && c.Bedrooms < s.Bedrooms:
		return false
	case s.Bathrooms > 0 && c.Bathrooms < s.Bathrooms:
		return false
	case s.Parking > 0 && c.ParkingSpots < s.Parking:
		return false
	}
	return true
}

// Survey filters candidates by the survey answers and ranks the matches
// against the budget. When nothing matches, every candidate is ranked.
func (r *Recommender) Survey(ctx context.Context, req SurveyRequest) ([]ScoredCandidate, error) {
	start := time.Now()
	defer func() {
		RecommendSeconds.WithLabelValues("survey").Observe(time.Since(start).Seconds())
	}()
	if err := checkRequest(req.Budget, req.Limit); err != nil {
		return nil, err
	}
	candidates, err := r.candidates(ctx, req.Candidates)
	if err != nil {
		return nil, errors.Trace(err)
	}
	matched := lo.Filter(candidates, func(c Candidate, _ int) bool {
		return req.Match(&c)
	})
	if len(matched) == 0 {
		matched = candidates
	}
	return r.rank(matched, req.Budget, req.City, req.Limit), nil
}
