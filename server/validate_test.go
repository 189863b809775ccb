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

package server

import (
	"testing"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/logics"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidatePriceRequest(t *testing.T) {
	for _, propertyType := range []string{"House", "casa", "Apartment", " apartamento "} {
		assert.NoError(t, Validate(&PriceRequest{PropertyType: propertyType, City: "Recife", AreaM2: 10}))
	}
	for _, propertyType := range []string{"", "Studio", "kitnet", "castle"} {
		err := Validate(&PriceRequest{PropertyType: propertyType, City: "Recife", AreaM2: 10})
		assert.True(t, errors.Is(err, base.ErrValidation), propertyType)
	}
	err := Validate(&PriceRequest{PropertyType: "House", City: "Recife", AreaM2: 9.9})
	assert.True(t, errors.Is(err, base.ErrValidation))
	assert.Contains(t, err.Error(), "area_m2")
}

func TestValidateCandidates(t *testing.T) {
	for _, propertyType := range []string{"", "apartment", "Studio", "kitnet", "house", "Casa"} {
		request := logics.RecommendRequest{Budget: 100, Candidates: []logics.Candidate{{ID: 1, PropertyType: propertyType}}}
		assert.NoError(t, Validate(&request), propertyType)
	}
	request := logics.RecommendRequest{Budget: 100, Candidates: []logics.Candidate{{ID: 1, PropertyType: "loft"}}}
	assert.True(t, errors.Is(Validate(&request), base.ErrValidation))
	assert.NoError(t, Validate(&logics.SurveyRequest{Budget: 0}))
}

func TestPriceRequestFeatures(t *testing.T) {
	request := PriceRequest{PropertyType: "casa", City: "Olinda", AreaM2: 120, Bedrooms: 3, CondoFee: 200}
	features := request.Features()
	assert.Equal(t, dataset.TypeHouse, features.PropertyType)
	assert.Equal(t, dataset.StatusActive, features.Status)
	assert.Equal(t, 120.0, features.AreaM2)
	assert.Equal(t, 200.0, features.CondoFee)
}
