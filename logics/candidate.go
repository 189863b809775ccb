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
	"os"
	"strings"

	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/storage/data"
	"github.com/juju/errors"
)

// Candidate is a property considered for recommendation.
type Candidate struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	AreaM2       float64  `json:"area" validate:"gte=0"`
	Bedrooms     int      `json:"bedrooms" validate:"gte=0"`
	Bathrooms    int      `json:"bathrooms" validate:"gte=0"`
	ParkingSpots int      `json:"parking" validate:"gte=0"`
	PropertyType string   `json:"property_type" validate:"candidate_type"`
	ListedPrice  float64  `json:"price,omitempty" validate:"gte=0"`
	Amenities    []string `json:"amenities,omitempty"`
}

// Features projects the candidate onto the columns known by the price model.
// Fees are unknown for candidates and count as zero.
func (c *Candidate) Features() dataset.FeatureRow {
	propertyType := dataset.TypeApartment
	if strings.TrimSpace(c.PropertyType) != "" {
		propertyType = dataset.NormalizeType(c.PropertyType)
	}
	return dataset.FeatureRow{
		ID:           int(c.ID),
		PropertyType: propertyType,
		City:         c.City,
		Neighborhood: c.Neighborhood,
		Status:       dataset.StatusActive,
		AreaM2:       c.AreaM2,
		Bedrooms:     c.Bedrooms,
		Bathrooms:    c.Bathrooms,
		ParkingSpots: c.ParkingSpots,
	}
}

// FromProperty converts a stored listing into a candidate.
func FromProperty(p data.Property) Candidate {
	return Candidate{
		ID:           p.ID,
		Title:        p.Title,
		City:         p.City,
		Neighborhood: p.Neighborhood,
		AreaM2:       p.AreaM2,
		Bedrooms:     p.Bedrooms,
		Bathrooms:    p.Bathrooms,
		ParkingSpots: p.ParkingSpots,
		PropertyType: p.PropertyType,
		ListedPrice:  p.NightlyPrice,
		Amenities:    p.Amenities,
	}
}

// LoadSampleCandidates reads the static candidate file with columns id, title,
// city, neighborhood, area, bedrooms, bathrooms, parking and property_type.
// A missing file yields no candidates.
func LoadSampleCandidates(path string) ([]Candidate, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	frame, err := dataset.ReadFrame(file)
	if err != nil {
		return nil, errors.Annotatef(err, "read sample candidates %s", path)
	}

	numbers := make(map[string][]float64)
	for _, column := range []string{"id", "area", "bedrooms", "bathrooms", "parking"} {
		if numbers[column], err = frame.Floats(column); err != nil {
			return nil, errors.Annotatef(err, "read sample candidates %s", path)
		}
	}
	titles := frame.Strings("title")
	cities := frame.Strings("city")
	neighborhoods := frame.Strings("neighborhood")
	types := frame.Strings("property_type")
	candidates := make([]Candidate, frame.Len())
	for i := range candidates {
		candidates[i] = Candidate{
			ID:           int64(numbers["id"][i]),
			Title:        titles[i],
			City:         cities[i],
			Neighborhood: neighborhoods[i],
			AreaM2:       numbers["area"][i],
			Bedrooms:     int(numbers["bedrooms"][i]),
			Bathrooms:    int(numbers["bathrooms"][i]),
			ParkingSpots: int(numbers["parking"][i]),
			PropertyType: types[i],
		}
	}
	return candidates, nil
}
