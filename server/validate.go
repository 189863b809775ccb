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
	"reflect"
	"strings"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/dataset"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// PriceRequest is the body of a price quote.
type PriceRequest struct {
	PropertyType string  `json:"property_type" validate:"required,price_type"`
	City         string  `json:"city" validate:"required"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	AreaM2       float64 `json:"area_m2" validate:"gte=10"`
	Bedrooms     int     `json:"bedrooms" validate:"gte=0"`
	Bathrooms    int     `json:"bathrooms" validate:"gte=0"`
	ParkingSpots int     `json:"parking_spots" validate:"gte=0"`
	CondoFee     float64 `json:"condo_fee,omitempty" validate:"gte=0"`
	PropertyTax  float64 `json:"property_tax,omitempty" validate:"gte=0"`
}

// Features projects the request onto the columns known by the price model.
func (r *PriceRequest) Features() dataset.FeatureRow {
	return dataset.FeatureRow{
		PropertyType: dataset.NormalizeType(r.PropertyType),
		City:         r.City,
		Neighborhood: r.Neighborhood,
		Status:       dataset.StatusActive,
		AreaM2:       r.AreaM2,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		ParkingSpots: r.ParkingSpots,
		CondoFee:     r.CondoFee,
		PropertyTax:  r.PropertyTax,
	}
}

var (
	priceTypes     = []string{dataset.TypeHouse, dataset.TypeApartment}
	candidateTypes = []string{dataset.TypeApartment, dataset.TypeStudio, dataset.TypeHouse, dataset.TypeKitnet}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	base.Must(v.RegisterValidation("price_type", func(fl validator.FieldLevel) bool {
		return lo.Contains(priceTypes, dataset.NormalizeType(fl.Field().String()))
	}))
	// candidates without a type are priced as apartments
	base.Must(v.RegisterValidation("candidate_type", func(fl validator.FieldLevel) bool {
		propertyType := fl.Field().String()
		return strings.TrimSpace(propertyType) == "" || lo.Contains(candidateTypes, dataset.NormalizeType(propertyType))
	}))
	return v
}

// Validate checks a request body. Failures are ErrValidation.
func Validate(request any) error {
	if err := validate.Struct(request); err != nil {
		return base.Wrapf(err, base.ErrValidation, "invalid request")
	}
	return nil
}
