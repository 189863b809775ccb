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

package dataset

import (
	"strings"

	"github.com/samber/lo"
)

// Column names of a FeatureRow. They are also the header of processed CSV files.
const (
	ColumnPropertyType       = "property_type"
	ColumnCity               = "address_city"
	ColumnNeighborhood       = "address_neighborhood"
	ColumnCancellationPolicy = "cancellation_policy"
	ColumnHostSuperhost      = "host_superhost"
	ColumnAreaM2             = "area_m2"
	ColumnBedrooms           = "bedrooms"
	ColumnBathrooms          = "bathrooms"
	ColumnParkingSpots       = "parking_spots"
	ColumnCondoFee           = "condo_fee"
	ColumnPropertyTax        = "property_tax"
	ColumnFurnished          = "furnished"
	ColumnWifi               = "wifi"
	ColumnDistanceSubway     = "distance_to_subway_km"
	ColumnDistanceBus        = "distance_to_bus_km"
	ColumnGuestCapacity      = "guest_capacity"
	ColumnListingAge         = "listing_age_months"
	ColumnYearBuilt          = "year_built"
	ColumnFloor              = "floor"
	ColumnAvgRating          = "avg_rating"
	ColumnAmenityCount       = "amenity_count"
	ColumnPhotoCount         = "photo_count"
	ColumnReviewCount        = "review_count"
	ColumnRuleCount          = "rule_count"
	ColumnTagCount           = "tag_count"
	ColumnNearTransit        = "near_transit"
	ColumnQualityScore       = "quality_score"
	ColumnRentalPrice        = "rental_price"
)

// CategoricalColumns are the string-valued columns of a FeatureRow.
var CategoricalColumns = []string{
	ColumnPropertyType,
	ColumnCity,
	ColumnNeighborhood,
	ColumnCancellationPolicy,
}

// NumericColumns are the number-valued columns of a FeatureRow, the target excluded.
var NumericColumns = []string{
	ColumnHostSuperhost,
	ColumnAreaM2,
	ColumnBedrooms,
	ColumnBathrooms,
	ColumnParkingSpots,
	ColumnCondoFee,
	ColumnPropertyTax,
	ColumnFurnished,
	ColumnWifi,
	ColumnDistanceSubway,
	ColumnDistanceBus,
	ColumnGuestCapacity,
	ColumnListingAge,
	ColumnYearBuilt,
	ColumnFloor,
	ColumnAvgRating,
	ColumnAmenityCount,
	ColumnPhotoCount,
	ColumnReviewCount,
	ColumnRuleCount,
	ColumnTagCount,
	ColumnNearTransit,
	ColumnQualityScore,
}

// Columns is the header of processed CSV files.
var Columns = lo.Flatten([][]string{CategoricalColumns, NumericColumns, {ColumnRentalPrice}})

// Address is the nested address of a listing.
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
}

// Host is the nested host of a listing.
type Host struct {
	Name      string `json:"name"`
	Photo     string `json:"photo"`
	Superhost bool   `json:"superhost"`
}

// ListingRecord is a raw listing as produced by the data generator.
type ListingRecord struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	PropertyType       string   `json:"property_type"`
	CancellationPolicy string   `json:"cancellation_policy"`
	Status             string   `json:"status"`
	Address            *Address `json:"address"`
	Host               *Host    `json:"host"`
	AreaM2             float64  `json:"area_m2"`
	Bedrooms           int      `json:"bedrooms"`
	Bathrooms          int      `json:"bathrooms"`
	ParkingSpots       int      `json:"parking_spots"`
	CondoFee           float64  `json:"condo_fee"`
	PropertyTax        float64  `json:"property_tax"`
	DistanceSubwayKm   float64  `json:"distance_to_subway_km"`
	DistanceBusKm      float64  `json:"distance_to_bus_km"`
	YearBuilt          int      `json:"year_built"`
	Floor              int      `json:"floor"`
	GuestCapacity      int      `json:"guest_capacity"`
	ListingAgeMonths   int      `json:"listing_age_months"`
	AvgRating          float64  `json:"avg_rating"`
	Furnished          bool     `json:"furnished"`
	Wifi               bool     `json:"wifi"`
	Amenities          []string `json:"amenities"`
	Photos             []string `json:"photos"`
	Reviews            []any    `json:"reviews"`
	HouseRules         []string `json:"house_rules"`
	Tags               []string `json:"tags"`
	RentalPrice        float64  `json:"rental_price"`
}

// FeatureRow is the flat projection of a listing used by the estimators.
type FeatureRow struct {
	ID                 int     `json:"id"`
	PropertyType       string  `json:"property_type"`
	City               string  `json:"address_city"`
	Neighborhood       string  `json:"address_neighborhood"`
	CancellationPolicy string  `json:"cancellation_policy"`
	Status             string  `json:"-"`
	HostSuperhost      bool    `json:"host_superhost"`
	AreaM2             float64 `json:"area_m2"`
	Bedrooms           int     `json:"bedrooms"`
	Bathrooms          int     `json:"bathrooms"`
	ParkingSpots       int     `json:"parking_spots"`
	CondoFee           float64 `json:"condo_fee"`
	PropertyTax        float64 `json:"property_tax"`
	Furnished          bool    `json:"furnished"`
	Wifi               bool    `json:"wifi"`
	DistanceSubwayKm   float64 `json:"distance_to_subway_km"`
	DistanceBusKm      float64 `json:"distance_to_bus_km"`
	GuestCapacity      int     `json:"guest_capacity"`
	ListingAgeMonths   int     `json:"listing_age_months"`
	YearBuilt          int     `json:"year_built"`
	Floor              int     `json:"floor"`
	AvgRating          float64 `json:"avg_rating"`
	AmenityCount       int     `json:"amenity_count"`
	PhotoCount         int     `json:"photo_count"`
	ReviewCount        int     `json:"review_count"`
	RuleCount          int     `json:"rule_count"`
	TagCount           int     `json:"tag_count"`
	NearTransit        bool    `json:"near_transit"`
	QualityScore       float64 `json:"quality_score"`
	RentalPrice        float64 `json:"rental_price"`
}

// Flatten projects a listing onto a FeatureRow. Nested objects become prefixed
// columns, lists become counts and missing values become zero values.
func Flatten(id int, r ListingRecord) FeatureRow {
	row := FeatureRow{
		ID:                 id,
		PropertyType:       NormalizeType(r.PropertyType),
		CancellationPolicy: r.CancellationPolicy,
		Status:             lo.Ternary(r.Status == "", StatusActive, r.Status),
		AreaM2:             r.AreaM2,
		Bedrooms:           r.Bedrooms,
		Bathrooms:          r.Bathrooms,
		ParkingSpots:       r.ParkingSpots,
		CondoFee:           r.CondoFee,
		PropertyTax:        r.PropertyTax,
		Furnished:          r.Furnished,
		Wifi:               r.Wifi,
		DistanceSubwayKm:   r.DistanceSubwayKm,
		DistanceBusKm:      r.DistanceBusKm,
		GuestCapacity:      r.GuestCapacity,
		ListingAgeMonths:   r.ListingAgeMonths,
		YearBuilt:          r.YearBuilt,
		Floor:              r.Floor,
		AvgRating:          r.AvgRating,
		AmenityCount:       len(r.Amenities),
		PhotoCount:         len(r.Photos),
		ReviewCount:        len(r.Reviews),
		RuleCount:          len(r.HouseRules),
		TagCount:           len(r.Tags),
		NearTransit:        r.DistanceSubwayKm < 1.0 || r.DistanceBusKm < 0.5,
		RentalPrice:        r.RentalPrice,
	}
	if r.Address != nil {
		row.City = r.Address.City
		row.Neighborhood = r.Address.Neighborhood
	}
	if r.Host != nil {
		row.HostSuperhost = r.Host.Superhost
	}
	return row
}

// StatusActive is the status of a listing open for rental.
const StatusActive = "active"

// Valid reports whether the row can be used to fit an estimator.
func (row *FeatureRow) Valid() bool {
	return row.AreaM2 > 0 && row.RentalPrice > 0
}

// Category returns the value of a categorical column.
func (row *FeatureRow) Category(column string) (string, bool) {
	switch column {
	case ColumnPropertyType:
		return row.PropertyType, true
	case ColumnCity:
		return row.City, true
	case ColumnNeighborhood:
		return row.Neighborhood, true
	case ColumnCancellationPolicy:
		return row.CancellationPolicy, true
	}
	return "", false
}

// Value returns the value of a numeric column. Booleans are 0 or 1.
func (row *FeatureRow) Value(column string) (float64, bool) {
	switch column {
	case ColumnHostSuperhost:
		return boolValue(row.HostSuperhost), true
	case ColumnAreaM2:
		return row.AreaM2, true
	case ColumnBedrooms:
		return float64(row.Bedrooms), true
	case ColumnBathrooms:
		return float64(row.Bathrooms), true
	case ColumnParkingSpots:
		return float64(row.ParkingSpots), true
	case ColumnCondoFee:
		return row.CondoFee, true
	case ColumnPropertyTax:
		return row.PropertyTax, true
	case ColumnFurnished:
		return boolValue(row.Furnished), true
	case ColumnWifi:
		return boolValue(row.Wifi), true
	case ColumnDistanceSubway:
		return row.DistanceSubwayKm, true
	case ColumnDistanceBus:
		return row.DistanceBusKm, true
	case ColumnGuestCapacity:
		return float64(row.GuestCapacity), true
	case ColumnListingAge:
		return float64(row.ListingAgeMonths), true
	case ColumnYearBuilt:
		return float64(row.YearBuilt), true
	case ColumnFloor:
		return float64(row.Floor), true
	case ColumnAvgRating:
		return row.AvgRating, true
	case ColumnAmenityCount:
		return float64(row.AmenityCount), true
	case ColumnPhotoCount:
		return float64(row.PhotoCount), true
	case ColumnReviewCount:
		return float64(row.ReviewCount), true
	case ColumnRuleCount:
		return float64(row.RuleCount), true
	case ColumnTagCount:
		return float64(row.TagCount), true
	case ColumnNearTransit:
		return boolValue(row.NearTransit), true
	case ColumnQualityScore:
		return row.QualityScore, true
	case ColumnRentalPrice:
		return row.RentalPrice, true
	}
	return 0, false
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Canonical property types.
const (
	TypeApartment = "Apartment"
	TypeHouse     = "House"
	TypeStudio    = "Studio"
	TypeKitnet    = "Kitnet"
)

var typeAliases = map[string]string{
	"apartment":   TypeApartment,
	"apartamento": TypeApartment,
	"house":       TypeHouse,
	"casa":        TypeHouse,
	"studio":      TypeStudio,
	"kitnet":      TypeKitnet,
}

// NormalizeType maps English and Portuguese property type labels onto the
// canonical types. Unknown labels are returned trimmed.
func NormalizeType(propertyType string) string {
	propertyType = strings.TrimSpace(propertyType)
	if canonical, ok := typeAliases[strings.ToLower(propertyType)]; ok {
		return canonical
	}
	return propertyType
}

// KnownType reports whether a label maps onto a canonical property type.
func KnownType(propertyType string) bool {
	_, ok := typeAliases[strings.ToLower(strings.TrimSpace(propertyType))]
	return ok
}

// NormalizeCity folds case for city comparison. Cities otherwise match exactly.
func NormalizeCity(city string) string {
	return strings.ToLower(city)
}
