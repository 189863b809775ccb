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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/config"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawListings = `[
  {
    "title": "Studio near the subway",
    "property_type": "Apartamento",
    "cancellation_policy": "flexible",
    "address": {"city": "Recife", "neighborhood": "Boa Viagem", "street": "Rua A"},
    "host": {"name": "Ana", "superhost": true},
    "area_m2": 50,
    "bedrooms": 1,
    "bathrooms": 1,
    "parking_spots": 0,
    "condo_fee": 300,
    "distance_to_subway_km": 0.4,
    "distance_to_bus_km": 2.0,
    "avg_rating": 4.5,
    "wifi": true,
    "amenities": ["wifi", "pool"],
    "photos": ["a.jpg", "b.jpg"],
    "reviews": [{"score": 5}, {"score": 4}],
    "tags": ["beach"],
    "rental_price": 1000
  },
  {
    "title": "Family house",
    "property_type": "casa",
    "address": {"city": "Olinda"},
    "area_m2": 120,
    "bedrooms": 3,
    "bathrooms": 2,
    "parking_spots": 2,
    "distance_to_subway_km": 5,
    "distance_to_bus_km": 1,
    "status": "inactive",
    "rental_price": 2500
  },
  {
    "title": "No address",
    "property_type": "Kitnet",
    "distance_to_subway_km": 3,
    "distance_to_bus_km": 0.2,
    "rental_price": 0
  }
]`

func writeRaw(t *testing.T, dir string) string {
	path := filepath.Join(dir, "data", "raw", "listings.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, []byte(rawListings), 0644))
	return path
}

func TestFlatten(t *testing.T) {
	rows, err := NewFileLoader(writeRaw(t, t.TempDir())).Load()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].ID)
	assert.Equal(t, TypeApartment, rows[0].PropertyType)
	assert.Equal(t, "Recife", rows[0].City)
	assert.Equal(t, "Boa Viagem", rows[0].Neighborhood)
	assert.True(t, rows[0].HostSuperhost)
	assert.Equal(t, 2, rows[0].AmenityCount)
	assert.Equal(t, 2, rows[0].PhotoCount)
	assert.Equal(t, 2, rows[0].ReviewCount)
	assert.Equal(t, 0, rows[0].RuleCount)
	assert.Equal(t, 1, rows[0].TagCount)
	assert.True(t, rows[0].NearTransit)
	assert.Equal(t, StatusActive, rows[0].Status)
	assert.True(t, rows[0].Valid())

	assert.Equal(t, TypeHouse, rows[1].PropertyType)
	assert.Empty(t, rows[1].Neighborhood)
	assert.False(t, rows[1].NearTransit)
	assert.Equal(t, "inactive", rows[1].Status)

	// missing nested objects default to empty values
	assert.Equal(t, TypeKitnet, rows[2].PropertyType)
	assert.Empty(t, rows[2].City)
	assert.False(t, rows[2].HostSuperhost)
	assert.True(t, rows[2].NearTransit)
	assert.False(t, rows[2].Valid())
}

func TestColumnAccess(t *testing.T) {
	row := FeatureRow{PropertyType: TypeHouse, City: "Recife", AreaM2: 80, Bedrooms: 2, Furnished: true, RentalPrice: 1500}
	for _, column := range CategoricalColumns {
		_, ok := row.Category(column)
		assert.True(t, ok, column)
	}
	for _, column := range NumericColumns {
		_, ok := row.Value(column)
		assert.True(t, ok, column)
	}
	value, _ := row.Value(ColumnFurnished)
	assert.Equal(t, 1.0, value)
	value, _ = row.Value(ColumnBedrooms)
	assert.Equal(t, 2.0, value)
	_, ok := row.Value("unknown")
	assert.False(t, ok)
	assert.Len(t, Columns, len(CategoricalColumns)+len(NumericColumns)+1)
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, TypeApartment, NormalizeType(" apartment "))
	assert.Equal(t, TypeApartment, NormalizeType("Apartamento"))
	assert.Equal(t, TypeHouse, NormalizeType("CASA"))
	assert.Equal(t, TypeStudio, NormalizeType("studio"))
	assert.Equal(t, "Loft", NormalizeType("Loft"))
	assert.True(t, KnownType("kitnet"))
	assert.False(t, KnownType("Loft"))
}

func TestNormalizeCity(t *testing.T) {
	assert.Equal(t, NormalizeCity("Recife"), NormalizeCity("RECIFE"))
	assert.Equal(t, "são paulo", NormalizeCity("São Paulo"))
	assert.NotEqual(t, NormalizeCity("Recife"), NormalizeCity("Recife "))
}

func TestLoaderResolve(t *testing.T) {
	t.Setenv(EnvRawDataset, "")
	root := t.TempDir()
	path := writeRaw(t, root)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, os.ModePerm))

	// walk parent directories
	loader := &Loader{searchPaths: []string{"data/raw/listings.json"}, workDir: nested}
	resolved, err := loader.Resolve()
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	// environment variable comes before search paths
	other := filepath.Join(t.TempDir(), "other.json")
	require.NoError(t, os.WriteFile(other, []byte("[]"), 0644))
	t.Setenv(EnvRawDataset, other)
	resolved, err = loader.Resolve()
	require.NoError(t, err)
	assert.Equal(t, other, resolved)

	// configured path comes first
	loader.path = path
	resolved, err = loader.Resolve()
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
}

func TestLoaderUnavailable(t *testing.T) {
	t.Setenv(EnvRawDataset, "")
	loader := &Loader{searchPaths: []string{"missing/listings.json"}, workDir: t.TempDir()}
	_, err := loader.Load()
	assert.True(t, errors.Is(err, base.ErrDataUnavailable))

	// malformed files are unavailable too
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err = NewFileLoader(path).Load()
	assert.True(t, errors.Is(err, base.ErrDataUnavailable))
}

func TestProcessedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rows, err := NewFileLoader(writeRaw(t, t.TempDir())).Load()
	require.NoError(t, err)
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	path, err := WriteProcessed(dir, "listings", rows, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "listings_processed_20240506_070809.csv"), path)

	frame, err := ReadProcessed(path)
	require.NoError(t, err)
	assert.Equal(t, 3, frame.Len())
	assert.Equal(t, Columns, frame.Columns())
	assert.Equal(t, []string{"Recife", "Olinda", ""}, frame.Strings(ColumnCity))
	prices, err := frame.Floats(ColumnRentalPrice)
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 2500, 0}, prices)
	transit, err := frame.Floats(ColumnNearTransit)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, transit)
	_, err = frame.Floats("missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestParseCell(t *testing.T) {
	for cell, expected := range map[string]float64{"": 0, "NaN": 0, "True": 1, "false": 0, "2.5": 2.5, "-3": -3} {
		value, err := ParseCell(cell)
		assert.NoError(t, err)
		assert.Equal(t, expected, value, cell)
	}
	_, err := ParseCell("abc")
	assert.Error(t, err)
}

func TestLatestProcessed(t *testing.T) {
	dir := t.TempDir()
	_, err := LatestProcessed(dir, "listings")
	assert.True(t, errors.Is(err, base.ErrDataUnavailable))
	assert.Contains(t, err.Error(), "pricer-cli etl")

	older := filepath.Join(dir, "listings_processed_20240101_000000.csv")
	newer := filepath.Join(dir, "listings_processed_20230101_000000.csv")
	require.NoError(t, os.WriteFile(older, []byte("a\n"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("a\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.csv"), []byte("a\n"), 0644))
	// modification time decides, not the name
	now := time.Now()
	require.NoError(t, os.Chtimes(older, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))
	latest, err := LatestProcessed(dir, "listings")
	require.NoError(t, err)
	assert.Equal(t, newer, latest)
}

func TestETL(t *testing.T) {
	rows := []FeatureRow{
		{ID: 1, RentalPrice: 10000, AvgRating: 5, ReviewCount: 4, PhotoCount: 10, HostSuperhost: true},
		{ID: 2, RentalPrice: 100},
		{ID: 3, RentalPrice: 300, AvgRating: 4, ReviewCount: 2},
		{ID: 4, RentalPrice: 200},
		{ID: 5, RentalPrice: 400},
	}
	kept := Transform(rows)
	// q01 = 104 and q99 = 9616
	assert.Equal(t, []int{3, 4, 5}, []int{kept[0].ID, kept[1].ID, kept[2].ID})
	assert.InDelta(t, 4*0.4+2.0/4*2, kept[0].QualityScore, 1e-9)
	assert.InDelta(t, 5*0.4+2+0.5+1, rows[0].QualityScore, 1e-9)

	// no reviews anywhere
	assert.Equal(t, 0.0, QualityScore(&FeatureRow{AvgRating: 5}, 0))

	dir := t.TempDir()
	etl := NewETL(NewFileLoader(writeRaw(t, t.TempDir())), config.DatasetConfig{ProcessedDir: dir, ProcessedPrefix: "listings"})
	path, err := etl.Run()
	require.NoError(t, err)
	latest, err := LatestProcessed(dir, "listings")
	require.NoError(t, err)
	assert.Equal(t, path, latest)
}
