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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/alugaai/pricer/config"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/logics"
	"github.com/alugaai/pricer/model"
	"github.com/alugaai/pricer/model/baseline"
	"github.com/alugaai/pricer/model/pricing"
	"github.com/alugaai/pricer/storage/audit"
	"github.com/alugaai/pricer/storage/data"
	"github.com/alugaai/pricer/trainer"
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/suite"
)

const (
	apiKey   = "test_api_key"
	adminKey = "test_admin_key"
)

type mockRetrainer struct {
	report *trainer.RetrainReport
	err    error
	grid   bool
}

func (m *mockRetrainer) Retrain(_ context.Context, grid bool) (*trainer.RetrainReport, error) {
	m.grid = grid
	return m.report, m.err
}

type ServerTestSuite struct {
	suite.Suite
	RestServer
	estimator *baseline.Estimator
	retrainer *mockRetrainer
	handler   *restful.Container
}

func (suite *ServerTestSuite) SetupSuite() {
	var err error
	// open database
	suite.DataClient, err = data.Open(fmt.Sprintf("sqlite://%s/data.db", suite.T().TempDir()), "")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.DataClient.Init())
	// open audit log
	suite.Recorder = audit.NewRecorder(audit.NewJSONL(filepath.Join(suite.T().TempDir(), "predictions.log")), 100)
	// configuration
	suite.Config = config.GetDefaultConfig()
	suite.Config.Server.APIKey = apiKey
	suite.Config.Server.AdminAPIKey = adminKey
	suite.Config.Dataset.SampleCandidates = ""
	// create price model and recommender
	suite.estimator = baseline.NewEstimator().Fit([]dataset.FeatureRow{
		{AreaM2: 50, RentalPrice: 1000, PropertyType: dataset.TypeApartment, City: "Recife"},
		{AreaM2: 100, RentalPrice: 2000, PropertyType: dataset.TypeApartment, City: "Recife"},
		{AreaM2: 60, RentalPrice: 1800, PropertyType: dataset.TypeHouse, City: "Olinda"},
	})
	suite.Model = pricing.NewPriceModel(nil, suite.estimator, suite.Recorder)
	suite.Recommender, err = logics.NewRecommender(suite.Model, suite.DataClient, suite.Config)
	suite.Require().NoError(err)
	suite.retrainer = &mockRetrainer{}
	suite.Retrainer = suite.retrainer

	suite.WebService = new(restful.WebService)
	suite.CreateWebService()
	// create handler
	suite.handler = restful.NewContainer()
	suite.handler.Add(suite.WebService)
}

func (suite *ServerTestSuite) TearDownSuite() {
	suite.NoError(suite.Recorder.Close())
	suite.NoError(suite.DataClient.Close())
}

func (suite *ServerTestSuite) SetupTest() {
	suite.NoError(suite.DataClient.Purge())
	suite.retrainer.report = nil
	suite.retrainer.err = nil
	suite.retrainer.grid = false
	suite.Config.Server.AdminAPIKey = adminKey
}

func (suite *ServerTestSuite) marshal(v interface{}) string {
	s, err := json.Marshal(v)
	suite.NoError(err)
	return string(s)
}

// reference predicts without touching the audit log.
func (suite *ServerTestSuite) reference(features dataset.FeatureRow, withDetails bool) pricing.Prediction {
	return pricing.NewPriceModel(nil, suite.estimator, nil).Predict(features, withDetails)
}

func (suite *ServerTestSuite) TestHealth() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/health/live").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(HealthStatus{Status: "ok"})).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/health/ready").
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(HealthStatus{Status: "ok", Method: pricing.MethodBaseline, Database: "ok"})).
		End()
}

func (suite *ServerTestSuite) TestAuth() {
	t := suite.T()
	request := PriceRequest{PropertyType: "Apartment", City: "Recife", AreaM2: 50}
	apitest.New().
		Handler(suite.handler).
		Post("/api/predict").
		JSON(request).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	apitest.New().
		Handler(suite.handler).
		Post("/api/predict").
		Header("X-API-Key", "wrong").
		JSON(request).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	// the admin key is accepted everywhere
	apitest.New().
		Handler(suite.handler).
		Post("/api/predict").
		Header("X-API-Key", adminKey).
		JSON(request).
		Expect(t).
		Status(http.StatusOK).
		End()
}

func (suite *ServerTestSuite) TestPredict() {
	t := suite.T()
	request := PriceRequest{
		PropertyType: "Apartamento",
		City:         "Recife",
		Neighborhood: "Boa Viagem",
		AreaM2:       70,
		Bedrooms:     2,
		Bathrooms:    1,
		ParkingSpots: 1,
		CondoFee:     300,
	}
	expected := suite.reference(request.Features(), true)
	suite.Equal(pricing.MethodBaseline, expected.Method)
	suite.NotEmpty(expected.Details)
	apitest.New().
		Handler(suite.handler).
		Post("/api/predict").
		Header("X-API-Key", apiKey).
		JSON(request).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	apitest.New().
		Handler(suite.handler).
		Post("/api/predict").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"details": "false"}).
		JSON(request).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(suite.reference(request.Features(), false))).
		End()
}

func (suite *ServerTestSuite) TestPredictValidation() {
	t := suite.T()
	valid := PriceRequest{PropertyType: "Casa", City: "Olinda", AreaM2: 80, Bedrooms: 2}
	invalid := []PriceRequest{valid, valid, valid, valid, valid}
	invalid[0].AreaM2 = 9
	invalid[1].PropertyType = "Kitnet"
	invalid[2].Bedrooms = -1
	invalid[3].PropertyTax = -10
	invalid[4].City = ""
	for _, request := range invalid {
		apitest.New().
			Handler(suite.handler).
			Post("/api/predict").
			Header("X-API-Key", apiKey).
			JSON(request).
			Expect(t).
			Status(http.StatusBadRequest).
			End()
	}
	apitest.New().
		Handler(suite.handler).
		Post("/api/predict").
		Header("X-API-Key", apiKey).
		ContentType(restful.MIME_JSON).
		Body(`{"property_type": "House",`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.handler).
		Post("/api/predict").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"details": "maybe"}).
		JSON(valid).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) candidates() []logics.Candidate {
	return []logics.Candidate{
		{ID: 1, Title: "Flat", City: "Recife", AreaM2: 50, Bedrooms: 1, Bathrooms: 1, PropertyType: "apartment"},
		{ID: 2, Title: "Loft", City: "Recife", AreaM2: 30, Bedrooms: 1, Bathrooms: 1, PropertyType: "studio"},
		{ID: 3, Title: "Casa grande", City: "Olinda", AreaM2: 150, Bedrooms: 4, Bathrooms: 3, ParkingSpots: 2, PropertyType: "casa"},
	}
}

func (suite *ServerTestSuite) TestRecommend() {
	t := suite.T()
	request := logics.RecommendRequest{Candidates: suite.candidates(), Budget: 1500, City: "RECIFE", Limit: 5}
	expected, err := suite.Recommender.Recommend(context.Background(), request)
	suite.Require().NoError(err)
	suite.Len(expected, 2)
	apitest.New().
		Handler(suite.handler).
		Post("/api/recommend").
		Header("X-API-Key", apiKey).
		JSON(request).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()

	// no candidates anywhere
	apitest.New().
		Handler(suite.handler).
		Post("/api/recommend").
		Header("X-API-Key", apiKey).
		JSON(logics.RecommendRequest{Budget: 1500}).
		Expect(t).
		Status(http.StatusOK).
		Body(`[]`).
		End()
}

func (suite *ServerTestSuite) TestRecommendActiveListings() {
	t := suite.T()
	suite.Require().NoError(suite.DataClient.BatchInsertProperties(context.Background(), []data.Property{
		{ID: 10, Title: "Active", City: "Recife", PropertyType: "Apartamento", AreaM2: 60, Bedrooms: 2, Active: true},
		{ID: 11, Title: "Inactive", City: "Recife", PropertyType: "Casa", AreaM2: 90, Bedrooms: 3},
	}))
	request := logics.RecommendRequest{Budget: 1200}
	expected, err := suite.Recommender.Recommend(context.Background(), request)
	suite.Require().NoError(err)
	suite.Require().Len(expected, 1)
	suite.Equal(int64(10), expected[0].ID)
	apitest.New().
		Handler(suite.handler).
		Post("/api/recommend").
		Header("X-API-Key", apiKey).
		JSON(request).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
}

func (suite *ServerTestSuite) TestRecommendValidation() {
	t := suite.T()
	invalid := []logics.RecommendRequest{
		{Budget: 99},
		{Budget: 1000, Limit: 51},
		{Budget: 1000, Candidates: []logics.Candidate{{ID: 1, PropertyType: "castle"}}},
		{Budget: 1000, Candidates: []logics.Candidate{{ID: 1, AreaM2: -1}}},
	}
	for _, request := range invalid {
		apitest.New().
			Handler(suite.handler).
			Post("/api/recommend").
			Header("X-API-Key", apiKey).
			JSON(request).
			Expect(t).
			Status(http.StatusBadRequest).
			End()
	}
}

func (suite *ServerTestSuite) TestSurvey() {
	t := suite.T()
	request := logics.SurveyRequest{Candidates: suite.candidates(), Budget: 3000, MinArea: 100, Limit: 10}
	expected, err := suite.Recommender.Survey(context.Background(), request)
	suite.Require().NoError(err)
	suite.Require().Len(expected, 1)
	suite.Equal(int64(3), expected[0].ID)
	apitest.New().
		Handler(suite.handler).
		Post("/api/recommend/survey").
		Header("X-API-Key", apiKey).
		JSON(request).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	apitest.New().
		Handler(suite.handler).
		Post("/api/recommend/survey").
		Header("X-API-Key", apiKey).
		JSON(logics.SurveyRequest{Budget: -1}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestRecommendPersonal() {
	t := suite.T()
	ctx := context.Background()
	properties := []data.Property{
		{ID: 1, Title: "Fav 1", City: "Recife", PropertyType: "Apartamento", AreaM2: 50, Bedrooms: 1, NightlyPrice: 1000, Active: true, Amenities: []string{"wifi", "pool"}},
		{ID: 2, Title: "Fav 2", City: "Recife", PropertyType: "Apartamento", AreaM2: 60, Bedrooms: 2, NightlyPrice: 1200, Active: true, Amenities: []string{"wifi"}},
	}
	for i := 0; i < 4; i++ {
		properties = append(properties, data.Property{
			ID:           int64(10 + i),
			Title:        fmt.Sprintf("Candidate %d", i),
			City:         lo.Ternary(i%2 == 0, "Recife", "Olinda"),
			PropertyType: lo.Ternary(i < 2, "Apartamento", "Casa"),
			AreaM2:       float64(45 + 10*i),
			Bedrooms:     1 + i%3,
			NightlyPrice: float64(900 + 100*i),
			Active:       true,
			Amenities:    []string{"wifi"},
		})
	}
	suite.Require().NoError(suite.DataClient.BatchInsertProperties(ctx, properties))
	suite.Require().NoError(suite.DataClient.AddFavorite(ctx, "alice", 1))
	suite.Require().NoError(suite.DataClient.AddFavorite(ctx, "alice", 2))

	expected, err := suite.Recommender.RecommendPersonal(ctx, "alice", 3)
	suite.Require().NoError(err)
	suite.Equal(logics.StatusOK, expected.Status)
	suite.Len(expected.Results, 3)
	apitest.New().
		Handler(suite.handler).
		Get("/api/users/alice/recommendations/personal").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"n": "3"}).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()

	// read back persisted recommendations
	persisted, err := suite.DataClient.GetRecommendations(ctx, "alice", logics.SourcePersonal)
	suite.Require().NoError(err)
	suite.Len(persisted, 3)
	apitest.New().
		Handler(suite.handler).
		Get("/api/users/alice/recommendations").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(lo.Map(persisted, func(r data.Recommendation, _ int) UserRecommendation {
			return UserRecommendation{
				PropertyID:     r.PropertyID,
				Score:          r.Score,
				PredictedPrice: r.PredictedPrice,
				GeneratedAt:    r.GeneratedAt,
			}
		}))).
		End()

	// user without favorites
	apitest.New().
		Handler(suite.handler).
		Get("/api/users/bob/recommendations/personal").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(logics.PersonalResult{Status: logics.StatusEmpty, Results: []logics.ScoredCandidate{}})).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/users/bob/recommendations").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(`[]`).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/users/alice/recommendations/personal").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"n": "0"}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestPredictions() {
	t := suite.T()
	recorder := suite.Recorder
	suite.Recorder = audit.NewRecorder(audit.NewJSONL(filepath.Join(suite.T().TempDir(), "predictions.log")), 10)
	defer func() {
		suite.NoError(suite.Recorder.Close())
		suite.Recorder = recorder
	}()
	for i := 0; i < 3; i++ {
		suite.True(suite.Recorder.Record(audit.Entry{
			Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
			Method:    pricing.MethodBaseline,
			Price:     float64(1000 + i),
			Features:  map[string]any{dataset.ColumnCity: "Recife"},
		}))
	}
	suite.Eventually(func() bool {
		entries, err := suite.Recorder.Last(10)
		return err == nil && len(entries) == 3
	}, time.Second, 10*time.Millisecond)
	expected, err := suite.Recorder.Last(2)
	suite.Require().NoError(err)
	suite.Equal(1002.0, expected[1].Price)
	apitest.New().
		Handler(suite.handler).
		Get("/api/predictions").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"n": "2"}).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/predictions").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"n": "-1"}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/predictions").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"n": "10", "since": "2026-01-01 00:01:00"}).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/predictions").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"since": "someday"}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestRetrain() {
	t := suite.T()
	suite.retrainer.report = &trainer.RetrainReport{
		ETLOutput: "data/processed/listings_processed_20260101_000000.csv",
		Report: &trainer.Report{
			Dataset:  "listings_processed_20260101_000000.csv",
			BundleID: "bundle",
			NumTrain: 80,
			NumTest:  20,
			Metrics:  model.Score{RMSE: 100, MAE: 80, R2: 0.9, MAPE: 0.1},
		},
	}
	apitest.New().
		Handler(suite.handler).
		Post("/api/retrain").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	apitest.New().
		Handler(suite.handler).
		Post("/api/retrain").
		Header("X-API-Key", adminKey).
		QueryParams(map[string]string{"grid": "true"}).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(Retrained{Status: "ok", RetrainReport: suite.retrainer.report})).
		End()
	suite.True(suite.retrainer.grid)

	suite.retrainer.err = errors.New("no raw listings")
	apitest.New().
		Handler(suite.handler).
		Post("/api/retrain").
		Header("X-API-Key", adminKey).
		Expect(t).
		Status(http.StatusInternalServerError).
		End()
	suite.False(suite.retrainer.grid)

	suite.Config.Server.AdminAPIKey = ""
	apitest.New().
		Handler(suite.handler).
		Post("/api/retrain").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusForbidden).
		End()
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
