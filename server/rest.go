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
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/config"
	"github.com/alugaai/pricer/logics"
	"github.com/alugaai/pricer/model/pricing"
	"github.com/alugaai/pricer/storage/audit"
	"github.com/alugaai/pricer/storage/data"
	"github.com/alugaai/pricer/trainer"
	"github.com/araddon/dateparse"
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"
)

const (
	apiDocsPath = "/apidocs.json"
	swaggerPath = "/swagger/"
)

// PriceModel predicts prices and reports the method serving them.
type PriceModel interface {
	logics.Predictor
	Method() string
}

// Retrainer rebuilds the price model from raw listings.
type Retrainer interface {
	Retrain(ctx context.Context, grid bool) (*trainer.RetrainReport, error)
}

// RestServer implements a REST-ful API server.
type RestServer struct {
	Config      *config.Config
	Model       PriceModel
	Recommender *logics.Recommender
	DataClient  data.Database
	Recorder    *audit.Recorder
	Retrainer   Retrainer
	HttpHost    string
	HttpPort    int
	WebService  *restful.WebService
	HttpServer  *http.Server
}

// StartHttpServer starts the REST-ful API server. It blocks until the server is shut down.
func (s *RestServer) StartHttpServer(container *restful.Container) {
	// register restful APIs
	s.CreateWebService()
	container.Add(s.WebService)
	// register swagger UI
	specConfig := restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     apiDocsPath,
	}
	container.Add(restfulspec.NewOpenAPIService(specConfig))
	container.Handle(swaggerPath, v5emb.New("pricer", apiDocsPath, swaggerPath))
	// register prometheus
	container.Handle("/metrics", promhttp.Handler())

	s.HttpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.HttpHost, s.HttpPort),
		Handler:      container,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
	}
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.HttpHost, s.HttpPort)))
	if err := s.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Logger().Fatal("failed to start http server", zap.Error(err))
	}
}

// Shutdown stops accepting requests and waits for running ones.
func (s *RestServer) Shutdown(ctx context.Context) error {
	if s.HttpServer == nil {
		return nil
	}
	return s.HttpServer.Shutdown(ctx)
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	RestAPIRequestSecondsVec.WithLabelValues(req.SelectedRoutePath()).Observe(time.Since(start).Seconds())
	if resp.StatusCode() >= http.StatusBadRequest {
		RestAPIErrorsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode())).Inc()
	}
	if !strings.HasPrefix(req.Request.URL.Path, "/api/health/") {
		log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	// Create a server
	if s.WebService == nil {
		s.WebService = new(restful.WebService)
	}
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(otelrestful.OTelFilter("pricer"))
	ws.Filter(LogFilter)

	/* Health checks */

	ws.Route(ws.GET("/health/live").To(s.checkLive).
		Doc("Probe the liveness of this server.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthStatus{}))
	ws.Route(ws.GET("/health/ready").To(s.checkReady).
		Doc("Probe the readiness of this server. The price model is built on the first probe.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthStatus{}))

	/* Price prediction */

	ws.Route(ws.POST("/predict").To(s.predict).
		Doc("Quote the rental price of a property.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"predict"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.QueryParameter("details", "return estimator details").DataType("boolean").DefaultValue("true")).
		Reads(PriceRequest{}).
		Writes(pricing.Prediction{}))
	ws.Route(ws.GET("/predictions").To(s.getPredictions).
		Doc("Get the most recent audited predictions, oldest first.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"predict"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.QueryParameter("n", "number of returned predictions").DataType("integer")).
		Param(ws.QueryParameter("since", "drop predictions recorded before this time").DataType("string")).
		Writes([]audit.Entry{}))

	/* Recommendation */

	ws.Route(ws.POST("/recommend").To(s.recommend).
		Doc("Recommend properties for a budget.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(logics.RecommendRequest{}).
		Writes([]logics.ScoredCandidate{}))
	ws.Route(ws.POST("/recommend/survey").To(s.recommendSurvey).
		Doc("Recommend properties matching the answers of a preference survey.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(logics.SurveyRequest{}).
		Writes([]logics.ScoredCandidate{}))
	ws.Route(ws.GET("/users/{user-id}/recommendations/personal").To(s.recommendPersonal).
		Doc("Recommend properties similar to the favorites of a user and persist them.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned properties").DataType("integer")).
		Writes(logics.PersonalResult{}))
	ws.Route(ws.GET("/users/{user-id}/recommendations").To(s.getRecommendations).
		Doc("Get persisted recommendations of a user, best first.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("string")).
		Param(ws.QueryParameter("source", "source of recommendations").DataType("string").DefaultValue(logics.SourcePersonal)).
		Writes([]UserRecommendation{}))

	/* Administration */

	ws.Route(ws.POST("/retrain").To(s.retrain).
		Doc("Run the ETL and train a new price model. The running server keeps serving its loaded model.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"admin"}).
		Param(ws.HeaderParameter("X-API-Key", "admin key for RESTful API")).
		Param(ws.QueryParameter("grid", "use grid search").DataType("boolean").DefaultValue("false")).
		Writes(Retrained{}))
}

// HealthStatus is the result of a health probe.
type HealthStatus struct {
	Status   string `json:"status"`
	Method   string `json:"method,omitempty"`
	Database string `json:"database,omitempty"`
}

func (s *RestServer) checkLive(_ *restful.Request, response *restful.Response) {
	Ok(response, HealthStatus{Status: "ok"})
}

func (s *RestServer) checkReady(_ *restful.Request, response *restful.Response) {
	status := HealthStatus{Status: "ok", Method: s.Model.Method(), Database: "ok"}
	if err := s.DataClient.Ping(); err != nil {
		if !errors.Is(err, data.ErrNoDatabase) {
			log.ResponseLogger(response).Error("database is not ready", zap.Error(err))
			status.Status = "unavailable"
			status.Database = "unavailable"
			response.Header().Set("Access-Control-Allow-Origin", "*")
			if err = response.WriteHeaderAndJson(http.StatusServiceUnavailable, status, restful.MIME_JSON); err != nil {
				log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
			}
			return
		}
		status.Database = "disabled"
	}
	Ok(response, status)
}

func (s *RestServer) predict(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	withDetails, err := ParseBool(request, "details", true)
	if err != nil {
		BadRequest(response, err)
		return
	}
	var req PriceRequest
	if err = request.ReadEntity(&req); err != nil {
		BadRequest(response, err)
		return
	}
	if err = Validate(&req); err != nil {
		s.writeError(response, err)
		return
	}
	Ok(response, s.Model.Predict(req.Features(), withDetails))
}

func (s *RestServer) getPredictions(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	n, err := ParseInt(request, "n", s.Config.Server.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if n <= 0 {
		BadRequest(response, fmt.Errorf("n must be positive"))
		return
	}
	entries, err := s.Recorder.Last(n)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	if since := request.QueryParameter("since"); since != "" {
		timestamp, err := dateparse.ParseAny(since)
		if err != nil {
			BadRequest(response, err)
			return
		}
		entries = audit.Since(entries, timestamp)
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	Ok(response, entries)
}

func (s *RestServer) recommend(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	var req logics.RecommendRequest
	if err := request.ReadEntity(&req); err != nil {
		BadRequest(response, err)
		return
	}
	if err := Validate(&req); err != nil {
		s.writeError(response, err)
		return
	}
	results, err := s.Recommender.Recommend(request.Request.Context(), req)
	if err != nil {
		s.writeError(response, err)
		return
	}
	Ok(response, results)
}

func (s *RestServer) recommendSurvey(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	var req logics.SurveyRequest
	if err := request.ReadEntity(&req); err != nil {
		BadRequest(response, err)
		return
	}
	if err := Validate(&req); err != nil {
		s.writeError(response, err)
		return
	}
	results, err := s.Recommender.Survey(request.Request.Context(), req)
	if err != nil {
		s.writeError(response, err)
		return
	}
	Ok(response, results)
}

func (s *RestServer) recommendPersonal(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	userId := request.PathParameter("user-id")
	n, err := ParseInt(request, "n", logics.DefaultLimit)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if n < 1 || n > 50 {
		BadRequest(response, fmt.Errorf("n must be between 1 and 50"))
		return
	}
	result, err := s.Recommender.RecommendPersonal(request.Request.Context(), userId, n)
	if err != nil {
		s.writeError(response, err)
		return
	}
	Ok(response, result)
}

// UserRecommendation is a persisted recommendation.
type UserRecommendation struct {
	PropertyID     int64     `json:"property_id"`
	Score          float64   `json:"score"`
	PredictedPrice float64   `json:"predicted_price"`
	GeneratedAt    time.Time `json:"generated_at"`
}

func (s *RestServer) getRecommendations(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	userId := request.PathParameter("user-id")
	source := request.QueryParameter("source")
	if source == "" {
		source = logics.SourcePersonal
	}
	recommendations, err := s.DataClient.GetRecommendations(request.Request.Context(), userId, source)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	results := make([]UserRecommendation, len(recommendations))
	for i, r := range recommendations {
		results[i] = UserRecommendation{
			PropertyID:     r.PropertyID,
			Score:          r.Score,
			PredictedPrice: r.PredictedPrice,
			GeneratedAt:    r.GeneratedAt,
		}
	}
	Ok(response, results)
}

// Retrained is the result of a retrain request.
type Retrained struct {
	Status string `json:"status"`
	*trainer.RetrainReport
}

func (s *RestServer) retrain(request *restful.Request, response *restful.Response) {
	if !s.adminAuth(request, response) {
		return
	}
	grid, err := ParseBool(request, "grid", false)
	if err != nil {
		BadRequest(response, err)
		return
	}
	start := time.Now()
	report, err := s.Retrainer.Retrain(request.Request.Context(), grid)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	RetrainSeconds.Observe(time.Since(start).Seconds())
	Ok(response, Retrained{Status: "ok", RetrainReport: report})
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.Atoi(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

// ParseBool parses booleans from the query parameter.
func ParseBool(request *restful.Request, name string, fallback bool) (value bool, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.ParseBool(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

// writeError replies 400 to validation errors and 500 to everything else.
func (s *RestServer) writeError(response *restful.Response, err error) {
	if errors.Is(err, base.ErrValidation) {
		BadRequest(response, err)
		return
	}
	InternalServerError(response, err)
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}

func (s *RestServer) auth(request *restful.Request, response *restful.Response) bool {
	if s.Config.Server.APIKey == "" {
		return true
	}
	apikey := request.HeaderParameter("X-API-Key")
	if apikey == s.Config.Server.APIKey || (apikey != "" && apikey == s.Config.Server.AdminAPIKey) {
		return true
	}
	log.ResponseLogger(response).Error("unauthorized", zap.String("path", request.Request.URL.Path))
	if err := response.WriteError(http.StatusUnauthorized, fmt.Errorf("unauthorized")); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
	return false
}

// adminAuth accepts the admin key only. Admin endpoints are disabled without one.
func (s *RestServer) adminAuth(request *restful.Request, response *restful.Response) bool {
	if s.Config.Server.AdminAPIKey == "" {
		if err := response.WriteError(http.StatusForbidden, fmt.Errorf("admin API is disabled")); err != nil {
			log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
		}
		return false
	}
	if request.HeaderParameter("X-API-Key") == s.Config.Server.AdminAPIKey {
		return true
	}
	log.ResponseLogger(response).Error("unauthorized", zap.String("path", request.Request.URL.Path))
	if err := response.WriteError(http.StatusUnauthorized, fmt.Errorf("unauthorized")); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
	return false
}
