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

	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/config"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/logics"
	"github.com/alugaai/pricer/model/pricing"
	"github.com/alugaai/pricer/storage/audit"
	"github.com/alugaai/pricer/storage/data"
	"github.com/alugaai/pricer/trainer"
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Server serves price quotes and recommendations over REST.
type Server struct {
	RestServer
	tracerProvider trace.TracerProvider
}

// NewServer opens the listing store and the audit log, then wires the price
// model and the recommender. The price model is built lazily.
func NewServer(cfg *config.Config, httpHost string, httpPort int) (*Server, error) {
	// setup tracing
	tp, err := cfg.Tracing.NewTracerProvider()
	if err != nil {
		return nil, errors.Trace(err)
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	// open database
	dataClient, err := data.Open(cfg.Database.DataStore, cfg.Database.TablePrefix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = dataClient.Init(); err != nil {
		return nil, errors.Annotatef(err, "init database %s", log.RedactDBURL(cfg.Database.DataStore))
	}
	log.Logger().Info("connect database", zap.String("data_store", log.RedactDBURL(cfg.Database.DataStore)))
	// open audit log
	backend, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	recorder := audit.NewRecorder(backend, cfg.Audit.BufferSize)
	// create price model and recommender
	provider := pricing.NewProvider(cfg, dataset.NewLoader(cfg.Dataset), recorder)
	recommender, err := logics.NewRecommender(provider, dataClient, cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Server{
		tracerProvider: tp,
		RestServer: RestServer{
			Config:      cfg,
			Model:       provider,
			Recommender: recommender,
			DataClient:  dataClient,
			Recorder:    recorder,
			Retrainer:   trainer.NewTrainer(cfg),
			HttpHost:    httpHost,
			HttpPort:    httpPort,
			WebService:  new(restful.WebService),
		},
	}, nil
}

// Serve builds the price model in background and starts the REST server.
func (s *Server) Serve() {
	go func() {
		log.Logger().Info("warm up price model", zap.String("method", s.Model.Method()))
	}()
	s.StartHttpServer(restful.NewContainer())
}

// Shutdown stops the REST server then flushes the audit log and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.RestServer.Shutdown(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := s.Recorder.Close(); err != nil {
		return errors.Trace(err)
	}
	if err := s.DataClient.Close(); err != nil {
		return errors.Trace(err)
	}
	// flush pending spans
	if tp, ok := s.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		return errors.Trace(tp.Shutdown(ctx))
	}
	return nil
}
