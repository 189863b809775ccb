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

package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/config"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/model/artifact"
	"github.com/alugaai/pricer/model/baseline"
	"github.com/alugaai/pricer/storage/audit"
	"github.com/alugaai/pricer/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Provider builds the price model on first use. Concurrent first callers wait
// for a single initialization.
type Provider struct {
	cfg      *config.Config
	loader   *dataset.Loader
	recorder *audit.Recorder
	once     sync.Once
	model    *PriceModel
}

// NewProvider creates a provider. recorder may be nil to disable auditing.
func NewProvider(cfg *config.Config, loader *dataset.Loader, recorder *audit.Recorder) *Provider {
	return &Provider{cfg: cfg, loader: loader, recorder: recorder}
}

// Get returns the price model, building it on the first call.
func (p *Provider) Get() *PriceModel {
	p.once.Do(func() {
		start := time.Now()
		p.model = p.build(context.Background())
		InitSeconds.Set(time.Since(start).Seconds())
		log.Logger().Info("price model ready",
			zap.String("method", p.model.Method()),
			zap.Duration("elapsed", time.Since(start)))
	})
	return p.model
}

// Predict builds the price model if needed and predicts with it.
func (p *Provider) Predict(features dataset.FeatureRow, withDetails bool) Prediction {
	return p.Get().Predict(features, withDetails)
}

// Method builds the price model if needed and returns its method.
func (p *Provider) Method() string {
	return p.Get().Method()
}

// build loads a persisted bundle from the local cache then the shared store.
// If neither holds a usable bundle, a fresh one is trained from the raw
// listings and cached locally. The baseline is always fitted.
func (p *Provider) build(ctx context.Context) *PriceModel {
	rows, err := p.loader.Load()
	if err != nil {
		log.Logger().Warn("failed to load listings", zap.Error(err))
	}
	bundle := p.loadBundle(ctx)
	if bundle == nil && len(rows) > 0 {
		if bundle, err = Train(ctx, rows, p.cfg.Model); err != nil {
			log.Logger().Warn("failed to train price model", zap.Error(err))
			bundle = nil
		} else {
			p.cacheBundle(bundle)
		}
	}
	return NewPriceModel(bundle, baseline.NewEstimator().Fit(rows), p.recorder)
}

func (p *Provider) loadBundle(ctx context.Context) *artifact.Bundle {
	for _, uri := range []string{p.cfg.Model.CacheDir, p.cfg.Model.SharedStore} {
		if uri == "" {
			continue
		}
		store, err := blob.Open(uri, p.cfg)
		if err != nil {
			log.Logger().Warn("failed to open model store", zap.String("store", uri), zap.Error(err))
			continue
		}
		maxTries := uint(1)
		if blob.IsRemote(uri) {
			maxTries = p.cfg.Model.LoadRetries
		}
		bundle, err := artifact.LoadWithRetry(ctx, store, maxTries)
		if err != nil {
			if errors.Is(err, errors.NotFound) {
				log.Logger().Info("no model bundle in store", zap.String("store", uri))
			} else {
				log.Logger().Warn("failed to load model bundle", zap.String("store", uri), zap.Error(err))
			}
			continue
		}
		log.Logger().Info("load model bundle",
			zap.String("store", uri),
			zap.String("bundle_id", bundle.Metadata.BundleID),
			zap.Time("timestamp", bundle.Metadata.Timestamp))
		return bundle
	}
	return nil
}

func (p *Provider) cacheBundle(bundle *artifact.Bundle) {
	store, err := blob.Open(p.cfg.Model.CacheDir, p.cfg)
	if err == nil {
		err = artifact.Save(store, bundle)
	}
	if err != nil {
		log.Logger().Warn("failed to cache model bundle", zap.String("store", p.cfg.Model.CacheDir), zap.Error(err))
	}
}
