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

// Package trainer fits the price model offline from the newest processed
// dataset and persists it as an artifact bundle.
package trainer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/config"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/model"
	"github.com/alugaai/pricer/model/artifact"
	"github.com/alugaai/pricer/model/forest"
	"github.com/alugaai/pricer/model/transform"
	"github.com/alugaai/pricer/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Report summarizes a training run.
type Report struct {
	Dataset    string         `json:"dataset"`
	OutputDir  string         `json:"output_dir"`
	BundleID   string         `json:"bundle_id"`
	NumTrain   int            `json:"n_train"`
	NumTest    int            `json:"n_test"`
	Metrics    model.Score    `json:"metrics"`
	BestParams map[string]any `json:"best_params,omitempty"`
	CVScore    *float64       `json:"cv_score,omitempty"`
	Elapsed    time.Duration  `json:"elapsed"`
}

// ProgressFunc is notified after every cross validation fit.
type ProgressFunc func(done, total int)

type Trainer struct {
	cfg      *config.Config
	progress ProgressFunc
}

func NewTrainer(cfg *config.Config) *Trainer {
	return &Trainer{cfg: cfg}
}

// SetProgress sets the progress listener of grid searches.
func (t *Trainer) SetProgress(progress ProgressFunc) {
	t.progress = progress
}

// OutputDir is where bundles are written. It defaults to the model cache.
func (t *Trainer) OutputDir() string {
	if t.cfg.Trainer.OutputDir != "" {
		return t.cfg.Trainer.OutputDir
	}
	return t.cfg.Model.CacheDir
}

// LatestDataset returns the newest processed dataset.
func (t *Trainer) LatestDataset() (string, error) {
	return dataset.LatestProcessed(t.cfg.Dataset.ProcessedDir, t.cfg.Dataset.ProcessedPrefix)
}

// split is a prepared, split and scaled dataset.
type split struct {
	path     string
	features *Features
	scaler   *transform.StandardScaler
	xTrain   [][]float64
	yTrain   []float64
	xTest    [][]float64
	yTest    []float64
}

func (t *Trainer) prepare() (*split, error) {
	path, err := t.LatestDataset()
	if err != nil {
		return nil, err
	}
	frame, err := dataset.ReadProcessed(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load processed dataset", zap.String("path", path), zap.Int("n_records", frame.Len()))
	features, err := Prepare(frame)
	if err != nil {
		return nil, err
	}
	train, test := Split(len(features.Y), t.cfg.Trainer.TestRatio, t.cfg.Trainer.RandomState)
	s := &split{
		path:     path,
		features: features,
		xTrain:   copyMatrix(gather(features.X, train)),
		yTrain:   gather(features.Y, train),
		xTest:    copyMatrix(gather(features.X, test)),
		yTest:    gather(features.Y, test),
	}
	s.scaler = transform.FitStandardScaler(s.xTrain, nil)
	if err = s.scaler.TransformMatrix(s.xTrain); err != nil {
		return nil, errors.Trace(err)
	}
	if err = s.scaler.TransformMatrix(s.xTest); err != nil {
		return nil, errors.Trace(err)
	}
	return s, nil
}

func (t *Trainer) params() model.Params {
	return model.Params{
		model.NTrees:          t.cfg.Trainer.NumTrees,
		model.MaxDepth:        t.cfg.Trainer.MaxDepth,
		model.MinSamplesSplit: t.cfg.Trainer.MinSamplesSplit,
		model.MinSamplesLeaf:  t.cfg.Trainer.MinSamplesLeaf,
		model.RandomState:     t.cfg.Trainer.RandomState,
	}
}

// TrainSimple fits a forest with the configured parameters, evaluates it on
// the held out rows and persists the bundle.
func (t *Trainer) TrainSimple(ctx context.Context) (*Report, error) {
	start := time.Now()
	s, err := t.prepare()
	if err != nil {
		return nil, err
	}
	params := t.params()
	f, score, err := t.fitAndEvaluate(ctx, s, params)
	if err != nil {
		return nil, err
	}
	bundle := t.newBundle(s, f, score, params)
	report, err := t.save(s, bundle, start)
	if err != nil {
		return nil, err
	}
	log.Logger().Info("train price model", score.ZapFields()...)
	return report, nil
}

func (t *Trainer) fitAndEvaluate(ctx context.Context, s *split, params model.Params) (*forest.Forest, model.Score, error) {
	f := forest.NewForest(params)
	if err := f.Fit(ctx, s.xTrain, s.yTrain, t.cfg.Trainer.FitJobs); err != nil {
		return nil, model.Score{}, errors.Trace(err)
	}
	predictions, err := f.PredictMatrix(s.xTest)
	if err != nil {
		return nil, model.Score{}, errors.Trace(err)
	}
	return f, model.Evaluate(s.yTest, predictions), nil
}

func (t *Trainer) newBundle(s *split, f *forest.Forest, score model.Score, params model.Params) *artifact.Bundle {
	return &artifact.Bundle{
		Forest:   f,
		Encoders: s.features.Encoders,
		Scaler:   s.scaler,
		Metadata: artifact.Metadata{
			ModelType:   artifact.ModelTypeRandomForest,
			Features:    s.features.Names,
			Categorical: s.features.Categorical,
			Numeric:     s.features.Numeric,
			Encoding:    transform.Label,
			Timestamp:   time.Now().UTC(),
			Metrics:     score,
			TrainingInfo: &artifact.TrainingInfo{
				Dataset:  filepath.Base(s.path),
				NumTrain: len(s.yTrain),
				NumTest:  len(s.yTest),
				Params:   params.ToMap(),
			},
		},
	}
}

func (t *Trainer) save(s *split, bundle *artifact.Bundle, start time.Time) (*Report, error) {
	store, err := blob.Open(t.OutputDir(), t.cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = artifact.Save(store, bundle); err != nil {
		return nil, errors.Annotatef(err, "save bundle to %s", t.OutputDir())
	}
	return &Report{
		Dataset:    s.path,
		OutputDir:  t.OutputDir(),
		BundleID:   bundle.Metadata.BundleID,
		NumTrain:   len(s.yTrain),
		NumTest:    len(s.yTest),
		Metrics:    bundle.Metadata.Metrics,
		BestParams: bundle.Metadata.BestParams,
		CVScore:    bundle.Metadata.CVScore,
		Elapsed:    time.Since(start),
	}, nil
}
