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

// Package artifact persists a trained price model as a bundle of four blobs:
// the forest, the categorical encoders, the scaler and a JSON metadata file.
// Every binary part starts with the bundle id, and the metadata is written
// last, so a bundle is complete only if all parts agree on the id.
package artifact

import (
	"context"
	"io"
	"time"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/encoding"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/model"
	"github.com/alugaai/pricer/model/forest"
	"github.com/alugaai/pricer/model/transform"
	"github.com/alugaai/pricer/storage/blob"
	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	ModelFile    = "price_model.bin"
	EncodersFile = "encoders.bin"
	ScalerFile   = "scaler.bin"
	MetadataFile = "metadata.json"
)

const ModelTypeRandomForest = "random_forest"

const (
	modelHeader    = "pricer/forest"
	encodersHeader = "pricer/encoders"
	scalerHeader   = "pricer/scaler"
)

// TrainingInfo describes the data a bundle was trained on.
type TrainingInfo struct {
	Dataset    string         `json:"dataset,omitempty"`
	NumTrain   int            `json:"n_train"`
	NumTest    int            `json:"n_test"`
	Params     map[string]any `json:"params,omitempty"`
	GridSearch bool           `json:"grid_search_enabled,omitempty"`
	CVFolds    int            `json:"cross_validation_folds,omitempty"`
}

// Metadata is the JSON part of a bundle.
type Metadata struct {
	BundleID     string         `json:"bundle_id"`
	ModelType    string         `json:"model_type"`
	Features     []string       `json:"features"`
	Categorical  []string       `json:"categorical"`
	Numeric      []string       `json:"numeric"`
	Encoding     string         `json:"encoding"`
	Timestamp    time.Time      `json:"timestamp"`
	Metrics      model.Score    `json:"metrics"`
	BestModel    string         `json:"best_model,omitempty"`
	BestParams   map[string]any `json:"best_params,omitempty"`
	CVScore      *float64       `json:"cv_score,omitempty"`
	TrainingInfo *TrainingInfo  `json:"training_info,omitempty"`
}

// Bundle is a trained learned estimator.
type Bundle struct {
	Forest   *forest.Forest
	Encoders *transform.Encoders
	Scaler   *transform.StandardScaler
	Metadata Metadata
}

// Validate checks that every part agrees on the feature layout.
func (b *Bundle) Validate() error {
	if b.Forest == nil || b.Encoders == nil || b.Scaler == nil {
		return base.Errorf(base.ErrArtifactCorrupt, "incomplete bundle")
	}
	if len(b.Metadata.Features) == 0 {
		return base.Errorf(base.ErrArtifactCorrupt, "bundle has no features")
	}
	if b.Scaler.Width() != len(b.Metadata.Features) {
		return base.Errorf(base.ErrArtifactCorrupt, "scaler has %d features, metadata has %d",
			b.Scaler.Width(), len(b.Metadata.Features))
	}
	if b.Forest.NumFeatures != len(b.Metadata.Features) {
		return base.Errorf(base.ErrArtifactCorrupt, "forest has %d features, metadata has %d",
			b.Forest.NumFeatures, len(b.Metadata.Features))
	}
	if !b.Forest.IsFitted() {
		return base.Errorf(base.ErrArtifactCorrupt, "forest is not fitted")
	}
	return b.Forest.Validate()
}

// Vectorize builds the scaled feature vector of row.
func (b *Bundle) Vectorize(row *dataset.FeatureRow) ([]float64, error) {
	x, err := b.Encoders.Vectorize(b.Metadata.Features, row)
	if err != nil {
		return nil, err
	}
	if err = b.Scaler.Transform(x); err != nil {
		return nil, err
	}
	return x, nil
}

// Predict returns the price of row and the deviation among trees.
func (b *Bundle) Predict(row *dataset.FeatureRow) (float64, float64, error) {
	x, err := b.Vectorize(row)
	if err != nil {
		return 0, 0, err
	}
	return b.Forest.PredictWithStd(x)
}

// Save writes the bundle to store. A new bundle id is assigned.
func Save(store blob.Store, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.Metadata.BundleID = uuid.NewString()
	if b.Metadata.ModelType == "" {
		b.Metadata.ModelType = ModelTypeRandomForest
	}
	if b.Metadata.Timestamp.IsZero() {
		b.Metadata.Timestamp = time.Now().UTC()
	}
	id := b.Metadata.BundleID
	if err := writePart(store, ModelFile, func(w io.Writer) error {
		if err := encoding.WriteHeader(w, modelHeader, id); err != nil {
			return err
		}
		return b.Forest.Marshal(w)
	}); err != nil {
		return err
	}
	if err := writePart(store, EncodersFile, func(w io.Writer) error {
		if err := encoding.WriteHeader(w, encodersHeader, id); err != nil {
			return err
		}
		return encoding.WriteGob(w, b.Encoders)
	}); err != nil {
		return err
	}
	if err := writePart(store, ScalerFile, func(w io.Writer) error {
		if err := encoding.WriteHeader(w, scalerHeader, id); err != nil {
			return err
		}
		return encoding.WriteGob(w, b.Scaler)
	}); err != nil {
		return err
	}
	if err := writePart(store, MetadataFile, func(w io.Writer) error {
		data, err := json.MarshalIndent(b.Metadata, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}); err != nil {
		return err
	}
	log.Logger().Info("save model bundle",
		zap.String("bundle_id", id),
		zap.String("encoding", b.Metadata.Encoding),
		zap.Int("n_features", len(b.Metadata.Features)))
	return nil
}

func writePart(store blob.Store, name string, write func(w io.Writer) error) error {
	w, err := store.Create(name)
	if err != nil {
		return errors.Annotatef(err, "create %s", name)
	}
	if err = write(w); err != nil {
		_ = w.Close()
		return errors.Annotatef(err, "write %s", name)
	}
	return errors.Annotatef(w.Close(), "close %s", name)
}

// Load reads a bundle from store. If the store holds no metadata and no other
// part, the error is errors.NotFound. A bundle with missing or mismatching
// parts is rejected as base.ErrArtifactCorrupt.
func Load(store blob.Store) (*Bundle, error) {
	var b Bundle
	r, err := store.Open(MetadataFile)
	if errors.Is(err, errors.NotFound) {
		if names, listErr := store.List(); listErr == nil && !hasParts(names) {
			return nil, errors.NewNotFound(err, "model bundle")
		}
		return nil, base.Errorf(base.ErrArtifactCorrupt, "missing %s", MetadataFile)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	data, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = json.Unmarshal(data, &b.Metadata); err != nil {
		return nil, base.Wrapf(err, base.ErrArtifactCorrupt, "decode %s", MetadataFile)
	}
	id := b.Metadata.BundleID
	if id == "" {
		return nil, base.Errorf(base.ErrArtifactCorrupt, "%s has no bundle id", MetadataFile)
	}
	if err = readPart(store, ModelFile, modelHeader, id, func(r io.Reader) error {
		f, err := forest.Unmarshal(r)
		b.Forest = f
		return err
	}); err != nil {
		return nil, err
	}
	if err = readPart(store, EncodersFile, encodersHeader, id, func(r io.Reader) error {
		b.Encoders = new(transform.Encoders)
		return encoding.ReadGob(r, b.Encoders)
	}); err != nil {
		return nil, err
	}
	if err = readPart(store, ScalerFile, scalerHeader, id, func(r io.Reader) error {
		b.Scaler = new(transform.StandardScaler)
		return encoding.ReadGob(r, b.Scaler)
	}); err != nil {
		return nil, err
	}
	if err = b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func hasParts(names []string) bool {
	for _, name := range names {
		switch name {
		case ModelFile, EncodersFile, ScalerFile, MetadataFile:
			return true
		}
	}
	return false
}

func readPart(store blob.Store, name, kind, id string, read func(r io.Reader) error) error {
	r, err := store.Open(name)
	if errors.Is(err, errors.NotFound) {
		return base.Errorf(base.ErrArtifactCorrupt, "missing %s", name)
	} else if err != nil {
		return errors.Trace(err)
	}
	defer r.Close()
	partID, err := encoding.ReadHeader(r, kind)
	if err != nil {
		return base.Wrapf(err, base.ErrArtifactCorrupt, "read header of %s", name)
	}
	if partID != id {
		return base.Errorf(base.ErrArtifactCorrupt, "%s belongs to bundle %s, expected %s", name, partID, id)
	}
	if err = read(r); err != nil {
		return base.Wrapf(err, base.ErrArtifactCorrupt, "decode %s", name)
	}
	return nil
}

// LoadWithRetry loads a bundle, retrying transient store failures with
// exponential backoff. Missing and corrupt bundles are not retried.
func LoadWithRetry(ctx context.Context, store blob.Store, maxTries uint) (*Bundle, error) {
	return backoff.Retry(ctx, func() (*Bundle, error) {
		b, err := Load(store)
		if err == nil {
			return b, nil
		}
		if errors.Is(err, errors.NotFound) || errors.Is(err, base.ErrArtifactCorrupt) {
			return nil, backoff.Permanent(err)
		}
		log.Logger().Warn("failed to load model bundle, retrying", zap.Error(err))
		return nil, err
	}, backoff.WithMaxTries(max(maxTries, 1)))
}
