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

package forest

import (
	"context"
	"io"
	"math/rand"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/encoding"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/common/parallel"
	"github.com/alugaai/pricer/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Default hyper-parameters.
const (
	DefaultNumTrees        = 100
	DefaultMinSamplesSplit = 2
	DefaultMinSamplesLeaf  = 1
)

// Forest is a random forest regressor: bootstrapped CART trees averaged together.
type Forest struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	RandomState     int64
	NumFeatures     int
	Trees           []*Tree
}

// NewForest creates an unfitted forest. A max depth of 0 grows trees until
// leaves are pure or cannot be split.
func NewForest(params model.Params) *Forest {
	return &Forest{
		NumTrees:        params.GetInt(model.NTrees, DefaultNumTrees),
		MaxDepth:        params.GetInt(model.MaxDepth, 0),
		MinSamplesSplit: params.GetInt(model.MinSamplesSplit, DefaultMinSamplesSplit),
		MinSamplesLeaf:  params.GetInt(model.MinSamplesLeaf, DefaultMinSamplesLeaf),
		RandomState:     params.GetInt64(model.RandomState, 0),
	}
}

// GetParams returns the hyper-parameters of the forest.
func (f *Forest) GetParams() model.Params {
	return model.Params{
		model.NTrees:          f.NumTrees,
		model.MaxDepth:        f.MaxDepth,
		model.MinSamplesSplit: f.MinSamplesSplit,
		model.MinSamplesLeaf:  f.MinSamplesLeaf,
		model.RandomState:     f.RandomState,
	}
}

// Fit grows the trees on nJobs workers. Tree i draws its bootstrap sample from
// a generator seeded with RandomState + i, so the result does not depend on nJobs.
func (f *Forest) Fit(ctx context.Context, x [][]float64, y []float64, nJobs int) error {
	if len(x) == 0 {
		return errors.New("no training samples")
	}
	if len(x) != len(y) {
		return errors.Errorf("%d samples but %d targets", len(x), len(y))
	}
	if f.NumTrees <= 0 {
		return errors.Errorf("invalid number of trees %d", f.NumTrees)
	}
	f.NumFeatures = len(x[0])
	for i := range x {
		if len(x[i]) != f.NumFeatures {
			return errors.Errorf("sample %d has %d features, expected %d", i, len(x[i]), f.NumFeatures)
		}
	}
	log.Logger().Debug("fit random forest",
		zap.Int("n_samples", len(x)),
		zap.Int("n_features", f.NumFeatures),
		zap.Int("n_trees", f.NumTrees),
		zap.Int("max_depth", f.MaxDepth))
	trees := make([]*Tree, f.NumTrees)
	err := parallel.Parallel(ctx, f.NumTrees, parallel.Jobs(nJobs), func(_, jobId int) error {
		rng := rand.New(rand.NewSource(f.RandomState + int64(jobId)))
		samples := make([]int, len(x))
		for i := range samples {
			samples[i] = rng.Intn(len(x))
		}
		trees[jobId] = buildTree(x, y, samples, f.MaxDepth, f.MinSamplesSplit, f.MinSamplesLeaf)
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	f.Trees = trees
	return nil
}

// Validate checks the structure of every tree.
func (f *Forest) Validate() error {
	if f.NumFeatures <= 0 {
		return base.Errorf(base.ErrArtifactCorrupt, "forest has %d features", f.NumFeatures)
	}
	for i, tree := range f.Trees {
		if tree == nil {
			return base.Errorf(base.ErrArtifactCorrupt, "tree %d is missing", i)
		}
		if err := tree.Validate(f.NumFeatures); err != nil {
			return errors.Annotatef(err, "tree %d", i)
		}
	}
	return nil
}

// IsFitted returns true if the forest has trees.
func (f *Forest) IsFitted() bool {
	return len(f.Trees) > 0
}

func (f *Forest) predictTrees(x []float64) ([]float64, error) {
	if !f.IsFitted() {
		return nil, base.Errorf(base.ErrInferenceFailure, "forest is not fitted")
	}
	if len(x) != f.NumFeatures {
		return nil, base.Errorf(base.ErrInferenceFailure, "forest expects %d features, got %d", f.NumFeatures, len(x))
	}
	predictions := make([]float64, len(f.Trees))
	for i, tree := range f.Trees {
		predictions[i] = tree.Predict(x)
	}
	return predictions, nil
}

// Predict returns the mean prediction of all trees.
func (f *Forest) Predict(x []float64) (float64, error) {
	predictions, err := f.predictTrees(x)
	if err != nil {
		return 0, err
	}
	return stat.Mean(predictions, nil), nil
}

// PredictWithStd returns the mean prediction and the population standard
// deviation of the predictions of individual trees.
func (f *Forest) PredictWithStd(x []float64) (float64, float64, error) {
	predictions, err := f.predictTrees(x)
	if err != nil {
		return 0, 0, err
	}
	mean, std := stat.PopMeanStdDev(predictions, nil)
	return mean, std, nil
}

// PredictMatrix predicts every row of x.
func (f *Forest) PredictMatrix(x [][]float64) ([]float64, error) {
	predictions := make([]float64, len(x))
	for i := range x {
		var err error
		if predictions[i], err = f.Predict(x[i]); err != nil {
			return nil, err
		}
	}
	return predictions, nil
}

// Marshal writes the forest in gob format.
func (f *Forest) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, f)
}

// Unmarshal reads a forest written by Marshal.
func Unmarshal(r io.Reader) (*Forest, error) {
	f := new(Forest)
	if err := encoding.ReadGob(r, f); err != nil {
		return nil, errors.Trace(err)
	}
	if len(f.Trees) != f.NumTrees {
		return nil, errors.Errorf("forest has %d trees, expected %d", len(f.Trees), f.NumTrees)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
