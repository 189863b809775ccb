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

package trainer

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/alugaai/pricer/base"
	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/common/parallel"
	"github.com/alugaai/pricer/config"
	"github.com/alugaai/pricer/model"
	"github.com/alugaai/pricer/model/artifact"
	"github.com/alugaai/pricer/model/forest"
	"github.com/alugaai/pricer/storage/blob"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

const RankingFile = "model_ranking.txt"

// Candidate is a parameter combination scored by cross validation.
type Candidate struct {
	Params   model.Params
	CVScores []float64
	CVScore  float64
}

// NewParamsGrid converts the configured search space.
func NewParamsGrid(cfg config.GridConfig) model.ParamsGrid {
	toAny := func(values []int) []any {
		return lo.Map(values, func(v int, _ int) any { return v })
	}
	return model.ParamsGrid{
		model.NTrees:          toAny(cfg.NumTrees),
		model.MaxDepth:        toAny(cfg.MaxDepth),
		model.MinSamplesSplit: toAny(cfg.MinSamplesSplit),
		model.MinSamplesLeaf:  toAny(cfg.MinSamplesLeaf),
	}
}

// TrainGrid searches the configured grid by k-fold cross validation on the
// training rows, scored by R². The best combination is refitted on every
// training row, evaluated on the held out rows and persisted together with a
// ranking of all combinations.
func (t *Trainer) TrainGrid(ctx context.Context) (*Report, error) {
	start := time.Now()
	s, err := t.prepare()
	if err != nil {
		return nil, err
	}
	k := t.cfg.Trainer.CVFolds
	if len(s.yTrain) < k {
		return nil, base.Errorf(base.ErrDataUnavailable,
			"%d training rows are not enough for %d-fold cross validation", len(s.yTrain), k)
	}
	candidates, err := t.crossValidate(ctx, s, NewParamsGrid(t.cfg.Trainer.Grid).Combinations(), k)
	if err != nil {
		return nil, err
	}
	best := candidates[0]
	log.Logger().Info("grid search finished",
		zap.String("best_params", best.Params.ToString()),
		zap.Float64("cv_score", best.CVScore))

	f, score, err := t.fitAndEvaluate(ctx, s, best.Params)
	if err != nil {
		return nil, err
	}
	bundle := t.newBundle(s, f, score, best.Params)
	bundle.Metadata.BestModel = artifact.ModelTypeRandomForest
	bundle.Metadata.BestParams = best.Params.ToMap()
	bundle.Metadata.CVScore = lo.ToPtr(best.CVScore)
	bundle.Metadata.TrainingInfo.GridSearch = true
	bundle.Metadata.TrainingInfo.CVFolds = k
	report, err := t.save(s, bundle, start)
	if err != nil {
		return nil, err
	}
	if err = t.writeRanking(candidates, score); err != nil {
		return nil, err
	}
	log.Logger().Info("train price model with grid search", score.ZapFields()...)
	return report, nil
}

// crossValidate scores every combination and returns them best first.
// Combinations with equal scores keep their enumeration order.
func (t *Trainer) crossValidate(ctx context.Context, s *split, combinations []model.Params, k int) ([]Candidate, error) {
	folds := KFold(len(s.yTrain), k)
	candidates := lo.Map(combinations, func(params model.Params, _ int) Candidate {
		return Candidate{
			Params:   params.Overwrite(model.Params{model.RandomState: t.cfg.Trainer.RandomState}),
			CVScores: make([]float64, k),
		}
	})
	total := len(combinations) * k
	log.Logger().Info("start grid search",
		zap.Int("n_combinations", len(combinations)),
		zap.Int("n_folds", k))
	var done atomic.Int64
	err := parallel.Parallel(ctx, total, parallel.Jobs(t.cfg.Trainer.FitJobs), func(_, jobId int) error {
		c, fold := jobId/k, jobId%k
		held := folds[fold]
		trainIdx := lo.Without(lo.Range(len(s.yTrain)), held...)
		f := forest.NewForest(candidates[c].Params)
		if err := f.Fit(ctx, gather(s.xTrain, trainIdx), gather(s.yTrain, trainIdx), 1); err != nil {
			return errors.Trace(err)
		}
		predictions, err := f.PredictMatrix(gather(s.xTrain, held))
		if err != nil {
			return errors.Trace(err)
		}
		candidates[c].CVScores[fold] = model.R2(gather(s.yTrain, held), predictions)
		if t.progress != nil {
			t.progress(int(done.Inc()), total)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	for i := range candidates {
		candidates[i].CVScore = stat.Mean(candidates[i].CVScores, nil)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if math.IsNaN(candidates[j].CVScore) {
			return !math.IsNaN(candidates[i].CVScore)
		}
		return candidates[i].CVScore > candidates[j].CVScore
	})
	return candidates, nil
}

func (t *Trainer) writeRanking(candidates []Candidate, best model.Score) error {
	store, err := blob.Open(t.OutputDir(), t.cfg)
	if err != nil {
		return errors.Trace(err)
	}
	w, err := store.Create(RankingFile)
	if err != nil {
		return errors.Trace(err)
	}
	if err = WriteRanking(w, candidates, best); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	return errors.Trace(w.Close())
}

// WriteRanking writes combinations by cross validated R², the test metrics of the best first.
func WriteRanking(w io.Writer, candidates []Candidate, best model.Score) error {
	var builder strings.Builder
	builder.WriteString("MODEL RANKING (by R²)\n")
	builder.WriteString(strings.Repeat("=", 50) + "\n\n")
	for i, c := range candidates {
		builder.WriteString(fmt.Sprintf("%d. %s %s: cv_r2=%.4f\n", i+1, artifact.ModelTypeRandomForest, c.Params.ToString(), c.CVScore))
		if i == 0 {
			builder.WriteString(fmt.Sprintf("   R2:   %.4f\n", best.R2))
			builder.WriteString(fmt.Sprintf("   RMSE: %.2f\n", best.RMSE))
			builder.WriteString(fmt.Sprintf("   MAPE: %.2f%%\n", best.MAPE))
		}
	}
	_, err := io.WriteString(w, builder.String())
	return err
}
