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

	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// RetrainReport is the outcome of an ETL run followed by training.
type RetrainReport struct {
	ETLOutput string  `json:"etl_output"`
	Report    *Report `json:"report"`
}

// Retrain runs the ETL over the raw listings then trains on the dataset it
// produced. Grid search is used if grid is set.
func (t *Trainer) Retrain(ctx context.Context, grid bool) (*RetrainReport, error) {
	etl := dataset.NewETL(dataset.NewLoader(t.cfg.Dataset), t.cfg.Dataset)
	path, err := etl.Run()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var report *Report
	if grid {
		report, err = t.TrainGrid(ctx)
	} else {
		report, err = t.TrainSimple(ctx)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("retrain price model",
		zap.String("etl_output", path),
		zap.String("bundle_id", report.BundleID),
		zap.Bool("grid", grid))
	return &RetrainReport{ETLOutput: path, Report: report}, nil
}
