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

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/trainer"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var etlCommand = &cobra.Command{
	Use:   "etl",
	Short: "Turn raw listings into a processed dataset",
	Run: func(cmd *cobra.Command, args []string) {
		etl := dataset.NewETL(dataset.NewLoader(globalConfig.Dataset), globalConfig.Dataset)
		path, err := etl.Run()
		if err != nil {
			log.Logger().Fatal("failed to run etl", zap.Error(err))
		}
		fmt.Println(path)
	},
}

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train the price model from the newest processed dataset",
	Run: func(cmd *cobra.Command, args []string) {
		grid, _ := cmd.Flags().GetBool("grid")
		t := newTrainer(grid)
		var (
			report *trainer.Report
			err    error
		)
		if grid {
			report, err = t.TrainGrid(cmd.Context())
		} else {
			report, err = t.TrainSimple(cmd.Context())
		}
		if err != nil {
			log.Logger().Fatal("failed to train price model", zap.Error(err))
		}
		printReport(report)
	},
}

var retrainCommand = &cobra.Command{
	Use:   "retrain",
	Short: "Run the ETL then train the price model",
	Run: func(cmd *cobra.Command, args []string) {
		grid, _ := cmd.Flags().GetBool("grid")
		result, err := newTrainer(grid).Retrain(cmd.Context(), grid)
		if err != nil {
			log.Logger().Fatal("failed to retrain price model", zap.Error(err))
		}
		fmt.Println(result.ETLOutput)
		printReport(result.Report)
	},
}

func init() {
	trainCommand.Flags().Bool("grid", false, "search hyper-parameters with cross validation")
	retrainCommand.Flags().Bool("grid", false, "search hyper-parameters with cross validation")
	cliCommand.AddCommand(etlCommand, trainCommand, retrainCommand)
}

// newTrainer creates a trainer that reports cross validation progress on a bar.
func newTrainer(grid bool) *trainer.Trainer {
	t := trainer.NewTrainer(globalConfig)
	if grid {
		bar := progressbar.Default(-1, "cross validation")
		t.SetProgress(func(done, total int) {
			bar.ChangeMax(total)
			_ = bar.Set(done)
			if done == total {
				_ = bar.Finish()
			}
		})
	}
	return t
}

func printReport(report *trainer.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Item", "Value")
	rows := [][]string{
		{"dataset", report.Dataset},
		{"bundle", report.BundleID},
		{"output", report.OutputDir},
		{"train/test", fmt.Sprintf("%d/%d", report.NumTrain, report.NumTest)},
		{"rmse", fmt.Sprintf("%.2f", report.Metrics.RMSE)},
		{"mae", fmt.Sprintf("%.2f", report.Metrics.MAE)},
		{"r2", fmt.Sprintf("%.4f", report.Metrics.R2)},
		{"mape", fmt.Sprintf("%.2f", report.Metrics.MAPE)},
	}
	if report.CVScore != nil {
		rows = append(rows, []string{"cv_r2", fmt.Sprintf("%.4f", *report.CVScore)})
	}
	names := make([]string, 0, len(report.BestParams))
	for name := range report.BestParams {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprint(report.BestParams[name])})
	}
	rows = append(rows, []string{"elapsed", report.Elapsed.String()})
	if err := table.Bulk(rows); err != nil {
		log.Logger().Fatal("failed to render report", zap.Error(err))
	}
	if err := table.Render(); err != nil {
		log.Logger().Fatal("failed to render report", zap.Error(err))
	}
}
