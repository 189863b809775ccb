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

	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/storage/audit"
	"github.com/araddon/dateparse"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var predictionsCommand = &cobra.Command{
	Use:   "predictions",
	Short: "Show the most recent audited predictions",
	Run: func(cmd *cobra.Command, args []string) {
		n, _ := cmd.Flags().GetInt("n")
		backend, err := audit.Open(globalConfig.Audit.Path)
		if err != nil {
			log.Logger().Fatal("failed to open audit log", zap.Error(err))
		}
		defer backend.Close()
		entries, err := backend.Last(n)
		if err != nil {
			log.Logger().Fatal("failed to read audit log", zap.Error(err))
		}
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			timestamp, err := dateparse.ParseAny(since)
			if err != nil {
				log.Logger().Fatal("failed to parse time", zap.String("since", since), zap.Error(err))
			}
			entries = audit.Since(entries, timestamp)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Time", "Method", "Price", "Type", "City", "Area")
		for _, entry := range entries {
			if err = table.Append([]string{
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.Method,
				fmt.Sprintf("%.2f", entry.Price),
				fmt.Sprint(entry.Features[dataset.ColumnPropertyType]),
				fmt.Sprint(entry.Features[dataset.ColumnCity]),
				fmt.Sprint(entry.Features[dataset.ColumnAreaM2]),
			}); err != nil {
				log.Logger().Fatal("failed to render predictions", zap.Error(err))
			}
		}
		if err = table.Render(); err != nil {
			log.Logger().Fatal("failed to render predictions", zap.Error(err))
		}
	},
}

func init() {
	predictionsCommand.Flags().IntP("n", "n", 10, "number of predictions")
	predictionsCommand.Flags().String("since", "", "drop predictions recorded before this time")
	cliCommand.AddCommand(predictionsCommand)
}
