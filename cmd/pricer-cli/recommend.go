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
	"strings"

	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/dataset"
	"github.com/alugaai/pricer/logics"
	"github.com/alugaai/pricer/model/pricing"
	"github.com/alugaai/pricer/storage/data"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recommendPersonalCommand = &cobra.Command{
	Use:   "recommend-personal user-id",
	Short: "Recommend properties similar to the favorites of a user and persist them",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n, _ := cmd.Flags().GetInt("n")
		database, err := data.Open(globalConfig.Database.DataStore, globalConfig.Database.TablePrefix)
		if err != nil {
			log.Logger().Fatal("failed to connect database", zap.String("data_store", log.RedactDBURL(globalConfig.Database.DataStore)), zap.Error(err))
		}
		defer database.Close()
		if err = database.Init(); err != nil {
			log.Logger().Fatal("failed to init database", zap.Error(err))
		}
		provider := pricing.NewProvider(globalConfig, dataset.NewLoader(globalConfig.Dataset), nil)
		recommender, err := logics.NewRecommender(provider, database, globalConfig)
		if err != nil {
			log.Logger().Fatal("failed to create recommender", zap.Error(err))
		}
		result, err := recommender.RecommendPersonal(cmd.Context(), args[0], n)
		if err != nil {
			log.Logger().Fatal("failed to recommend", zap.Error(err))
		}
		if result.Status == logics.StatusEmpty {
			fmt.Printf("%s has no favorites\n", args[0])
			return
		}
		fmt.Printf("average price of favorites: %.2f\n", result.AvgPrice)
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Title", "City", "Price", "Score", "Reasons")
		for _, item := range result.Results {
			if err = table.Append([]string{
				fmt.Sprint(item.ID),
				item.Title,
				item.City,
				fmt.Sprintf("%.2f", item.PredictedPrice),
				fmt.Sprintf("%.4f", item.Score),
				strings.Join(item.Reasons, "; "),
			}); err != nil {
				log.Logger().Fatal("failed to render recommendations", zap.Error(err))
			}
		}
		if err = table.Render(); err != nil {
			log.Logger().Fatal("failed to render recommendations", zap.Error(err))
		}
	},
}

func init() {
	recommendPersonalCommand.Flags().IntP("n", "n", logics.DefaultLimit, "number of recommendations")
	cliCommand.AddCommand(recommendPersonalCommand)
}
