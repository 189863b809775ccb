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

	"github.com/alugaai/pricer/base/log"
	"github.com/alugaai/pricer/cmd/version"
	"github.com/alugaai/pricer/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var globalConfig *config.Config

var cliCommand = &cobra.Command{
	Use:   "pricer-cli",
	Short: "CLI for the pricer price prediction and recommendation engine",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// setup logger
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		// load config
		configPath, _ := cmd.Flags().GetString("config")
		var err error
		if globalConfig, err = config.LoadConfig(configPath); err != nil {
			log.Logger().Fatal("failed to load config", zap.String("config", configPath), zap.Error(err))
		}
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show the version of pricer",
	// no config is needed
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.BuildInfo())
	},
}

func init() {
	log.AddFlags(cliCommand.PersistentFlags())
	cliCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	cliCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	cliCommand.AddCommand(versionCommand)
}

func main() {
	if err := cliCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
