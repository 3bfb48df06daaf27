// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
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
package cmd

import (
	"fmt"

	"github.com/gosimple/slug"
	"github.com/penny-vault/pvkpi/healthcheck"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Manage the healthchecks.io check that watches scheduled refreshes",
}

var monitorCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a check matching the refresh schedule and print its id",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadSettings()

		name := "pvkpi refresh"
		if len(args) > 0 {
			name = args[0]
		}

		checkID, err := healthcheck.Create(healthcheckConfig(conf), name, slug.Make(name), []string{"pvkpi", "kpi"},
			conf.Schedule.Cron, conf.Schedule.Timezone)
		if err != nil {
			log.Fatal().Err(err).Msg("creating healthcheck failed")
		}

		log.Info().Str("CheckID", checkID).Msg("healthcheck created; set healthchecks.check_id to enable pings")
		fmt.Println(checkID)
	},
}

var monitorPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause monitoring of scheduled refreshes",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadSettings()
		if err := healthcheck.Pause(healthcheckConfig(conf)); err != nil {
			log.Fatal().Err(err).Str("CheckID", conf.Healthchecks.CheckID).Msg("could not pause healthcheck")
		}
		log.Info().Str("CheckID", conf.Healthchecks.CheckID).Msg("healthcheck paused")
	},
}

var monitorResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume monitoring of scheduled refreshes",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadSettings()
		if err := healthcheck.Resume(healthcheckConfig(conf)); err != nil {
			log.Fatal().Err(err).Str("CheckID", conf.Healthchecks.CheckID).Msg("could not resume healthcheck")
		}
		log.Info().Str("CheckID", conf.Healthchecks.CheckID).Msg("healthcheck resumed")
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.AddCommand(monitorCreateCmd)
	monitorCmd.AddCommand(monitorPauseCmd)
	monitorCmd.AddCommand(monitorResumeCmd)
}
