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
	"github.com/penny-vault/pvkpi/config"
	"github.com/penny-vault/pvkpi/healthcheck"
	"github.com/penny-vault/pvkpi/refresh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runImmediately bool

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule [ticker...]",
	Short: "Run refreshes on a schedule",
	Long: `schedule runs as a daemon and refreshes KPIs according to the cron
expression in schedule.cron (default "0 6 * * *") evaluated in
schedule.timezone (default America/Los_Angeles). When healthchecks.check_id
is set each run sends start, success and fail pings to healthchecks.io.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		conf := loadConfig()

		loc, err := conf.Location()
		if err != nil {
			log.Fatal().Err(err).Str("Timezone", conf.Schedule.Timezone).Msg("invalid schedule timezone")
		}

		scheduler, err := refresh.NewScheduler(newRunner(cmd, conf), conf.Schedule.Cron, loc, args)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create scheduler")
		}

		checkConf := healthcheckConfig(conf)
		if checkConf.Enabled() {
			scheduler.WithHealthcheck(healthcheck.New(checkConf))
		}

		if runImmediately {
			if _, err := scheduler.RunNow(ctx); err != nil {
				log.Error().Err(err).Msg("refresh failed")
			}
		}

		scheduler.Start(ctx)
		<-ctx.Done()
		scheduler.Stop()
	},
}

func healthcheckConfig(conf *config.Config) healthcheck.Config {
	return healthcheck.Config{
		CheckID: conf.Healthchecks.CheckID,
		BaseURL: conf.Healthchecks.BaseURL,
		APIURL:  conf.Healthchecks.APIURL,
		APIKey:  conf.Healthchecks.APIKey,
	}
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().BoolVar(&runImmediately, "now", false, "run a refresh before waiting for the schedule")
}
