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

	"github.com/hako/durafmt"
	"github.com/penny-vault/pvkpi/backblaze"
	"github.com/penny-vault/pvkpi/config"
	"github.com/penny-vault/pvkpi/export"
	"github.com/penny-vault/pvkpi/refresh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	exportDir     string
	exportFormats []string
	upload        bool
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh [ticker...]",
	Short: "Download KPIs and write exports",
	Long: `The refresh sub-command downloads the mapped KPIs of each company from
its latest Canalyst model, computes growth rates and writes the configured
exports. If no tickers are provided every company in the company mappings is
refreshed. A company that fails is logged and skipped; the others continue.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		conf := loadConfig()

		runner := newRunner(cmd, conf)

		summary, err := runner.Run(ctx, args)
		if err != nil {
			log.Fatal().Err(err).Msg("refresh failed")
		}

		fmt.Printf("%s in %s\n", summary.Message(), durafmt.Parse(summary.Duration()).LimitFirstN(2).String())
		for _, fn := range summary.Files {
			fmt.Printf("  %s\n", fn)
		}
	},
}

// newRunner wires a refresh runner from the configuration
func newRunner(cmd *cobra.Command, conf *config.Config) *refresh.Runner {
	groups, err := conf.KPIGroups()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid metric groups")
	}

	runner := refresh.NewRunner(newClient(conf), loadMappings(conf), refresh.Options{
		Concurrency: conf.Refresh.Concurrency,
		Groups:      groups,
		Export: export.Options{
			Dir:              conf.Export.Dir,
			Formats:          conf.Export.Formats,
			AnnualPeriods:    conf.Export.AnnualPeriods,
			QuarterlyPeriods: conf.Export.QuarterlyPeriods,
		},
		ScaleMillions: conf.Export.ScaleMillions,
		Upload:        conf.Export.Upload,
		Backblaze: backblaze.Config{
			ApplicationID:  conf.Backblaze.ApplicationID,
			ApplicationKey: conf.Backblaze.ApplicationKey,
			Bucket:         conf.Backblaze.Bucket,
			Prefix:         conf.Backblaze.Prefix,
		},
	})

	if myLibrary := openLibrary(cmd, conf); myLibrary != nil {
		runner.WithLibrary(myLibrary)
	}

	return runner
}

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().StringVarP(&exportDir, "output", "o", "", "directory exports are written to")
	if err := viper.BindPFlag("export.dir", refreshCmd.Flags().Lookup("output")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for output failed")
	}

	refreshCmd.Flags().StringSliceVarP(&exportFormats, "format", "f", nil, "export formats (csv, json, parquet, xlsx)")
	if err := viper.BindPFlag("export.formats", refreshCmd.Flags().Lookup("format")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for format failed")
	}

	refreshCmd.Flags().BoolVar(&upload, "upload", false, "upload exports to backblaze")
	if err := viper.BindPFlag("export.upload", refreshCmd.Flags().Lookup("upload")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for upload failed")
	}
}
