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
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/penny-vault/pvkpi/canalyst"
	"github.com/penny-vault/pvkpi/config"
	"github.com/penny-vault/pvkpi/library"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/penny-vault/pvkpi/pkginfo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pvkpi",
	Short: "pvkpi downloads company KPIs from Canalyst and publishes them as tidy datasets",
	Long: `pvkpi is a command line utility for building and maintaining a
dataset of company key performance indicators (store counts, subscribers,
same-store sales, ...) sourced from Canalyst equity models.

Each refresh:

	* resolves the configured tickers to Canalyst companies
	* downloads the historical values of every mapped KPI from the latest model
	* places them on a common fiscal period axis, annual and quarterly
	* computes quarter-over-quarter and year-over-year growth
	* exports CSV, JSON, Parquet and XLSX files and optionally stores the
	  observations in a PostgreSQL library

Companies are configured in company_mappings.csv and their KPIs in
kpi_mappings.csv; use the companies and kpis sub-commands to maintain them.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			log.Fatal().Err(err).Str("LogLevel", logLevel).Msg("invalid log level")
		}
		zerolog.SetGlobalLevel(level)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pvkpi.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	rootCmd.PersistentFlags().String("db-url", "", "database connection string")
	if err := viper.BindPFlag("db.url", rootCmd.PersistentFlags().Lookup("db-url")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for db-url failed")
	}

	rootCmd.PersistentFlags().String("companies", "", "company mappings file")
	if err := viper.BindPFlag("paths.company_mappings", rootCmd.PersistentFlags().Lookup("companies")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for companies failed")
	}

	rootCmd.PersistentFlags().String("kpis", "", "kpi mappings file")
	if err := viper.BindPFlag("paths.kpi_mappings", rootCmd.PersistentFlags().Lookup("kpis")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for kpis failed")
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pvkpi" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".pvkpi")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("ConfigFN", viper.ConfigFileUsed()).Msg("Using config file")
	}
}

// loadSettings decodes the configuration without validating it, for
// commands that do not call the Canalyst API
func loadSettings() *config.Config {
	conf, err := config.Load(viper.GetViper())
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	return conf
}

// loadConfig decodes and validates the configuration or exits
func loadConfig() *config.Config {
	conf := loadSettings()
	if err := conf.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	return conf
}

func newClient(conf *config.Config) *canalyst.Client {
	client, err := canalyst.New(canalyst.Config{
		BaseURL:           conf.Canalyst.BaseURL,
		Token:             conf.Canalyst.Token,
		Timeout:           conf.Canalyst.Timeout,
		RequestsPerSecond: conf.Canalyst.RequestsPerSecond,
		MaxAttempts:       conf.Canalyst.MaxAttempts,
		UserAgent:         pkginfo.UserAgent(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not create canalyst client")
	}
	return client
}

func loadMappings(conf *config.Config) *mapping.Mappings {
	mappings, err := mapping.Load(conf.Paths.CompanyMappings, conf.Paths.KPIMappings)
	if err != nil {
		log.Fatal().Err(err).Str("CompanyMappings", conf.Paths.CompanyMappings).
			Str("KPIMappings", conf.Paths.KPIMappings).Msg("could not load mappings")
	}
	return mappings
}

// openLibrary connects to the library if a database is configured
func openLibrary(cmd *cobra.Command, conf *config.Config) *library.Library {
	if conf.DB.URL == "" {
		return nil
	}

	myLibrary, err := library.NewFromDB(cmd.Context(), conf.DB.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to library")
	}
	return myLibrary
}

func configFileName() string {
	if cfgFile != "" {
		return cfgFile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatal().Err(err).Msg("could not determine user home directory")
	}
	return filepath.Join(home, ".pvkpi.toml")
}
