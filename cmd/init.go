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
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pvkpi/config"
	"github.com/penny-vault/pvkpi/db"
	"github.com/penny-vault/pvkpi/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// savedConfig is the subset of the configuration written by init
type savedConfig struct {
	Canalyst struct {
		Token string `toml:"token"`
	} `toml:"canalyst"`
	Paths config.Paths `toml:"paths"`
	DB    struct {
		URL string `toml:"url,omitempty"`
	} `toml:"db"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather API and database configuration and setup schema",
	Long: `init walks through the settings pvkpi needs and saves them to the
config file. A PostgreSQL library is optional; when a connection string is
given the schema is created and the library name and owner are recorded.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		saved := savedConfig{}
		saved.Canalyst.Token = viper.GetString("canalyst.token")
		saved.Paths.CompanyMappings = viper.GetString("paths.company_mappings")
		saved.Paths.KPIMappings = viper.GetString("paths.kpi_mappings")
		saved.DB.URL = viper.GetString("db.url")

		myLibrary := &library.Library{}

		form := huh.NewForm(
			// Canalyst access
			huh.NewGroup(
				huh.NewInput().
					Title("Canalyst API token:").
					Password(true).
					Value(&saved.Canalyst.Token).
					Validate(func(token string) error {
						if token == "" {
							return config.ErrMissingToken
						}
						return nil
					}),

				huh.NewInput().
					Title("Where are company mappings kept?").
					Value(&saved.Paths.CompanyMappings),

				huh.NewInput().
					Title("Where are KPI mappings kept?").
					Value(&saved.Paths.KPIMappings),
			),

			// Get details about the database
			huh.NewGroup(
				huh.NewInput().
					Title("Optionally provide the DSN of a PostgreSQL database to store KPIs in (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
					Value(&saved.DB.URL).
					Validate(func(dsn string) error {
						if dsn == "" {
							return nil
						}
						_, err := pgx.ParseConfig(dsn)
						return err
					}),
			),
		)

		err := form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("error gathering settings")
		}

		if saved.DB.URL != "" {
			libraryForm := huh.NewForm(
				// Gather details about the library and who owns it
				huh.NewGroup(
					huh.NewInput().
						Title("Give the library a name:").
						Value(&myLibrary.Name),

					huh.NewInput().
						Title("Who owns the library?").
						Value(&myLibrary.Owner),
				),
			)

			if err := libraryForm.Run(); err != nil {
				log.Fatal().Err(err).Msg("error gathering library settings")
			}

			myLibrary.DBUrl = saved.DB.URL

			log.Info().Msg("creating database tables")

			if err := db.Migrate(myLibrary.DBUrl); err != nil {
				log.Fatal().Err(err).Msg("error running database migration")
			}

			log.Info().Msg("database tables created")
			log.Info().Msg("Saving library name and owner to database")

			// save library name and owner to database
			if err := myLibrary.Connect(ctx); err != nil {
				log.Fatal().Err(err).Msg("could not connect to database")
			}
			defer myLibrary.Close()

			if err := myLibrary.SaveDB(ctx); err != nil {
				log.Fatal().Err(err).Msg("error saving library settings to database")
			}
		}

		configFN := configFileName()
		if _, err := os.Stat(configFN); err == nil {
			overwrite := false
			confirmForm := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title(configFN + " already exists. Overwrite it?").
						Value(&overwrite),
				),
			)
			if err := confirmForm.Run(); err != nil {
				log.Fatal().Err(err).Msg("failed to create wizard")
			}
			if !overwrite {
				log.Info().Str("ConfigFile", configFN).Msg("leaving existing config file unchanged")
				return
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Fatal().Err(err).Str("ConfigFile", configFN).Msg("could not check config file")
		}

		log.Info().Str("ConfigFile", configFN).Msg("Saving configuration to config file")
		configData, err := toml.Marshal(saved)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		// the file holds an api token
		err = os.WriteFile(configFN, configData, 0600)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("pvkpi has been initialized")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
