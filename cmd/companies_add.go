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
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/penny-vault/pvkpi/csin"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var assumeYes bool

var companiesAddCmd = &cobra.Command{
	Use:   "add <ticker>",
	Short: "Resolve a ticker and add it to the company mappings",
	Long: `add looks up the Canalyst company for ticker, shows what was found
and, once confirmed, appends it to the company mappings file. Use
` + "`pvkpi kpis <ticker>`" + ` afterwards to select the KPIs to download.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		conf := loadConfig()
		mappings := loadMappings(conf)

		if existing, ok := mappings.Company(args[0]); ok {
			fmt.Println(companySummary("ALREADY MAPPED", existing))
			return
		}

		resolver := csin.NewResolver(newClient(conf))
		match, err := resolver.Resolve(ctx, args[0], tickerType)
		if errors.Is(err, csin.ErrNotFound) {
			fmt.Printf("No Canalyst company found for '%s'.\n", args[0])
			fmt.Println("Try `pvkpi companies search --name <company name>`")
			os.Exit(1)
		}
		if err != nil {
			log.Fatal().Err(err).Str("Ticker", args[0]).Msg("could not resolve ticker")
		}

		company := match.Mapping()
		fmt.Println(companySummary("NEW COMPANY", company))

		confirmed := assumeYes
		if !confirmed {
			confirmForm := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title("Add company?").
						Value(&confirmed),
				),
			)

			if err := confirmForm.Run(); err != nil {
				log.Fatal().Err(err).Msg("failed to create wizard")
			}
		}

		if !confirmed {
			log.Info().Msg("Not saving company")
			return
		}

		if err := mapping.AppendCompany(conf.Paths.CompanyMappings, company); err != nil {
			log.Fatal().Err(err).Str("FileName", conf.Paths.CompanyMappings).Msg("could not save company mapping")
		}

		log.Info().Str("Ticker", company.SearchTicker).Msg("company added")
	},
}

func init() {
	companiesCmd.AddCommand(companiesAddCmd)
	companiesAddCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}
