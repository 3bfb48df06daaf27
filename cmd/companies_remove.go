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

	"github.com/charmbracelet/huh"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var companiesRemoveCmd = &cobra.Command{
	Use:   "remove <ticker>...",
	Short: "Remove companies from the company mappings",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadSettings()
		mappings := loadMappings(conf)

		for _, ticker := range args {
			company, ok := mappings.Company(ticker)
			if !ok {
				fmt.Printf("'%s' is not in the company mappings\n", ticker)
				continue
			}

			confirmed := assumeYes
			if !confirmed {
				confirmForm := huh.NewForm(
					huh.NewGroup(
						huh.NewConfirm().
							Title(fmt.Sprintf("Are you sure you want to remove '%s' (%s)?", company.SearchTicker, company.Name)).
							Value(&confirmed),
					),
				)

				if err := confirmForm.Run(); err != nil {
					log.Fatal().Err(err).Msg("failed to create wizard")
				}
			}

			if !confirmed {
				fmt.Printf("Ok, we won't remove '%s'\n", company.SearchTicker)
				continue
			}

			removed, err := mapping.RemoveCompany(conf.Paths.CompanyMappings, company.SearchTicker)
			if err != nil {
				log.Fatal().Err(err).Str("FileName", conf.Paths.CompanyMappings).Msg("could not remove company mapping")
			}

			if removed {
				log.Info().Str("Ticker", company.SearchTicker).Msg("company removed")
			}
		}
	},
}

func init() {
	companiesCmd.AddCommand(companiesRemoveCmd)
	companiesRemoveCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}
