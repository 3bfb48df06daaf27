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
	"strings"

	"github.com/penny-vault/pvkpi/csin"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	searchByName   bool
	searchBySector bool
	saveMatches    bool
)

var companiesSearchCmd = &cobra.Command{
	Use:   "search <ticker|name|sector>...",
	Short: "Find the Canalyst company and CSIN for tickers",
	Long: `search resolves each ticker to a Canalyst company. Tickers are looked
up in each ticker namespace in turn (unless --type is given) and, when the
bare ticker finds nothing, with common exchange suffixes such as _US and
" CN". With --name or --sector the arguments are treated as company names
or sector paths instead.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		conf := loadConfig()
		resolver := csin.NewResolver(newClient(conf))

		if searchByName || searchBySector {
			query := strings.Join(args, " ")
			search := resolver.SearchByName
			if searchBySector {
				search = resolver.SearchBySector
			}

			companies, err := search(ctx, query)
			if err != nil {
				log.Fatal().Err(err).Str("Query", query).Msg("company search failed")
			}

			if len(companies) == 0 {
				fmt.Printf("No companies match '%s'\n", query)
				return
			}

			fmt.Println(companyTable(companies))
			return
		}

		matches, notFound, err := resolver.ResolveAll(ctx, args, tickerType)
		if err != nil {
			log.Fatal().Err(err).Msg("company search failed")
		}

		if len(matches) > 0 {
			fmt.Println(matchTable(matches))
		}

		if len(notFound) > 0 {
			fmt.Printf("Not found: %s\n", strings.Join(notFound, ", "))
		}

		if !saveMatches {
			return
		}

		added := 0
		for _, match := range matches {
			err := mapping.AppendCompany(conf.Paths.CompanyMappings, match.Mapping())
			switch {
			case errors.Is(err, mapping.ErrDuplicate):
				log.Info().Str("Ticker", match.SearchTicker).Msg("company is already mapped")
			case err != nil:
				log.Fatal().Err(err).Str("FileName", conf.Paths.CompanyMappings).Msg("could not save company mapping")
			default:
				added++
			}
		}

		log.Info().Int("NumAdded", added).Str("FileName", conf.Paths.CompanyMappings).Msg("saved company mappings")
	},
}

func init() {
	companiesCmd.AddCommand(companiesSearchCmd)
	companiesSearchCmd.Flags().BoolVar(&searchByName, "name", false, "search by company name")
	companiesSearchCmd.Flags().BoolVar(&searchBySector, "sector", false, "search by sector path")
	companiesSearchCmd.Flags().BoolVar(&saveMatches, "save", false, "add matches to the company mappings")
	companiesSearchCmd.MarkFlagsMutuallyExclusive("name", "sector", "save")
}
