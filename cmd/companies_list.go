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
	"strconv"

	"github.com/spf13/cobra"
)

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the company mappings",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadSettings()
		mappings := loadMappings(conf)

		if len(mappings.Companies) == 0 {
			fmt.Printf("No companies are mapped in %s; add one with `pvkpi companies add <ticker>`\n", conf.Paths.CompanyMappings)
			return
		}

		rows := make([][]string, 0, len(mappings.Companies))
		for _, company := range mappings.Companies {
			rows = append(rows, []string{
				company.SearchTicker,
				company.CompanyID,
				company.CSIN,
				company.Name,
				company.Sector,
				strconv.Itoa(len(mappings.KPIsFor(company.CompanyID))),
			})
		}

		fmt.Println(renderTable([]string{"Ticker", "Company ID", "CSIN", "Name", "Sector", "KPIs"}, rows))
	},
}

func init() {
	companiesCmd.AddCommand(companiesListCmd)
}
