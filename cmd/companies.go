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
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/penny-vault/pvkpi/canalyst"
	"github.com/penny-vault/pvkpi/csin"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/spf13/cobra"
)

var tickerType string

// companiesCmd represents the companies command
var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Discover Canalyst companies and maintain the company mappings",
	Long: `Companies are identified by the ticker they were searched with. The
company mappings file records the Canalyst company id and CSIN each ticker
resolved to; refresh only downloads KPIs for mapped companies.

Also see: kpis`,
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

func keyword(s string) string {
	return keywordStyle.Render(s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// renderTable lays rows out with a rounded border
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("63"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		Render()
}

func companyTable(companies []*canalyst.Company) string {
	rows := make([][]string, 0, len(companies))
	for _, company := range companies {
		rows = append(rows, []string{
			company.Ticker("Canalyst"),
			company.Ticker("Bloomberg"),
			company.CompanyID,
			company.Name,
			company.Sector,
			company.CountryCode,
			yesNo(company.InCoverage),
		})
	}
	return renderTable([]string{"Canalyst", "Bloomberg", "Company ID", "Name", "Sector", "Country", "Coverage"}, rows)
}

func matchTable(matches []*csin.Match) string {
	rows := make([][]string, 0, len(matches))
	for _, match := range matches {
		rows = append(rows, []string{
			match.SearchTicker,
			match.FoundVia,
			match.Company.CompanyID,
			match.CSIN,
			match.Company.Name,
			match.Company.Ticker("Canalyst"),
		})
	}
	return renderTable([]string{"Ticker", "Found Via", "Company ID", "CSIN", "Name", "Canalyst Ticker"}, rows)
}

// companySummary is the boxed description shown before changing the mappings
func companySummary(title string, company *mapping.Company) string {
	var sb strings.Builder

	fmt.Fprintf(&sb,
		"%s\n\nTicker: %s\nName: %s\nCompany ID: %s\nCSIN: %s\nCanalyst Ticker: %s\nBloomberg Ticker: %s\nSector: %s\nCountry: %s\nIn Coverage: %s",
		lipgloss.NewStyle().Bold(true).Render(title),
		keyword(company.SearchTicker),
		keyword(company.Name),
		keyword(company.CompanyID),
		keyword(company.CSIN),
		keyword(company.TickerCanalyst),
		keyword(company.TickerBloomberg),
		keyword(company.Sector),
		keyword(company.Country),
		keyword(yesNo(company.InCoverage)),
	)

	return lipgloss.NewStyle().
		Width(60).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(1, 2).
		Render(sb.String())
}

func init() {
	rootCmd.AddCommand(companiesCmd)
	companiesCmd.PersistentFlags().StringVarP(&tickerType, "type", "t", csin.Auto,
		fmt.Sprintf("ticker namespace: %s or %s", csin.Auto, strings.Join(csin.TickerTypes, ", ")))
}
