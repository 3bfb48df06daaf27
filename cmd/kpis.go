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
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/penny-vault/pvkpi/canalyst"
	"github.com/penny-vault/pvkpi/csin"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	kpiCategory  string
	kpiSearch    string
	kpiAll       bool
	kpiSelection bool
)

// kpisCmd represents the kpis command
var kpisCmd = &cobra.Command{
	Use:   "kpis <ticker>",
	Short: "List the time series in a company's latest model and choose the KPIs to download",
	Long: `kpis lists the time series Canalyst flags as key performance
indicators in the latest model of a company, grouped by category. Use --all
to include every time series of the model. With --select the series can be
picked interactively and are added to the KPI mappings.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		conf := loadConfig()
		mappings := loadMappings(conf)
		client := newClient(conf)

		company, ok := mappings.Company(args[0])
		if !ok {
			resolver := csin.NewResolver(client)
			match, err := resolver.Resolve(ctx, args[0], csin.Auto)
			if err != nil {
				log.Fatal().Err(err).Str("Ticker", args[0]).Msg("could not resolve ticker")
			}
			company = match.Mapping()
			log.Warn().Str("Ticker", company.SearchTicker).Msg("company is not mapped; add it with `pvkpi companies add` before refreshing")
		}

		model, err := client.LatestEquityModel(ctx, company.CompanyID)
		if err != nil {
			log.Fatal().Err(err).Str("CompanyID", company.CompanyID).Msg("could not find latest model")
		}

		var kpiOnly *bool
		if !kpiAll {
			onlyKPIs := true
			kpiOnly = &onlyKPIs
		}

		series, err := client.ListTimeSeries(ctx, company.CompanyID, model.Version, kpiOnly)
		if err != nil {
			log.Fatal().Err(err).Str("CompanyID", company.CompanyID).Msg("could not list time series")
		}

		series = filterTimeSeries(series, kpiCategory, kpiSearch)
		if len(series) == 0 {
			fmt.Println("No time series match")
			return
		}

		r, _ := glamour.NewTermRenderer(
			// detect background color and pick either the default dark or light theme
			glamour.WithAutoStyle(),
			// wrap output at specific width (default is 80)
			glamour.WithWordWrap(100),
		)

		out, err := r.Render(timeSeriesMarkdown(company, model, series, mappings))
		if err != nil {
			log.Fatal().Err(err).Msg("could not render time series document")
		}

		fmt.Print(out)

		if !kpiSelection {
			return
		}

		options := make([]huh.Option[int], 0, len(series))
		for idx, ts := range series {
			_, mapped := mappings.KPI(company.CompanyID, ts.Name())
			options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", ts.Description, ts.Name()), idx).Selected(mapped))
		}

		var selected []int
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewMultiSelect[int]().
					Title(fmt.Sprintf("Which KPIs should be downloaded for %s?", company.SearchTicker)).
					Options(options...).
					Value(&selected),
			),
		)

		if err := form.Run(); err != nil {
			log.Fatal().Err(err).Msg("failed to create wizard")
		}

		kpis := make([]*mapping.KPI, 0, len(selected))
		for priority, idx := range selected {
			ts := series[idx]
			kpis = append(kpis, &mapping.KPI{
				CompanyID:      company.CompanyID,
				TimeSeriesName: ts.Name(),
				TimeSeriesSlug: ts.Slug,
				Label:          ts.Description,
				Units:          ts.Units,
				Category:       ts.Category,
				AllNames:       strings.Join(ts.Names, "|"),
				Priority:       priority + 1,
			})
		}

		added, err := mapping.AppendKPIs(conf.Paths.KPIMappings, kpis)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", conf.Paths.KPIMappings).Msg("could not save kpi mappings")
		}

		log.Info().Int("NumAdded", added).Str("Ticker", company.SearchTicker).Msg("kpi mappings saved")
	},
}

// filterTimeSeries keeps series in category whose names or description
// contain search. Both filters are case-insensitive and ignored when empty.
func filterTimeSeries(series []*canalyst.TimeSeries, category, search string) []*canalyst.TimeSeries {
	category = strings.ToLower(category)
	search = strings.ToLower(search)

	kept := make([]*canalyst.TimeSeries, 0, len(series))
	for _, ts := range series {
		if category != "" && !strings.Contains(strings.ToLower(ts.Category), category) {
			continue
		}

		if search != "" {
			haystack := strings.ToLower(ts.Description + " " + strings.Join(ts.Names, " "))
			if !strings.Contains(haystack, search) {
				continue
			}
		}

		kept = append(kept, ts)
	}
	return kept
}

func timeSeriesMarkdown(company *mapping.Company, model *canalyst.EquityModel, series []*canalyst.TimeSeries, mappings *mapping.Mappings) string {
	builder := strings.Builder{}

	builder.WriteString(fmt.Sprintf("# %s %s\n", company.SearchTicker, company.Name))
	builder.WriteString(fmt.Sprintf("Model %s", model.Version))
	if !model.PublishedAt.IsZero() {
		builder.WriteString(fmt.Sprintf(", published %s", model.PublishedAt.Format("2006-01-02")))
	}
	builder.WriteString(fmt.Sprintf(". %d time series.\n", len(series)))

	byCategory := make(map[string][]*canalyst.TimeSeries)
	for _, ts := range series {
		category := ts.Category
		if category == "" {
			category = "Uncategorized"
		}
		byCategory[category] = append(byCategory[category], ts)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		builder.WriteString(fmt.Sprintf("\n## %s\n", category))
		for _, ts := range byCategory[category] {
			marker := ""
			if _, mapped := mappings.KPI(company.CompanyID, ts.Name()); mapped {
				marker = " ✓"
			}
			builder.WriteString(fmt.Sprintf("- **%s**%s `%s`", ts.Description, marker, ts.Name()))
			if ts.Units != "" {
				builder.WriteString(fmt.Sprintf(" (%s)", ts.Units))
			}
			builder.WriteString("\n")
		}
	}

	return builder.String()
}

func init() {
	rootCmd.AddCommand(kpisCmd)
	kpisCmd.Flags().StringVarP(&kpiCategory, "category", "c", "", "only show series in this category")
	kpisCmd.Flags().StringVarP(&kpiSearch, "search", "s", "", "only show series whose name or description contains this text")
	kpisCmd.Flags().BoolVarP(&kpiAll, "all", "a", false, "include series that are not flagged as KPIs")
	kpisCmd.Flags().BoolVar(&kpiSelection, "select", false, "choose series to add to the kpi mappings")
}
