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
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	WorkbookFile = "kpis.xlsx"

	maxSheetName = 31
)

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")",
)

const (
	SummarySheet = "Summary"
	ConfigSheet  = "Config"
	ReadmeSheet  = "README"
)

var readmeLines = []string{
	"KPI Dashboard",
	"",
	"Sheets",
	"  Summary: refresh time and the companies included",
	"  <TICKER>: one sheet per company with its KPIs",
	"  Config: identifiers for every company in the workbook",
	"",
	"Layout",
	"  Rows list each KPI as Value, then QoQ % and YoY % where available",
	"  Columns run newest fiscal year first, then newest quarter first",
	"  Empty cells mean the period was not reported",
	"",
	"Refreshing",
	"  Run `pvkpi refresh` to fetch the latest data and rebuild this workbook",
}

// WriteXLSX writes a workbook that opens on a Summary sheet, followed by
// one sheet per company in the wide layout (metrics down the rows, newest
// annual periods then newest quarterly periods across the columns), then
// the Config and README sheets.
func WriteXLSX(dir string, ds *Dataset) (string, error) {
	fn := filepath.Join(dir, WorkbookFile)

	wb := excelize.NewFile()
	defer func() {
		if err := wb.Close(); err != nil {
			log.Error().Err(err).Msg("could not close workbook")
		}
	}()

	used := map[string]bool{
		strings.ToLower(SummarySheet): true,
		strings.ToLower(ConfigSheet):  true,
		strings.ToLower(ReadmeSheet):  true,
	}

	if err := wb.SetSheetName("Sheet1", SummarySheet); err != nil {
		return "", err
	}
	if err := writeSummary(wb, ds); err != nil {
		return "", err
	}

	for _, sheet := range ds.Sheets {
		name := uniqueSheetName(sheet.Company.SearchTicker, used)
		if _, err := wb.NewSheet(name); err != nil {
			return "", err
		}

		if err := writeSheet(wb, name, sheet); err != nil {
			return "", err
		}
	}

	if err := writeConfig(wb, ds); err != nil {
		return "", err
	}
	if err := writeReadme(wb); err != nil {
		return "", err
	}

	if err := wb.SaveAs(fn); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not save workbook")
		return "", err
	}

	log.Info().Int("NumSheets", len(wb.GetSheetList())).Str("FileName", fn).Msg("wrote workbook")
	return fn, nil
}

func writeSummary(wb *excelize.File, ds *Dataset) error {
	cells := map[string]interface{}{
		"A1": "KPI Dashboard Summary",
		"A3": "Last Refresh:",
		"B3": ds.Generated.Format("2006-01-02 15:04:05"),
		"A5": "Companies Included:",
	}
	for cell, value := range cells {
		if err := wb.SetCellValue(SummarySheet, cell, value); err != nil {
			return err
		}
	}

	for idx, company := range ds.Companies {
		row := []interface{}{company.SearchTicker, company.Name, company.Sector}
		if err := setRow(wb, SummarySheet, idx+6, row); err != nil {
			return err
		}
	}

	return nil
}

func writeConfig(wb *excelize.File, ds *Dataset) error {
	if _, err := wb.NewSheet(ConfigSheet); err != nil {
		return err
	}

	if err := wb.SetCellValue(ConfigSheet, "A1", "Company Configuration"); err != nil {
		return err
	}

	header := []interface{}{"Ticker", "CSIN", "Company ID", "Company Name", "Sector"}
	if err := setRow(wb, ConfigSheet, 3, header); err != nil {
		return err
	}

	for idx, company := range ds.Companies {
		row := []interface{}{company.SearchTicker, company.CSIN, company.CompanyID, company.Name, company.Sector}
		if err := setRow(wb, ConfigSheet, idx+4, row); err != nil {
			return err
		}
	}

	return nil
}

func writeReadme(wb *excelize.File) error {
	if _, err := wb.NewSheet(ReadmeSheet); err != nil {
		return err
	}

	for idx, line := range readmeLines {
		if line == "" {
			continue
		}
		if err := setRow(wb, ReadmeSheet, idx+1, []interface{}{line}); err != nil {
			return err
		}
	}

	return nil
}

func setRow(wb *excelize.File, sheet string, rowNum int, row []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return wb.SetSheetRow(sheet, cell, &row)
}

func writeSheet(wb *excelize.File, name string, sheet *Sheet) error {
	header := []interface{}{"KPI Code", "Description", "Units", "Metric"}
	for _, period := range sheet.Periods {
		header = append(header, period.ShortLabel())
	}

	if err := wb.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}

	for idx, line := range sheet.Lines {
		row := []interface{}{line.Code, line.Description, line.Units, line.MetricType}
		for _, value := range line.Values {
			if value.Valid {
				row = append(row, value.Decimal.InexactFloat64())
			} else {
				row = append(row, nil)
			}
		}

		if err := setRow(wb, name, idx+2, row); err != nil {
			return err
		}
	}

	return nil
}

func uniqueSheetName(ticker string, used map[string]bool) string {
	base := sheetNameReplacer.Replace(strings.TrimSpace(ticker))
	base = strings.Trim(base, "'")
	if base == "" {
		base = "Company"
	}
	base = truncate(base, maxSheetName)

	name := base
	for suffix := 2; used[strings.ToLower(name)]; suffix++ {
		tag := fmt.Sprintf(" (%d)", suffix)
		name = truncate(base, maxSheetName-len(tag)) + tag
	}

	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
