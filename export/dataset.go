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
	"time"

	"github.com/penny-vault/pvkpi/kpi"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/shopspring/decimal"
)

const (
	MetricValue = "Value"
	MetricQoQ   = "QoQ Growth"
	MetricYoY   = "YoY Growth"

	PercentUnits  = "Percentage"
	MillionsUnits = " (Millions)"
)

var (
	million = decimal.NewFromInt(1_000_000)
	hundred = decimal.NewFromInt(100)
)

// Row is one observation in long format
type Row struct {
	Ticker         string  `csv:"ticker" json:"ticker" parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CompanyName    string  `csv:"company_name" json:"company_name" parquet:"name=company_name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CompanyID      string  `csv:"company_id" json:"company_id" parquet:"name=company_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	KPICode        string  `csv:"kpi_code" json:"kpi_code" parquet:"name=kpi_code, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	KPIDescription string  `csv:"kpi_description" json:"kpi_description" parquet:"name=kpi_description, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Period         string  `csv:"period" json:"period" parquet:"name=period, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	PeriodType     string  `csv:"period_type" json:"period_type" parquet:"name=period_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	MetricType     string  `csv:"metric_type" json:"metric_type" parquet:"name=metric_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Value          float64 `csv:"value" json:"value" parquet:"name=value, type=DOUBLE"`
	Units          string  `csv:"units" json:"units" parquet:"name=units, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	LastUpdated    string  `csv:"last_updated" json:"last_updated" parquet:"name=last_updated, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// MetricInfo is the display information for a series
type MetricInfo struct {
	Description string
	Units       string
}

// Catalog maps each series to its display information
type Catalog map[kpi.SeriesKey]MetricInfo

// Line is one row of the wide layout: a metric or one of its growth rates
// across the selected periods. Values are already scaled.
type Line struct {
	Code        string
	Description string
	Units       string
	MetricType  string
	Values      []decimal.NullDecimal
}

// Sheet is the wide layout of a single company
type Sheet struct {
	Company *mapping.Company
	Periods []kpi.Period
	Lines   []*Line
}

// Dataset is everything an export writes
type Dataset struct {
	Generated time.Time
	Companies []*mapping.Company
	KPIs      []*mapping.KPI
	Sheets    []*Sheet
	Rows      []*Row
}

// BuildOptions controls period selection and scaling
type BuildOptions struct {
	AnnualPeriods    int
	QuarterlyPeriods int
	ScaleMillions    bool
	Now              time.Time
}

// Build lays out table and derived for export. Companies are matched to
// entities by search ticker; entities without a mapping are exported with
// just their ticker.
func Build(table *kpi.CanonicalTable, derived *kpi.DerivedTable, catalog Catalog, mappings *mapping.Mappings, opts BuildOptions) *Dataset {
	if opts.AnnualPeriods == 0 {
		opts.AnnualPeriods = 5
	}
	if opts.QuarterlyPeriods == 0 {
		opts.QuarterlyPeriods = 12
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if mappings == nil {
		mappings = &mapping.Mappings{}
	}

	ds := &Dataset{
		Generated: opts.Now,
		KPIs:      mappings.KPIs,
	}

	lastUpdated := opts.Now.Format(time.RFC3339)

	for _, entity := range table.Entities() {
		company, ok := mappings.Company(entity)
		if !ok {
			company = &mapping.Company{SearchTicker: entity}
		}
		ds.Companies = append(ds.Companies, company)

		keys := entityKeys(table, entity)
		sheet := &Sheet{
			Company: company,
			Periods: selectPeriods(table, keys, opts.AnnualPeriods, opts.QuarterlyPeriods),
		}

		for _, key := range keys {
			series, _ := table.Series(key)
			info := catalog[key]
			if info.Description == "" {
				info.Description = key.MetricID
			}

			sheet.Lines = append(sheet.Lines, valueLine(series, sheet.Periods, info, opts.ScaleMillions))

			for _, kind := range []kpi.Kind{kpi.QoQ, kpi.YoY} {
				if line := growthLine(derived, key, kind, sheet.Periods, info); line != nil {
					sheet.Lines = append(sheet.Lines, line)
				}
			}
		}

		ds.Sheets = append(ds.Sheets, sheet)
		ds.Rows = append(ds.Rows, sheet.rows(lastUpdated)...)
	}

	return ds
}

func entityKeys(table *kpi.CanonicalTable, entity string) []kpi.SeriesKey {
	keys := make([]kpi.SeriesKey, 0)
	for _, key := range table.Keys() {
		if key.EntityID == entity {
			keys = append(keys, key)
		}
	}
	return keys
}

// selectPeriods returns the newest annual periods followed by the newest
// quarterly periods, each newest first.
func selectPeriods(table *kpi.CanonicalTable, keys []kpi.SeriesKey, annual, quarterly int) []kpi.Period {
	var annualAxis, quarterlyAxis []kpi.MetricPoint
	for _, key := range keys {
		series, _ := table.Series(key)
		if len(series.Annual) > len(annualAxis) {
			annualAxis = series.Annual
		}
		if len(series.Quarterly) > len(quarterlyAxis) {
			quarterlyAxis = series.Quarterly
		}
	}

	periods := make([]kpi.Period, 0, annual+quarterly)
	periods = appendNewest(periods, annualAxis, annual)
	periods = appendNewest(periods, quarterlyAxis, quarterly)
	return periods
}

func appendNewest(periods []kpi.Period, axis []kpi.MetricPoint, n int) []kpi.Period {
	for idx := len(axis) - 1; idx >= 0 && n > 0; idx-- {
		periods = append(periods, axis[idx].Period)
		n--
	}
	return periods
}

func valueLine(series *kpi.Series, periods []kpi.Period, info MetricInfo, scaleMillions bool) *Line {
	line := &Line{
		Code:        series.Key.MetricID,
		Description: info.Description,
		Units:       info.Units,
		MetricType:  MetricValue,
		Values:      make([]decimal.NullDecimal, len(periods)),
	}

	large := false
	for idx, period := range periods {
		point, ok := series.Lookup(period)
		if !ok {
			continue
		}
		line.Values[idx] = point.Value
		if point.Value.Valid && point.Value.Decimal.Abs().GreaterThanOrEqual(million) {
			large = true
		}
	}

	if scaleMillions && large {
		for idx, value := range line.Values {
			if value.Valid {
				line.Values[idx] = kpi.Known(value.Decimal.DivRound(million, 6))
			}
		}
		line.Units += MillionsUnits
	}

	return line
}

// growthLine returns nil when no selected period has a value
func growthLine(derived *kpi.DerivedTable, key kpi.SeriesKey, kind kpi.Kind, periods []kpi.Period, info MetricInfo) *Line {
	if derived == nil {
		return nil
	}

	line := &Line{
		Code:        key.MetricID,
		Description: info.Description,
		Units:       PercentUnits,
		MetricType:  MetricQoQ,
		Values:      make([]decimal.NullDecimal, len(periods)),
	}
	if kind == kpi.YoY {
		line.MetricType = MetricYoY
	}

	found := false
	for idx, period := range periods {
		metric, ok := derived.Lookup(key, kind, period)
		if !ok || !metric.Value.Valid {
			continue
		}
		line.Values[idx] = kpi.Known(metric.Value.Decimal.Mul(hundred).Round(4))
		found = true
	}

	if !found {
		return nil
	}
	return line
}

func (sheet *Sheet) rows(lastUpdated string) []*Row {
	rows := make([]*Row, 0)
	for _, line := range sheet.Lines {
		for idx, value := range line.Values {
			if !value.Valid {
				continue
			}

			period := sheet.Periods[idx]
			rows = append(rows, &Row{
				Ticker:         sheet.Company.SearchTicker,
				CompanyName:    sheet.Company.Name,
				CompanyID:      sheet.Company.CompanyID,
				KPICode:        line.Code,
				KPIDescription: line.Description,
				Period:         period.String(),
				PeriodType:     period.Granularity.String(),
				MetricType:     line.MetricType,
				Value:          value.Decimal.InexactFloat64(),
				Units:          line.Units,
				LastUpdated:    lastUpdated,
			})
		}
	}
	return rows
}
