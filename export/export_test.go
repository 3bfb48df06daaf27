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
package export_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/goccy/go-json"
	"github.com/penny-vault/pvkpi/export"
	"github.com/penny-vault/pvkpi/kpi"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func rec(entity, metric, period, value string) kpi.RawRecord {
	record := kpi.RawRecord{EntityID: entity, MetricID: metric, PeriodLabel: period}
	if value != "" {
		record.Value = kpi.Known(decimal.RequireFromString(value))
	}
	return record
}

func find(rows []*export.Row, ticker, code, metricType, period string) *export.Row {
	for _, row := range rows {
		if row.Ticker == ticker && row.KPICode == code && row.MetricType == metricType && row.Period == period {
			return row
		}
	}
	return nil
}

var _ = Describe("Export", func() {
	var (
		ds  *export.Dataset
		now time.Time
	)

	BeforeEach(func() {
		table, report := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "MO_Revenue", "FY2023", "4000000"),
			rec("ANF", "MO_Revenue", "FY2024", "5000000"),
			rec("ANF", "MO_Stores", "Q1-2024", "700"),
			rec("ANF", "MO_Stores", "Q2-2024", ""),
			rec("ANF", "MO_Stores", "Q3-2024", "735"),
			rec("AAPL", "MO_iPhone", "Q1-2024", "100"),
			rec("AAPL", "MO_iPhone", "Q2-2024", "110"),
		})
		Expect(report.Ok()).To(BeTrue())

		catalog := export.Catalog{
			{EntityID: "ANF", MetricID: "MO_Revenue"}: {Description: "Net sales", Units: "USD"},
			{EntityID: "ANF", MetricID: "MO_Stores"}:  {Description: "Store count", Units: "Count"},
		}

		mappings := &mapping.Mappings{
			Companies: []*mapping.Company{{SearchTicker: "ANF", CompanyID: "Q7B5AH", Name: "Abercrombie & Fitch Co"}},
			KPIs:      []*mapping.KPI{{CompanyID: "Q7B5AH", TimeSeriesName: "MO_Revenue"}},
		}

		now = time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
		ds = export.Build(table, kpi.Derive(table), catalog, mappings, export.BuildOptions{
			ScaleMillions: true,
			Now:           now,
		})
	})

	It("orders periods newest annual first, then newest quarterly", func() {
		Expect(ds.Sheets).To(HaveLen(2))
		anf := ds.Sheets[1]
		Expect(anf.Company.Name).To(Equal("Abercrombie & Fitch Co"))

		labels := make([]string, len(anf.Periods))
		for idx, period := range anf.Periods {
			labels[idx] = period.ShortLabel()
		}
		Expect(labels).To(Equal([]string{"FY24", "FY23", "Q3-24", "Q2-24", "Q1-24"}))
	})

	It("limits the number of periods", func() {
		table, _ := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "MO_Revenue", "FY2019", "1"),
			rec("ANF", "MO_Revenue", "FY2024", "2"),
		})
		small := export.Build(table, nil, nil, nil, export.BuildOptions{AnnualPeriods: 3})
		Expect(small.Sheets[0].Periods).To(Equal([]kpi.Period{kpi.FiscalYear(2024), kpi.FiscalYear(2023), kpi.FiscalYear(2022)}))
		Expect(small.Rows).To(HaveLen(1))
	})

	It("omits missing values instead of writing zeros", func() {
		Expect(ds.Rows).To(HaveLen(8))
		Expect(find(ds.Rows, "ANF", "MO_Stores", export.MetricValue, "Q2-2024")).To(BeNil())
		for _, row := range ds.Rows {
			Expect(row.LastUpdated).To(Equal("2025-03-01T06:00:00Z"))
		}
	})

	It("scales large metrics to millions", func() {
		row := find(ds.Rows, "ANF", "MO_Revenue", export.MetricValue, "FY2024")
		Expect(row).NotTo(BeNil())
		Expect(row.Value).To(Equal(5.0))
		Expect(row.Units).To(Equal("USD (Millions)"))
		Expect(row.KPIDescription).To(Equal("Net sales"))
		Expect(row.PeriodType).To(Equal("Annual"))

		stores := find(ds.Rows, "ANF", "MO_Stores", export.MetricValue, "Q3-2024")
		Expect(stores.Value).To(Equal(735.0))
		Expect(stores.Units).To(Equal("Count"))
		Expect(stores.PeriodType).To(Equal("Quarterly"))
	})

	It("expresses growth as a percentage", func() {
		yoy := find(ds.Rows, "ANF", "MO_Revenue", export.MetricYoY, "FY2024")
		Expect(yoy).NotTo(BeNil())
		Expect(yoy.Value).To(Equal(25.0))
		Expect(yoy.Units).To(Equal(export.PercentUnits))

		qoq := find(ds.Rows, "AAPL", "MO_iPhone", export.MetricQoQ, "Q2-2024")
		Expect(qoq.Value).To(Equal(10.0))
		Expect(qoq.KPIDescription).To(Equal("MO_iPhone"))
		Expect(qoq.CompanyName).To(BeEmpty())
	})

	It("drops growth lines with no values", func() {
		anf := ds.Sheets[1]
		types := make([]string, 0)
		for _, line := range anf.Lines {
			types = append(types, line.Code+"/"+line.MetricType)
		}
		Expect(types).To(Equal([]string{"MO_Revenue/Value", "MO_Revenue/YoY Growth", "MO_Stores/Value"}))
	})

	Context("when writing files", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("writes every format", func() {
			files, err := export.Write(ds, export.Options{
				Dir:              dir,
				Formats:          []string{"csv", "json", "parquet", "xlsx"},
				AnnualPeriods:    5,
				QuarterlyPeriods: 12,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(ConsistOf(
				filepath.Join(dir, "AAPL.csv"),
				filepath.Join(dir, "ANF.csv"),
				filepath.Join(dir, export.ConsolidatedCSV),
				filepath.Join(dir, export.MetadataJSON),
				filepath.Join(dir, export.ParquetFile),
				filepath.Join(dir, export.WorkbookFile),
			))

			info, err := os.Stat(filepath.Join(dir, export.ParquetFile))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Size()).To(BeNumerically(">", 0))
		})

		It("writes long csv files", func() {
			_, err := export.WriteCSV(dir, ds)
			Expect(err).NotTo(HaveOccurred())

			fh, err := os.Open(filepath.Join(dir, "ANF.csv"))
			Expect(err).NotTo(HaveOccurred())
			defer fh.Close()

			rows := []*export.Row{}
			Expect(gocsv.UnmarshalFile(fh, &rows)).To(Succeed())
			Expect(rows).To(HaveLen(5))
			Expect(rows[0].CompanyID).To(Equal("Q7B5AH"))

			all, err := os.ReadFile(filepath.Join(dir, export.ConsolidatedCSV))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(all)).To(HavePrefix("ticker,company_name,company_id,kpi_code,kpi_description,period,period_type,metric_type,value,units,last_updated\n"))
			Expect(string(all)).NotTo(ContainSubstring("NaN"))
		})

		It("writes metadata", func() {
			fn, err := export.WriteMetadata(dir, export.NewMetadata(ds, 5, 12))
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(fn)
			Expect(err).NotTo(HaveOccurred())

			meta := export.Metadata{}
			Expect(json.Unmarshal(data, &meta)).To(Succeed())
			Expect(meta.ExportTimestamp).To(BeTemporally("==", now))
			Expect(meta.Summary.TotalCompanies).To(Equal(2))
			Expect(meta.Summary.TotalKPIs).To(Equal(1))
			Expect(meta.Summary.DataPoints).To(Equal(8))
			Expect(meta.Summary.PeriodCoverage.QuarterlyPeriods).To(Equal(12))
		})

		It("writes a summary, one sheet per company, config and readme", func() {
			fn, err := export.WriteXLSX(dir, ds)
			Expect(err).NotTo(HaveOccurred())

			wb, err := excelize.OpenFile(fn)
			Expect(err).NotTo(HaveOccurred())
			defer wb.Close()

			Expect(wb.GetSheetList()).To(Equal([]string{"Summary", "AAPL", "ANF", "Config", "README"}))

			summary, err := wb.GetRows("Summary")
			Expect(err).NotTo(HaveOccurred())
			Expect(summary[0]).To(Equal([]string{"KPI Dashboard Summary"}))
			Expect(summary[2]).To(Equal([]string{"Last Refresh:", "2025-03-01 06:00:00"}))
			Expect(summary[4]).To(Equal([]string{"Companies Included:"}))
			Expect(summary[5][0]).To(Equal("AAPL"))
			Expect(summary[6][:2]).To(Equal([]string{"ANF", "Abercrombie & Fitch Co"}))

			config, err := wb.GetRows("Config")
			Expect(err).NotTo(HaveOccurred())
			Expect(config[0]).To(Equal([]string{"Company Configuration"}))
			Expect(config[2]).To(Equal([]string{"Ticker", "CSIN", "Company ID", "Company Name", "Sector"}))
			Expect(config[4][:4]).To(Equal([]string{"ANF", "", "Q7B5AH", "Abercrombie & Fitch Co"}))

			readme, err := wb.GetRows("README")
			Expect(err).NotTo(HaveOccurred())
			Expect(readme[0]).To(Equal([]string{"KPI Dashboard"}))

			rows, err := wb.GetRows("ANF")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[0]).To(Equal([]string{"KPI Code", "Description", "Units", "Metric", "FY24", "FY23", "Q3-24", "Q2-24", "Q1-24"}))
			Expect(rows[1][:6]).To(Equal([]string{"MO_Revenue", "Net sales", "USD (Millions)", "Value", "5", "4"}))
		})

		It("reports unknown formats but still writes the rest", func() {
			files, err := export.Write(ds, export.Options{Dir: dir, Formats: []string{"pdf", "json"}})
			Expect(err).To(MatchError(export.ErrUnknownFormat))
			Expect(files).To(ConsistOf(filepath.Join(dir, export.MetadataJSON)))
		})
	})
})
