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
package kpi_test

import (
	"github.com/penny-vault/pvkpi/kpi"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reshape", func() {
	It("returns an empty table for empty input", func() {
		table, report := kpi.Reshape(nil)
		Expect(table.Len()).To(Equal(0))
		Expect(report.Ok()).To(BeTrue())
		Expect(report.Err()).NotTo(HaveOccurred())
	})

	It("keeps exactly one entry per (entity, metric) pair", func() {
		records := []kpi.RawRecord{
			rec("ANF", "Revenue", "FY2023", "100"),
			rec("AAPL", "Revenue", "Q1-2024", "90"),
			rec("ANF", "Stores", "Q2-2024", "700"),
			rec("ANF", "Revenue", "FY2024", "120"),
			rec("AAPL", "Revenue", "Q2-2024", "95"),
			rec("ANF", "Revenue", "Q1-2024", "25"),
		}

		table, report := kpi.Reshape(records)
		Expect(report.Ok()).To(BeTrue())
		Expect(table.Keys()).To(Equal([]kpi.SeriesKey{
			{EntityID: "AAPL", MetricID: "Revenue"},
			{EntityID: "ANF", MetricID: "Revenue"},
			{EntityID: "ANF", MetricID: "Stores"},
		}))
		Expect(table.Entities()).To(Equal([]string{"AAPL", "ANF"}))
	})

	It("sorts out-of-order input by period", func() {
		table, _ := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "Q3-2024", "3"),
			rec("ANF", "Revenue", "Q1-2024", "1"),
			rec("ANF", "Revenue", "Q2-2024", "2"),
		})

		series, ok := table.Series(kpi.SeriesKey{EntityID: "ANF", MetricID: "Revenue"})
		Expect(ok).To(BeTrue())
		Expect(series.Quarterly).To(HaveLen(3))
		Expect(series.Quarterly[0].Period).To(Equal(kpi.FiscalQuarter(2024, 1)))
		Expect(series.Quarterly[2].Period).To(Equal(kpi.FiscalQuarter(2024, 3)))
	})

	It("resolves duplicate keys last-write-wins and reports the conflict", func() {
		table, report := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "FY2024", "100"),
			rec("ANF", "Revenue", "FY24", "120"),
		})

		Expect(valueAt(table, "ANF", "Revenue", kpi.FiscalYear(2024))).To(Equal(val("120")))
		Expect(report.Conflicts).To(HaveLen(1))
		Expect(report.Conflicts[0].PreviousIndex).To(Equal(0))
		Expect(report.Conflicts[0].CurrentIndex).To(Equal(1))
		Expect(report.Conflicts[0].Previous).To(Equal(val("100")))
		Expect(report.Ok()).To(BeTrue())
	})

	It("lets a later missing value overwrite an earlier one", func() {
		table, _ := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "FY2024", "100"),
			rec("ANF", "Revenue", "FY2024", ""),
		})

		Expect(valueAt(table, "ANF", "Revenue", kpi.FiscalYear(2024)).Valid).To(BeFalse())
	})

	It("skips malformed records without aborting the batch", func() {
		table, report := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "FY2023", "100"),
			rec("ANF", "Revenue", "H1-2024", "60"),
			rec("ANF", "Revenue", "2024", "110"),
			rec("ANF", "Revenue", "FY2024", "120"),
		})

		Expect(report.Ok()).To(BeFalse())
		Expect(report.Skipped).To(HaveLen(2))
		Expect(report.Count(kpi.ErrMalformedPeriod)).To(Equal(1))
		Expect(report.Count(kpi.ErrAmbiguousGranularity)).To(Equal(1))
		Expect(report.Skipped[0].Index).To(Equal(1))
		Expect(report.Err()).To(MatchError(kpi.ErrMalformedPeriod))

		Expect(valueAt(table, "ANF", "Revenue", kpi.FiscalYear(2024))).To(Equal(val("120")))
	})

	It("keeps pairs whose records were all skipped", func() {
		table, report := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "FY2024", "120"),
			rec("ANF", "Broken", "sometime", "1"),
		})

		Expect(report.Skipped).To(HaveLen(1))
		series, ok := table.Series(kpi.SeriesKey{EntityID: "ANF", MetricID: "Broken"})
		Expect(ok).To(BeTrue())
		Expect(series.Len()).To(Equal(0))
	})

	It("keeps annual and quarterly observations in separate sequences", func() {
		table, _ := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "FY2024", "400"),
			rec("ANF", "Revenue", "Q1-2024", "100"),
			rec("ANF", "Revenue", "Q2-2024", "100"),
		})

		series, _ := table.Series(kpi.SeriesKey{EntityID: "ANF", MetricID: "Revenue"})
		Expect(series.Annual).To(HaveLen(1))
		Expect(series.Quarterly).To(HaveLen(2))
	})

	It("fills gaps with missing markers rather than zeros", func() {
		table, _ := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "Q1-2024", "100"),
			rec("ANF", "Revenue", "Q4-2024", "130"),
		})

		series, _ := table.Series(kpi.SeriesKey{EntityID: "ANF", MetricID: "Revenue"})
		Expect(series.Quarterly).To(HaveLen(4))
		Expect(series.Quarterly[1].IsMissing()).To(BeTrue())
		Expect(series.Quarterly[2].IsMissing()).To(BeTrue())
		Expect(series.Quarterly[1].Period).To(Equal(kpi.FiscalQuarter(2024, 2)))
	})

	It("keeps a reported zero distinct from a missing value", func() {
		table, _ := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "FY2023", "0"),
			rec("ANF", "Revenue", "FY2024", ""),
		})

		Expect(valueAt(table, "ANF", "Revenue", kpi.FiscalYear(2023))).To(Equal(val("0")))
		Expect(valueAt(table, "ANF", "Revenue", kpi.FiscalYear(2024)).Valid).To(BeFalse())
	})

	It("aligns periods across entities by label", func() {
		table, _ := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "Q1-2024", "1"),
			rec("ANF", "Revenue", "Q2-2024", "2"),
			rec("AAPL", "Revenue", "Q3-24", "3"),
		})

		anf, _ := table.Series(kpi.SeriesKey{EntityID: "ANF", MetricID: "Revenue"})
		aapl, _ := table.Series(kpi.SeriesKey{EntityID: "AAPL", MetricID: "Revenue"})
		Expect(anf.Quarterly).To(HaveLen(3))
		Expect(aapl.Quarterly).To(HaveLen(3))
		for idx := range anf.Quarterly {
			Expect(anf.Quarterly[idx].Period).To(Equal(aapl.Quarterly[idx].Period))
		}
		Expect(aapl.Quarterly[0].IsMissing()).To(BeTrue())
		Expect(aapl.Quarterly[2].Value).To(Equal(val("3")))
	})

	It("skips an implausible year instead of stretching other entities", func() {
		table, report := kpi.Reshape([]kpi.RawRecord{
			rec("ANF", "Revenue", "Q1-2024", "1"),
			rec("AAPL", "Revenue", "Q1-0001", "2"),
			rec("AAPL", "Revenue", "Q2-2024", "3"),
		})

		Expect(report.Count(kpi.ErrMalformedPeriod)).To(Equal(1))
		Expect(report.Skipped[0].Record.EntityID).To(Equal("AAPL"))

		anf, _ := table.Series(kpi.SeriesKey{EntityID: "ANF", MetricID: "Revenue"})
		aapl, _ := table.Series(kpi.SeriesKey{EntityID: "AAPL", MetricID: "Revenue"})
		Expect(anf.Quarterly).To(HaveLen(2))
		Expect(aapl.Quarterly).To(HaveLen(2))
		Expect(anf.Quarterly[0].Period).To(Equal(kpi.FiscalQuarter(2024, 1)))
	})

	It("merges independently reshaped tables", func() {
		left, _ := kpi.Reshape([]kpi.RawRecord{rec("ANF", "Revenue", "FY2023", "100")})
		right, _ := kpi.Reshape([]kpi.RawRecord{rec("AAPL", "Revenue", "FY2024", "200")})

		left.Merge(right)
		left.Align()

		Expect(left.Len()).To(Equal(2))
		anf, _ := left.Series(kpi.SeriesKey{EntityID: "ANF", MetricID: "Revenue"})
		Expect(anf.Annual).To(HaveLen(2))
		Expect(anf.Annual[1].IsMissing()).To(BeTrue())

		aapl, _ := right.Series(kpi.SeriesKey{EntityID: "AAPL", MetricID: "Revenue"})
		Expect(aapl.Annual).To(HaveLen(1))
	})
})
