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
	"github.com/penny-vault/pvkpi/canalyst"
	"github.com/penny-vault/pvkpi/mapping"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("kpis", func() {
	series := []*canalyst.TimeSeries{
		{Names: []string{"MO_StoreCount_US"}, Description: "US Store Count", Category: "Operating Stats", Units: "Count"},
		{Names: []string{"MO_Revenue"}, Description: "Net Revenue", Category: "Income Statement", Units: "USD"},
		{Names: []string{"MO_Subscribers"}, Description: "Subscribers"},
	}

	It("filters by category and text", func() {
		Expect(filterTimeSeries(series, "", "")).To(HaveLen(3))
		Expect(filterTimeSeries(series, "operating", "")).To(ConsistOf(series[0]))
		Expect(filterTimeSeries(series, "", "revenue")).To(ConsistOf(series[1]))
		Expect(filterTimeSeries(series, "", "storecount")).To(ConsistOf(series[0]))
		Expect(filterTimeSeries(series, "income", "store")).To(BeEmpty())
	})

	It("groups series by category and marks mapped ones", func() {
		company := &mapping.Company{SearchTicker: "ANF", CompanyID: "C1", Name: "Abercrombie & Fitch"}
		mappings := &mapping.Mappings{KPIs: []*mapping.KPI{{CompanyID: "C1", TimeSeriesName: "MO_Revenue"}}}

		doc := timeSeriesMarkdown(company, &canalyst.EquityModel{Version: "Q2-2025"}, series, mappings)
		Expect(doc).To(HavePrefix("# ANF Abercrombie & Fitch\nModel Q2-2025. 3 time series.\n"))
		Expect(doc).To(ContainSubstring("## Income Statement\n- **Net Revenue** ✓ `MO_Revenue` (USD)\n"))
		Expect(doc).To(ContainSubstring("## Uncategorized\n- **Subscribers** `MO_Subscribers`\n"))
	})
})
