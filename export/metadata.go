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
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pvkpi/mapping"
)

const (
	MetadataJSON = "metadata.json"
)

type PeriodCoverage struct {
	AnnualPeriods    int `json:"annual_periods"`
	QuarterlyPeriods int `json:"quarterly_periods"`
}

type Summary struct {
	TotalCompanies int            `json:"total_companies"`
	TotalKPIs      int            `json:"total_kpis"`
	DataPoints     int            `json:"data_points"`
	PeriodCoverage PeriodCoverage `json:"period_coverage"`
}

// Metadata describes an export for downstream dashboards
type Metadata struct {
	ExportTimestamp time.Time          `json:"export_timestamp"`
	Companies       []*mapping.Company `json:"companies"`
	KPIs            []*mapping.KPI     `json:"kpis"`
	Summary         Summary            `json:"summary"`
}

// NewMetadata summarizes ds
func NewMetadata(ds *Dataset, annual, quarterly int) *Metadata {
	companies := ds.Companies
	if companies == nil {
		companies = []*mapping.Company{}
	}
	kpis := ds.KPIs
	if kpis == nil {
		kpis = []*mapping.KPI{}
	}

	return &Metadata{
		ExportTimestamp: ds.Generated,
		Companies:       companies,
		KPIs:            kpis,
		Summary: Summary{
			TotalCompanies: len(companies),
			TotalKPIs:      len(kpis),
			DataPoints:     len(ds.Rows),
			PeriodCoverage: PeriodCoverage{
				AnnualPeriods:    annual,
				QuarterlyPeriods: quarterly,
			},
		},
	}
}

// WriteMetadata writes metadata.json to dir
func WriteMetadata(dir string, meta *Metadata) (string, error) {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}

	fn := filepath.Join(dir, MetadataJSON)
	return fn, os.WriteFile(fn, data, 0644)
}
