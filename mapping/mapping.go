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
package mapping

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

var (
	ErrDuplicate = errors.New("mapping already exists")
)

// Company is a row of company_mappings.csv
type Company struct {
	SearchTicker    string `csv:"search_ticker" json:"search_ticker"`
	FoundVia        string `csv:"found_via" json:"found_via"`
	CompanyID       string `csv:"company_id" json:"company_id"`
	CSIN            string `csv:"csin" json:"csin"`
	Name            string `csv:"name" json:"name"`
	TickerCanalyst  string `csv:"ticker_canalyst" json:"ticker_canalyst"`
	TickerBloomberg string `csv:"ticker_bloomberg" json:"ticker_bloomberg"`
	Sector          string `csv:"sector" json:"sector"`
	Country         string `csv:"country" json:"country"`
	InCoverage      bool   `csv:"in_coverage" json:"in_coverage"`
}

// KPI is a row of kpi_mappings.csv: one time series selected for a company
type KPI struct {
	CompanyID      string `csv:"company_id" json:"company_id"`
	TimeSeriesName string `csv:"time_series_name" json:"time_series_name"`
	TimeSeriesSlug string `csv:"time_series_slug" json:"time_series_slug"`
	Label          string `csv:"kpi_label" json:"kpi_label"`
	Units          string `csv:"units" json:"units"`
	Category       string `csv:"category" json:"category"`
	AllNames       string `csv:"all_names" json:"all_names"`
	Priority       int    `csv:"priority" json:"priority"`
}

// Mappings is the set of configured companies and their KPIs
type Mappings struct {
	Companies []*Company
	KPIs      []*KPI
}

// Load reads both mapping files. A missing KPI file is treated as empty.
func Load(companyFN, kpiFN string) (*Mappings, error) {
	companies, err := LoadCompanies(companyFN)
	if err != nil {
		return nil, err
	}

	kpis, err := LoadKPIs(kpiFN)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return &Mappings{
		Companies: companies,
		KPIs:      kpis,
	}, nil
}

// LoadCompanies reads company_mappings.csv
func LoadCompanies(fn string) ([]*Company, error) {
	companies := []*Company{}
	if err := readCSV(fn, &companies); err != nil {
		return nil, err
	}

	for _, company := range companies {
		company.SearchTicker = strings.ToUpper(strings.TrimSpace(company.SearchTicker))
	}

	return companies, nil
}

// SaveCompanies overwrites fn with companies
func SaveCompanies(fn string, companies []*Company) error {
	return writeCSV(fn, &companies)
}

// AppendCompany adds company to the mapping file, creating it if needed
func AppendCompany(fn string, company *Company) error {
	companies, err := LoadCompanies(fn)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	company.SearchTicker = strings.ToUpper(strings.TrimSpace(company.SearchTicker))
	for _, existing := range companies {
		if existing.SearchTicker == company.SearchTicker {
			return fmt.Errorf("%w: %s", ErrDuplicate, company.SearchTicker)
		}
	}

	companies = append(companies, company)
	log.Info().Str("Ticker", company.SearchTicker).Str("CompanyID", company.CompanyID).Str("FileName", fn).Msg("adding company mapping")
	return SaveCompanies(fn, companies)
}

// RemoveCompany deletes the mapping for ticker. It reports whether a row
// was removed.
func RemoveCompany(fn, ticker string) (bool, error) {
	companies, err := LoadCompanies(fn)
	if err != nil {
		return false, err
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	kept := make([]*Company, 0, len(companies))
	for _, company := range companies {
		if company.SearchTicker != ticker {
			kept = append(kept, company)
		}
	}

	if len(kept) == len(companies) {
		return false, nil
	}

	return true, SaveCompanies(fn, kept)
}

// LoadKPIs reads kpi_mappings.csv
func LoadKPIs(fn string) ([]*KPI, error) {
	kpis := []*KPI{}
	if err := readCSV(fn, &kpis); err != nil {
		return nil, err
	}
	return kpis, nil
}

// AppendKPIs adds kpis to the mapping file, skipping any (company,
// time series) pair already present. It returns the number added.
func AppendKPIs(fn string, kpis []*KPI) (int, error) {
	existing, err := LoadKPIs(fn)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	seen := make(map[string]bool, len(existing))
	for _, k := range existing {
		seen[k.key()] = true
	}

	added := 0
	for _, k := range kpis {
		if seen[k.key()] {
			continue
		}
		if k.Priority == 0 {
			k.Priority = 1
		}
		seen[k.key()] = true
		existing = append(existing, k)
		added++
	}

	if added == 0 {
		return 0, nil
	}

	return added, writeCSV(fn, &existing)
}

func (k *KPI) key() string {
	return k.CompanyID + "\x00" + k.TimeSeriesName
}

// Names returns every name the series is known by, primary name first
func (k *KPI) Names() []string {
	names := []string{k.TimeSeriesName}
	for _, name := range strings.Split(k.AllNames, "|") {
		name = strings.TrimSpace(name)
		if name != "" && name != k.TimeSeriesName {
			names = append(names, name)
		}
	}
	return names
}

// Company returns the mapping for ticker
func (m *Mappings) Company(ticker string) (*Company, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	for _, company := range m.Companies {
		if company.SearchTicker == ticker {
			return company, true
		}
	}
	return nil, false
}

// CompanyByID returns the mapping for a Canalyst company id
func (m *Mappings) CompanyByID(companyID string) (*Company, bool) {
	for _, company := range m.Companies {
		if company.CompanyID == companyID {
			return company, true
		}
	}
	return nil, false
}

// Select returns the companies for tickers, or every company when tickers
// is empty. Tickers without a mapping are returned in unknown.
func (m *Mappings) Select(tickers []string) (selected []*Company, unknown []string) {
	if len(tickers) == 0 {
		return m.Companies, nil
	}

	for _, ticker := range tickers {
		if company, ok := m.Company(ticker); ok {
			selected = append(selected, company)
		} else {
			unknown = append(unknown, ticker)
		}
	}
	return
}

// KPIsFor returns the KPIs configured for companyID ordered by priority
func (m *Mappings) KPIsFor(companyID string) []*KPI {
	kpis := make([]*KPI, 0)
	for _, k := range m.KPIs {
		if k.CompanyID == companyID {
			kpis = append(kpis, k)
		}
	}

	sort.SliceStable(kpis, func(i, j int) bool {
		return kpis[i].Priority < kpis[j].Priority
	})

	return kpis
}

// KPI finds the mapping of a time series for a company
func (m *Mappings) KPI(companyID, timeSeriesName string) (*KPI, bool) {
	for _, k := range m.KPIs {
		if k.CompanyID == companyID && k.TimeSeriesName == timeSeriesName {
			return k, true
		}
	}
	return nil, false
}

func readCSV(fn string, out interface{}) error {
	fh, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	if err := gocsv.UnmarshalFile(fh, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil
		}
		return fmt.Errorf("parse %s: %w", fn, err)
	}
	return nil
}

func writeCSV(fn string, in interface{}) error {
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return err
	}

	fh, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	return gocsv.MarshalFile(in, fh)
}
