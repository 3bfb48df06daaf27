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
package canalyst

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Company is a company covered by Canalyst
type Company struct {
	CompanyID            string
	Name                 string
	Tickers              map[string]string
	Sector               string
	CountryCode          string
	InCoverage           bool
	EquityModelSeriesURL string
}

// Ticker returns the company's ticker of the given kind (Canalyst,
// Bloomberg, ...) or an empty string.
func (company *Company) Ticker(kind string) string {
	for k, v := range company.Tickers {
		if strings.EqualFold(k, kind) {
			return v
		}
	}
	return ""
}

// ModelSeries is an equity model series of a company
type ModelSeries struct {
	ID        string
	CSIN      string
	IsPrimary bool
	Self      string
}

// EquityModel identifies one published version of a company model
type EquityModel struct {
	SeriesID    string
	CSIN        string
	Version     string
	PublishedAt time.Time
}

type equityModelResponse struct {
	CSIN         string `json:"csin"`
	PublishedAt  string `json:"published_at"`
	ModelVersion struct {
		Name string `json:"name"`
	} `json:"model_version"`
	EquityModelSeries struct {
		CSIN string `json:"csin"`
		Self string `json:"self"`
	} `json:"equity_model_series"`
}

func companyFromJSON(row gjson.Result) *Company {
	company := &Company{
		CompanyID:            row.Get("company_id").String(),
		Name:                 row.Get("name").String(),
		Tickers:              make(map[string]string),
		Sector:               row.Get("sector.path").String(),
		CountryCode:          row.Get("country_code").String(),
		InCoverage:           row.Get("is_in_coverage").Bool(),
		EquityModelSeriesURL: row.Get("equity_model_series_set").String(),
	}

	row.Get("tickers").ForEach(func(key, value gjson.Result) bool {
		company.Tickers[key.String()] = value.String()
		return true
	})

	return company
}

// SearchCompanies lists companies matching a single filter, e.g.
// ("ticker_bloomberg", "AAPL US") or ("name_contains", "Apple").
func (c *Client) SearchCompanies(ctx context.Context, param, value string) ([]*Company, error) {
	companies := make([]*Company, 0)
	params := map[string]string{
		param:       value,
		"page_size": "50",
	}

	err := c.paginate(ctx, "/companies/", params, func(row gjson.Result) error {
		companies = append(companies, companyFromJSON(row))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return companies, nil
}

// CompanyByTicker returns the company with the given Canalyst ticker
// (e.g. AAPL_US) or ErrNotFound.
func (c *Client) CompanyByTicker(ctx context.Context, ticker string) (*Company, error) {
	body, err := c.get(ctx, "/companies/", map[string]string{
		"ticker_canalyst": ticker,
		"page_size":       "1",
	})
	if err != nil {
		return nil, err
	}

	first := gjson.GetBytes(body, "results.0")
	if !first.Exists() {
		return nil, fmt.Errorf("%w: company with ticker %s", ErrNotFound, ticker)
	}

	return companyFromJSON(first), nil
}

// EquityModelSeries lists the model series of a company
func (c *Client) EquityModelSeries(ctx context.Context, companyID string) ([]*ModelSeries, error) {
	series := make([]*ModelSeries, 0, 1)
	err := c.paginate(ctx, "/equity-model-series/", map[string]string{"company_id": companyID}, func(row gjson.Result) error {
		self := row.Get("self").String()
		series = append(series, &ModelSeries{
			ID:        seriesIDFromURL(self),
			CSIN:      row.Get("csin").String(),
			IsPrimary: row.Get("is_primary").Bool(),
			Self:      self,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return series, nil
}

// PrimarySeries returns the primary model series of a company, or the
// first one if none is flagged primary. The series id is cached.
func (c *Client) PrimarySeries(ctx context.Context, companyID string) (*ModelSeries, error) {
	series, err := c.EquityModelSeries(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("%w: company id %s", ErrNoModelSeries, companyID)
	}

	primary := series[0]
	for _, s := range series {
		if s.IsPrimary {
			primary = s
			break
		}
	}

	c.seriesIDs.Set(companyID, primary.ID)
	return primary, nil
}

func (c *Client) seriesID(ctx context.Context, companyID string) (string, error) {
	if id, ok := c.seriesIDs.Get(companyID); ok {
		return id, nil
	}

	series, err := c.PrimarySeries(ctx, companyID)
	if err != nil {
		return "", err
	}

	return series.ID, nil
}

// LatestEquityModel returns the most recently published model of a company
func (c *Client) LatestEquityModel(ctx context.Context, companyID string) (*EquityModel, error) {
	seriesID, err := c.seriesID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, fmt.Sprintf("/equity-model-series/%s/equity-models/latest/", seriesID), nil)
	if err != nil {
		return nil, err
	}

	resp := equityModelResponse{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	model := &EquityModel{
		SeriesID: seriesID,
		CSIN:     resp.CSIN,
		Version:  resp.ModelVersion.Name,
	}

	if model.CSIN == "" {
		model.CSIN = resp.EquityModelSeries.CSIN
	}

	if resp.PublishedAt != "" {
		if published, err := time.Parse(time.RFC3339, resp.PublishedAt); err == nil {
			model.PublishedAt = published
		} else {
			zerolog.Ctx(ctx).Warn().Err(err).Str("PublishedAt", resp.PublishedAt).Msg("could not parse model publish date")
		}
	}

	if model.Version == "" {
		return nil, fmt.Errorf("%w: latest model version for company id %s", ErrNotFound, companyID)
	}

	return model, nil
}

// seriesIDFromURL extracts the id from a url such as
// https://mds.canalyst.com/api/equity-model-series/ABC123/
func seriesIDFromURL(u string) string {
	trimmed := strings.TrimRight(u, "/")
	if trimmed == "" {
		return ""
	}
	return path.Base(trimmed)
}

func boolParam(b bool) string {
	return strconv.FormatBool(b)
}
