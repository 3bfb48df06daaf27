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
package csin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alphadose/haxmap"
	"github.com/penny-vault/pvkpi/canalyst"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/rs/zerolog"
)

const (
	Auto = "auto"
)

var (
	ErrNotFound          = errors.New("no company found for ticker")
	ErrUnknownTickerType = errors.New("unknown ticker type")
)

var (
	// TickerTypes lists the ticker namespaces in the order "auto" tries them
	TickerTypes = []string{"canalyst", "bloomberg", "capiq", "factset", "thomson"}

	// Suffixes are appended to a bare ticker when it finds nothing
	Suffixes = []string{"_US", "_CN", "_CA", "_GB", " US", " CN", " CA", " GB"}
)

// Searcher is the subset of the Canalyst client the resolver needs
type Searcher interface {
	SearchCompanies(ctx context.Context, param, value string) ([]*canalyst.Company, error)
	PrimarySeries(ctx context.Context, companyID string) (*canalyst.ModelSeries, error)
}

// Match is a resolved company
type Match struct {
	SearchTicker string
	FoundVia     string
	Company      *canalyst.Company
	CSIN         string
}

// Mapping converts the match into a company_mappings row
func (match *Match) Mapping() *mapping.Company {
	return &mapping.Company{
		SearchTicker:    match.SearchTicker,
		FoundVia:        match.FoundVia,
		CompanyID:       match.Company.CompanyID,
		CSIN:            match.CSIN,
		Name:            match.Company.Name,
		TickerCanalyst:  match.Company.Ticker("Canalyst"),
		TickerBloomberg: match.Company.Ticker("Bloomberg"),
		Sector:          match.Company.Sector,
		Country:         match.Company.CountryCode,
		InCoverage:      match.Company.InCoverage,
	}
}

// Resolver maps tickers to Canalyst companies and CSINs. Results are
// cached and the resolver is safe for concurrent use.
type Resolver struct {
	client Searcher
	cache  *haxmap.Map[string, *Match]
}

func NewResolver(client Searcher) *Resolver {
	return &Resolver{
		client: client,
		cache:  haxmap.New[string, *Match](),
	}
}

// LoadCache seeds the cache from existing company mappings so known
// tickers never hit the API.
func (resolver *Resolver) LoadCache(companies []*mapping.Company) {
	for _, company := range companies {
		resolver.cache.Set(company.SearchTicker, &Match{
			SearchTicker: company.SearchTicker,
			FoundVia:     company.FoundVia,
			CSIN:         company.CSIN,
			Company: &canalyst.Company{
				CompanyID: company.CompanyID,
				Name:      company.Name,
				Tickers: map[string]string{
					"Canalyst":  company.TickerCanalyst,
					"Bloomberg": company.TickerBloomberg,
				},
				Sector:      company.Sector,
				CountryCode: company.Country,
				InCoverage:  company.InCoverage,
			},
		})
	}
}

func tickerParam(tickerType string) (string, error) {
	tickerType = strings.ToLower(tickerType)
	for _, t := range TickerTypes {
		if t == tickerType {
			return "ticker_" + t, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTickerType, tickerType)
}

// SearchByTicker searches one ticker namespace. If the bare ticker finds
// nothing each of the exchange suffixes is tried in turn.
func (resolver *Resolver) SearchByTicker(ctx context.Context, ticker, tickerType string) ([]*canalyst.Company, error) {
	param, err := tickerParam(tickerType)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("Ticker", ticker).Str("TickerType", tickerType).Logger()

	companies, err := resolver.client.SearchCompanies(ctx, param, ticker)
	if err != nil {
		return nil, err
	}

	if len(companies) > 0 {
		return companies, nil
	}

	for _, suffix := range Suffixes {
		companies, err = resolver.client.SearchCompanies(ctx, param, ticker+suffix)
		if err != nil {
			return nil, err
		}
		if len(companies) > 0 {
			logger.Debug().Str("Suffix", suffix).Msg("found company with suffix")
			return companies, nil
		}
	}

	return nil, nil
}

// Resolve finds the company for ticker. tickerType is one of TickerTypes
// or Auto, which tries each namespace in order.
func (resolver *Resolver) Resolve(ctx context.Context, ticker, tickerType string) (*Match, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if tickerType == "" {
		tickerType = Auto
	}

	if match, ok := resolver.cache.Get(ticker); ok {
		return match, nil
	}

	types := []string{tickerType}
	if strings.EqualFold(tickerType, Auto) {
		types = TickerTypes
	}

	for _, t := range types {
		companies, err := resolver.SearchByTicker(ctx, ticker, t)
		if err != nil {
			return nil, err
		}

		if len(companies) == 0 {
			continue
		}

		match := &Match{
			SearchTicker: ticker,
			FoundVia:     strings.ToLower(t),
			Company:      companies[0],
			CSIN:         resolver.csin(ctx, companies[0]),
		}

		resolver.cache.Set(ticker, match)
		return match, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
}

// ResolveAll resolves each ticker, collecting the ones that were not found.
// Errors other than not found abort the batch.
func (resolver *Resolver) ResolveAll(ctx context.Context, tickers []string, tickerType string) ([]*Match, []string, error) {
	found := make([]*Match, 0, len(tickers))
	notFound := make([]string, 0)

	for _, ticker := range tickers {
		match, err := resolver.Resolve(ctx, ticker, tickerType)
		switch {
		case errors.Is(err, ErrNotFound):
			notFound = append(notFound, ticker)
		case err != nil:
			return found, notFound, err
		default:
			found = append(found, match)
		}
	}

	return found, notFound, nil
}

// SearchByName tries an exact name match first and then a substring match
func (resolver *Resolver) SearchByName(ctx context.Context, name string) ([]*canalyst.Company, error) {
	companies, err := resolver.client.SearchCompanies(ctx, "name", name)
	if err != nil || len(companies) > 0 {
		return companies, err
	}
	return resolver.client.SearchCompanies(ctx, "name_contains", name)
}

// SearchBySector lists covered companies whose sector path contains sector
func (resolver *Resolver) SearchBySector(ctx context.Context, sector string) ([]*canalyst.Company, error) {
	companies, err := resolver.client.SearchCompanies(ctx, "sector_path_contains", sector)
	if err != nil {
		return nil, err
	}

	covered := make([]*canalyst.Company, 0, len(companies))
	for _, company := range companies {
		if company.InCoverage {
			covered = append(covered, company)
		}
	}
	return covered, nil
}

// csin returns the CSIN of the company's primary model series, or an empty
// string if the company has no model.
func (resolver *Resolver) csin(ctx context.Context, company *canalyst.Company) string {
	series, err := resolver.client.PrimarySeries(ctx, company.CompanyID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("CompanyID", company.CompanyID).Msg("could not find CSIN for company")
		return ""
	}
	return series.CSIN
}
