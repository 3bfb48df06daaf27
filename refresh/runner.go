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
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hako/durafmt"
	"github.com/penny-vault/pvkpi/backblaze"
	"github.com/penny-vault/pvkpi/canalyst"
	"github.com/penny-vault/pvkpi/export"
	"github.com/penny-vault/pvkpi/kpi"
	"github.com/penny-vault/pvkpi/library"
	"github.com/penny-vault/pvkpi/mapping"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoCompanies    = errors.New("no companies selected")
	ErrNoKPIs         = errors.New("no kpis mapped for company")
	ErrAllFailed      = errors.New("every company failed to refresh")
	ErrAlreadyRunning = errors.New("refresh already in progress")
)

// Fetcher is the part of the Canalyst client a refresh needs
type Fetcher interface {
	LatestEquityModel(ctx context.Context, companyID string) (*canalyst.EquityModel, error)
	HistoricalPeriods(ctx context.Context, companyID, version string) ([]*canalyst.HistoricalPeriod, error)
	HistoricalDataPoints(ctx context.Context, companyID, version, timeSeriesName string) ([]*canalyst.DataPoint, error)
}

// Options controls a refresh
type Options struct {
	Concurrency   int
	Groups        []kpi.Group
	Export        export.Options
	ScaleMillions bool
	Upload        bool
	Backblaze     backblaze.Config
}

// CompanyFailure records why a company could not be refreshed
type CompanyFailure struct {
	Ticker string
	Err    error
}

// RunSummary describes the outcome of one refresh
type RunSummary struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Companies     int
	Refreshed     []string
	Failed        []CompanyFailure
	Unknown       []string
	Series        int
	Observations  int
	Report        *kpi.Report
	Files         []string
	SkippedGroups []string
}

// Duration of the run
func (summary *RunSummary) Duration() time.Duration {
	return summary.FinishedAt.Sub(summary.StartedAt)
}

// Status classifies the run the same way the library does
func (summary *RunSummary) Status() string {
	switch {
	case len(summary.Refreshed) == 0:
		return library.RunFailed
	case len(summary.Failed) > 0:
		return library.RunPartial
	default:
		return library.RunSuccess
	}
}

// Message is a one-line description of the run suitable for a ping body
func (summary *RunSummary) Message() string {
	msg := fmt.Sprintf("%d of %d companies refreshed, %d series, %d skipped records, %d conflicts",
		len(summary.Refreshed), summary.Companies, summary.Series,
		len(summary.Report.Skipped), len(summary.Report.Conflicts))

	if len(summary.Failed) == 0 {
		return msg
	}

	failed := make([]string, 0, len(summary.Failed))
	for _, failure := range summary.Failed {
		failed = append(failed, fmt.Sprintf("%s: %s", failure.Ticker, failure.Err))
	}
	return msg + "; failed " + strings.Join(failed, "; ")
}

// Runner refreshes the configured companies
type Runner struct {
	fetcher  Fetcher
	mappings *mapping.Mappings
	opts     Options
	library  *library.Library
}

// companyResult is the output of a single company's fetch
type companyResult struct {
	company *mapping.Company
	table   *kpi.CanonicalTable
	report  *kpi.Report
	err     error
}

// NewRunner creates a runner. Concurrency below one is raised to one.
func NewRunner(fetcher Fetcher, mappings *mapping.Mappings, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Runner{
		fetcher:  fetcher,
		mappings: mappings,
		opts:     opts,
	}
}

// WithLibrary persists observations and run records to myLibrary
func (runner *Runner) WithLibrary(myLibrary *library.Library) *Runner {
	runner.library = myLibrary
	return runner
}

// Run refreshes tickers, or every mapped company when tickers is empty. A
// company that fails is logged and recorded in the summary; the others
// continue. An error is returned only when nothing could be refreshed or
// the results could not be written.
func (runner *Runner) Run(ctx context.Context, tickers []string) (*RunSummary, error) {
	run := library.NewRun()
	summary := &RunSummary{
		RunID:     run.ID.String(),
		StartedAt: run.StartedAt,
		Report:    &kpi.Report{},
	}

	logger := log.With().Str("RunID", summary.RunID).Logger()
	ctx = logger.WithContext(ctx)

	companies, unknown := runner.mappings.Select(tickers)
	summary.Unknown = unknown
	summary.Companies = len(companies)

	for _, ticker := range unknown {
		logger.Warn().Str("Ticker", ticker).Msg("ticker is not in the company mappings; skipping")
	}

	if len(companies) == 0 {
		summary.FinishedAt = time.Now()
		return summary, ErrNoCompanies
	}

	if runner.library != nil {
		if err := runner.library.StartRun(ctx, run); err != nil {
			logger.Error().Err(err).Msg("could not record start of run")
			return summary, err
		}
	}

	logger.Info().Int("NumCompanies", len(companies)).Int("Concurrency", runner.opts.Concurrency).Msg("starting refresh")

	results := runner.fetchAll(ctx, companies)

	table := kpi.NewCanonicalTable()
	companyIDs := make(map[string]string, len(results))
	for _, result := range results {
		if result.err != nil {
			summary.Failed = append(summary.Failed, CompanyFailure{Ticker: result.company.SearchTicker, Err: result.err})
			continue
		}

		summary.Refreshed = append(summary.Refreshed, result.company.SearchTicker)
		summary.Report.Merge(result.report)
		companyIDs[result.company.SearchTicker] = result.company.CompanyID
		table.Merge(result.table)
	}

	var err error
	if len(summary.Refreshed) == 0 {
		err = ErrAllFailed
	} else {
		err = runner.finish(ctx, run, table, companyIDs, summary)
	}

	summary.FinishedAt = time.Now()

	if runner.library != nil {
		run.FinishedAt = summary.FinishedAt
		run.Status = summary.Status()
		if err != nil {
			run.Status = library.RunFailed
		}
		run.Companies = summary.Companies
		run.Failed = len(summary.Failed)
		run.Observations = summary.Observations
		run.Skipped = len(summary.Report.Skipped)
		run.Conflicts = len(summary.Report.Conflicts)
		run.Message = summary.Message()

		if recordErr := runner.library.RecordRun(ctx, run); recordErr != nil {
			logger.Error().Err(recordErr).Msg("could not record run")
		}
	}

	logEvent := logger.Info()
	if err != nil || len(summary.Failed) > 0 {
		logEvent = logger.Warn().Err(err)
	}

	logEvent.Str("Status", summary.Status()).
		Int("NumRefreshed", len(summary.Refreshed)).
		Strs("Failed", sortedTickers(summary.Failed)).
		Int("NumSeries", summary.Series).
		Int("NumSkipped", len(summary.Report.Skipped)).
		Int("NumConflicts", len(summary.Report.Conflicts)).
		Str("RunTime", durafmt.Parse(summary.Duration()).LimitFirstN(2).String()).
		Msg("refresh finished")

	return summary, err
}

// finish combines, derives, exports and persists the merged table
func (runner *Runner) finish(ctx context.Context, run *library.Run, table *kpi.CanonicalTable, companyIDs map[string]string, summary *RunSummary) error {
	logger := zerolog.Ctx(ctx)

	catalog := runner.catalog(table)
	for _, group := range runner.opts.Groups {
		if hasMetric(table, group.Name) {
			logger.Warn().Str("Group", group.Name).Msg("group name is also a fetched metric; skipping group")
			summary.SkippedGroups = append(summary.SkippedGroups, group.Name)
			continue
		}
		table.Merge(Combine(table, group, catalog))
	}

	table.Align()

	derived := kpi.Derive(table)
	summary.Series = table.Len()

	if len(runner.opts.Export.Formats) > 0 {
		ds := export.Build(table, derived, catalog, runner.mappings, export.BuildOptions{
			AnnualPeriods:    runner.opts.Export.AnnualPeriods,
			QuarterlyPeriods: runner.opts.Export.QuarterlyPeriods,
			ScaleMillions:    runner.opts.ScaleMillions,
			Now:              summary.StartedAt,
		})

		files, err := export.Write(ds, runner.opts.Export)
		summary.Files = files
		if err != nil {
			return err
		}

		logger.Info().Strs("Files", files).Msg("exported kpis")

		if runner.opts.Upload {
			if err := backblaze.Upload(runner.opts.Backblaze, files...); err != nil {
				logger.Error().Err(err).Msg("upload to backblaze failed")
				return err
			}
		}
	}

	if runner.library != nil {
		count, err := runner.library.SaveTable(ctx, run.ID, table, derived, companyIDs)
		if err != nil {
			return err
		}
		summary.Observations = count
	}

	return nil
}

// fetchAll fetches each company on a pool of workers. Results are returned
// in the order of companies.
func (runner *Runner) fetchAll(ctx context.Context, companies []*mapping.Company) []*companyResult {
	results := make([]*companyResult, len(companies))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for worker := 0; worker < runner.opts.Concurrency && worker < len(companies); worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				results[idx] = runner.fetchCompany(ctx, companies[idx])
			}
		}()
	}

	for idx := range companies {
		indexes <- idx
	}
	close(indexes)

	wg.Wait()
	return results
}

// fetchCompany downloads the mapped KPIs of company from its latest model
// and reshapes them
func (runner *Runner) fetchCompany(ctx context.Context, company *mapping.Company) (result *companyResult) {
	logger := zerolog.Ctx(ctx).With().Str("Ticker", company.SearchTicker).Str("CompanyID", company.CompanyID).Logger()
	ctx = logger.WithContext(ctx)

	result = &companyResult{company: company}
	defer func() {
		if result.err != nil {
			logger.Error().Err(result.err).Msg("company refresh failed")
		}
	}()

	if err := ctx.Err(); err != nil {
		result.err = err
		return result
	}

	kpis := runner.mappings.KPIsFor(company.CompanyID)
	if len(kpis) == 0 {
		result.err = ErrNoKPIs
		return result
	}

	startTime := time.Now()

	model, err := runner.fetcher.LatestEquityModel(ctx, company.CompanyID)
	if err != nil {
		result.err = err
		return result
	}

	logger = logger.With().Str("ModelVersion", model.Version).Logger()
	ctx = logger.WithContext(ctx)

	var periodTypes map[string]string
	if periods, err := runner.fetcher.HistoricalPeriods(ctx, company.CompanyID, model.Version); err != nil {
		logger.Warn().Err(err).Msg("could not fetch historical periods; relying on labels alone")
	} else {
		periodTypes = canalyst.PeriodTypes(periods)
	}

	records := make([]kpi.RawRecord, 0)
	for _, mapped := range kpis {
		points, err := runner.fetcher.HistoricalDataPoints(ctx, company.CompanyID, model.Version, mapped.TimeSeriesName)
		if err != nil {
			if errors.Is(err, canalyst.ErrNotFound) {
				logger.Warn().Str("TimeSeries", mapped.TimeSeriesName).Msg("time series is not in the latest model")
				continue
			}
			result.err = fmt.Errorf("%s: %w", mapped.TimeSeriesName, err)
			return result
		}

		converted := canalyst.ToRawRecords(ctx, company.SearchTicker, points, periodTypes)
		for idx := range converted {
			converted[idx].MetricID = mapped.TimeSeriesName
		}
		records = append(records, converted...)
	}

	result.table, result.report = kpi.Reshape(records)

	for _, skipped := range result.report.Skipped {
		logger.Debug().Err(skipped.Err).Str("MetricID", skipped.Record.MetricID).Str("Period", skipped.Record.PeriodLabel).Msg("skipped record")
	}

	logger.Info().Int("NumRecords", len(records)).Int("NumSeries", result.table.Len()).
		Str("RunTime", durafmt.Parse(time.Since(startTime)).LimitFirstN(2).String()).Msg("fetched company")

	return result
}

// catalog describes each series using the KPI mappings
func (runner *Runner) catalog(table *kpi.CanonicalTable) export.Catalog {
	catalog := make(export.Catalog, table.Len())
	for _, key := range table.Keys() {
		info := export.MetricInfo{Description: key.MetricID}
		if company, ok := runner.mappings.Company(key.EntityID); ok {
			if mapped, ok := runner.mappings.KPI(company.CompanyID, key.MetricID); ok {
				if mapped.Label != "" {
					info.Description = mapped.Label
				}
				info.Units = mapped.Units
			}
		}
		catalog[key] = info
	}
	return catalog
}

// Combine applies group to table and adds catalog entries for the result.
// Units are taken from the first member that has any.
func Combine(table *kpi.CanonicalTable, group kpi.Group, catalog export.Catalog) *kpi.CanonicalTable {
	combined := kpi.Combine(table, group)

	for _, key := range combined.Keys() {
		info := export.MetricInfo{Description: group.Name}
		for _, metric := range group.Metrics {
			if member, ok := catalog[kpi.SeriesKey{EntityID: key.EntityID, MetricID: metric}]; ok && member.Units != "" {
				info.Units = member.Units
				break
			}
		}
		catalog[key] = info
	}

	return combined
}

// hasMetric reports whether any entity has a series named metricID
func hasMetric(table *kpi.CanonicalTable, metricID string) bool {
	for _, key := range table.Keys() {
		if key.MetricID == metricID {
			return true
		}
	}
	return false
}

// sortedTickers is used for stable log output
func sortedTickers(failures []CompanyFailure) []string {
	tickers := make([]string, 0, len(failures))
	for _, failure := range failures {
		tickers = append(tickers, failure.Ticker)
	}
	sort.Strings(tickers)
	return tickers
}
