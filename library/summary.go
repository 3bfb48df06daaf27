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
package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hako/durafmt"
	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is a point-in-time description of the library
type Stats struct {
	Name         string
	Owner        string
	DBUrl        string
	Companies    int
	Metrics      int
	Observations int
	LastUpdated  time.Time
	Runs         []*Run
}

// Stats collects the numbers shown by Summary
func (myLibrary *Library) Stats(ctx context.Context, numRuns int) (*Stats, error) {
	var err error
	stats := &Stats{
		Name:  myLibrary.Name,
		Owner: myLibrary.Owner,
		DBUrl: myLibrary.DBUrl,
	}

	if stats.Companies, err = myLibrary.NumCompanies(ctx); err != nil {
		return nil, err
	}

	if stats.Metrics, err = myLibrary.NumMetrics(ctx); err != nil {
		return nil, err
	}

	if stats.Observations, err = myLibrary.NumObservations(ctx); err != nil {
		return nil, err
	}

	if stats.LastUpdated, err = myLibrary.LastUpdated(ctx); err != nil {
		return nil, err
	}

	if stats.Runs, err = myLibrary.Runs(ctx, numRuns); err != nil {
		return nil, err
	}

	return stats, nil
}

// Summary returns a description of the library in markdown
func (myLibrary *Library) Summary(ctx context.Context) (string, error) {
	stats, err := myLibrary.Stats(ctx, 10)
	if err != nil {
		return "", err
	}
	return stats.Markdown(), nil
}

// Markdown renders stats for display with glamour
func (stats *Stats) Markdown() string {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	builder.WriteString(fmt.Sprintf("# %s\n", stats.Name))
	builder.WriteString("## Details\n\n")

	if stats.Owner != "" {
		builder.WriteString(fmt.Sprintf("Owner: %s\n\n", stats.Owner))
	}

	builder.WriteString(fmt.Sprintf("Database: %s\n\n", redact(stats.DBUrl)))

	builder.WriteString(p.Sprintf("  * Companies: %d\n", stats.Companies))
	builder.WriteString(p.Sprintf("  * Metrics: %d\n", stats.Metrics))
	builder.WriteString(p.Sprintf("  * Observations: %d\n\n", stats.Observations))

	if stats.LastUpdated.IsZero() || stats.LastUpdated.Year() <= 1 {
		builder.WriteString("Last Updated: Never\n\n")
	} else {
		age := timeago.English.Format(stats.LastUpdated)
		builder.WriteString(fmt.Sprintf("Last Updated: %s (%s)\n\n", age, stats.LastUpdated.Local().Format("01/02/2006")))
	}

	builder.WriteString("## Recent refreshes\n\n")

	if len(stats.Runs) == 0 {
		builder.WriteString("No refreshes have run yet\n")
		return builder.String()
	}

	for _, run := range stats.Runs {
		duration := "running"
		if run.Status != RunRunning && run.FinishedAt.Year() > 1 {
			duration = durafmt.Parse(run.Duration().Round(time.Second)).LimitFirstN(2).String()
		}

		builder.WriteString(p.Sprintf("  * %s %s [%s] %d companies, %d failed, %d observations (%s)\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"), run.Status, run.ID.String()[:6],
			run.Companies, run.Failed, run.Observations, duration))

		if run.Message != "" {
			builder.WriteString(fmt.Sprintf("    * %s\n", run.Message))
		}
	}

	return builder.String()
}

// redact hides the password of a connection string
func redact(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if schemeEnd < 0 || at < schemeEnd {
		return dsn
	}

	userInfo := dsn[schemeEnd+3 : at]
	if colon := strings.Index(userInfo, ":"); colon >= 0 {
		return dsn[:schemeEnd+3] + userInfo[:colon] + ":xxxxx" + dsn[at:]
	}
	return dsn
}
