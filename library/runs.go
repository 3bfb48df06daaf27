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
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
)

const (
	RunRunning = "running"
	RunSuccess = "success"
	RunPartial = "partial"
	RunFailed  = "failed"
)

// Run is the record of one refresh
type Run struct {
	ID           uuid.UUID `db:"id"`
	StartedAt    time.Time `db:"started_at"`
	FinishedAt   time.Time `db:"finished_at"`
	Status       string    `db:"status"`
	Companies    int       `db:"companies"`
	Failed       int       `db:"failed"`
	Observations int       `db:"observations"`
	Skipped      int       `db:"skipped"`
	Conflicts    int       `db:"conflicts"`
	Message      string    `db:"message"`
}

// NewRun creates an in-memory run starting now
func NewRun() *Run {
	return &Run{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Status:    RunRunning,
	}
}

// Duration returns how long the run took, or how long it has been running
func (run *Run) Duration() time.Duration {
	if run.FinishedAt.IsZero() {
		return time.Since(run.StartedAt)
	}
	return run.FinishedAt.Sub(run.StartedAt)
}

// StartRun records the start of a refresh
func (myLibrary *Library) StartRun(ctx context.Context, run *Run) error {
	_, err := myLibrary.Pool.Exec(ctx, `INSERT INTO refresh_runs ("id", "started_at", "status") VALUES ($1, $2, $3)`,
		run.ID, run.StartedAt, run.Status)
	return err
}

// RecordRun stores the outcome of a refresh
func (myLibrary *Library) RecordRun(ctx context.Context, run *Run) error {
	_, err := myLibrary.Pool.Exec(ctx, `INSERT INTO refresh_runs
("id", "started_at", "finished_at", "status", "companies", "failed", "observations", "skipped", "conflicts", "message")
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT ("id") DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	status = EXCLUDED.status,
	companies = EXCLUDED.companies,
	failed = EXCLUDED.failed,
	observations = EXCLUDED.observations,
	skipped = EXCLUDED.skipped,
	conflicts = EXCLUDED.conflicts,
	message = EXCLUDED.message`,
		run.ID, run.StartedAt, run.FinishedAt, run.Status, run.Companies, run.Failed,
		run.Observations, run.Skipped, run.Conflicts, run.Message)
	return err
}

// Runs returns the most recent refresh runs, newest first
func (myLibrary *Library) Runs(ctx context.Context, limit int) ([]*Run, error) {
	var runs []*Run
	err := pgxscan.Select(ctx, myLibrary.Pool, &runs,
		`SELECT id, started_at, coalesce(finished_at, '0001-01-01'::timestamptz) AS finished_at, status,
companies, failed, observations, skipped, conflicts, message
FROM refresh_runs ORDER BY started_at DESC LIMIT $1`, limit)
	return runs, err
}
