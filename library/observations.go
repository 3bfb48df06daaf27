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
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/penny-vault/pvkpi/kpi"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	MetricValue = "Value"
)

// Observation is one stored value: either a reported metric value or a
// derived growth ratio. Missing values are never stored.
type Observation struct {
	Ticker     string
	CompanyID  string
	MetricID   string
	Period     string
	PeriodType string
	MetricType string
	Value      decimal.Decimal
}

// Observations flattens table and derived into storable observations.
// companyIDs maps tickers to Canalyst company ids.
func Observations(table *kpi.CanonicalTable, derived *kpi.DerivedTable, companyIDs map[string]string) []*Observation {
	observations := make([]*Observation, 0)

	for _, key := range table.Keys() {
		series, _ := table.Series(key)
		companyID := companyIDs[key.EntityID]

		for _, g := range []kpi.Granularity{kpi.Annual, kpi.Quarterly} {
			for _, point := range series.Points(g) {
				if point.IsMissing() {
					continue
				}
				observations = append(observations, &Observation{
					Ticker:     key.EntityID,
					CompanyID:  companyID,
					MetricID:   key.MetricID,
					Period:     point.Period.String(),
					PeriodType: g.String(),
					MetricType: MetricValue,
					Value:      point.Value.Decimal,
				})
			}
		}

		if derived == nil {
			continue
		}

		for _, metric := range derived.Rows(key) {
			if !metric.Value.Valid {
				continue
			}
			observations = append(observations, &Observation{
				Ticker:     key.EntityID,
				CompanyID:  companyID,
				MetricID:   key.MetricID,
				Period:     metric.Period.String(),
				PeriodType: metric.Period.Granularity.String(),
				MetricType: string(metric.Kind),
				Value:      metric.Value.Decimal,
			})
		}
	}

	return observations
}

// SaveTable upserts every observation of table and derived in a single
// transaction and returns the number written.
func (myLibrary *Library) SaveTable(ctx context.Context, runID uuid.UUID, table *kpi.CanonicalTable, derived *kpi.DerivedTable, companyIDs map[string]string) (int, error) {
	observations := Observations(table, derived, companyIDs)
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := myLibrary.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			if !errors.Is(err, pgx.ErrTxClosed) {
				log.Error().Err(err).Msg("error rolling back tx")
			}
		}
	}()

	batch := &pgx.Batch{}
	for _, obs := range observations {
		batch.Queue(`INSERT INTO kpi_observations
("ticker", "company_id", "metric_id", "period", "period_type", "metric_type", "value", "run_id", "updated_at")
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, now())
ON CONFLICT ("ticker", "metric_id", "period", "metric_type") DO UPDATE SET
	company_id = EXCLUDED.company_id,
	period_type = EXCLUDED.period_type,
	value = EXCLUDED.value,
	run_id = EXCLUDED.run_id,
	updated_at = EXCLUDED.updated_at`,
			obs.Ticker, obs.CompanyID, obs.MetricID, obs.Period, obs.PeriodType, obs.MetricType, obs.Value.String(), runID)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Error().Err(err).Int("NumObservations", len(observations)).Msg("could not save observations")
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	log.Info().Int("NumObservations", len(observations)).Str("RunID", runID.String()).Msg("saved observations to library")
	return len(observations), nil
}
