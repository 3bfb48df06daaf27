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
	"strings"

	"github.com/penny-vault/pvkpi/kpi"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ToRawRecords converts data points into raw records for entityID. Empty
// values become missing; values that do not parse as a number also become
// missing and are logged. Points without a period type take it from
// periodTypes, keyed by period name, when available.
func ToRawRecords(ctx context.Context, entityID string, points []*DataPoint, periodTypes map[string]string) []kpi.RawRecord {
	logger := zerolog.Ctx(ctx)
	records := make([]kpi.RawRecord, 0, len(points))

	for _, point := range points {
		record := kpi.RawRecord{
			EntityID:    entityID,
			MetricID:    point.TimeSeriesName,
			PeriodLabel: point.PeriodName,
			PeriodType:  point.PeriodType,
		}

		if record.PeriodType == "" && periodTypes != nil {
			record.PeriodType = periodTypes[point.PeriodName]
		}

		raw := strings.TrimSpace(point.Value)
		if raw != "" {
			value, err := decimal.NewFromString(raw)
			if err != nil {
				logger.Warn().Err(err).Str("EntityID", entityID).Str("MetricID", point.TimeSeriesName).
					Str("Period", point.PeriodName).Str("Value", raw).Msg("could not parse value; treating as missing")
			} else {
				record.Value = kpi.Known(value)
			}
		}

		records = append(records, record)
	}

	return records
}

// PeriodTypes maps each period name to its duration type
func PeriodTypes(periods []*HistoricalPeriod) map[string]string {
	types := make(map[string]string, len(periods))
	for _, period := range periods {
		types[period.Name] = period.DurationType
	}
	return types
}
