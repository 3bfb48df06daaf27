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
package kpi

import (
	"sort"

	"github.com/rs/zerolog/log"
)

type cell struct {
	point MetricPoint
	index int
}

// Reshape validates raw records and builds a gap-filled canonical table.
//
// Records sharing (entity, metric, period) are resolved last-write-wins: the
// record appearing later in the input replaces the earlier one, and the
// overwrite is listed in Report.Conflicts. Records with a malformed or
// ambiguous period are skipped and listed in Report.Skipped. Every pair
// present in the input appears in the table, even if all of its records
// were skipped.
func Reshape(records []RawRecord) (*CanonicalTable, *Report) {
	report := &Report{}
	table := NewCanonicalTable()
	cells := make(map[SeriesKey]map[Period]cell)

	for idx, record := range records {
		key := SeriesKey{EntityID: record.EntityID, MetricID: record.MetricID}
		if _, ok := cells[key]; !ok {
			cells[key] = make(map[Period]cell)
		}

		period, err := ParsePeriod(record.PeriodLabel, record.PeriodType)
		if err != nil {
			log.Warn().Err(err).Int("Index", idx).Str("EntityID", record.EntityID).
				Str("MetricID", record.MetricID).Str("Period", record.PeriodLabel).
				Msg("skipping record")
			report.Skipped = append(report.Skipped, &RecordError{Index: idx, Record: record, Err: err})
			continue
		}

		point := MetricPoint{
			EntityID: record.EntityID,
			MetricID: record.MetricID,
			Period:   period,
			Value:    record.Value,
		}

		if previous, ok := cells[key][period]; ok {
			log.Debug().Str("EntityID", record.EntityID).Str("MetricID", record.MetricID).
				Str("Period", period.String()).Int("PreviousIndex", previous.index).Int("Index", idx).
				Msg("duplicate record replaces earlier value")
			report.Conflicts = append(report.Conflicts, &DuplicateConflict{
				Key:           key,
				Period:        period,
				Previous:      previous.point.Value,
				Current:       record.Value,
				PreviousIndex: previous.index,
				CurrentIndex:  idx,
			})
		}

		cells[key][period] = cell{point: point, index: idx}
	}

	for key, byPeriod := range cells {
		series := &Series{Key: key}
		for _, c := range byPeriod {
			switch c.point.Period.Granularity {
			case Annual:
				series.Annual = append(series.Annual, c.point)
			case Quarterly:
				series.Quarterly = append(series.Quarterly, c.point)
			}
		}

		sortPoints(series.Annual)
		sortPoints(series.Quarterly)
		table.Put(series)
	}

	table.Align()

	return table, report
}

func sortPoints(points []MetricPoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Period.Before(points[j].Period)
	})
}
