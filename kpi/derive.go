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
	"github.com/shopspring/decimal"
)

type Kind string

const (
	QoQ Kind = "QoQ"
	YoY Kind = "YoY"
)

// DerivedMetric is a growth ratio computed from two points of the same
// series. Value is missing when either operand is missing or the reference
// is zero.
type DerivedMetric struct {
	EntityID  string
	MetricID  string
	Period    Period
	Reference Period
	Kind      Kind
	Value     decimal.NullDecimal
}

// DerivedTable holds the derived metrics of each series, ordered by
// granularity (annual first), then period, then kind (QoQ before YoY).
type DerivedTable struct {
	rows map[SeriesKey][]DerivedMetric
}

// Rows returns the derived metrics of key
func (derived *DerivedTable) Rows(key SeriesKey) []DerivedMetric {
	return derived.rows[key]
}

// Lookup finds a single derived metric
func (derived *DerivedTable) Lookup(key SeriesKey, kind Kind, period Period) (DerivedMetric, bool) {
	for _, row := range derived.rows[key] {
		if row.Kind == kind && row.Period == period {
			return row, true
		}
	}
	return DerivedMetric{}, false
}

// Len returns the number of series with derived metrics
func (derived *DerivedTable) Len() int {
	return len(derived.rows)
}

// Growth returns (current - reference) / reference, or missing if either
// value is missing or the reference is zero.
func Growth(current, reference decimal.NullDecimal) decimal.NullDecimal {
	if !current.Valid || !reference.Valid || reference.Decimal.IsZero() {
		return Missing()
	}
	return Known(current.Decimal.Sub(reference.Decimal).Div(reference.Decimal))
}

// Derive computes QoQ growth for quarterly sequences and YoY growth for
// both quarterly (same quarter, prior year) and annual (prior fiscal year)
// sequences. The table is not modified.
func Derive(table *CanonicalTable) *DerivedTable {
	derived := &DerivedTable{
		rows: make(map[SeriesKey][]DerivedMetric, table.Len()),
	}

	for _, key := range table.Keys() {
		series, _ := table.Series(key)
		rows := make([]DerivedMetric, 0, len(series.Annual)+2*len(series.Quarterly))

		for _, point := range series.Annual {
			rows = append(rows, derive(series, point, YoY, point.Period.Prev()))
		}

		for _, point := range series.Quarterly {
			rows = append(rows,
				derive(series, point, QoQ, point.Period.Prev()),
				derive(series, point, YoY, point.Period.YearAgo()),
			)
		}

		derived.rows[key] = rows
	}

	return derived
}

func derive(series *Series, point MetricPoint, kind Kind, reference Period) DerivedMetric {
	value := Missing()
	if ref, ok := series.Lookup(reference); ok {
		value = Growth(point.Value, ref.Value)
	}

	return DerivedMetric{
		EntityID:  point.EntityID,
		MetricID:  point.MetricID,
		Period:    point.Period,
		Reference: reference,
		Kind:      kind,
		Value:     value,
	}
}
