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

	"github.com/shopspring/decimal"
)

// RawRecord is a single fetched observation before it has been validated.
// An invalid Value marks a missing observation.
type RawRecord struct {
	EntityID    string
	MetricID    string
	PeriodLabel string
	PeriodType  string
	Value       decimal.NullDecimal
}

// MetricPoint is an observation placed on the canonical period axis
type MetricPoint struct {
	EntityID string
	MetricID string
	Period   Period
	Value    decimal.NullDecimal
}

// IsMissing reports whether the point carries no value
func (point MetricPoint) IsMissing() bool {
	return !point.Value.Valid
}

// Known wraps a decimal as a present value
func Known(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Missing returns the explicit missing marker
func Missing() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

type SeriesKey struct {
	EntityID string
	MetricID string
}

// Series holds the annual and quarterly sequences of one (entity, metric)
// pair. Each sequence is ascending by period and gap-filled.
type Series struct {
	Key       SeriesKey
	Annual    []MetricPoint
	Quarterly []MetricPoint
}

// Points returns the sequence of the requested granularity
func (series *Series) Points(g Granularity) []MetricPoint {
	switch g {
	case Annual:
		return series.Annual
	case Quarterly:
		return series.Quarterly
	default:
		return nil
	}
}

// Lookup returns the point at period p; ok is false if p is outside the
// series' axis.
func (series *Series) Lookup(p Period) (MetricPoint, bool) {
	points := series.Points(p.Granularity)
	idx := sort.Search(len(points), func(i int) bool {
		return !points[i].Period.Before(p)
	})
	if idx < len(points) && points[idx].Period == p {
		return points[idx], true
	}
	return MetricPoint{}, false
}

// Len returns the number of points, missing or not, across both granularities
func (series *Series) Len() int {
	return len(series.Annual) + len(series.Quarterly)
}

// CanonicalTable maps each (entity, metric) pair to its series
type CanonicalTable struct {
	series map[SeriesKey]*Series
}

func NewCanonicalTable() *CanonicalTable {
	return &CanonicalTable{
		series: make(map[SeriesKey]*Series),
	}
}

// Len returns the number of (entity, metric) pairs
func (table *CanonicalTable) Len() int {
	return len(table.series)
}

// Series returns the series for key
func (table *CanonicalTable) Series(key SeriesKey) (*Series, bool) {
	series, ok := table.series[key]
	return series, ok
}

// Keys returns every pair sorted by entity then metric
func (table *CanonicalTable) Keys() []SeriesKey {
	keys := make([]SeriesKey, 0, len(table.series))
	for k := range table.series {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EntityID != keys[j].EntityID {
			return keys[i].EntityID < keys[j].EntityID
		}
		return keys[i].MetricID < keys[j].MetricID
	})

	return keys
}

// Entities returns the sorted list of distinct entity ids
func (table *CanonicalTable) Entities() []string {
	seen := make(map[string]bool)
	entities := make([]string, 0)
	for _, key := range table.Keys() {
		if !seen[key.EntityID] {
			seen[key.EntityID] = true
			entities = append(entities, key.EntityID)
		}
	}
	return entities
}

// Put stores series under its key, replacing any existing series
func (table *CanonicalTable) Put(series *Series) {
	table.series[series.Key] = series
}

// Merge copies every series of other into table; other is left untouched
// by later changes to table. On a key collision the series from other wins.
// Call Align afterwards so that series built from different inputs share a
// period axis.
func (table *CanonicalTable) Merge(other *CanonicalTable) {
	if other == nil {
		return
	}
	for key, series := range other.series {
		table.series[key] = &Series{
			Key:       series.Key,
			Annual:    append([]MetricPoint(nil), series.Annual...),
			Quarterly: append([]MetricPoint(nil), series.Quarterly...),
		}
	}
}

// Align gap-fills every non-empty sequence so that all sequences of the
// same granularity cover the same period range.
func (table *CanonicalTable) Align() {
	for _, g := range []Granularity{Annual, Quarterly} {
		lo, hi, ok := table.bounds(g)
		if !ok {
			continue
		}

		for _, series := range table.series {
			points := series.Points(g)
			if len(points) == 0 {
				continue
			}

			filled := fillAxis(series.Key, g, points, lo, hi)
			if g == Annual {
				series.Annual = filled
			} else {
				series.Quarterly = filled
			}
		}
	}
}

func (table *CanonicalTable) bounds(g Granularity) (lo, hi int, ok bool) {
	for _, series := range table.series {
		points := series.Points(g)
		if len(points) == 0 {
			continue
		}

		first := points[0].Period.index()
		last := points[len(points)-1].Period.index()
		if !ok || first < lo {
			lo = first
		}
		if !ok || last > hi {
			hi = last
		}
		ok = true
	}
	return
}

// fillAxis expects points sorted ascending
func fillAxis(key SeriesKey, g Granularity, points []MetricPoint, lo, hi int) []MetricPoint {
	filled := make([]MetricPoint, 0, hi-lo+1)
	next := 0
	for idx := lo; idx <= hi; idx++ {
		if next < len(points) && points[next].Period.index() == idx {
			filled = append(filled, points[next])
			next++
			continue
		}

		filled = append(filled, MetricPoint{
			EntityID: key.EntityID,
			MetricID: key.MetricID,
			Period:   periodAt(g, idx),
			Value:    Missing(),
		})
	}
	return filled
}
