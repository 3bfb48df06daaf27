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
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CombineMode selects how missing members are treated when summing a group
type CombineMode int

const (
	// Strict marks the combined value missing if any member is missing
	Strict CombineMode = iota

	// SumAvailable sums the members that are present and ignores the rest
	SumAvailable
)

func (mode CombineMode) String() string {
	if mode == SumAvailable {
		return "sum-available"
	}
	return "strict"
}

func ParseCombineMode(s string) (CombineMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "sum-available", "sum_available", "available":
		return SumAvailable, nil
	default:
		return Strict, fmt.Errorf("unknown combine mode %q", s)
	}
}

// Group names a set of metrics that are summed into one logical metric
type Group struct {
	Name    string
	Metrics []string
	Mode    CombineMode
}

// Combine sums the group's member metrics period-by-period for every entity
// that has at least one member. The returned table holds one series per
// such entity with MetricID set to the group name.
func Combine(table *CanonicalTable, group Group) *CanonicalTable {
	combined := NewCanonicalTable()
	members := uniqueMetrics(group.Metrics)

	for _, entity := range table.Entities() {
		present := make([]*Series, 0, len(members))
		for _, metric := range members {
			if series, ok := table.Series(SeriesKey{EntityID: entity, MetricID: metric}); ok {
				present = append(present, series)
			}
		}

		if len(present) == 0 {
			continue
		}

		// an absent member counts as missing at every period
		absent := len(present) < len(members)

		key := SeriesKey{EntityID: entity, MetricID: group.Name}
		combined.Put(&Series{
			Key:       key,
			Annual:    sumSeries(key, present, Annual, group.Mode, absent),
			Quarterly: sumSeries(key, present, Quarterly, group.Mode, absent),
		})
	}

	combined.Align()
	return combined
}

func sumSeries(key SeriesKey, members []*Series, g Granularity, mode CombineMode, absent bool) []MetricPoint {
	periods := make(map[Period]bool)
	for _, member := range members {
		for _, point := range member.Points(g) {
			periods[point.Period] = true
		}
	}

	if len(periods) == 0 {
		return nil
	}

	ordered := make([]Period, 0, len(periods))
	for p := range periods {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Before(ordered[j])
	})

	points := make([]MetricPoint, 0, len(ordered))
	for _, period := range ordered {
		total := decimal.Zero
		found := 0
		missing := absent

		for _, member := range members {
			point, ok := member.Lookup(period)
			if !ok || point.IsMissing() {
				missing = true
				continue
			}
			total = total.Add(point.Value.Decimal)
			found++
		}

		value := Known(total)
		switch {
		case found == 0:
			value = Missing()
		case missing && mode == Strict:
			value = Missing()
		}

		points = append(points, MetricPoint{
			EntityID: key.EntityID,
			MetricID: key.MetricID,
			Period:   period,
			Value:    value,
		})
	}

	return points
}

func uniqueMetrics(metrics []string) []string {
	seen := make(map[string]bool, len(metrics))
	unique := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		if seen[metric] {
			continue
		}
		seen[metric] = true
		unique = append(unique, metric)
	}
	return unique
}
