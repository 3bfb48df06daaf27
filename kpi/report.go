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
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RecordError describes a raw record that was skipped during reshape
type RecordError struct {
	Index  int
	Record RawRecord
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%s/%s %q): %s", e.Index, e.Record.EntityID, e.Record.MetricID, e.Record.PeriodLabel, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// DuplicateConflict records a last-write-wins overwrite: the record at
// CurrentIndex replaced the one at PreviousIndex.
type DuplicateConflict struct {
	Key           SeriesKey
	Period        Period
	Previous      decimal.NullDecimal
	Current       decimal.NullDecimal
	PreviousIndex int
	CurrentIndex  int
}

// Report collects everything that did not make it into the table as-is
type Report struct {
	Skipped   []*RecordError
	Conflicts []*DuplicateConflict
}

// Ok is true when no record was skipped. Conflicts are resolved and do not
// count against the report.
func (report *Report) Ok() bool {
	return len(report.Skipped) == 0
}

// Err joins the skipped record errors, or returns nil
func (report *Report) Err() error {
	if report == nil || len(report.Skipped) == 0 {
		return nil
	}

	errs := make([]error, len(report.Skipped))
	for idx, skipped := range report.Skipped {
		errs[idx] = skipped
	}
	return errors.Join(errs...)
}

// Count returns the number of skipped records matching target
func (report *Report) Count(target error) int {
	count := 0
	for _, skipped := range report.Skipped {
		if errors.Is(skipped, target) {
			count++
		}
	}
	return count
}

// Merge appends the contents of other
func (report *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	report.Skipped = append(report.Skipped, other.Skipped...)
	report.Conflicts = append(report.Conflicts, other.Conflicts...)
}
