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
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrMalformedPeriod      = errors.New("malformed period label")
	ErrAmbiguousGranularity = errors.New("ambiguous period granularity")
	ErrUnknownGranularity   = errors.New("unknown granularity")
)

// Granularity separates annual and quarterly series. Periods of different
// granularity are never ordered relative to each other.
type Granularity int

const (
	UnknownGranularity Granularity = iota
	Annual
	Quarterly
)

func (g Granularity) String() string {
	switch g {
	case Annual:
		return "Annual"
	case Quarterly:
		return "Quarterly"
	default:
		return "Unknown"
	}
}

// ParseGranularity understands both the API's period_duration_type values
// (fiscal_year, fiscal_quarter) and the short forms used in exports.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fiscal_year", "annual", "year", "yearly", "fy":
		return Annual, nil
	case "fiscal_quarter", "quarterly", "quarter", "q":
		return Quarterly, nil
	default:
		return UnknownGranularity, fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// Period is a fiscal year or a fiscal quarter. Sub is the quarter (1-4) for
// quarterly periods and 0 for annual ones.
type Period struct {
	Year        int
	Sub         int
	Granularity Granularity
}

func FiscalYear(year int) Period {
	return Period{Year: year, Granularity: Annual}
}

func FiscalQuarter(year, quarter int) Period {
	return Period{Year: year, Sub: quarter, Granularity: Quarterly}
}

// String returns the canonical label, e.g. FY2024 or Q1-2025
func (p Period) String() string {
	switch p.Granularity {
	case Annual:
		return fmt.Sprintf("FY%d", p.Year)
	case Quarterly:
		return fmt.Sprintf("Q%d-%d", p.Sub, p.Year)
	default:
		return ""
	}
}

// ShortLabel returns the compact label used in column headers, e.g. FY24 or Q1-25
func (p Period) ShortLabel() string {
	switch p.Granularity {
	case Annual:
		return fmt.Sprintf("FY%02d", p.Year%100)
	case Quarterly:
		return fmt.Sprintf("Q%d-%02d", p.Sub, p.Year%100)
	default:
		return ""
	}
}

// Before reports whether p sorts before other. It panics if the two periods
// have different granularity.
func (p Period) Before(other Period) bool {
	if p.Granularity != other.Granularity {
		panic(fmt.Sprintf("kpi: comparing %s period with %s period", p.Granularity, other.Granularity))
	}
	return p.index() < other.index()
}

// Prev returns the immediately preceding period of the same granularity
func (p Period) Prev() Period {
	return periodAt(p.Granularity, p.index()-1)
}

// YearAgo returns the same quarter of the prior year, or the prior fiscal year
func (p Period) YearAgo() Period {
	return Period{Year: p.Year - 1, Sub: p.Sub, Granularity: p.Granularity}
}

func (p Period) index() int {
	if p.Granularity == Quarterly {
		return p.Year*4 + p.Sub - 1
	}
	return p.Year
}

func periodAt(g Granularity, idx int) Period {
	if g == Quarterly {
		return FiscalQuarter(idx/4, idx%4+1)
	}
	return FiscalYear(idx)
}

var (
	quarterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^Q([1-4])[\s\-/]*(?:FY)?[\s\-/]*(\d{4}|\d{2})$`),
		regexp.MustCompile(`^([1-4])Q[\s\-/]*(?:FY)?[\s\-/]*(\d{4}|\d{2})$`),
	}
	quarterYearFirst = regexp.MustCompile(`^(?:FY)?(\d{4})[\s\-/]*Q([1-4])$`)
	annualPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`^FY[\s\-/]*(\d{4}|\d{2})$`),
		regexp.MustCompile(`^(\d{4})[\s\-/]*FY$`),
	}
	bareYear = regexp.MustCompile(`^(\d{4})$`)
)

// fiscal years outside this window are rejected; Align would otherwise
// stretch every axis to reach them
const (
	MinYear = 1900
	MaxYear = 2100
)

// ParsePeriod parses a period label. The hint is the API's
// period_duration_type and may be empty. A hint that contradicts the label,
// or a bare year without a hint, is reported as ErrAmbiguousGranularity.
func ParsePeriod(label, hint string) (Period, error) {
	hinted := UnknownGranularity
	if strings.TrimSpace(hint) != "" {
		g, err := ParseGranularity(hint)
		if err != nil {
			return Period{}, fmt.Errorf("%w: label %q has period type %q", ErrAmbiguousGranularity, label, hint)
		}
		hinted = g
	}

	normalized := strings.ToUpper(strings.TrimSpace(label))
	period, ok := parseLabel(normalized)
	if !ok {
		if m := bareYear.FindStringSubmatch(normalized); m != nil {
			if hinted != Annual {
				return Period{}, fmt.Errorf("%w: bare year %q", ErrAmbiguousGranularity, label)
			}
			year, _ := strconv.Atoi(m[1])
			period = FiscalYear(year)
		} else {
			return Period{}, fmt.Errorf("%w: %q", ErrMalformedPeriod, label)
		}
	}

	if period.Year < MinYear || period.Year > MaxYear {
		return Period{}, fmt.Errorf("%w: year of %q is outside %d-%d", ErrMalformedPeriod, label, MinYear, MaxYear)
	}

	if hinted != UnknownGranularity && hinted != period.Granularity {
		return Period{}, fmt.Errorf("%w: label %q is %s but period type is %q", ErrAmbiguousGranularity, label, period.Granularity, hint)
	}

	return period, nil
}

func parseLabel(s string) (Period, bool) {
	for _, re := range quarterPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			quarter, _ := strconv.Atoi(m[1])
			return FiscalQuarter(expandYear(m[2]), quarter), true
		}
	}

	if m := quarterYearFirst.FindStringSubmatch(s); m != nil {
		quarter, _ := strconv.Atoi(m[2])
		return FiscalQuarter(expandYear(m[1]), quarter), true
	}

	for _, re := range annualPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return FiscalYear(expandYear(m[1])), true
		}
	}

	return Period{}, false
}

// two digit years are always 20YY
func expandYear(s string) int {
	year, _ := strconv.Atoi(s)
	if len(s) == 2 {
		year += 2000
	}
	return year
}
