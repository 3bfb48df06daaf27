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
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// TimeSeries describes one line of a company model
type TimeSeries struct {
	Names       []string
	Slug        string
	Description string
	Units       string
	Category    string
	IsKPI       bool
}

// Name returns the primary name of the series
func (ts *TimeSeries) Name() string {
	if len(ts.Names) == 0 {
		return ""
	}
	return ts.Names[0]
}

// DataPoint is a single historical observation. Value holds the raw
// string from the API and is empty when no value was reported.
type DataPoint struct {
	PeriodName            string
	PeriodType            string
	Value                 string
	TimeSeriesName        string
	TimeSeriesDescription string
	Units                 string
}

// HistoricalPeriod is a reported fiscal period of a model
type HistoricalPeriod struct {
	Name         string
	DurationType string
	StartDate    time.Time
	EndDate      time.Time
}

func (c *Client) modelPath(ctx context.Context, companyID, version, suffix string) (string, error) {
	seriesID, err := c.seriesID(ctx, companyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/equity-model-series/%s/equity-models/%s/%s/", seriesID, version, suffix), nil
}

// ListTimeSeries lists the series of a model version. When kpiOnly is
// non-nil the list is filtered on the is_kpi flag.
func (c *Client) ListTimeSeries(ctx context.Context, companyID, version string, kpiOnly *bool) ([]*TimeSeries, error) {
	endpoint, err := c.modelPath(ctx, companyID, version, "time-series")
	if err != nil {
		return nil, err
	}

	params := map[string]string{"page_size": "200"}
	if kpiOnly != nil {
		params["is_kpi"] = boolParam(*kpiOnly)
	}

	series := make([]*TimeSeries, 0)
	err = c.paginate(ctx, endpoint, params, func(row gjson.Result) error {
		ts := &TimeSeries{
			Slug:        row.Get("slug").String(),
			Description: row.Get("description").String(),
			Units:       row.Get("unit.description").String(),
			Category:    row.Get("category.description").String(),
			IsKPI:       row.Get("is_kpi").Bool(),
		}
		for _, name := range row.Get("names").Array() {
			ts.Names = append(ts.Names, name.String())
		}
		series = append(series, ts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return series, nil
}

// HistoricalDataPoints returns every historical observation of the named
// time series.
func (c *Client) HistoricalDataPoints(ctx context.Context, companyID, version, timeSeriesName string) ([]*DataPoint, error) {
	endpoint, err := c.modelPath(ctx, companyID, version, "historical-data-points")
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"time_series_name": timeSeriesName,
		"page_size":        "500",
	}

	points := make([]*DataPoint, 0)
	err = c.paginate(ctx, endpoint, params, func(row gjson.Result) error {
		points = append(points, dataPointFromJSON(row))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return points, nil
}

// HistoricalPeriods returns the reported periods of a model version
func (c *Client) HistoricalPeriods(ctx context.Context, companyID, version string) ([]*HistoricalPeriod, error) {
	endpoint, err := c.modelPath(ctx, companyID, version, "historical-periods")
	if err != nil {
		return nil, err
	}

	periods := make([]*HistoricalPeriod, 0)
	err = c.paginate(ctx, endpoint, map[string]string{"page_size": "200"}, func(row gjson.Result) error {
		period := &HistoricalPeriod{
			Name:         row.Get("name").String(),
			DurationType: row.Get("period_duration_type").String(),
		}
		period.StartDate, _ = time.Parse(time.DateOnly, row.Get("start_date").String())
		period.EndDate, _ = time.Parse(time.DateOnly, row.Get("end_date").String())
		periods = append(periods, period)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return periods, nil
}

func dataPointFromJSON(row gjson.Result) *DataPoint {
	point := &DataPoint{
		PeriodName:            row.Get("period.name").String(),
		PeriodType:            row.Get("period.period_duration_type").String(),
		TimeSeriesName:        row.Get("time_series.names.0").String(),
		TimeSeriesDescription: row.Get("time_series.description").String(),
		Units:                 row.Get("time_series.unit.description").String(),
	}

	value := row.Get("value")
	switch value.Type {
	case gjson.Null:
	case gjson.Number:
		// keep the literal so no precision is lost to float64
		point.Value = value.Raw
	default:
		point.Value = value.String()
	}

	return point
}
