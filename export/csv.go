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
package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
)

const (
	ConsolidatedCSV = "all_companies.csv"
)

// WriteCSV writes one long-format file per company plus the consolidated
// all_companies.csv and returns the files written.
func WriteCSV(dir string, ds *Dataset) ([]string, error) {
	files := make([]string, 0, len(ds.Sheets)+1)

	byTicker := make(map[string][]*Row)
	for _, row := range ds.Rows {
		byTicker[row.Ticker] = append(byTicker[row.Ticker], row)
	}

	for _, sheet := range ds.Sheets {
		ticker := sheet.Company.SearchTicker
		fn := filepath.Join(dir, companyFileName(ticker)+".csv")
		if err := writeRows(fn, byTicker[ticker]); err != nil {
			return files, err
		}
		files = append(files, fn)
	}

	fn := filepath.Join(dir, ConsolidatedCSV)
	if err := writeRows(fn, ds.Rows); err != nil {
		return files, err
	}
	files = append(files, fn)

	log.Info().Int("NumFiles", len(files)).Int("NumRows", len(ds.Rows)).Str("Dir", dir).Msg("wrote csv exports")
	return files, nil
}

func writeRows(fn string, rows []*Row) error {
	if rows == nil {
		rows = []*Row{}
	}

	fh, err := os.Create(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create csv file")
		return err
	}
	defer fh.Close()

	return gocsv.MarshalFile(&rows, fh)
}

// companyFileName keeps tickers readable but strips anything unsafe in a
// file name (e.g. BRK/B)
func companyFileName(ticker string) string {
	clean := strings.ToUpper(slug.Make(ticker))
	if clean == "" {
		return "UNKNOWN"
	}
	return clean
}
