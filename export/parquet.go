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
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const (
	ParquetFile = "kpis.parquet"
)

// WriteParquet writes every row of ds to a ZSTD compressed parquet file
func WriteParquet(dir string, ds *Dataset) (string, error) {
	fn := filepath.Join(dir, ParquetFile)

	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create local file")
		return "", err
	}
	defer fh.Close()

	pw, err := writer.NewParquetWriter(fh, new(Row), 4)
	if err != nil {
		log.Error().Err(err).Msg("parquet writer could not be created")
		return "", err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, row := range ds.Rows {
		if err := pw.Write(row); err != nil {
			log.Error().Err(err).Str("Ticker", row.Ticker).Str("KPICode", row.KPICode).
				Str("Period", row.Period).Msg("parquet write failed for row")
			return "", err
		}
	}

	if err := pw.WriteStop(); err != nil {
		log.Error().Err(err).Msg("parquet write failed")
		return "", err
	}

	log.Info().Int("NumRecords", len(ds.Rows)).Str("FileName", fn).Msg("parquet write finished")
	return fn, nil
}
