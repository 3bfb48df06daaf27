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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
	FormatXLSX    = "xlsx"
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
)

// Options controls which files Write produces
type Options struct {
	Dir              string
	Formats          []string
	AnnualPeriods    int
	QuarterlyPeriods int
}

// Write writes ds in every requested format and returns the files
// produced. A failing writer does not stop the others; their errors are
// joined.
func Write(ds *Dataset, opts Options) ([]string, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, err
	}

	files := make([]string, 0)
	var errs []error

	for _, format := range opts.Formats {
		var (
			written []string
			err     error
		)

		switch strings.ToLower(format) {
		case FormatCSV:
			written, err = WriteCSV(opts.Dir, ds)
		case FormatJSON:
			var fn string
			fn, err = WriteMetadata(opts.Dir, NewMetadata(ds, opts.AnnualPeriods, opts.QuarterlyPeriods))
			written = []string{fn}
		case FormatParquet:
			var fn string
			fn, err = WriteParquet(opts.Dir, ds)
			written = []string{fn}
		case FormatXLSX:
			var fn string
			fn, err = WriteXLSX(opts.Dir, ds)
			written = []string{fn}
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownFormat, format)
		}

		if err != nil {
			log.Error().Err(err).Str("Format", format).Msg("export failed")
			errs = append(errs, err)
			continue
		}

		files = append(files, written...)
	}

	return files, errors.Join(errs...)
}
