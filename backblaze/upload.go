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
package backblaze

import (
	"errors"
	"os"
	"path"
	"path/filepath"

	"github.com/kothar/go-backblaze"
	"github.com/rs/zerolog/log"
)

var (
	ErrBucketNotFound = errors.New("bucket not found")
	ErrNotConfigured  = errors.New("backblaze credentials are not configured")
)

type Config struct {
	ApplicationID  string
	ApplicationKey string
	Bucket         string
	Prefix         string
}

// Enabled reports whether enough is configured to upload
func (conf Config) Enabled() bool {
	return conf.ApplicationID != "" && conf.ApplicationKey != "" && conf.Bucket != ""
}

// ObjectName is the name a local file is stored under in the bucket
func (conf Config) ObjectName(fn string) string {
	if conf.Prefix == "" {
		return filepath.Base(fn)
	}
	return path.Join(conf.Prefix, filepath.Base(fn))
}

// Upload copies each file to the configured bucket
func Upload(conf Config, files ...string) error {
	if !conf.Enabled() {
		return ErrNotConfigured
	}

	b2, err := backblaze.NewB2(backblaze.Credentials{
		KeyID:          conf.ApplicationID,
		ApplicationKey: conf.ApplicationKey,
	})
	if err != nil {
		log.Error().Err(err).Str("BucketName", conf.Bucket).Msg("authorize backblaze failed")
		return err
	}

	bucket, err := b2.Bucket(conf.Bucket)
	if err != nil {
		log.Error().Err(err).Str("BucketName", conf.Bucket).Msg("lookup bucket failed")
		return err
	}
	if bucket == nil {
		log.Error().Str("BucketName", conf.Bucket).Msg("bucket does not exist")
		return ErrBucketNotFound
	}

	for _, fn := range files {
		if err := uploadFile(bucket, conf.ObjectName(fn), fn); err != nil {
			return err
		}
	}

	return nil
}

func uploadFile(bucket *backblaze.Bucket, outName, fn string) error {
	reader, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer reader.Close()

	metadata := make(map[string]string)

	file, err := bucket.UploadFile(outName, metadata, reader)
	if err != nil {
		log.Error().Err(err).Str("FileName", outName).Str("BucketName", bucket.Name).Msg("save file to backblaze failed")
		return err
	}

	log.Info().Str("FileName", file.Name).Int64("Size", file.ContentLength).Str("ID", file.ID).Msg("uploaded file to backblaze")
	return nil
}
