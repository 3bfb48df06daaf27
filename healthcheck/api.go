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
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrStatus        = errors.New("status code is invalid")
	ErrMissingAPIKey = errors.New("healthchecks api key is not set")
	ErrMissingCheck  = errors.New("healthchecks check id is not set")
)

// Config identifies a healthchecks.io check and the endpoints used to reach it
type Config struct {
	CheckID string
	BaseURL string
	APIURL  string
	APIKey  string
}

// Enabled reports whether pings should be sent
func (conf Config) Enabled() bool {
	return conf.CheckID != ""
}

type createReq struct {
	Name        string `json:"name"`
	Description string `json:"desc,omitempty"`
	Grace       int    `json:"grace"`
	Schedule    string `json:"schedule"`
	Slug        string `json:"slug"`
	Tags        string `json:"tags"`
	Timezone    string `json:"tz"`
}

type createResp struct {
	PingURL string `json:"ping_url"`
}

// Check sends pings for a single healthchecks.io check
type Check struct {
	conf   Config
	client *resty.Client
}

// New returns a check that pings conf.BaseURL
func New(conf Config) *Check {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(conf.BaseURL, "/")).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)

	return &Check{
		conf:   conf,
		client: client,
	}
}

// Start signals that a job has started
func (check *Check) Start(ctx context.Context) error {
	return check.ping(ctx, "/start", "")
}

// Success signals that a job finished; msg is attached to the ping
func (check *Check) Success(ctx context.Context, msg string) error {
	return check.ping(ctx, "", msg)
}

// Fail signals that a job failed; msg is attached to the ping
func (check *Check) Fail(ctx context.Context, msg string) error {
	return check.ping(ctx, "/fail", msg)
}

func (check *Check) ping(ctx context.Context, suffix, msg string) error {
	if !check.conf.Enabled() {
		return nil
	}

	req := check.client.R().SetContext(ctx)
	if msg != "" {
		req = req.SetHeader("Content-Type", "text/plain").SetBody(msg)
	}

	resp, err := req.Post(fmt.Sprintf("/%s%s", check.conf.CheckID, suffix))
	if err != nil {
		log.Warn().Err(err).Str("CheckID", check.conf.CheckID).Msg("healthcheck ping failed")
		return err
	}

	if resp.StatusCode() != 200 {
		log.Warn().Int("StatusCode", resp.StatusCode()).Str("CheckID", check.conf.CheckID).Msg("healthcheck ping rejected")
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	return nil
}

// Create a new healthchecks.io check and return the id
func Create(conf Config, name string, slug string, tags []string, schedule string, timezone string) (string, error) {
	if conf.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	command := createReq{
		Name:     name,
		Slug:     slug,
		Tags:     strings.Join(tags, " "),
		Grace:    3600,
		Schedule: schedule,
		Timezone: timezone,
	}

	result := createResp{}

	client := resty.New()
	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Api-Key", conf.APIKey).
		SetBody(command).
		SetResult(&result).
		Post(fmt.Sprintf("%s/checks/", strings.TrimSuffix(conf.APIURL, "/")))

	if err != nil {
		return "", err
	}

	if resp.StatusCode() > 201 {
		return "", fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	checkID := strings.Split(result.PingURL, "/")
	healthCheckID := checkID[len(checkID)-1]

	return healthCheckID, nil
}

// Pause monitoring of a health check
func Pause(conf Config) error {
	return manage(conf, "pause")
}

// Resume monitoring of a health check
func Resume(conf Config) error {
	return manage(conf, "resume")
}

func manage(conf Config, action string) error {
	if conf.APIKey == "" {
		return ErrMissingAPIKey
	}
	if conf.CheckID == "" {
		return ErrMissingCheck
	}

	client := resty.New()
	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Api-Key", conf.APIKey).
		Post(fmt.Sprintf("%s/checks/%s/%s", strings.TrimSuffix(conf.APIURL, "/"), conf.CheckID, action))

	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	return nil
}
