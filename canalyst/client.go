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
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://mds.canalyst.com/api"
)

var (
	ErrStatus            = errors.New("canalyst api returned an error status")
	ErrNotFound          = errors.New("not found")
	ErrNoModelSeries     = errors.New("no equity model series found")
	ErrPaginationCycle   = errors.New("pagination returned a page twice")
	ErrMissingCredential = errors.New("canalyst api token is required")
)

// Config configures a Client. Zero values are replaced with defaults.
type Config struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxAttempts       int
	MinBackoff        time.Duration
	MaxBackoff        time.Duration
	UserAgent         string
}

// Client talks to the Canalyst model data API. It is safe for concurrent
// use; all goroutines share one rate limiter.
type Client struct {
	conf      Config
	client    *resty.Client
	limiter   *rate.Limiter
	seriesIDs *haxmap.Map[string, string]
}

// New creates a client with its own rate limiter
func New(conf Config) (*Client, error) {
	if conf.Token == "" {
		return nil, ErrMissingCredential
	}

	if conf.BaseURL == "" {
		conf.BaseURL = DefaultBaseURL
	}
	if conf.Timeout == 0 {
		conf.Timeout = 30 * time.Second
	}
	if conf.RequestsPerSecond <= 0 {
		conf.RequestsPerSecond = 5
	}
	if conf.MaxAttempts < 1 {
		conf.MaxAttempts = 3
	}
	if conf.MinBackoff == 0 {
		conf.MinBackoff = 4 * time.Second
	}
	if conf.MaxBackoff == 0 {
		conf.MaxBackoff = 10 * time.Second
	}
	if conf.UserAgent == "" {
		conf.UserAgent = "pvkpi"
	}

	limiter := rate.NewLimiter(rate.Limit(conf.RequestsPerSecond), 1)

	client := resty.New().
		SetBaseURL(strings.TrimRight(conf.BaseURL, "/")).
		SetAuthToken(conf.Token).
		SetTimeout(conf.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", conf.UserAgent).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(conf.MaxAttempts - 1).
		SetRetryWaitTime(conf.MinBackoff).
		SetRetryMaxWaitTime(conf.MaxBackoff).
		SetRetryAfter(retryAfter).
		AddRetryCondition(shouldRetry)

	// every attempt, including retries, waits for the limiter
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return &Client{
		conf:      conf,
		client:    client,
		limiter:   limiter,
		seriesIDs: haxmap.New[string, string](),
	}, nil
}

func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// retryAfter honors the Retry-After header of a 429 response. Returning 0
// falls back to resty's exponential backoff.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil || resp.StatusCode() != http.StatusTooManyRequests {
		return 0, nil
	}

	header := resp.Header().Get("Retry-After")
	if header == "" {
		return 0, nil
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	if when, err := http.ParseTime(header); err == nil {
		return time.Until(when), nil
	}

	return 0, nil
}

// get issues a single GET. path may be relative to the base url or
// absolute, as returned in a `next` link.
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	logger := zerolog.Ctx(ctx)

	req := c.client.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(path)
	if err != nil {
		logger.Error().Err(err).Str("Path", path).Msg("canalyst request failed")
		return nil, err
	}

	logger.Debug().Str("URL", resp.Request.URL).Int("StatusCode", resp.StatusCode()).
		Dur("Elapsed", resp.Time()).Msg("canalyst request")

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.IsError():
		logger.Error().Int("StatusCode", resp.StatusCode()).Str("Body", truncate(resp.String(), 256)).
			Str("URL", resp.Request.URL).Msg("canalyst api call returned invalid status code")
		return nil, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode(), path)
	}

	return resp.Body(), nil
}

// paginate walks every page of a list endpoint, following `next` until it
// is empty, and calls fn for each element of `results`.
func (c *Client) paginate(ctx context.Context, path string, params map[string]string, fn func(gjson.Result) error) error {
	seen := make(map[string]bool)
	next := path

	for next != "" {
		if seen[next] {
			return fmt.Errorf("%w: %s", ErrPaginationCycle, next)
		}
		seen[next] = true

		body, err := c.get(ctx, next, params)
		if err != nil {
			return err
		}

		for _, row := range gjson.GetBytes(body, "results").Array() {
			if err := fn(row); err != nil {
				return err
			}
		}

		next = gjson.GetBytes(body, "next").String()
		// the next link already carries the query
		params = nil
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
