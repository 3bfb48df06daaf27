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
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/penny-vault/pvkpi/healthcheck"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is anything the scheduler can run; *Runner is the usual one
type Job interface {
	Run(ctx context.Context, tickers []string) (*RunSummary, error)
}

// Pinger receives job lifecycle notifications
type Pinger interface {
	Start(ctx context.Context) error
	Success(ctx context.Context, msg string) error
	Fail(ctx context.Context, msg string) error
}

var _ Pinger = (*healthcheck.Check)(nil)

// Scheduler runs a job on a cron schedule. Runs never overlap; a run that
// is due while another is in progress is skipped.
type Scheduler struct {
	job     Job
	pinger  Pinger
	tickers []string
	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewScheduler parses spec (standard five field cron) in loc
func NewScheduler(job Job, spec string, loc *time.Location, tickers []string) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}

	scheduler := &Scheduler{
		job:     job,
		tickers: tickers,
		cron:    cron.New(cron.WithLocation(loc)),
	}

	entryID, err := scheduler.cron.AddFunc(spec, scheduler.fire)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	scheduler.entryID = entryID

	return scheduler, nil
}

// WithHealthcheck sends start/success/fail pings for every run
func (scheduler *Scheduler) WithHealthcheck(pinger Pinger) *Scheduler {
	scheduler.pinger = pinger
	return scheduler
}

// Start begins running the job on schedule
func (scheduler *Scheduler) Start(ctx context.Context) {
	scheduler.mu.Lock()
	scheduler.ctx, scheduler.cancel = context.WithCancel(ctx)
	scheduler.mu.Unlock()

	scheduler.cron.Start()
	log.Info().Time("NextRun", scheduler.Next()).Msg("scheduler started")
}

// Stop cancels any run in progress and waits for it to return
func (scheduler *Scheduler) Stop() {
	scheduler.mu.Lock()
	if scheduler.cancel != nil {
		scheduler.cancel()
	}
	scheduler.mu.Unlock()

	<-scheduler.cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// Next is the time of the next scheduled run
func (scheduler *Scheduler) Next() time.Time {
	return scheduler.cron.Entry(scheduler.entryID).Next
}

func (scheduler *Scheduler) fire() {
	scheduler.mu.Lock()
	ctx := scheduler.ctx
	scheduler.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := scheduler.RunNow(ctx); err != nil {
		log.Error().Err(err).Msg("scheduled refresh failed")
	}

	log.Info().Time("NextRun", scheduler.Next()).Msg("waiting for next scheduled refresh")
}

// RunNow runs the job immediately, outside of the schedule
func (scheduler *Scheduler) RunNow(ctx context.Context) (*RunSummary, error) {
	scheduler.mu.Lock()
	if scheduler.running {
		scheduler.mu.Unlock()
		log.Warn().Msg("refresh already in progress; skipping")
		return nil, ErrAlreadyRunning
	}
	scheduler.running = true
	scheduler.mu.Unlock()

	defer func() {
		scheduler.mu.Lock()
		scheduler.running = false
		scheduler.mu.Unlock()
	}()

	if scheduler.pinger != nil {
		if err := scheduler.pinger.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("healthcheck start ping failed")
		}
	}

	summary, err := scheduler.job.Run(ctx, scheduler.tickers)

	if scheduler.pinger != nil {
		var pingErr error
		switch {
		case err != nil:
			msg := err.Error()
			if summary != nil && summary.Report != nil {
				msg = fmt.Sprintf("%s\n%s", msg, summary.Message())
			}
			pingErr = scheduler.pinger.Fail(ctx, msg)
		default:
			pingErr = scheduler.pinger.Success(ctx, summary.Message())
		}

		if pingErr != nil {
			log.Warn().Err(pingErr).Msg("healthcheck ping failed")
		}
	}

	return summary, err
}
