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
package refresh_test

import (
	"context"
	"sync"
	"time"

	"github.com/penny-vault/pvkpi/kpi"
	"github.com/penny-vault/pvkpi/refresh"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeJob struct {
	err     error
	tickers []string
	started chan struct{}
	block   chan struct{}
}

func (job *fakeJob) Run(_ context.Context, tickers []string) (*refresh.RunSummary, error) {
	job.tickers = tickers
	if job.block != nil {
		close(job.started)
		<-job.block
	}
	return &refresh.RunSummary{Companies: 1, Refreshed: []string{"ANF"}, Report: &kpi.Report{}}, job.err
}

type fakePinger struct {
	mu    sync.Mutex
	pings []string
}

func (pinger *fakePinger) record(kind string) error {
	pinger.mu.Lock()
	defer pinger.mu.Unlock()
	pinger.pings = append(pinger.pings, kind)
	return nil
}

func (pinger *fakePinger) Start(context.Context) error {
	return pinger.record("start")
}

func (pinger *fakePinger) Success(_ context.Context, _ string) error {
	return pinger.record("success")
}

func (pinger *fakePinger) Fail(_ context.Context, msg string) error {
	return pinger.record("fail: " + msg)
}

var _ = Describe("Scheduler", func() {
	It("rejects an invalid schedule", func() {
		_, err := refresh.NewScheduler(&fakeJob{}, "not a schedule", time.UTC, nil)
		Expect(err).To(HaveOccurred())
	})

	It("pings start and success around a run", func() {
		job := &fakeJob{}
		pinger := &fakePinger{}
		scheduler, err := refresh.NewScheduler(job, "0 6 * * *", time.UTC, []string{"ANF"})
		Expect(err).NotTo(HaveOccurred())
		scheduler.WithHealthcheck(pinger)

		summary, err := scheduler.RunNow(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Refreshed).To(Equal([]string{"ANF"}))
		Expect(job.tickers).To(Equal([]string{"ANF"}))
		Expect(pinger.pings).To(Equal([]string{"start", "success"}))
	})

	It("pings fail when the run fails", func() {
		job := &fakeJob{err: refresh.ErrAllFailed}
		pinger := &fakePinger{}
		scheduler, err := refresh.NewScheduler(job, "@daily", time.UTC, nil)
		Expect(err).NotTo(HaveOccurred())
		scheduler.WithHealthcheck(pinger)

		_, err = scheduler.RunNow(context.Background())
		Expect(err).To(MatchError(refresh.ErrAllFailed))
		Expect(pinger.pings).To(HaveLen(2))
		Expect(pinger.pings[1]).To(HavePrefix("fail: every company failed to refresh"))
	})

	It("does not overlap runs", func() {
		job := &fakeJob{started: make(chan struct{}), block: make(chan struct{})}
		scheduler, err := refresh.NewScheduler(job, "0 6 * * *", time.UTC, nil)
		Expect(err).NotTo(HaveOccurred())

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			_, err := scheduler.RunNow(context.Background())
			Expect(err).NotTo(HaveOccurred())
		}()

		Eventually(job.started).Should(BeClosed())
		_, err = scheduler.RunNow(context.Background())
		Expect(err).To(MatchError(refresh.ErrAlreadyRunning))

		close(job.block)
		Eventually(done).Should(BeClosed())
	})

	It("computes the next run once started", func() {
		scheduler, err := refresh.NewScheduler(&fakeJob{}, "0 6 * * *", time.UTC, nil)
		Expect(err).NotTo(HaveOccurred())

		scheduler.Start(context.Background())
		defer scheduler.Stop()

		Eventually(scheduler.Next).ShouldNot(BeZero())
		next := scheduler.Next().In(time.UTC)
		Expect(next.Hour()).To(Equal(6))
		Expect(next.Minute()).To(BeZero())
	})
})
