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
package healthcheck_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/penny-vault/pvkpi/healthcheck"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recorder struct {
	mu     sync.Mutex
	paths  []string
	bodies []string
	status int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.bodies = append(r.bodies, string(body))
	status := r.status
	r.mu.Unlock()
	w.WriteHeader(status)
	_, _ = w.Write([]byte("OK"))
}

var _ = Describe("Check", func() {
	var (
		rec    *recorder
		server *httptest.Server
		ctx    context.Context
	)

	BeforeEach(func() {
		rec = &recorder{status: http.StatusOK}
		server = httptest.NewServer(rec)
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	It("pings start, success and fail endpoints", func() {
		check := healthcheck.New(healthcheck.Config{CheckID: "abc", BaseURL: server.URL + "/"})

		Expect(check.Start(ctx)).To(Succeed())
		Expect(check.Success(ctx, "120 companies")).To(Succeed())
		Expect(check.Fail(ctx, "boom")).To(Succeed())

		Expect(rec.paths).To(Equal([]string{"/abc/start", "/abc", "/abc/fail"}))
		Expect(rec.bodies).To(Equal([]string{"", "120 companies", "boom"}))
	})

	It("does nothing without a check id", func() {
		check := healthcheck.New(healthcheck.Config{BaseURL: server.URL})
		Expect(check.Start(ctx)).To(Succeed())
		Expect(rec.paths).To(BeEmpty())
	})

	It("reports a rejected ping", func() {
		rec.status = http.StatusNotFound
		check := healthcheck.New(healthcheck.Config{CheckID: "abc", BaseURL: server.URL})
		err := check.Success(ctx, "")
		Expect(errors.Is(err, healthcheck.ErrStatus)).To(BeTrue())
	})

	It("requires an api key to create checks", func() {
		_, err := healthcheck.Create(healthcheck.Config{APIURL: server.URL}, "pvkpi", "pvkpi", nil, "0 6 * * *", "UTC")
		Expect(errors.Is(err, healthcheck.ErrMissingAPIKey)).To(BeTrue())
	})

	It("requires a check id to pause or resume", func() {
		err := healthcheck.Pause(healthcheck.Config{APIURL: server.URL, APIKey: "key"})
		Expect(errors.Is(err, healthcheck.ErrMissingCheck)).To(BeTrue())
	})

	It("pauses and resumes a check", func() {
		conf := healthcheck.Config{APIURL: server.URL + "/api/v3", APIKey: "key", CheckID: "abc"}
		Expect(healthcheck.Pause(conf)).To(Succeed())
		Expect(healthcheck.Resume(conf)).To(Succeed())
		Expect(rec.paths).To(Equal([]string{"/api/v3/checks/abc/pause", "/api/v3/checks/abc/resume"}))
	})

	It("creates a check and returns its id", func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/checks/", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Header.Get("X-Api-Key")).To(Equal("key"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ping_url": "https://hc-ping.com/f618072a"}`))
		})
		api := httptest.NewServer(mux)
		defer api.Close()

		id, err := healthcheck.Create(healthcheck.Config{APIURL: api.URL, APIKey: "key"}, "pvkpi", "pvkpi", []string{"kpi"}, "0 6 * * *", "UTC")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("f618072a"))
	})
})
