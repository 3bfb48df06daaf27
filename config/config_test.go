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
package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/penny-vault/pvkpi/config"
	"github.com/penny-vault/pvkpi/kpi"
	"github.com/spf13/viper"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const sampleConfig = `
[canalyst]
token = "abc123"
timeout = "10s"
requests_per_second = 2.5

[export]
dir = "/tmp/out"
formats = ["csv", "parquet", "XLSX"]

[schedule]
timezone = "America/New_York"

[[groups]]
name = "Total Stores"
metrics = ["Stores US", "Stores EU"]
mode = "sum-available"

[[groups]]
name = "Revenue"
metrics = ["Revenue A", "Revenue B"]
`

var _ = Describe("Config", func() {
	var v *viper.Viper

	BeforeEach(func() {
		v = viper.New()
		config.SetDefaults(v)
		v.SetConfigType("toml")
	})

	It("fills in defaults", func() {
		conf, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())

		Expect(conf.Canalyst.BaseURL).To(Equal(config.DefaultBaseURL))
		Expect(conf.Canalyst.Timeout).To(Equal(30 * time.Second))
		Expect(conf.Canalyst.RequestsPerSecond).To(Equal(5.0))
		Expect(conf.Canalyst.MaxAttempts).To(Equal(3))
		Expect(conf.Schedule.Cron).To(Equal("0 6 * * *"))
		Expect(conf.Schedule.Timezone).To(Equal("America/Los_Angeles"))
		Expect(conf.Refresh.Concurrency).To(Equal(4))
		Expect(conf.Export.AnnualPeriods).To(Equal(5))
		Expect(conf.Export.QuarterlyPeriods).To(Equal(12))
	})

	It("reads a toml document", func() {
		Expect(v.ReadConfig(strings.NewReader(sampleConfig))).To(Succeed())

		conf, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(conf.Canalyst.Token).To(Equal("abc123"))
		Expect(conf.Canalyst.Timeout).To(Equal(10 * time.Second))
		Expect(conf.Canalyst.RequestsPerSecond).To(Equal(2.5))
		Expect(conf.Export.Dir).To(Equal("/tmp/out"))
		Expect(conf.HasExport("xlsx")).To(BeTrue())
		Expect(conf.HasExport("json")).To(BeFalse())
		Expect(conf.Validate()).To(Succeed())

		loc, err := conf.Location()
		Expect(err).NotTo(HaveOccurred())
		Expect(loc.String()).To(Equal("America/New_York"))
	})

	It("converts metric groups", func() {
		Expect(v.ReadConfig(strings.NewReader(sampleConfig))).To(Succeed())
		conf, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())

		groups, err := conf.KPIGroups()
		Expect(err).NotTo(HaveOccurred())
		Expect(groups).To(HaveLen(2))
		Expect(groups[0].Name).To(Equal("Total Stores"))
		Expect(groups[0].Metrics).To(Equal([]string{"Stores US", "Stores EU"}))
		Expect(groups[0].Mode).To(Equal(kpi.SumAvailable))
		Expect(groups[1].Mode).To(Equal(kpi.Strict))
	})

	It("rejects a group with an unknown mode", func() {
		conf := &config.Config{
			Canalyst: config.Canalyst{Token: "x", RequestsPerSecond: 1},
			Refresh:  config.Refresh{Concurrency: 1},
			Groups:   []config.Group{{Name: "g", Metrics: []string{"a"}, Mode: "average"}},
		}
		Expect(conf.Validate()).To(MatchError(config.ErrInvalidConfig))
	})

	It("requires a token", func() {
		conf, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())
		conf.Canalyst.Token = ""
		Expect(conf.Validate()).To(MatchError(config.ErrMissingToken))
	})

	It("reads the token from CANALYST_API_TOKEN", func() {
		GinkgoT().Setenv("CANALYST_API_TOKEN", "from-env")

		conf, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(conf.Canalyst.Token).To(Equal("from-env"))
	})

	It("loads variables from a .env file without overriding the environment", func() {
		dir := GinkgoT().TempDir()
		fn := filepath.Join(dir, ".env")
		Expect(os.WriteFile(fn, []byte("PVKPI_TEST_ONE=dotenv\nPVKPI_TEST_TWO=dotenv\n"), 0644)).To(Succeed())

		GinkgoT().Setenv("PVKPI_TEST_TWO", "shell")
		GinkgoT().Setenv("PVKPI_TEST_ONE", "")
		Expect(os.Unsetenv("PVKPI_TEST_ONE")).To(Succeed())

		Expect(config.LoadDotEnv(fn, filepath.Join(dir, "missing.env"))).To(Succeed())
		Expect(os.Getenv("PVKPI_TEST_ONE")).To(Equal("dotenv"))
		Expect(os.Getenv("PVKPI_TEST_TWO")).To(Equal("shell"))
	})
})
