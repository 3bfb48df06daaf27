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
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/penny-vault/pvkpi/kpi"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrMissingToken  = errors.New("canalyst api token is not set")
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	DefaultBaseURL  = "https://mds.canalyst.com/api"
	DefaultCron     = "0 6 * * *"
	DefaultTimezone = "America/Los_Angeles"
)

type Canalyst struct {
	Token             string        `mapstructure:"token" toml:"token"`
	BaseURL           string        `mapstructure:"base_url" toml:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout" toml:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" toml:"requests_per_second"`
	MaxAttempts       int           `mapstructure:"max_attempts" toml:"max_attempts"`
}

type Paths struct {
	CompanyMappings string `mapstructure:"company_mappings" toml:"company_mappings"`
	KPIMappings     string `mapstructure:"kpi_mappings" toml:"kpi_mappings"`
}

type Export struct {
	Dir              string   `mapstructure:"dir" toml:"dir"`
	Formats          []string `mapstructure:"formats" toml:"formats"`
	ScaleMillions    bool     `mapstructure:"scale_millions" toml:"scale_millions"`
	AnnualPeriods    int      `mapstructure:"annual_periods" toml:"annual_periods"`
	QuarterlyPeriods int      `mapstructure:"quarterly_periods" toml:"quarterly_periods"`
	Upload           bool     `mapstructure:"upload" toml:"upload"`
}

type Schedule struct {
	Cron     string `mapstructure:"cron" toml:"cron"`
	Timezone string `mapstructure:"timezone" toml:"timezone"`
}

type DB struct {
	URL string `mapstructure:"url" toml:"url"`
}

type Healthchecks struct {
	CheckID string `mapstructure:"check_id" toml:"check_id"`
	BaseURL string `mapstructure:"base_url" toml:"base_url"`
	APIURL  string `mapstructure:"api_url" toml:"api_url"`
	APIKey  string `mapstructure:"apikey" toml:"apikey"`
}

type Backblaze struct {
	ApplicationID  string `mapstructure:"application_id" toml:"application_id"`
	ApplicationKey string `mapstructure:"application_key" toml:"application_key"`
	Bucket         string `mapstructure:"bucket" toml:"bucket"`
	Prefix         string `mapstructure:"prefix" toml:"prefix"`
}

type Refresh struct {
	Concurrency int `mapstructure:"concurrency" toml:"concurrency"`
}

// Group is the configuration form of a kpi.Group
type Group struct {
	Name    string   `mapstructure:"name" toml:"name"`
	Metrics []string `mapstructure:"metrics" toml:"metrics"`
	Mode    string   `mapstructure:"mode" toml:"mode"`
}

// Config holds every setting used by pvkpi. It is the only thing other
// packages see of the configuration layer.
type Config struct {
	Canalyst     Canalyst     `mapstructure:"canalyst" toml:"canalyst"`
	Paths        Paths        `mapstructure:"paths" toml:"paths"`
	Export       Export       `mapstructure:"export" toml:"export"`
	Schedule     Schedule     `mapstructure:"schedule" toml:"schedule"`
	DB           DB           `mapstructure:"db" toml:"db"`
	Healthchecks Healthchecks `mapstructure:"healthchecks" toml:"healthchecks"`
	Backblaze    Backblaze    `mapstructure:"backblaze" toml:"backblaze"`
	Refresh      Refresh      `mapstructure:"refresh" toml:"refresh"`
	Groups       []Group      `mapstructure:"groups" toml:"groups"`
}

// SetDefaults registers default values and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("canalyst.base_url", DefaultBaseURL)
	v.SetDefault("canalyst.timeout", 30*time.Second)
	v.SetDefault("canalyst.requests_per_second", 5.0)
	v.SetDefault("canalyst.max_attempts", 3)

	v.SetDefault("paths.company_mappings", filepath.Join("config", "company_mappings.csv"))
	v.SetDefault("paths.kpi_mappings", filepath.Join("config", "kpi_mappings.csv"))

	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.formats", []string{"csv", "json"})
	v.SetDefault("export.scale_millions", true)
	v.SetDefault("export.annual_periods", 5)
	v.SetDefault("export.quarterly_periods", 12)

	v.SetDefault("schedule.cron", DefaultCron)
	v.SetDefault("schedule.timezone", DefaultTimezone)

	v.SetDefault("healthchecks.base_url", "https://hc-ping.com")
	v.SetDefault("healthchecks.api_url", "https://healthchecks.io/api/v3")

	v.SetDefault("refresh.concurrency", 4)

	v.SetEnvPrefix("pvkpi")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindEnv("canalyst.token", "CANALYST_API_TOKEN", "PVKPI_CANALYST_TOKEN"); err != nil {
		log.Panic().Err(err).Msg("BindEnv for canalyst.token failed")
	}
	if err := v.BindEnv("db.url", "PVKPI_DB_URL", "DATABASE_URL"); err != nil {
		log.Panic().Err(err).Msg("BindEnv for db.url failed")
	}
}

// LoadDotEnv loads environment variables from the given files. Missing
// files are ignored and variables already present in the environment are
// not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	existing := make([]string, 0, len(files))
	for _, fn := range files {
		if _, err := os.Stat(fn); err == nil {
			existing = append(existing, fn)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	log.Debug().Strs("Files", existing).Msg("loading environment files")
	return godotenv.Load(existing...)
}

// Load decodes the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return conf, nil
}

// Validate checks the settings needed to talk to the API
func (conf *Config) Validate() error {
	if conf.Canalyst.Token == "" {
		return ErrMissingToken
	}

	if conf.Canalyst.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: canalyst.requests_per_second must be positive", ErrInvalidConfig)
	}

	if conf.Refresh.Concurrency < 1 {
		return fmt.Errorf("%w: refresh.concurrency must be at least 1", ErrInvalidConfig)
	}

	if _, err := conf.KPIGroups(); err != nil {
		return err
	}

	return nil
}

// KPIGroups converts the configured metric groups
func (conf *Config) KPIGroups() ([]kpi.Group, error) {
	groups := make([]kpi.Group, 0, len(conf.Groups))
	for _, group := range conf.Groups {
		if group.Name == "" || len(group.Metrics) == 0 {
			return nil, fmt.Errorf("%w: group %q needs a name and at least one metric", ErrInvalidConfig, group.Name)
		}

		mode, err := kpi.ParseCombineMode(group.Mode)
		if err != nil {
			return nil, fmt.Errorf("%w: group %q: %w", ErrInvalidConfig, group.Name, err)
		}

		groups = append(groups, kpi.Group{
			Name:    group.Name,
			Metrics: group.Metrics,
			Mode:    mode,
		})
	}
	return groups, nil
}

// Location returns the time zone the scheduler runs in
func (conf *Config) Location() (*time.Location, error) {
	tz := conf.Schedule.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	return time.LoadLocation(tz)
}

// HasExport reports whether format is enabled
func (conf *Config) HasExport(format string) bool {
	for _, f := range conf.Export.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}
