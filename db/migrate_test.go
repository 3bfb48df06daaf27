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
package db_test

import (
	"github.com/penny-vault/pvkpi/db"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Migrate", func() {
	DescribeTable("MigrateURL",
		func(in, out string) {
			Expect(db.MigrateURL(in)).To(Equal(out))
		},
		Entry("postgres scheme", "postgres://u:p@localhost:5432/kpi", "pgx5://u:p@localhost:5432/kpi"),
		Entry("postgresql scheme", "postgresql://localhost/kpi?sslmode=disable", "pgx5://localhost/kpi?sslmode=disable"),
		Entry("already rewritten", "pgx5://localhost/kpi", "pgx5://localhost/kpi"),
	)
})
