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
package backblaze_test

import (
	"github.com/penny-vault/pvkpi/backblaze"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Upload", func() {
	It("needs credentials and a bucket", func() {
		Expect(backblaze.Config{}.Enabled()).To(BeFalse())
		Expect(backblaze.Config{ApplicationID: "id", ApplicationKey: "key"}.Enabled()).To(BeFalse())
		Expect(backblaze.Config{ApplicationID: "id", ApplicationKey: "key", Bucket: "kpis"}.Enabled()).To(BeTrue())

		Expect(backblaze.Upload(backblaze.Config{}, "a.csv")).To(MatchError(backblaze.ErrNotConfigured))
	})

	It("places files under the prefix", func() {
		conf := backblaze.Config{Prefix: "daily/2025-01-02"}
		Expect(conf.ObjectName("/tmp/out/ANF.csv")).To(Equal("daily/2025-01-02/ANF.csv"))

		conf.Prefix = ""
		Expect(conf.ObjectName("/tmp/out/ANF.csv")).To(Equal("ANF.csv"))
	})
})
