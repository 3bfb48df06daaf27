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
package cmd

import (
	"fmt"
	"strings"

	"github.com/penny-vault/pvkpi/pkginfo"
	"github.com/spf13/cobra"
)

var (
	versionDeps  bool
	versionShort bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pvkpi build and the user agent it sends to Canalyst",
	Run: func(cmd *cobra.Command, args []string) {
		var depList []string
		if versionDeps {
			depList = pkginfo.GetDependencyList()
		}
		fmt.Fprintln(cmd.OutOrStdout(), versionText(versionShort, depList))
	},
}

func versionText(short bool, depList []string) string {
	var sb strings.Builder
	if short {
		sb.WriteString(pkginfo.Version)
	} else {
		sb.WriteString(pkginfo.BuildVersionString())
		sb.WriteString("\nUser Agent: ")
		sb.WriteString(pkginfo.UserAgent())
	}

	if len(depList) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(strings.Join(depList, "\n"))
	}

	return sb.String()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionDeps, "deps", "d", false, "also list linked module versions")
	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "only print the version number")
}
