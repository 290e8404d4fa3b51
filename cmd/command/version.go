/*
Copyright 2024 The Scitix Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package command

import (
	"log"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scitix/topoplan/consts"
)

// NewVersionCmd creates and returns the version subcommand instance.
func NewVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print the version number of topoplan",
		Long:    "All software has versions. This is topoplan's",
		Run: func(cmd *cobra.Command, args []string) {
			gitCommit := getGitCommit()
			goVersion := getGoVersion()
			cmd.Printf("Version: %s\nGit Commit: %s\nGo Version: %s\n", consts.DefaultVersion, gitCommit, goVersion)
		},
	}
	return versionCmd
}

func getGitCommitWithShell() string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		log.Printf("failed to get HEAD by `git rev-parse HEAD`: %v", err)
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

func getGitCommit() string {
	return getGitCommitWithShell()
}

func getGoVersion() string {
	return runtime.Version()
}
