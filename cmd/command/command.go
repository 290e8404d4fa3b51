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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates and returns the root command (topoplan command)
// instance, configures basic usage information, and adds subcommands.
func NewRootCmd() *cobra.Command {
	cobra.OnInitialize(initConfig)
	rootCmd := &cobra.Command{
		Use:   "topoplan",
		Short: "Collective-communication topology planner",
		Long:  "A command-line tool that derives ring/tree channel plans for GPU cluster collectives from a hardware description",
	}

	rootCmd.AddCommand(NewPlanCmd())
	rootCmd.AddCommand(NewValidateCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewVersionCmd())
	return rootCmd
}

// initConfig loads ~/.topoplan/config.yaml, if present, for settings other
// than the hardware description itself, which is always an explicit file
// argument. Absence of the file is not an error: every subcommand works from
// flags and packaged defaults alone.
func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.topoplan")

	viper.SetEnvPrefix("topoplan")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "[WARN] failed to read config file: %v\n", err)
		}
	}
}
