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
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scitix/topoplan/consts"
	"github.com/scitix/topoplan/metrics"
	pkgsystemd "github.com/scitix/topoplan/pkg/systemd"
	"github.com/scitix/topoplan/pkg/utils"
	"github.com/scitix/topoplan/service"
	"github.com/scitix/topoplan/systemd"
)

// NewServeCmd starts the long-lived watch of a hardware-description file,
// recomputing and exporting a Plan every time it changes, and serves the
// resulting gauges on the metrics port (spec.md's engine is called once per
// tick; serve never shares mutable engine state across ticks).
func NewServeCmd() *cobra.Command {
	var hardwareFile, optionsFile, patternFile, logFile, metricsFile string
	var jsonLog bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch a hardware description and serve its plan as metrics",
		Long:  "Recomputes the topology plan whenever the hardware-description file changes and exposes the result as Prometheus gauges",
		RunE: func(cmd *cobra.Command, args []string) error {
			if hardwareFile == "" {
				return cmd.Help()
			}
			utils.InitLoggerWithConfig(logrus.InfoLevel, jsonLog, utils.LogConfig{
				LogFile:            logFile,
				AlsoOutputToStdout: true,
			})
			svc, err := service.NewService(hardwareFile, optionsFile, patternFile)
			if err != nil {
				return err
			}
			svc.Run()

			go metrics.InitPrometheus(metrics.LoadPort(metricsFile))

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, service.AllowedSignals...)
			serverC := make(chan service.Service, 1)
			_, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := service.HandleSignals(cancel, signals, serverC)
			serverC <- svc

			if exist, _ := pkgsystemd.SystemctlExists(); exist {
				if err := service.NotifyReady(); err != nil {
					logrus.WithField("serve", "run").Warnf("systemd notify-ready failed: %v", err)
				}
			}

			<-done
			return nil
		},
	}
	serveCmd.Flags().StringVar(&hardwareFile, "hardware-file", "", "Path to the hardware description YAML to watch")
	serveCmd.Flags().StringVar(&optionsFile, "options-file", "", "Path to an option-overrides YAML (default: packaged default)")
	serveCmd.Flags().StringVar(&patternFile, "pattern-file", "", "Path to a supplemental pattern-registry YAML (default: packaged default)")
	serveCmd.Flags().StringVar(&logFile, "log-file", "", "Path to a rotated log file (stdout only if empty)")
	serveCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Path to a metrics-port override YAML (default: packaged default)")
	serveCmd.Flags().BoolVar(&jsonLog, "json-log", false, "Emit logs as JSON instead of text")

	serveCmd.AddCommand(newServeInstallCmd())
	serveCmd.AddCommand(newServeStopCmd())
	serveCmd.AddCommand(newServeRestartCmd())
	return serveCmd
}

// newServeInstallCmd installs and enables the topoplan systemd unit so that
// `systemctl start topoplan` runs `topoplan serve` under Type=notify.
func newServeInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install and enable the topoplan systemd unit",
		Run: func(cmd *cobra.Command, args []string) {
			if exist, _ := pkgsystemd.SystemctlExists(); !exist {
				logrus.WithField("serve", "install").Error("topoplan serve install requires systemd")
				return
			}
			if !utils.IsRoot() {
				logrus.WithField("serve", "install").Error("topoplan serve install requires root to manage systemd")
				return
			}
			if !systemd.DefaultBinExists() {
				logrus.WithField("serve", "install").Errorf("topoplan binary not found at %s", systemd.DefaultBinPath)
				return
			}
			if err := systemd.CreateDefaultEnvFile(); err != nil {
				logrus.WithField("serve", "install").Errorf("failed to create systemd env file: %v", err)
				return
			}
			if err := os.WriteFile(systemd.DefaultUnitFile, []byte(systemd.TopoplanService), 0644); err != nil {
				logrus.WithField("serve", "install").Errorf("failed to write systemd unit file: %v", err)
				return
			}
			if err := systemd.LogrotateInit(); err != nil {
				logrus.WithField("serve", "install").Errorf("failed to initialize logrotate: %v", err)
				return
			}
			if err := pkgsystemd.EnableSystemdService(consts.ServiceName); err != nil {
				logrus.WithField("serve", "install").Errorf("failed to enable %s: %v", consts.ServiceName, err)
				return
			}
			if err := pkgsystemd.RestartSystemdService(consts.ServiceName); err != nil {
				logrus.WithField("serve", "install").Errorf("failed to start %s: %v", consts.ServiceName, err)
				return
			}
			logrus.WithField("serve", "install").Info("topoplan service installed and started")
		},
	}
}

func newServeStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop and disable the topoplan systemd unit",
		Run: func(cmd *cobra.Command, args []string) {
			if !utils.IsRoot() {
				logrus.WithField("serve", "stop").Error("topoplan serve stop requires root")
				return
			}
			if exist, _ := pkgsystemd.SystemctlExists(); !exist {
				logrus.WithField("serve", "stop").Error("systemd not present")
				return
			}
			active, err := pkgsystemd.IsActive(consts.ServiceName)
			if err != nil {
				logrus.WithField("serve", "stop").Error(err)
				return
			}
			if !active {
				logrus.WithField("serve", "stop").Info("topoplan service is not running")
				return
			}
			if err := pkgsystemd.StopSystemdService(consts.ServiceName); err != nil {
				logrus.WithField("serve", "stop").Error(err)
				return
			}
			if err := pkgsystemd.DisableSystemdService(consts.ServiceName); err != nil {
				logrus.WithField("serve", "stop").Error(err)
				return
			}
			logrus.WithField("serve", "stop").Info("topoplan service stopped")
		},
	}
}

func newServeRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the topoplan systemd unit after a binary or unit-file update",
		Run: func(cmd *cobra.Command, args []string) {
			if exist, _ := pkgsystemd.SystemctlExists(); !exist {
				logrus.WithField("serve", "restart").Error("topoplan serve restart requires systemd")
				return
			}
			if !utils.IsRoot() {
				logrus.WithField("serve", "restart").Error("topoplan serve restart requires root")
				return
			}
			if err := os.WriteFile(systemd.DefaultUnitFile, []byte(systemd.TopoplanService), 0644); err != nil {
				logrus.WithField("serve", "restart").Errorf("failed to refresh systemd unit file: %v", err)
				return
			}
			if err := pkgsystemd.RestartSystemdService(consts.ServiceName); err != nil {
				logrus.WithField("serve", "restart").Errorf("failed to restart %s: %v", consts.ServiceName, err)
				return
			}
			logrus.WithField("serve", "restart").Info("topoplan service restarted")
		},
	}
}
