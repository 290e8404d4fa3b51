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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	hardwareconfig "github.com/scitix/topoplan/config/hardware"
	optionsconfig "github.com/scitix/topoplan/config/options"
	patternconfig "github.com/scitix/topoplan/config/pattern"
	"github.com/scitix/topoplan/internal/topology"
	"github.com/scitix/topoplan/pkg/utils"
)

// NewPlanCmd runs the full init driver once against a hardware description
// and prints the resulting ring/tree channel plan.
func NewPlanCmd() *cobra.Command {
	var optionsFile, patternFile, output string
	var showLog bool

	planCmd := &cobra.Command{
		Use:   "plan <hardware.yaml>",
		Short: "Compute a ring/tree channel plan from a hardware description",
		Long:  "Builds the system, searches for a ring and tree channel plan, and prints a summary or the full plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := hardwareconfig.Load(args[0])
			if err != nil {
				return fmt.Errorf("load hardware description: %w", err)
			}
			scale, err := hardwareconfig.LoadScaleUnit(args[0])
			if err != nil {
				return fmt.Errorf("load scale unit: %w", err)
			}
			opts, err := optionsconfig.Load(optionsFile)
			if err != nil {
				return fmt.Errorf("load options: %w", err)
			}
			registry, err := patternconfig.Load(patternFile)
			if err != nil {
				return fmt.Errorf("load pattern registry: %w", err)
			}

			plan, err := topology.ComputePlan(*desc, scale, opts, registry)
			if err != nil {
				return fmt.Errorf("compute plan: %w", err)
			}

			switch output {
			case "json":
				data, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
			case "yaml":
				data, err := yaml.Marshal(plan)
				if err != nil {
					return err
				}
				cmd.Println(string(data))
			case "", "text":
				printPlanSummary(cmd, desc.Name, plan)
			default:
				return fmt.Errorf("unsupported output format %q (want text, json, or yaml)", output)
			}

			if showLog {
				printDecisionLog(cmd, plan.Log)
			}
			return nil
		},
	}

	planCmd.Flags().StringVar(&optionsFile, "options-file", "", "Path to an option-overrides YAML (default: packaged default)")
	planCmd.Flags().StringVar(&patternFile, "pattern-file", "", "Path to a supplemental pattern-registry YAML (default: packaged default)")
	planCmd.Flags().StringVar(&output, "output", "text", "Output format: text, json, or yaml")
	planCmd.Flags().BoolVar(&showLog, "log", false, "Print the full decision log after the plan")
	return planCmd
}

func printPlanSummary(cmd *cobra.Command, hardwareName string, plan *topology.Plan) {
	utils.PrintTitle(fmt.Sprintf("Plan: %s", hardwareName), "-")
	cmd.Printf("Nodes: %d  Links: %d\n", len(plan.System.Nodes), len(plan.System.Links))
	cmd.Printf("Max bandwidth: %.2f GB/s  Total bandwidth: %.2f GB/s  InterNode: %v\n",
		plan.System.MaxBandwidthGB, plan.System.TotalBandwidthGB, plan.System.InterNode)
	matched := plan.MatchedPatternID
	if matched == "" {
		matched = "none"
	}
	cmd.Printf("Matched pattern: %s\n", matched)
	cmd.Printf("Ring channels: %d (intra=%s inter=%s)\n", len(plan.RingGraph.Channels), plan.RingGraph.IntraLinkType, plan.RingGraph.InterLinkType)
	for _, ch := range plan.RingGraph.Channels {
		cmd.Printf("  channel %d: bandwidth=%.2f GB/s order=%v\n", ch.Index, ch.BandwidthGB, ch.RingOrder)
	}
	cmd.Printf("Tree channels: %d\n", len(plan.TreeGraph.Channels))
	for _, ch := range plan.TreeGraph.Channels {
		cmd.Printf("  channel %d: bandwidth=%.2f GB/s edges=%d\n", ch.Index, ch.BandwidthGB, len(ch.TreeLinks))
	}
}

func printDecisionLog(cmd *cobra.Command, log *topology.DecisionLog) {
	utils.PrintTitle("Decision Log", "-")
	for _, e := range log.Snapshot() {
		cmd.Printf("[%d] %s/%s: %s\n", e.Step, e.Phase, e.Action, e.Rationale)
	}
}
