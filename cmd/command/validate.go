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

	"github.com/spf13/cobra"

	hardwareconfig "github.com/scitix/topoplan/config/hardware"
	"github.com/scitix/topoplan/internal/topology"
)

// NewValidateCmd builds the system from a hardware description without
// running path computation or channel search, reporting any invalid-config
// errors the builder raises.
func NewValidateCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate <hardware.yaml>",
		Short: "Check that a hardware description builds a consistent system",
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

			log := topology.NewDecisionLog()
			sys, err := topology.BuildSystem(*desc, scale, log)
			if err != nil {
				return err
			}

			cmd.Printf("%s: valid (nodes=%d links=%d)\n", desc.Name, len(sys.Nodes), len(sys.Links))
			return nil
		},
	}
	return validateCmd
}
