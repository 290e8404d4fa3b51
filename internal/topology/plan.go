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
package topology

import "fmt"

// Plan is the immutable output of one init-driver invocation (spec.md §6).
type Plan struct {
	System          *System
	RingGraph       TopoGraph
	TreeGraph       TopoGraph
	Log             *DecisionLog
	MatchedPatternID string
}

// ComputePlan computes a full topology plan from a hardware description, optional
// scale-unit description, and options, orchestrating
// build -> path compute -> trim -> path compute -> (pattern match | search)
// -> tree search -> channel setup (spec.md §4.G).
func ComputePlan(desc HardwareDesc, scale *ScaleUnit, opts *Options, registry []HardwarePattern) (*Plan, error) {
	log := NewDecisionLog()
	log.Append(PhaseSearchInit, "plan-init",
		fmt.Sprintf("hardware=%q gpu.count=%d cpu.count=%d nic.count=%d", desc.Name, desc.GPU.Count, desc.CPU.Count, desc.NIC.Count),
		nil, "spec.md §4.G step 1", nil)

	sys, err := BuildSystem(desc, scale, log)
	if err != nil {
		return nil, err
	}

	if scale != nil && scale.ServerCount > 1 {
		log.Append(PhaseSearchInit, "multi-node-fast-path",
			"multi-server system: deferring path computation and search to a per-server filtered view",
			nil, "spec.md §4.G step 3 / §4.C", nil)
		return &Plan{
			System:    sys,
			RingGraph: TopoGraph{Pattern: PatternRing},
			TreeGraph: TopoGraph{Pattern: PatternBalancedTree},
			Log:       log,
		}, nil
	}

	ComputeAllPairsBestPaths(sys, opts, log)
	TrimUnreachable(sys, log)
	ComputeAllPairsBestPaths(sys, opts, log)
	UpdateInterNodeFlag(sys)

	minChannels, maxChannels := opts.ResolveChannelBounds()
	log.Append(PhaseSearchInit, "resolve-channel-bounds",
		fmt.Sprintf("minChannels=%d maxChannels=%d", minChannels, maxChannels),
		nil, "spec.md §4.G step 5", map[string]interface{}{"minChannels": minChannels, "maxChannels": maxChannels})

	var ringGraph TopoGraph
	matchedID := ""
	matched := false

	if desc.GPU.Type == GPUTypeAMD && !opts.ModelMatchDisable {
		if id, graph, ok := MatchPattern(sys, opts, registry, log); ok {
			ringGraph = graph
			matchedID = id
			matched = true
		}
	}

	if !matched {
		ringMaxChannels := maxChannels / 2
		if ringMaxChannels < 1 {
			ringMaxChannels = 1
		}
		ringGraph = SearchRingGraph(sys, opts, minChannels, ringMaxChannels, log)
		RunRingSetup(&ringGraph)
	}

	treeMinChannels := 1
	treeMaxChannels := len(ringGraph.Channels)
	if treeMaxChannels < 1 {
		treeMaxChannels = 1
	}
	treeSearchGraph := SearchTreeGraph(sys, opts, treeMinChannels, treeMaxChannels, log)

	var overridden *TopoGraph
	if len(treeSearchGraph.Channels) > 0 {
		overridden = &treeSearchGraph
	}
	finalTreeGraph := DoubleTreeChannels(ringGraph, overridden)

	log.Append(PhaseChannelSetup, "channel-setup-complete",
		fmt.Sprintf("ringChannels=%d treeChannels=%d", len(ringGraph.Channels), len(finalTreeGraph.Channels)),
		nil, "spec.md §4.G step 9", map[string]interface{}{
			"ringChannels": len(ringGraph.Channels),
			"treeChannels": len(finalTreeGraph.Channels),
		})

	plan := &Plan{
		System:    sys,
		RingGraph: ringGraph,
		TreeGraph: finalTreeGraph,
		Log:       log,
	}
	if matched {
		plan.MatchedPatternID = matchedID
	}
	return plan, nil
}

