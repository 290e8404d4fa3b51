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

import "testing"

func TestComputePlanDGXSM90ProducesRingAndTree(t *testing.T) {
	plan, err := ComputePlan(dgxSM90Desc(), nil, NewDefaultOptions(), DefaultRegistry())
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	if len(plan.RingGraph.Channels) == 0 {
		t.Errorf("expected at least one ring channel")
	}
	if len(plan.TreeGraph.Channels) == 0 {
		t.Errorf("expected at least one tree channel")
	}
	if len(plan.TreeGraph.Channels) != 2*len(plan.RingGraph.Channels) {
		t.Errorf("tree channels = %d, want 2x ring channels (%d)", len(plan.TreeGraph.Channels), 2*len(plan.RingGraph.Channels))
	}
	if plan.Log.Len() == 0 {
		t.Errorf("expected a non-empty decision log")
	}
}

func TestComputePlanMI300XMatchesPattern(t *testing.T) {
	plan, err := ComputePlan(mi300xDesc(), nil, NewDefaultOptions(), DefaultRegistry())
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	if plan.MatchedPatternID == "" {
		t.Errorf("expected an AMD xGMI system to match a registry pattern or structural detector")
	}
}

func TestComputePlanRejectsInvalidDesc(t *testing.T) {
	desc := dgxSM90Desc()
	desc.NumaMapping = nil
	_, err := ComputePlan(desc, nil, NewDefaultOptions(), DefaultRegistry())
	if err == nil {
		t.Fatalf("expected error for empty numaMapping")
	}
}

func TestComputePlanMultiServerFastPath(t *testing.T) {
	scale := &ScaleUnit{ServerCount: 2, RailCount: 8, NetworkType: NetworkRailOptimized}
	plan, err := ComputePlan(dgxSM90Desc(), scale, NewDefaultOptions(), DefaultRegistry())
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	if len(plan.RingGraph.Channels) != 0 || len(plan.TreeGraph.Channels) != 0 {
		t.Errorf("multi-server fast path should defer search: got ring=%d tree=%d channels", len(plan.RingGraph.Channels), len(plan.TreeGraph.Channels))
	}
	if !plan.System.InterNode {
		t.Errorf("multi-server system should have InterNode = true")
	}
}

func TestIsAMDGPUSystemDetectsXGMIMesh(t *testing.T) {
	desc := mi300xDesc()
	if desc.GPU.Type != GPUTypeAMD {
		t.Errorf("expected mi300x to be recognized as an AMD GPU fabric")
	}
}

func TestIsAMDGPUSystemRejectsNVSwitchSystem(t *testing.T) {
	desc := dgxSM90Desc()
	if desc.GPU.Type == GPUTypeAMD {
		t.Errorf("NVSwitch-based NVIDIA system should not be recognized as an AMD GPU fabric")
	}
}

// TestIsAMDGPUSystemRejectsNVIDIANvlinkMesh guards against the topology-shape
// heuristic this check used to use: a direct GPU-GPU NVLink mesh with no
// NVSwitches is indistinguishable from an xGMI mesh by link shape alone, but
// a100NvlinkMeshDesc is still GPUTypeNVIDIA and must not take the AMD path.
func TestIsAMDGPUSystemRejectsNVIDIANvlinkMesh(t *testing.T) {
	desc := a100NvlinkMeshDesc()
	if desc.GPU.Type == GPUTypeAMD {
		t.Errorf("NVLink-mesh NVIDIA system should not be recognized as an AMD GPU fabric")
	}
	sys, _, err := mustBuildSystem(desc)
	if err != nil {
		t.Fatalf("BuildSystem: %v", err)
	}
	if len(sys.NodesOfType(NodeNVSwitch)) != 0 {
		t.Fatalf("fixture should have no NVSwitch nodes")
	}
	gpus := sys.NodesOfType(NodeGPU)
	for _, g := range gpus {
		count := 0
		for _, li := range sys.AdjacentLinks(g) {
			if sys.Links[li].Type == LinkNVL {
				count++
			}
		}
		if count != len(gpus)-1 {
			t.Fatalf("expected full NVLink mesh shape identical to the xGMI case, got %d/%d links for gpu %s", count, len(gpus)-1, g)
		}
	}
	plan, err := ComputePlan(desc, nil, NewDefaultOptions(), DefaultRegistry())
	if err != nil {
		t.Fatalf("ComputePlan: %v", err)
	}
	if plan.MatchedPatternID != "" {
		t.Errorf("NVIDIA NVLink-mesh system should not be routed through the AMD pattern-match gate, got matched pattern %q", plan.MatchedPatternID)
	}
}
