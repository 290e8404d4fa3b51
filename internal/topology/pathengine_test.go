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

func buildAndComputePaths(t *testing.T, desc HardwareDesc, opts *Options) (*System, *DecisionLog) {
	t.Helper()
	sys, log, err := mustBuildSystem(desc)
	if err != nil {
		t.Fatalf("BuildSystem: %v", err)
	}
	ComputeAllPairsBestPaths(sys, opts, log)
	return sys, log
}

func TestComputeAllPairsBestPathsGPUToGPU(t *testing.T) {
	sys, _ := buildAndComputePaths(t, dgxSM90Desc(), NewDefaultOptions())

	gpu0 := Identity(NodeGPU, 0, "")
	gpu1 := Identity(NodeGPU, 1, "")
	p, ok := sys.PathLookup(gpu0, gpu1)
	if !ok {
		t.Fatalf("no path found from gpu0 to gpu1")
	}
	if p.Type != PathNVL {
		t.Errorf("gpu0->gpu1 path type = %v, want %v (direct NVSwitch hop)", p.Type, PathNVL)
	}
	if p.BandwidthGB <= 0 {
		t.Errorf("gpu0->gpu1 bandwidth = %v, want > 0", p.BandwidthGB)
	}
}

func TestComputeAllPairsBestPathsGPUToNIC(t *testing.T) {
	sys, _ := buildAndComputePaths(t, dgxSM90Desc(), NewDefaultOptions())

	gpu0 := Identity(NodeGPU, 0, "")
	nic0 := Identity(NodeNIC, 0, "")
	p, ok := sys.PathLookup(gpu0, nic0)
	if !ok {
		t.Fatalf("no path found from gpu0 to nic0")
	}
	if p.HopCount <= 0 {
		t.Errorf("gpu0->nic0 hop count = %d, want > 0", p.HopCount)
	}
}

func TestNvbGuardBlocksMultiHopPassthrough(t *testing.T) {
	optsEnabled := NewDefaultOptions()
	sysEnabled, _ := buildAndComputePaths(t, dgxSM90Desc(), optsEnabled)

	optsDisabled := NewDefaultOptions()
	optsDisabled.NvbDisable = true
	sysDisabled, _ := buildAndComputePaths(t, dgxSM90Desc(), optsDisabled)

	gpu0 := Identity(NodeGPU, 0, "")
	gpu1 := Identity(NodeGPU, 1, "")

	pEnabled, ok := sysEnabled.PathLookup(gpu0, gpu1)
	if !ok {
		t.Fatalf("no path with NVB guard enabled")
	}
	pDisabled, ok := sysDisabled.PathLookup(gpu0, gpu1)
	if !ok {
		t.Fatalf("no path with NVB guard disabled")
	}
	// With the guard in place, direct NVSwitch hop is the only route found
	// for adjacent GPUs in this fixture, so both should report PathNVL; the
	// guard's effect is only observable when a multi-hop NVB passthrough
	// would otherwise compete. This asserts both engines agree on the direct
	// case rather than asserting a difference that doesn't exist here.
	if pEnabled.Type != pDisabled.Type {
		t.Errorf("guard enabled path type=%v, disabled path type=%v", pEnabled.Type, pDisabled.Type)
	}
}

func TestTrimUnreachableRemovesIsolatedNode(t *testing.T) {
	sys, log, err := mustBuildSystem(dgxSM90Desc())
	if err != nil {
		t.Fatalf("BuildSystem: %v", err)
	}
	before := len(sys.Nodes)
	sys.Nodes = append(sys.Nodes, Node{Identity: "orphan", Type: NodeNIC, Index: 999})
	sys.Reindex()

	TrimUnreachable(sys, log)

	if len(sys.Nodes) != before {
		t.Errorf("node count after trim = %d, want %d (orphan removed)", len(sys.Nodes), before)
	}
	if sys.NodeByIdentity("orphan") != nil {
		t.Errorf("orphan node still present after trim")
	}
}

func TestUpdateInterNodeFlagSingleServer(t *testing.T) {
	sys, log := buildAndComputePaths(t, dgxSM90Desc(), NewDefaultOptions())
	TrimUnreachable(sys, log)
	ComputeAllPairsBestPaths(sys, NewDefaultOptions(), log)
	UpdateInterNodeFlag(sys)
	if sys.InterNode {
		t.Errorf("single-server fully-connected system should have InterNode = false")
	}
}

func TestPeerProxyUpgradeRespectsDisable(t *testing.T) {
	opts := NewDefaultOptions()
	opts.PxnDisable = true
	sys, log := buildAndComputePaths(t, dgxSM90Desc(), opts)
	found := false
	for _, e := range log.Snapshot() {
		if e.Action == "skip-peer-proxy-upgrade" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a skip-peer-proxy-upgrade decision log entry when pxn-disable is set")
	}
	_ = sys
}
