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

func preparedSystem(t *testing.T, desc HardwareDesc) (*System, *DecisionLog) {
	t.Helper()
	sys, log, err := mustBuildSystem(desc)
	if err != nil {
		t.Fatalf("BuildSystem: %v", err)
	}
	opts := NewDefaultOptions()
	ComputeAllPairsBestPaths(sys, opts, log)
	TrimUnreachable(sys, log)
	ComputeAllPairsBestPaths(sys, opts, log)
	UpdateInterNodeFlag(sys)
	return sys, log
}

func TestSearchRingGraphFindsHamiltonianCycle(t *testing.T) {
	sys, log := preparedSystem(t, dgxSM90Desc())
	opts := NewDefaultOptions()
	graph := SearchRingGraph(sys, opts, 1, 4, log)

	if len(graph.Channels) == 0 {
		t.Fatalf("expected at least one ring channel, got none")
	}
	gpuCount := len(sys.NodesOfType(NodeGPU))
	for _, ch := range graph.Channels {
		if len(ch.RingOrder) != gpuCount {
			t.Errorf("channel %d ring order length = %d, want %d", ch.Index, len(ch.RingOrder), gpuCount)
		}
		seen := map[string]bool{}
		for _, g := range ch.RingOrder {
			if seen[g] {
				t.Errorf("channel %d visits GPU %s twice", ch.Index, g)
			}
			seen[g] = true
		}
		if len(seen) != gpuCount {
			t.Errorf("channel %d visits %d distinct GPUs, want %d", ch.Index, len(seen), gpuCount)
		}
	}
}

func TestSearchTreeGraphMatchesMinMaxChannels(t *testing.T) {
	sys, log := preparedSystem(t, dgxSM90Desc())
	opts := NewDefaultOptions()
	graph := SearchTreeGraph(sys, opts, 1, 2, log)
	if len(graph.Channels) > 2 {
		t.Errorf("tree search returned %d channels, want <= 2 (maxChannels)", len(graph.Channels))
	}
}

func TestBuildTreeFromRingLinearChain(t *testing.T) {
	order := []string{"g0", "g1", "g2", "g3"}
	edges, parentOf, childOf := BuildTreeFromRing(order)

	if len(edges) != 3 {
		t.Fatalf("edges = %d, want 3", len(edges))
	}
	if parentOf["g1"] != "g0" || parentOf["g2"] != "g1" || parentOf["g3"] != "g2" {
		t.Errorf("unexpected parent chain: %+v", parentOf)
	}
	if _, hasParent := parentOf["g0"]; hasParent {
		t.Errorf("root g0 should have no parent")
	}
	if len(childOf["g3"]) != 0 {
		t.Errorf("tail g3 should have no children, got %v", childOf["g3"])
	}
	if len(childOf["g0"]) != 1 || childOf["g0"][0] != "g1" {
		t.Errorf("g0's child should be g1, got %v", childOf["g0"])
	}
}

func TestDoubleTreeChannelsEmitsForwardAndReverse(t *testing.T) {
	ring := TopoGraph{
		Pattern: PatternRing,
		Channels: []Channel{
			{Index: 0, BandwidthGB: 50, RingOrder: []string{"g0", "g1", "g2"}},
		},
	}
	tree := DoubleTreeChannels(ring, nil)
	if len(tree.Channels) != 2 {
		t.Fatalf("tree channels = %d, want 2 (forward+reverse of 1 ring channel)", len(tree.Channels))
	}
	if tree.Channels[0].Index != 0 || tree.Channels[1].Index != 1 {
		t.Errorf("tree channel indices = %d,%d, want 0,1", tree.Channels[0].Index, tree.Channels[1].Index)
	}
	if tree.Channels[0].TreeParentOf["g1"] != "g0" {
		t.Errorf("forward tree channel should parent g1 under g0")
	}
	if tree.Channels[1].TreeParentOf["g1"] != "g2" {
		t.Errorf("reverse tree channel should parent g1 under g2")
	}
}

func TestAttachRingPrevNextClosesLoop(t *testing.T) {
	ch := Channel{RingOrder: []string{"g0", "g1", "g2"}}
	AttachRingPrevNext(&ch)
	if ch.RingNext["g2"] != "g0" {
		t.Errorf("ring should close: next(g2) = %s, want g0", ch.RingNext["g2"])
	}
	if ch.RingPrev["g0"] != "g2" {
		t.Errorf("ring should close: prev(g0) = %s, want g2", ch.RingPrev["g0"])
	}
}

func TestEffectiveCostAppliesCrossCPUFactorAboveThreshold(t *testing.T) {
	base := effectiveCost(100, PathPXB)
	if base != 100 {
		t.Errorf("effectiveCost at PathPXB = %v, want unscaled 100", base)
	}
	scaled := effectiveCost(100, PathSYS)
	if scaled != 100*CrossCPUTLPFactor {
		t.Errorf("effectiveCost at PathSYS = %v, want %v", scaled, 100*CrossCPUTLPFactor)
	}
}

func TestSearchForChannelsSingleGPUTrivialCase(t *testing.T) {
	desc := dgxSM90Desc()
	desc.GPU.Count = 1
	desc.NumaMapping = []int{0}
	desc.NVSwitch.Count = 0
	sys, log, err := mustBuildSystem(desc)
	if err != nil {
		t.Fatalf("BuildSystem: %v", err)
	}
	opts := NewDefaultOptions()
	ComputeAllPairsBestPaths(sys, opts, log)

	globalIter := 0
	channels, timedOut := searchForChannels(sys, &globalIter, 50, 3, true, PathPIX, PathNET, 0, TimeoutDefaultPerAttempt)
	if timedOut {
		t.Fatalf("single-GPU search should never time out")
	}
	if len(channels) != 3 {
		t.Fatalf("expected 3 trivial single-GPU channels, got %d", len(channels))
	}
	for _, c := range channels {
		if len(c.RingOrder) != 1 {
			t.Errorf("single-GPU channel ring order = %v, want length 1", c.RingOrder)
		}
	}
}
