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

func TestMatchChordalRingEightGPUMesh(t *testing.T) {
	sys, log := preparedSystem(t, mi300xDesc())
	opts := NewDefaultOptions()
	id, graph, ok := MatchPattern(sys, opts, DefaultRegistry(), log)
	if !ok {
		t.Fatalf("expected a pattern/detector match for 8-GPU full-mesh xGMI system")
	}
	if id != "chordal-ring-8gpu" && id != "all-to-all" {
		t.Errorf("matched id = %q, want chordal-ring-8gpu or all-to-all (the 7-edge full mesh satisfies the all-to-all detector)", id)
	}
	if len(graph.Channels) == 0 {
		t.Errorf("matched pattern graph has no channels")
	}
	for _, ch := range graph.Channels {
		if len(ch.RingOrder) != 8 {
			t.Errorf("channel %d ring order length = %d, want 8", ch.Index, len(ch.RingOrder))
		}
	}
}

func TestMatchPatternDisabledByModelMatchDisable(t *testing.T) {
	sys, log := preparedSystem(t, mi300xDesc())
	opts := NewDefaultOptions()
	opts.ModelMatchDisable = true
	_, _, ok := MatchPattern(sys, opts, DefaultRegistry(), log)
	if ok {
		t.Errorf("expected no match when model-match-disable is set")
	}
}

func TestMatchPatternNoMatchForSmallSystem(t *testing.T) {
	desc := dgxSM90Desc()
	desc.GPU.Count = 2
	desc.NumaMapping = []int{0, 0}
	// Two NVSwitches give each GPU two NVL edges, not the n-1 = 1 that the
	// all-to-all detector counts for; one NVSwitch would satisfy it.
	desc.NVSwitch.Count = 2
	sys, log := preparedSystem(t, desc)
	opts := NewDefaultOptions()
	_, _, ok := MatchPattern(sys, opts, DefaultRegistry(), log)
	if ok {
		t.Errorf("expected no registry or detector match for a 2-GPU system")
	}
}

func TestParseRingStringSkipsNicTokens(t *testing.T) {
	sig := systemSignature{
		gpus:     []string{"gpuA", "gpuB", "gpuC"},
		gpuCount: 3,
	}
	gpuPerm := []int{0, 1, 2} // identity permutation: system index i -> pattern index i
	rings, err := parseRingString("0,N0,1,2", sig, gpuPerm)
	if err != nil {
		t.Fatalf("parseRingString: %v", err)
	}
	if len(rings) != 1 {
		t.Fatalf("expected 1 ring segment, got %d", len(rings))
	}
	want := []string{"gpuA", "gpuB", "gpuC"}
	if len(rings[0]) != len(want) {
		t.Fatalf("ring segment = %v, want %v", rings[0], want)
	}
	for i, g := range want {
		if rings[0][i] != g {
			t.Errorf("ring[%d] = %q, want %q", i, rings[0][i], g)
		}
	}
}

func TestParseRingStringMultipleSegments(t *testing.T) {
	sig := systemSignature{gpus: []string{"gpuA", "gpuB"}, gpuCount: 2}
	gpuPerm := []int{0, 1}
	rings, err := parseRingString("0,1|1,0", sig, gpuPerm)
	if err != nil {
		t.Fatalf("parseRingString: %v", err)
	}
	if len(rings) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(rings))
	}
}

func TestFullMeshConnectivitySymmetric(t *testing.T) {
	m := fullMeshConnectivity(4)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 1
			if i == j {
				want = 0
			}
			if m[i*4+j] != want {
				t.Errorf("m[%d][%d] = %d, want %d", i, j, m[i*4+j], want)
			}
		}
	}
}
