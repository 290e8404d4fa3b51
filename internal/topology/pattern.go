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

import (
	"fmt"
	"strconv"
	"strings"
)

// PatternBudget bounds the recursive permutation search per pattern
// (spec.md §4.F).
const PatternBudget = 100000

// HardwarePattern is one literal, build-time-constant record modeling a known
// production hardware shape (spec.md §4.F). Ring strings are
// comma-separated within a segment, segments separated by "|"; a token
// prefixed with "N" names a NIC slot and is skipped when parsing GPU order.
type HardwarePattern struct {
	ID              string `json:"id" yaml:"id"`
	GPUCount        int    `json:"gpuCount" yaml:"gpuCount"`
	CPUCount        int    `json:"cpuCount" yaml:"cpuCount"`
	NICCount        int    `json:"nicCount" yaml:"nicCount"`
	XGMILinksPerGPU int    `json:"xgmiLinksPerGPU" yaml:"xgmiLinksPerGPU"`
	GPUNuma         []int  `json:"gpuNuma" yaml:"gpuNuma"`
	NICNuma         []int  `json:"nicNuma" yaml:"nicNuma"`
	Connectivity    []int  `json:"connectivity" yaml:"connectivity"` // row-major GPUCount x GPUCount, 1 where a direct GPU-GPU NVLink edge exists
	GDRMatrix       []int  `json:"gdrMatrix,omitempty" yaml:"gdrMatrix,omitempty"` // optional, row-major GPUCount x NICCount
	NumaSignature   string `json:"numaSignature" yaml:"numaSignature"`
	RingString      string `json:"ringString" yaml:"ringString"`
}

// DefaultRegistry returns the build-time pattern registry, iterated in
// registry order.
func DefaultRegistry() []HardwarePattern {
	return []HardwarePattern{
		dgxA100Pattern(),
		mi300xPattern(),
	}
}

func fullMeshConnectivity(n int) []int {
	m := make([]int, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				m[i*n+j] = 1
			}
		}
	}
	return m
}

func dgxA100Pattern() HardwarePattern {
	return HardwarePattern{
		ID:              "dgx-a100-8gpu-nvswitch",
		GPUCount:        8,
		CPUCount:        2,
		NICCount:        8,
		XGMILinksPerGPU: 7,
		GPUNuma:         []int{0, 0, 0, 0, 1, 1, 1, 1},
		NICNuma:         []int{0, 0, 0, 0, 1, 1, 1, 1},
		Connectivity:    fullMeshConnectivity(8),
		NumaSignature:   "4444", // "<gpuCount><nicCount>" per CPU: numa0="44", numa1="44"
		RingString:      "0,1,2,3,4,5,6,7|0,4,1,5,2,6,3,7",
	}
}

func mi300xPattern() HardwarePattern {
	return HardwarePattern{
		ID:              "mi300x-8gpu-xgmi",
		GPUCount:        8,
		CPUCount:        2,
		NICCount:        8,
		XGMILinksPerGPU: 7,
		GPUNuma:         []int{0, 0, 0, 0, 1, 1, 1, 1},
		NICNuma:         []int{0, 0, 0, 0, 1, 1, 1, 1},
		Connectivity:    fullMeshConnectivity(8),
		NumaSignature:   "4444",
		RingString:      "0,1,2,3,4,5,6,7|0,2,4,6,1,3,5,7",
	}
}

// systemSignature is the extracted topology signature compared against
// registry patterns.
type systemSignature struct {
	gpus         []string
	gpuCount     int
	cpuCount     int
	nicCount     int
	xgmiPerGPU   int
	uniformXGMI  bool
	gpuNuma      map[string]int
	nicNuma      map[string]int
	connectivity map[string]map[string]bool
	numaSig      string
}

func gpuHomeCPU(sys *System, gpu string) (string, bool) {
	var best string
	bestHops := 1 << 30
	found := false
	for _, cpu := range sys.NodesOfType(NodeCPU) {
		p, ok := sys.PathLookup(gpu, cpu)
		if !ok {
			continue
		}
		if !found || p.HopCount < bestHops {
			best = cpu
			bestHops = p.HopCount
			found = true
		}
	}
	return best, found
}

func extractSignature(sys *System) systemSignature {
	gpus := sys.NodesOfType(NodeGPU)
	cpus := sys.NodesOfType(NodeCPU)
	nics := sys.NodesOfType(NodeNIC)
	cpuIndex := map[string]int{}
	for i, c := range cpus {
		cpuIndex[c] = i
	}

	sig := systemSignature{
		gpus:         gpus,
		gpuCount:     len(gpus),
		cpuCount:     len(cpus),
		nicCount:     len(nics),
		gpuNuma:      map[string]int{},
		nicNuma:      map[string]int{},
		connectivity: map[string]map[string]bool{},
	}

	gpuCountPerCPU := make([]int, len(cpus))
	nicCountPerCPU := make([]int, len(cpus))

	for _, g := range gpus {
		if cpu, ok := gpuHomeCPU(sys, g); ok {
			sig.gpuNuma[g] = cpuIndex[cpu]
			gpuCountPerCPU[cpuIndex[cpu]]++
		}
		outgoing := 0
		sig.connectivity[g] = map[string]bool{}
		for _, li := range sys.AdjacentLinks(g) {
			l := sys.Links[li]
			if l.Type == LinkNVL {
				sig.connectivity[g][l.Destination] = true
				outgoing++
			}
		}
		if !sig.uniformXGMI {
			sig.xgmiPerGPU = outgoing
			sig.uniformXGMI = true
		} else if outgoing != sig.xgmiPerGPU {
			sig.uniformXGMI = false // mixed counts; MatchPattern does not compare xgmiPerGPU or uniformXGMI
		}
	}
	for _, n := range nics {
		if cpu, ok := gpuHomeCPU(sys, n); ok {
			sig.nicNuma[n] = cpuIndex[cpu]
			nicCountPerCPU[cpuIndex[cpu]]++
		}
	}

	var b strings.Builder
	for i := range cpus {
		fmt.Fprintf(&b, "%d%d", gpuCountPerCPU[i], nicCountPerCPU[i])
	}
	sig.numaSig = b.String()
	return sig
}

// permSearch backtracks over permutations of [0,n), calling accept(perm) at
// each complete assignment; returns the first accepted permutation found, or
// nil if the budget is exhausted or no permutation is accepted.
func permSearch(n int, budget *int, partialOK func(perm []int, next int) bool, accept func(perm []int) bool) []int {
	perm := make([]int, 0, n)
	used := make([]bool, n)
	var rec func() []int
	rec = func() []int {
		*budget--
		if *budget <= 0 {
			return nil
		}
		if len(perm) == n {
			if accept(perm) {
				out := make([]int, n)
				copy(out, perm)
				return out
			}
			return nil
		}
		for v := 0; v < n; v++ {
			if used[v] {
				continue
			}
			if !partialOK(perm, v) {
				continue
			}
			perm = append(perm, v)
			used[v] = true
			if r := rec(); r != nil {
				return r
			}
			perm = perm[:len(perm)-1]
			used[v] = false
		}
		return nil
	}
	return rec()
}

// matchGPUPermutation searches for a bijection from system GPU index to
// pattern GPU index satisfying NUMA-equality and connectivity-matrix
// equality (spec.md §4.F).
func matchGPUPermutation(sig systemSignature, p HardwarePattern) []int {
	n := sig.gpuCount
	budget := PatternBudget
	connOK := func(perm []int, next int) bool {
		i := len(perm)
		for j, pj := range perm {
			sysHas := sig.connectivity[sig.gpus[i]][sig.gpus[j]]
			patHas := p.Connectivity[next*n+pj] == 1
			if sysHas != patHas {
				return false
			}
		}
		if sig.gpuNuma[sig.gpus[i]] != p.GPUNuma[next] {
			return false
		}
		return true
	}
	accept := func(perm []int) bool { return true }
	return permSearch(n, &budget, connOK, accept)
}

// matchNICPermutation searches for a bijection from system NIC index to
// pattern NIC index satisfying NUMA-equality only.
func matchNICPermutation(sys *System, sig systemSignature, p HardwarePattern) []int {
	nics := sys.NodesOfType(NodeNIC)
	n := len(nics)
	budget := PatternBudget
	partialOK := func(perm []int, next int) bool {
		i := len(perm)
		return sig.nicNuma[nics[i]] == p.NICNuma[next]
	}
	accept := func(perm []int) bool { return true }
	return permSearch(n, &budget, partialOK, accept)
}

// parseRingString parses a pattern's pre-computed ring segments into
// system GPU identities via the matched GPU permutation (pattern index ->
// system index is the inverse of the system->pattern permutation returned
// by matchGPUPermutation).
func parseRingString(ringString string, sig systemSignature, gpuPerm []int) ([][]string, error) {
	patternToSystem := make([]string, sig.gpuCount)
	for sysIdx, patIdx := range gpuPerm {
		patternToSystem[patIdx] = sig.gpus[sysIdx]
	}

	var rings [][]string
	for _, segment := range strings.Split(ringString, "|") {
		var order []string
		for _, tok := range strings.Split(segment, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" || strings.HasPrefix(tok, "N") {
				continue
			}
			idx, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("ring string token %q: %w", tok, err)
			}
			if idx < 0 || idx >= len(patternToSystem) {
				return nil, fmt.Errorf("ring string token %d out of range", idx)
			}
			order = append(order, patternToSystem[idx])
		}
		rings = append(rings, order)
	}
	return rings, nil
}

// MatchPattern attempts to shortcut the search by matching the system
// against the pattern registry (spec.md §4.F). Returns the matched pattern
// ID and a TopoGraph on success.
func MatchPattern(sys *System, opts *Options, registry []HardwarePattern, log *DecisionLog) (string, TopoGraph, bool) {
	if opts.ModelMatchDisable {
		log.Append(PhasePatternMatch, "skip-pattern-match",
			"model-match-disable is set", []string{"attempt pattern match"}, "spec.md §4.F", nil)
		return "", TopoGraph{}, false
	}

	if graph, ok := matchChordalRing(sys); ok {
		log.Append(PhasePatternMatch, "matched-chordal-ring",
			"8 GPUs each with 6 NVLink edges", nil, "spec.md §4.F chordal-ring detector", nil)
		return "chordal-ring-8gpu", graph, true
	}
	if graph, ok := matchAllToAll(sys); ok {
		log.Append(PhasePatternMatch, "matched-all-to-all",
			"every GPU fully NVLink-connected to every other GPU", nil, "spec.md §4.F all-to-all detector", nil)
		return "all-to-all", graph, true
	}

	sig := extractSignature(sys)
	for _, p := range registry {
		if p.GPUCount != sig.gpuCount || p.CPUCount != sig.cpuCount || p.NICCount != sig.nicCount {
			continue
		}
		if p.NumaSignature != sig.numaSig {
			continue
		}
		gpuPerm := matchGPUPermutation(sig, p)
		if gpuPerm == nil {
			continue
		}
		nicPerm := matchNICPermutation(sys, sig, p)
		if nicPerm == nil {
			continue
		}
		rings, err := parseRingString(p.RingString, sig, gpuPerm)
		if err != nil || len(rings) == 0 || len(rings[0]) == 0 {
			continue
		}
		graph := patternGraphFromRings(sys, rings)
		log.Append(PhasePatternMatch, "matched-pattern",
			fmt.Sprintf("matched registry pattern %q", p.ID),
			nil, "spec.md §4.F", map[string]interface{}{"patternId": p.ID})
		return p.ID, graph, true
	}
	log.Append(PhasePatternMatch, "no-pattern-match",
		"no registry entry matched the extracted signature", nil, "spec.md §4.F", nil)
	return "", TopoGraph{}, false
}

func patternGraphFromRings(sys *System, rings [][]string) TopoGraph {
	graph := TopoGraph{Pattern: PatternRing, IntraLinkType: PathNVL, InterLinkType: PathNET}
	bw := sys.MaxBandwidthGB
	if len(rings) > 0 && len(rings[0]) > 1 {
		if p, ok := sys.PathLookup(rings[0][0], rings[0][1]); ok && p.BandwidthGB > 0 {
			bw = p.BandwidthGB
		}
	}
	for i, order := range rings {
		graph.Channels = append(graph.Channels, Channel{Index: i, BandwidthGB: bw, RingOrder: order})
	}
	graph.IntraSpeedGBs = bw
	RunRingSetup(&graph)
	return graph
}

// chordalRing6 is the hardcoded 6-ring ordering for an 8-GPU chordal ring
// (spec.md §4.F chordal-ring detector).
var chordalRing6 = [][]int{
	{0, 1, 2, 3, 4, 5, 6, 7},
	{0, 2, 4, 6, 1, 3, 5, 7},
	{0, 3, 6, 1, 4, 7, 2, 5},
	{0, 4, 1, 5, 2, 6, 3, 7},
	{0, 5, 3, 1, 6, 4, 2, 7},
	{0, 6, 5, 4, 3, 2, 1, 7},
}

func matchChordalRing(sys *System) (TopoGraph, bool) {
	gpus := sys.NodesOfType(NodeGPU)
	if len(gpus) != 8 {
		return TopoGraph{}, false
	}
	for _, g := range gpus {
		count := 0
		for _, li := range sys.AdjacentLinks(g) {
			if sys.Links[li].Type == LinkNVL {
				count++
			}
		}
		if count != 6 {
			return TopoGraph{}, false
		}
	}
	rings := make([][]string, len(chordalRing6))
	for i, r := range chordalRing6 {
		order := make([]string, len(r))
		for j, idx := range r {
			order[j] = gpus[idx]
		}
		rings[i] = order
	}
	return patternGraphFromRings(sys, rings), true
}

func matchAllToAll(sys *System) (TopoGraph, bool) {
	gpus := sys.NodesOfType(NodeGPU)
	n := len(gpus)
	if n == 0 {
		return TopoGraph{}, false
	}
	for _, g := range gpus {
		count := 0
		for _, li := range sys.AdjacentLinks(g) {
			if sys.Links[li].Type == LinkNVL {
				count++
			}
		}
		if count != n-1 {
			return TopoGraph{}, false
		}
	}
	var rings [][]string
	if n == 8 {
		for _, r := range chordalRing6 {
			order := make([]string, len(r))
			for j, idx := range r {
				order[j] = gpus[idx]
			}
			rings = append(rings, order)
		}
	} else {
		forward := append([]string{}, gpus...)
		rings = append(rings, forward, reverseOrder(forward))
	}
	return patternGraphFromRings(sys, rings), true
}
