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
	"sort"
)

// candidate is one scored extension of a partial ring from the current GPU.
type candidate struct {
	gpu              string
	intraBandwidth   float64
	intraHopCount    int
	interBandwidth   float64
	interPciBandwidth float64
	interHopCount    int
	startIndex       int
}

// effectiveCost applies the cross-CPU TLP overhead factor when accounting
// for bandwidth on a hop classified worse than PXB (spec.md §4.E.1).
func effectiveCost(speed float64, t PathType) float64 {
	if t > PathPXB {
		return speed * CrossCPUTLPFactor
	}
	return speed
}

func edgePathType(sys *System, a, b string) PathType {
	p, ok := sys.PathLookup(a, b)
	if !ok {
		return PathDIS
	}
	return p.Type
}

// bestNICPath returns a GPU's best (smallest path-type, ties by bandwidth)
// path to any NIC, used for search scoring and by homeNIC.
func bestNICPath(sys *System, gpu string) (Path, bool) {
	var best Path
	found := false
	for _, nic := range sys.NodesOfType(NodeNIC) {
		p, ok := sys.PathLookup(gpu, nic)
		if !ok {
			continue
		}
		if !found || p.Type < best.Type || (p.Type == best.Type && p.BandwidthGB > best.BandwidthGB) {
			best = p
			found = true
		}
	}
	return best, found
}

// homeNIC is the NIC identity of a GPU's best NIC path, used for the
// cross-nic rail-affinity relaxation tier.
func homeNIC(sys *System, gpu string) (string, bool) {
	p, ok := bestNICPath(sys, gpu)
	if !ok {
		return "", false
	}
	return p.Destination, true
}

// scoredCandidates returns every unvisited GPU reachable from cur under the
// current relaxation tiers, ordered per the spec.md §4.E.3 scoring tuple:
// (interBandwidth desc, interPciBandwidth desc, interHopCount asc,
// intraBandwidth desc, intraHopCount asc, startIndex asc).
//
// interPciBandwidth is not separately defined by a finer breakdown of the
// NIC path in this spec; it is taken identical to interBandwidth, making it
// a no-op tiebreak (documented simplification, see DESIGN.md).
func scoredCandidates(sys *System, remaining map[PathKey]float64, cur string, visited map[string]bool, speed float64, typeIntra, typeInter PathType, crossNic int, gpuIndex map[string]int) []candidate {
	var out []candidate
	curHomeNIC, curHasHomeNIC := homeNIC(sys, cur)
	for _, g := range sys.NodesOfType(NodeGPU) {
		if visited[g] {
			continue
		}
		p, ok := sys.PathLookup(cur, g)
		if !ok || p.Type > typeIntra {
			continue
		}
		cost := effectiveCost(speed, p.Type)
		if remaining[PathKey{Source: cur, Destination: g}] < cost {
			continue
		}
		if sys.InterNode && crossNic == 0 && curHasHomeNIC {
			if gHome, ok := homeNIC(sys, g); ok && gHome != curHomeNIC {
				continue
			}
		}
		interBW, interHops := 0.0, 1<<30
		if np, ok := bestNICPath(sys, g); ok {
			if !sys.InterNode || np.Type <= typeInter {
				interBW = np.BandwidthGB
				interHops = np.HopCount
			}
		}
		out = append(out, candidate{
			gpu:               g,
			intraBandwidth:    p.BandwidthGB,
			intraHopCount:     p.HopCount,
			interBandwidth:    interBW,
			interPciBandwidth: interBW,
			interHopCount:     interHops,
			startIndex:        gpuIndex[g],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.interBandwidth != b.interBandwidth {
			return a.interBandwidth > b.interBandwidth
		}
		if a.interPciBandwidth != b.interPciBandwidth {
			return a.interPciBandwidth > b.interPciBandwidth
		}
		if a.interHopCount != b.interHopCount {
			return a.interHopCount < b.interHopCount
		}
		if a.intraBandwidth != b.intraBandwidth {
			return a.intraBandwidth > b.intraBandwidth
		}
		if a.intraHopCount != b.intraHopCount {
			return a.intraHopCount < b.intraHopCount
		}
		return a.startIndex < b.startIndex
	})
	return out
}

// ringSearchContext carries the parameters held fixed across one ring
// attempt's recursive backtracking.
type ringSearchContext struct {
	sys             *System
	remaining       map[PathKey]float64
	globalIter      *int
	attemptIter     int
	perAttemptBudget int
	speed           float64
	typeIntra       PathType
	typeInter       PathType
	crossNic        int
	gpuIndex        map[string]int
}

// backtrackRing recursively extends a partial Hamiltonian cycle. Returns
// (success, timedOut).
func backtrackRing(ctx *ringSearchContext, start, cur string, visited map[string]bool, order *[]string, n int) (bool, bool) {
	if *ctx.globalIter >= TimeoutGlobalBudget {
		return false, true
	}
	ctx.attemptIter++
	*ctx.globalIter++
	if ctx.attemptIter > ctx.perAttemptBudget {
		return false, true
	}
	if len(*order) == n {
		closeType := edgePathType(ctx.sys, cur, start)
		if closeType > ctx.typeIntra {
			return false, false
		}
		cost := effectiveCost(ctx.speed, closeType)
		if ctx.remaining[PathKey{Source: cur, Destination: start}] >= cost {
			return true, false
		}
		return false, false
	}
	candidates := scoredCandidates(ctx.sys, ctx.remaining, cur, visited, ctx.speed, ctx.typeIntra, ctx.typeInter, ctx.crossNic, ctx.gpuIndex)
	for _, cand := range candidates {
		key := PathKey{Source: cur, Destination: cand.gpu}
		cost := effectiveCost(ctx.speed, edgePathType(ctx.sys, cur, cand.gpu))
		ctx.remaining[key] -= cost
		visited[cand.gpu] = true
		*order = append(*order, cand.gpu)

		ok, timedOut := backtrackRing(ctx, start, cand.gpu, visited, order, n)
		if ok {
			return true, false
		}
		*order = (*order)[:len(*order)-1]
		delete(visited, cand.gpu)
		ctx.remaining[key] += cost
		if timedOut {
			return false, true
		}
	}
	return false, false
}

// ringAttempt tries every GPU as starting node, in insertion order, stopping
// at the first one that yields a valid Hamiltonian cycle (spec.md §4.E.4).
func ringAttempt(sys *System, remaining map[PathKey]float64, globalIter *int, perAttemptBudget int, speed float64, typeIntra, typeInter PathType, crossNic int, gpuIndex map[string]int) ([]string, bool, bool) {
	gpus := sys.NodesOfType(NodeGPU)
	n := len(gpus)
	if n == 0 {
		return nil, false, false
	}
	for _, start := range gpus {
		ctx := &ringSearchContext{
			sys:              sys,
			remaining:        remaining,
			globalIter:       globalIter,
			perAttemptBudget: perAttemptBudget,
			speed:            speed,
			typeIntra:        typeIntra,
			typeInter:        typeInter,
			crossNic:         crossNic,
			gpuIndex:         gpuIndex,
		}
		visited := map[string]bool{start: true}
		order := []string{start}
		ok, timedOut := backtrackRing(ctx, start, start, visited, &order, n)
		if ok {
			return order, true, false
		}
		if timedOut {
			return nil, false, true
		}
	}
	return nil, false, false
}

func gpuIndexMap(sys *System) map[string]int {
	idx := map[string]int{}
	for i, g := range sys.NodesOfType(NodeGPU) {
		idx[g] = i
	}
	return idx
}

func newRemainingMap(sys *System) map[PathKey]float64 {
	m := make(map[PathKey]float64, len(sys.Paths))
	for k, p := range sys.Paths {
		m[k] = p.BandwidthGB
	}
	return m
}

// searchForChannels runs the multi-channel attempt of spec.md §4.E.5 at a
// fixed speed and relaxation tier.
func searchForChannels(sys *System, globalIter *int, speed float64, maxChannels int, sameChannels bool, typeIntra, typeInter PathType, crossNic int, perAttemptBudget int) ([]Channel, bool) {
	gpus := sys.NodesOfType(NodeGPU)
	if len(gpus) == 1 {
		channels := make([]Channel, maxChannels)
		for i := range channels {
			channels[i] = Channel{Index: i, BandwidthGB: speed, RingOrder: []string{gpus[0]}}
		}
		return channels, false
	}

	gpuIndex := gpuIndexMap(sys)
	remaining := newRemainingMap(sys)
	var channels []Channel
	timedOut := false
	for len(channels) < maxChannels {
		if *globalIter >= TimeoutGlobalBudget {
			timedOut = true
			break
		}
		if sameChannels && len(channels) > 0 {
			order := channels[0].RingOrder
			ok := true
			iter := 0
			for i := 0; i < len(order); i++ {
				u, v := order[i], order[(i+1)%len(order)]
				iter++
				*globalIter++
				if iter > TimeoutSameChannelPerAttempt || *globalIter >= TimeoutGlobalBudget {
					ok = false
					timedOut = true
					break
				}
				cost := effectiveCost(speed, edgePathType(sys, u, v))
				if remaining[PathKey{Source: u, Destination: v}] < cost {
					ok = false
					break
				}
			}
			if !ok {
				break
			}
			for i := 0; i < len(order); i++ {
				u, v := order[i], order[(i+1)%len(order)]
				remaining[PathKey{Source: u, Destination: v}] -= effectiveCost(speed, edgePathType(sys, u, v))
			}
			channels = append(channels, Channel{Index: len(channels), BandwidthGB: speed, RingOrder: append([]string{}, order...)})
			continue
		}

		order, ok, to := ringAttempt(sys, remaining, globalIter, perAttemptBudget, speed, typeIntra, typeInter, crossNic, gpuIndex)
		if !ok {
			timedOut = to
			break
		}
		channels = append(channels, Channel{Index: len(channels), BandwidthGB: speed, RingOrder: order})
	}
	return channels, timedOut
}

func aggregateBandwidth(channels []Channel) float64 {
	var total float64
	for _, c := range channels {
		total += c.BandwidthGB
	}
	return total
}

// intraInterRanges scans GPU-GPU and (if inter-node) GPU-NIC paths to
// establish the [min,max] path-type ranges consumed as the search's
// relaxation ceilings (spec.md §4.E.2).
func intraInterRanges(sys *System) (minIntra, maxIntra, minInter, maxInter PathType) {
	minIntra, maxIntra = PathPIX, PathPHB
	foundIntra := false
	gpus := sys.NodesOfType(NodeGPU)
	for _, a := range gpus {
		for _, b := range gpus {
			if a == b {
				continue
			}
			p, ok := sys.PathLookup(a, b)
			if !ok {
				continue
			}
			if !foundIntra || p.Type < minIntra {
				minIntra = p.Type
			}
			if !foundIntra || p.Type > maxIntra {
				maxIntra = p.Type
			}
			foundIntra = true
		}
	}
	if !foundIntra {
		minIntra, maxIntra = PathPIX, PathPHB
	}

	minInter, maxInter = PathSYS, PathNET
	if sys.InterNode {
		foundInter := false
		for _, g := range gpus {
			for _, n := range sys.NodesOfType(NodeNIC) {
				p, ok := sys.PathLookup(g, n)
				if !ok {
					continue
				}
				if !foundInter || p.Type < minInter {
					minInter = p.Type
				}
				if !foundInter || p.Type > maxInter {
					maxInter = p.Type
				}
				foundInter = true
			}
		}
		if !foundInter {
			minInter, maxInter = PathNET, PathNET
		}
	} else {
		minInter, maxInter = PathNET, PathNET
	}
	return
}

func minGPUGeneration(sys *System) int {
	min := 0
	found := false
	for _, id := range sys.NodesOfType(NodeGPU) {
		n := sys.NodeByIdentity(id)
		if n == nil || n.GPU == nil {
			continue
		}
		if !found || n.GPU.Generation < min {
			min = n.GPU.Generation
			found = true
		}
	}
	return min
}

// amdCPU reports whether the system's CPUs are x86/AMD, consulted by the
// AMD same-channels exception (spec.md §4.E.6).
func amdCPU(sys *System) bool {
	for _, id := range sys.NodesOfType(NodeCPU) {
		n := sys.NodeByIdentity(id)
		if n == nil || n.CPU == nil {
			continue
		}
		return n.CPU.Arch == ArchX86 && n.CPU.Vendor == VendorAMD
	}
	return false
}

func startSpeedIndex(speeds []float64, sys *System, minChannels int, pattern Pattern) int {
	total := sys.TotalBandwidthGB
	if pattern == PatternBalancedTree {
		n := float64(len(sys.NodesOfType(NodeGPU)))
		if n > 1 {
			total = sys.TotalBandwidthGB * n / (n - 1)
		}
	}
	for i, s := range speeds {
		if s <= sys.MaxBandwidthGB && s*float64(minChannels) <= total {
			return i
		}
	}
	return len(speeds)
}

// TwoPhaseSearch runs the phase-1 (any feasible solution) and phase-2
// (speed optimization) outer loop of spec.md §4.E.6 for the given pattern.
func TwoPhaseSearch(sys *System, opts *Options, pattern Pattern, minChannels, maxChannels int, log *DecisionLog) TopoGraph {
	minIntra, maxIntra, minInter, maxInter := intraInterRanges(sys)
	gen := minGPUGeneration(sys)
	speeds := SpeedArray(gen, !sys.InterNode)

	speedIdx := startSpeedIndex(speeds, sys, minChannels, pattern)
	sameChannels := true
	typeIntra := minIntra
	typeInter := minInter
	crossNic := opts.CrossNic.ResolvedCrossNicStart()
	patternCur := pattern
	amdException := amdCPU(sys)

	globalIter := 0
	var best []Channel
	bestSpeed := 0.0
	accepted := false
	timedOutFinal := false

	for speedIdx < len(speeds) {
		speed := speeds[speedIdx]
		perAttemptBudget := TimeoutDefaultPerAttempt
		if patternCur == PatternBalancedTree {
			perAttemptBudget = TimeoutTreePerAttempt
		}

		channels, timedOut := searchForChannels(sys, &globalIter, speed, maxChannels, sameChannels, typeIntra, typeInter, crossNic, perAttemptBudget)
		if len(channels) >= minChannels {
			if len(channels) > len(best) || (len(channels) == len(best) && speed*float64(len(channels)) > bestSpeed*float64(len(best))) {
				best = channels
				bestSpeed = speed
			}
			if speed >= ChannelDoublingThresholdGBs && len(channels) < maxChannels {
				doubledMax := len(channels) * 2
				if doubledMax > maxChannels {
					doubledMax = maxChannels
				}
				doubled, _ := searchForChannels(sys, &globalIter, speed, doubledMax, false, typeIntra, typeInter, crossNic, perAttemptBudget)
				if aggregateBandwidth(doubled) > aggregateBandwidth(best) {
					best = doubled
					bestSpeed = speed
				}
			}
			if !timedOut && speed*float64(len(best)) >= sys.TotalBandwidthGB {
				accepted = true
				break
			}
		}
		if globalIter >= TimeoutGlobalBudget {
			timedOutFinal = true
			break
		}

		applied := true
		switch {
		case sameChannels && !(amdException && typeIntra == PathSYS):
			sameChannels = false
		case gen >= 90 && patternCur == PatternBalancedTree:
			patternCur = PatternRing
			sameChannels = true
		case typeIntra < maxIntra:
			typeIntra++
			sameChannels = true
		case sys.InterNode && typeInter < maxInter:
			typeInter++
			sameChannels = true
		case sys.InterNode && opts.CrossNic.Auto && crossNic == 0:
			crossNic = 1
			sameChannels = true
		default:
			applied = false
		}
		if !applied {
			speedIdx++
			sameChannels = true
			typeIntra = minIntra
			typeInter = minInter
			crossNic = opts.CrossNic.ResolvedCrossNicStart()
		}
	}

	// Phase 2: optimize by trying higher speeds above the phase-1 selection.
	if !timedOutFinal && len(best) > 0 {
		perAttemptBudget := TimeoutDefaultPerAttempt
		if patternCur == PatternBalancedTree {
			perAttemptBudget = TimeoutTreePerAttempt
		}
		for i := speedIdx - 1; i >= 0; i-- {
			if globalIter >= TimeoutGlobalBudget {
				break
			}
			speed := speeds[i]
			channels, _ := searchForChannels(sys, &globalIter, speed, maxChannels, sameChannels, typeIntra, typeInter, crossNic, perAttemptBudget)
			if len(channels) > 0 && speed*float64(len(channels)) > bestSpeed*float64(len(best)) {
				best = channels
				bestSpeed = speed
			}
		}
	}

	graph := TopoGraph{
		Pattern:       patternCur,
		Channels:      best,
		IntraLinkType: typeIntra,
		InterLinkType: typeInter,
		IntraSpeedGBs: bestSpeed,
		InterSpeedGBs: bestSpeed,
	}

	phase := PhaseRingSearch
	if pattern == PatternBalancedTree {
		phase = PhaseTreeSearch
	}
	if len(best) == 0 {
		log.Append(phase, "no-feasible-plan",
			"search exhausted all speeds and relaxations with zero channels",
			nil, "spec.md §4.E.6 step 6 / §7", map[string]interface{}{"pattern": patternCur.String(), "iterations": globalIter, "timedOut": timedOutFinal})
	} else {
		log.Append(phase, "search-accepted",
			fmt.Sprintf("accepted=%v channels=%d speed=%.2f", accepted, len(best), bestSpeed),
			nil, "spec.md §4.E.6", map[string]interface{}{"channels": len(best), "speed": bestSpeed, "iterations": globalIter, "timedOut": timedOutFinal})
	}
	return graph
}

// SearchRingGraph runs the two-phase search for the Ring pattern.
func SearchRingGraph(sys *System, opts *Options, minChannels, maxChannels int, log *DecisionLog) TopoGraph {
	return TwoPhaseSearch(sys, opts, PatternRing, minChannels, maxChannels, log)
}

// SearchTreeGraph runs the two-phase search for the BalancedTree pattern.
func SearchTreeGraph(sys *System, opts *Options, minChannels, maxChannels int, log *DecisionLog) TopoGraph {
	return TwoPhaseSearch(sys, opts, PatternBalancedTree, minChannels, maxChannels, log)
}

// BuildTreeFromRing derives a single tree channel from a ring channel's
// order, following spec.md §4.E.7: the root is the first GPU, every GPU's
// parent is the previous GPU in the order, every GPU's child is the next,
// and the last GPU is a tail leaf.
func BuildTreeFromRing(order []string) ([]TreeEdge, map[string]string, map[string][]string) {
	var edges []TreeEdge
	parentOf := map[string]string{}
	childOf := map[string][]string{}
	for i := 1; i < len(order); i++ {
		parent, child := order[i-1], order[i]
		edges = append(edges, TreeEdge{Parent: parent, Child: child})
		parentOf[child] = parent
		childOf[parent] = append(childOf[parent], child)
	}
	return edges, parentOf, childOf
}

func reverseOrder(order []string) []string {
	out := make([]string, len(order))
	for i, v := range order {
		out[len(order)-1-i] = v
	}
	return out
}

// DoubleTreeChannels builds a tree TopoGraph by emitting, for each ring
// channel i, forward tree channel 2i and reverse tree channel 2i+1 (spec.md
// §4.E.7). Speeds and link types are inherited from the ring graph unless
// overridden is non-nil (an independent balanced-tree search produced
// non-zero values), in which case those values take precedence.
func DoubleTreeChannels(ringGraph TopoGraph, overridden *TopoGraph) TopoGraph {
	tree := TopoGraph{
		Pattern:       PatternBalancedTree,
		IntraLinkType: ringGraph.IntraLinkType,
		InterLinkType: ringGraph.InterLinkType,
		IntraSpeedGBs: ringGraph.IntraSpeedGBs,
		InterSpeedGBs: ringGraph.InterSpeedGBs,
	}
	if overridden != nil && len(overridden.Channels) > 0 {
		tree.IntraLinkType = overridden.IntraLinkType
		tree.InterLinkType = overridden.InterLinkType
		tree.IntraSpeedGBs = overridden.IntraSpeedGBs
		tree.InterSpeedGBs = overridden.InterSpeedGBs
	}
	for _, ring := range ringGraph.Channels {
		forwardEdges, forwardParentOf, forwardChildOf := BuildTreeFromRing(ring.RingOrder)
		tree.Channels = append(tree.Channels, Channel{
			Index:        2 * ring.Index,
			BandwidthGB:  ring.BandwidthGB,
			TreeLinks:    forwardEdges,
			TreeParentOf: forwardParentOf,
			TreeChildOf:  forwardChildOf,
		})
		reverse := reverseOrder(ring.RingOrder)
		reverseEdges, reverseParentOf, reverseChildOf := BuildTreeFromRing(reverse)
		tree.Channels = append(tree.Channels, Channel{
			Index:        2*ring.Index + 1,
			BandwidthGB:  ring.BandwidthGB,
			TreeLinks:    reverseEdges,
			TreeParentOf: reverseParentOf,
			TreeChildOf:  reverseChildOf,
		})
	}
	return tree
}

// AttachRingPrevNext populates the previous-of/next-of lookup for a ring
// channel, treating its order as a closed loop (spec.md §4.E.7 ring setup).
func AttachRingPrevNext(ch *Channel) {
	n := len(ch.RingOrder)
	if n == 0 {
		return
	}
	ch.RingPrev = make(map[string]string, n)
	ch.RingNext = make(map[string]string, n)
	for i, gpu := range ch.RingOrder {
		prev := ch.RingOrder[(i-1+n)%n]
		next := ch.RingOrder[(i+1)%n]
		ch.RingPrev[gpu] = prev
		ch.RingNext[gpu] = next
	}
}

// RunRingSetup attaches prev/next lookups to every channel of a ring graph.
func RunRingSetup(graph *TopoGraph) {
	for i := range graph.Channels {
		AttachRingPrevNext(&graph.Channels[i])
	}
}
