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

// ComputeAllPairsBestPaths computes the best path from every GPU and every
// NIC source to every other GPU (and, from GPU sources, every NIC), via
// layered breadth-first relaxation (spec.md §4.D.1), then runs the
// peer-proxy (PXN) upgrade pass (§4.D.2) unless disabled.
func ComputeAllPairsBestPaths(sys *System, opts *Options, log *DecisionLog) {
	sources := append(append([]string{}, sys.NodesOfType(NodeGPU)...), sys.NodesOfType(NodeNIC)...)
	for _, src := range sources {
		local := bestPathsFrom(sys, src, opts)
		srcNode := sys.NodeByIdentity(src)
		for dst, p := range local {
			dstNode := sys.NodeByIdentity(dst)
			if dstNode == nil {
				continue
			}
			if srcNode.Type == NodeGPU {
				if dstNode.Type != NodeGPU && dstNode.Type != NodeNIC {
					continue
				}
			} else { // NIC source
				if dstNode.Type != NodeGPU {
					continue
				}
			}
			sys.Paths[PathKey{Source: src, Destination: dst}] = p
		}
	}
	log.Append(PhaseComputePaths, "compute-all-pairs-best-paths",
		fmt.Sprintf("layered BFS from %d GPU/NIC sources", len(sources)),
		nil, "spec.md §4.D.1", map[string]interface{}{"pathCount": len(sys.Paths)})

	if !opts.PxnDisable {
		upgraded := runPeerProxyUpgrade(sys, opts)
		log.Append(PhaseComputePaths, "peer-proxy-upgrade",
			fmt.Sprintf("upgraded %d GPU->NIC paths via PXN", upgraded),
			[]string{"skip upgrade (pxn-disable)"}, "spec.md §4.D.2", map[string]interface{}{"upgraded": upgraded})
	} else {
		log.Append(PhaseComputePaths, "skip-peer-proxy-upgrade",
			"pxn-disable is set", []string{"run PXN upgrade"}, "spec.md §4.D.2", nil)
	}
}

// bestPathsFrom runs the layered BFS relaxation from a single source over
// every node in the system, returning the best path to every reached node.
func bestPathsFrom(sys *System, src string, opts *Options) map[string]Path {
	paths := map[string]Path{
		src: {Source: src, Destination: src, Type: PathLOC, BandwidthGB: SelfLoopBandwidthGBs, HopCount: 0},
	}
	frontier := []string{src}
	for len(frontier) > 0 {
		nextFrontier := make([]string, 0)
		nextSeen := map[string]bool{}
		for _, cur := range frontier {
			curPath := paths[cur]
			curNode := sys.NodeByIdentity(cur)
			if curNode == nil {
				continue
			}
			guardedGPU := cur != src && curNode.Type == NodeGPU
			for _, li := range sys.AdjacentLinks(cur) {
				link := sys.Links[li]
				neighbor := sys.NodeByIdentity(link.Destination)
				if neighbor == nil {
					continue
				}
				if guardedGPU {
					if opts.NvbDisable || link.Type != LinkNVL || neighbor.Type != NodeGPU || curPath.HopCount > 1 {
						continue
					}
				}
				newHopCount := curPath.HopCount + 1
				newBW := minFloat(curPath.BandwidthGB, link.BandwidthGB)
				contribution := hopContribution(curNode, neighbor, link.Type, curPath.Type, newHopCount)
				newType := maxPathType(curPath.Type, contribution)
				newHops := make([]Hop, len(curPath.Hops), len(curPath.Hops)+1)
				copy(newHops, curPath.Hops)
				newHops = append(newHops, Hop{Destination: link.Destination, BandwidthGB: link.BandwidthGB, Type: link.Type})
				candidate := Path{
					Source:      src,
					Destination: link.Destination,
					Type:        newType,
					BandwidthGB: newBW,
					Hops:        newHops,
					HopCount:    newHopCount,
				}
				old, has := paths[link.Destination]
				if dominates(old, has, candidate) {
					paths[link.Destination] = candidate
					if !nextSeen[link.Destination] {
						nextSeen[link.Destination] = true
						nextFrontier = append(nextFrontier, link.Destination)
					}
				}
			}
		}
		frontier = nextFrontier
	}
	return paths
}

// dominates implements the domination contract of spec.md §4.D.1: a newly
// discovered path dominates an existing one iff the existing one is absent
// (zero bandwidth) or the new path has both fewer hops and more bandwidth.
func dominates(old Path, has bool, new Path) bool {
	if !has || old.BandwidthGB == 0 {
		return true
	}
	return old.HopCount > new.HopCount && old.BandwidthGB < new.BandwidthGB
}

// hopContribution classifies the hop leaving `from` into `to` over a link of
// type L, given the path type accumulated before this hop and the hop count
// after accepting it (spec.md §4.D.1, hop classification table).
func hopContribution(from, to *Node, linkType LinkType, pathSoFar PathType, newHopCount int) PathType {
	switch {
	case linkType == LinkNET:
		return PathLOC
	case from.Type == NodePCIeSwitch && to.Type == NodePCIeSwitch:
		return PathPXB
	case linkType == LinkPCI && (from.Type == NodeCPU || to.Type == NodeCPU):
		return PathPHB
	case from.Type == NodeGPU && pathSoFar == PathNVL && linkType == LinkNVL && newHopCount > 1:
		return PathNVB
	default:
		switch linkType {
		case LinkLOC:
			return PathLOC
		case LinkNVL:
			return PathNVL
		case LinkPCI:
			return PathPIX
		case LinkC2C:
			return PathC2C
		case LinkSYS:
			return PathSYS
		default:
			return PathSYS
		}
	}
}

func maxPathType(a, b PathType) PathType {
	if b > a {
		return b
	}
	return a
}

func minFloat(a, b float64) float64 {
	if b < a {
		return b
	}
	return a
}

// runPeerProxyUpgrade improves GPU->NIC paths by routing through an
// NVLink-connected peer GPU whose direct path to the NIC is better
// (spec.md §4.D.2). Returns the number of paths upgraded.
func runPeerProxyUpgrade(sys *System, opts *Options) int {
	threshold := PathPXB
	if opts.PxnC2C {
		threshold = PathP2C
	}
	gpus := sys.NodesOfType(NodeGPU)
	upgraded := 0
	for _, nic := range sys.NodesOfType(NodeNIC) {
		localGPU, localPath, ok := bestDirectGPUToNIC(sys, gpus, nic)
		if !ok {
			continue
		}
		if localPath.Type > threshold {
			continue
		}
		for _, g := range gpus {
			if g == localGPU {
				continue
			}
			localToG, ok := sys.PathLookup(localGPU, g)
			if !ok || localToG.Type > PathNVL {
				continue
			}
			gToLocal, ok := sys.PathLookup(g, localGPU)
			if !ok {
				continue
			}
			current, hasCurrent := sys.PathLookup(g, nic)
			if hasCurrent && !(localPath.BandwidthGB > current.BandwidthGB || current.Type > PathPXN) {
				continue
			}
			newBW := minFloat(gToLocal.BandwidthGB, localPath.BandwidthGB)
			newHops := make([]Hop, 0, len(gToLocal.Hops)+len(localPath.Hops))
			newHops = append(newHops, gToLocal.Hops...)
			newHops = append(newHops, localPath.Hops...)
			sys.Paths[PathKey{Source: g, Destination: nic}] = Path{
				Source:      g,
				Destination: nic,
				Type:        PathPXN,
				BandwidthGB: newBW,
				Hops:        newHops,
				HopCount:    gToLocal.HopCount + localPath.HopCount,
			}
			upgraded++
		}
	}
	return upgraded
}

// bestDirectGPUToNIC selects the GPU with the best (smallest path-type,
// ties broken by highest bandwidth) existing direct path to the NIC.
func bestDirectGPUToNIC(sys *System, gpus []string, nic string) (string, Path, bool) {
	var best string
	var bestPath Path
	found := false
	for _, g := range gpus {
		p, ok := sys.PathLookup(g, nic)
		if !ok {
			continue
		}
		if !found || p.Type < bestPath.Type || (p.Type == bestPath.Type && p.BandwidthGB > bestPath.BandwidthGB) {
			best = g
			bestPath = p
			found = true
		}
	}
	return best, bestPath, found
}

// TrimUnreachable removes nodes (and their incident links/paths) that are
// not reachable from any GPU over the undirected link graph (spec.md
// §4.D.3).
func TrimUnreachable(sys *System, log *DecisionLog) {
	reached := map[string]bool{}
	var queue []string
	for _, g := range sys.NodesOfType(NodeGPU) {
		if !reached[g] {
			reached[g] = true
			queue = append(queue, g)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, li := range sys.AdjacentLinks(cur) {
			dst := sys.Links[li].Destination
			if !reached[dst] {
				reached[dst] = true
				queue = append(queue, dst)
			}
		}
	}

	var keptNodes []Node
	removed := 0
	for _, n := range sys.Nodes {
		if reached[n.Identity] {
			keptNodes = append(keptNodes, n)
		} else {
			removed++
		}
	}
	var keptLinks []Link
	for _, l := range sys.Links {
		if reached[l.Source] && reached[l.Destination] {
			keptLinks = append(keptLinks, l)
		}
	}
	keptPaths := map[PathKey]Path{}
	for k, p := range sys.Paths {
		if reached[k.Source] && reached[k.Destination] {
			keptPaths[k] = p
		}
	}

	sys.Nodes = keptNodes
	sys.Links = keptLinks
	sys.Paths = keptPaths
	sys.Reindex()
	computeAggregates(sys)

	log.Append(PhaseTrimSystem, "trim-unreachable-nodes",
		fmt.Sprintf("removed %d node(s) unreachable from any GPU", removed),
		nil, "spec.md §4.D.3", map[string]interface{}{"removed": removed, "remaining": len(sys.Nodes)})
}

// UpdateInterNodeFlag recomputes System.InterNode: true iff any GPU-to-GPU
// path is absent, classified DIS, or classified NET or worse (spec.md
// §4.D.3, run after the post-trim path recomputation).
func UpdateInterNodeFlag(sys *System) {
	gpus := sys.NodesOfType(NodeGPU)
	for _, a := range gpus {
		for _, b := range gpus {
			if a == b {
				continue
			}
			p, ok := sys.PathLookup(a, b)
			if !ok || p.Type == PathDIS || p.Type >= PathNET {
				sys.InterNode = true
				return
			}
		}
	}
	sys.InterNode = false
}
