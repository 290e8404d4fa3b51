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

// BuildSystem materializes a System from a hardware description and an
// optional scale-unit description (spec.md §4.C).
func BuildSystem(desc HardwareDesc, scale *ScaleUnit, log *DecisionLog) (*System, error) {
	if scale != nil && scale.ServerCount > 1 {
		return buildMultiServer(desc, *scale, log)
	}

	sys, err := buildSingleServer(desc, "")
	if err != nil {
		return nil, err
	}
	computeAggregates(sys)
	log.Append(PhaseTopoBuild, "build-single-server-system",
		fmt.Sprintf("materialized %d nodes and %d directed links from hardware description %q", len(sys.Nodes), len(sys.Links), desc.Name),
		nil, "spec.md §4.C", map[string]interface{}{
			"gpuCount": desc.GPU.Count,
			"cpuCount": desc.CPU.Count,
			"nicCount": desc.NIC.Count,
		})
	return sys, nil
}

func buildMultiServer(desc HardwareDesc, scale ScaleUnit, log *DecisionLog) (*System, error) {
	if scale.RailCount < 1 {
		return nil, invalidConfigf("scale-unit railCount must be >= 1, got %d", scale.RailCount)
	}
	sys := &System{Paths: map[PathKey]Path{}}
	for s := 0; s < scale.ServerCount; s++ {
		prefix := fmt.Sprintf("s%d-", s)
		serverSys, err := buildSingleServer(desc, prefix)
		if err != nil {
			return nil, fmt.Errorf("server %d: %w", s, err)
		}
		sys.Nodes = append(sys.Nodes, serverSys.Nodes...)
		sys.Links = append(sys.Links, serverSys.Links...)
	}

	var switchCount int
	switch scale.NetworkType {
	case NetworkRailOptimized:
		switchCount = scale.RailCount
	case NetworkFatTree:
		switchCount = 1
	default:
		return nil, invalidConfigf("unrecognized scale-unit networkType %q", scale.NetworkType)
	}

	for i := 0; i < switchCount; i++ {
		sys.Nodes = append(sys.Nodes, Node{
			Identity: Identity(NodeNetSwitch, i, ""),
			Type:     NodeNetSwitch,
			Index:    i,
		})
	}

	for s := 0; s < scale.ServerCount; s++ {
		prefix := fmt.Sprintf("s%d-", s)
		for i := 0; i < desc.NIC.Count; i++ {
			var switchIdx int
			switch scale.NetworkType {
			case NetworkRailOptimized:
				switchIdx = i % scale.RailCount
			case NetworkFatTree:
				switchIdx = 0
			}
			nicID := Identity(NodeNIC, i, prefix)
			swID := Identity(NodeNetSwitch, switchIdx, "")
			addBidirectionalLink(sys, nicID, swID, LinkNET, desc.NIC.SpeedGBs)
		}
	}

	sys.InterNode = true
	computeAggregates(sys)
	log.Append(PhaseTopoBuild, "build-multi-server-system",
		fmt.Sprintf("replicated %d servers with %s network (%d switches)", scale.ServerCount, scale.NetworkType, switchCount),
		[]string{"single-server build (no scale-unit)"}, "spec.md §4.C", map[string]interface{}{
			"serverCount": scale.ServerCount,
			"networkType": scale.NetworkType,
			"switchCount": switchCount,
		})
	return sys, nil
}

func buildSingleServer(desc HardwareDesc, prefix string) (*System, error) {
	if err := validateDesc(desc); err != nil {
		return nil, err
	}

	sys := &System{Paths: map[PathKey]Path{}}

	for i := 0; i < desc.GPU.Count; i++ {
		sys.Nodes = append(sys.Nodes, Node{
			Identity: Identity(NodeGPU, i, prefix),
			Type:     NodeGPU,
			Index:    i,
			GPU: &GPUAttrs{
				Device:        i,
				Rank:          i,
				Generation:    desc.GPU.GenerationCode,
				GPUDirectRDMA: desc.GPU.GDRSupport,
			},
		})
	}
	for i := 0; i < desc.CPU.Count; i++ {
		sys.Nodes = append(sys.Nodes, Node{
			Identity: Identity(NodeCPU, i, prefix),
			Type:     NodeCPU,
			Index:    i,
			CPU: &CPUAttrs{
				Arch:   desc.CPU.Arch,
				Vendor: desc.CPU.Vendor,
				Model:  desc.CPU.Model,
				NumaID: i,
			},
		})
	}
	for i := 0; i < desc.NIC.Count; i++ {
		sys.Nodes = append(sys.Nodes, Node{
			Identity: Identity(NodeNIC, i, prefix),
			Type:     NodeNIC,
			Index:    i,
			NIC: &NICAttrs{
				Device:        i,
				LineRateGBs:   desc.NIC.SpeedGBs,
				GPUDirectRDMA: desc.NIC.GDRSupport,
				CollOffload:   desc.NIC.CollSupport,
				MaxChannels:   MaxChannelsHardCap,
			},
		})
	}
	for i := 0; i < desc.NVSwitch.Count; i++ {
		sys.Nodes = append(sys.Nodes, Node{
			Identity: Identity(NodeNVSwitch, i, prefix),
			Type:     NodeNVSwitch,
			Index:    i,
		})
	}
	switchesPerCPU := desc.PCIe.SwitchesPerCPU
	totalSwitches := desc.CPU.Count * switchesPerCPU
	for i := 0; i < totalSwitches; i++ {
		sys.Nodes = append(sys.Nodes, Node{
			Identity: Identity(NodePCIeSwitch, i, prefix),
			Type:     NodePCIeSwitch,
			Index:    i,
			PCIeSwitch: &PCIeSwitchAttrs{
				Generation: desc.PCIe.Gen,
				Width:      desc.PCIe.Width,
			},
		})
	}

	gpuID := func(i int) string { return Identity(NodeGPU, i, prefix) }
	cpuID := func(i int) string { return Identity(NodeCPU, i, prefix) }
	nicID := func(i int) string { return Identity(NodeNIC, i, prefix) }
	nvsID := func(i int) string { return Identity(NodeNVSwitch, i, prefix) }
	pciID := func(i int) string { return Identity(NodePCIeSwitch, i, prefix) }

	pcieBW := PCIeBandwidthGBs(desc.PCIe.Gen, desc.PCIe.Width)

	// 1. GPU fabric.
	switch {
	case desc.NVSwitch.Count > 0:
		bw := NVLinkBandwidthGBs(desc.GPU.GenerationCode)
		for g := 0; g < desc.GPU.Count; g++ {
			for n := 0; n < desc.NVSwitch.Count; n++ {
				addBidirectionalLink(sys, gpuID(g), nvsID(n), LinkNVL, bw)
			}
		}
	case desc.GPU.Type == GPUTypeAMD:
		bw := XGMIBandwidthGBs(desc.GPU.AMDFamily)
		for i := 0; i < desc.GPU.Count; i++ {
			for j := i + 1; j < desc.GPU.Count; j++ {
				addBidirectionalLink(sys, gpuID(i), gpuID(j), LinkNVL, bw)
			}
		}
	case desc.GPU.NvlinksPerPair > 0:
		bw := NVLinkBandwidthGBs(desc.GPU.GenerationCode) * float64(desc.GPU.NvlinksPerPair)
		for i := 0; i < desc.GPU.Count; i++ {
			for j := i + 1; j < desc.GPU.Count; j++ {
				addBidirectionalLink(sys, gpuID(i), gpuID(j), LinkNVL, bw)
			}
		}
	}

	// 2. Host hierarchy.
	switchesForCPU := func(cpu int) []int {
		out := make([]int, 0, switchesPerCPU)
		for k := 0; k < switchesPerCPU; k++ {
			out = append(out, cpu*switchesPerCPU+k)
		}
		return out
	}
	cpuSwitchLinked := map[string]bool{}
	rrCounter := map[int]int{} // numa -> next round-robin switch offset
	for g := 0; g < desc.GPU.Count; g++ {
		numa, err := numaOf(desc.NumaMapping, g, desc.CPU.Count)
		if err != nil {
			return nil, err
		}
		if totalSwitches > 0 {
			sws := switchesForCPU(numa)
			if len(sws) == 0 {
				return nil, invalidConfigf("CPU %d owns no PCIe switches but GPU %d is mapped to it", numa, g)
			}
			sw := sws[rrCounter[numa]%len(sws)]
			rrCounter[numa]++
			addBidirectionalLink(sys, gpuID(g), pciID(sw), LinkPCI, pcieBW)
			key := fmt.Sprintf("%d-%d", sw, numa)
			if !cpuSwitchLinked[key] {
				addBidirectionalLink(sys, pciID(sw), cpuID(numa), LinkPCI, pcieBW)
				cpuSwitchLinked[key] = true
			}
		} else {
			addBidirectionalLink(sys, gpuID(g), cpuID(numa), LinkPCI, pcieBW)
		}
	}

	// 3. NIC hierarchy.
	nicRR := 0
	for i := 0; i < desc.NIC.Count; i++ {
		var numa int
		if i < desc.GPU.Count {
			var err error
			numa, err = numaOf(desc.NumaMapping, i, desc.CPU.Count)
			if err != nil {
				return nil, err
			}
		} else {
			if desc.CPU.Count == 0 {
				return nil, invalidConfigf("NIC %d has no CPU to attach to (cpu.count == 0)", i)
			}
			numa = nicRR % desc.CPU.Count
			nicRR++
		}
		if totalSwitches > 0 {
			sws := switchesForCPU(numa)
			if len(sws) == 0 {
				return nil, invalidConfigf("CPU %d owns no PCIe switches but NIC %d is mapped to it", numa, i)
			}
			sw := sws[rrCounter[numa]%len(sws)]
			rrCounter[numa]++
			addBidirectionalLink(sys, nicID(i), pciID(sw), LinkPCI, pcieBW)
			key := fmt.Sprintf("%d-%d", sw, numa)
			if !cpuSwitchLinked[key] {
				addBidirectionalLink(sys, pciID(sw), cpuID(numa), LinkPCI, pcieBW)
				cpuSwitchLinked[key] = true
			}
		} else {
			addBidirectionalLink(sys, nicID(i), cpuID(numa), LinkPCI, pcieBW)
		}
	}

	// 4. Cross-socket.
	crossBW := CrossSocketBandwidthGBs(desc.CPU.Arch, desc.CPU.Vendor, desc.CPU.Model)
	for i := 0; i < desc.CPU.Count; i++ {
		for j := 0; j < desc.CPU.Count; j++ {
			if i == j {
				continue
			}
			sys.Links = append(sys.Links, Link{Source: cpuID(i), Destination: cpuID(j), Type: LinkSYS, BandwidthGB: crossBW})
		}
	}

	sys.Reindex()
	return sys, nil
}

func validateDesc(desc HardwareDesc) error {
	if len(desc.NumaMapping) != desc.GPU.Count {
		return invalidConfigf("numaMapping has %d entries, expected gpu.count=%d", len(desc.NumaMapping), desc.GPU.Count)
	}
	for _, n := range desc.NumaMapping {
		if n < 0 || n >= desc.CPU.Count {
			return invalidConfigf("numaMapping entry %d out of range for cpu.count=%d", n, desc.CPU.Count)
		}
	}
	if desc.PCIe.SwitchesPerCPU > 0 && desc.CPU.Count == 0 {
		return invalidConfigf("pcie.switchesPerCPU=%d but cpu.count=0", desc.PCIe.SwitchesPerCPU)
	}
	if desc.PCIe.SwitchesPerCPU*desc.CPU.Count == 0 && desc.PCIe.SwitchesPerCPU != 0 {
		return invalidConfigf("switched PCIe wiring demanded but switchesPerCPU*cpuCount == 0")
	}
	if desc.PCIe.Gen > 0 && PCIeBandwidthGBs(desc.PCIe.Gen, desc.PCIe.Width) <= 0 {
		return invalidConfigf("pcie bandwidth would be non-positive for gen=%d width=%d", desc.PCIe.Gen, desc.PCIe.Width)
	}
	if desc.NIC.Count > 0 && desc.NIC.SpeedGBs <= 0 {
		return invalidConfigf("nic.speedGBs must be positive, got %v", desc.NIC.SpeedGBs)
	}
	return nil
}

func numaOf(mapping []int, gpuOrNicIndex, cpuCount int) (int, error) {
	if gpuOrNicIndex < 0 || gpuOrNicIndex >= len(mapping) {
		return 0, invalidConfigf("index %d out of range of numaMapping (len=%d)", gpuOrNicIndex, len(mapping))
	}
	n := mapping[gpuOrNicIndex]
	if n < 0 || n >= cpuCount {
		return 0, invalidConfigf("numaMapping[%d]=%d out of range for cpu.count=%d", gpuOrNicIndex, n, cpuCount)
	}
	return n, nil
}

func addBidirectionalLink(sys *System, a, b string, t LinkType, bw float64) {
	sys.Links = append(sys.Links, Link{Source: a, Destination: b, Type: t, BandwidthGB: bw})
	sys.Links = append(sys.Links, Link{Source: b, Destination: a, Type: t, BandwidthGB: bw})
}

// computeAggregates fills MaxBandwidthGB and TotalBandwidthGB from the link
// list. TotalBandwidthGB is the sum of bandwidths of every link whose source
// is a GPU (the aggregate egress capacity the ring/tree search compares
// candidate speeds against); MaxBandwidthGB is the maximum bandwidth of any
// link in the system.
func computeAggregates(sys *System) {
	var maxBW, totalBW float64
	for _, l := range sys.Links {
		if l.BandwidthGB > maxBW {
			maxBW = l.BandwidthGB
		}
		if src := sys.NodeByIdentity(l.Source); src != nil && src.Type == NodeGPU {
			totalBW += l.BandwidthGB
		}
	}
	sys.MaxBandwidthGB = maxBW
	sys.TotalBandwidthGB = totalBW
}
