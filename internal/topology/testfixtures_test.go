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

// dgxSM90Desc models scenario 1 of spec.md §8: 8 GPUs + 4 NVSwitches, SM90,
// Intel SRP, 8x 50 GB/s NICs, Gen5 x16 PCIe, 2 sockets.
func dgxSM90Desc() HardwareDesc {
	return HardwareDesc{
		Name: "dgx-sm90",
		GPU: GPUDesc{
			Count:          8,
			Type:           GPUTypeNVIDIA,
			GenerationCode: 90,
		},
		CPU: CPUDesc{
			Count:  2,
			Arch:   ArchX86,
			Vendor: VendorIntel,
			Model:  IntelModelSRP,
		},
		NIC: NICDesc{
			Count:    8,
			SpeedGBs: 50,
		},
		PCIe: PCIeDesc{
			Gen:            5,
			Width:          16,
			SwitchesPerCPU: 2,
		},
		NVSwitch:    NVSwitchDesc{Count: 4},
		NumaMapping: []int{0, 0, 0, 0, 1, 1, 1, 1},
	}
}

// a100SM80Desc models scenario 2: 8 GPUs + 6 NVSwitches, SM80, Intel SKL, 8x
// 25 GB/s NICs, Gen4 x16 PCIe.
func a100SM80Desc() HardwareDesc {
	desc := dgxSM90Desc()
	desc.Name = "a100-sm80"
	desc.GPU.GenerationCode = 80
	desc.CPU.Model = IntelModelSKL
	desc.NIC.SpeedGBs = 25
	desc.PCIe.Gen = 4
	desc.NVSwitch.Count = 6
	return desc
}

// mi300xDesc models scenario 3: 8 GPUs xGMI full mesh, 2x AMD Genoa, 8x 50
// GB/s NICs, Gen5 x16 PCIe.
func mi300xDesc() HardwareDesc {
	return HardwareDesc{
		Name: "mi300x",
		GPU: GPUDesc{
			Count:     8,
			Type:      GPUTypeAMD,
			AMDFamily: "MI300",
		},
		CPU: CPUDesc{
			Count:  2,
			Arch:   ArchX86,
			Vendor: VendorAMD,
			Model:  "Genoa",
		},
		NIC: NICDesc{
			Count:    8,
			SpeedGBs: 50,
		},
		PCIe: PCIeDesc{
			Gen:            5,
			Width:          16,
			SwitchesPerCPU: 2,
		},
		NumaMapping: []int{0, 0, 0, 0, 1, 1, 1, 1},
	}
}

// a100NvlinkMeshDesc is a genuinely NVIDIA system wired with direct
// GPU-GPU NVLink pairs instead of NVSwitches: same full-mesh NVL shape as
// mi300xDesc, but desc.GPU.Type stays GPUTypeNVIDIA.
func a100NvlinkMeshDesc() HardwareDesc {
	desc := a100SM80Desc()
	desc.Name = "a100-nvlink-mesh"
	desc.NVSwitch.Count = 0
	desc.GPU.NvlinksPerPair = 6
	return desc
}

func mustBuildSystem(desc HardwareDesc) (*System, *DecisionLog, error) {
	log := NewDecisionLog()
	sys, err := BuildSystem(desc, nil, log)
	return sys, log, err
}
