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

// Package hardware loads HardwareDesc/ScaleUnit documents from YAML.
package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/scitix/topoplan/consts"
	"github.com/scitix/topoplan/internal/topology"
	"github.com/scitix/topoplan/pkg/utils"
)

// defaultPath falls back from the pod-mounted production config path to a
// path relative to this source file, the same two-tier lookup the teacher's
// DefaultComponentConfig uses for per-component defaults.
func defaultPath() string {
	prodPath := filepath.Join(consts.DefaultProductionCfgPath, consts.DefaultHardwareCfgName)
	if _, err := os.Stat(prodPath); err == nil {
		return prodPath
	}
	_, curFile, _, ok := runtime.Caller(0)
	if !ok {
		return prodPath
	}
	return filepath.Join(filepath.Dir(curFile), consts.DefaultHardwareCfgName)
}

// Load decodes a HardwareDesc from file, or from the default location when
// file is empty.
func Load(file string) (*topology.HardwareDesc, error) {
	if file == "" {
		file = defaultPath()
	}
	desc := &topology.HardwareDesc{}
	if err := utils.LoadFromYaml(file, desc); err != nil {
		return nil, fmt.Errorf("load hardware config %q: %w", file, err)
	}
	return desc, nil
}

// scaleUnitDoc wraps an optional ScaleUnit beside a HardwareDesc document,
// letting a single file describe a multi-server tile without a second flag.
type scaleUnitDoc struct {
	ScaleUnit *topology.ScaleUnit `json:"scaleUnit,omitempty" yaml:"scaleUnit,omitempty"`
}

// LoadScaleUnit decodes the optional scaleUnit block from a hardware
// document. Returns (nil, nil) when the document carries none.
func LoadScaleUnit(file string) (*topology.ScaleUnit, error) {
	if file == "" {
		file = defaultPath()
	}
	var doc scaleUnitDoc
	if err := utils.LoadFromYaml(file, &doc); err != nil {
		return nil, fmt.Errorf("load hardware config %q: %w", file, err)
	}
	return doc.ScaleUnit, nil
}
