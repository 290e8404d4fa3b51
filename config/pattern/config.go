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

// Package pattern loads the supplemental hardware pattern registry,
// appended after internal/topology.DefaultRegistry.
package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/scitix/topoplan/consts"
	"github.com/scitix/topoplan/internal/topology"
	"github.com/scitix/topoplan/pkg/utils"
)

func defaultPath() string {
	prodPath := filepath.Join(consts.DefaultProductionCfgPath, consts.DefaultPatternCfgName)
	if _, err := os.Stat(prodPath); err == nil {
		return prodPath
	}
	_, curFile, _, ok := runtime.Caller(0)
	if !ok {
		return prodPath
	}
	return filepath.Join(filepath.Dir(curFile), consts.DefaultPatternCfgName)
}

// file is the on-disk shape of a supplemental pattern registry: entries are
// appended after internal/topology.DefaultRegistry(), never replacing it.
type file struct {
	Patterns []topology.HardwarePattern `json:"patterns" yaml:"patterns"`
}

// Load returns the CORE's build-time registry plus any supplemental entries
// decoded from path (or from the default location when path is empty).
func Load(path string) ([]topology.HardwarePattern, error) {
	if path == "" {
		path = defaultPath()
	}
	var f file
	if err := utils.LoadFromYaml(path, &f); err != nil {
		return nil, fmt.Errorf("load pattern registry %q: %w", path, err)
	}
	return append(topology.DefaultRegistry(), f.Patterns...), nil
}
