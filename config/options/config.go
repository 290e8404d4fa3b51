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

// Package options loads the option-override document (a flat name->value
// map) consumed by Options.ApplyOverrides.
package options

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
	prodPath := filepath.Join(consts.DefaultProductionCfgPath, consts.DefaultOptionsCfgName)
	if _, err := os.Stat(prodPath); err == nil {
		return prodPath
	}
	_, curFile, _, ok := runtime.Caller(0)
	if !ok {
		return prodPath
	}
	return filepath.Join(filepath.Dir(curFile), consts.DefaultOptionsCfgName)
}

// Load decodes a name->value override map from file, or from the default
// location when file is empty, and overlays it onto a freshly constructed
// default Options.
func Load(file string) (*topology.Options, error) {
	if file == "" {
		file = defaultPath()
	}
	overrides := map[string]interface{}{}
	if err := utils.LoadFromYaml(file, &overrides); err != nil {
		return nil, fmt.Errorf("load options config %q: %w", file, err)
	}
	opts := topology.NewDefaultOptions()
	if err := opts.ApplyOverrides(overrides); err != nil {
		return nil, err
	}
	return opts, nil
}
