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
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/scitix/topoplan/consts"
	"github.com/scitix/topoplan/pkg/utils"
)

type MetricsUserConfig struct {
	Metrics *MetricsConfig `json:"metrics" yaml:"metrics"`
}

type MetricsConfig struct {
	Port int `json:"port" yaml:"port"`
}

const defaultMetricsCfgName = "default_metrics.yaml"

func (c *MetricsUserConfig) LoadUserConfigFromYaml(file string) error {
	if file == "" {
		file = defaultMetricsConfigPath()
	}
	err := utils.LoadFromYaml(file, c)
	if err != nil || c.Metrics == nil {
		return fmt.Errorf("failed to load metrics config: %v", err)
	}
	return nil
}

// defaultMetricsConfigPath falls back from the pod-mounted production path
// to a copy shipped beside this package, the same two-tier lookup every
// other component config loader uses.
func defaultMetricsConfigPath() string {
	prodPath := filepath.Join(consts.DefaultProductionCfgPath, defaultMetricsCfgName)
	if _, err := os.Stat(prodPath); err == nil {
		return prodPath
	}
	_, curFile, _, ok := runtime.Caller(0)
	if !ok {
		return prodPath
	}
	return filepath.Join(filepath.Dir(curFile), defaultMetricsCfgName)
}

// LoadPort resolves the metrics port InitPrometheus should bind to: an
// explicit override file if given, otherwise the packaged default, falling
// back to consts.DefaultMetricsPort if neither can be loaded or set a port.
func LoadPort(file string) int {
	cfg := &MetricsUserConfig{}
	if err := cfg.LoadUserConfigFromYaml(file); err != nil {
		return consts.DefaultMetricsPort
	}
	if cfg.Metrics.Port <= 0 {
		return consts.DefaultMetricsPort
	}
	return cfg.Metrics.Port
}
