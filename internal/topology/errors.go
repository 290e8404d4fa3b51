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
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when the hardware description is structurally
// impossible to build a System from (spec.md §7). It is the only error
// condition that aborts the planner; every other recoverable condition
// (search timeout, no feasible plan, path not found, pattern budget
// exhaustion) is expressed in-band in the returned Plan.
var ErrInvalidConfig = errors.New("invalid-config")

func invalidConfigf(format string, args ...interface{}) error {
	return fmt.Errorf("invalid-config: "+format+": %w", append(args, ErrInvalidConfig)...)
}
