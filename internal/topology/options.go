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

// OptionCategory groups options by which phase consumes them.
type OptionCategory string

const (
	OptionCategoryPath   OptionCategory = "path"
	OptionCategorySearch OptionCategory = "search"
	OptionCategoryTuning OptionCategory = "tuning" // consumed only by the out-of-scope tuning collaborator
)

// OptionDescriptor is the introspectable {default, override, type, category}
// record for one named option (spec.md §4.A).
type OptionDescriptor struct {
	Name     string         `json:"name" yaml:"name"`
	Default  interface{}    `json:"default" yaml:"default"`
	Override interface{}    `json:"override,omitempty" yaml:"override,omitempty"`
	Type     string         `json:"type" yaml:"type"`
	Category OptionCategory `json:"category" yaml:"category"`
}

// Effective returns Override if present, else Default.
func (d OptionDescriptor) Effective() interface{} {
	if d.Override != nil {
		return d.Override
	}
	return d.Default
}

const optionAuto = "auto"

// Options is the effective option set recognized by the CORE, keyed by
// option name. It is always constructed with defaults and then overlaid
// with overrides supplied by the caller.
type Options struct {
	NvbDisable        bool
	PxnDisable        bool
	PxnC2C            bool
	CrossNic          CrossNicValue
	MinChannels       ChannelBound
	MaxChannels       ChannelBound
	ModelMatchDisable bool

	// Consumed only by the out-of-scope tuning collaborator; the CORE never
	// reads these, it only threads them through so callers can round-trip
	// an options document.
	AlgoForce    string
	ProtoForce   string
	ThreadsForce string

	raw map[string]*OptionDescriptor
}

// CrossNicValue is 0, 1, or "auto". Auto is held as the Auto flag rather
// than as a number; ResolvedCrossNicStart maps it to a starting tier of 0.
type CrossNicValue struct {
	Auto  bool
	Value int
}

// ChannelBound is either an explicit integer or "auto".
type ChannelBound struct {
	Auto  bool
	Value int
}

// NewDefaultOptions returns the option set with every option at its
// specified default.
func NewDefaultOptions() *Options {
	o := &Options{
		NvbDisable:        false,
		PxnDisable:        false,
		PxnC2C:            false,
		CrossNic:          CrossNicValue{Auto: true},
		MinChannels:       ChannelBound{Auto: true},
		MaxChannels:       ChannelBound{Auto: true},
		ModelMatchDisable: false,
	}
	return o
}

// ApplyOverrides overlays a raw name->value override map (as decoded from
// YAML or CLI flags) onto the defaults.
func (o *Options) ApplyOverrides(overrides map[string]interface{}) error {
	for name, v := range overrides {
		if err := o.applyOne(name, v); err != nil {
			return fmt.Errorf("invalid-config: option %q: %w", name, err)
		}
	}
	return nil
}

func (o *Options) applyOne(name string, v interface{}) error {
	switch name {
	case "nvb-disable":
		b, err := asBool(v)
		if err != nil {
			return err
		}
		o.NvbDisable = b
	case "pxn-disable":
		b, err := asBool(v)
		if err != nil {
			return err
		}
		o.PxnDisable = b
	case "pxn-c2c":
		b, err := asBool(v)
		if err != nil {
			return err
		}
		o.PxnC2C = b
	case "cross-nic":
		cv, err := asCrossNic(v)
		if err != nil {
			return err
		}
		o.CrossNic = cv
	case "min-channels":
		cb, err := asChannelBound(v)
		if err != nil {
			return err
		}
		o.MinChannels = cb
	case "max-channels":
		cb, err := asChannelBound(v)
		if err != nil {
			return err
		}
		o.MaxChannels = cb
	case "model-match-disable":
		b, err := asBool(v)
		if err != nil {
			return err
		}
		o.ModelMatchDisable = b
	case "algo-force":
		o.AlgoForce = fmt.Sprintf("%v", v)
	case "proto-force":
		o.ProtoForce = fmt.Sprintf("%v", v)
	case "threads-force":
		o.ThreadsForce = fmt.Sprintf("%v", v)
	default:
		return fmt.Errorf("unrecognized option")
	}
	return nil
}

func asBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

// ResolvedCrossNicStart returns the local relaxation-tier starting value for
// cross-nic: 0 if the option is auto, else the explicit value.
func (c CrossNicValue) ResolvedCrossNicStart() int {
	if c.Auto {
		return 0
	}
	return c.Value
}

func asCrossNic(v interface{}) (CrossNicValue, error) {
	switch t := v.(type) {
	case string:
		if t == optionAuto {
			return CrossNicValue{Auto: true}, nil
		}
		return CrossNicValue{}, fmt.Errorf("expected 0, 1, or %q, got %q", optionAuto, t)
	case int:
		if t != 0 && t != 1 {
			return CrossNicValue{}, fmt.Errorf("expected 0 or 1, got %d", t)
		}
		return CrossNicValue{Value: t}, nil
	case float64:
		return asCrossNic(int(t))
	default:
		return CrossNicValue{}, fmt.Errorf("expected 0, 1, or %q, got %T", optionAuto, v)
	}
}

func asChannelBound(v interface{}) (ChannelBound, error) {
	switch t := v.(type) {
	case string:
		if t == optionAuto {
			return ChannelBound{Auto: true}, nil
		}
		return ChannelBound{}, fmt.Errorf("expected an integer or %q, got %q", optionAuto, t)
	case int:
		return ChannelBound{Value: t}, nil
	case float64:
		return ChannelBound{Value: int(t)}, nil
	default:
		return ChannelBound{}, fmt.Errorf("expected an integer or %q, got %T", optionAuto, v)
	}
}

// Descriptors returns the introspectable descriptor table for every
// recognized option, reflecting current defaults/overrides.
func (o *Options) Descriptors() map[string]OptionDescriptor {
	d := map[string]OptionDescriptor{
		"nvb-disable":         {Name: "nvb-disable", Default: false, Type: "bool", Category: OptionCategoryPath},
		"pxn-disable":         {Name: "pxn-disable", Default: false, Type: "bool", Category: OptionCategoryPath},
		"pxn-c2c":             {Name: "pxn-c2c", Default: false, Type: "bool", Category: OptionCategoryPath},
		"cross-nic":           {Name: "cross-nic", Default: "auto", Type: "int-or-auto", Category: OptionCategorySearch},
		"min-channels":        {Name: "min-channels", Default: "auto", Type: "int-or-auto", Category: OptionCategorySearch},
		"max-channels":        {Name: "max-channels", Default: "auto", Type: "int-or-auto", Category: OptionCategorySearch},
		"algo-force":          {Name: "algo-force", Default: "", Type: "string", Category: OptionCategoryTuning},
		"proto-force":         {Name: "proto-force", Default: "", Type: "string", Category: OptionCategoryTuning},
		"threads-force":       {Name: "threads-force", Default: "", Type: "string", Category: OptionCategoryTuning},
		"model-match-disable": {Name: "model-match-disable", Default: false, Type: "bool", Category: OptionCategorySearch},
	}
	if o.NvbDisable {
		e := d["nvb-disable"]
		e.Override = true
		d["nvb-disable"] = e
	}
	if o.PxnDisable {
		e := d["pxn-disable"]
		e.Override = true
		d["pxn-disable"] = e
	}
	if o.PxnC2C {
		e := d["pxn-c2c"]
		e.Override = true
		d["pxn-c2c"] = e
	}
	if !o.CrossNic.Auto {
		e := d["cross-nic"]
		e.Override = o.CrossNic.Value
		d["cross-nic"] = e
	}
	if !o.MinChannels.Auto {
		e := d["min-channels"]
		e.Override = o.MinChannels.Value
		d["min-channels"] = e
	}
	if !o.MaxChannels.Auto {
		e := d["max-channels"]
		e.Override = o.MaxChannels.Value
		d["max-channels"] = e
	}
	if o.ModelMatchDisable {
		e := d["model-match-disable"]
		e.Override = true
		d["model-match-disable"] = e
	}
	return d
}

// ResolveChannelBounds clamps min/max channels per spec.md §4.G step 5:
// minChannels = max(1, option); maxChannels = min(64, option), with
// maxChannels >= minChannels (repaired to equality at min(64, minChannels)).
func (o *Options) ResolveChannelBounds() (min, max int) {
	min = 1
	if !o.MinChannels.Auto {
		min = o.MinChannels.Value
	}
	if min < 1 {
		min = 1
	}
	if min > MaxChannelsHardCap {
		min = MaxChannelsHardCap
	}
	max = MaxChannelsHardCap
	if !o.MaxChannels.Auto {
		max = o.MaxChannels.Value
	}
	if max > MaxChannelsHardCap {
		max = MaxChannelsHardCap
	}
	if max < min {
		max = min
		if max > MaxChannelsHardCap {
			max = MaxChannelsHardCap
		}
	}
	return min, max
}
