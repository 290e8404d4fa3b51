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
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Phase tags the CORE stage an entry was appended from.
type Phase string

const (
	PhaseTopoBuild    Phase = "topoBuild"
	PhaseComputePaths Phase = "computePaths"
	PhaseTrimSystem   Phase = "trimSystem"
	PhaseSearchInit   Phase = "searchInit"
	PhaseRingSearch   Phase = "ringSearch"
	PhaseTreeSearch   Phase = "treeSearch"
	PhaseChannelSetup Phase = "channelSetup"
	PhasePatternMatch Phase = "patternMatch"
)

// Entry is one step-numbered, append-only decision record.
type Entry struct {
	Step        int                    `json:"step"`
	Phase       Phase                  `json:"phase"`
	Action      string                 `json:"action"`
	Rationale   string                 `json:"rationale"`
	Alternatives []string              `json:"alternatives,omitempty"`
	Source      string                 `json:"source,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (e Entry) JSON() (string, error) {
	data, err := json.Marshal(e)
	return string(data), err
}

// DecisionLog is the process-local, append-only, step-numbered audit trail
// threaded through every CORE phase and returned as part of Plan.
type DecisionLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewDecisionLog returns an empty log.
func NewDecisionLog() *DecisionLog {
	return &DecisionLog{}
}

// Append adds a new entry with the next monotonically increasing step index.
func (l *DecisionLog) Append(phase Phase, action, rationale string, alternatives []string, source string, payload map[string]interface{}) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{
		Step:         len(l.entries) + 1,
		Phase:        phase,
		Action:       action,
		Rationale:    rationale,
		Alternatives: alternatives,
		Source:       source,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
	l.entries = append(l.entries, e)
	logrus.WithFields(logrus.Fields{
		"phase": phase,
		"step":  e.Step,
	}).Debugf("%s: %s", action, rationale)
	return e
}

// Len returns the number of entries appended so far.
func (l *DecisionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns a defensive copy of the entire log, in step order.
func (l *DecisionLog) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// FilterByPhase returns a defensive copy of every entry appended under the
// given phase, in step order.
func (l *DecisionLog) FilterByPhase(phase Phase) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Phase == phase {
			out = append(out, e)
		}
	}
	return out
}
