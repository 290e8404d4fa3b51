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
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/scitix/topoplan/internal/topology"
)

const MetricPrefix = "topoplan"

// PlanResMetrics exports the most recently completed Plan as Prometheus
// gauges. It never mixes state across plans: each ExportPlan call reflects
// exactly one completed, immutable Plan.
type PlanResMetrics struct {
	gauge *GaugeVecMetricExporter
}

func newPlanResMetrics() *PlanResMetrics {
	return &PlanResMetrics{
		gauge: NewGaugeVecMetricExporter(MetricPrefix, []string{"hardware", "matched_pattern"}),
	}
}

var planMetrics *PlanResMetrics
var once sync.Once

func GetPlanResMetrics() *PlanResMetrics {
	once.Do(func() {
		planMetrics = newPlanResMetrics()
	})
	return planMetrics
}

// ExportPlan sets the gauges for one completed Plan computation: ring/tree
// channel counts, total search iterations consumed, whether either search
// phase timed out, and a 1/0 pattern-match indicator.
func (m *PlanResMetrics) ExportPlan(hardwareName string, plan *topology.Plan) {
	matched := "none"
	matchedVal := 0.0
	if plan.MatchedPatternID != "" {
		matched = plan.MatchedPatternID
		matchedVal = 1.0
	}
	labels := []string{hardwareName, matched}

	m.gauge.SetMetric("ring_channels", labels, float64(len(plan.RingGraph.Channels)))
	m.gauge.SetMetric("tree_channels", labels, float64(len(plan.TreeGraph.Channels)))
	m.gauge.SetMetric("pattern_matched", labels, matchedVal)

	iterations, timedOut := searchOutcome(plan.Log)
	m.gauge.SetMetric("search_iterations", labels, float64(iterations))
	m.gauge.SetMetric("search_timed_out", labels, boolToFloat(timedOut))
}

// searchOutcome scans the decision log for the ring/tree search phases'
// terminal entries ("search-accepted" or "no-feasible-plan"), summing the
// iteration counts each phase recorded and OR-ing their timed-out flags.
func searchOutcome(log *topology.DecisionLog) (iterations int, timedOut bool) {
	for _, e := range log.Snapshot() {
		if e.Phase != topology.PhaseRingSearch && e.Phase != topology.PhaseTreeSearch {
			continue
		}
		if e.Action != "search-accepted" && e.Action != "no-feasible-plan" {
			continue
		}
		if v, ok := e.Payload["iterations"].(int); ok {
			iterations += v
		}
		if v, ok := e.Payload["timedOut"].(bool); ok && v {
			timedOut = true
		}
	}
	return iterations, timedOut
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// InitPrometheus serves the registered gauges on the given port.
func InitPrometheus(port int) {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logrus.WithField("metrics", "prometheus").Fatalf("metrics server failed: %v", err)
	}
}
