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
package service

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	hardwareconfig "github.com/scitix/topoplan/config/hardware"
	optionsconfig "github.com/scitix/topoplan/config/options"
	patternconfig "github.com/scitix/topoplan/config/pattern"
	"github.com/scitix/topoplan/internal/topology"
	"github.com/scitix/topoplan/metrics"
)

// Service is the long-running process lifecycle contract every topoplan
// daemon mode implements.
type Service interface {
	Run()
	Status() (interface{}, error)
	Metrics(ctx context.Context, since time.Time) (interface{}, error)
	Stop() error
}

// PlannerService re-runs the init driver (spec.md §4.G) each time the
// watched hardware-description file changes, never sharing mutable engine
// state across runs: every tick produces one independent, immutable Plan.
type PlannerService struct {
	ctx    context.Context
	cancel context.CancelFunc

	hardwarePath string
	optionsPath  string
	patternPath  string
	pollPeriod   time.Duration

	mu          sync.RWMutex
	lastModTime time.Time
	lastPlan    *topology.Plan
	lastErr     error
}

// NewService constructs a PlannerService watching hardwarePath for changes.
// optionsPath/patternPath may be empty, in which case each loader falls
// back to its own packaged default.
func NewService(hardwarePath, optionsPath, patternPath string) (Service, error) {
	ctx, cancel := context.WithCancel(context.Background())
	return &PlannerService{
		ctx:          ctx,
		cancel:       cancel,
		hardwarePath: hardwarePath,
		optionsPath:  optionsPath,
		patternPath:  patternPath,
		pollPeriod:   5 * time.Second,
	}, nil
}

func (p *PlannerService) Run() {
	p.recompute()
	go p.loop()
}

func (p *PlannerService) loop() {
	defer func() {
		if err := recover(); err != nil {
			logrus.WithField("daemon", "run").Errorf("planner service panic: %v", err)
		}
	}()
	ticker := time.NewTicker(p.pollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(p.hardwarePath)
			if err != nil {
				logrus.WithField("daemon", "run").Errorf("stat hardware file %s: %v", p.hardwarePath, err)
				continue
			}
			p.mu.RLock()
			unchanged := info.ModTime().Equal(p.lastModTime)
			p.mu.RUnlock()
			if unchanged {
				continue
			}
			p.recompute()
		}
	}
}

func (p *PlannerService) recompute() {
	desc, err := hardwareconfig.Load(p.hardwarePath)
	if err != nil {
		p.setResult(nil, err)
		return
	}
	scale, err := hardwareconfig.LoadScaleUnit(p.hardwarePath)
	if err != nil {
		p.setResult(nil, err)
		return
	}
	opts, err := optionsconfig.Load(p.optionsPath)
	if err != nil {
		p.setResult(nil, err)
		return
	}
	registry, err := patternconfig.Load(p.patternPath)
	if err != nil {
		p.setResult(nil, err)
		return
	}

	plan, err := topology.ComputePlan(*desc, scale, opts, registry)
	if err != nil {
		p.setResult(nil, err)
		return
	}

	metrics.GetPlanResMetrics().ExportPlan(desc.Name, plan)
	p.setResult(plan, nil)
}

func (p *PlannerService) setResult(plan *topology.Plan, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		if info, statErr := os.Stat(p.hardwarePath); statErr == nil {
			p.lastModTime = info.ModTime()
		}
		p.lastPlan = plan
	}
	p.lastErr = err
	if err != nil {
		logrus.WithField("daemon", "run").Errorf("plan recompute failed: %v", err)
	}
}

func (p *PlannerService) Status() (interface{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastErr != nil {
		return nil, p.lastErr
	}
	return p.lastPlan, nil
}

func (p *PlannerService) Metrics(ctx context.Context, since time.Time) (interface{}, error) {
	return p.Status()
}

func (p *PlannerService) Stop() error {
	p.cancel()
	return nil
}
