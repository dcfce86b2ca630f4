// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package monitoring

import (
	"fmt"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// InertMetricFactory creates metrics that are only held in memory. Used in
// tests and when no exporter is configured.
type InertMetricFactory struct{}

// NewCounter creates a new in-memory Counter.
func (InertMetricFactory) NewCounter(name, help string, labelNames ...string) Counter {
	return newInert(name, labelNames)
}

// NewGauge creates a new in-memory Gauge.
func (InertMetricFactory) NewGauge(name, help string, labelNames ...string) Gauge {
	return newInert(name, labelNames)
}

// NewHistogram creates a new in-memory Histogram. The buckets are ignored.
func (InertMetricFactory) NewHistogram(name, help string, _ []float64, labelNames ...string) Histogram {
	return newInert(name, labelNames)
}

type inertCell struct {
	sum   float64
	count uint64
}

// inertMetric backs all three metric kinds. Counters and gauges use the sum
// of each cell; histograms also use its count.
type inertMetric struct {
	name       string
	labelCount int

	mu    sync.Mutex
	cells map[string]*inertCell
}

func newInert(name string, labelNames []string) *inertMetric {
	return &inertMetric{name: name, labelCount: len(labelNames), cells: make(map[string]*inertCell)}
}

// update applies fn to the cell for labelVals, creating it if needed.
func (m *inertMetric) update(labelVals []string, fn func(c *inertCell)) {
	key, err := keyForLabels(labelVals, m.labelCount)
	if err != nil {
		klog.Errorf("%s: %v", m.name, err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cells[key]
	if !ok {
		c = &inertCell{}
		m.cells[key] = c
	}
	fn(c)
}

func (m *inertMetric) read(labelVals []string) inertCell {
	key, err := keyForLabels(labelVals, m.labelCount)
	if err != nil {
		klog.Errorf("%s: %v", m.name, err)
		return inertCell{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cells[key]; ok {
		return *c
	}
	return inertCell{}
}

func (m *inertMetric) Inc(labelVals ...string) { m.Add(1, labelVals...) }

func (m *inertMetric) Dec(labelVals ...string) { m.Add(-1, labelVals...) }

func (m *inertMetric) Add(val float64, labelVals ...string) {
	m.update(labelVals, func(c *inertCell) { c.sum += val })
}

func (m *inertMetric) Set(val float64, labelVals ...string) {
	m.update(labelVals, func(c *inertCell) { c.sum = val })
}

func (m *inertMetric) Value(labelVals ...string) float64 {
	return m.read(labelVals).sum
}

func (m *inertMetric) Observe(val float64, labelVals ...string) {
	m.update(labelVals, func(c *inertCell) {
		c.sum += val
		c.count++
	})
}

func (m *inertMetric) Info(labelVals ...string) (uint64, float64) {
	c := m.read(labelVals)
	return c.count, c.sum
}

func keyForLabels(labelVals []string, count int) (string, error) {
	if len(labelVals) != count {
		return "", fmt.Errorf("invalid label count %d; want %d", len(labelVals), count)
	}
	return strings.Join(labelVals, "|"), nil
}
