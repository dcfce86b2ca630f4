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

// Package testonly holds helpers for testing MetricFactory implementations
// and for asserting on metric changes.
package testonly

import (
	"testing"

	"github.com/horodocs/horodocs/monitoring"
)

var labelCases = []struct {
	suffix     string
	labelNames []string
	labelVals  []string
}{
	{suffix: "0"},
	{suffix: "1", labelNames: []string{"outcome"}, labelVals: []string{"final"}},
	{suffix: "2", labelNames: []string{"outcome", "source"}, labelVals: []string{"final", "http"}},
}

// TestCounter exercises a Counter produced by factory.
func TestCounter(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, tc := range labelCases {
		name := "test_counter" + tc.suffix
		c := factory.NewCounter(name, "Test only", tc.labelNames...)
		if got := c.Value(tc.labelVals...); got != 0 {
			t.Errorf("%s%v.Value()=%v, want 0", name, tc.labelVals, got)
		}
		c.Inc(tc.labelVals...)
		c.Add(2.5, tc.labelVals...)
		if got, want := c.Value(tc.labelVals...), 3.5; got != want {
			t.Errorf("%s%v.Value()=%v, want %v", name, tc.labelVals, got, want)
		}
		// A wrong number of labels is logged and ignored.
		bogus := append(append([]string{}, tc.labelVals...), "bogus")
		c.Inc(bogus...)
		if got, want := c.Value(tc.labelVals...), 3.5; got != want {
			t.Errorf("%s%v.Value() after bad labels=%v, want %v", name, tc.labelVals, got, want)
		}
		if got := c.Value(bogus...); got != 0 {
			t.Errorf("%s%v.Value()=%v, want 0", name, bogus, got)
		}
	}
}

// TestGauge exercises a Gauge produced by factory.
func TestGauge(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, tc := range labelCases {
		name := "test_gauge" + tc.suffix
		g := factory.NewGauge(name, "Test only", tc.labelNames...)
		g.Inc(tc.labelVals...)
		g.Inc(tc.labelVals...)
		g.Dec(tc.labelVals...)
		g.Add(-3, tc.labelVals...)
		if got, want := g.Value(tc.labelVals...), -2.0; got != want {
			t.Errorf("%s%v.Value()=%v, want %v", name, tc.labelVals, got, want)
		}
		g.Set(42, tc.labelVals...)
		if got, want := g.Value(tc.labelVals...), 42.0; got != want {
			t.Errorf("%s%v.Value() after Set=%v, want %v", name, tc.labelVals, got, want)
		}
	}
}

// TestHistogram exercises a Histogram produced by factory.
func TestHistogram(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, tc := range labelCases {
		name := "test_histogram" + tc.suffix
		h := factory.NewHistogram(name, "Test only", monitoring.ExpBuckets(1, 2, 8), tc.labelNames...)
		if count, sum := h.Info(tc.labelVals...); count != 0 || sum != 0 {
			t.Errorf("%s%v.Info()=%d,%v, want 0,0", name, tc.labelVals, count, sum)
		}
		for _, v := range []float64{1, 3, 30} {
			h.Observe(v, tc.labelVals...)
		}
		if count, sum := h.Info(tc.labelVals...); count != 3 || sum != 34 {
			t.Errorf("%s%v.Info()=%d,%v, want 3,34", name, tc.labelVals, count, sum)
		}
	}
}
