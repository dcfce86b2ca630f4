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

package ledger

import (
	"errors"
	"testing"

	"github.com/horodocs/horodocs/monitoring"
)

func TestConfirmationState(t *testing.T) {
	for _, tc := range []struct {
		s        ConfirmationState
		str      string
		terminal bool
	}{
		{NotFound, "not-found", true},
		{Final, "final", true},
		{Pending, "pending", false},
		{Indeterminate, "indeterminate", false},
	} {
		if got := tc.s.String(); got != tc.str {
			t.Errorf("String()=%q, want %q", got, tc.str)
		}
		if got := tc.s.Terminal(); got != tc.terminal {
			t.Errorf("%v.Terminal()=%v, want %v", tc.s, got, tc.terminal)
		}
	}
}

func TestCapability(t *testing.T) {
	mf := monitoring.InertMetricFactory{}
	c := NewCapability(mf)
	if !c.Enabled() || c.gauge.Value() != 1 {
		t.Fatalf("new Capability enabled=%v gauge=%v, want enabled", c.Enabled(), c.gauge.Value())
	}
	c.Disable(errors.New("insufficient funds"))
	c.Disable(errors.New("again"))
	if c.Enabled() || c.gauge.Value() != 0 {
		t.Errorf("after Disable enabled=%v gauge=%v, want disabled", c.Enabled(), c.gauge.Value())
	}
	c.Enable()
	if !c.Enabled() || c.gauge.Value() != 1 {
		t.Errorf("after Enable enabled=%v gauge=%v, want enabled", c.Enabled(), c.gauge.Value())
	}
}
