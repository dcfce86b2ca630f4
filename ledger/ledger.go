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

// Package ledger defines the client side of the smart contract that anchors
// tree roots, and the process-wide flag recording whether anchoring is
// currently possible.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/horodocs/horodocs/monitoring"
	"github.com/horodocs/horodocs/types"
	"k8s.io/klog/v2"
)

// ErrLedgerCommunication is wrapped by errors from talking to the ledger
// node.
var ErrLedgerCommunication = errors.New("ledger communication error")

// TxID identifies a submitted transaction, as a 0x-prefixed hex hash.
type TxID string

// ConfirmationState is the result of asking the ledger about a transaction.
type ConfirmationState int

// Confirmation states. NotFound and Final are terminal.
const (
	NotFound ConfirmationState = iota
	Final
	Pending
	Indeterminate
)

func (s ConfirmationState) String() string {
	switch s {
	case NotFound:
		return "not-found"
	case Final:
		return "final"
	case Pending:
		return "pending"
	case Indeterminate:
		return "indeterminate"
	}
	return fmt.Sprintf("ConfirmationState(%d)", int(s))
}

// Terminal reports whether no further state change is expected.
func (s ConfirmationState) Terminal() bool {
	return s == NotFound || s == Final
}

// Submitter writes a value to the contract.
type Submitter interface {
	// Submit broadcasts a transaction carrying value. It does not retry,
	// but calling it again with the same value after a failure must not
	// put a second transaction on the ledger.
	Submit(ctx context.Context, value string) (TxID, error)
}

// ConfirmationChecker reports the state of a transaction.
type ConfirmationChecker interface {
	ConfirmationState(ctx context.Context, id TxID) (ConfirmationState, error)
}

// Decoder turns the call data of a contract transaction back into the
// anchored payload.
type Decoder interface {
	Decode(input []byte) (types.AnchorPayload, error)
}

// Client is the full ledger client.
type Client interface {
	Submitter
	ConfirmationChecker
	Decoder
}

// Capability is the flag gating new work: when disabled, the scheduler does
// not seal and ingress refuses submissions. It is safe for concurrent use.
type Capability struct {
	disabled atomic.Bool
	gauge    monitoring.Gauge
}

// NewCapability returns an enabled Capability exporting its state with mf.
func NewCapability(mf monitoring.MetricFactory) *Capability {
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	c := &Capability{gauge: mf.NewGauge("horodating_enabled", "Set to 1 while roots can be anchored")}
	c.gauge.Set(1)
	return c
}

// Enabled reports whether anchoring is possible.
func (c *Capability) Enabled() bool {
	return !c.disabled.Load()
}

// Disable marks anchoring as impossible.
func (c *Capability) Disable(reason error) {
	if !c.disabled.Swap(true) {
		klog.Errorf("Horodating disabled: %v", reason)
	}
	if c.gauge != nil {
		c.gauge.Set(0)
	}
}

// Enable clears the flag.
func (c *Capability) Enable() {
	if c.disabled.Swap(false) {
		klog.Info("Horodating re-enabled")
	}
	if c.gauge != nil {
		c.gauge.Set(1)
	}
}
