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

package notify

import (
	"context"
	"testing"

	"github.com/horodocs/horodocs/merkle"
	"github.com/horodocs/horodocs/types"
)

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		Receipt:         "receipt",
		Anchored:        "anchored",
		AnchorFailed:    "anchor-failed",
		OperatorWarning: "operator-warning",
		Kind(42):        "Kind(42)",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String()=%q, want %q", int(k), got, want)
		}
	}
}

func TestLogNotifier(t *testing.T) {
	ctx := context.Background()
	for _, n := range []Notification{
		{Kind: Receipt, Recipient: "a@example.org", Submission: &types.Submission{Quittance: "AB-CD"},
			Anterior: []merkle.ProofElement{{Level: 0, Index: 0, Hash: "00"}}},
		{Kind: Receipt},
		{Kind: Anchored, Recipient: "a@example.org", TxID: "0x01", Items: []Item{{Quittance: "Q1"}, {Quittance: "Q2"}}},
		{Kind: AnchorFailed, TxID: "0x02"},
		{Kind: OperatorWarning, Message: "balance low"},
	} {
		if err := (LogNotifier{}).Notify(ctx, n); err != nil {
			t.Errorf("Notify(%v)=%v, want nil", n.Kind, err)
		}
	}
	if err := (LogNotifier{}).Notify(ctx, Notification{Kind: Kind(9)}); err == nil {
		t.Error("Notify(unknown kind) succeeded, want error")
	}
}
