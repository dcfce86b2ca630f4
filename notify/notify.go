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

// Package notify defines how the daemons hand messages to the delivery
// layer (receipt rendering and e-mail), which lives outside this module.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/horodocs/horodocs/merkle"
	"github.com/horodocs/horodocs/types"
	"k8s.io/klog/v2"
)

// Kind says what a Notification reports.
type Kind int

// Notification kinds.
const (
	// Receipt carries the inclusion proof of one leaf after its epoch was
	// submitted.
	Receipt Kind = iota
	// Anchored reports that a submitted root is final on the ledger.
	Anchored
	// AnchorFailed reports that a submitted root was dropped by the ledger.
	AnchorFailed
	// OperatorWarning is addressed to the operators, e.g. low balance.
	OperatorWarning
)

func (k Kind) String() string {
	switch k {
	case Receipt:
		return "receipt"
	case Anchored:
		return "anchored"
	case AnchorFailed:
		return "anchor-failed"
	case OperatorWarning:
		return "operator-warning"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Item identifies one submission in an Anchored or AnchorFailed message.
type Item struct {
	Quittance  string
	CaseNumber string
	FileID     string
}

// Notification is a message for the delivery layer. Which fields are set
// depends on Kind.
type Notification struct {
	Kind      Kind
	Recipient string
	Language  string

	// Receipt fields.
	Submission *types.Submission
	Leaf       string
	Anterior   []merkle.ProofElement
	Posterior  []merkle.ProofElement
	Root       string
	Witness    string
	Payload    string

	// TxID is set for every kind but OperatorWarning.
	TxID string
	// Items lists the submissions an Anchored or AnchorFailed message is
	// about.
	Items []Item
	// Message is free text for OperatorWarning.
	Message string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. It is the notifier used when
// no delivery layer is configured.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, n Notification) error {
	switch n.Kind {
	case Receipt:
		q := ""
		if n.Submission != nil {
			q = n.Submission.Quittance
		}
		klog.Infof("receipt for %s: quittance=%s leaf=%s tx=%s anterior=%s posterior=%s",
			n.Recipient, q, n.Leaf, n.TxID, merkle.FormatProof(n.Anterior), merkle.FormatProof(n.Posterior))
	case Anchored, AnchorFailed:
		qs := make([]string, 0, len(n.Items))
		for _, it := range n.Items {
			qs = append(qs, it.Quittance)
		}
		klog.Infof("%s for %s: tx=%s quittances=[%s]", n.Kind, n.Recipient, n.TxID, strings.Join(qs, " "))
	case OperatorWarning:
		klog.Warningf("operator warning: %s", n.Message)
	default:
		return fmt.Errorf("notify: unknown kind %v", n.Kind)
	}
	return nil
}
