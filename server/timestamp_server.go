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

// Package server implements the operations offered to the request layer:
// submitting fingerprints, verifying receipts and the administrative
// switches. Errors carry gRPC status codes.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/horodocs/horodocs/batch"
	"github.com/horodocs/horodocs/config"
	"github.com/horodocs/horodocs/entropy"
	"github.com/horodocs/horodocs/ledger"
	"github.com/horodocs/horodocs/ledger/index"
	"github.com/horodocs/horodocs/merkle"
	"github.com/horodocs/horodocs/monitoring"
	"github.com/horodocs/horodocs/types"
	"github.com/horodocs/horodocs/util/clock"
	"github.com/horodocs/horodocs/verify"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

const (
	saltBytes = 16
	// transactionWindow bounds TransactionsAround on either side.
	transactionWindow = time.Hour
)

// Inserter accepts submissions into the current epoch.
type Inserter interface {
	Insert(sub types.Submission) (index uint64, queued bool)
}

// Mastership reports whether this replica seals epochs.
type Mastership interface {
	IsMaster() bool
}

// ReceiptVerifier checks receipts.
type ReceiptVerifier interface {
	Verify(ctx context.Context, r verify.Receipt) (*verify.Result, error)
}

// Options holds the collaborators of a TimestampServer.
type Options struct {
	Batcher    Inserter
	Capability *ledger.Capability
	// Mastership, if set, refuses submissions while this replica is not
	// the one sealing epochs.
	Mastership Mastership
	// Salts defaults to entropy.Secure.
	Salts    entropy.Source
	Verifier ReceiptVerifier
	Index    index.Source
	Checker  ledger.ConfirmationChecker
	Config   config.ReadWriteStore
	// Location is where submission times are rendered. Defaults to UTC.
	Location   *time.Location
	TimeSource clock.TimeSource
	Metrics    monitoring.MetricFactory
}

// LeafRequest is a fingerprint submission.
type LeafRequest struct {
	types.Fingerprint
	Recipient         string
	CaseNumber        string
	FileID            string
	Investigator      string
	Comments          string
	WantsAnchorNotice bool
	Language          string
	Password          string
}

// LeafResponse tells the submitter what was hashed into its leaf.
type LeafResponse struct {
	Leaf      string
	Index     uint64
	Queued    bool
	Salt      string
	Timestamp string
	Readable  string
	Quittance string
}

// TimestampServer serves the timestamping operations.
type TimestampServer struct {
	opts          Options
	leafCounter   monitoring.Counter
	verifyLatency monitoring.Histogram
}

// NewTimestampServer returns a server using the collaborators in opts.
func NewTimestampServer(opts Options) *TimestampServer {
	mf := opts.Metrics
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	if opts.Salts == nil {
		opts.Salts = entropy.Secure{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.TimeSource == nil {
		opts.TimeSource = clock.System
	}
	return &TimestampServer{
		opts: opts,
		leafCounter: mf.NewCounter(
			"submitted_leaves",
			"Number of fingerprints submitted",
			"status",
		),
		verifyLatency: mf.NewHistogram(
			"verify_receipt_seconds",
			"Time taken to verify a receipt",
			monitoring.SealBuckets(),
		),
	}
}

// AddLeaf timestamps a fingerprint and adds it to the current epoch.
func (s *TimestampServer) AddLeaf(ctx context.Context, req *LeafRequest) (*LeafResponse, error) {
	if !s.opts.Capability.Enabled() {
		s.leafCounter.Inc("unavailable")
		return nil, status.Errorf(codes.Unavailable, "horodating not available for the moment")
	}
	if m := s.opts.Mastership; m != nil && !m.IsMaster() {
		s.leafCounter.Inc("standby")
		return nil, status.Errorf(codes.Unavailable, "replica on standby, submit to the master")
	}
	if err := validateLeafRequest(req); err != nil {
		s.leafCounter.Inc("invalid")
		return nil, err
	}
	salt, err := entropy.Hex(ctx, s.opts.Salts, saltBytes)
	if err != nil {
		s.leafCounter.Inc("error")
		return nil, status.Errorf(codes.Internal, "generating salt: %v", err)
	}
	ts := types.NewTimestamp(s.opts.TimeSource.Now(), s.opts.Location)
	compact := ts.Compact()
	sub := types.Submission{
		LeafInput: types.LeafInput{
			Salt:        salt,
			Timestamp:   compact,
			Fingerprint: req.Fingerprint,
		},
		Readable:          ts.Readable(),
		Quittance:         types.Quittance(compact),
		Recipient:         req.Recipient,
		CaseNumber:        req.CaseNumber,
		FileID:            req.FileID,
		Investigator:      req.Investigator,
		Comments:          req.Comments,
		WantsAnchorNotice: req.WantsAnchorNotice,
		Language:          req.Language,
		Password:          req.Password,
	}
	idx, queued := s.opts.Batcher.Insert(sub)
	if queued {
		s.leafCounter.Inc("queued")
	} else {
		s.leafCounter.Inc("added")
	}
	klog.V(1).Infof("Leaf %s (quittance %s) index=%d queued=%v", sub.Value(), sub.Quittance, idx, queued)
	return &LeafResponse{
		Leaf:      sub.Value(),
		Index:     idx,
		Queued:    queued,
		Salt:      salt,
		Timestamp: compact,
		Readable:  sub.Readable,
		Quittance: sub.Quittance,
	}, nil
}

// VerifyReceipt checks a receipt against the anchored roots.
func (s *TimestampServer) VerifyReceipt(ctx context.Context, r verify.Receipt) (*verify.Result, error) {
	start := s.opts.TimeSource.Now()
	defer func() { s.verifyLatency.Observe(clock.SecondsSince(s.opts.TimeSource, start)) }()

	res, err := s.opts.Verifier.Verify(ctx, r)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, merkle.ErrMalformedProof), errors.Is(err, verify.ErrMalformedReceipt):
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	case errors.Is(err, verify.ErrTransactionNotFound):
		return nil, status.Errorf(codes.NotFound, "transaction not found: %v", err)
	case errors.Is(err, ledger.ErrLedgerCommunication), errors.Is(err, index.ErrIndexerUnavailable):
		return nil, status.Errorf(codes.Unavailable, "%v", err)
	}
	return nil, status.Errorf(codes.Internal, "verifying receipt: %v", err)
}

// Capability reports whether new submissions are accepted.
func (s *TimestampServer) Capability() bool {
	return s.opts.Capability.Enabled()
}

// CheckHorodating returns an Unavailable error while submissions are
// refused.
func (s *TimestampServer) CheckHorodating() error {
	if !s.Capability() {
		return status.Error(codes.Unavailable, "horodating deactivated")
	}
	return nil
}

// ReactivateHorodating re-enables submissions after an operator fixed the
// cause of a failed anchor.
func (s *TimestampServer) ReactivateHorodating(context.Context) error {
	s.opts.Capability.Enable()
	klog.Info("Horodating reactivated by operator")
	return nil
}

// UpdateConfig changes one of the sealing interval settings, in minutes.
func (s *TimestampServer) UpdateConfig(ctx context.Context, name string, minutes int64) error {
	if !batch.IsIntervalKey(name) {
		return status.Errorf(codes.InvalidArgument, "invalid config parameter %q", name)
	}
	if minutes <= 0 {
		return status.Errorf(codes.InvalidArgument, "%s=%d, want > 0", name, minutes)
	}
	if s.opts.Config == nil {
		return status.Error(codes.FailedPrecondition, "no writable configuration store")
	}
	if err := s.opts.Config.Set(ctx, name, minutes); err != nil {
		return status.Errorf(codes.Internal, "updating %s: %v", name, err)
	}
	klog.Infof("Config %s set to %d", name, minutes)
	return nil
}

// TransactionsAround lists the indexed contract transactions within an
// hour of the given unix time.
func (s *TimestampServer) TransactionsAround(ctx context.Context, unix int64) ([]index.Transaction, error) {
	snap, err := s.opts.Index.Snapshot(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "loading transaction index: %v", err)
	}
	return snap.Around(time.Unix(unix, 0), transactionWindow), nil
}

// CheckTransaction reports the confirmation state of a transaction.
func (s *TimestampServer) CheckTransaction(ctx context.Context, id ledger.TxID) (ledger.ConfirmationState, error) {
	if id == "" {
		return ledger.Indeterminate, status.Error(codes.InvalidArgument, "empty transaction id")
	}
	st, err := s.opts.Checker.ConfirmationState(ctx, id)
	if err != nil {
		return ledger.Indeterminate, status.Errorf(codes.Unavailable, "checking %s: %v", id, err)
	}
	return st, nil
}
