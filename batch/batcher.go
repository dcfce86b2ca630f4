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

// Package batch groups submitted leaves into epochs and periodically seals
// each epoch: the tree is padded, its root anchored on the ledger, and every
// submitter receives an inclusion proof.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/horodocs/horodocs/entropy"
	"github.com/horodocs/horodocs/ledger"
	"github.com/horodocs/horodocs/merkle"
	"github.com/horodocs/horodocs/monitoring"
	"github.com/horodocs/horodocs/notify"
	"github.com/horodocs/horodocs/tracker"
	"github.com/horodocs/horodocs/types"
	"github.com/horodocs/horodocs/util/backoff"
	"github.com/horodocs/horodocs/util/clock"
	"k8s.io/klog/v2"
)

const (
	// witnessBytes is the size of the witness hidden in the anchor payload,
	// a quarter of a SHA-256 digest.
	witnessBytes = 8
	paddingBytes = 32
)

var (
	// ErrDisabled is returned by Seal while horodating is disabled.
	ErrDisabled = errors.New("horodating disabled")
	// ErrEmpty is returned by Seal when the epoch has no leaves.
	ErrEmpty = errors.New("epoch is empty")
)

var (
	once         sync.Once
	sealRuns     monitoring.Counter
	sealLatency  monitoring.Histogram
	epochSize    monitoring.Histogram
	leavesQueued monitoring.Counter
	leavesAdded  monitoring.Counter
)

func createMetrics(mf monitoring.MetricFactory) {
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	sealRuns = mf.NewCounter("seal_runs", "Seal passes by outcome", "outcome")
	sealLatency = mf.NewHistogram("seal_latency_seconds", "Duration of successful seal passes", monitoring.SealBuckets())
	epochSize = mf.NewHistogram("epoch_size", "Leaves in sealed epochs, padding included", monitoring.SizeBuckets())
	leavesAdded = mf.NewCounter("leaves_added", "Leaves inserted into the current epoch")
	leavesQueued = mf.NewCounter("leaves_queued", "Leaves diverted to the pending queue during a seal")
}

// State is the Batcher's state.
type State int

// Batcher states.
const (
	Idle State = iota
	Sealing
)

func (s State) String() string {
	if s == Sealing {
		return "sealing"
	}
	return "idle"
}

// Tracker receives anchoring transactions to follow.
type Tracker interface {
	Track(id ledger.TxID, obs []tracker.Obligation)
}

// Options configures a Batcher. Submitter, Capability and Tracker are
// required.
type Options struct {
	Submitter  ledger.Submitter
	Capability *ledger.Capability
	Tracker    Tracker
	Notifier   notify.Notifier
	// Witness provides the witness hidden in each anchor payload.
	Witness entropy.Source
	// Padding provides the random leaves that fill an epoch up to a power
	// of two.
	Padding entropy.Source
	// Retry governs ledger submissions. backoff.LedgerPolicy if zero.
	Retry      backoff.Policy
	TimeSource clock.TimeSource
	// Location is the time zone of the closing time in anchor payloads.
	Location *time.Location
	// DropFailed discards the leaves of an epoch whose submission failed.
	// By default they are carried over to the next epoch.
	DropFailed bool
	Metrics    monitoring.MetricFactory
}

// epoch is one tree and the metadata of its real leaves.
type epoch struct {
	acc     *merkle.Accumulator
	subs    map[uint64]*types.Submission
	notices []tracker.Obligation
}

func newEpoch() *epoch {
	return &epoch{acc: merkle.NewAccumulator(), subs: make(map[uint64]*types.Submission)}
}

func (e *epoch) add(sub types.Submission) uint64 {
	idx := e.acc.Insert(sub.Value())
	e.subs[idx] = &sub
	if sub.WantsAnchorNotice && sub.Recipient != "" {
		e.notices = append(e.notices, tracker.Obligation{
			Recipient: sub.Recipient,
			Language:  sub.Language,
			Item:      notify.Item{Quittance: sub.Quittance, CaseNumber: sub.CaseNumber, FileID: sub.FileID},
		})
	}
	return idx
}

// submissions returns the real leaves in insertion order.
func (e *epoch) submissions() []types.Submission {
	out := make([]types.Submission, 0, len(e.subs))
	for i := uint64(0); i < e.acc.Size(); i++ {
		if s, ok := e.subs[i]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// SealResult describes a successfully sealed epoch.
type SealResult struct {
	TxID    ledger.TxID
	Root    string
	Witness string
	Payload types.AnchorPayload
	// Leaves is the number of real leaves, Padded the number of padding
	// leaves added.
	Leaves int
	Padded int
}

// Batcher owns the current epoch. It is safe for concurrent use.
type Batcher struct {
	opts Options

	// sealMu serializes Seal calls.
	sealMu sync.Mutex

	mu      sync.Mutex
	cur     *epoch
	state   State
	pending []types.Submission
}

// New returns a Batcher with an empty epoch.
func New(opts Options) *Batcher {
	once.Do(func() { createMetrics(opts.Metrics) })
	if opts.Notifier == nil {
		opts.Notifier = notify.LogNotifier{}
	}
	if opts.Witness == nil {
		opts.Witness = entropy.Secure{}
	}
	if opts.Padding == nil {
		opts.Padding = entropy.Secure{}
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = backoff.LedgerPolicy
	}
	if opts.TimeSource == nil {
		opts.TimeSource = clock.System
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Batcher{opts: opts, cur: newEpoch()}
}

// Insert adds sub to the current epoch and returns its leaf index. While a
// seal is in progress the submission is queued instead and queued is true;
// it joins the next epoch once the seal completes.
func (b *Batcher) Insert(sub types.Submission) (index uint64, queued bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Sealing {
		b.pending = append(b.pending, sub)
		leavesQueued.Inc()
		return 0, true
	}
	leavesAdded.Inc()
	return b.cur.add(sub), false
}

// Status reports the state, the size of the current epoch and the number of
// queued submissions. The size is only meaningful while Idle.
func (b *Batcher) Status() (State, uint64, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var size uint64
	if b.state == Idle {
		size = b.cur.acc.Size()
	}
	return b.state, size, len(b.pending)
}

// begin moves Idle to Sealing and hands out the current epoch.
func (b *Batcher) begin() (*epoch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.opts.Capability.Enabled() {
		return nil, ErrDisabled
	}
	if b.cur.acc.Size() == 0 {
		return nil, ErrEmpty
	}
	b.state = Sealing
	return b.cur, nil
}

// finish installs a fresh epoch, fills it with carried over and pending
// submissions, and returns to Idle.
func (b *Batcher) finish(carry []types.Submission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cur = newEpoch()
	for _, s := range carry {
		b.cur.add(s)
	}
	for _, s := range b.pending {
		b.cur.add(s)
	}
	if n := len(carry) + len(b.pending); n > 0 {
		klog.V(1).Infof("New epoch starts with %d carried over and %d queued leaves", len(carry), len(b.pending))
	}
	b.pending = nil
	b.state = Idle
}

// Seal closes the current epoch. It returns ErrDisabled or ErrEmpty without
// doing anything when sealing is not possible.
func (b *Batcher) Seal(ctx context.Context) (*SealResult, error) {
	b.sealMu.Lock()
	defer b.sealMu.Unlock()

	ep, err := b.begin()
	if err != nil {
		return nil, err
	}
	start := b.opts.TimeSource.Now()
	res, err := b.seal(ctx, ep)
	if err != nil {
		sealRuns.Inc("failed")
		var carry []types.Submission
		if !b.opts.DropFailed {
			carry = ep.submissions()
		}
		klog.Errorf("Seal of %d leaves failed, carrying over %d: %v", len(ep.subs), len(carry), err)
		b.finish(carry)
		return nil, err
	}
	b.finish(nil)
	sealRuns.Inc("ok")
	sealLatency.Observe(clock.SecondsSince(b.opts.TimeSource, start))
	epochSize.Observe(float64(res.Leaves + res.Padded))
	klog.Infof("Sealed epoch of %d leaves (+%d padding) with root %s in %s", res.Leaves, res.Padded, res.Root, res.TxID)
	return res, nil
}

func (b *Batcher) seal(ctx context.Context, ep *epoch) (*SealResult, error) {
	padded, err := ep.acc.Seal(func() (string, error) {
		return entropy.Hex(ctx, b.opts.Padding, paddingBytes)
	})
	if err != nil {
		return nil, fmt.Errorf("padding: %w", err)
	}
	root, err := ep.acc.Root()
	if err != nil {
		return nil, err
	}
	witness, err := entropy.Hex(ctx, b.opts.Witness, witnessBytes)
	if err != nil {
		return nil, fmt.Errorf("witness: %w", err)
	}
	closedAt := types.NewTimestamp(b.opts.TimeSource.Now(), b.opts.Location)
	payload, err := types.NewAnchorPayload(root, witness, closedAt)
	if err != nil {
		return nil, err
	}

	var id ledger.TxID
	err = b.opts.Retry.Retry(ctx, b.opts.TimeSource, "anchor submission", func(ctx context.Context) error {
		var err error
		id, err = b.opts.Submitter.Submit(ctx, payload.String())
		return err
	})
	if err != nil {
		return nil, err
	}
	b.opts.Tracker.Track(id, ep.notices)

	res := &SealResult{TxID: id, Root: root, Witness: witness, Payload: payload, Leaves: len(ep.subs), Padded: padded}
	b.sendReceipts(ctx, ep, res)
	return res, nil
}

// sendReceipts notifies the submitter of every real leaf. Padding leaves
// have no submission and get nothing.
func (b *Batcher) sendReceipts(ctx context.Context, ep *epoch, res *SealResult) {
	for i := uint64(0); i < ep.acc.Size(); i++ {
		sub, ok := ep.subs[i]
		if !ok {
			continue
		}
		ant, post, err := ep.acc.Proof(i)
		if err != nil {
			klog.Errorf("No receipt for %s: %v", sub.Quittance, err)
			continue
		}
		leaf, _ := ep.acc.Leaf(i)
		n := notify.Notification{
			Kind:       notify.Receipt,
			Recipient:  sub.Recipient,
			Language:   sub.Language,
			Submission: sub,
			Leaf:       leaf,
			Anterior:   ant,
			Posterior:  post,
			Root:       res.Root,
			Witness:    types.GroupWitness(res.Witness),
			Payload:    res.Payload.String(),
			TxID:       string(res.TxID),
		}
		if err := b.opts.Notifier.Notify(ctx, n); err != nil {
			klog.Errorf("Receipt for leaf %d (%s): %v", i, sub.Quittance, err)
		}
	}
}
