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

// Package verify checks a receipt against the anchors recorded on the
// ledger: it rebuilds the root from the receipt's proof, finds the contract
// transaction carrying that root and recovers the witness hidden in it.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/horodocs/horodocs/hashutil"
	"github.com/horodocs/horodocs/ledger"
	"github.com/horodocs/horodocs/ledger/index"
	"github.com/horodocs/horodocs/merkle"
	"github.com/horodocs/horodocs/monitoring"
	"github.com/horodocs/horodocs/types"
	"github.com/horodocs/horodocs/util/clock"
	"k8s.io/klog/v2"
)

const (
	// DefaultWindow is how far from the receipt date anchors are searched.
	DefaultWindow = time.Hour
	// DefaultCacheTTL and DefaultCacheSize size the in-memory result cache.
	DefaultCacheTTL  = time.Minute
	DefaultCacheSize = 100
)

var (
	// ErrTransactionNotFound means no anchor near the receipt date carries
	// the rebuilt root. The index may simply not have caught up yet.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrMalformedReceipt is returned for receipts whose fields cannot be
	// parsed.
	ErrMalformedReceipt = errors.New("malformed receipt")
)

var (
	once          sync.Once
	verifications monitoring.Counter
)

func createMetrics(mf monitoring.MetricFactory) {
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	verifications = mf.NewCounter("verifications", "Number of receipt verifications by outcome", "outcome")
}

// Receipt holds the fields printed on a receipt that are needed to verify it.
type Receipt struct {
	Salt string
	// Date is the compact submission timestamp.
	Date      string
	MD5       string
	SHA256    string
	Anterior  []merkle.ProofElement
	Posterior []merkle.ProofElement
	Version   int
}

// cacheKey covers every receipt field that goes into the rebuilt root, so a
// receipt only hits the cache if it would verify the same way.
func (r Receipt) cacheKey() string {
	return hashutil.SHA256Hex(strings.Join([]string{
		r.Salt, r.Date, strings.ToLower(r.MD5), strings.ToLower(r.SHA256),
		merkle.FormatProof(r.Anterior), merkle.FormatProof(r.Posterior),
		strconv.Itoa(r.Version),
	}, "|"))
}

// Result describes a successful verification.
type Result struct {
	Date        string                   `json:"date"`
	Leaf        string                   `json:"leaf"`
	Root        string                   `json:"root"`
	RightHalf   string                   `json:"right_half"`
	ClosedAt    string                   `json:"closed_at"`
	TxID        ledger.TxID              `json:"tx_id"`
	TxTime      time.Time                `json:"tx_time"`
	State       ledger.ConfirmationState `json:"state"`
	Witness     string                   `json:"witness"`
	Version     int                      `json:"version"`
	Explanation string                   `json:"explanation"`
}

// BlockTimer reports the time of the block holding a transaction.
type BlockTimer interface {
	BlockTime(ctx context.Context, id ledger.TxID) (uint64, error)
}

// Options configures a Verifier.
type Options struct {
	// Window defaults to DefaultWindow.
	Window time.Duration
	// Cache defaults to a MemoryCache of DefaultCacheSize entries living
	// DefaultCacheTTL.
	Cache Cache
	// BlockTimes, if set, is asked for the transaction time. The index
	// timestamp is used otherwise.
	BlockTimes BlockTimer
	TimeSource clock.TimeSource
	Metrics    monitoring.MetricFactory
}

// Verifier checks receipts. It is safe for concurrent use.
type Verifier struct {
	src     index.Source
	decoder ledger.Decoder
	checker ledger.ConfirmationChecker
	opts    Options
}

// New returns a Verifier looking anchors up in src.
func New(src index.Source, decoder ledger.Decoder, checker ledger.ConfirmationChecker, opts Options) *Verifier {
	once.Do(func() { createMetrics(opts.Metrics) })
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache(DefaultCacheSize, DefaultCacheTTL, opts.TimeSource)
	}
	return &Verifier{src: src, decoder: decoder, checker: checker, opts: opts}
}

// Verify rebuilds the root of r and looks for the anchor holding it. Only
// results whose transaction is final are cached.
func (v *Verifier) Verify(ctx context.Context, r Receipt) (*Result, error) {
	key := r.cacheKey()
	if res, ok := v.opts.Cache.Get(ctx, key); ok {
		verifications.Inc("cached")
		return res, nil
	}
	res, err := v.verify(ctx, r)
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		verifications.Inc("not_found")
		return nil, err
	case err != nil:
		verifications.Inc("error")
		return nil, err
	}
	verifications.Inc("found")
	if res.State == ledger.Final {
		v.opts.Cache.Put(ctx, key, res)
	}
	return res, nil
}

func (v *Verifier) verify(ctx context.Context, r Receipt) (*Result, error) {
	at, err := types.ParseCompact(r.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
	}
	readable, err := types.ReadableFromCompact(r.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
	}
	leaf := types.LeafInput{
		Salt:        r.Salt,
		Timestamp:   r.Date,
		Fingerprint: types.Fingerprint{MD5: r.MD5, SHA256: r.SHA256},
	}.Value()

	pos, err := merkle.PositionFromProof(r.Anterior, r.Posterior)
	if err != nil {
		return nil, err
	}
	root, trace, err := merkle.RecomputeRoot(r.Anterior, r.Posterior, leaf, pos)
	if err != nil {
		return nil, err
	}
	_, right := hashutil.Halves(root)

	snap, err := v.src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading transaction index: %w", err)
	}
	tx, payload, ok := v.find(snap.Around(at, v.opts.Window), right)
	if !ok {
		return nil, fmt.Errorf("%w: no anchor for root %s within %v of %v", ErrTransactionNotFound, root, v.opts.Window, at)
	}

	witness, err := payload.RecoverWitness(root)
	if err != nil {
		return nil, err
	}
	id := ledger.TxID(tx.Hash)
	state, err := v.checker.ConfirmationState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", id, err)
	}
	return &Result{
		Date:        readable,
		Leaf:        leaf,
		Root:        root,
		RightHalf:   right,
		ClosedAt:    payload.ClosedAt,
		TxID:        id,
		TxTime:      v.txTime(ctx, tx),
		State:       state,
		Witness:     types.GroupWitness(witness),
		Version:     r.Version,
		Explanation: trace.String(),
	}, nil
}

// find returns the first candidate whose decoded payload carries right.
func (v *Verifier) find(candidates []index.Transaction, right string) (index.Transaction, types.AnchorPayload, bool) {
	for _, tx := range candidates {
		input, err := hexutil.Decode(tx.Input)
		if err != nil {
			klog.V(2).Infof("Skipping %s: input: %v", tx.Hash, err)
			continue
		}
		p, err := v.decoder.Decode(input)
		if err != nil {
			klog.V(2).Infof("Skipping %s: %v", tx.Hash, err)
			continue
		}
		if strings.EqualFold(p.RightHalf, right) {
			return tx, p, true
		}
	}
	return index.Transaction{}, types.AnchorPayload{}, false
}

func (v *Verifier) txTime(ctx context.Context, tx index.Transaction) time.Time {
	if v.opts.BlockTimes != nil {
		secs, err := v.opts.BlockTimes.BlockTime(ctx, ledger.TxID(tx.Hash))
		if err == nil {
			return time.Unix(int64(secs), 0).UTC()
		}
		klog.Warningf("Block time of %s: %v, using index timestamp", tx.Hash, err)
	}
	secs, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
