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

// Package tracker follows anchoring transactions until the ledger reports
// them final or lost, then tells the submitters who asked to hear about it.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/horodocs/horodocs/ledger"
	"github.com/horodocs/horodocs/monitoring"
	"github.com/horodocs/horodocs/notify"
	"github.com/horodocs/horodocs/util/clock"
	"k8s.io/klog/v2"
)

// DefaultSweepInterval is the pause between two sweeps.
const DefaultSweepInterval = 30 * time.Second

// Obligation is a promise to tell Recipient how the anchoring of one
// submission ended.
type Obligation struct {
	Recipient string
	Language  string
	Item      notify.Item
}

// Group is the set of items owed to one recipient for one transaction.
type Group struct {
	Recipient string
	Language  string
	Items     []notify.Item
}

// Groups collects obligations by recipient and language, in first seen
// order. Duplicate items are dropped.
func Groups(obs []Obligation) []Group {
	type key struct{ recipient, language string }
	idx := make(map[key]int)
	seen := make(map[key]map[notify.Item]bool)
	var out []Group
	for _, o := range obs {
		k := key{o.Recipient, o.Language}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			seen[k] = make(map[notify.Item]bool)
			out = append(out, Group{Recipient: o.Recipient, Language: o.Language})
		}
		if seen[k][o.Item] {
			continue
		}
		seen[k][o.Item] = true
		out[i].Items = append(out[i].Items, o.Item)
	}
	return out
}

// Options configures a Tracker. Zero values select defaults.
type Options struct {
	Interval   time.Duration
	TimeSource clock.TimeSource
	Notifier   notify.Notifier
	Metrics    monitoring.MetricFactory
}

// Tracker holds the outstanding transactions. It is safe for concurrent
// use.
type Tracker struct {
	checker  ledger.ConfirmationChecker
	interval time.Duration
	ts       clock.TimeSource
	notifier notify.Notifier

	mu          sync.Mutex
	outstanding map[ledger.TxID][]Obligation
	since       map[ledger.TxID]time.Time

	resolved    monitoring.Counter
	pending     monitoring.Gauge
	resolveTime monitoring.Histogram
}

// New returns an empty Tracker querying checker.
func New(checker ledger.ConfirmationChecker, opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSweepInterval
	}
	if opts.TimeSource == nil {
		opts.TimeSource = clock.System
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.LogNotifier{}
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.InertMetricFactory{}
	}
	return &Tracker{
		checker:     checker,
		interval:    opts.Interval,
		ts:          opts.TimeSource,
		notifier:    opts.Notifier,
		outstanding: make(map[ledger.TxID][]Obligation),
		since:       make(map[ledger.TxID]time.Time),
		resolved:    opts.Metrics.NewCounter("tracker_resolved", "Tracked transactions resolved, by final state", "state"),
		pending:     opts.Metrics.NewGauge("tracker_outstanding", "Transactions awaiting a terminal state"),
		resolveTime: opts.Metrics.NewHistogram("tracker_resolve_seconds", "Time from tracking to a terminal state", monitoring.SealBuckets()),
	}
}

// Track registers id. Obligations for an id that is already tracked are
// appended.
func (t *Tracker) Track(id ledger.TxID, obs []Obligation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.outstanding[id]; !ok {
		t.since[id] = t.ts.Now()
	}
	t.outstanding[id] = append(t.outstanding[id], obs...)
	t.pending.Set(float64(len(t.outstanding)))
	klog.V(1).Infof("Tracking %s with %d obligations", id, len(obs))
}

// Outstanding returns the tracked ids, sorted.
func (t *Tracker) Outstanding() []ledger.TxID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]ledger.TxID, 0, len(t.outstanding))
	for id := range t.outstanding {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Sweep queries every outstanding transaction once. Final and NotFound
// transactions are removed and their recipients notified; everything else
// stays for the next sweep. It returns the number of resolved transactions.
func (t *Tracker) Sweep(ctx context.Context) int {
	resolved := 0
	for _, id := range t.Outstanding() {
		state, err := t.checker.ConfirmationState(ctx, id)
		if err != nil {
			klog.Warningf("Checking %s: %v", id, err)
			continue
		}
		if !state.Terminal() {
			continue
		}
		obs, since, ok := t.remove(id)
		if !ok {
			// Resolved concurrently.
			continue
		}
		resolved++
		t.resolved.Inc(state.String())
		t.resolveTime.Observe(t.ts.Now().Sub(since).Seconds())
		klog.Infof("Transaction %s resolved as %v", id, state)
		t.notifyGroups(ctx, id, state, obs)
	}
	return resolved
}

func (t *Tracker) remove(id ledger.TxID) ([]Obligation, time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obs, ok := t.outstanding[id]
	if !ok {
		return nil, time.Time{}, false
	}
	since := t.since[id]
	delete(t.outstanding, id)
	delete(t.since, id)
	t.pending.Set(float64(len(t.outstanding)))
	return obs, since, true
}

func (t *Tracker) notifyGroups(ctx context.Context, id ledger.TxID, state ledger.ConfirmationState, obs []Obligation) {
	kind := notify.Anchored
	if state == ledger.NotFound {
		kind = notify.AnchorFailed
	}
	for _, g := range Groups(obs) {
		n := notify.Notification{Kind: kind, Recipient: g.Recipient, Language: g.Language, TxID: string(id), Items: g.Items}
		if err := t.notifier.Notify(ctx, n); err != nil {
			klog.Errorf("Notifying %s about %s: %v", g.Recipient, id, err)
		}
	}
}

// Run sweeps every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		if err := clock.Sleep(ctx, t.interval, t.ts); err != nil {
			klog.Infof("Confirmation tracker stopping with %d outstanding: %v", len(t.Outstanding()), err)
			return nil
		}
		if n := t.Sweep(ctx); n > 0 {
			klog.V(1).Infof("Sweep resolved %d transactions", n)
		}
	}
}
