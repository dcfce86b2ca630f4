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

package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/horodocs/horodocs/monitoring"
	"github.com/horodocs/horodocs/notify"
	"github.com/horodocs/horodocs/util/clock"
	"k8s.io/klog/v2"
)

// DefaultRefreshInterval is the pause between two indexer polls.
const DefaultRefreshInterval = 300 * time.Second

// Refresher periodically fetches the transaction list and replaces the
// snapshot file. It also serves the latest snapshot from memory.
type Refresher struct {
	fetcher  Fetcher
	path     string
	interval time.Duration
	ts       clock.TimeSource
	notifier notify.Notifier

	mu       sync.RWMutex
	current  *Snapshot
	failing  bool
	refresh  monitoring.Counter
	txsGauge monitoring.Gauge
}

// RefresherOptions configures a Refresher. Zero values select defaults.
type RefresherOptions struct {
	Interval   time.Duration
	TimeSource clock.TimeSource
	Notifier   notify.Notifier
	Metrics    monitoring.MetricFactory
}

// NewRefresher returns a Refresher writing the snapshot to path. An existing
// snapshot file is loaded so that verification works before the first
// successful poll.
func NewRefresher(f Fetcher, path string, opts RefresherOptions) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
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
	r := &Refresher{
		fetcher:  f,
		path:     path,
		interval: opts.Interval,
		ts:       opts.TimeSource,
		notifier: opts.Notifier,
		refresh:  opts.Metrics.NewCounter("index_refreshes", "Transaction index refreshes by outcome", "outcome"),
		txsGauge: opts.Metrics.NewGauge("index_transactions", "Transactions in the current snapshot"),
	}
	if s, err := LoadSnapshot(path); err == nil {
		r.current = s
		r.txsGauge.Set(float64(s.Len()))
	} else {
		klog.V(1).Infof("No usable snapshot at %s yet: %v", path, err)
	}
	return r
}

// Snapshot implements Source.
func (r *Refresher) Snapshot(context.Context) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, fmt.Errorf("%w: no snapshot fetched yet", ErrIndexerUnavailable)
	}
	return r.current, nil
}

// RefreshOnce polls the indexer and replaces the snapshot. On failure the
// previous snapshot is kept.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	env, err := r.fetcher.Fetch(ctx)
	if err == nil {
		err = WriteSnapshot(r.path, env)
	}
	if err != nil {
		r.refresh.Inc("error")
		r.markFailing(ctx, err)
		return err
	}
	s := NewSnapshot(env.Result)
	r.mu.Lock()
	r.current = s
	recovered := r.failing
	r.failing = false
	r.mu.Unlock()
	if recovered {
		klog.Info("Transaction index refresh recovered")
	}
	r.refresh.Inc("ok")
	r.txsGauge.Set(float64(s.Len()))
	klog.V(1).Infof("Transaction index refreshed: %d transactions", s.Len())
	return nil
}

// markFailing warns the operators on the first failure of a streak.
func (r *Refresher) markFailing(ctx context.Context, err error) {
	r.mu.Lock()
	first := !r.failing
	r.failing = true
	r.mu.Unlock()
	if !errors.Is(err, context.Canceled) {
		klog.Warningf("Transaction index refresh failed: %v", err)
	}
	if !first {
		return
	}
	n := notify.Notification{Kind: notify.OperatorWarning, Message: fmt.Sprintf("transaction index refresh failing: %v", err)}
	if nerr := r.notifier.Notify(ctx, n); nerr != nil {
		klog.Errorf("Failed to warn operators: %v", nerr)
	}
}

// Run refreshes immediately and then every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	for {
		_ = r.RefreshOnce(ctx)
		if err := clock.Sleep(ctx, r.interval, r.ts); err != nil {
			klog.Infof("Transaction index refresher stopping: %v", err)
			return nil
		}
	}
}
