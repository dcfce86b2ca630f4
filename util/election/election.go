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

// Package election makes sure that only one replica runs the background
// daemons that must not be duplicated: sealing epochs, sweeping
// confirmations and refreshing the transaction index.
package election

import (
	"context"
	"errors"
	"time"

	"github.com/horodocs/horodocs/util/clock"
	"k8s.io/klog/v2"
)

// Election controls an instance's participation in master election.
// Implementations are not intended to be thread-safe.
type Election interface {
	// Await blocks until the instance captures mastership. Returns immediately
	// if it is already the master.
	Await(ctx context.Context) error

	// WithMastership returns a context which remains active until the instance
	// stops being the master, or ctx is canceled. If the instance is not the
	// master, the returned context is already canceled.
	WithMastership(ctx context.Context) (context.Context, error)

	// Resign releases mastership. The instance can be elected again using
	// Await.
	Resign(ctx context.Context) error

	// Close permanently stops participating in election.
	Close(ctx context.Context) error
}

// Noop is an Election that is always won, for single replica deployments.
type Noop struct{}

// Await implements Election.
func (Noop) Await(context.Context) error { return nil }

// WithMastership implements Election.
func (Noop) WithMastership(ctx context.Context) (context.Context, error) { return ctx, nil }

// Resign implements Election.
func (Noop) Resign(context.Context) error { return nil }

// Close implements Election.
func (Noop) Close(context.Context) error { return nil }

// RetryPause is how long RunAsMaster waits after a failed election round.
var RetryPause = 5 * time.Second

// RunAsMaster repeatedly captures mastership through e and runs work with a
// context that is canceled when mastership is lost. It returns when ctx is
// done or work fails while still master. The election is closed on return.
func RunAsMaster(ctx context.Context, e Election, name string, ts clock.TimeSource, work func(ctx context.Context) error) error {
	if ts == nil {
		ts = clock.System
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Close(cctx); err != nil {
			klog.Warningf("%s: closing election: %v", name, err)
		}
	}()

	for {
		if err := e.Await(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			klog.Warningf("%s: Await: %v", name, err)
			if err := clock.Sleep(ctx, RetryPause, ts); err != nil {
				return err
			}
			continue
		}
		mctx, err := e.WithMastership(ctx)
		if err != nil {
			klog.Warningf("%s: WithMastership: %v", name, err)
			if err := clock.Sleep(ctx, RetryPause, ts); err != nil {
				return err
			}
			continue
		}
		if mctx.Err() != nil {
			klog.Warningf("%s: mastership lost before work started", name)
			continue
		}

		klog.Infof("%s: running as master", name)
		err = work(mctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case mctx.Err() != nil:
			klog.Warningf("%s: mastership lost, stopped work: %v", name, err)
			if err := e.Resign(ctx); err != nil && !errors.Is(err, context.Canceled) {
				klog.Warningf("%s: Resign: %v", name, err)
			}
		case err != nil:
			return err
		default:
			return nil
		}
	}
}
