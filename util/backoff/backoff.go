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

// Package backoff retries an operation following an explicit pause
// schedule.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/horodocs/horodocs/util/clock"
	"k8s.io/klog/v2"
)

// ErrExhausted is wrapped by Retry's error when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy describes how often an operation is attempted and how long to
// pause between attempts. Pauses[i] is the pause after attempt i+1; the last
// pause is reused if there are more attempts than pauses.
type Policy struct {
	Attempts int
	Pauses   []time.Duration
}

// LedgerPolicy is the policy for ledger submissions: five attempts, pausing
// 3s, 9s, 27s then 81s.
var LedgerPolicy = Policy{Attempts: 5, Pauses: Exponential(3*time.Second, 3, 4)}

// Exponential returns n pauses starting at base and growing by factor.
func Exponential(base time.Duration, factor float64, n int) []time.Duration {
	r := make([]time.Duration, n)
	p := float64(base)
	for i := range r {
		r[i] = time.Duration(p)
		p *= factor
	}
	return r
}

// Pause returns the pause that follows the given (1-based) attempt.
func (p Policy) Pause(attempt int) time.Duration {
	if len(p.Pauses) == 0 || attempt < 1 {
		return 0
	}
	if attempt > len(p.Pauses) {
		return p.Pauses[len(p.Pauses)-1]
	}
	return p.Pauses[attempt-1]
}

// Retry calls f until it succeeds, the policy's attempts are used up, or ctx
// is done. Pauses are measured on ts. The returned error wraps both
// ErrExhausted and the last error from f when every attempt failed, and
// wraps the context error when ctx ended the retries.
func (p Policy) Retry(ctx context.Context, ts clock.TimeSource, name string, f func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = f(ctx); err == nil {
			if attempt > 1 {
				klog.Infof("%s: succeeded on attempt %d", name, attempt)
			}
			return nil
		}
		if attempt >= attempts {
			return fmt.Errorf("%s: %w after %d attempts: %w", name, ErrExhausted, attempt, err)
		}
		pause := p.Pause(attempt)
		klog.Warningf("%s: attempt %d/%d failed, retrying in %v: %v", name, attempt, attempts, pause, err)
		if serr := clock.Sleep(ctx, pause, ts); serr != nil {
			return fmt.Errorf("%s: %w (last error: %v)", name, serr, err)
		}
	}
}
