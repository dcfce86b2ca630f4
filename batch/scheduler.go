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

package batch

import (
	"context"
	"errors"

	"github.com/horodocs/horodocs/config"
	"github.com/horodocs/horodocs/util/clock"
	"k8s.io/klog/v2"
)

// Sealer is implemented by Batcher.
type Sealer interface {
	Seal(ctx context.Context) (*SealResult, error)
}

// Scheduler seals the current epoch at the interval chosen by a Policy.
type Scheduler struct {
	Sealer Sealer
	Policy *Policy
	// Store holds the per-period intervals, in minutes. May be nil.
	Store      config.Store
	TimeSource clock.TimeSource
}

// Run alternates between sleeping and sealing until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ts := s.TimeSource
	if ts == nil {
		ts = clock.System
	}
	klog.Info("Seal scheduler starting")
	for {
		now := ts.Now()
		wait := s.Policy.Interval(ctx, s.Store, now)
		klog.V(1).Infof("%v period, next seal in %v", s.Policy.PeriodAt(now), wait)
		if err := clock.Sleep(ctx, wait, ts); err != nil {
			klog.Infof("Seal scheduler shutting down: %v", err)
			return nil
		}
		s.tick(ctx)
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.Sealer.Seal(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrEmpty):
		klog.V(1).Info("Nothing to seal")
	case errors.Is(err, ErrDisabled):
		klog.Warning("Horodating disabled, skipping seal")
	default:
		klog.Errorf("Seal failed: %v", err)
	}
}
