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

package election

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/horodocs/horodocs/util/clock"
)

// scriptedElection hands out mastership contexts that the test can revoke.
type scriptedElection struct {
	awaitErrs []error
	revoke    []context.CancelFunc
	awaits    int
	resigns   int
	closed    bool
}

func (s *scriptedElection) Await(ctx context.Context) error {
	s.awaits++
	if len(s.awaitErrs) > 0 {
		err := s.awaitErrs[0]
		s.awaitErrs = s.awaitErrs[1:]
		return err
	}
	return ctx.Err()
}

func (s *scriptedElection) WithMastership(ctx context.Context) (context.Context, error) {
	cctx, cancel := context.WithCancel(ctx)
	s.revoke = append(s.revoke, cancel)
	return cctx, nil
}

func (s *scriptedElection) Resign(context.Context) error {
	s.resigns++
	return nil
}

func (s *scriptedElection) Close(context.Context) error {
	s.closed = true
	return nil
}

func TestRunAsMasterNoop(t *testing.T) {
	runs := 0
	err := RunAsMaster(context.Background(), Noop{}, "test", nil, func(context.Context) error {
		runs++
		return nil
	})
	if err != nil || runs != 1 {
		t.Errorf("RunAsMaster()=%v after %d runs, want nil after 1", err, runs)
	}
}

func TestRunAsMasterReelection(t *testing.T) {
	defer func(p time.Duration) { RetryPause = p }(RetryPause)
	RetryPause = time.Millisecond

	e := &scriptedElection{awaitErrs: []error{errors.New("etcd unavailable")}}
	runs := 0
	err := RunAsMaster(context.Background(), e, "test", clock.System, func(ctx context.Context) error {
		runs++
		if runs == 1 {
			// Lose mastership while working.
			e.revoke[0]()
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunAsMaster: %v", err)
	}
	if runs != 2 || e.awaits != 3 || e.resigns != 1 || !e.closed {
		t.Errorf("runs=%d awaits=%d resigns=%d closed=%v, want 2, 3, 1, true", runs, e.awaits, e.resigns, e.closed)
	}
}

func TestRunAsMasterStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := &scriptedElection{}
	err := RunAsMaster(ctx, e, "test", clock.System, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunAsMaster()=%v, want %v", err, context.Canceled)
	}
	if e.resigns != 0 || !e.closed {
		t.Errorf("resigns=%d closed=%v, want 0, true", e.resigns, e.closed)
	}

	failing := errors.New("seal failed")
	err = RunAsMaster(context.Background(), &scriptedElection{}, "test", clock.System, func(context.Context) error { return failing })
	if !errors.Is(err, failing) {
		t.Errorf("RunAsMaster()=%v, want %v", err, failing)
	}
}
