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

package k8s

import (
	"context"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

var fastLease = Options{
	LeaseDuration: 2 * time.Second,
	RenewDeadline: time.Second,
	RetryPeriod:   100 * time.Millisecond,
}

func TestElection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := fake.NewSimpleClientset().CoordinationV1()

	a := New(client, "default", "horodocsd", "a", fastLease)
	b := New(client, "default", "horodocsd", "b", fastLease)
	defer a.Close(ctx)
	defer b.Close(ctx)

	if err := a.Await(ctx); err != nil {
		t.Fatalf("a.Await: %v", err)
	}
	mctx, err := a.WithMastership(ctx)
	if err != nil {
		t.Fatalf("a.WithMastership: %v", err)
	}
	if mctx.Err() != nil {
		t.Fatal("mastership context done right after Await")
	}
	lease, err := client.Leases("default").Get(ctx, "horodocsd", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("Get(lease): %v", err)
	}
	if got := lease.Spec.HolderIdentity; got == nil || *got != "a" {
		t.Errorf("lease holder=%v, want a", got)
	}

	bWon := make(chan error, 1)
	go func() { bWon <- b.Await(ctx) }()
	select {
	case err := <-bWon:
		t.Fatalf("b.Await returned %v while a holds the lease", err)
	case <-time.After(500 * time.Millisecond):
	}

	if err := a.Resign(ctx); err != nil {
		t.Fatalf("a.Resign: %v", err)
	}
	select {
	case <-mctx.Done():
	case <-ctx.Done():
		t.Fatal("mastership context not canceled after Resign")
	}
	if err := <-bWon; err != nil {
		t.Fatalf("b.Await: %v", err)
	}
}

func TestWithMastershipNotMaster(t *testing.T) {
	e := New(fake.NewSimpleClientset().CoordinationV1(), "default", "horodocsd", "a", fastLease)
	mctx, err := e.WithMastership(context.Background())
	if err != nil {
		t.Fatalf("WithMastership: %v", err)
	}
	if mctx.Err() == nil {
		t.Error("WithMastership before Await returned a live context")
	}
	if err := e.Resign(context.Background()); err != nil {
		t.Errorf("Resign without Await: %v", err)
	}
}
