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

// Package k8s provides master election based on a Kubernetes Lease.
package k8s

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/horodocs/horodocs/util/election"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/uuid"
	"k8s.io/client-go/kubernetes"
	coordinationv1 "k8s.io/client-go/kubernetes/typed/coordination/v1"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
	"k8s.io/klog/v2"
)

// Options sets the timing of the lease. A zero field selects the client-go
// default.
type Options struct {
	LeaseDuration time.Duration
	RenewDeadline time.Duration
	RetryPeriod   time.Duration
}

func (o Options) withDefaults() Options {
	if o.LeaseDuration == 0 {
		o.LeaseDuration = 15 * time.Second
	}
	if o.RenewDeadline == 0 {
		o.RenewDeadline = 10 * time.Second
	}
	if o.RetryPeriod == 0 {
		o.RetryPeriod = 2 * time.Second
	}
	return o
}

// NewClient returns a coordination client for the cluster described by
// kubeconfig, or the in-cluster configuration if kubeconfig is empty.
func NewClient(kubeconfig string) (coordinationv1.CoordinationV1Interface, error) {
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("kubeconfig: %w", err)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	return cs.CoordinationV1(), nil
}

// InstanceID returns a random identity for a lease holder.
func InstanceID(prefix string) string {
	return prefix + "-" + string(uuid.NewUUID())
}

// Election is an election.Election backed by a Lease object. Each Await
// starts a leader elector that runs until leadership is lost or Resign is
// called.
type Election struct {
	lock resourcelock.Interface
	opts Options

	mu      sync.Mutex
	cancel  context.CancelFunc
	leading chan struct{}
	lost    chan struct{}
	done    chan struct{}
}

var _ election.Election = (*Election)(nil)

// New joins the election held by the Lease namespace/name under identity.
func New(client coordinationv1.CoordinationV1Interface, namespace, name, identity string, opts Options) *Election {
	klog.Infof("Election created: lease %s/%s as %s", namespace, name, identity)
	return &Election{
		lock: &resourcelock.LeaseLock{
			LeaseMeta:  metav1.ObjectMeta{Name: name, Namespace: namespace},
			Client:     client,
			LockConfig: resourcelock.ResourceLockConfig{Identity: identity},
		},
		opts: opts.withDefaults(),
	}
}

// start launches an elector unless one is already running, and returns the
// channels of the running one.
func (e *Election) start(ctx context.Context) (leading, lost <-chan struct{}, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return e.leading, e.lost, nil
	}

	leadingC, lostC, doneC := make(chan struct{}), make(chan struct{}), make(chan struct{})
	le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            e.lock,
		LeaseDuration:   e.opts.LeaseDuration,
		RenewDeadline:   e.opts.RenewDeadline,
		RetryPeriod:     e.opts.RetryPeriod,
		ReleaseOnCancel: true,
		Name:            e.lock.Describe(),
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(context.Context) { close(leadingC) },
			OnStoppedLeading: func() { close(lostC) },
		},
	})
	if err != nil {
		return nil, nil, err
	}
	// The elector outlives the Await call that started it.
	ectx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		defer close(doneC)
		le.Run(ectx)
	}()
	e.cancel, e.leading, e.lost, e.done = cancel, leadingC, lostC, doneC
	return leadingC, lostC, nil
}

// Await implements election.Election.
func (e *Election) Await(ctx context.Context) error {
	leading, lost, err := e.start(ctx)
	if err != nil {
		return err
	}
	select {
	case <-leading:
		return nil
	case <-lost:
		e.stop()
		return errors.New("leader elector stopped before acquiring the lease")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithMastership implements election.Election.
func (e *Election) WithMastership(ctx context.Context) (context.Context, error) {
	cctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	leading, lost := e.leading, e.lost
	e.mu.Unlock()
	if leading == nil {
		cancel()
		return cctx, nil
	}
	select {
	case <-leading:
	default:
		cancel()
		return cctx, nil
	}

	go func() {
		defer cancel()
		select {
		case <-lost:
			klog.Warningf("%s: lease lost", e.lock.Describe())
		case <-cctx.Done():
		}
	}()
	return cctx, nil
}

// Resign implements election.Election. The lease is released so that
// another instance can take it without waiting for expiry.
func (e *Election) Resign(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	e.stop()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements election.Election.
func (e *Election) Close(ctx context.Context) error {
	return e.Resign(ctx)
}

func (e *Election) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel, e.leading, e.lost, e.done = nil, nil, nil, nil
}
