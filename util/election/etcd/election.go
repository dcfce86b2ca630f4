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

// Package etcd provides master election based on etcd.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/horodocs/horodocs/util/election"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"k8s.io/klog/v2"
)

// NewClient returns an etcd client, or nil if servers is empty. The servers
// parameter is a comma-separated list of etcd server URIs.
func NewClient(servers string) (*clientv3.Client, error) {
	if servers == "" {
		return nil, nil
	}
	return clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(servers, ","),
		DialTimeout: 5 * time.Second,
	})
}

// Election is an election.Election backed by an etcd lease.
type Election struct {
	instanceID string
	lockFile   string

	session  *concurrency.Session
	election *concurrency.Election
}

var _ election.Election = (*Election)(nil)

// New joins the election held under lockDir/resourceID.
func New(client *clientv3.Client, instanceID, lockDir, resourceID string) (*Election, error) {
	session, err := concurrency.NewSession(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session: %v", err)
	}
	lockFile := fmt.Sprintf("%s/%s", strings.TrimRight(lockDir, "/"), resourceID)
	e := &Election{
		instanceID: instanceID,
		lockFile:   lockFile,
		session:    session,
		election:   concurrency.NewElection(session, lockFile),
	}
	klog.Infof("Election created: %s as %s", lockFile, instanceID)
	return e, nil
}

// Await implements election.Election.
func (e *Election) Await(ctx context.Context) error {
	return e.election.Campaign(ctx, e.instanceID)
}

// WithMastership implements election.Election.
func (e *Election) WithMastership(ctx context.Context) (context.Context, error) {
	cctx, cancel := context.WithCancel(ctx)
	ch := e.election.Observe(cctx)
	rev := e.election.Rev()

	select {
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	case rsp, ok := <-ch:
		if !ok || len(rsp.Kvs) == 0 || rsp.Kvs[0].CreateRevision != rev {
			cancel()
			return cctx, nil
		}
	}

	go func() {
		defer func() {
			cancel()
			klog.Infof("%s: canceled mastership context", e.lockFile)
		}()
		for rsp := range ch {
			if len(rsp.Kvs) == 0 || rsp.Kvs[0].CreateRevision != rev {
				if len(rsp.Kvs) > 0 {
					klog.Warningf("%s: mastership overtaken by %s", e.lockFile, rsp.Kvs[0].Value)
				}
				return
			}
		}
	}()
	return cctx, nil
}

// Resign implements election.Election.
func (e *Election) Resign(ctx context.Context) error {
	return e.election.Resign(ctx)
}

// Close implements election.Election. The session lease is revoked even if
// resigning fails.
func (e *Election) Close(ctx context.Context) error {
	if err := e.Resign(ctx); err != nil && !errors.Is(err, concurrency.ErrElectionNotLeader) {
		klog.Errorf("%s: Resign(): %v", e.lockFile, err)
	}
	return e.session.Close()
}
