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

package main

import (
	"context"
	"flag"
	"path/filepath"
	"testing"

	"github.com/horodocs/horodocs/config"
	"github.com/horodocs/horodocs/ledger"
	"github.com/horodocs/horodocs/util/election"
	"github.com/horodocs/horodocs/util/flagsaver"
	"github.com/horodocs/horodocs/verify"
)

func setFlags(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		if err := flag.Set(k, v); err != nil {
			t.Fatalf("flag.Set(%q, %q): %v", k, v, err)
		}
	}
}

func TestOpenConfig(t *testing.T) {
	ctx := context.Background()
	defer flagsaver.Save().MustRestore()

	store, closeFn, err := openConfig(ctx, nil)
	if err != nil {
		t.Fatalf("openConfig(memory): %v", err)
	}
	closeFn()
	if _, ok := store.(*config.MemoryStore); !ok {
		t.Errorf("openConfig(memory)=%T, want *config.MemoryStore", store)
	}

	setFlags(t, map[string]string{"config_backend": "sqlite", "config_dsn": filepath.Join(t.TempDir(), "config.db")})
	store, closeFn, err = openConfig(ctx, nil)
	if err != nil {
		t.Fatalf("openConfig(sqlite): %v", err)
	}
	defer closeFn()
	if err := store.Set(ctx, "day_config", 15); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := store.Lookup(ctx, "day_config"); err != nil || got != 15 {
		t.Errorf("Lookup(day_config)=%d,%v, want 15", got, err)
	}

	for _, backend := range []string{"etcd", "cassandra"} {
		setFlags(t, map[string]string{"config_backend": backend})
		if _, _, err := openConfig(ctx, nil); err == nil {
			t.Errorf("openConfig(%s) without etcd succeeded", backend)
		}
	}
}

func TestNewVerifyCache(t *testing.T) {
	defer flagsaver.Save().MustRestore()
	if c, ok := newVerifyCache().(*verify.MemoryCache); !ok {
		t.Errorf("newVerifyCache()=%T, want *verify.MemoryCache", c)
	}
	setFlags(t, map[string]string{"verify_cache": "redis", "redis_addr": "redis.invalid:6379"})
	if c, ok := newVerifyCache().(*verify.RedisCache); !ok {
		t.Errorf("newVerifyCache()=%T, want *verify.RedisCache", c)
	}
}

func TestNewElection(t *testing.T) {
	defer flagsaver.Save().MustRestore()
	setFlags(t, map[string]string{"force_master": "true"})
	e, err := newElection(nil)
	if err != nil {
		t.Fatalf("newElection: %v", err)
	}
	if _, ok := e.(election.Noop); !ok {
		t.Errorf("newElection()=%T, want election.Noop", e)
	}

	setFlags(t, map[string]string{
		"force_master":   "false",
		"lock_namespace": "horodocs",
		"kubeconfig":     filepath.Join(t.TempDir(), "missing"),
	})
	if _, err := newElection(nil); err == nil {
		t.Error("newElection with an unreadable kubeconfig succeeded")
	}
}

func TestDialLedgerFlags(t *testing.T) {
	ctx := context.Background()
	defer flagsaver.Save().MustRestore()
	capability := ledger.NewCapability(nil)

	if _, err := dialLedger(ctx, capability, nil, nil); err == nil {
		t.Error("dialLedger without flags succeeded")
	}
	setFlags(t, map[string]string{
		"eth_url":          "http://localhost:8545",
		"contract_address": "not-an-address",
		"private_key_file": filepath.Join(t.TempDir(), "key"),
	})
	if _, err := dialLedger(ctx, capability, nil, nil); err == nil {
		t.Error("dialLedger with a bad contract address succeeded")
	}
	setFlags(t, map[string]string{"contract_address": "0x5FbDB2315678afecb367f032d93F642f64180aa3"})
	if _, err := dialLedger(ctx, capability, nil, nil); err == nil {
		t.Error("dialLedger with a missing key file succeeded")
	}
}
