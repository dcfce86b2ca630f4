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

package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/go-cmp/cmp"
	"github.com/horodocs/horodocs/ledger"
	"github.com/horodocs/horodocs/util/clock"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(time.Unix(1000, 0))
	c := NewMemoryCache(2, time.Minute, fake)

	c.Put(ctx, "a", &Result{Root: "ra"})
	fake.Advance(10 * time.Second)
	c.Put(ctx, "b", &Result{Root: "rb"})
	c.Put(ctx, "c", &Result{Root: "rc"})
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("oldest entry survived eviction")
	}
	if got, ok := c.Get(ctx, "b"); !ok || got.Root != "rb" {
		t.Errorf("Get(b)=%v,%v", got, ok)
	}
	if got := c.Len(); got != 2 {
		t.Errorf("Len()=%d, want 2", got)
	}

	fake.Advance(time.Minute)
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("entry survived its ttl")
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Len()=%d after expiry, want 1", got)
	}
}

type fakeRedis struct {
	data   map[string]string
	ttl    time.Duration
	getErr error
}

func (f *fakeRedis) Get(key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRedis{data: map[string]string{}}
	c := &RedisCache{Client: fr, Prefix: "verify/", TTL: time.Minute}

	if _, ok := c.Get(ctx, "salt"); ok {
		t.Fatal("Get on empty cache succeeded")
	}
	want := &Result{Root: "root", TxID: "0xabc", State: ledger.Final, TxTime: time.Unix(1700000000, 0).UTC()}
	c.Put(ctx, "salt", want)
	if _, ok := fr.data["verify/salt"]; !ok || fr.ttl != time.Minute {
		t.Errorf("stored %v with ttl %v", fr.data, fr.ttl)
	}
	got, ok := c.Get(ctx, "salt")
	if !ok {
		t.Fatal("Get after Put missed")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get diff (-want +got):\n%s", diff)
	}

	fr.data["verify/junk"] = "{"
	if _, ok := c.Get(ctx, "junk"); ok {
		t.Error("undecodable entry was returned")
	}
	fr.getErr = errors.New("connection refused")
	if _, ok := c.Get(ctx, "salt"); ok {
		t.Error("Get succeeded despite redis error")
	}
}
