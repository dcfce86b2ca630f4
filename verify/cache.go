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
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis"
	"github.com/horodocs/horodocs/util/clock"
	"k8s.io/klog/v2"
)

// Cache remembers verification results by receipt salt.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool)
	Put(ctx context.Context, key string, r *Result)
}

// MemoryCache is a bounded in-process Cache whose entries expire after a
// fixed time to live.
type MemoryCache struct {
	ttl      time.Duration
	capacity int
	ts       clock.TimeSource

	mu      sync.Mutex
	order   *list.List // of *memEntry, oldest first
	entries map[string]*list.Element
}

type memEntry struct {
	key     string
	res     *Result
	expires time.Time
}

// NewMemoryCache returns a MemoryCache holding up to capacity results for
// ttl each.
func NewMemoryCache(capacity int, ttl time.Duration, ts clock.TimeSource) *MemoryCache {
	if ts == nil {
		ts = clock.System
	}
	return &MemoryCache{ttl: ttl, capacity: capacity, ts: ts, order: list.New(), entries: make(map[string]*list.Element)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memEntry)
	if !c.ts.Now().Before(e.expires) {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	return e.res, true
}

// Put implements Cache. The oldest entry is evicted when full.
func (c *MemoryCache) Put(_ context.Context, key string, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	for c.capacity > 0 && c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*memEntry).key)
	}
	c.entries[key] = c.order.PushBack(&memEntry{key: key, res: r, expires: c.ts.Now().Add(c.ttl)})
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// RedisClient is the subset of the go-redis clients used by RedisCache.
type RedisClient interface {
	Get(key string) *redis.StringCmd
	Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares results between replicas through Redis. Failures are
// logged and treated as misses.
type RedisCache struct {
	Client RedisClient
	Prefix string
	TTL    time.Duration
}

func (c *RedisCache) client(ctx context.Context) RedisClient {
	switch rc := c.Client.(type) {
	case *redis.Client:
		return rc.WithContext(ctx)
	case *redis.ClusterClient:
		return rc.WithContext(ctx)
	case *redis.Ring:
		return rc.WithContext(ctx)
	}
	return c.Client
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*Result, bool) {
	b, err := c.client(ctx).Get(c.Prefix + key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false
	case err != nil:
		klog.Warningf("Redis cache get %q: %v", key, err)
		return nil, false
	}
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		klog.Warningf("Redis cache entry %q: %v", key, err)
		return nil, false
	}
	return &r, true
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, key string, r *Result) {
	b, err := json.Marshal(r)
	if err != nil {
		klog.Errorf("Encoding result for %q: %v", key, err)
		return
	}
	if err := c.client(ctx).Set(c.Prefix+key, b, c.TTL).Err(); err != nil {
		klog.Warningf("Redis cache set %q: %v", key, err)
	}
}
