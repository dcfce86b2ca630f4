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

// Package config provides the persistent name to integer settings read by
// the batch scheduler, such as the sealing interval for each period of the
// week.
package config

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Lookup when a setting does not exist.
var ErrNotFound = errors.New("config: setting not found")

// Store reads integer settings by name.
type Store interface {
	Lookup(ctx context.Context, name string) (int64, error)
}

// ReadWriteStore is a Store whose settings can be changed at runtime.
type ReadWriteStore interface {
	Store
	Set(ctx context.Context, name string, value int64) error
}

// MemoryStore is an in-memory Store, safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	vals map[string]int64
}

var _ ReadWriteStore = (*MemoryStore)(nil)

// NewMemoryStore returns a MemoryStore holding a copy of vals.
func NewMemoryStore(vals map[string]int64) *MemoryStore {
	m := &MemoryStore{vals: make(map[string]int64, len(vals))}
	for k, v := range vals {
		m.vals[k] = v
	}
	return m
}

// Lookup implements Store.
func (m *MemoryStore) Lookup(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[name]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

// Set stores value under name.
func (m *MemoryStore) Set(_ context.Context, name string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[name] = value
	return nil
}
