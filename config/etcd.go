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

package config

import (
	"context"
	"fmt"
	"strconv"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore reads settings stored as decimal strings under Prefix+name.
type EtcdStore struct {
	KV     clientv3.KV
	Prefix string
}

var _ ReadWriteStore = (*EtcdStore)(nil)

// Lookup implements Store.
func (e *EtcdStore) Lookup(ctx context.Context, name string) (int64, error) {
	key := e.Prefix + name
	resp, err := e.KV.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("config: etcd get %q: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return 0, ErrNotFound
	}
	v, err := strconv.ParseInt(string(resp.Kvs[0].Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: etcd key %q: %w", key, err)
	}
	return v, nil
}

// Set writes a setting.
func (e *EtcdStore) Set(ctx context.Context, name string, value int64) error {
	if _, err := e.KV.Put(ctx, e.Prefix+name, strconv.FormatInt(value, 10)); err != nil {
		return fmt.Errorf("config: etcd put %q: %w", e.Prefix+name, err)
	}
	return nil
}
