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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	vals := map[string]int64{"day_config": 10}
	m := NewMemoryStore(vals)
	vals["day_config"] = 99

	if got, err := m.Lookup(ctx, "day_config"); err != nil || got != 10 {
		t.Errorf("Lookup(day_config)=%d,%v, want 10,nil", got, err)
	}
	if _, err := m.Lookup(ctx, "night_config"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(night_config)=%v, want ErrNotFound", err)
	}
	if err := m.Set(ctx, "night_config", 120); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := m.Lookup(ctx, "night_config"); err != nil || got != 120 {
		t.Errorf("Lookup(night_config)=%d,%v, want 120,nil", got, err)
	}
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQL(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	defer s.Close()
	// Every connection to :memory: is a distinct database.
	s.db.SetMaxOpenConns(1)
	if _, err := s.Lookup(ctx, "weekend_config"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup without table=%v, want ErrNotFound", err)
	}
	if err := s.CreateSchema(ctx); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}

	if _, err := s.Lookup(ctx, "weekend_config"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup on empty table=%v, want ErrNotFound", err)
	}
	for _, v := range []int64{300, 600} {
		if err := s.Set(ctx, "weekend_config", v); err != nil {
			t.Fatalf("Set(%d): %v", v, err)
		}
		if got, err := s.Lookup(ctx, "weekend_config"); err != nil || got != v {
			t.Errorf("Lookup=%d,%v, want %d,nil", got, err, v)
		}
	}
}

func TestNewSQLStoreDrivers(t *testing.T) {
	for _, tc := range []struct {
		driver  string
		wantErr bool
		marker  string
	}{
		{driver: DriverMySQL, marker: "?"},
		{driver: DriverPostgres, marker: "$1"},
		{driver: DriverPQ, marker: "$1"},
		{driver: DriverCockroach, marker: "$1"},
		{driver: DriverSQLite, marker: "?"},
		{driver: "oracle", wantErr: true},
	} {
		s, err := NewSQLStore(nil, tc.driver)
		if gotErr := err != nil; gotErr != tc.wantErr {
			t.Errorf("NewSQLStore(%q)=%v, want err %v", tc.driver, err, tc.wantErr)
			continue
		}
		if err == nil && !strings.HasSuffix(s.lookup, tc.marker) {
			t.Errorf("NewSQLStore(%q) lookup=%q, want placeholder %s", tc.driver, s.lookup, tc.marker)
		}
	}
}

func TestIsMissingTable(t *testing.T) {
	for _, tc := range []struct {
		desc string
		err  error
		want bool
	}{
		{desc: "nil", err: nil},
		{desc: "no rows", err: sql.ErrNoRows},
		{desc: "lib/pq", err: &pq.Error{Code: pgerrcode.UndefinedTable}, want: true},
		{desc: "lib/pq other", err: &pq.Error{Code: pgerrcode.UniqueViolation}},
		{desc: "pgx", err: fmt.Errorf("query: %w", &pgconn.PgError{Code: pgerrcode.UndefinedTable}), want: true},
		{desc: "mysql", err: &mysql.MySQLError{Number: mysqlNoSuchTable}, want: true},
		{desc: "mysql other", err: &mysql.MySQLError{Number: 1062}},
	} {
		if got := isMissingTable(tc.err); got != tc.want {
			t.Errorf("%s: isMissingTable(%v)=%v, want %v", tc.desc, tc.err, got, tc.want)
		}
	}
}

// fakeKV serves Get and Put from a map. Other methods panic.
type fakeKV struct {
	clientv3.KV
	vals map[string]string
	err  error
}

func (f *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := &clientv3.GetResponse{}
	if v, ok := f.vals[key]; ok {
		resp.Kvs = []*mvccpb.KeyValue{{Key: []byte(key), Value: []byte(v)}}
	}
	return resp, nil
}

func (f *fakeKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.vals[key] = val
	return &clientv3.PutResponse{}, nil
}

func TestEtcdStore(t *testing.T) {
	ctx := context.Background()
	kv := &fakeKV{vals: map[string]string{"horodocs/day_config": "15", "horodocs/bad": "x"}}
	e := &EtcdStore{KV: kv, Prefix: "horodocs/"}

	if got, err := e.Lookup(ctx, "day_config"); err != nil || got != 15 {
		t.Errorf("Lookup(day_config)=%d,%v, want 15,nil", got, err)
	}
	if _, err := e.Lookup(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(missing)=%v, want ErrNotFound", err)
	}
	if _, err := e.Lookup(ctx, "bad"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(bad)=%v, want parse error", err)
	}
	if err := e.Set(ctx, "night_config", 45); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := kv.vals["horodocs/night_config"]; got != "45" {
		t.Errorf("stored %q, want 45", got)
	}

	kv.err = errors.New("etcd down")
	if _, err := e.Lookup(ctx, "day_config"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup with failing etcd=%v, want wrapped error", err)
	}
}
