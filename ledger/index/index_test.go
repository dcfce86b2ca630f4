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

package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/horodocs/horodocs/monitoring"
	"github.com/horodocs/horodocs/notify"
	"github.com/horodocs/horodocs/util/clock"
)

func tx(hash string, at int64) Transaction {
	return Transaction{Hash: hash, TimeStamp: strconv.FormatInt(at, 10), BlockNumber: "1", Input: "0x"}
}

func hashes(txs []Transaction) []string {
	var out []string
	for _, t := range txs {
		out = append(out, t.Hash)
	}
	return out
}

func TestClientFetch(t *testing.T) {
	var gotQuery, gotUA string
	body := `{"status":"1","message":"OK","result":[{"hash":"0xaa","timeStamp":"1000","input":"0x01"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL + "/api", APIKey: "K", Contract: "0xC0"}
	env, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if want := "action=txlist&address=0xC0&apikey=K&module=account&sort=asc"; gotQuery != want {
		t.Errorf("query=%q, want %q", gotQuery, want)
	}
	if gotUA != userAgent {
		t.Errorf("User-Agent=%q, want %q", gotUA, userAgent)
	}
	want := []Transaction{{Hash: "0xaa", TimeStamp: "1000", Input: "0x01"}}
	if diff := cmp.Diff(want, env.Result); diff != "" {
		t.Errorf("Result diff (-want +got):\n%s", diff)
	}
}

func TestClientFetchErrors(t *testing.T) {
	for _, tc := range []struct {
		desc   string
		status int
		body   string
	}{
		{desc: "notok", status: http.StatusOK, body: `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`},
		{desc: "badjson", status: http.StatusOK, body: `<html>rate limited</html>`},
		{desc: "http", status: http.StatusBadGateway, body: `{"status":"1","result":[]}`},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()
			c := &Client{URL: srv.URL}
			if _, err := c.Fetch(context.Background()); !errors.Is(err, ErrIndexerUnavailable) {
				t.Errorf("Fetch()=%v, want ErrIndexerUnavailable", err)
			}
		})
	}
}

func TestSnapshotAround(t *testing.T) {
	s := NewSnapshot([]Transaction{
		tx("0xd", 10000),
		tx("0xa", 3000),
		tx("0xb", 6600),
		tx("0xc", 6600),
		tx("0x9", 2999),
		tx("0xe", 10201),
		tx("0xf", 10200),
		{Hash: "0xbad", TimeStamp: "yesterday"},
		{Hash: "0xfail", TimeStamp: "6600", IsError: "1"},
	})
	if got := s.Len(); got != 7 {
		t.Errorf("Len()=%d, want 7", got)
	}
	// Both ends of [6600-3600, 6600+3600] are included.
	got := hashes(s.Around(time.Unix(6600, 0), time.Hour))
	if diff := cmp.Diff([]string{"0xa", "0xb", "0xc", "0xd", "0xf"}, got); diff != "" {
		t.Errorf("Around diff (-want +got):\n%s", diff)
	}
	if got := s.Around(time.Unix(50000, 0), time.Hour); len(got) != 0 {
		t.Errorf("Around(far future)=%v, want none", got)
	}
	if _, ok := s.Lookup("0xD"); !ok {
		t.Error("Lookup(0xD) missed, want case-insensitive hit")
	}
	if _, ok := s.Lookup("0xfail"); ok {
		t.Error("Lookup(0xfail) found a failed transaction")
	}
}

func TestWriteAndLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract_transactions.json")
	env := &Envelope{Status: "1", Message: "OK", Result: []Transaction{tx("0x1", 100), tx("0x2", 200)}}
	if err := WriteSnapshot(path, env); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	s, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got := s.Len(); got != 2 {
		t.Errorf("Len()=%d, want 2", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d files, want only the snapshot", len(entries))
	}
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("LoadSnapshot(corrupt) succeeded, want error")
	}
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.json")
	fs := &FileSource{Path: path}
	if _, err := fs.Snapshot(ctx); err == nil {
		t.Error("Snapshot() with no file succeeded, want error")
	}
	if err := WriteSnapshot(path, &Envelope{Status: "1", Result: []Transaction{tx("0x1", 1)}}); err != nil {
		t.Fatal(err)
	}
	s1, err := fs.Snapshot(ctx)
	if err != nil || s1.Len() != 1 {
		t.Fatalf("Snapshot()=%v,%v, want one transaction", s1, err)
	}
	if s2, _ := fs.Snapshot(ctx); s2 != s1 {
		t.Error("unchanged file was reloaded")
	}
	if err := WriteSnapshot(path, &Envelope{Status: "1", Result: []Transaction{tx("0x1", 1), tx("0x2", 2)}}); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if s3, err := fs.Snapshot(ctx); err != nil || s3.Len() != 2 {
		t.Errorf("Snapshot() after rewrite=%v,%v, want two transactions", s3, err)
	}
}

// scriptedFetcher returns its results in order, repeating the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (f *scriptedFetcher) Fetch(context.Context) (*Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	if err != nil {
		return nil, err
	}
	return &Envelope{Status: "1", Result: []Transaction{tx(fmt.Sprintf("0x%d", f.calls), int64(f.calls))}}, nil
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRefresherKeepsSnapshotOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	n := notify.NewMockNotifier(ctrl)
	// One warning per failure streak.
	n.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(2).Return(nil)

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.json")
	down := fmt.Errorf("%w: timeout", ErrIndexerUnavailable)
	f := &scriptedFetcher{results: []error{nil, down, down, nil, down}}
	r := NewRefresher(f, path, RefresherOptions{Notifier: n, Metrics: monitoring.InertMetricFactory{}})

	if _, err := r.Snapshot(ctx); !errors.Is(err, ErrIndexerUnavailable) {
		t.Errorf("Snapshot() before refresh=%v, want ErrIndexerUnavailable", err)
	}
	if err := r.RefreshOnce(ctx); err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := r.RefreshOnce(ctx); !errors.Is(err, ErrIndexerUnavailable) {
			t.Errorf("RefreshOnce()=%v, want ErrIndexerUnavailable", err)
		}
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(before), string(after)); diff != "" {
		t.Errorf("snapshot file changed on failure (-want +got):\n%s", diff)
	}
	s, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, ok := s.Lookup("0x1"); !ok {
		t.Error("in-memory snapshot lost after failures")
	}
	if err := r.RefreshOnce(ctx); err != nil {
		t.Fatalf("RefreshOnce after recovery: %v", err)
	}
	if err := r.RefreshOnce(ctx); err == nil {
		t.Fatal("RefreshOnce succeeded, want a new failure streak")
	}
	if got := r.refresh.Value("error"); got != 3 {
		t.Errorf("error count=%v, want 3", got)
	}

	// A new Refresher starts from the file left behind.
	r2 := NewRefresher(f, path, RefresherOptions{Notifier: notify.LogNotifier{}})
	if s, err := r2.Snapshot(ctx); err != nil || s.Len() != 1 {
		t.Errorf("Snapshot() from file=%v,%v, want one transaction", s, err)
	}
}

func TestRefresherRun(t *testing.T) {
	ts := clock.NewFake(time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC))
	f := &scriptedFetcher{results: []error{nil}}
	r := NewRefresher(f, filepath.Join(t.TempDir(), "snap.json"), RefresherOptions{Interval: time.Minute, TimeSource: ts})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Run(ctx) }()

	for i := 1; i <= 3; i++ {
		for ts.PendingTimers() == 0 {
			time.Sleep(time.Millisecond)
		}
		if got := f.count(); got != i {
			t.Fatalf("fetches=%d before tick %d, want %d", got, i, i)
		}
		ts.Advance(time.Minute)
		for f.count() == i {
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run()=%v, want nil", err)
	}
}
