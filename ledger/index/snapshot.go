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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"k8s.io/klog/v2"
)

// entry is a transaction keyed by its block time.
type entry struct {
	at int64
	tx Transaction
}

func lessEntry(a, b entry) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.tx.Hash < b.tx.Hash
}

// Snapshot is an immutable set of contract transactions ordered by time.
type Snapshot struct {
	tree   *btree.BTreeG[entry]
	byHash map[string]Transaction
}

// NewSnapshot indexes txs. Failed transactions and transactions with an
// unparsable timestamp are skipped.
func NewSnapshot(txs []Transaction) *Snapshot {
	s := &Snapshot{tree: btree.NewG(8, lessEntry), byHash: make(map[string]Transaction, len(txs))}
	for _, tx := range txs {
		if tx.IsError == "1" {
			continue
		}
		at, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
		if err != nil {
			klog.Warningf("Skipping transaction %s with timestamp %q: %v", tx.Hash, tx.TimeStamp, err)
			continue
		}
		s.tree.ReplaceOrInsert(entry{at: at, tx: tx})
		s.byHash[strings.ToLower(tx.Hash)] = tx
	}
	return s
}

// Len returns the number of indexed transactions.
func (s *Snapshot) Len() int {
	return s.tree.Len()
}

// Lookup finds a transaction by hash.
func (s *Snapshot) Lookup(hash string) (Transaction, bool) {
	tx, ok := s.byHash[strings.ToLower(hash)]
	return tx, ok
}

// Around returns the transactions whose block time lies within d of t,
// bounds included, oldest first.
func (s *Snapshot) Around(t time.Time, d time.Duration) []Transaction {
	lo := entry{at: t.Add(-d).Unix()}
	hi := entry{at: t.Add(d).Unix() + 1}
	var out []Transaction
	s.tree.AscendRange(lo, hi, func(e entry) bool {
		out = append(out, e.tx)
		return true
	})
	return out
}

// LoadSnapshot reads a snapshot file written by WriteSnapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("index: parsing %s: %v", path, err)
	}
	return NewSnapshot(env.Result), nil
}

// WriteSnapshot replaces the file at path with env. Readers see either the
// old or the new content, never a partial file.
func WriteSnapshot(path string, env *Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Source provides the latest snapshot.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// FileSource serves the snapshot file at Path, reloading it when its
// modification time changes.
type FileSource struct {
	Path string

	mu      sync.Mutex
	modTime time.Time
	cached  *Snapshot
}

// Snapshot implements Source.
func (f *FileSource) Snapshot(context.Context) (*Snapshot, error) {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached != nil && fi.ModTime().Equal(f.modTime) {
		return f.cached, nil
	}
	s, err := LoadSnapshot(f.Path)
	if err != nil {
		return nil, err
	}
	f.cached, f.modTime = s, fi.ModTime()
	return s, nil
}
