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

// Package merkle implements the append-only hash tree that batches leaves
// between two ledger commitments, its sibling proofs, and the verification
// that replays those proofs.
package merkle

import (
	"fmt"

	"github.com/horodocs/horodocs/hashutil"
	"github.com/transparency-dev/merkle/compact"
)

// Accumulator is an append-only binary hash tree. Nodes are addressed by
// (level, index), level 0 holding the leaves. Node (k, i) is present iff both
// (k-1, 2i) and (k-1, 2i+1) are present.
//
// Accumulator is not safe for concurrent use; the owner serializes access.
type Accumulator struct {
	size   uint64
	hashes [][]string // Node hashes, indexed by node (level, index).
}

// NewAccumulator returns an empty tree.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Size returns the number of leaves in the tree.
func (a *Accumulator) Size() uint64 {
	return a.size
}

// Insert appends leaf and recomputes every ancestor whose right child just
// became available. It returns the index assigned to the leaf.
func (a *Accumulator) Insert(leaf string) uint64 {
	index := a.size
	a.set(0, index, leaf)
	hash := leaf
	for level, j := uint(0), index; j%2 == 1; level, j = level+1, j/2 {
		hash = Combine(a.hashes[level][j-1], hash)
		a.set(level+1, j/2, hash)
	}
	a.size++
	return index
}

// set stores a node, enforcing append-only order within a level and the
// presence of both children for interior nodes.
func (a *Accumulator) set(level uint, index uint64, hash string) {
	if level > uint(len(a.hashes)) {
		panic(fmt.Sprintf("merkle: gap in tree levels storing (%d, %d)", level, index))
	}
	if level == uint(len(a.hashes)) {
		a.hashes = append(a.hashes, nil)
	}
	if got := uint64(len(a.hashes[level])); got != index {
		panic(fmt.Sprintf("merkle: storing (%d, %d) but level holds %d nodes", level, index, got))
	}
	if level > 0 && uint64(len(a.hashes[level-1])) < 2*index+2 {
		panic(fmt.Sprintf("merkle: storing (%d, %d) without both children", level, index))
	}
	a.hashes[level] = append(a.hashes[level], hash)
}

// Node returns the hash stored at id, if any.
func (a *Accumulator) Node(id compact.NodeID) (string, bool) {
	if id.Level >= uint(len(a.hashes)) || id.Index >= uint64(len(a.hashes[id.Level])) {
		return "", false
	}
	return a.hashes[id.Level][id.Index], true
}

// Leaf returns the leaf at index n.
func (a *Accumulator) Leaf(n uint64) (string, error) {
	if n >= a.size {
		return "", fmt.Errorf("%w: leaf %d of %d", ErrLeafOutOfRange, n, a.size)
	}
	return a.hashes[0][n], nil
}

// Depth returns the level of the root, i.e. the number of right shifts of the
// size needed to reach 1.
func (a *Accumulator) Depth() (uint, error) {
	if !hashutil.IsPowerOfTwo(a.size) {
		return 0, fmt.Errorf("%w: size %d", ErrIncompleteTree, a.size)
	}
	var depth uint
	for j := a.size; j > 1; j >>= 1 {
		depth++
	}
	return depth, nil
}

// Root returns the root hash. The size must be a power of two.
func (a *Accumulator) Root() (string, error) {
	depth, err := a.Depth()
	if err != nil {
		return "", err
	}
	return a.hashes[depth][0], nil
}

// AnteriorBranches returns the left siblings met on the path from leaf n to
// the root, lowest level first. It is valid on a tree of any size.
func (a *Accumulator) AnteriorBranches(n uint64) ([]ProofElement, error) {
	if n >= a.size {
		return nil, fmt.Errorf("%w: leaf %d of %d", ErrLeafOutOfRange, n, a.size)
	}
	var vals []ProofElement
	for level, j := uint(0), n; j > 0; level, j = level+1, j/2 {
		if j%2 == 1 {
			vals = append(vals, ProofElement{Level: level, Index: j - 1, Hash: a.hashes[level][j-1]})
		}
	}
	return vals, nil
}

// PosteriorBranches returns the right siblings met on the path from leaf n to
// the root, lowest level first. The size must be a power of two.
func (a *Accumulator) PosteriorBranches(n uint64) ([]ProofElement, error) {
	depth, err := a.Depth()
	if err != nil {
		return nil, err
	}
	if n >= a.size {
		return nil, fmt.Errorf("%w: leaf %d of %d", ErrLeafOutOfRange, n, a.size)
	}
	var vals []ProofElement
	for level, j := uint(0), n; level < depth; level, j = level+1, j/2 {
		if j%2 == 0 {
			vals = append(vals, ProofElement{Level: level, Index: j + 1, Hash: a.hashes[level][j+1]})
		}
	}
	return vals, nil
}

// PaddingFunc produces a filler leaf.
type PaddingFunc func() (string, error)

// Seal pads the tree with leaves from padding until its size is the next
// power of two at or above the current size, and returns the number of leaves
// added. A tree whose size is already a power of two, or which is empty, is
// left untouched.
func (a *Accumulator) Seal(padding PaddingFunc) (int, error) {
	if a.size == 0 {
		return 0, nil
	}
	target := hashutil.NextPowerOfTwo(a.size)
	added := 0
	for a.size < target {
		leaf, err := padding()
		if err != nil {
			return added, fmt.Errorf("padding leaf %d: %w", a.size, err)
		}
		a.Insert(leaf)
		added++
	}
	return added, nil
}

// String renders the stored nodes, one per line.
func (a *Accumulator) String() string {
	var s string
	for level, row := range a.hashes {
		for index, hash := range row {
			if level == 0 {
				s += fmt.Sprintf("%d = %s\n", index, hash)
			} else {
				s += fmt.Sprintf("(%d, %d) = %s\n", level, index, hash)
			}
		}
	}
	return s
}
