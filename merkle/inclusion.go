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

package merkle

import (
	"encoding/hex"
	"fmt"

	"github.com/transparency-dev/merkle/compact"
	"github.com/transparency-dev/merkle/proof"
)

// Proof returns the anterior and posterior branches of leaf n, once they
// have been checked against the inclusion proof of a log of the same size.
// The size must be a power of two.
func (a *Accumulator) Proof(n uint64) (anterior, posterior []ProofElement, err error) {
	if anterior, err = a.AnteriorBranches(n); err != nil {
		return nil, nil, err
	}
	if posterior, err = a.PosteriorBranches(n); err != nil {
		return nil, nil, err
	}
	root, err := a.Root()
	if err != nil {
		return nil, nil, err
	}
	leaf, err := a.Leaf(n)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckInclusion(n, a.size, leaf, root, anterior, posterior); err != nil {
		return nil, nil, fmt.Errorf("leaf %d: %w", n, err)
	}
	return anterior, posterior, nil
}

// CheckInclusion verifies that the branches of leaf n in a perfect tree of
// the given size are exactly the nodes of its inclusion proof, and that they
// lead to root.
func CheckInclusion(n, size uint64, leaf, root string, anterior, posterior []ProofElement) error {
	elems := make([]ProofElement, 0, len(anterior)+len(posterior))
	elems = append(append(elems, anterior...), posterior...)
	SortProof(elems)

	nodes, err := proof.Inclusion(n, size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	if len(nodes.IDs) != len(elems) {
		return fmt.Errorf("%w: %d siblings, want %d", ErrMalformedProof, len(elems), len(nodes.IDs))
	}
	hashes := make([][]byte, len(elems))
	for i, e := range elems {
		if id := compact.NewNodeID(e.Level, e.Index); id != nodes.IDs[i] {
			return fmt.Errorf("%w: sibling %d is %+v, want %+v", ErrMalformedProof, i, id, nodes.IDs[i])
		}
		if hashes[i], err = hex.DecodeString(e.Hash); err != nil {
			return fmt.Errorf("%w: sibling %d: %v", ErrMalformedProof, i, err)
		}
	}
	leafHash, err := hex.DecodeString(leaf)
	if err != nil {
		return fmt.Errorf("%w: leaf: %v", ErrMalformedProof, err)
	}
	rootHash, err := hex.DecodeString(root)
	if err != nil {
		return fmt.Errorf("%w: root: %v", ErrMalformedProof, err)
	}
	if err := proof.VerifyInclusion(Hasher{}, n, size, leafHash, hashes, rootHash); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	return nil
}
