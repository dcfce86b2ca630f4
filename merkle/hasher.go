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
	"errors"

	"github.com/horodocs/horodocs/hashutil"
	"github.com/transparency-dev/merkle"
)

var (
	// ErrIncompleteTree is returned when a root or a posterior proof is
	// requested from a tree whose size is not a power of two.
	ErrIncompleteTree = errors.New("tree size is not a power of two")
	// ErrMalformedProof is returned when a proof cannot be folded into a root.
	ErrMalformedProof = errors.New("malformed proof")
	// ErrLeafOutOfRange is returned for a leaf index beyond the tree size.
	ErrLeafOutOfRange = errors.New("leaf index out of range")
)

// Combine returns the parent of two nodes: the SHA-256 of the concatenated
// lowercase hex digests.
func Combine(left, right string) string {
	return hashutil.SHA256Hex(left + right)
}

// Hasher exposes Combine over raw digests, so that tree proofs can be checked
// with the generic log proof tooling.
type Hasher struct{}

var _ merkle.LogHasher = Hasher{}

// EmptyRoot returns the digest of the empty string.
func (Hasher) EmptyRoot() []byte {
	b, _ := hex.DecodeString(hashutil.SHA256Hex(""))
	return b
}

// HashLeaf returns leaf unchanged: leaves are already digests.
func (Hasher) HashLeaf(leaf []byte) []byte {
	return leaf
}

// HashChildren combines two raw digests as Combine does for hex ones.
func (Hasher) HashChildren(l, r []byte) []byte {
	b, _ := hex.DecodeString(Combine(hex.EncodeToString(l), hex.EncodeToString(r)))
	return b
}

// Size returns the digest size in bytes.
func (Hasher) Size() int {
	return 32
}
