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

package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/horodocs/horodocs/hashutil"
)

// ErrNotAnchor is returned for contract values that are not anchor payloads.
var ErrNotAnchor = errors.New("value is not an anchor payload")

// AnchorPayload is the value written to the contract when an epoch is sealed.
// Only the right half of the root is public; the left half is folded with a
// random witness so that the receipt holder can prove knowledge of it.
type AnchorPayload struct {
	Cipher    string
	RightHalf string
	ClosedAt  string
}

// NewAnchorPayload builds the payload for root, hiding witness (hex, a
// quarter of the root length) in the cipher.
func NewAnchorPayload(root, witness string, closedAt Timestamp) (AnchorPayload, error) {
	cipher, err := foldLeftHalf(root, witness)
	if err != nil {
		return AnchorPayload{}, err
	}
	_, right := hashutil.Halves(root)
	return AnchorPayload{Cipher: cipher, RightHalf: right, ClosedAt: closedAt.Readable()}, nil
}

// RecoverWitness undoes the cipher given the full root.
func (p AnchorPayload) RecoverWitness(root string) (string, error) {
	return foldLeftHalf(root, p.Cipher)
}

// foldLeftHalf XORs the two quarters of root's left half with v.
func foldLeftHalf(root, v string) (string, error) {
	left, _ := hashutil.Halves(root)
	ll, lr := hashutil.Halves(left)
	out, err := hashutil.XORHex(ll, lr, v)
	if err != nil {
		return "", fmt.Errorf("folding root %q: %v", root, err)
	}
	return out, nil
}

// String renders the value sent to the contract.
func (p AnchorPayload) String() string {
	return fmt.Sprintf("%s,%s, %s", p.Cipher, p.RightHalf, p.ClosedAt)
}

// ParseAnchorPayload is the inverse of AnchorPayload.String.
func ParseAnchorPayload(s string) (AnchorPayload, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) < 3 {
		return AnchorPayload{}, fmt.Errorf("%w: %q", ErrNotAnchor, s)
	}
	return AnchorPayload{
		Cipher:    strings.TrimSpace(parts[0]),
		RightHalf: strings.TrimSpace(parts[1]),
		ClosedAt:  strings.TrimSpace(parts[2]),
	}, nil
}

// GroupWitness formats a witness in dash separated groups of four, as printed
// on receipts.
func GroupWitness(w string) string {
	var groups []string
	for i := 0; i < len(w); i += 4 {
		groups = append(groups, w[i:min(i+4, len(w))])
	}
	return strings.Join(groups, "-")
}
