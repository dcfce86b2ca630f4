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

// Package types holds the values that travel between the tree, the ledger and
// the receipts: leaf inputs, timestamps and the anchor payload written to the
// contract.
package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/horodocs/horodocs/hashutil"
)

// Fingerprint identifies a document by its MD5 and SHA-256 digests, as
// computed client side.
type Fingerprint struct {
	MD5    string
	SHA256 string
}

// Validate checks that both digests are hex of the right length.
func (f Fingerprint) Validate() error {
	if err := checkHex(f.MD5, 16); err != nil {
		return fmt.Errorf("md5: %v", err)
	}
	if err := checkHex(f.SHA256, 32); err != nil {
		return fmt.Errorf("sha256: %v", err)
	}
	return nil
}

func checkHex(s string, size int) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != size {
		return fmt.Errorf("got %d bytes, want %d", len(b), size)
	}
	return nil
}

// LeafInput is everything that is hashed into a leaf.
type LeafInput struct {
	Salt string
	// Timestamp is the compact form of the submission time, see
	// Timestamp.Compact.
	Timestamp string
	Fingerprint
}

// Value returns the leaf: SHA256(salt ∥ timestamp ∥ md5 ∥ sha256).
func (l LeafInput) Value() string {
	return hashutil.SHA256Hex(l.Salt + l.Timestamp + l.MD5 + l.SHA256)
}

// quittanceDashes are the positions replaced by '-' in a quittance.
var quittanceDashes = []int{2, 8, 15, 22, 29}

// Quittance derives the receipt number printed on a receipt from the compact
// submission time, e.g. 71-7AAA3-2296E5-ECD5E8-D7905D-E7.
func Quittance(compactTimestamp string) string {
	q := []byte(hashutil.SHA256Hex(compactTimestamp))
	for _, i := range quittanceDashes {
		q[i] = '-'
	}
	return strings.ToUpper(string(q[:32]))
}

// Submission is the metadata kept alongside a leaf until its epoch is sealed.
// Padding leaves have none.
type Submission struct {
	LeafInput
	// Readable is the submission time as printed on the receipt.
	Readable     string
	Quittance    string
	Recipient    string
	CaseNumber   string
	FileID       string
	Investigator string
	Comments     string
	// WantsAnchorNotice requests a message once the root is final on chain.
	WantsAnchorNotice bool
	Language          string
	// Password optionally encrypts the rendered receipt.
	Password string
}
