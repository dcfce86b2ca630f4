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

// Package hashutil holds the stateless digest helpers shared by the tree,
// the sealing path and verification.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/bits"
	"os"
)

// bufSize is the read buffer used when digesting files.
const bufSize = 64 * 1024

// SHA256Hex returns the lowercase hex SHA-256 digest of s.
func SHA256Hex(s string) string {
	return SHA256Bytes([]byte(s))
}

// SHA256Bytes returns the lowercase hex SHA-256 digest of b.
func SHA256Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashReader digests everything readable from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.CopyBuffer(h, r, make([]byte, bufSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the SHA-256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}

// XOR returns a^b. Both inputs must have the same length.
func XOR(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("xor of mismatched lengths %d and %d", len(a), len(b))
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out, nil
}

// XORHex XORs hex strings of equal length and returns the result in hex.
func XORHex(a string, rest ...string) (string, error) {
	acc, err := hex.DecodeString(a)
	if err != nil {
		return "", fmt.Errorf("invalid hex %q: %v", a, err)
	}
	for _, s := range rest {
		b, err := hex.DecodeString(s)
		if err != nil {
			return "", fmt.Errorf("invalid hex %q: %v", s, err)
		}
		if acc, err = XOR(acc, b); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(acc), nil
}

// Halves splits s into two halves. For odd lengths the right half holds the
// extra character.
func Halves(s string) (left, right string) {
	return s[:len(s)/2], s[len(s)/2:]
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two that is >= n. A value
// that is already a power of two is returned unchanged.
func NextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}
