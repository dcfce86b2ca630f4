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
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ProofElement is a sibling met on the path from a leaf to the root.
type ProofElement struct {
	Level uint
	Index uint64
	Hash  string
}

// SortProof orders elements by level, then index.
func SortProof(elems []ProofElement) {
	sort.SliceStable(elems, func(i, j int) bool {
		return lessElement(elems[i], elems[j])
	})
}

func lessElement(a, b ProofElement) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	return a.Index < b.Index
}

// FormatProof renders elements in the textual form printed on receipts,
// e.g. [(0, 3, 'ab12'), (1, 0, 'cd34')].
func FormatProof(elems []ProofElement) string {
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		parts = append(parts, fmt.Sprintf("(%d, %d, '%s')", e.Level, e.Index, e.Hash))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

var (
	tupleRE = regexp.MustCompile(`\(\s*(\d+)\s*,\s*(\d+)\s*,\s*['"]([0-9a-fA-F]+)['"]\s*\)`)
	sepRE   = regexp.MustCompile(`^[\s,]*$`)
)

// ParseProof is the inverse of FormatProof.
func ParseProof(s string) ([]ProofElement, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("%w: proof %q is not a list", ErrMalformedProof, s)
	}
	body := s[1 : len(s)-1]
	var elems []ProofElement
	last := 0
	for _, m := range tupleRE.FindAllStringSubmatchIndex(body, -1) {
		if !sepRE.MatchString(body[last:m[0]]) {
			return nil, fmt.Errorf("%w: unexpected %q", ErrMalformedProof, body[last:m[0]])
		}
		level, err := strconv.ParseUint(body[m[2]:m[3]], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: level: %v", ErrMalformedProof, err)
		}
		index, err := strconv.ParseUint(body[m[4]:m[5]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: index: %v", ErrMalformedProof, err)
		}
		elems = append(elems, ProofElement{Level: uint(level), Index: index, Hash: strings.ToLower(body[m[6]:m[7]])})
		last = m[1]
	}
	if !sepRE.MatchString(body[last:]) {
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformedProof, body[last:])
	}
	return elems, nil
}
