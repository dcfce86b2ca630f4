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
	"sort"
	"strings"
)

// Step is one combination performed while recomputing a root.
type Step struct {
	Level  uint
	Left   string
	Right  string
	Result string
}

// Trace explains how a root was derived from a leaf, for receipts and the
// verification page.
type Trace struct {
	Leaf  string
	Steps []Step
}

// Root returns the last value of the derivation.
func (t Trace) Root() string {
	if len(t.Steps) == 0 {
		return t.Leaf
	}
	return t.Steps[len(t.Steps)-1].Result
}

func (t Trace) String() string {
	var b strings.Builder
	if len(t.Steps) == 0 {
		b.WriteString("Single value in the tree.\n")
		fmt.Fprintf(&b, "Tree root = %s\n", t.Leaf)
		return b.String()
	}
	for _, s := range t.Steps {
		fmt.Fprintf(&b, "Tree root = SHA256(%s + %s)\n", s.Left, s.Right)
		fmt.Fprintf(&b, "Result: %s\n", s.Result)
	}
	return b.String()
}

type sibling struct {
	ProofElement
	anterior bool
}

// RecomputeRoot folds the leaf claimed to sit at position with its anterior
// and posterior siblings, exactly as Accumulator.Insert combines nodes, and
// returns the derived root with its trace.
func RecomputeRoot(anterior, posterior []ProofElement, leaf string, position uint64) (string, Trace, error) {
	sibs := make([]sibling, 0, len(anterior)+len(posterior))
	for _, e := range anterior {
		sibs = append(sibs, sibling{e, true})
	}
	for _, e := range posterior {
		if e.Level == 0 && e.Index == 0 && position == 0 {
			continue
		}
		sibs = append(sibs, sibling{e, false})
	}
	sortSiblings(sibs)

	trace := Trace{Leaf: leaf}
	cur, pos := leaf, position
	for i, s := range sibs {
		switch {
		case s.Level < uint(i):
			return "", Trace{}, fmt.Errorf("%w: anterior and posterior disagree at level %d", ErrMalformedProof, s.Level)
		case s.Level > uint(i):
			return "", Trace{}, fmt.Errorf("%w: no sibling at level %d", ErrMalformedProof, i)
		}
		if s.Index != pos^1 {
			return "", Trace{}, fmt.Errorf("%w: sibling (%d, %d) does not match position %d", ErrMalformedProof, s.Level, s.Index, pos)
		}
		left, right := cur, s.Hash
		if s.Index < pos {
			if !s.anterior {
				return "", Trace{}, fmt.Errorf("%w: posterior sibling (%d, %d) is on the left", ErrMalformedProof, s.Level, s.Index)
			}
			left, right = s.Hash, cur
		} else if s.anterior {
			return "", Trace{}, fmt.Errorf("%w: anterior sibling (%d, %d) is on the right", ErrMalformedProof, s.Level, s.Index)
		}
		cur = Combine(left, right)
		trace.Steps = append(trace.Steps, Step{Level: s.Level, Left: left, Right: right, Result: cur})
		pos /= 2
	}
	return cur, trace, nil
}

func sortSiblings(sibs []sibling) {
	sort.SliceStable(sibs, func(i, j int) bool {
		return lessElement(sibs[i].ProofElement, sibs[j].ProofElement)
	})
}

// PositionFromProof infers the leaf position claimed by a proof from its
// level 0 sibling. A proof with no elements belongs to a single-leaf tree.
func PositionFromProof(anterior, posterior []ProofElement) (uint64, error) {
	elems := append(append([]ProofElement(nil), anterior...), posterior...)
	if len(elems) == 0 {
		return 0, nil
	}
	SortProof(elems)
	if elems[0].Level != 0 {
		return 0, fmt.Errorf("%w: no sibling at level 0", ErrMalformedProof)
	}
	return elems[0].Index ^ 1, nil
}
