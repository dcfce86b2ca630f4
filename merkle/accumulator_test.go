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
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/horodocs/horodocs/hashutil"
	"github.com/transparency-dev/merkle/compact"
	"github.com/transparency-dev/merkle/proof"
)

func h(s string) string { return hashutil.SHA256Hex(s) }

// counterPadding returns deterministic filler leaves.
func counterPadding() PaddingFunc {
	n := 0
	return func() (string, error) {
		n++
		return h(fmt.Sprintf("pad-%d", n)), nil
	}
}

func buildTree(t *testing.T, n int) *Accumulator {
	t.Helper()
	a := NewAccumulator()
	for i := 0; i < n; i++ {
		if got, want := a.Insert(h(fmt.Sprintf("leaf-%d", i))), uint64(i); got != want {
			t.Fatalf("Insert=%d, want %d", got, want)
		}
	}
	if _, err := a.Seal(counterPadding()); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return a
}

func TestAccumulatorThreeLeaves(t *testing.T) {
	a := NewAccumulator()
	for _, s := range []string{"a", "b", "c"} {
		a.Insert(h(s))
	}

	if _, err := a.Root(); !errors.Is(err, ErrIncompleteTree) {
		t.Errorf("Root()=%v, want ErrIncompleteTree", err)
	}
	if _, err := a.Depth(); !errors.Is(err, ErrIncompleteTree) {
		t.Errorf("Depth()=%v, want ErrIncompleteTree", err)
	}
	if _, err := a.PosteriorBranches(0); !errors.Is(err, ErrIncompleteTree) {
		t.Errorf("PosteriorBranches()=%v, want ErrIncompleteTree", err)
	}

	added, err := a.Seal(func() (string, error) { return h("r"), nil })
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if added != 1 {
		t.Errorf("Seal added %d leaves, want 1", added)
	}

	n10 := Combine(h("a"), h("b"))
	n11 := Combine(h("c"), h("r"))
	for _, tc := range []struct {
		id   compact.NodeID
		want string
	}{
		{id: compact.NewNodeID(0, 0), want: h("a")},
		{id: compact.NewNodeID(0, 1), want: h("b")},
		{id: compact.NewNodeID(0, 2), want: h("c")},
		{id: compact.NewNodeID(0, 3), want: h("r")},
		{id: compact.NewNodeID(1, 0), want: n10},
		{id: compact.NewNodeID(1, 1), want: n11},
		{id: compact.NewNodeID(2, 0), want: Combine(n10, n11)},
	} {
		got, ok := a.Node(tc.id)
		if !ok || got != tc.want {
			t.Errorf("Node(%+v)=%q,%v, want %q", tc.id, got, ok, tc.want)
		}
	}

	root, err := a.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if want := Combine(n10, n11); root != want {
		t.Errorf("Root=%s, want %s", root, want)
	}

	ant, err := a.AnteriorBranches(2)
	if err != nil {
		t.Fatalf("AnteriorBranches: %v", err)
	}
	if diff := cmp.Diff([]ProofElement{{Level: 1, Index: 0, Hash: n10}}, ant); diff != "" {
		t.Errorf("AnteriorBranches(2) diff (-want +got):\n%s", diff)
	}
	post, err := a.PosteriorBranches(2)
	if err != nil {
		t.Fatalf("PosteriorBranches: %v", err)
	}
	if diff := cmp.Diff([]ProofElement{{Level: 0, Index: 3, Hash: h("r")}}, post); diff != "" {
		t.Errorf("PosteriorBranches(2) diff (-want +got):\n%s", diff)
	}
	post, err = a.PosteriorBranches(0)
	if err != nil {
		t.Fatalf("PosteriorBranches: %v", err)
	}
	want := []ProofElement{{Level: 0, Index: 1, Hash: h("b")}, {Level: 1, Index: 1, Hash: n11}}
	if diff := cmp.Diff(want, post); diff != "" {
		t.Errorf("PosteriorBranches(0) diff (-want +got):\n%s", diff)
	}
}

func TestAccumulatorSingleLeaf(t *testing.T) {
	a := NewAccumulator()
	a.Insert(h("only"))
	added, err := a.Seal(counterPadding())
	if err != nil || added != 0 {
		t.Fatalf("Seal=%d,%v, want 0,nil", added, err)
	}
	root, err := a.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if root != h("only") {
		t.Errorf("Root=%s, want the leaf", root)
	}
	ant, _ := a.AnteriorBranches(0)
	post, _ := a.PosteriorBranches(0)
	if len(ant) != 0 || len(post) != 0 {
		t.Errorf("branches=%v,%v, want empty", ant, post)
	}
}

func TestSealPadsToNextPowerOfTwo(t *testing.T) {
	for _, tc := range []struct {
		n, want uint64
	}{
		{n: 0, want: 0}, {n: 1, want: 1}, {n: 2, want: 2}, {n: 3, want: 4},
		{n: 5, want: 8}, {n: 8, want: 8}, {n: 9, want: 16}, {n: 33, want: 64},
	} {
		t.Run(fmt.Sprintf("n=%d", tc.n), func(t *testing.T) {
			a := buildTree(t, int(tc.n))
			if got := a.Size(); got != tc.want {
				t.Errorf("Size after Seal=%d, want %d", got, tc.want)
			}
		})
	}
}

func TestSealIsDeterministic(t *testing.T) {
	a, b := buildTree(t, 11), buildTree(t, 11)
	ra, err := a.Root()
	if err != nil {
		t.Fatal(err)
	}
	rb, err := b.Root()
	if err != nil {
		t.Fatal(err)
	}
	if ra != rb {
		t.Errorf("roots differ: %s vs %s", ra, rb)
	}
}

func TestSealPaddingError(t *testing.T) {
	a := NewAccumulator()
	a.Insert(h("a"))
	a.Insert(h("b"))
	a.Insert(h("c"))
	errPad := errors.New("no entropy")
	if _, err := a.Seal(func() (string, error) { return "", errPad }); !errors.Is(err, errPad) {
		t.Errorf("Seal=%v, want %v", err, errPad)
	}
}

func TestBranchesOutOfRange(t *testing.T) {
	a := buildTree(t, 4)
	if _, err := a.AnteriorBranches(4); !errors.Is(err, ErrLeafOutOfRange) {
		t.Errorf("AnteriorBranches(4)=%v, want ErrLeafOutOfRange", err)
	}
	if _, err := a.PosteriorBranches(4); !errors.Is(err, ErrLeafOutOfRange) {
		t.Errorf("PosteriorBranches(4)=%v, want ErrLeafOutOfRange", err)
	}
	if _, err := a.Leaf(4); !errors.Is(err, ErrLeafOutOfRange) {
		t.Errorf("Leaf(4)=%v, want ErrLeafOutOfRange", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for n := 1; n <= 40; n++ {
		a := buildTree(t, n)
		root, err := a.Root()
		if err != nil {
			t.Fatalf("n=%d: Root: %v", n, err)
		}
		for i := uint64(0); i < a.Size(); i++ {
			leaf, _ := a.Leaf(i)
			ant, err := a.AnteriorBranches(i)
			if err != nil {
				t.Fatalf("n=%d: AnteriorBranches(%d): %v", n, i, err)
			}
			post, err := a.PosteriorBranches(i)
			if err != nil {
				t.Fatalf("n=%d: PosteriorBranches(%d): %v", n, i, err)
			}
			got, trace, err := RecomputeRoot(ant, post, leaf, i)
			if err != nil {
				t.Fatalf("n=%d: RecomputeRoot(%d): %v", n, i, err)
			}
			if got != root || trace.Root() != root {
				t.Errorf("n=%d: RecomputeRoot(%d)=%s, want %s", n, i, got, root)
			}
			if a.Size() > 1 {
				pos, err := PositionFromProof(ant, post)
				if err != nil || pos != i {
					t.Errorf("n=%d: PositionFromProof=%d,%v, want %d", n, pos, err, i)
				}
			}
		}
	}
}

// The merged branches are exactly the inclusion proof of a perfect tree.
func TestBranchesMatchInclusionProof(t *testing.T) {
	a := buildTree(t, 13)
	size := a.Size()
	rootHex, err := a.Root()
	if err != nil {
		t.Fatal(err)
	}
	root, _ := hex.DecodeString(rootHex)
	for i := uint64(0); i < size; i++ {
		ant, _ := a.AnteriorBranches(i)
		post, _ := a.PosteriorBranches(i)
		elems := append(ant, post...)
		SortProof(elems)

		nodes, err := proof.Inclusion(i, size)
		if err != nil {
			t.Fatalf("Inclusion(%d, %d): %v", i, size, err)
		}
		var ids []compact.NodeID
		var hashes [][]byte
		for _, e := range elems {
			ids = append(ids, compact.NewNodeID(e.Level, e.Index))
			b, _ := hex.DecodeString(e.Hash)
			hashes = append(hashes, b)
		}
		if diff := cmp.Diff(nodes.IDs, ids); diff != "" {
			t.Errorf("leaf %d: node IDs diff (-inclusion +branches):\n%s", i, diff)
		}
		leafHex, _ := a.Leaf(i)
		leaf, _ := hex.DecodeString(leafHex)
		if err := proof.VerifyInclusion(Hasher{}, i, size, leaf, hashes, root); err != nil {
			t.Errorf("leaf %d: VerifyInclusion: %v", i, err)
		}
	}
}

func TestAccumulatorString(t *testing.T) {
	a := NewAccumulator()
	a.Insert("x")
	a.Insert("y")
	want := fmt.Sprintf("0 = x\n1 = y\n(1, 0) = %s\n", Combine("x", "y"))
	if got := a.String(); got != want {
		t.Errorf("String()=%q, want %q", got, want)
	}
}
