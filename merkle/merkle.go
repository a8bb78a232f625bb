// Package merkle builds order-sensitive Merkle trees over evidence digests.
//
// Leaf order is the insertion order of the evidence pack and is never sorted:
// item order is part of the evidence's meaning, so swapping two items must
// change the root. A lone trailing node at any level is promoted unchanged
// rather than duplicated.
package merkle

import (
	"errors"
	"fmt"

	"skuldbot.io/attest/digest"
)

// Side says which side of the concatenation a proof hash sits on.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

var ErrIndexRange = errors.New("merkle: leaf index out of range")

// ProofStep is one sibling hash on the path from a leaf to the root.
type ProofStep struct {
	Hash digest.Digest `json:"hash"`
	Side Side          `json:"side"`
}

// Tree is an immutable Merkle tree over an ordered digest sequence.
type Tree struct {
	levels [][]digest.Digest // levels[0] is the leaf level
	root   digest.Digest
}

// emptyRoot is the root of a tree with no leaves: the hash of the empty byte
// sequence. An empty pack is well-formed, not an error.
func emptyRoot() digest.Digest { return digest.Sum(nil) }

// Build constructs the tree bottom-up. Parent = hash(left || right) with
// left/right fixed by original index order.
func Build(leaves []digest.Digest) *Tree {
	t := &Tree{}
	if len(leaves) == 0 {
		t.root = emptyRoot()
		return t
	}

	level := append([]digest.Digest(nil), leaves...)
	t.levels = append(t.levels, level)
	for len(level) > 1 {
		next := make([]digest.Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				// Lone node: promote unchanged.
				next = append(next, level[i])
				continue
			}
			next = append(next, digest.Concat(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	t.root = level[0]
	return t
}

// BuildFromBytes hashes each raw item and builds the tree over the results.
func BuildFromBytes(items [][]byte) *Tree {
	leaves := make([]digest.Digest, len(items))
	for i, b := range items {
		leaves[i] = digest.Sum(b)
	}
	return Build(leaves)
}

func (t *Tree) Root() digest.Digest { return t.root }

func (t *Tree) LeafCount() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Proof returns the inclusion proof for the leaf at index, ordered
// leaf-to-root. A lone promoted node contributes no step at that level.
func (t *Tree) Proof(index int) ([]ProofStep, error) {
	if index < 0 || index >= t.LeafCount() {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexRange, index, t.LeafCount())
	}

	var steps []ProofStep
	pos := index
	for _, level := range t.levels[:len(t.levels)-1] {
		if pos%2 == 0 {
			if pos+1 < len(level) {
				steps = append(steps, ProofStep{Hash: level[pos+1], Side: Right})
			}
			// else: lone node promoted, no sibling.
		} else {
			steps = append(steps, ProofStep{Hash: level[pos-1], Side: Left})
		}
		pos /= 2
	}
	return steps, nil
}

// VerifyProof replays a proof from a leaf digest and reports whether it
// reaches root. Mismatch is an expected outcome, not an error.
func VerifyProof(leaf digest.Digest, steps []ProofStep, root digest.Digest) bool {
	cur := leaf
	for _, s := range steps {
		switch s.Side {
		case Left:
			cur = digest.Concat(s.Hash, cur)
		case Right:
			cur = digest.Concat(cur, s.Hash)
		default:
			return false
		}
	}
	return cur == root
}
