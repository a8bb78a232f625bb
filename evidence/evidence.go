// Package evidence models evidence packs: ordered collections of captured
// artifacts whose integrity is fixed by a Merkle root at seal time.
//
// Items are hashed in insertion order. The order is part of the identity of
// the pack: re-ordering items yields a different root even when the byte
// contents are identical.
package evidence

import (
	"errors"
	"fmt"
	"time"

	"skuldbot.io/attest/digest"
	"skuldbot.io/attest/merkle"
)

var (
	// ErrEmptyPackID is returned when a pack is created without an ID.
	ErrEmptyPackID = errors.New("evidence: empty pack id")

	// ErrItemRange is returned when an item index is out of range.
	ErrItemRange = errors.New("evidence: item index out of range")

	// ErrUnknownPack is returned by Source implementations for unknown packs.
	ErrUnknownPack = errors.New("evidence: unknown pack")
)

// Item is a single captured artifact: screenshot, log extract, API response,
// configuration snapshot. The engine treats the payload as opaque bytes.
type Item struct {
	// Kind labels what the artifact is ("screenshot", "api_response", ...).
	Kind string `json:"kind"`

	// CapturedAt records when the artifact was captured, UTC.
	CapturedAt time.Time `json:"capturedAt"`

	// Bytes is the raw artifact payload.
	Bytes []byte `json:"-"`
}

// Pack is a mutable, in-progress evidence pack. Call Seal to fix its
// contents; the sealed form is what attestations reference.
type Pack struct {
	// ID identifies the pack, unique within an execution.
	ID string

	// ExecutionID ties the pack to the bot execution that produced it.
	ExecutionID string

	items []Item
}

// NewPack creates an empty pack.
func NewPack(id, executionID string) (*Pack, error) {
	if id == "" {
		return nil, ErrEmptyPackID
	}
	return &Pack{ID: id, ExecutionID: executionID}, nil
}

// Add appends an item. Insertion order is preserved and significant.
func (p *Pack) Add(item Item) {
	p.items = append(p.items, item)
}

// Len reports the number of items added so far.
func (p *Pack) Len() int { return len(p.items) }

// Seal computes the leaf digests and Merkle root over the items in insertion
// order and returns the immutable sealed form. The pack may keep being used
// afterwards; Seal snapshots the items present at call time.
func (p *Pack) Seal(at time.Time) *Sealed {
	leaves := make([]digest.Digest, len(p.items))
	items := make([]Item, len(p.items))
	for i, it := range p.items {
		leaves[i] = digest.Sum(it.Bytes)
		items[i] = it
	}
	return &Sealed{
		id:          p.ID,
		executionID: p.ExecutionID,
		sealedAt:    at.UTC(),
		items:       items,
		leaves:      leaves,
		tree:        merkle.Build(leaves),
	}
}

// Sealed is an evidence pack whose contents and root are fixed. All
// accessors return copies; nothing about a Sealed pack can be mutated
// through its API.
type Sealed struct {
	id          string
	executionID string
	sealedAt    time.Time
	items       []Item
	leaves      []digest.Digest
	tree        *merkle.Tree
}

func (s *Sealed) ID() string          { return s.id }
func (s *Sealed) ExecutionID() string { return s.executionID }
func (s *Sealed) SealedAt() time.Time { return s.sealedAt }
func (s *Sealed) Len() int            { return len(s.items) }

// Root is the Merkle root over the item digests in insertion order.
func (s *Sealed) Root() digest.Digest { return s.tree.Root() }

// Leaf returns the digest of the item at index i.
func (s *Sealed) Leaf(i int) (digest.Digest, error) {
	if i < 0 || i >= len(s.leaves) {
		return digest.Digest{}, ErrItemRange
	}
	return s.leaves[i], nil
}

// Item returns a copy of the item at index i.
func (s *Sealed) Item(i int) (Item, error) {
	if i < 0 || i >= len(s.items) {
		return Item{}, ErrItemRange
	}
	it := s.items[i]
	b := make([]byte, len(it.Bytes))
	copy(b, it.Bytes)
	it.Bytes = b
	return it, nil
}

// Proof returns the inclusion proof for the item at index i. Combined with
// the root, it lets a holder of just that item prove membership without the
// rest of the pack.
func (s *Sealed) Proof(i int) ([]merkle.ProofStep, error) {
	steps, err := s.tree.Proof(i)
	if err != nil {
		return nil, fmt.Errorf("evidence: %w", err)
	}
	return steps, nil
}

// VerifyItem checks that raw bytes belong at index i of this pack.
func (s *Sealed) VerifyItem(i int, raw []byte) (bool, error) {
	steps, err := s.Proof(i)
	if err != nil {
		return false, err
	}
	return merkle.VerifyProof(digest.Sum(raw), steps, s.tree.Root()), nil
}

// Recompute rebuilds the Merkle root from the current item bytes and reports
// whether it still matches the sealed root. A mismatch means at least one
// item was altered after sealing.
func (s *Sealed) Recompute() bool {
	leaves := make([]digest.Digest, len(s.items))
	for i, it := range s.items {
		leaves[i] = digest.Sum(it.Bytes)
	}
	return rootOf(leaves) == s.tree.Root()
}

func rootOf(leaves []digest.Digest) digest.Digest {
	return merkle.Build(leaves).Root()
}
