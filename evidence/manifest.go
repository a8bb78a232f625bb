package evidence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"

	"skuldbot.io/attest/digest"
	"skuldbot.io/attest/storage"
)

// Manifest is the canonical, storable description of a sealed pack. It lists
// each item's digest and CID alongside the Merkle root, so a verifier with
// access to the evidence store can re-fetch the bytes and recompute the root.
//
// Manifests serialize with a fixed field order and UTC RFC 3339 timestamps;
// the same sealed pack always yields byte-identical manifest JSON.
type Manifest struct {
	PackID      string          `json:"packId"`
	ExecutionID string          `json:"executionId"`
	Algorithm   string          `json:"algorithm"`
	SealedAt    time.Time       `json:"sealedAt"`
	MerkleRoot  string          `json:"merkleRoot"`
	Items       []ManifestEntry `json:"items"`
}

// ManifestEntry describes one item of a sealed pack.
type ManifestEntry struct {
	Kind       string    `json:"kind"`
	CapturedAt time.Time `json:"capturedAt"`
	Digest     string    `json:"digest"`
	CID        string    `json:"cid"`
}

// Persist writes every item of the sealed pack plus its manifest to the
// store and returns the manifest along with the manifest's own CID. Item
// CIDs are computed by the store; the manifest records them so Get-by-CID
// round trips are possible later.
func Persist(s *Sealed, cas storage.CAS) (Manifest, cid.Cid, error) {
	m := Manifest{
		PackID:      s.ID(),
		ExecutionID: s.ExecutionID(),
		Algorithm:   digest.Algorithm,
		SealedAt:    s.SealedAt().UTC(),
		MerkleRoot:  s.Root().Hex(),
		Items:       make([]ManifestEntry, 0, s.Len()),
	}
	for i := 0; i < s.Len(); i++ {
		it, err := s.Item(i)
		if err != nil {
			return Manifest{}, cid.Undef, err
		}
		leaf, err := s.Leaf(i)
		if err != nil {
			return Manifest{}, cid.Undef, err
		}
		id, err := cas.Put(it.Bytes)
		if err != nil {
			return Manifest{}, cid.Undef, fmt.Errorf("evidence: store item %d: %w", i, err)
		}
		m.Items = append(m.Items, ManifestEntry{
			Kind:       it.Kind,
			CapturedAt: it.CapturedAt.UTC(),
			Digest:     leaf.Hex(),
			CID:        id.String(),
		})
	}

	b, err := json.Marshal(m)
	if err != nil {
		return Manifest{}, cid.Undef, fmt.Errorf("evidence: encode manifest: %w", err)
	}
	mid, err := cas.Put(b)
	if err != nil {
		return Manifest{}, cid.Undef, fmt.Errorf("evidence: store manifest: %w", err)
	}
	return m, mid, nil
}

// RecomputeRoot fetches every item named by the manifest from the store,
// hashes the bytes, and rebuilds the Merkle root. It does not consult the
// manifest's stored digests: the returned root reflects what the store holds
// right now.
func (m Manifest) RecomputeRoot(cas storage.CAS) (digest.Digest, error) {
	leaves := make([]digest.Digest, len(m.Items))
	for i, e := range m.Items {
		id, err := cid.Decode(e.CID)
		if err != nil {
			return digest.Digest{}, fmt.Errorf("evidence: item %d: %w", i, storage.ErrInvalidCID)
		}
		b, err := cas.Get(id)
		if err != nil {
			return digest.Digest{}, fmt.Errorf("evidence: fetch item %d: %w", i, err)
		}
		leaves[i] = digest.Sum(b)
	}
	return rootOf(leaves), nil
}

// Source resolves pack IDs to current Merkle roots during verification.
type Source interface {
	// Root returns the root recomputed from the evidence bytes as they exist
	// now, or ErrUnknownPack when the source has no such pack.
	Root(packID string) (digest.Digest, error)
}

// MapSource is an in-memory Source backed by pre-sealed packs.
type MapSource map[string]*Sealed

func (m MapSource) Root(packID string) (digest.Digest, error) {
	s, ok := m[packID]
	if !ok {
		return digest.Digest{}, ErrUnknownPack
	}
	// Recompute from item bytes so in-memory tampering is visible too.
	leaves := make([]digest.Digest, s.Len())
	for i := range leaves {
		it, err := s.Item(i)
		if err != nil {
			return digest.Digest{}, err
		}
		leaves[i] = digest.Sum(it.Bytes)
	}
	return rootOf(leaves), nil
}

// StoreSource resolves packs through manifests persisted in a CAS. Roots are
// always recomputed from the stored item bytes, never trusted from the
// manifest.
type StoreSource struct {
	CAS storage.CAS

	// Manifests maps pack ID to manifest CID.
	Manifests map[string]cid.Cid
}

func (s *StoreSource) Root(packID string) (digest.Digest, error) {
	mid, ok := s.Manifests[packID]
	if !ok {
		return digest.Digest{}, ErrUnknownPack
	}
	b, err := s.CAS.Get(mid)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("evidence: fetch manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return digest.Digest{}, fmt.Errorf("evidence: decode manifest: %w", err)
	}
	return m.RecomputeRoot(s.CAS)
}
