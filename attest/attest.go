// Package attest assembles, seals, and verifies compliance attestation
// records.
//
// A record is built as a plain value (Record), sealed exactly once into a
// SealedRecord, and later verified by any party holding the issuer's public
// key. Sealed records expose copies only: post-seal mutation is a compile
// error, not a runtime check.
package attest

import (
	"encoding/json"
	"time"

	"skuldbot.io/attest/control"
	"skuldbot.io/attest/evidence"
	"skuldbot.io/attest/scoring"
)

// Versioned algorithm identifiers embedded in every signature block. Old
// records stay verifiable after an algorithm change because the identifiers
// travel with the record.
const (
	FormatVersion  = "1"
	DefaultHashAlg = "sha256"
)

// Metadata identifies what an attestation is about and who produced it.
type Metadata struct {
	AttestationID string            `json:"attestationId"`
	Framework     control.Framework `json:"frameworkId"`
	Organization  string            `json:"organization"`
	Subject       string            `json:"subject"`
	GeneratedBy   string            `json:"generatedBy"`
	GeneratedAt   time.Time         `json:"generatedAt"`
}

// PackReference is a weak reference to an evidence pack: enough to detect if
// the pack's bytes change later, without owning the pack's lifecycle.
type PackReference struct {
	PackID      string `json:"packId"`
	MerkleRoot  string `json:"merkleRoot"`
	ItemCount   int    `json:"itemCount"`
	Valid       bool   `json:"valid"`
	ManifestCID string `json:"manifestCid,omitempty"`
}

// PackRef summarizes a sealed evidence pack for embedding in a record. The
// validity flag records whether the pack's bytes still matched its root at
// build time.
func PackRef(s *evidence.Sealed) PackReference {
	return PackReference{
		PackID:     s.ID(),
		MerkleRoot: s.Root().Hex(),
		ItemCount:  s.Len(),
		Valid:      s.Recompute(),
	}
}

// Record is an unsealed attestation. Everything in it is covered by the
// signature once sealed; field order here is the canonical serialization
// order and must not change.
type Record struct {
	Version            string                  `json:"version"`
	Metadata           Metadata                `json:"metadata"`
	Summary            scoring.Summary         `json:"summary"`
	ControlsByCategory []control.CategoryGroup `json:"controlsByCategory"`
	EvidenceReferences []PackReference         `json:"evidenceReferences"`
	ExecutiveSummary   string                  `json:"executiveSummary"`
	Recommendations    []string                `json:"recommendations"`
}

// SignableBytes returns the canonical serialization of the record: the bytes
// the signature covers. Identical records always produce identical bytes;
// the record holds no maps, so encoding order is fixed by the struct.
func SignableBytes(r Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, wrapError(KindCanonical, "ATT-CANON-001", "cannot serialize record", err)
	}
	return b, nil
}

func cloneRecord(r Record) Record {
	out := r
	out.ControlsByCategory = make([]control.CategoryGroup, len(r.ControlsByCategory))
	for i, g := range r.ControlsByCategory {
		out.ControlsByCategory[i] = control.CategoryGroup{
			Category: g.Category,
			Controls: append([]control.Evaluation(nil), g.Controls...),
		}
		for j, e := range out.ControlsByCategory[i].Controls {
			e.EvidenceReferences = append([]string(nil), e.EvidenceReferences...)
			out.ControlsByCategory[i].Controls[j] = e
		}
	}
	out.EvidenceReferences = append([]PackReference(nil), r.EvidenceReferences...)
	out.Recommendations = append([]string(nil), r.Recommendations...)
	return out
}
