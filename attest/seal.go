package attest

import (
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"skuldbot.io/attest/keys"
)

// Signature is the signature block attached at seal time. The algorithm
// identifiers are recorded per signature so old records remain verifiable
// after a default change.
type Signature struct {
	SignedAt       time.Time `json:"signedAt"`
	Algorithm      string    `json:"algorithm"`
	HashAlgorithm  string    `json:"hashAlgorithm"`
	KeyFingerprint string    `json:"keyFingerprint"`
	Signature      []byte    `json:"signature"`
}

// SealedRecord is a signed, immutable attestation. The record and signature
// are reachable only as copies; there is no way to mutate a sealed record
// through its API, so tampering requires going through serialization, where
// the verifier catches it.
type SealedRecord struct {
	record Record
	sig    Signature
}

// Record returns a deep copy of the sealed record's contents.
func (s *SealedRecord) Record() Record { return cloneRecord(s.record) }

// Signature returns a copy of the signature block.
func (s *SealedRecord) Signature() Signature {
	sig := s.sig
	sig.Signature = append([]byte(nil), s.sig.Signature...)
	return sig
}

type sealedWire struct {
	Record    Record    `json:"record"`
	Signature Signature `json:"signature"`
}

func (s *SealedRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(sealedWire{Record: s.record, Signature: s.sig})
}

func (s *SealedRecord) UnmarshalJSON(b []byte) error {
	var w sealedWire
	if err := json.Unmarshal(b, &w); err != nil {
		return wrapError(KindCanonical, "ATT-CANON-002", "cannot deserialize sealed record", err)
	}
	s.record = w.Record
	s.sig = w.Signature
	return nil
}

// SealEd25519 signs the record with an ed25519 key and returns the sealed
// form. The signature covers sha256 of the record's canonical serialization:
// every field of the record, not just the evidence roots.
func SealEd25519(r Record, priv ed25519.PrivateKey, at time.Time) (*SealedRecord, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, newError(KindCrypto, "ATT-CRYPTO-101", "invalid ed25519 private key length")
	}
	msg, err := SignableBytes(r)
	if err != nil {
		return nil, err
	}
	sig, err := keys.SignEd25519(msg, DefaultHashAlg, priv)
	if err != nil {
		return nil, wrapError(KindCrypto, "ATT-CRYPTO-102", "signing failed", err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &SealedRecord{
		record: cloneRecord(r),
		sig: Signature{
			SignedAt:       at.UTC(),
			Algorithm:      keys.AlgEd25519,
			HashAlgorithm:  DefaultHashAlg,
			KeyFingerprint: keys.Fingerprint(pub),
			Signature:      sig,
		},
	}, nil
}

// SealDilithium3 signs the record with a Dilithium3 key. Deployments that
// need post-quantum signatures use this in place of SealEd25519; verification
// dispatches on the recorded algorithm.
func SealDilithium3(r Record, priv *mode3.PrivateKey, at time.Time) (*SealedRecord, error) {
	if priv == nil {
		return nil, newError(KindCrypto, "ATT-CRYPTO-103", "missing dilithium3 private key")
	}
	msg, err := SignableBytes(r)
	if err != nil {
		return nil, err
	}
	sig, err := keys.SignDilithium3(msg, DefaultHashAlg, priv)
	if err != nil {
		return nil, wrapError(KindCrypto, "ATT-CRYPTO-104", "signing failed", err)
	}
	pub, err := priv.Public().(*mode3.PublicKey).MarshalBinary()
	if err != nil {
		return nil, wrapError(KindCrypto, "ATT-CRYPTO-105", "cannot encode public key", err)
	}
	return &SealedRecord{
		record: cloneRecord(r),
		sig: Signature{
			SignedAt:       at.UTC(),
			Algorithm:      keys.AlgDilithium3,
			HashAlgorithm:  DefaultHashAlg,
			KeyFingerprint: keys.Fingerprint(pub),
			Signature:      sig,
		},
	}, nil
}
