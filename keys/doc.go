// Package keys provides signing keys and signature primitives for the
// attestation engine.
//
// Stable:
//   - Pure, deterministic primitives: issuer-key formatting, role-seed
//     derivation, signing and verification.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). A local-first convenience,
//     not a long-term contract.
package keys
