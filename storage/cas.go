package storage

import "github.com/ipfs/go-cid"

// CAS is the content-addressable store holding evidence artifact bytes and
// pack manifests.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable; evidence is write-once.
// - CIDs MUST be derived from the bytes written.
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
