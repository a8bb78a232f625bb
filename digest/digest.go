// Package digest provides the fixed, versioned content-hash primitives used
// by evidence packs and attestation records.
//
// The algorithm identifier is embedded in every record that carries a digest,
// so records sealed today remain verifiable if the default ever changes.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Algorithm is the versioned identifier of the hash function used for
// evidence digests and Merkle nodes.
const Algorithm = "sha256"

// Size is the byte length of a Digest.
const Size = sha256.Size

var ErrLength = errors.New("digest: wrong length")

// Digest is a fixed-length SHA-256 content hash.
type Digest [Size]byte

// Sum returns the digest of data.
func Sum(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// Concat returns the digest of left || right. This is the Merkle parent rule.
func Concat(left, right Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(left[:])
	_, _ = h.Write(right[:])
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

func (d Digest) String() string { return Algorithm + ":" + d.Hex() }

// Parse decodes a bare hex digest. Wrong-length input is rejected, never
// truncated or padded.
func Parse(s string) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("digest: invalid hex: %w", err)
	}
	return FromBytes(b)
}

// FromBytes converts raw bytes to a Digest, enforcing the fixed length.
func FromBytes(b []byte) (Digest, error) {
	if len(b) != Size {
		return Digest{}, fmt.Errorf("%w: got %d bytes, want %d", ErrLength, len(b), Size)
	}
	var out Digest
	copy(out[:], b)
	return out, nil
}

// ContentCID returns a CIDv1 string (raw multicodec + sha2-256 multihash) for
// evidence bytes. Evidence items are keyed by this identifier in storage.
func ContentCID(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1
		// length this is unreachable.
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// ContentCIDv1 returns the CIDv1 (raw + sha2-256) for data.
func ContentCIDv1(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}
