package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// PublicKey is a parsed issuer key.
type PublicKey struct {
	// Alg is AlgEd25519 or AlgDilithium3.
	Alg string

	// Bytes holds the raw (packed) public key.
	Bytes []byte
}

// String re-encodes the key in issuer-key form: "<alg>:<base64>".
func (k PublicKey) String() string {
	return k.Alg + ":" + base64.StdEncoding.EncodeToString(k.Bytes)
}

// Fingerprint returns the key's fingerprint string.
func (k PublicKey) Fingerprint() string { return Fingerprint(k.Bytes) }

// IssuerKeyFromPublicKey encodes an Ed25519 public key into the issuer-key string.
func IssuerKeyFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(pub), nil
}

// ParseIssuerKey parses an issuer-key string.
// Supported encodings:
//   - ed25519:<base64>
//   - dilithium3:<base64>
func ParseIssuerKey(issuer string) (PublicKey, error) {
	if issuer == "" {
		return PublicKey{}, fmt.Errorf("empty issuer key")
	}
	alg, enc, ok := strings.Cut(issuer, ":")
	if !ok {
		return PublicKey{}, fmt.Errorf("invalid issuer key encoding")
	}
	pub, err := decodeBase64(enc)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid issuer key base64: %w", err)
	}

	switch alg {
	case AlgEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return PublicKey{}, fmt.Errorf("invalid ed25519 public key length")
		}
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return PublicKey{}, fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
	default:
		return PublicKey{}, fmt.Errorf("unsupported issuer key encoding %q", alg)
	}
	return PublicKey{Alg: alg, Bytes: pub}, nil
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
