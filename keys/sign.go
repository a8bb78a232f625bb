package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Supported algorithm identifiers, as they appear in signature blocks and
// issuer-key strings.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

// DigestFor hashes message with the named algorithm.
// hashAlg must be one of: sha256, sha512, sha3-256.
func DigestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// SignEd25519 returns an ed25519 signature over hash(message).
func SignEd25519(message []byte, hashAlg string, privateKey ed25519.PrivateKey) ([]byte, error) {
	digest, err := DigestFor(hashAlg, message)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(privateKey, digest), nil
}

// VerifyEd25519 reports whether sig is a valid ed25519 signature over
// hash(message).
func VerifyEd25519(message []byte, hashAlg string, pub ed25519.PublicKey, sig []byte) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("ed25519 signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}
	digest, err := DigestFor(hashAlg, message)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, digest, sig), nil
}

// SignDilithium3 returns a dilithium3 signature over hash(message).
func SignDilithium3(message []byte, hashAlg string, privateKey *mode3.PrivateKey) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("missing private key")
	}
	digest, err := DigestFor(hashAlg, message)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(privateKey, digest, sig)
	return sig, nil
}

// VerifyDilithium3 reports whether sig is a valid dilithium3 signature over
// hash(message). pub holds the packed public key bytes.
func VerifyDilithium3(message []byte, hashAlg string, pub []byte, sig []byte) (bool, error) {
	var pk mode3.PublicKey
	if err := pk.UnmarshalBinary(pub); err != nil {
		return false, fmt.Errorf("invalid dilithium3 public key: %w", err)
	}
	if len(sig) != mode3.SignatureSize {
		return false, fmt.Errorf("dilithium3 signature must be %d bytes, got %d", mode3.SignatureSize, len(sig))
	}
	digest, err := DigestFor(hashAlg, message)
	if err != nil {
		return false, err
	}
	return mode3.Verify(&pk, digest, sig), nil
}

// GenerateDilithium3Keypair returns a new Dilithium3 keypair.
func GenerateDilithium3Keypair(rand io.Reader) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	return mode3.GenerateKey(rand)
}

// Fingerprint returns the key fingerprint recorded in signature blocks:
// "sha256:" + hex(sha256(public key bytes)).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return "sha256:" + hex.EncodeToString(sum[:])
}
