// Package crypto provides the content-integrity primitives used by the
// store: deterministic content hashing, ed25519 signing, passphrase key
// derivation, and key-at-rest encryption.
package crypto

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	"github.com/cyberpath/sentinel/value"
)

// Algorithm selects the content hash function.
type Algorithm string

const (
	// Blake3 is the default content hash.
	Blake3 Algorithm = "blake3"
	// SHA3 selects SHA3-256.
	SHA3 Algorithm = "sha3-256"
)

// HashValue returns the hex digest of the canonical serialization of v
// using the default algorithm. Structurally equal values always hash
// identically regardless of construction order.
func HashValue(v value.Value) string {
	return HashBytes(v.Canonical())
}

// HashValueWith is HashValue with an explicit algorithm.
func HashValueWith(alg Algorithm, v value.Value) (string, error) {
	return HashBytesWith(alg, v.Canonical())
}

// HashBytes returns the hex blake3 digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashBytesWith returns the hex digest of data using the given
// algorithm.
func HashBytesWith(alg Algorithm, data []byte) (string, error) {
	switch alg {
	case Blake3, "":
		return HashBytes(data), nil
	case SHA3:
		sum := sha3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", alg)
	}
}
