package crypto

import (
	"crypto/ed25519"

	"github.com/cyberpath/sentinel/value"
)

// Suite bundles the hash algorithm and the optional signing key a
// store was opened with. The zero value hashes with the default
// algorithm and produces unsigned documents.
type Suite struct {
	Hash Algorithm
	Key  ed25519.PrivateKey
}

// Digest returns the content digest of v under the suite's algorithm.
func (s Suite) Digest(v value.Value) (string, error) {
	return HashValueWith(s.Hash, v)
}

// Sign signs a digest with the suite's key, or returns an empty
// signature when no key is configured.
func (s Suite) Sign(digest string) (string, error) {
	if s.Key == nil {
		return "", nil
	}
	return SignDigest(digest, s.Key)
}

// PublicKey returns the verifying key, or nil when unsigned.
func (s Suite) PublicKey() ed25519.PublicKey {
	if s.Key == nil {
		return nil
	}
	return s.Key.Public().(ed25519.PublicKey)
}
