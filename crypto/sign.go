package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateKey returns a fresh ed25519 keypair.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// SigningKeyFromSeed rebuilds a private key from its 32-byte seed.
func SigningKeyFromSeed(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// SignDigest signs a digest string and returns the hex-encoded
// signature. Signing the same digest with the same key is
// deterministic.
func SignDigest(digest string, priv ed25519.PrivateKey) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("malformed private key: %d bytes", len(priv))
	}
	sig := ed25519.Sign(priv, []byte(digest))
	return hex.EncodeToString(sig), nil
}

// VerifyDigest reports whether signature is a valid hex-encoded
// ed25519 signature of digest under pub. A mismatched digest, a
// corrupted or truncated signature, or a signature from another key
// all return false; only malformed key material is an error.
func VerifyDigest(digest, signature string, pub ed25519.PublicKey) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("malformed public key: %d bytes", len(pub))
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(pub, []byte(digest), sig), nil
}
