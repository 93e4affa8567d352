// Package sentinel is a filesystem-backed document database. Documents
// are schema-less JSON trees wrapped in versioned, content-hashed, and
// optionally signed records, organized into named collections with
// declarative query and aggregation support.
package sentinel

import (
	"context"
	"crypto/ed25519"

	"github.com/cyberpath/sentinel/crypto"
	"github.com/cyberpath/sentinel/store"
	"github.com/cyberpath/sentinel/value"
)

// Options configures a store at open time.
type Options = store.Options

// Open opens or initializes a store rooted at dir.
func Open(ctx context.Context, dir string, opts Options) (*store.Store, error) {
	return store.Open(ctx, dir, opts)
}

// Hash returns the deterministic content digest of v. Structurally
// equal values always produce the same digest.
func Hash(v value.Value) string {
	return crypto.HashValue(v)
}

// Sign signs a digest with an ed25519 private key.
func Sign(digest string, key ed25519.PrivateKey) (string, error) {
	return crypto.SignDigest(digest, key)
}

// Verify reports whether signature is a valid signature of digest
// under the given public key. Mismatched digests, corrupted
// signatures, and wrong keys report false; only malformed key material
// errors.
func Verify(digest, signature string, key ed25519.PublicKey) (bool, error) {
	return crypto.VerifyDigest(digest, signature, key)
}
