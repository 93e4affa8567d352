// Package document implements the versioned, timestamped, hashed
// record that wraps a schema-less payload inside a collection.
package document

import (
	"crypto/ed25519"
	"time"

	"github.com/cyberpath/sentinel/crypto"
	"github.com/cyberpath/sentinel/value"
)

// Document is a single versioned record. Documents are immutable once
// published: mutations produce a new record via Next.
type Document struct {
	ID        string
	Data      value.Value
	Version   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
	Hash      string
	Signature string
}

// New creates a version-1 document from data, computing its content
// hash and, when the suite carries a key, its signature.
func New(id string, data value.Value, suite crypto.Suite) (*Document, error) {
	now := time.Now().UTC()
	hash, err := suite.Digest(data)
	if err != nil {
		return nil, err
	}
	sig, err := suite.Sign(hash)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:        id,
		Data:      data,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Hash:      hash,
		Signature: sig,
	}, nil
}

// Next returns the successor record holding data: version incremented
// by one, UpdatedAt refreshed, hash and signature recomputed. CreatedAt
// is carried over unchanged. The receiver is not modified.
func (d *Document) Next(data value.Value, suite crypto.Suite) (*Document, error) {
	hash, err := suite.Digest(data)
	if err != nil {
		return nil, err
	}
	sig, err := suite.Sign(hash)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:        d.ID,
		Data:      data,
		Version:   d.Version + 1,
		CreatedAt: d.CreatedAt,
		UpdatedAt: time.Now().UTC(),
		Hash:      hash,
		Signature: sig,
	}, nil
}

// VerifyHash recomputes the content hash of Data and reports whether
// it matches the stored hash.
func (d *Document) VerifyHash(alg crypto.Algorithm) (bool, error) {
	hash, err := crypto.HashValueWith(alg, d.Data)
	if err != nil {
		return false, err
	}
	return hash == d.Hash, nil
}

// VerifySignature reports whether the stored signature is valid for
// the stored hash under pub. Unsigned documents never verify.
func (d *Document) VerifySignature(pub ed25519.PublicKey) (bool, error) {
	if d.Signature == "" {
		return false, nil
	}
	return crypto.VerifyDigest(d.Hash, d.Signature, pub)
}

// Project returns a copy of the document whose data is restricted to
// the given field paths. Metadata fields are unaffected.
func (d *Document) Project(paths []string) *Document {
	out := *d
	out.Data = d.Data.Project(paths)
	return &out
}
