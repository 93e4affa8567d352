package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// KDF selects the passphrase key-derivation function.
type KDF string

const (
	// Argon2 is the default derivation function (argon2id).
	Argon2 KDF = "argon2id"
	// PBKDF2 selects PBKDF2-HMAC-SHA256.
	PBKDF2 KDF = "pbkdf2"
)

const (
	// SaltSize is the salt length in bytes.
	SaltSize = 16
	// KeySize is the derived key length in bytes.
	KeySize = 32

	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	pbkdf2Iters   = 600_000
)

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// DeriveKey derives a 32-byte key from passphrase and salt with the
// default function. The same passphrase and salt always derive the
// same key.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, KeySize)
}

// DeriveKeyWith is DeriveKey with an explicit derivation function.
func DeriveKeyWith(kdf KDF, passphrase string, salt []byte) ([]byte, error) {
	switch kdf {
	case Argon2, "":
		return DeriveKey(passphrase, salt), nil
	case PBKDF2:
		return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iters, KeySize, sha256.New), nil
	default:
		return nil, fmt.Errorf("unknown key derivation function %q", kdf)
	}
}
