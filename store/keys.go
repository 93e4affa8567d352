package store

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"

	"github.com/cyberpath/sentinel/crypto"
	"github.com/cyberpath/sentinel/errors"
	"github.com/cyberpath/sentinel/storage"
)

// signingKeyFile is the persisted form of the store's ed25519 seed.
// With a passphrase the seed is encrypted under a derived key;
// without one it is stored in the clear.
type signingKeyFile struct {
	PublicKey string        `json:"public_key"`
	Seed      string        `json:"seed,omitempty"`
	Encrypted string        `json:"encrypted,omitempty"`
	Salt      string        `json:"salt,omitempty"`
	KDF       crypto.KDF    `json:"kdf,omitempty"`
	Cipher    crypto.Cipher `json:"cipher,omitempty"`
}

func loadOrCreateSigningKey(ctx context.Context, fs storage.Storage, opts Options) (ed25519.PrivateKey, error) {
	var file signingKeyFile
	found, err := loadJSON(ctx, fs, signingKeyPath, &file)
	if err != nil {
		return nil, errors.Storage(err, "reading signing key")
	}
	if !found {
		return createSigningKey(ctx, fs, opts)
	}
	seed, err := openSigningKey(file, opts.Passphrase)
	if err != nil {
		return nil, err
	}
	key, err := crypto.SigningKeyFromSeed(seed)
	if err != nil {
		return nil, errors.Auth(err, "signing key is malformed")
	}
	pub := hex.EncodeToString(key.Public().(ed25519.PublicKey))
	if file.PublicKey != "" && file.PublicKey != pub {
		return nil, errors.Auth(nil, "signing key does not match stored public key")
	}
	return key, nil
}

func openSigningKey(file signingKeyFile, passphrase string) ([]byte, error) {
	if file.Encrypted == "" {
		seed, err := hex.DecodeString(file.Seed)
		if err != nil {
			return nil, errors.Auth(err, "signing key seed is malformed")
		}
		return seed, nil
	}
	if passphrase == "" {
		return nil, errors.Auth(nil, "store requires a passphrase")
	}
	salt, err := hex.DecodeString(file.Salt)
	if err != nil {
		return nil, errors.Auth(err, "signing key salt is malformed")
	}
	key, err := crypto.DeriveKeyWith(file.KDF, passphrase, salt)
	if err != nil {
		return nil, errors.Auth(err, "deriving key")
	}
	seed, err := crypto.DecryptWith(file.Cipher, file.Encrypted, key)
	if err != nil {
		return nil, errors.Auth(err, "incorrect passphrase")
	}
	return seed, nil
}

func createSigningKey(ctx context.Context, fs storage.Storage, opts Options) (ed25519.PrivateKey, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Storage(err, "generating signing key")
	}
	key, err := crypto.SigningKeyFromSeed(seed)
	if err != nil {
		return nil, errors.Storage(err, "generating signing key")
	}
	file := signingKeyFile{
		PublicKey: hex.EncodeToString(key.Public().(ed25519.PublicKey)),
	}
	if opts.Passphrase == "" {
		file.Seed = hex.EncodeToString(seed)
	} else {
		salt, err := crypto.NewSalt()
		if err != nil {
			return nil, errors.Storage(err, "generating salt")
		}
		derived, err := crypto.DeriveKeyWith(opts.KDF, opts.Passphrase, salt)
		if err != nil {
			return nil, errors.Auth(err, "deriving key")
		}
		enc, err := crypto.EncryptWith(opts.Cipher, seed, derived)
		if err != nil {
			return nil, errors.Storage(err, "encrypting signing key")
		}
		file.Encrypted = enc
		file.Salt = hex.EncodeToString(salt)
		file.KDF = opts.KDF
		file.Cipher = opts.Cipher
	}
	if err := saveJSON(ctx, fs, signingKeyPath, &file); err != nil {
		return nil, errors.Storage(err, "writing signing key")
	}
	return key, nil
}
