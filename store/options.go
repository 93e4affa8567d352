package store

import (
	"io"
	"log/slog"
	"runtime"

	"github.com/cyberpath/sentinel/crypto"
	"github.com/cyberpath/sentinel/storage"
)

// Options configures a store at open time. The zero value opens an
// unprotected store with the default hash, cipher, and pool sizes.
type Options struct {
	// Passphrase protects the signing key at rest. Required when the
	// store was created with one.
	Passphrase string
	// Hash selects the content hash algorithm for new stores. Reopened
	// stores keep the algorithm they were created with.
	Hash crypto.Algorithm
	// KDF selects the passphrase derivation function.
	KDF crypto.KDF
	// Cipher selects the key-at-rest cipher.
	Cipher crypto.Cipher
	// CacheSize is the per-collection document cache capacity.
	CacheSize int
	// PoolSize bounds the worker pool used for parallel reads.
	PoolSize int
	// DisableWAL turns off write-ahead logging.
	DisableWAL bool
	// Storage overrides the default file backend rooted at the store
	// directory. The write-ahead log is always file-backed.
	Storage storage.Storage
	// Logger receives structured operation logs. Defaults to a
	// discarding logger.
	Logger *slog.Logger
}

const (
	defaultCacheSize = 256
)

func (o Options) withDefaults() Options {
	if o.Hash == "" {
		o.Hash = crypto.Blake3
	}
	if o.KDF == "" {
		o.KDF = crypto.Argon2
	}
	if o.Cipher == "" {
		o.Cipher = crypto.XChaCha20
	}
	if o.CacheSize <= 0 {
		o.CacheSize = defaultCacheSize
	}
	if o.PoolSize <= 0 {
		o.PoolSize = runtime.NumCPU() * 2
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
