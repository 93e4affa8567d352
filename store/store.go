// Package store implements the persistent document store: a catalog of
// collections backed by a directory tree, with content-hashed and
// optionally signed documents, write-ahead logging, and per-id write
// serialization.
package store

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	stderrors "errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/cyberpath/sentinel/crypto"
	"github.com/cyberpath/sentinel/errors"
	"github.com/cyberpath/sentinel/storage"
	"github.com/cyberpath/sentinel/wal"
)

const (
	storeMetadataFile      = ".store.json"
	collectionMetadataFile = ".metadata.json"
	dataDir                = "data"
	deletedDir             = ".deleted"
	walDir                 = ".wal"
	keysDir                = ".keys"
	docExt                 = ".json"
)

var signingKeyPath = path.Join(dataDir, keysDir, "signing_key.json")

// Store is the top-level catalog of collections rooted at a directory.
type Store struct {
	root   string
	fs     storage.Storage
	suite  crypto.Suite
	opts   Options
	log    *wal.Log
	pool   *ants.Pool
	logger *slog.Logger

	mu          sync.Mutex
	collections map[string]*Collection

	metaMu sync.Mutex
	meta   storeMetadata

	events  chan event
	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// Open opens or initializes a store rooted at dir. Reopening uses the
// hash algorithm the store was created with; a passphrase-protected
// store rejects opens with a missing or incorrect passphrase.
func Open(ctx context.Context, dir string, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	info, err := os.Stat(dir)
	if err == nil && !info.IsDir() {
		return nil, errors.Storage(nil, "%s is not a directory", dir)
	}
	fs := opts.Storage
	if fs == nil {
		fs, err = storage.NewFile(dir)
		if err != nil {
			return nil, errors.Storage(err, "initializing store at %s", dir)
		}
	}

	var meta storeMetadata
	found, err := loadJSON(ctx, fs, storeMetadataFile, &meta)
	if err != nil {
		return nil, errors.Storage(err, "reading store metadata")
	}
	if found {
		// Content hashes on disk were computed with the original
		// algorithm; switching would fail every integrity check.
		opts.Hash = meta.Hash
	} else {
		now := time.Now().UTC()
		meta = storeMetadata{CreatedAt: now, UpdatedAt: now, Hash: opts.Hash}
	}

	key, err := loadOrCreateSigningKey(ctx, fs, opts)
	if err != nil {
		return nil, err
	}
	meta.PublicKey = hex.EncodeToString(key.Public().(ed25519.PublicKey))
	if err := saveJSON(ctx, fs, storeMetadataFile, &meta); err != nil {
		return nil, errors.Storage(err, "writing store metadata")
	}

	var log *wal.Log
	if !opts.DisableWAL {
		log, err = wal.Open(filepath.Join(dir, walDir))
		if err != nil {
			return nil, errors.Storage(err, "opening write-ahead log")
		}
	}

	pool, err := ants.NewPool(opts.PoolSize)
	if err != nil {
		return nil, errors.Storage(err, "starting worker pool")
	}

	s := &Store{
		root:        dir,
		fs:          fs,
		suite:       crypto.Suite{Hash: opts.Hash, Key: key},
		opts:        opts,
		log:         log,
		pool:        pool,
		logger:      opts.Logger,
		collections: make(map[string]*Collection),
		meta:        meta,
		events:      make(chan event, 128),
	}
	s.wg.Add(1)
	go s.run()

	s.logger.Info("store opened", "root", dir, "hash", opts.Hash, "wal", !opts.DisableWAL)
	return s, nil
}

// Collection returns the named collection, creating it on first
// access. The name must be non-empty and must not start with a dot or
// contain path separators.
func (s *Store) Collection(ctx context.Context, name string) (*Collection, error) {
	if err := validateCollectionName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := openCollection(ctx, s, name)
	if err != nil {
		return nil, err
	}
	s.collections[name] = c
	return c, nil
}

// ListCollections returns the names of all collections present on
// disk, sorted. Internal directories are not collections.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	dirs, err := s.fs.Dirs(ctx, dataDir)
	if err != nil {
		return nil, errors.Storage(err, "listing collections")
	}
	var names []string
	for _, name := range dirs {
		if strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// DeleteCollection removes the collection and all of its documents,
// including soft-deleted ones. Deleting an absent collection is a
// no-op.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		c.mu.Lock()
		c.dropped = true
		c.ids = nil
		c.cache.Purge()
		c.mu.Unlock()
		delete(s.collections, name)
	}
	if err := s.fs.RemoveAll(ctx, path.Join(dataDir, name)); err != nil {
		return errors.Storage(err, "deleting collection %s", name)
	}
	s.logger.Info("collection deleted", "collection", name)
	return nil
}

// Stats reports catalog-level counts and lifetime operation counters.
type Stats struct {
	Collections int
	Documents   int
	Inserts     uint64
	Updates     uint64
	Deletes     uint64
	Reads       uint64
}

// Stats returns current store statistics.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	names, err := s.ListCollections(ctx)
	if err != nil {
		return Stats{}, err
	}
	var docs int
	for _, name := range names {
		c, err := s.Collection(ctx, name)
		if err != nil {
			return Stats{}, err
		}
		docs += c.Count()
	}
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return Stats{
		Collections: len(names),
		Documents:   docs,
		Inserts:     s.meta.Counters.Inserts,
		Updates:     s.meta.Counters.Updates,
		Deletes:     s.meta.Counters.Deletes,
		Reads:       s.meta.Counters.Reads,
	}, nil
}

// PublicKey returns the store's document-signing public key.
func (s *Store) PublicKey() ed25519.PublicKey {
	return s.suite.PublicKey()
}

// VerifyLog re-checksums every write-ahead log entry and returns the
// number verified.
func (s *Store) VerifyLog() (int, error) {
	if s.log == nil {
		return 0, errors.Invalid("write-ahead log is disabled")
	}
	return s.log.Verify()
}

// CheckpointLog marks all logged operations as applied.
func (s *Store) CheckpointLog(ctx context.Context) error {
	if s.log == nil {
		return errors.Invalid("write-ahead log is disabled")
	}
	return s.log.Checkpoint(ctx, "")
}

// ReplayLog re-applies every logged operation since the last
// checkpoint and then checkpoints. Entries carry the full persisted
// document, so replay after a crash between log append and file write
// is idempotent. It returns the number of entries applied.
func (s *Store) ReplayLog(ctx context.Context) (int, error) {
	if s.log == nil {
		return 0, errors.Invalid("write-ahead log is disabled")
	}
	entries, err := s.log.Entries()
	if err != nil {
		return 0, errors.Storage(err, "reading write-ahead log")
	}
	for _, e := range entries {
		if !e.Valid() {
			return 0, errors.Storage(nil, "log entry %d failed checksum verification", e.Seq)
		}
		key := path.Join(dataDir, e.Collection, e.DocID+docExt)
		switch e.Op {
		case wal.OpInsert, wal.OpUpdate:
			if err := s.fs.Put(ctx, key, e.Data); err != nil {
				return 0, errors.Storage(err, "replaying %s of %s/%s", e.Op, e.Collection, e.DocID)
			}
		case wal.OpDelete:
			deleted := path.Join(dataDir, e.Collection, deletedDir, e.DocID+docExt)
			err := s.fs.Rename(ctx, key, deleted)
			if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
				return 0, errors.Storage(err, "replaying delete of %s/%s", e.Collection, e.DocID)
			}
		}
	}
	// Collection handles opened before replay hold stale id indexes.
	s.mu.Lock()
	s.collections = make(map[string]*Collection)
	s.mu.Unlock()
	if err := s.log.Checkpoint(ctx, ""); err != nil {
		return 0, errors.Storage(err, "checkpointing after replay")
	}
	return len(entries), nil
}

// Close flushes pending counter updates and releases the worker pool
// and write-ahead log. The store must not be used after Close.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.closeMu.Unlock()

	s.wg.Wait()
	s.pool.Release()

	var errs []error
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("store closed", "root", s.root)
	return stderrors.Join(errs...)
}

func validateCollectionName(name string) error {
	if name == "" {
		return errors.Invalid("collection name must not be empty")
	}
	if strings.HasPrefix(name, ".") {
		return errors.Invalid("collection name %q must not start with a dot", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return errors.Invalid("collection name %q must not contain path separators", name)
	}
	return nil
}

func validateDocumentID(id string) error {
	if id == "" {
		return errors.Invalid("document id must not be empty")
	}
	if strings.HasPrefix(id, ".") {
		return errors.Invalid("document id %q must not start with a dot", id)
	}
	if strings.ContainsAny(id, "/\\") {
		return errors.Invalid("document id %q must not contain path separators", id)
	}
	return nil
}
