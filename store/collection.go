package store

import (
	"context"
	stderrors "errors"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cyberpath/sentinel/document"
	"github.com/cyberpath/sentinel/errors"
	"github.com/cyberpath/sentinel/query"
	"github.com/cyberpath/sentinel/storage"
	"github.com/cyberpath/sentinel/value"
	"github.com/cyberpath/sentinel/wal"
)

// Collection is a named set of documents. Writes to the same id are
// serialized; writes to different ids proceed concurrently. Readers
// always observe fully written documents.
type Collection struct {
	name  string
	store *Store
	cache *lru.Cache[string, *document.Document]

	mu      sync.RWMutex
	ids     map[string]struct{}
	dropped bool

	locks sync.Map

	metaMu sync.Mutex
	meta   collectionMetadata
}

func openCollection(ctx context.Context, s *Store, name string) (*Collection, error) {
	cache, err := lru.New[string, *document.Document](s.opts.CacheSize)
	if err != nil {
		return nil, errors.Storage(err, "creating document cache")
	}
	c := &Collection{
		name:  name,
		store: s,
		cache: cache,
		ids:   make(map[string]struct{}),
	}

	keys, err := s.fs.List(ctx, path.Join(dataDir, name))
	if err != nil {
		return nil, errors.Storage(err, "scanning collection %s", name)
	}
	for _, key := range keys {
		base := path.Base(key)
		if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, docExt) {
			continue
		}
		c.ids[strings.TrimSuffix(base, docExt)] = struct{}{}
	}

	found, err := loadJSON(ctx, s.fs, c.metadataKey(), &c.meta)
	if err != nil {
		return nil, errors.Storage(err, "reading metadata for collection %s", name)
	}
	if !found {
		now := time.Now().UTC()
		c.meta = collectionMetadata{Name: name, CreatedAt: now, UpdatedAt: now, Documents: len(c.ids)}
		if err := saveJSON(ctx, s.fs, c.metadataKey(), &c.meta); err != nil {
			return nil, errors.Storage(err, "writing metadata for collection %s", name)
		}
	}
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) docKey(id string) string {
	return path.Join(dataDir, c.name, id+docExt)
}

func (c *Collection) deletedKey(id string) string {
	return path.Join(dataDir, c.name, deletedDir, id+docExt)
}

func (c *Collection) metadataKey() string {
	return path.Join(dataDir, c.name, collectionMetadataFile)
}

func (c *Collection) lockID(id string) func() {
	mu, _ := c.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (c *Collection) has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

func (c *Collection) isDropped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

func (c *Collection) walAppend(ctx context.Context, op wal.Op, id string, data []byte) error {
	if c.store.log == nil {
		return nil
	}
	if err := c.store.log.Append(ctx, op, c.name, id, data); err != nil {
		return errors.Storage(err, "logging %s of %s/%s", op, c.name, id)
	}
	return nil
}

// Insert creates a version-1 document under id. Inserting an existing
// id fails with a conflict; insert never overwrites.
func (c *Collection) Insert(ctx context.Context, id string, data value.Value) (*document.Document, error) {
	if err := validateDocumentID(id); err != nil {
		return nil, err
	}
	unlock := c.lockID(id)
	defer unlock()
	return c.insertLocked(ctx, id, data)
}

func (c *Collection) insertLocked(ctx context.Context, id string, data value.Value) (*document.Document, error) {
	if c.isDropped() {
		return nil, errors.CollectionNotFound(c.name)
	}
	if c.has(id) {
		return nil, errors.Conflict(c.name, id)
	}
	doc, err := document.New(id, data, c.store.suite)
	if err != nil {
		return nil, errors.Storage(err, "encoding %s/%s", c.name, id)
	}
	if err := c.writeDocument(ctx, wal.OpInsert, doc); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.ids[id] = struct{}{}
	c.mu.Unlock()
	c.cache.Add(id, doc)
	c.saveMetadata(ctx)
	c.store.emit(eventInsert, c.name)
	c.store.logger.Debug("document inserted", "collection", c.name, "id", id)
	return doc, nil
}

// Update merges data into the existing document and produces the next
// version. When both the stored data and data are mappings the update
// is a shallow merge; otherwise data replaces the stored value.
// Updating an absent id fails with not found.
func (c *Collection) Update(ctx context.Context, id string, data value.Value) (*document.Document, error) {
	if err := validateDocumentID(id); err != nil {
		return nil, err
	}
	unlock := c.lockID(id)
	defer unlock()
	return c.updateLocked(ctx, id, data)
}

func (c *Collection) updateLocked(ctx context.Context, id string, data value.Value) (*document.Document, error) {
	if c.isDropped() {
		return nil, errors.CollectionNotFound(c.name)
	}
	cur, ok, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NotFound(c.name, id)
	}
	next, err := cur.Next(value.Merge(cur.Data, data), c.store.suite)
	if err != nil {
		return nil, errors.Storage(err, "encoding %s/%s", c.name, id)
	}
	if err := c.writeDocument(ctx, wal.OpUpdate, next); err != nil {
		return nil, err
	}
	c.cache.Add(id, next)
	c.saveMetadata(ctx)
	c.store.emit(eventUpdate, c.name)
	c.store.logger.Debug("document updated", "collection", c.name, "id", id, "version", next.Version)
	return next, nil
}

// Upsert inserts when id is absent and updates when it is present.
// The boolean reports whether an insert occurred.
func (c *Collection) Upsert(ctx context.Context, id string, data value.Value) (*document.Document, bool, error) {
	if err := validateDocumentID(id); err != nil {
		return nil, false, err
	}
	unlock := c.lockID(id)
	defer unlock()
	if c.has(id) {
		doc, err := c.updateLocked(ctx, id, data)
		return doc, false, err
	}
	doc, err := c.insertLocked(ctx, id, data)
	return doc, true, err
}

// Delete soft-deletes the document: the record moves out of normal
// reads but stays on disk for recovery. Deleting an absent id is a
// no-op.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if err := validateDocumentID(id); err != nil {
		return err
	}
	unlock := c.lockID(id)
	defer unlock()
	if c.isDropped() {
		return errors.CollectionNotFound(c.name)
	}
	if !c.has(id) {
		return nil
	}
	if err := c.walAppend(ctx, wal.OpDelete, id, nil); err != nil {
		return err
	}
	err := c.store.fs.Rename(ctx, c.docKey(id), c.deletedKey(id))
	if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return errors.Storage(err, "deleting %s/%s", c.name, id)
	}
	c.mu.Lock()
	delete(c.ids, id)
	c.mu.Unlock()
	c.cache.Remove(id)
	c.saveMetadata(ctx)
	c.store.emit(eventDelete, c.name)
	c.store.logger.Debug("document deleted", "collection", c.name, "id", id)
	return nil
}

// Get returns the document under id. Absence is reported through the
// boolean, not an error.
func (c *Collection) Get(ctx context.Context, id string) (*document.Document, bool, error) {
	if err := validateDocumentID(id); err != nil {
		return nil, false, err
	}
	doc, ok, err := c.get(ctx, id)
	if err == nil && ok {
		c.store.emit(eventRead, c.name)
	}
	return doc, ok, err
}

func (c *Collection) get(ctx context.Context, id string) (*document.Document, bool, error) {
	if doc, ok := c.cache.Get(id); ok {
		return doc, true, nil
	}
	if !c.has(id) {
		return nil, false, nil
	}
	content, err := c.store.fs.Get(ctx, c.docKey(id))
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Storage(err, "reading %s/%s", c.name, id)
	}
	doc, err := document.Decode(content)
	if err != nil {
		return nil, false, errors.Storage(err, "decoding %s/%s", c.name, id)
	}
	ok, err := doc.VerifyHash(c.store.suite.Hash)
	if err != nil {
		return nil, false, errors.Storage(err, "hashing %s/%s", c.name, id)
	}
	if !ok {
		return nil, false, errors.Integrity(c.name, id)
	}
	c.cache.Add(id, doc)
	return doc, true, nil
}

// GetMany returns one slot per requested id, in order, with nil for
// absent ids. Reads run in parallel on the store's worker pool.
func (c *Collection) GetMany(ctx context.Context, ids []string) ([]*document.Document, error) {
	docs := make([]*document.Document, len(ids))
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		task := func() {
			defer wg.Done()
			doc, ok, err := c.get(ctx, id)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			if ok {
				docs[i] = doc
			}
		}
		if err := c.store.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	c.store.emit(eventRead, c.name)
	return docs, nil
}

// Count returns the number of live documents.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Pair is one id/data entry of a bulk insert.
type Pair struct {
	ID   string
	Data value.Value
}

// BulkInsert inserts every pair or none: if any id already exists, or
// appears twice in the batch, nothing is written and the conflict
// names the offending id.
func (c *Collection) BulkInsert(ctx context.Context, pairs []Pair) ([]*document.Document, error) {
	seen := make(map[string]struct{}, len(pairs))
	ids := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if err := validateDocumentID(p.ID); err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, errors.Conflict(c.name, p.ID)
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}

	// Locks are taken in sorted order so concurrent batches sharing
	// ids cannot deadlock.
	sort.Strings(ids)
	for _, id := range ids {
		defer c.lockID(id)()
	}

	if c.isDropped() {
		return nil, errors.CollectionNotFound(c.name)
	}
	for _, id := range ids {
		if c.has(id) {
			return nil, errors.Conflict(c.name, id)
		}
	}

	docs := make([]*document.Document, len(pairs))
	for i, p := range pairs {
		doc, err := document.New(p.ID, p.Data, c.store.suite)
		if err != nil {
			return nil, errors.Storage(err, "encoding %s/%s", c.name, p.ID)
		}
		docs[i] = doc
	}

	written := make([]string, 0, len(docs))
	for _, doc := range docs {
		if err := c.writeDocument(ctx, wal.OpInsert, doc); err != nil {
			for _, id := range written {
				c.store.fs.Delete(ctx, c.docKey(id))
			}
			return nil, err
		}
		written = append(written, doc.ID)
	}

	c.mu.Lock()
	for _, doc := range docs {
		c.ids[doc.ID] = struct{}{}
	}
	c.mu.Unlock()
	for _, doc := range docs {
		c.cache.Add(doc.ID, doc)
		c.store.emit(eventInsert, c.name)
	}
	c.saveMetadata(ctx)
	c.store.logger.Debug("bulk insert", "collection", c.name, "documents", len(docs))
	return docs, nil
}

// Query evaluates q against a snapshot of the collection. The result
// carries the matched documents in order plus the total match count
// before pagination.
func (c *Collection) Query(ctx context.Context, q query.Query) (*query.Result, error) {
	docs, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	c.store.emit(eventRead, c.name)
	return query.Execute(q, docs)
}

// Deleted returns the ids of soft-deleted documents, sorted.
func (c *Collection) Deleted(ctx context.Context) ([]string, error) {
	keys, err := c.store.fs.List(ctx, path.Join(dataDir, c.name, deletedDir))
	if err != nil {
		return nil, errors.Storage(err, "scanning deleted documents of %s", c.name)
	}
	var ids []string
	for _, key := range keys {
		base := path.Base(key)
		if strings.HasSuffix(base, docExt) {
			ids = append(ids, strings.TrimSuffix(base, docExt))
		}
	}
	return ids, nil
}

// Restore moves a soft-deleted document back into normal reads,
// keeping its version history. Restoring onto a live id is a conflict.
func (c *Collection) Restore(ctx context.Context, id string) (*document.Document, error) {
	if err := validateDocumentID(id); err != nil {
		return nil, err
	}
	unlock := c.lockID(id)
	defer unlock()
	if c.isDropped() {
		return nil, errors.CollectionNotFound(c.name)
	}
	if c.has(id) {
		return nil, errors.Conflict(c.name, id)
	}
	err := c.store.fs.Rename(ctx, c.deletedKey(id), c.docKey(id))
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.NotFound(c.name, id)
	}
	if err != nil {
		return nil, errors.Storage(err, "restoring %s/%s", c.name, id)
	}
	c.mu.Lock()
	c.ids[id] = struct{}{}
	c.mu.Unlock()
	c.saveMetadata(ctx)
	doc, _, err := c.get(ctx, id)
	return doc, err
}

// Verify re-reads every live document from disk, checking its stored
// hash and, when present, its signature. It returns the number of
// documents verified.
func (c *Collection) Verify(ctx context.Context) (int, error) {
	ids := c.idList()
	pub := c.store.PublicKey()
	for _, id := range ids {
		content, err := c.store.fs.Get(ctx, c.docKey(id))
		if stderrors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, errors.Storage(err, "reading %s/%s", c.name, id)
		}
		doc, err := document.Decode(content)
		if err != nil {
			return 0, errors.Storage(err, "decoding %s/%s", c.name, id)
		}
		ok, err := doc.VerifyHash(c.store.suite.Hash)
		if err != nil {
			return 0, errors.Storage(err, "hashing %s/%s", c.name, id)
		}
		if !ok {
			return 0, errors.Integrity(c.name, id)
		}
		if doc.Signature != "" && pub != nil {
			ok, err := doc.VerifySignature(pub)
			if err != nil {
				return 0, errors.Storage(err, "verifying signature of %s/%s", c.name, id)
			}
			if !ok {
				return 0, errors.Integrity(c.name, id)
			}
		}
	}
	return len(ids), nil
}

func (c *Collection) idList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// snapshot loads every live document through the worker pool. The
// returned slice is ordered by id.
func (c *Collection) snapshot(ctx context.Context) ([]*document.Document, error) {
	ids := c.idList()
	docs := make([]*document.Document, len(ids))
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		task := func() {
			defer wg.Done()
			doc, ok, err := c.get(ctx, id)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			if ok {
				docs[i] = doc
			}
		}
		if err := c.store.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	live := docs[:0]
	for _, doc := range docs {
		if doc != nil {
			live = append(live, doc)
		}
	}
	return live, nil
}

func (c *Collection) writeDocument(ctx context.Context, op wal.Op, doc *document.Document) error {
	encoded, err := doc.Encode()
	if err != nil {
		return errors.Storage(err, "encoding %s/%s", c.name, doc.ID)
	}
	if err := c.walAppend(ctx, op, doc.ID, encoded); err != nil {
		return err
	}
	if err := c.store.fs.Put(ctx, c.docKey(doc.ID), encoded); err != nil {
		return errors.Storage(err, "writing %s/%s", c.name, doc.ID)
	}
	return nil
}

func (c *Collection) saveMetadata(ctx context.Context) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	c.meta.Documents = c.Count()
	c.meta.UpdatedAt = time.Now().UTC()
	if err := saveJSON(ctx, c.store.fs, c.metadataKey(), &c.meta); err != nil {
		c.store.logger.Error("writing collection metadata", "collection", c.name, "error", err)
	}
}
