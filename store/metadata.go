package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cyberpath/sentinel/crypto"
	"github.com/cyberpath/sentinel/storage"
)

// storeMetadata is the persisted catalog state in .store.json.
type storeMetadata struct {
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Hash      crypto.Algorithm `json:"hash_algorithm"`
	PublicKey string           `json:"public_key,omitempty"`
	Counters  counters         `json:"counters"`
}

// counters accumulate across the store's lifetime and survive reopens.
type counters struct {
	Inserts uint64 `json:"inserts"`
	Updates uint64 `json:"updates"`
	Deletes uint64 `json:"deletes"`
	Reads   uint64 `json:"reads"`
}

// collectionMetadata is the persisted per-collection state in
// data/<name>/.metadata.json.
type collectionMetadata struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Documents int       `json:"documents"`
}

func loadJSON(ctx context.Context, fs storage.Storage, key string, v any) (bool, error) {
	content, err := fs.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(content, v); err != nil {
		return false, err
	}
	return true, nil
}

func saveJSON(ctx context.Context, fs storage.Storage, key string, v any) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fs.Put(ctx, key, content)
}
