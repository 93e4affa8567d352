// Package wal implements the store's write-ahead log: an append-only
// JSON-line file of checksummed entries written before each filesystem
// mutation, replayable after a crash.
package wal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cyberpath/sentinel/crypto"
)

// Op is the kind of mutation an entry records.
type Op string

const (
	OpInsert     Op = "insert"
	OpUpdate     Op = "update"
	OpDelete     Op = "delete"
	OpCheckpoint Op = "checkpoint"
)

// Entry is a single log record. Data holds the full persisted document
// for inserts and updates so replay is idempotent.
type Entry struct {
	ID         string          `json:"entry_id"`
	Seq        uint64          `json:"seq"`
	Op         Op              `json:"op"`
	Collection string          `json:"collection"`
	DocID      string          `json:"doc_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Time       time.Time       `json:"ts"`
	Checksum   string          `json:"checksum"`
}

func newEntry(seq uint64, op Op, collection, docID string, data []byte) Entry {
	e := Entry{
		ID:         uuid.NewString(),
		Seq:        seq,
		Op:         op,
		Collection: collection,
		DocID:      docID,
		Data:       compactData(data),
		Time:       time.Now().UTC(),
	}
	e.Checksum = e.computeChecksum()
	return e
}

// compactData normalizes the payload to compact JSON. Marshal compacts
// RawMessage fields on the way to disk, so the checksum must cover the
// form that survives the round trip.
func compactData(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return data
	}
	return buf.Bytes()
}

func (e Entry) computeChecksum() string {
	body := fmt.Sprintf("%s|%d|%s|%s|%s|%s|%s",
		e.ID, e.Seq, e.Op, e.Collection, e.DocID, e.Data, e.Time.Format(time.RFC3339Nano))
	return crypto.HashBytes([]byte(body))
}

// Valid reports whether the stored checksum matches the entry body.
func (e Entry) Valid() bool {
	return e.Checksum == e.computeChecksum()
}
