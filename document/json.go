package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cyberpath/sentinel/value"
)

// persisted is the on-disk form of a document. The layout is stable so
// recovery tooling can inspect files directly.
type persisted struct {
	ID        string      `json:"id"`
	Version   uint64      `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Hash      string      `json:"hash"`
	Signature string      `json:"signature"`
	Data      value.Value `json:"data"`
}

// MarshalJSON encodes the persisted form of d.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(persisted{
		ID:        d.ID,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Hash:      d.Hash,
		Signature: d.Signature,
		Data:      d.Data,
	})
}

// UnmarshalJSON decodes the persisted form of d.
func (d *Document) UnmarshalJSON(data []byte) error {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("persisted document has no id")
	}
	if p.Version == 0 {
		return fmt.Errorf("persisted document %q has no version", p.ID)
	}
	d.ID = p.ID
	d.Version = p.Version
	d.CreatedAt = p.CreatedAt
	d.UpdatedAt = p.UpdatedAt
	d.Hash = p.Hash
	d.Signature = p.Signature
	d.Data = p.Data
	return nil
}

// Encode returns the indented persisted form written to document
// files.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Decode parses a persisted document.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
