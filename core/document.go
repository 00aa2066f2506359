package core

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// Fields holds a document payload. Values are whatever the configured codec
// round-trips: strings, bools, numbers, nested maps and slices.
type Fields = map[string]any

// Metadata is maintained by the engine for every document.
type Metadata struct {
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Document is a keyed, serializable record. Within one snapshot a key maps
// to exactly one document.
type Document struct {
	Key    string
	Fields Fields
	Meta   Metadata
}

// NewKey returns a generated document key. Keys are unique per collection;
// callers may also supply their own non-empty keys.
func NewKey() string {
	return uuid.NewString()
}

// KeyFromContent derives a stable, content-addressed key from raw bytes.
// The same content always yields the same key.
func KeyFromContent(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
