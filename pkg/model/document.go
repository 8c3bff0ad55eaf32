package model

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/zeebo/blake3"
)

// DocumentKey identifies a document by its full pathname. The key is
// immutable: the id is derived from the path once and never changes.
type DocumentKey struct {
	path string
}

// NewDocumentKey creates a key for the given full pathname.
func NewDocumentKey(path string) DocumentKey {
	return DocumentKey{path: path}
}

// Path returns the full pathname of the document.
func (k DocumentKey) Path() string {
	return k.path
}

// ID returns the compact identifier for the key, 128-bit BLAKE3 of the
// full pathname as hex.
func (k DocumentKey) ID() string {
	hash := blake3.Sum256([]byte(k.path))
	return hex.EncodeToString(hash[:16])
}

// Collection returns the parent collection of the document.
func (k DocumentKey) Collection() string {
	idx := strings.LastIndex(k.path, "/")
	if idx < 0 {
		return ""
	}
	return k.path[:idx]
}

func (k DocumentKey) String() string {
	return k.path
}

// MaybeDocument is either a cached document or a marker recording that the
// document is known not to exist. The absence marker carries a version so
// the mirror can distinguish "never seen" from "confirmed missing".
type MaybeDocument struct {
	Key     DocumentKey            `json:"key"`
	Version int64                  `json:"version"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Missing bool                   `json:"missing,omitempty"`
}

// NewDocument creates a found document.
func NewDocument(key DocumentKey, version int64, data map[string]interface{}) *MaybeDocument {
	return &MaybeDocument{Key: key, Version: version, Data: data}
}

// NewMissingDocument creates an absence marker for the key.
func NewMissingDocument(key DocumentKey, version int64) *MaybeDocument {
	return &MaybeDocument{Key: key, Version: version, Missing: true}
}

// EstimateSize returns the approximate in-memory footprint of the document
// in bytes: the key path length plus a serialized estimate of the payload.
func (d *MaybeDocument) EstimateSize() int64 {
	size := int64(len(d.Key.Path()))
	if d.Missing || d.Data == nil {
		return size
	}
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return size
	}
	return size + int64(len(raw))
}
