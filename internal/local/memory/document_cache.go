// Package memory provides the in-memory implementations of the persistence
// collaborators: the document cache, the target cache, per-user mutation
// queues and the caller-owned reference set. All state lives on the heap of
// the client process; nothing survives a restart.
//
// The structures are not internally locked. Every access runs under the
// persistence coordinator's transaction lock, which serializes whole
// transactions including their commit hooks.
package memory

import (
	"github.com/syntrixbase/localstore/internal/local/types"
	"github.com/syntrixbase/localstore/pkg/model"
)

// DocumentCache is the partial in-memory mirror of server-held documents.
type DocumentCache struct {
	docs     map[model.DocumentKey]*model.MaybeDocument
	delegate types.DelegateSource
}

// NewDocumentCache creates an empty document cache. The delegate source is
// resolved lazily so the cache can be built before the policy is bound.
func NewDocumentCache(delegate types.DelegateSource) *DocumentCache {
	return &DocumentCache{
		docs:     make(map[model.DocumentKey]*model.MaybeDocument),
		delegate: delegate,
	}
}

// Get returns the cached entry for key, or nil if the cache holds nothing.
func (c *DocumentCache) Get(key model.DocumentKey) *model.MaybeDocument {
	return c.docs[key]
}

// Contains reports whether the cache holds an entry for key.
func (c *DocumentCache) Contains(key model.DocumentKey) bool {
	_, ok := c.docs[key]
	return ok
}

// ForEachKey visits every key in the cache. Returning false stops the walk.
func (c *DocumentCache) ForEachKey(fn func(key model.DocumentKey) bool) {
	for key := range c.docs {
		if !fn(key) {
			return
		}
	}
}

// Size returns the byte footprint of the cache as measured by the given
// policy.
func (c *DocumentCache) Size(delegate types.ReferenceDelegate) int64 {
	var total int64
	for _, doc := range c.docs {
		total += delegate.DocumentSize(doc)
	}
	return total
}

// Count returns the number of cached entries.
func (c *DocumentCache) Count() int {
	return len(c.docs)
}

// NewChangeBuffer returns an empty staged-write buffer against this cache.
func (c *DocumentCache) NewChangeBuffer() types.ChangeBuffer {
	return &changeBuffer{
		cache:   c,
		changes: make(map[model.DocumentKey]*model.MaybeDocument),
	}
}

var _ types.DocumentCache = (*DocumentCache)(nil)

// changeBuffer stages writes so a transaction's additions and removals land
// atomically. A nil value marks a staged removal.
type changeBuffer struct {
	cache   *DocumentCache
	changes map[model.DocumentKey]*model.MaybeDocument
	applied bool
}

func (b *changeBuffer) AddEntry(doc *model.MaybeDocument) {
	if b.applied {
		panic("change buffer used after apply: programming error")
	}
	b.changes[doc.Key] = doc
}

func (b *changeBuffer) RemoveEntry(key model.DocumentKey) {
	if b.applied {
		panic("change buffer used after apply: programming error")
	}
	b.changes[key] = nil
}

// Apply commits every staged change to the backing cache. The buffer is
// dead afterwards; reusing it panics.
func (b *changeBuffer) Apply(txn *types.Transaction) {
	if b.applied {
		panic("change buffer applied twice: programming error")
	}
	b.applied = true
	for key, doc := range b.changes {
		if doc == nil {
			delete(b.cache.docs, key)
		} else {
			b.cache.docs[key] = doc
		}
	}
}
