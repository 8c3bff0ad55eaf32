package local

import (
	"log/slog"

	"github.com/syntrixbase/localstore/internal/local/types"
	"github.com/syntrixbase/localstore/pkg/model"
)

// LruDelegate implements the deferred collection policy: dereference events
// only record when a key last lost a reference, and an externally driven
// collector reclaims bounded amounts of data later through the sweep
// protocol below.
type LruDelegate struct {
	persistence  *Persistence
	inMemoryPins types.KeyContainer

	// orphanedSequenceNumbers maps each key to the sequence number of its
	// most recent reference or dereference event. Entries survive across
	// transactions until a sweep physically deletes the document.
	orphanedSequenceNumbers map[model.DocumentKey]types.SequenceNumber
}

func newLruDelegate(p *Persistence) *LruDelegate {
	return &LruDelegate{
		persistence:             p,
		orphanedSequenceNumbers: make(map[model.DocumentKey]types.SequenceNumber),
	}
}

// SetInMemoryPins hands the delegate the caller-owned pin set.
func (d *LruDelegate) SetInMemoryPins(pins types.KeyContainer) {
	d.inMemoryPins = pins
}

func (d *LruDelegate) OnTransactionStarted() {}

func (d *LruDelegate) OnTransactionCommitted(txn *types.Transaction) error {
	return nil
}

// mark overwrites the key's event timestamp with the current transaction's
// sequence number. Presence of an entry does not imply the key is orphaned;
// reachability is re-derived at sweep time.
func (d *LruDelegate) mark(txn *types.Transaction, key model.DocumentKey) {
	d.orphanedSequenceNumbers[key] = txn.SequenceNumber()
}

func (d *LruDelegate) AddReference(txn *types.Transaction, key model.DocumentKey) {
	d.mark(txn, key)
}

func (d *LruDelegate) RemoveReference(txn *types.Transaction, key model.DocumentKey) {
	d.mark(txn, key)
}

func (d *LruDelegate) RemoveMutationReference(txn *types.Transaction, key model.DocumentKey) {
	d.mark(txn, key)
}

// RemoveTarget tears the target down. Its matching keys are released
// through RemoveReference, stamping their orphan timestamps, before the
// metadata is dropped.
func (d *LruDelegate) RemoveTarget(txn *types.Transaction, td types.TargetData) {
	d.persistence.TargetCache().RemoveTargetData(txn, td)
}

func (d *LruDelegate) UpdateLimboDocument(txn *types.Transaction, key model.DocumentKey) {
	d.mark(txn, key)
}

// DocumentSize estimates the document's footprint: key length plus a
// serialized payload estimate.
func (d *LruDelegate) DocumentSize(doc *model.MaybeDocument) int64 {
	return doc.EstimateSize()
}

// IsPinned reports whether the key may not be reclaimed by a sweep with the
// given upper bound. The checks run in a fixed order and stop at the first
// hit: any mutation queue, the in-memory pins, the target cache, and
// finally an orphan timestamp newer than the upper bound.
func (d *LruDelegate) IsPinned(txn *types.Transaction, key model.DocumentKey, upperBound types.SequenceNumber) bool {
	if d.persistence.MutationQueuesContainKey(txn, key) {
		return true
	}
	if d.inMemoryPins != nil && d.inMemoryPins.ContainsKey(key) {
		return true
	}
	if d.persistence.TargetCache().ContainsKey(key) {
		return true
	}
	if seq, ok := d.orphanedSequenceNumbers[key]; ok && seq > upperBound {
		return true
	}
	return false
}

// isCurrentlyPinned is IsPinned without the timestamp clause: reachability
// through live reference sources only.
func (d *LruDelegate) isCurrentlyPinned(txn *types.Transaction, key model.DocumentKey) bool {
	return d.IsPinned(txn, key, types.SequenceNumber(1<<62))
}

// ForEachTarget visits every active target on behalf of the collector.
func (d *LruDelegate) ForEachTarget(txn *types.Transaction, fn func(td types.TargetData)) {
	d.persistence.TargetCache().ForEachTarget(fn)
}

// SequenceNumberCount sizes the collection budget: active targets plus
// orphaned, not currently pinned document entries.
func (d *LruDelegate) SequenceNumberCount(txn *types.Transaction) int {
	count := d.persistence.TargetCache().TargetCount()
	d.ForEachOrphanedDocumentSequenceNumber(txn, func(types.SequenceNumber) {
		count++
	})
	return count
}

// ForEachOrphanedDocumentSequenceNumber yields the event timestamp of every
// orphaned key, skipping keys that are currently pinned.
func (d *LruDelegate) ForEachOrphanedDocumentSequenceNumber(txn *types.Transaction, fn func(seq types.SequenceNumber)) {
	for key, seq := range d.orphanedSequenceNumbers {
		if !d.isCurrentlyPinned(txn, key) {
			fn(seq)
		}
	}
}

// RemoveTargets removes every target with a last-used sequence number at
// most upperBound, excluding ids in activeTargetIDs. Returns the number
// removed.
func (d *LruDelegate) RemoveTargets(txn *types.Transaction, upperBound types.SequenceNumber, activeTargetIDs map[int32]struct{}) int {
	return d.persistence.TargetCache().RemoveTargets(txn, upperBound, activeTargetIDs)
}

// RemoveOrphanedDocuments scans the full document cache and deletes every
// key that is not pinned at the upper bound, along with its orphan entry.
// Returns the number of documents removed.
func (d *LruDelegate) RemoveOrphanedDocuments(txn *types.Transaction, upperBound types.SequenceNumber) int {
	cache := d.persistence.DocumentCache()
	buffer := cache.NewChangeBuffer()

	var removed []model.DocumentKey
	cache.ForEachKey(func(key model.DocumentKey) bool {
		if !d.IsPinned(txn, key, upperBound) {
			buffer.RemoveEntry(key)
			removed = append(removed, key)
		}
		return true
	})
	buffer.Apply(txn)

	for _, key := range removed {
		delete(d.orphanedSequenceNumbers, key)
	}

	if len(removed) > 0 {
		slog.Debug("Removed orphaned documents",
			"upperBound", upperBound,
			"removed", len(removed),
		)
	}
	return len(removed)
}

// CacheSize returns the byte footprint of the document cache under this
// policy's size estimate.
func (d *LruDelegate) CacheSize(txn *types.Transaction) int64 {
	return d.persistence.DocumentCache().Size(d)
}

// OrphanedDocumentCount returns the number of orphan entries currently
// tracked, pinned or not.
func (d *LruDelegate) OrphanedDocumentCount() int {
	return len(d.orphanedSequenceNumbers)
}

var _ types.ReferenceDelegate = (*LruDelegate)(nil)
