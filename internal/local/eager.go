package local

import (
	"log/slog"

	"github.com/syntrixbase/localstore/internal/local/types"
	"github.com/syntrixbase/localstore/pkg/model"
)

// EagerDelegate implements the eager collection policy: a document is
// evicted the moment every reference source has released it, synchronously
// as part of the releasing transaction's commit.
type EagerDelegate struct {
	persistence  *Persistence
	inMemoryPins types.KeyContainer

	// orphaned is the per-transaction scratch set of keys whose last known
	// reference vanished this transaction. It exists only between
	// transaction start and commit.
	orphaned map[model.DocumentKey]struct{}
}

func newEagerDelegate(p *Persistence) *EagerDelegate {
	return &EagerDelegate{persistence: p}
}

// SetInMemoryPins hands the delegate the caller-owned pin set.
func (d *EagerDelegate) SetInMemoryPins(pins types.KeyContainer) {
	d.inMemoryPins = pins
}

// orphans returns the scratch set. Touching it outside an active
// transaction is a caller bug, not a runtime condition.
func (d *EagerDelegate) orphans() map[model.DocumentKey]struct{} {
	if d.orphaned == nil {
		panic("orphaned document set accessed outside of an active transaction: programming error")
	}
	return d.orphaned
}

// OnTransactionStarted allocates a fresh orphan-candidate scratch set.
func (d *EagerDelegate) OnTransactionStarted() {
	d.orphaned = make(map[model.DocumentKey]struct{})
}

// OnTransactionCommitted evicts every orphan candidate that no reference
// source still justifies. All removals are staged in a change buffer and
// applied atomically; the scratch set is consumed.
func (d *EagerDelegate) OnTransactionCommitted(txn *types.Transaction) error {
	orphaned := d.orphans()
	d.orphaned = nil

	buffer := d.persistence.DocumentCache().NewChangeBuffer()
	evicted := 0
	for key := range orphaned {
		if !d.isReferenced(txn, key) {
			buffer.RemoveEntry(key)
			evicted++
		}
	}
	buffer.Apply(txn)

	if evicted > 0 {
		slog.Debug("Eagerly evicted unreferenced documents",
			"action", txn.Action(),
			"sequence", txn.SequenceNumber(),
			"evicted", evicted,
		)
	}
	return nil
}

// AddReference cancels any eviction candidacy the key picked up earlier in
// the same transaction.
func (d *EagerDelegate) AddReference(txn *types.Transaction, key model.DocumentKey) {
	delete(d.orphans(), key)
}

// RemoveReference marks the key as an eviction candidate.
func (d *EagerDelegate) RemoveReference(txn *types.Transaction, key model.DocumentKey) {
	d.orphans()[key] = struct{}{}
}

// RemoveMutationReference marks the key as an eviction candidate.
func (d *EagerDelegate) RemoveMutationReference(txn *types.Transaction, key model.DocumentKey) {
	d.orphans()[key] = struct{}{}
}

// RemoveTarget tears the target down. Releasing its matching keys routes
// back through RemoveReference, so they become eviction candidates before
// the target's metadata is dropped.
func (d *EagerDelegate) RemoveTarget(txn *types.Transaction, td types.TargetData) {
	d.persistence.TargetCache().RemoveTargetData(txn, td)
}

// UpdateLimboDocument recomputes the key's candidacy from its current
// reachability.
func (d *EagerDelegate) UpdateLimboDocument(txn *types.Transaction, key model.DocumentKey) {
	if d.isReferenced(txn, key) {
		delete(d.orphans(), key)
	} else {
		d.orphans()[key] = struct{}{}
	}
}

// DocumentSize is always zero: no byte budget applies under eager
// collection.
func (d *EagerDelegate) DocumentSize(doc *model.MaybeDocument) int64 {
	return 0
}

// isReferenced is the short-circuit OR over the reference sources that can
// still justify residency at commit time.
func (d *EagerDelegate) isReferenced(txn *types.Transaction, key model.DocumentKey) bool {
	if d.persistence.TargetCache().ContainsKey(key) {
		return true
	}
	if d.persistence.MutationQueuesContainKey(txn, key) {
		return true
	}
	return d.inMemoryPins != nil && d.inMemoryPins.ContainsKey(key)
}

var _ types.ReferenceDelegate = (*EagerDelegate)(nil)
