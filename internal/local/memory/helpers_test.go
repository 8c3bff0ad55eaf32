package memory

import (
	"github.com/syntrixbase/localstore/internal/local/types"
	"github.com/syntrixbase/localstore/pkg/model"
)

// recordingDelegate captures reference events so tests can assert what the
// caches reported. RemoveTarget mirrors the real delegates: it routes back
// through the cache teardown.
type recordingDelegate struct {
	pins types.KeyContainer

	added           []model.DocumentKey
	removed         []model.DocumentKey
	mutationRemoved []model.DocumentKey
	removedTargets  []int32

	targetCache *TargetCache
}

func (d *recordingDelegate) SetInMemoryPins(pins types.KeyContainer) { d.pins = pins }

func (d *recordingDelegate) OnTransactionStarted() {}

func (d *recordingDelegate) OnTransactionCommitted(txn *types.Transaction) error { return nil }

func (d *recordingDelegate) AddReference(txn *types.Transaction, key model.DocumentKey) {
	d.added = append(d.added, key)
}

func (d *recordingDelegate) RemoveReference(txn *types.Transaction, key model.DocumentKey) {
	d.removed = append(d.removed, key)
}

func (d *recordingDelegate) RemoveMutationReference(txn *types.Transaction, key model.DocumentKey) {
	d.mutationRemoved = append(d.mutationRemoved, key)
}

func (d *recordingDelegate) RemoveTarget(txn *types.Transaction, td types.TargetData) {
	d.removedTargets = append(d.removedTargets, td.TargetID)
	if d.targetCache != nil {
		d.targetCache.RemoveTargetData(txn, td)
	}
}

func (d *recordingDelegate) UpdateLimboDocument(txn *types.Transaction, key model.DocumentKey) {}

func (d *recordingDelegate) DocumentSize(doc *model.MaybeDocument) int64 {
	return doc.EstimateSize()
}

var _ types.ReferenceDelegate = (*recordingDelegate)(nil)

// fixedSource resolves to a fixed delegate.
type fixedSource struct {
	delegate types.ReferenceDelegate
}

func (s *fixedSource) ReferenceDelegate() types.ReferenceDelegate { return s.delegate }

func newTestTxn(seq types.SequenceNumber) *types.Transaction {
	return types.NewTransaction("test", types.ReadWrite, seq)
}
