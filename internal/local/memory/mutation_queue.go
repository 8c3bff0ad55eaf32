package memory

import (
	"github.com/syntrixbase/localstore/internal/local/types"
	"github.com/syntrixbase/localstore/pkg/model"
)

// MutationQueue holds one user's pending local writes in order of creation.
// The cache layer only cares which keys the batches touch; the write
// payloads belong to the sync engine.
type MutationQueue struct {
	userID   string
	batches  []*model.MutationBatch
	delegate types.DelegateSource
}

// NewMutationQueue creates an empty queue for the user.
func NewMutationQueue(userID string, delegate types.DelegateSource) *MutationQueue {
	return &MutationQueue{userID: userID, delegate: delegate}
}

// UserID returns the id of the user the queue belongs to.
func (q *MutationQueue) UserID() string {
	return q.userID
}

// AddBatch appends a batch of pending writes.
func (q *MutationQueue) AddBatch(txn *types.Transaction, batch *model.MutationBatch) {
	q.batches = append(q.batches, batch)
}

// RemoveBatch drops a batch after acknowledgement or discard. Keys no
// longer touched by any remaining batch in this queue are reported to the
// reference delegate as released mutation references.
func (q *MutationQueue) RemoveBatch(txn *types.Transaction, batchID string) error {
	idx := -1
	for i, b := range q.batches {
		if b.ID == batchID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.ErrNotFound
	}

	removed := q.batches[idx]
	q.batches = append(q.batches[:idx], q.batches[idx+1:]...)

	delegate := q.delegate.ReferenceDelegate()
	for _, key := range removed.Keys {
		if !q.ContainsKey(key) {
			delegate.RemoveMutationReference(txn, key)
		}
	}
	return nil
}

// ContainsKey reports whether any pending batch touches key.
func (q *MutationQueue) ContainsKey(key model.DocumentKey) bool {
	for _, batch := range q.batches {
		for _, k := range batch.Keys {
			if k == key {
				return true
			}
		}
	}
	return false
}

// BatchCount returns the number of pending batches.
func (q *MutationQueue) BatchCount() int {
	return len(q.batches)
}

var _ types.MutationQueue = (*MutationQueue)(nil)
