package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/localstore/internal/local/memory"
	"github.com/syntrixbase/localstore/internal/local/types"
	"github.com/syntrixbase/localstore/pkg/model"
)

// seedDocument puts a document in the cache without creating any reference
// to it.
func seedDocument(t *testing.T, p *Persistence, key model.DocumentKey) {
	t.Helper()
	require.NoError(t, p.Run(context.Background(), "seed document", types.ReadWrite, func(txn *types.Transaction) error {
		buffer := p.DocumentCache().NewChangeBuffer()
		buffer.AddEntry(model.NewDocument(key, 1, map[string]interface{}{"seeded": true}))
		buffer.Apply(txn)
		return nil
	}))
}

func TestEagerEvictsAfterLastMutationReferenceRemoved(t *testing.T) {
	p := openEager(t)
	key := model.NewDocumentKey("rooms/alpha")
	seedDocument(t, p, key)

	queue := p.MutationQueue("alice").(*memory.MutationQueue)
	batch := model.NewMutationBatch("alice", key)

	require.NoError(t, p.Run(context.Background(), "enqueue write", types.ReadWrite, func(txn *types.Transaction) error {
		queue.AddBatch(txn, batch)
		return nil
	}))
	assert.True(t, p.DocumentCache().Contains(key))

	require.NoError(t, p.Run(context.Background(), "acknowledge write", types.ReadWrite, func(txn *types.Transaction) error {
		return queue.RemoveBatch(txn, batch.ID)
	}))

	// The mutation was the document's only justification.
	assert.False(t, p.DocumentCache().Contains(key))
}

func TestEagerCancelOnAdd(t *testing.T) {
	p := openEager(t)
	key := model.NewDocumentKey("rooms/alpha")
	seedDocument(t, p, key)

	require.NoError(t, p.Run(context.Background(), "remove then re-add", types.ReadWrite, func(txn *types.Transaction) error {
		delegate := p.ReferenceDelegate()
		delegate.RemoveReference(txn, key)
		delegate.AddReference(txn, key)
		return nil
	}))

	assert.True(t, p.DocumentCache().Contains(key))
}

func TestEagerKeepsTargetReferencedDocument(t *testing.T) {
	p := openEager(t)
	key := model.NewDocumentKey("rooms/alpha")
	seedDocument(t, p, key)

	queue := p.MutationQueue("alice").(*memory.MutationQueue)
	batch := model.NewMutationBatch("alice", key)

	require.NoError(t, p.Run(context.Background(), "target and mutation", types.ReadWrite, func(txn *types.Transaction) error {
		require.NoError(t, p.TargetCache().UpdateTargetData(txn, types.TargetData{
			TargetID:       1,
			Query:          model.Query{Collection: "rooms"},
			SequenceNumber: txn.SequenceNumber(),
		}))
		p.TargetCache().AddMatchingKeys(txn, 1, key)
		queue.AddBatch(txn, batch)
		return nil
	}))

	require.NoError(t, p.Run(context.Background(), "acknowledge write", types.ReadWrite, func(txn *types.Transaction) error {
		return queue.RemoveBatch(txn, batch.ID)
	}))

	// Still matched by the active target.
	assert.True(t, p.DocumentCache().Contains(key))
}

func TestEagerKeepsPinnedDocument(t *testing.T) {
	p := openEager(t)
	key := model.NewDocumentKey("rooms/alpha")
	seedDocument(t, p, key)

	pins := memory.NewReferenceSet()
	pins.AddReference(key, "listener-1")
	p.ReferenceDelegate().SetInMemoryPins(pins)

	require.NoError(t, p.Run(context.Background(), "release", types.ReadWrite, func(txn *types.Transaction) error {
		p.ReferenceDelegate().RemoveReference(txn, key)
		return nil
	}))
	assert.True(t, p.DocumentCache().Contains(key))

	// Caller drops the pin between transactions; the next release wins.
	pins.RemoveReference(key, "listener-1")
	require.NoError(t, p.Run(context.Background(), "release again", types.ReadWrite, func(txn *types.Transaction) error {
		p.ReferenceDelegate().RemoveReference(txn, key)
		return nil
	}))
	assert.False(t, p.DocumentCache().Contains(key))
}

func TestEagerTargetRemovalEvictsOnlyUnreferenced(t *testing.T) {
	p := openEager(t)
	alpha := model.NewDocumentKey("rooms/alpha")
	beta := model.NewDocumentKey("rooms/beta")
	seedDocument(t, p, alpha)
	seedDocument(t, p, beta)

	pins := memory.NewReferenceSet()
	pins.AddReference(beta, "listener-1")
	p.ReferenceDelegate().SetInMemoryPins(pins)

	td := types.TargetData{TargetID: 1, Query: model.Query{Collection: "rooms"}}
	require.NoError(t, p.Run(context.Background(), "listen", types.ReadWrite, func(txn *types.Transaction) error {
		require.NoError(t, p.TargetCache().UpdateTargetData(txn, td.WithSequenceNumber(txn.SequenceNumber())))
		p.TargetCache().AddMatchingKeys(txn, 1, alpha, beta)
		return nil
	}))

	require.NoError(t, p.Run(context.Background(), "unlisten", types.ReadWrite, func(txn *types.Transaction) error {
		p.ReferenceDelegate().RemoveTarget(txn, td)
		return nil
	}))

	assert.False(t, p.DocumentCache().Contains(alpha))
	assert.True(t, p.DocumentCache().Contains(beta), "pinned document survives target teardown")
	assert.Equal(t, 0, p.TargetCache().TargetCount())
}

func TestEagerUpdateLimboDocument(t *testing.T) {
	p := openEager(t)
	limbo := model.NewDocumentKey("rooms/limbo")
	pinned := model.NewDocumentKey("rooms/pinned")
	seedDocument(t, p, limbo)
	seedDocument(t, p, pinned)

	pins := memory.NewReferenceSet()
	pins.AddReference(pinned, "listener-1")
	p.ReferenceDelegate().SetInMemoryPins(pins)

	require.NoError(t, p.Run(context.Background(), "resolve limbo", types.ReadWrite, func(txn *types.Transaction) error {
		p.ReferenceDelegate().UpdateLimboDocument(txn, limbo)
		p.ReferenceDelegate().UpdateLimboDocument(txn, pinned)
		return nil
	}))

	assert.False(t, p.DocumentCache().Contains(limbo))
	assert.True(t, p.DocumentCache().Contains(pinned))
}

func TestEagerOrphanAccessOutsideTransactionPanics(t *testing.T) {
	p := openEager(t)
	delegate := p.ReferenceDelegate().(*EagerDelegate)
	key := model.NewDocumentKey("rooms/alpha")

	txn := types.NewTransaction("rogue", types.ReadWrite, 99)
	assert.Panics(t, func() { delegate.RemoveReference(txn, key) })
	assert.Panics(t, func() { delegate.AddReference(txn, key) })
	assert.Panics(t, func() { _ = delegate.OnTransactionCommitted(txn) })
}

func TestEagerDocumentSizeIsZero(t *testing.T) {
	p := openEager(t)
	doc := model.NewDocument(model.NewDocumentKey("rooms/alpha"), 1, map[string]interface{}{"big": "payload"})
	assert.Zero(t, p.ReferenceDelegate().DocumentSize(doc))
}
