// Package types defines the shared types and collaborator contracts of the
// local persistence layer. The concrete memory-backed implementations live
// in internal/local/memory; the coordinator and GC policies in
// internal/local only speak to these interfaces.
package types

import (
	"github.com/syntrixbase/localstore/pkg/model"
)

// SequenceNumber is the logical timestamp of the persistence layer. One is
// allocated per transaction and they strictly increase.
type SequenceNumber int64

// SequenceNumberInvalid sorts before every valid sequence number.
const SequenceNumberInvalid SequenceNumber = -1

// TransactionMode documents the intent of a transaction. The memory build
// carries it but does not branch on it; a durable implementation would map
// it to the backing store's transaction modes.
type TransactionMode string

const (
	ReadOnly  TransactionMode = "readonly"
	ReadWrite TransactionMode = "readwrite"
)

// Transaction tags a single run against the persistence layer with its
// sequence number. It is not transactional in the ACID sense: there is no
// rollback, it is only the carrier of the logical clock and of post-commit
// listeners.
type Transaction struct {
	action    string
	mode      TransactionMode
	seq       SequenceNumber
	committed []func()
}

// NewTransaction creates a transaction tagged with the given sequence number.
func NewTransaction(action string, mode TransactionMode, seq SequenceNumber) *Transaction {
	return &Transaction{action: action, mode: mode, seq: seq}
}

// Action returns the caller-supplied label for the transaction.
func (t *Transaction) Action() string { return t.action }

// Mode returns the declared transaction mode.
func (t *Transaction) Mode() TransactionMode { return t.mode }

// SequenceNumber returns the sequence number assigned to this transaction.
func (t *Transaction) SequenceNumber() SequenceNumber { return t.seq }

// OnCommitted registers fn to run strictly after the transaction has
// committed, including the policy commit hook. Listeners must not start
// another transaction.
func (t *Transaction) OnCommitted(fn func()) {
	t.committed = append(t.committed, fn)
}

// NotifyCommitted fires the post-commit listeners. Called by the
// coordinator once the result of the transaction is available.
func (t *Transaction) NotifyCommitted() {
	for _, fn := range t.committed {
		fn()
	}
}

// TargetData is the metadata this layer tracks for one live query
// subscription.
type TargetData struct {
	// TargetID identifies the subscription.
	TargetID int32

	// Query describes the documents the target matches.
	Query model.Query

	// SequenceNumber is the sequence number of the last transaction that
	// used this target.
	SequenceNumber SequenceNumber
}

// WithSequenceNumber returns a copy of the target data marked as last used
// at seq.
func (td TargetData) WithSequenceNumber(seq SequenceNumber) TargetData {
	td.SequenceNumber = seq
	return td
}

// KeyContainer answers membership queries for document keys. Mutation
// queues and the caller-owned pin set both satisfy it.
type KeyContainer interface {
	ContainsKey(key model.DocumentKey) bool
}

// MutationQueue is the per-user record of pending local writes. This layer
// only ever asks it membership questions; the queue's state is owned by the
// sync engine above.
type MutationQueue interface {
	KeyContainer
}

// ChangeBuffer stages document cache writes so a transaction's removals and
// updates land atomically at commit.
type ChangeBuffer interface {
	// AddEntry stages an insert or overwrite of the document.
	AddEntry(doc *model.MaybeDocument)

	// RemoveEntry stages the removal of the key.
	RemoveEntry(key model.DocumentKey)

	// Apply commits all staged changes to the backing cache. The buffer
	// must not be used afterwards.
	Apply(txn *Transaction)
}

// DocumentCache is the partial in-memory mirror of server documents.
type DocumentCache interface {
	// Get returns the cached entry for the key, or nil if the cache holds
	// nothing for it.
	Get(key model.DocumentKey) *model.MaybeDocument

	// ForEachKey visits every key in the cache. Returning false from fn
	// stops the walk.
	ForEachKey(fn func(key model.DocumentKey) bool)

	// Size returns the total byte footprint of the cache as measured by the
	// active policy's DocumentSize.
	Size(delegate ReferenceDelegate) int64

	// NewChangeBuffer returns an empty buffer of staged writes against this
	// cache.
	NewChangeBuffer() ChangeBuffer
}

// TargetCache tracks active targets and the two-way association between
// targets and the document keys they match.
type TargetCache interface {
	// ContainsKey reports whether any active target currently matches key.
	ContainsKey(key model.DocumentKey) bool

	// MatchingKeysForTarget returns the keys the target currently matches.
	MatchingKeysForTarget(targetID int32) []model.DocumentKey

	// UpdateTargetData inserts or replaces the target's metadata. The
	// target's query must compile.
	UpdateTargetData(txn *Transaction, td TargetData) error

	// RemoveTargetData tears the target down: its key associations are
	// released through the reference delegate before its metadata is
	// dropped.
	RemoveTargetData(txn *Transaction, td TargetData)

	// ForEachTarget visits every active target.
	ForEachTarget(fn func(td TargetData))

	// TargetCount returns the number of active targets.
	TargetCount() int

	// RemoveTargets removes every target whose last-used sequence number is
	// at most upperBound and whose id is not in activeTargetIDs. Returns
	// the number removed.
	RemoveTargets(txn *Transaction, upperBound SequenceNumber, activeTargetIDs map[int32]struct{}) int
}

// ReferenceDelegate is the policy half of the persistence layer: every
// reference and dereference event flows through it, and it decides at
// commit (eager) or at sweep (LRU) what may be evicted. The coordinator
// never branches on which policy is active.
type ReferenceDelegate interface {
	// SetInMemoryPins hands the delegate the caller-owned pin set. The
	// delegate borrows it and must never free it.
	SetInMemoryPins(pins KeyContainer)

	// OnTransactionStarted and OnTransactionCommitted bracket every
	// transaction. The commit hook may perform further cache writes; they
	// complete before the transaction is considered finished.
	OnTransactionStarted()
	OnTransactionCommitted(txn *Transaction) error

	// AddReference records that a target or pin started referencing key.
	AddReference(txn *Transaction, key model.DocumentKey)

	// RemoveReference records that a target or pin stopped referencing key.
	RemoveReference(txn *Transaction, key model.DocumentKey)

	// RemoveMutationReference records that a pending write touching key was
	// acknowledged or discarded.
	RemoveMutationReference(txn *Transaction, key model.DocumentKey)

	// RemoveTarget marks every document the target still matches as
	// orphaned, then removes the target's metadata.
	RemoveTarget(txn *Transaction, td TargetData)

	// UpdateLimboDocument recomputes the orphan status of a key involved in
	// limbo resolution.
	UpdateLimboDocument(txn *Transaction, key model.DocumentKey)

	// DocumentSize is the policy's byte estimate for a cached document.
	DocumentSize(doc *model.MaybeDocument) int64
}

// DelegateSource resolves the active reference delegate. The caches hold a
// source rather than the delegate itself so the coordinator and delegate
// can be bound after the caches are built.
type DelegateSource interface {
	ReferenceDelegate() ReferenceDelegate
}
