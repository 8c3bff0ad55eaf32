// Package local implements the client-side local cache and garbage
// collection layer: a partial in-memory mirror of server-held documents,
// per-user queues of unacknowledged writes, and live query targets that pin
// documents, reconciled into a single eviction decision per document by a
// pluggable reference delegate.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/syntrixbase/localstore/internal/local/config"
	"github.com/syntrixbase/localstore/internal/local/memory"
	"github.com/syntrixbase/localstore/internal/local/types"
	"github.com/syntrixbase/localstore/internal/logging"
	"github.com/syntrixbase/localstore/pkg/model"
)

// ErrDurableUnsupported is returned when durable (disk-backed) persistence
// is requested from this memory-only build. It is a precondition failure:
// the caller must reconfigure, there is nothing to retry.
var ErrDurableUnsupported = fmt.Errorf(
	"%w: durable persistence is not available in this build; "+
		"use storage mode %q or link a build with durable storage support",
	model.ErrPreconditionFailed, config.ModeMemory)

// Dependency injection for testing.
var newMutationQueue = func(userID string, delegate types.DelegateSource) types.MutationQueue {
	return memory.NewMutationQueue(userID, delegate)
}

// Persistence is the coordinator of the local cache layer. It owns the
// document cache, the target cache, the per-user mutation queues and the
// active reference delegate, and drives every transaction through the
// delegate's start and commit hooks.
//
// All operations run on one logical queue: the transaction lock serializes
// whole transactions including their commit hooks, so the caches need no
// locking of their own. Transactions are not re-entrant; starting a
// transaction from within another's operation or commit hook deadlocks.
type Persistence struct {
	mu      sync.Mutex
	started bool

	sequence  *SequenceGenerator
	delegate  types.ReferenceDelegate
	scheduler GCScheduler

	documentCache *memory.DocumentCache
	targetCache   *memory.TargetCache

	// queueOrder fixes the evaluation order of MutationQueuesContainKey:
	// unspecified to callers, but stable across calls.
	queues     map[string]types.MutationQueue
	queueOrder []types.MutationQueue
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	sweep func(ctx context.Context)
}

// WithGCSweep installs the collector callback the LRU scheduler invokes on
// its interval. Ignored under the eager policy, which needs no periodic
// driver.
func WithGCSweep(sweep func(ctx context.Context)) Option {
	return func(o *openOptions) { o.sweep = sweep }
}

// Open constructs the persistence layer for the given configuration.
//
// Requesting durable storage fails immediately with ErrDurableUnsupported,
// before any cache is created. The GC policy is fixed for the lifetime of
// the returned Persistence; under the LRU policy the collector loop starts
// immediately when gc.enabled is set.
func Open(cfg config.Config, opts ...Option) (*Persistence, error) {
	if cfg.Storage.Mode == config.ModeDurable {
		return nil, ErrDurableUnsupported
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	var options openOptions
	for _, opt := range opts {
		opt(&options)
	}

	p := &Persistence{
		sequence: NewSequenceGenerator(types.SequenceNumberInvalid + 1),
		queues:   make(map[string]types.MutationQueue),
	}
	p.documentCache = memory.NewDocumentCache(p)
	p.targetCache = memory.NewTargetCache(p)

	// Two-phase bind: the caches resolve the delegate through p, so the
	// delegate can hold its back-reference to p without either side ever
	// observing an unset field.
	switch cfg.GC.Policy {
	case config.PolicyLRU:
		p.delegate = newLruDelegate(p)
		sweep := options.sweep
		if sweep == nil {
			sweep = func(context.Context) {}
		}
		p.scheduler = newLRUScheduler(cfg.GC.Interval, sweep)
	default:
		p.delegate = newEagerDelegate(p)
		p.scheduler = &noopGCScheduler{}
	}

	p.started = true
	if cfg.GC.Policy == config.PolicyLRU && cfg.GC.Enabled {
		p.scheduler.Start()
	}
	slog.Debug("Local persistence started",
		"mode", cfg.Storage.Mode,
		"gc_policy", cfg.GC.Policy,
	)
	return p, nil
}

// Run executes one transaction: it allocates the next sequence number,
// brackets the operation with the delegate's start and commit hooks, and
// fires post-commit listeners strictly after the commit hook has finished.
// The commit hook's own cache writes complete before Run returns.
//
// action labels the transaction for logging; mode documents intent and is
// not branched on by the memory build. fn must not call Run again.
func (p *Persistence) Run(ctx context.Context, action string, mode types.TransactionMode, fn func(txn *types.Transaction) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		panic("persistence used before Open or after Shutdown: programming error")
	}

	txn := types.NewTransaction(action, mode, p.sequence.Next())
	p.delegate.OnTransactionStarted()

	if err := fn(txn); err != nil {
		return fmt.Errorf("transaction %q: %w", action, err)
	}
	if err := p.delegate.OnTransactionCommitted(txn); err != nil {
		return fmt.Errorf("transaction %q commit: %w", action, err)
	}

	txn.NotifyCommitted()
	return nil
}

// MutationQueuesContainKey reports whether any user's pending writes touch
// the key. Queues are evaluated in a stable order and evaluation stops at
// the first queue that reports true.
func (p *Persistence) MutationQueuesContainKey(txn *types.Transaction, key model.DocumentKey) bool {
	for _, queue := range p.queueOrder {
		if queue.ContainsKey(key) {
			return true
		}
	}
	return false
}

// MutationQueue returns the queue for the user, creating it on first
// access. Queues are never removed once created; memory is bounded by
// garbage collection, not by queue lifecycle.
func (p *Persistence) MutationQueue(userID string) types.MutationQueue {
	queue, ok := p.queues[userID]
	if !ok {
		queue = newMutationQueue(userID, p)
		p.queues[userID] = queue
		p.queueOrder = append(p.queueOrder, queue)
	}
	return queue
}

// DocumentCache returns the in-memory document mirror.
func (p *Persistence) DocumentCache() *memory.DocumentCache {
	return p.documentCache
}

// TargetCache returns the live query target cache.
func (p *Persistence) TargetCache() *memory.TargetCache {
	return p.targetCache
}

// ReferenceDelegate returns the active GC policy delegate.
func (p *Persistence) ReferenceDelegate() types.ReferenceDelegate {
	if p.delegate == nil {
		panic("reference delegate requested before bind: programming error")
	}
	return p.delegate
}

// GCScheduler returns the collection driver: a started/stopped flag under
// the eager policy, a ticker-driven worker under LRU.
func (p *Persistence) GCScheduler() GCScheduler {
	return p.scheduler
}

// Clear would wipe persisted state. This implementation has none to wipe
// and the operation is unsupported; it always fails with the same
// precondition error as the durable-storage rejection.
func (p *Persistence) Clear() error {
	return ErrDurableUnsupported
}

// Shutdown stops the GC scheduler and marks the layer unusable. Using the
// persistence afterwards is a programming error.
func (p *Persistence) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.scheduler.Stop()
	p.started = false
}

var _ types.DelegateSource = (*Persistence)(nil)
