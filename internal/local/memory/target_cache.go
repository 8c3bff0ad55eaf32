package memory

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/syntrixbase/localstore/internal/local/types"
	"github.com/syntrixbase/localstore/pkg/model"
)

// TargetCache tracks the set of active targets and the two-way association
// between targets and the document keys in their result sets. Reference and
// dereference events for matching keys flow through the active reference
// delegate.
type TargetCache struct {
	targets  map[int32]types.TargetData
	programs map[int32]cel.Program

	// two-way key <-> target index
	keysByTarget map[int32]map[model.DocumentKey]struct{}
	targetsByKey map[model.DocumentKey]map[int32]struct{}

	matcher  *targetMatcher
	delegate types.DelegateSource

	highestSequenceNumber types.SequenceNumber
}

// NewTargetCache creates an empty target cache.
func NewTargetCache(delegate types.DelegateSource) *TargetCache {
	return &TargetCache{
		targets:      make(map[int32]types.TargetData),
		programs:     make(map[int32]cel.Program),
		keysByTarget: make(map[int32]map[model.DocumentKey]struct{}),
		targetsByKey: make(map[model.DocumentKey]map[int32]struct{}),
		matcher:      newTargetMatcher(),
		delegate:     delegate,
	}
}

// UpdateTargetData inserts or replaces the target's metadata. The query's
// filters are compiled for matching on first sight of the target; a query
// that does not compile is rejected and the target is not registered.
func (c *TargetCache) UpdateTargetData(txn *types.Transaction, td types.TargetData) error {
	if _, ok := c.programs[td.TargetID]; !ok {
		prg, err := c.matcher.compile(td.Query)
		if err != nil {
			return fmt.Errorf("compile query for target %d: %w", td.TargetID, err)
		}
		c.programs[td.TargetID] = prg
	}
	c.targets[td.TargetID] = td
	if td.SequenceNumber > c.highestSequenceNumber {
		c.highestSequenceNumber = td.SequenceNumber
	}
	return nil
}

// RemoveTargetData tears the target down. Every key the target still
// matches is released through the reference delegate before the metadata is
// dropped.
func (c *TargetCache) RemoveTargetData(txn *types.Transaction, td types.TargetData) {
	c.RemoveMatchingKeysForTarget(txn, td.TargetID)
	delete(c.targets, td.TargetID)
	delete(c.programs, td.TargetID)
}

// GetTargetData returns the metadata for the target, or false if unknown.
func (c *TargetCache) GetTargetData(targetID int32) (types.TargetData, bool) {
	td, ok := c.targets[targetID]
	return td, ok
}

// ForEachTarget visits every active target.
func (c *TargetCache) ForEachTarget(fn func(td types.TargetData)) {
	for _, td := range c.targets {
		fn(td)
	}
}

// TargetCount returns the number of active targets.
func (c *TargetCache) TargetCount() int {
	return len(c.targets)
}

// HighestSequenceNumber returns the largest last-used sequence number ever
// recorded on a target.
func (c *TargetCache) HighestSequenceNumber() types.SequenceNumber {
	return c.highestSequenceNumber
}

// AddMatchingKeys associates keys with the target's result set and raises
// an AddReference for each.
func (c *TargetCache) AddMatchingKeys(txn *types.Transaction, targetID int32, keys ...model.DocumentKey) {
	delegate := c.delegate.ReferenceDelegate()
	for _, key := range keys {
		byTarget, ok := c.keysByTarget[targetID]
		if !ok {
			byTarget = make(map[model.DocumentKey]struct{})
			c.keysByTarget[targetID] = byTarget
		}
		byTarget[key] = struct{}{}

		byKey, ok := c.targetsByKey[key]
		if !ok {
			byKey = make(map[int32]struct{})
			c.targetsByKey[key] = byKey
		}
		byKey[targetID] = struct{}{}

		delegate.AddReference(txn, key)
	}
}

// RemoveMatchingKeys drops keys from the target's result set and raises a
// RemoveReference for each.
func (c *TargetCache) RemoveMatchingKeys(txn *types.Transaction, targetID int32, keys ...model.DocumentKey) {
	delegate := c.delegate.ReferenceDelegate()
	for _, key := range keys {
		delete(c.keysByTarget[targetID], key)
		if byKey := c.targetsByKey[key]; byKey != nil {
			delete(byKey, targetID)
			if len(byKey) == 0 {
				delete(c.targetsByKey, key)
			}
		}
		delegate.RemoveReference(txn, key)
	}
}

// RemoveMatchingKeysForTarget releases every key the target matches.
func (c *TargetCache) RemoveMatchingKeysForTarget(txn *types.Transaction, targetID int32) {
	c.RemoveMatchingKeys(txn, targetID, c.MatchingKeysForTarget(targetID)...)
	delete(c.keysByTarget, targetID)
}

// MatchingKeysForTarget returns the keys the target currently matches.
func (c *TargetCache) MatchingKeysForTarget(targetID int32) []model.DocumentKey {
	byTarget := c.keysByTarget[targetID]
	keys := make([]model.DocumentKey, 0, len(byTarget))
	for key := range byTarget {
		keys = append(keys, key)
	}
	return keys
}

// ContainsKey reports whether any active target currently matches key.
func (c *TargetCache) ContainsKey(key model.DocumentKey) bool {
	return len(c.targetsByKey[key]) > 0
}

// UpdateMatches re-evaluates every target's query against the document and
// adjusts result-set membership. Documents confirmed missing drop out of
// every result set.
func (c *TargetCache) UpdateMatches(txn *types.Transaction, doc *model.MaybeDocument) error {
	key := doc.Key
	for targetID, td := range c.targets {
		matches := false
		if !doc.Missing && td.Query.Collection == key.Collection() {
			var err error
			matches, err = evaluate(c.programs[targetID], doc.Data)
			if err != nil {
				return fmt.Errorf("evaluate target %d against %s: %w", targetID, key, err)
			}
		}

		_, associated := c.keysByTarget[targetID][key]
		switch {
		case matches && !associated:
			c.AddMatchingKeys(txn, targetID, key)
		case !matches && associated:
			c.RemoveMatchingKeys(txn, targetID, key)
		}
	}
	return nil
}

// RemoveTargets removes every target whose last-used sequence number is at
// most upperBound and whose id is not in activeTargetIDs. Removal goes
// through the reference delegate so matched documents are orphaned first.
func (c *TargetCache) RemoveTargets(txn *types.Transaction, upperBound types.SequenceNumber, activeTargetIDs map[int32]struct{}) int {
	delegate := c.delegate.ReferenceDelegate()
	removed := 0
	for targetID, td := range c.targets {
		if td.SequenceNumber > upperBound {
			continue
		}
		if _, active := activeTargetIDs[targetID]; active {
			continue
		}
		delegate.RemoveTarget(txn, td)
		removed++
	}
	return removed
}

var _ types.TargetCache = (*TargetCache)(nil)
