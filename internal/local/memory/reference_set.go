package memory

import (
	"github.com/syntrixbase/localstore/internal/local/types"
	"github.com/syntrixbase/localstore/pkg/model"
)

// ReferenceSet is the caller-owned pin list: (key, holder id) pairs held by
// in-memory listeners outside of persistence. Persistence borrows it via
// the delegate's SetInMemoryPins and only ever asks it membership
// questions; the caller is free to mutate it between transactions.
type ReferenceSet struct {
	holdersByKey map[model.DocumentKey]map[string]struct{}
	keysByHolder map[string]map[model.DocumentKey]struct{}
}

// NewReferenceSet creates an empty pin set.
func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{
		holdersByKey: make(map[model.DocumentKey]map[string]struct{}),
		keysByHolder: make(map[string]map[model.DocumentKey]struct{}),
	}
}

// AddReference pins key on behalf of holder.
func (s *ReferenceSet) AddReference(key model.DocumentKey, holder string) {
	holders, ok := s.holdersByKey[key]
	if !ok {
		holders = make(map[string]struct{})
		s.holdersByKey[key] = holders
	}
	holders[holder] = struct{}{}

	keys, ok := s.keysByHolder[holder]
	if !ok {
		keys = make(map[model.DocumentKey]struct{})
		s.keysByHolder[holder] = keys
	}
	keys[key] = struct{}{}
}

// RemoveReference releases holder's pin on key.
func (s *ReferenceSet) RemoveReference(key model.DocumentKey, holder string) {
	if holders := s.holdersByKey[key]; holders != nil {
		delete(holders, holder)
		if len(holders) == 0 {
			delete(s.holdersByKey, key)
		}
	}
	if keys := s.keysByHolder[holder]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.keysByHolder, holder)
		}
	}
}

// RemoveReferencesForHolder releases every pin held by holder and returns
// the keys that were released.
func (s *ReferenceSet) RemoveReferencesForHolder(holder string) []model.DocumentKey {
	keys := make([]model.DocumentKey, 0, len(s.keysByHolder[holder]))
	for key := range s.keysByHolder[holder] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		s.RemoveReference(key, holder)
	}
	return keys
}

// ContainsKey reports whether any holder currently pins key.
func (s *ReferenceSet) ContainsKey(key model.DocumentKey) bool {
	return len(s.holdersByKey[key]) > 0
}

// IsEmpty reports whether no pins are held at all.
func (s *ReferenceSet) IsEmpty() bool {
	return len(s.holdersByKey) == 0
}

var _ types.KeyContainer = (*ReferenceSet)(nil)
