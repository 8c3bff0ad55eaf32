package model

import "github.com/google/uuid"

// MutationBatch is a group of locally made, not-yet-acknowledged writes for
// one user. Only the touched keys matter to the cache layer; the write
// payloads live with the sync engine above it.
type MutationBatch struct {
	ID     string        `json:"id"`
	UserID string        `json:"userId"`
	Keys   []DocumentKey `json:"keys"`
}

// NewMutationBatch creates a batch with a generated id.
func NewMutationBatch(userID string, keys ...DocumentKey) *MutationBatch {
	return &MutationBatch{
		ID:     uuid.New().String(),
		UserID: userID,
		Keys:   keys,
	}
}
