package local

import "github.com/syntrixbase/localstore/internal/local/types"

// SequenceGenerator is the sole logical clock of the persistence layer: it
// hands out one strictly increasing sequence number per transaction.
// Numbers are never reused.
type SequenceGenerator struct {
	previous types.SequenceNumber
}

// NewSequenceGenerator creates a generator whose first Next returns
// after+1.
func NewSequenceGenerator(after types.SequenceNumber) *SequenceGenerator {
	return &SequenceGenerator{previous: after}
}

// Next allocates the next sequence number.
func (g *SequenceGenerator) Next() types.SequenceNumber {
	g.previous++
	return g.previous
}

// Last returns the most recently allocated sequence number, or the seed if
// none has been allocated yet.
func (g *SequenceGenerator) Last() types.SequenceNumber {
	return g.previous
}
