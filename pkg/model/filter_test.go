package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterOpIsValid(t *testing.T) {
	for _, op := range []FilterOp{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains} {
		assert.True(t, op.IsValid(), string(op))
	}
	assert.False(t, FilterOp("~=").IsValid())
	assert.False(t, FilterOp("").IsValid())
}

func TestFilterValidate(t *testing.T) {
	assert.True(t, Filter{Field: "open", Op: OpEq, Value: true}.Validate())
	assert.False(t, Filter{Field: "", Op: OpEq, Value: true}.Validate())
	assert.False(t, Filter{Field: "open", Op: "like", Value: true}.Validate())
}

func TestQueryValidate(t *testing.T) {
	q := Query{Collection: "rooms", Filters: Filters{
		{Field: "open", Op: OpEq, Value: true},
	}}
	assert.True(t, q.Validate())

	q.Filters = append(q.Filters, Filter{Field: "", Op: OpEq})
	assert.False(t, q.Validate())
}
