package model

// FilterOp defines the supported filter operators.
type FilterOp string

const (
	OpEq       FilterOp = "=="       // Equal
	OpNe       FilterOp = "!="       // Not equal
	OpGt       FilterOp = ">"        // Greater than
	OpGte      FilterOp = ">="       // Greater than or equal
	OpLt       FilterOp = "<"        // Less than
	OpLte      FilterOp = "<="       // Less than or equal
	OpIn       FilterOp = "in"       // Value in array
	OpContains FilterOp = "contains" // Array contains value
)

// IsValid checks if the operator is valid.
func (op FilterOp) IsValid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains:
		return true
	}
	return false
}

// Filters is a slice of Filter.
type Filters []Filter

// Filter represents a query filter
type Filter struct {
	Field string      `json:"field"`
	Op    FilterOp    `json:"op"`
	Value interface{} `json:"value"`
}

// Validate checks if the filter is valid.
func (f Filter) Validate() bool {
	if f.Field == "" {
		return false
	}
	return f.Op.IsValid()
}

// Query describes the document set a target subscribes to: every document in
// Collection whose data satisfies all Filters.
type Query struct {
	Collection string  `json:"collection"`
	Filters    Filters `json:"filters"`
}

// Validate checks if the query is well formed.
func (q Query) Validate() bool {
	for _, f := range q.Filters {
		if !f.Validate() {
			return false
		}
	}
	return true
}
