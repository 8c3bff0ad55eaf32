package memory

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/syntrixbase/localstore/pkg/model"
)

// targetMatcher evaluates whether a document belongs to a target's result
// set. Filters are compiled once per target into a CEL program over the
// document data.
type targetMatcher struct {
	env *cel.Env
}

func newTargetMatcher() *targetMatcher {
	env, _ := cel.NewEnv(
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
	)
	return &targetMatcher{env: env}
}

// compile turns a query's filters into a CEL program. A query without
// filters compiles to nil, which matches every document in the collection.
func (m *targetMatcher) compile(q model.Query) (cel.Program, error) {
	if len(q.Filters) == 0 {
		return nil, nil
	}

	var expressions []string
	for _, f := range q.Filters {
		expr, err := filterToExpression(f)
		if err != nil {
			return nil, err
		}
		expressions = append(expressions, expr)
	}

	fullExpr := strings.Join(expressions, " && ")
	ast, issues := m.env.Compile(fullExpr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}

	prg, err := m.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	return prg, nil
}

// evaluate runs a compiled program against document data.
func evaluate(prg cel.Program, docData map[string]interface{}) (bool, error) {
	if prg == nil {
		return true, nil // No filter = match all
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"doc": docData,
	})
	if err != nil {
		return false, err
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL result is not boolean: %T", out.Value())
	}
	return result, nil
}

// filterToExpression converts a model.Filter to a CEL expression string.
func filterToExpression(f model.Filter) (string, error) {
	valStr, err := formatValue(f.Value)
	if err != nil {
		return "", err
	}

	field := "doc"
	parts := strings.Split(f.Field, ".")
	for _, p := range parts {
		field += fmt.Sprintf("['%s']", p)
	}

	switch f.Op {
	case model.OpEq:
		return fmt.Sprintf("%s == %s", field, valStr), nil
	case model.OpNe:
		return fmt.Sprintf("%s != %s", field, valStr), nil
	case model.OpGt:
		return fmt.Sprintf("%s > %s", field, valStr), nil
	case model.OpGte:
		return fmt.Sprintf("%s >= %s", field, valStr), nil
	case model.OpLt:
		return fmt.Sprintf("%s < %s", field, valStr), nil
	case model.OpLte:
		return fmt.Sprintf("%s <= %s", field, valStr), nil
	case model.OpIn:
		return fmt.Sprintf("%s in %s", field, valStr), nil
	case model.OpContains:
		return fmt.Sprintf("%s in %s", valStr, field), nil
	default:
		return "", fmt.Errorf("unsupported operator: %s", f.Op)
	}
}

// formatValue formats a value for use in a CEL expression.
func formatValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(val, "'", "\\'")), nil
	case int:
		return fmt.Sprintf("%d", val), nil
	case int32:
		return fmt.Sprintf("%d", val), nil
	case int64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return fmt.Sprintf("%v", val), nil
	case float64:
		return fmt.Sprintf("%v", val), nil
	case bool:
		return fmt.Sprintf("%v", val), nil
	case []interface{}:
		var parts []string
		for _, item := range val {
			s, err := formatValue(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", ")), nil
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
}
