package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/itchyny/gojq"
)

// jqTransform applies a jq expression to the step's data. A single map
// result is merged into the output alongside the raw "result" key so
// downstream steps can read fields directly; multiple results come back as
// a list.
func jqTransform(_ context.Context, input map[string]any) (map[string]any, error) {
	expression, _ := input["expression"].(string)
	if expression == "" {
		return nil, fmt.Errorf("jq: 'expression' is required")
	}

	parsed, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("jq: invalid expression %q: %w", expression, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("jq: compile expression %q: %w", expression, err)
	}

	data := dataOf(input)
	delete(data, "expression")

	// gojq operates on JSON-compatible types; round-trip to normalize any
	// typed values that came in programmatically.
	normalized, err := normalizeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("jq: normalize input: %w", err)
	}

	var results []any
	iter := code.Run(normalized)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if iterErr, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq: expression error: %w", iterErr)
		}
		results = append(results, v)
	}

	output := make(map[string]any)
	switch len(results) {
	case 0:
		output["result"] = nil
	case 1:
		output["result"] = results[0]
		if m, ok := results[0].(map[string]any); ok {
			for k, v := range m {
				output[k] = v
			}
		}
	default:
		output["result"] = results
	}
	return output, nil
}

// condition evaluates a boolean expression over the step's data and
// returns {"match": bool}. Non-boolean results are errors.
func condition(_ context.Context, input map[string]any) (map[string]any, error) {
	expression, _ := input["expression"].(string)
	if expression == "" {
		return nil, fmt.Errorf("condition: 'expression' is required")
	}

	env := dataOf(input)
	delete(env, "expression")

	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("condition: invalid expression %q: %w", expression, err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("condition: evaluate %q: %w", expression, err)
	}

	matchResult, ok := result.(bool)
	if !ok {
		return nil, fmt.Errorf("condition: expression %q returned %T, want bool", expression, result)
	}
	return map[string]any{"match": matchResult}, nil
}

func normalizeJSON(v map[string]any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
