package expressions

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/rendis/flowrun/pkg/schema"
)

// GoJQEngine runs jq programs. It also backs GetPath and SetPath, which
// bind their arguments as jq variables.
type GoJQEngine struct {
	programs *programs[*gojq.Code]
}

func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{programs: newPrograms(compileJQ)}
}

func (e *GoJQEngine) Name() string {
	return "jq"
}

// Evaluate runs a jq program whose input is data. A program emitting one
// value returns it as is; several values come back as []any.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	input, _ := normalizeForJQ(data).(map[string]any)
	results, err := e.run(ctx, expression, nil, input, nil)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// run executes expression on input with the jq variables vars bound to values.
func (e *GoJQEngine) run(ctx context.Context, expression string, vars []string, input any, values []any) ([]any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty jq expression")
	}
	// The same text compiles differently depending on the declared variables.
	code, err := e.programs.get(strings.Join(vars, ",") + "\n" + expression)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.RunWithContext(ctx, input, values...)
	for {
		val, ok := iter.Next()
		if !ok {
			return results, nil
		}
		if err, isErr := val.(error); isErr {
			return nil, expressionError(schema.ErrCodeExecution, "jq evaluation failed", expression, err)
		}
		results = append(results, val)
	}
}

// compileJQ compiles a key of the form "<vars>\n<program>". Environment
// access is disabled.
func compileJQ(key string) (*gojq.Code, error) {
	header, expression, _ := strings.Cut(key, "\n")
	var vars []string
	if header != "" {
		vars = strings.Split(header, ",")
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, expressionError(schema.ErrCodeValidation, "jq parse error", expression, err)
	}
	code, err := gojq.Compile(query,
		gojq.WithVariables(vars),
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, expressionError(schema.ErrCodeValidation, "jq compile error", expression, err)
	}
	return code, nil
}

// normalizeForJQ converts Go values into the types gojq accepts: maps,
// slices, strings, bools, nil, int and float64. Anything else goes through
// a JSON round trip.
func normalizeForJQ(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int, float64:
		return v
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = normalizeForJQ(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = normalizeForJQ(v)
		}
		return out
	case int64:
		return int(val)
	case int32:
		return int(val)
	case float32:
		return float64(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		f, _ := val.Float64()
		return f
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

var _ Engine = (*GoJQEngine)(nil)
