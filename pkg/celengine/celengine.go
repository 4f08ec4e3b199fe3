package celengine

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
)

// Rule is a compiled boolean CEL expression. Programs are safe for
// concurrent use.
type Rule struct {
	expr string
	prg  cel.Program
}

// BuildEnv declares one variable per attribute, typed from the sample value.
func BuildEnv(sample map[string]any) (*cel.Env, error) {
	keys := make([]string, 0, len(sample))
	for k := range sample {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	variables := make([]cel.EnvOption, 0, len(keys))
	for _, key := range keys {
		switch sample[key].(type) {
		case string:
			variables = append(variables, cel.Variable(key, cel.StringType))
		case int, int32, int64:
			variables = append(variables, cel.Variable(key, cel.IntType))
		case float32, float64:
			variables = append(variables, cel.Variable(key, cel.DoubleType))
		case bool:
			variables = append(variables, cel.Variable(key, cel.BoolType))
		case map[string]any:
			variables = append(variables, cel.Variable(key, cel.MapType(cel.StringType, cel.DynType)))
		default:
			variables = append(variables, cel.Variable(key, cel.DynType))
		}
	}

	return cel.NewEnv(variables...)
}

// Compile type-checks expr against the attributes in sample and requires a
// bool result.
func Compile(expr string, sample map[string]any) (*Rule, error) {
	env, err := BuildEnv(sample)
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must return bool, got %v", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	return &Rule{expr: expr, prg: prg}, nil
}

func (r *Rule) String() string {
	return r.expr
}

func (r *Rule) Eval(attrs map[string]any) (bool, error) {
	out, _, err := r.prg.Eval(attrs)
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}

	return b, nil
}
