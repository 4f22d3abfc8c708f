// Package cel compiles CEL expressions used to narrow which roster members
// may stand for leadership.
package cel

import (
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Filter is a compiled boolean CEL expression over a fixed set of variables.
type Filter struct {
	expr    string
	program cel.Program
}

// Compile parses and type-checks expr. Every name in vars is declared as a
// dynamic-typed variable; referencing any other name is a compile error.
// The expression must produce a bool.
func Compile(expr string, vars ...string) (*Filter, error) {
	names := slices.Clone(vars)
	slices.Sort(names)
	opts := make([]cel.EnvOption, 0, len(names))
	for _, v := range slices.Compact(names) {
		opts = append(opts, cel.Variable(v, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}
	if out := ast.OutputType(); out != cel.BoolType && out != cel.DynType {
		return nil, fmt.Errorf("cel compile: expression yields %s, want bool", out)
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}
	return &Filter{expr: expr, program: prog}, nil
}

// Expr returns the source expression.
func (f *Filter) Expr() string { return f.expr }

// Match evaluates the filter. Missing variables, type mismatches and
// evaluation errors all yield false.
func (f *Filter) Match(attrs map[string]any) bool {
	out, _, err := f.program.Eval(attrs)
	if err != nil {
		return false
	}
	if out.Type() != types.BoolType {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
