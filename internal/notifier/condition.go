package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// celCostLimit is the maximum runtime cost for CEL program evaluation.
const celCostLimit = 100_000

// celEvalTimeout is the maximum duration for a single CEL evaluation.
const celEvalTimeout = time.Second

// Condition is a compiled CEL routing expression over the variable `run`,
// a map with keys overall, total, passed, warnings, failed, errors,
// checks and entities. Example: run.failed > 0.
type Condition struct {
	expr    string
	program cel.Program
}

// CompileCondition parses and type-checks expr. An empty expression
// compiles to nil, which always matches.
func CompileCondition(expr string) (*Condition, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("run", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error in %q: %w", expr, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("CEL expression %q must return bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	return &Condition{expr: expr, program: prg}, nil
}

// String returns the source expression.
func (c *Condition) String() string {
	if c == nil {
		return "true"
	}
	return c.expr
}

// Match evaluates the condition against n. A nil condition matches.
func (c *Condition) Match(n Notification) (bool, error) {
	if c == nil {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), celEvalTimeout)
	defer cancel()

	out, _, err := c.program.ContextEval(ctx, map[string]any{"run": runVars(n)})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", out.Value())
	}
	return val, nil
}

func runVars(n Notification) map[string]any {
	checks := n.Checks
	if checks == nil {
		checks = []string{}
	}
	entities := n.Entities
	if entities == nil {
		entities = []string{}
	}
	return map[string]any{
		"overall":  string(n.Overall),
		"total":    int64(n.Summary.Total),
		"passed":   int64(n.Summary.Passed),
		"warnings": int64(n.Summary.Warnings),
		"failed":   int64(n.Summary.Failed),
		"errors":   int64(n.Summary.Errors),
		"checks":   checks,
		"entities": entities,
	}
}
