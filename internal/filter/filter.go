// Package filter selects log records with CEL expressions, for dumps and the
// diagnostics API.
//
// Expressions see these variables:
//
//	event  int     event code
//	name   string  event name without padding, e.g. "TCP_CONNECTED"
//	param  int     parameter
//	ts_us  int     timestamp in microseconds
//	ts_ms  double  timestamp in milliseconds
//
// Example: `name.startsWith("TCP_") && param != 0`.
package filter

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/record"
)

// Filter wraps a compiled CEL program. The zero value and nil accept every
// record.
type Filter struct {
	prog  cel.Program
	table *events.Table
	expr  string
}

// New compiles expr against table (events.Default() if nil). An empty
// expression yields a filter that accepts everything.
func New(expr string, table *events.Table) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if table == nil {
		table = events.Default()
	}
	if expr == "" {
		return &Filter{table: table}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("event", cel.IntType),
		cel.Variable("name", cel.StringType),
		cel.Variable("param", cel.IntType),
		cel.Variable("ts_us", cel.IntType),
		cel.Variable("ts_ms", cel.DoubleType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("filter: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter: expression must be boolean, got %s", ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return &Filter{prog: prog, table: table, expr: expr}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the expression for r. Evaluation errors count as no
// match.
func (f *Filter) Match(r record.Record) bool {
	if f == nil || f.prog == nil {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"event": int64(r.Event),
		"name":  f.table.Bare(r.Event),
		"param": int64(r.Parameter),
		"ts_us": int64(r.Timestamp),
		"ts_ms": float64(r.Timestamp) / 1000,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Apply returns the records of recs that match, keeping at most limit of the
// most recent ones when limit > 0.
func (f *Filter) Apply(recs []record.Record, limit int) []record.Record {
	out := make([]record.Record, 0, len(recs))
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
