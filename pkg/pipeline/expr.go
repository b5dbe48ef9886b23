package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"wavegraph/pkg/graph"
)

// exprEnv binds the state to the `state` identifier of expressions.
func exprEnv(s graph.Values) map[string]any {
	return map[string]any{"state": map[string]any(s)}
}

func compileExpr(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(exprEnv(nil)))
}

// exprRouter evaluates a compiled expression against a node's output. It
// declares the route keys as its label set so compilation can check them.
type exprRouter struct {
	from   string
	prog   *vm.Program
	labels []graph.Label
}

func newExprRouter(def RouterDef) (*exprRouter, error) {
	prog, err := compileExpr(def.Expr)
	if err != nil {
		return nil, fmt.Errorf("router %q: %w", def.From, err)
	}
	labels := make([]graph.Label, 0, len(def.Routes))
	for label := range def.Routes {
		labels = append(labels, graph.Label(label))
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return &exprRouter{from: def.From, prog: prog, labels: labels}, nil
}

func (r *exprRouter) Route(_ context.Context, s graph.Values) (graph.Label, error) {
	out, err := expr.Run(r.prog, exprEnv(s))
	if err != nil {
		return "", fmt.Errorf("router %q: %w", r.from, err)
	}
	switch v := out.(type) {
	case string:
		return graph.Label(v), nil
	case bool:
		return graph.Label(fmt.Sprint(v)), nil
	default:
		return "", fmt.Errorf("router %q: expression yielded %T, want string or bool", r.from, out)
	}
}

func (r *exprRouter) Labels() []graph.Label {
	return append([]graph.Label(nil), r.labels...)
}
