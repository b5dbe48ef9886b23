package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"wavegraph/pkg/graph"
)

// Built-in node families.
const (
	FamilyPass   = "pass"
	FamilySet    = "set"
	FamilyAppend = "append"
	FamilyFail   = "fail"
	FamilyLog    = "log"
)

// ErrNodeFailed is returned by nodes of the fail family.
var ErrNodeFailed = errors.New("pipeline: node failed")

// Factory builds the handler of a node from its definition.
type Factory func(def NodeDef) (graph.NodeFunc[graph.Values], error)

// Registry maps node family names to factories. A node whose family is not
// registered is looked up by its own name, so a registry can also bind
// handlers to individual nodes.
type Registry map[string]Factory

// NewRegistry returns a registry holding the built-in families.
func NewRegistry() Registry {
	return Registry{
		FamilyPass:   passFamily,
		FamilySet:    setFamily,
		FamilyAppend: appendFamily,
		FamilyFail:   failFamily,
		FamilyLog:    logFamily,
	}
}

func (r Registry) lookup(def NodeDef) Factory {
	if f, ok := r[def.Family]; ok && def.Family != "" {
		return f
	}
	if f, ok := r[def.Name]; ok {
		return f
	}
	if def.Family == "" {
		return passFamily
	}
	return nil
}

var merges = map[string]graph.MergeFunc[graph.Values]{
	"":       nil,
	"last":   graph.LastWriterWins[graph.Values],
	"keys":   graph.MergeValues,
	"concat": graph.ConcatValues,
}

func passFamily(NodeDef) (graph.NodeFunc[graph.Values], error) {
	return func(_ context.Context, s graph.Values) (graph.Values, error) {
		return s, nil
	}, nil
}

// setFamily evaluates every assignment against the input state before
// writing any of them.
func setFamily(def NodeDef) (graph.NodeFunc[graph.Values], error) {
	keys := make([]string, 0, len(def.Set))
	for k := range def.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	progs := make([]*vm.Program, len(keys))
	for i, k := range keys {
		p, err := compileExpr(def.Set[k])
		if err != nil {
			return nil, fmt.Errorf("node %q: set %s: %w", def.Name, k, err)
		}
		progs[i] = p
	}

	return func(_ context.Context, s graph.Values) (graph.Values, error) {
		if s == nil {
			s = graph.Values{}
		}
		env := exprEnv(s)
		results := make([]any, len(progs))
		for i, p := range progs {
			v, err := expr.Run(p, env)
			if err != nil {
				return nil, fmt.Errorf("set %s: %w", keys[i], err)
			}
			results[i] = v
		}
		for i, k := range keys {
			s[k] = results[i]
		}
		return s, nil
	}, nil
}

func appendFamily(def NodeDef) (graph.NodeFunc[graph.Values], error) {
	prog, err := compileExpr(def.Value)
	if err != nil {
		return nil, fmt.Errorf("node %q: append %s: %w", def.Name, def.Key, err)
	}
	return func(_ context.Context, s graph.Values) (graph.Values, error) {
		if s == nil {
			s = graph.Values{}
		}
		v, err := expr.Run(prog, exprEnv(s))
		if err != nil {
			return nil, fmt.Errorf("append %s: %w", def.Key, err)
		}
		var list []any
		switch cur := s[def.Key].(type) {
		case nil:
		case []any:
			list = cur
		default:
			return nil, fmt.Errorf("append %s: key holds %T, not a list", def.Key, cur)
		}
		s[def.Key] = append(list, v)
		return s, nil
	}, nil
}

func failFamily(def NodeDef) (graph.NodeFunc[graph.Values], error) {
	msg := def.Message
	if msg == "" {
		msg = "node " + def.Name
	}
	return func(context.Context, graph.Values) (graph.Values, error) {
		return nil, fmt.Errorf("%w: %s", ErrNodeFailed, msg)
	}, nil
}

func logFamily(def NodeDef) (graph.NodeFunc[graph.Values], error) {
	return func(ctx context.Context, s graph.Values) (graph.Values, error) {
		slog.InfoContext(ctx, def.Message, "node", def.Name, "keys", s.Keys())
		return s, nil
	}, nil
}
