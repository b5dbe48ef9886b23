package graph

import (
	"log/slog"
	"reflect"
	"sort"
)

// CompileOption configures a CompiledGraph.
type CompileOption func(*compileConfig)

type compileConfig struct {
	name              string
	observer          Observer
	logger            *slog.Logger
	unreachableIsWarn bool
}

// WithName names the compiled graph; the name shows up in logs and renders.
func WithName(name string) CompileOption {
	return func(c *compileConfig) { c.name = name }
}

// WithObserver attaches a graph-level observer that receives events from
// every run. Per-run observers (WithRunObserver) are composed with it.
func WithObserver(obs Observer) CompileOption {
	return func(c *compileConfig) { c.observer = obs }
}

// WithLogger sets the logger used for compile warnings and run diagnostics.
func WithLogger(l *slog.Logger) CompileOption {
	return func(c *compileConfig) { c.logger = l }
}

// WithUnreachableAsWarning logs unreachable nodes instead of failing Compile.
func WithUnreachableAsWarning() CompileOption {
	return func(c *compileConfig) { c.unreachableIsWarn = true }
}

// CompiledGraph is the frozen, executable form of a Builder. It has no
// mutating methods and is safe to share across concurrent runs.
type CompiledGraph[S any] struct {
	name     string
	entry    string
	order    []string
	handlers map[string]NodeFunc[S]
	merges   map[string]MergeFunc[S]
	static   map[string][]string
	preds    map[string][]string
	possible map[string][]string
	routers  map[string]*conditionalEdge[S]

	defaultMerge MergeFunc[S]
	clone        func(S) S
	observer     Observer
	logger       *slog.Logger
}

// Compile validates the draft and returns a frozen graph. All problems are
// reported together in a *GraphValidationError.
func (b *Builder[S]) Compile(opts ...CompileOption) (*CompiledGraph[S], error) {
	cfg := compileConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	verr := &GraphValidationError{}
	add := func(p Problem) { verr.Problems = append(verr.Problems, p) }

	switch {
	case b.entry == "":
		add(Problem{Kind: ErrNoEntryPoint})
	case b.nodes[b.entry] == nil:
		add(Problem{Kind: ErrUnknownEntryPoint, Node: b.entry})
	}

	validTarget := func(t string) bool {
		return t == END || b.nodes[t] != nil
	}

	static := make(map[string][]string)
	preds := make(map[string][]string)
	possible := make(map[string][]string)
	incoming := make(map[string]bool)
	hasStatic := make(map[string]bool)

	for _, e := range b.edges {
		hasStatic[e.From] = true
		if !validTarget(e.To) {
			add(Problem{Kind: ErrDanglingEdgeTarget, Node: e.From, Target: e.To})
			continue
		}
		static[e.From] = appendUnique(static[e.From], e.To)
		if e.To != END {
			preds[e.To] = appendUnique(preds[e.To], e.From)
			possible[e.From] = appendUnique(possible[e.From], e.To)
			if e.To != e.From {
				incoming[e.To] = true
			}
		}
	}

	routers := make(map[string]*conditionalEdge[S], len(b.conditional))
	for from, ce := range b.conditional {
		if hasStatic[from] {
			add(Problem{Kind: ErrConflictingSuccessors, Node: from})
		}
		for _, label := range ce.routes.Labels() {
			to := ce.routes[label]
			if !validTarget(to) {
				add(Problem{Kind: ErrDanglingEdgeTarget, Node: from, Label: label, Target: to})
				continue
			}
			if to != END {
				possible[from] = appendUnique(possible[from], to)
				if to != from {
					incoming[to] = true
				}
			}
		}
		if ls, ok := ce.router.(LabelSet); ok {
			declared := make(map[Label]bool)
			for _, l := range ls.Labels() {
				declared[l] = true
				if _, ok := ce.routes[l]; !ok {
					add(Problem{Kind: ErrUndeclaredLabel, Node: from, Label: l})
				}
			}
			for _, l := range ce.routes.Labels() {
				if !declared[l] {
					add(Problem{Kind: ErrUndeclaredLabel, Node: from, Label: l})
				}
			}
		}
		routers[from] = &conditionalEdge[S]{from: from, router: ce.router, routes: ce.routes.clone()}
	}

	if b.clone == nil && !clonable[S]() {
		if id := firstFanOut(b.order, static); id != "" {
			add(Problem{Kind: ErrSharedState, Node: id})
		}
	}

	for _, id := range b.order {
		if id == b.entry || incoming[id] {
			continue
		}
		if cfg.unreachableIsWarn {
			cfg.logger.Warn("unreachable node", "graph", cfg.name, "node", id)
			continue
		}
		add(Problem{Kind: ErrUnreachableNode, Node: id})
	}

	if len(verr.Problems) > 0 {
		verr.sort()
		return nil, verr
	}

	g := &CompiledGraph[S]{
		name:         cfg.name,
		entry:        b.entry,
		order:        append([]string(nil), b.order...),
		handlers:     make(map[string]NodeFunc[S], len(b.nodes)),
		merges:       make(map[string]MergeFunc[S]),
		static:       sortValues(static),
		preds:        sortValues(preds),
		possible:     sortValues(possible),
		routers:      routers,
		defaultMerge: b.merge,
		clone:        b.clone,
		observer:     cfg.observer,
		logger:       cfg.logger,
	}
	sort.Strings(g.order)
	for id, n := range b.nodes {
		mw := append(append([]Middleware[S](nil), b.middleware...), n.middleware...)
		g.handlers[id] = Chain(n.fn, mw...)
		if n.merge != nil {
			g.merges[id] = n.merge
		}
	}
	if g.clone == nil {
		g.clone = cloneOf[S]
	}
	return g, nil
}

// clonable reports whether parallel branches of S can get independent
// copies without a clone function: S is a value kind or implements Cloner.
// Interface kinds are checked per value by cloneOf.
func clonable[S any]() bool {
	t := reflect.TypeFor[S]()
	if t.Implements(reflect.TypeFor[Cloner[S]]()) {
		return true
	}
	switch t.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return false
	}
	return true
}

// firstFanOut returns the first node, in id order, with more than one static
// successor besides END. Without one, every wave holds a single node.
func firstFanOut(order []string, static map[string][]string) string {
	ids := append([]string(nil), order...)
	sort.Strings(ids)
	for _, id := range ids {
		n := 0
		for _, to := range static[id] {
			if to != END {
				n++
			}
		}
		if n > 1 {
			return id
		}
	}
	return ""
}

// cloneOf copies states that implement Cloner and returns others unchanged.
func cloneOf[S any](s S) S {
	if c, ok := any(s).(Cloner[S]); ok {
		return c.Clone()
	}
	return s
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func sortValues(m map[string][]string) map[string][]string {
	for k := range m {
		sort.Strings(m[k])
	}
	return m
}

// Name returns the graph name set with WithName.
func (g *CompiledGraph[S]) Name() string { return g.name }

// EntryPoint returns the entry node id.
func (g *CompiledGraph[S]) EntryPoint() string { return g.entry }

// Nodes returns the node ids in sorted order.
func (g *CompiledGraph[S]) Nodes() []string { return append([]string(nil), g.order...) }

// HasNode reports whether id is a node of the graph.
func (g *CompiledGraph[S]) HasNode(id string) bool {
	_, ok := g.handlers[id]
	return ok
}

// Successors returns the static successors of id (END included), sorted.
// Nodes with a router have none; see Routes.
func (g *CompiledGraph[S]) Successors(id string) []string {
	return append([]string(nil), g.static[id]...)
}

// Predecessors returns the nodes with a static edge into id, sorted.
func (g *CompiledGraph[S]) Predecessors(id string) []string {
	return append([]string(nil), g.preds[id]...)
}

// IsConditional reports whether id has a router.
func (g *CompiledGraph[S]) IsConditional(id string) bool {
	_, ok := g.routers[id]
	return ok
}

// Routes returns a copy of the route table of id's router.
func (g *CompiledGraph[S]) Routes(id string) (Routes, bool) {
	ce, ok := g.routers[id]
	if !ok {
		return nil, false
	}
	return ce.routes.clone(), true
}

// Edges returns every static edge, sorted by source then target.
func (g *CompiledGraph[S]) Edges() []Edge {
	var out []Edge
	for _, from := range g.order {
		for _, to := range g.static[from] {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}
