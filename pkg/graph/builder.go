package graph

import "fmt"

// Builder accumulates nodes, edges and the entry point of a draft graph.
// It is not safe for concurrent use. Compile snapshots the draft; the
// builder can keep being edited afterwards to produce further graphs.
type Builder[S any] struct {
	nodes       map[string]*node[S]
	order       []string
	edges       []Edge
	conditional map[string]*conditionalEdge[S]
	entry       string
	merge       MergeFunc[S]
	middleware  []Middleware[S]
	clone       func(S) S
}

// NewBuilder returns an empty draft graph.
func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{
		nodes:       make(map[string]*node[S]),
		conditional: make(map[string]*conditionalEdge[S]),
	}
}

// AddNode registers a node handler under id.
func (b *Builder[S]) AddNode(id string, fn NodeFunc[S], opts ...NodeOption[S]) error {
	if id == "" || id == END {
		return fmt.Errorf("%w: id %q is reserved or empty", ErrInvalidNodeID, id)
	}
	if fn == nil {
		return fmt.Errorf("%w: node %q has a nil handler", ErrInvalidNodeID, id)
	}
	if _, ok := b.nodes[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, id)
	}
	n := &node[S]{id: id, fn: fn}
	for _, opt := range opts {
		opt(n)
	}
	b.nodes[id] = n
	b.order = append(b.order, id)
	return nil
}

// AddEdge adds an unconditional transition. The target may be END or a node
// registered later; targets are resolved by Compile.
func (b *Builder[S]) AddEdge(from, to string) error {
	if _, ok := b.nodes[from]; !ok {
		return fmt.Errorf("%w: edge source %q", ErrUnknownNode, from)
	}
	b.edges = append(b.edges, Edge{From: from, To: to})
	return nil
}

// AddConditionalEdges attaches a router to from. After from runs, the router
// picks a label and the run continues at routes[label].
func (b *Builder[S]) AddConditionalEdges(from string, router Router[S], routes Routes) error {
	if _, ok := b.nodes[from]; !ok {
		return fmt.Errorf("%w: router source %q", ErrUnknownNode, from)
	}
	if router == nil {
		return fmt.Errorf("%w: node %q has a nil router", ErrInvalidNodeID, from)
	}
	if _, ok := b.conditional[from]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateRouter, from)
	}
	b.conditional[from] = &conditionalEdge[S]{from: from, router: router, routes: routes.clone()}
	return nil
}

// SetEntryPoint names the first node of every run. It is validated by Compile
// so builder calls may come in any order.
func (b *Builder[S]) SetEntryPoint(id string) {
	b.entry = id
}

// SetMerge sets the graph-wide merge used for multi-node waves whose
// convergence targets do not declare their own.
func (b *Builder[S]) SetMerge(fn MergeFunc[S]) {
	b.merge = fn
}

// SetClone sets how a state is copied for parallel branches. States that
// implement Cloner do not need it.
func (b *Builder[S]) SetClone(fn func(S) S) {
	b.clone = fn
}

// Use appends graph-wide middleware, applied outside any per-node middleware.
func (b *Builder[S]) Use(mw ...Middleware[S]) {
	b.middleware = append(b.middleware, mw...)
}
