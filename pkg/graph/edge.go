package graph

import (
	"context"
	"sort"
)

// END is the terminal pseudo-node. A transition that targets END finishes
// its branch of the run.
const END = "__end__"

// Label is the token a router returns to pick a route.
type Label string

// Routes maps router labels to target node ids (or END).
type Routes map[Label]string

// Labels returns the route keys in sorted order.
func (r Routes) Labels() []Label {
	out := make([]Label, 0, len(r))
	for l := range r {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r Routes) clone() Routes {
	out := make(Routes, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Router picks the outgoing route for a node from that node's output state.
type Router[S any] interface {
	Route(ctx context.Context, state S) (Label, error)
}

// RouterFunc adapts a plain function to the Router interface.
type RouterFunc[S any] func(ctx context.Context, state S) (Label, error)

func (f RouterFunc[S]) Route(ctx context.Context, state S) (Label, error) { return f(ctx, state) }

// LabelSet is implemented by routers that declare the closed set of labels
// they can return. Compile checks the set against the route table.
type LabelSet interface {
	Labels() []Label
}

// Enum wraps fn into a router that declares labels as its complete output set.
func Enum[S any](fn func(ctx context.Context, state S) (Label, error), labels ...Label) Router[S] {
	return &enumRouter[S]{fn: fn, labels: append([]Label(nil), labels...)}
}

type enumRouter[S any] struct {
	fn     func(ctx context.Context, state S) (Label, error)
	labels []Label
}

func (r *enumRouter[S]) Route(ctx context.Context, state S) (Label, error) { return r.fn(ctx, state) }
func (r *enumRouter[S]) Labels() []Label                                 { return append([]Label(nil), r.labels...) }

// Edge is an unconditional transition.
type Edge struct {
	From string
	To   string
}

// conditionalEdge is a router plus its label table, attached to one node.
type conditionalEdge[S any] struct {
	from   string
	router Router[S]
	routes Routes
}
