package graph

import "context"

// NodeFunc is the unit of work at a node. It receives the current state and
// returns the next one. It may block on I/O; it must not retain the input
// after returning if the state holds shared references.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// NodeOption configures a node at registration time.
type NodeOption[S any] func(*node[S])

// WithMerge sets the merge function used when parallel branches converge on
// this node.
func WithMerge[S any](fn MergeFunc[S]) NodeOption[S] {
	return func(n *node[S]) { n.merge = fn }
}

// WithMiddleware wraps the node handler. The first middleware is the
// outermost wrapper.
func WithMiddleware[S any](mw ...Middleware[S]) NodeOption[S] {
	return func(n *node[S]) { n.middleware = append(n.middleware, mw...) }
}

type node[S any] struct {
	id         string
	fn         NodeFunc[S]
	merge      MergeFunc[S]
	middleware []Middleware[S]
}
