package pipeline

import (
	"fmt"

	"wavegraph/pkg/graph"
)

// Build validates the definition and turns it into a graph builder. A nil
// registry means NewRegistry().
func (d *Definition) Build(reg Registry) (*graph.Builder[graph.Values], error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if reg == nil {
		reg = NewRegistry()
	}

	b := graph.NewBuilder[graph.Values]()
	for _, nd := range d.Nodes {
		factory := reg.lookup(nd)
		if factory == nil {
			return nil, fmt.Errorf("no node factory for family %q (node %q)", nd.Family, nd.Name)
		}
		fn, err := factory(nd)
		if err != nil {
			return nil, err
		}
		var opts []graph.NodeOption[graph.Values]
		if m := merges[nd.Merge]; m != nil {
			opts = append(opts, graph.WithMerge(m))
		}
		if err := b.AddNode(nd.Name, fn, opts...); err != nil {
			return nil, err
		}
	}

	for _, e := range d.Edges {
		if err := b.AddEdge(e.From, d.target(e.To)); err != nil {
			return nil, err
		}
	}

	for _, rd := range d.Routers {
		router, err := newExprRouter(rd)
		if err != nil {
			return nil, err
		}
		routes := make(graph.Routes, len(rd.Routes))
		for label, to := range rd.Routes {
			routes[graph.Label(label)] = d.target(to)
		}
		if err := b.AddConditionalEdges(rd.From, router, routes); err != nil {
			return nil, err
		}
	}

	b.SetEntryPoint(d.Start)
	return b, nil
}

// Compile builds the definition and compiles it into a graph named after the
// pipeline.
func (d *Definition) Compile(reg Registry, opts ...graph.CompileOption) (*graph.CompiledGraph[graph.Values], error) {
	b, err := d.Build(reg)
	if err != nil {
		return nil, err
	}
	return b.Compile(append([]graph.CompileOption{graph.WithName(d.Pipeline)}, opts...)...)
}

// RunOptions returns the run options carried by the definition itself.
func (d *Definition) RunOptions() []graph.RunOption {
	var opts []graph.RunOption
	if d.RecursionLimit > 0 {
		opts = append(opts, graph.WithRecursionLimit(d.RecursionLimit))
	}
	return opts
}
