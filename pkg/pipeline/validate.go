package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"wavegraph/pkg/graph"
)

// ErrInvalidDefinition wraps every problem reported by Validate.
var ErrInvalidDefinition = errors.New("pipeline: invalid definition")

// Validate checks the referential integrity of the definition and reports
// every problem found:
//   - pipeline name, start node and at least one node are present
//   - node names are non-empty, unique and not reserved
//   - edges and routes reference declared nodes or the done pseudo-node
//   - each node has at most one router with a non-empty expression
//   - merge names and family parameters are well formed
//
// Graph-level checks (reachability, conflicting successors) are left to
// graph compilation.
func (d *Definition) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidDefinition}, args...)...))
	}

	if d.Pipeline == "" {
		add("pipeline name is required")
	}
	if len(d.Nodes) == 0 {
		add("at least one node is required")
	}
	if d.RecursionLimit < 0 {
		add("recursion_limit must not be negative, got %d", d.RecursionLimit)
	}

	done := d.DoneNode()
	nodeSet := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		switch {
		case n.Name == "":
			add("node name is required")
			continue
		case n.Name == done || n.Name == graph.END:
			add("node name %q is reserved", n.Name)
		case nodeSet[n.Name]:
			add("duplicate node name %q", n.Name)
		}
		nodeSet[n.Name] = true

		if _, ok := merges[n.Merge]; !ok {
			add("node %q: unknown merge %q", n.Name, n.Merge)
		}
		switch n.Family {
		case FamilySet:
			if len(n.Set) == 0 {
				add("node %q: family set needs at least one assignment", n.Name)
			}
		case FamilyAppend:
			if n.Key == "" || n.Value == "" {
				add("node %q: family append needs key and value", n.Name)
			}
		}
	}

	if d.Start == "" {
		add("start node is required")
	} else if !nodeSet[d.Start] {
		add("start node %q not found in node list", d.Start)
	}

	known := func(name string) bool { return name == done || nodeSet[name] }

	edgeIDs := make(map[string]bool, len(d.Edges))
	for i, e := range d.Edges {
		ref := e.ID
		if ref == "" {
			ref = fmt.Sprintf("#%d", i)
		} else if edgeIDs[e.ID] {
			add("duplicate edge id %q", e.ID)
		}
		edgeIDs[e.ID] = true

		if !nodeSet[e.From] {
			add("edge %s references unknown source node %q", ref, e.From)
		}
		if !known(e.To) {
			add("edge %s references unknown target node %q", ref, e.To)
		}
	}

	routed := make(map[string]bool, len(d.Routers))
	for _, r := range d.Routers {
		if !nodeSet[r.From] {
			add("router references unknown node %q", r.From)
		}
		if routed[r.From] {
			add("node %q has more than one router", r.From)
		}
		routed[r.From] = true
		if r.Expr == "" {
			add("router %q: expr is required", r.From)
		}
		if len(r.Routes) == 0 {
			add("router %q: at least one route is required", r.From)
		}
		labels := make([]string, 0, len(r.Routes))
		for label := range r.Routes {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			if to := r.Routes[label]; !known(to) {
				add("router %q: route %q references unknown target node %q", r.From, label, to)
			}
		}
	}

	return errors.Join(errs...)
}
