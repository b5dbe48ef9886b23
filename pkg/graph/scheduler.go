package graph

import (
	"log/slog"
	"sort"
)

// execContext is the per-run bookkeeping: wave counter, recursion limit,
// barrier arrivals and the trace. It is owned by a single Run call.
type execContext struct {
	limit int
	wave  int
	ended bool
	trace []Step

	// arrivals[target][source] is set when source delivered to target since
	// target last ran.
	arrivals map[string]map[string]bool
	// routed marks targets that received a conditional-route arrival.
	routed map[string]bool
}

func newExecContext(limit int) *execContext {
	return &execContext{
		limit:    limit,
		arrivals: make(map[string]map[string]bool),
		routed:   make(map[string]bool),
	}
}

func (ec *execContext) arrive(target, source string, routed bool) {
	set, ok := ec.arrivals[target]
	if !ok {
		set = make(map[string]bool)
		ec.arrivals[target] = set
	}
	set[source] = true
	if routed {
		ec.routed[target] = true
	}
}

// pending returns the nodes holding at least one arrival, sorted.
func (ec *execContext) pending() []string {
	out := make([]string, 0, len(ec.arrivals))
	for id := range ec.arrivals {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// resolve picks the next wave from the pending nodes and clears their
// arrivals. A node reached by a conditional route is released at once. A
// node reached by static edges waits while one of its static predecessors
// has not delivered yet and can still run, i.e. it is pending or reachable
// from other pending nodes without passing through the waiting node.
func resolve[S any](g *CompiledGraph[S], ec *execContext, logger *slog.Logger) []string {
	pending := ec.pending()
	if len(pending) == 0 {
		return nil
	}

	var ready []string
	for _, id := range pending {
		if ec.routed[id] || !blocked(g, ec, id, pending) {
			ready = append(ready, id)
		}
	}
	if len(ready) == 0 {
		logger.Debug("releasing mutually waiting nodes", "wave", ec.wave, "nodes", pending)
		ready = pending
	}

	for _, id := range ready {
		delete(ec.arrivals, id)
		delete(ec.routed, id)
	}
	return ready
}

func blocked[S any](g *CompiledGraph[S], ec *execContext, id string, pending []string) bool {
	delivered := ec.arrivals[id]
	var missing []string
	for _, p := range g.preds[id] {
		if !delivered[p] && p != id {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return false
	}

	sources := make([]string, 0, len(pending))
	for _, p := range pending {
		if p != id {
			sources = append(sources, p)
		}
	}
	reach := g.reachable(sources, id)
	for _, p := range missing {
		if reach[p] {
			return true
		}
	}
	return false
}

// reachable returns every node reachable from sources (sources included)
// over static edges and route targets, never entering avoid.
func (g *CompiledGraph[S]) reachable(sources []string, avoid string) map[string]bool {
	seen := make(map[string]bool, len(g.order))
	queue := make([]string, 0, len(sources))
	for _, s := range sources {
		if s != avoid && !seen[s] {
			seen[s] = true
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.possible[cur] {
			if next == avoid || seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return seen
}
