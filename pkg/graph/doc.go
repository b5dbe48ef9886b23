// Package graph is an in-process workflow engine for directed graphs.
//
// A Builder collects nodes (NodeFunc handlers), static edges and
// conditional edges (a Router plus a label table). Compile validates the
// draft, reporting every problem at once, and freezes it into a
// CompiledGraph that can be run any number of times, concurrently.
//
// A run proceeds in waves. All nodes of a wave run in parallel on copies of
// the same input state; their outputs are merged in node-id order, so the
// result does not depend on which goroutine finishes first. A node with
// several incoming static edges runs once all of its predecessors that can
// still fire have done so. Reaching END finishes a branch; the run finishes
// when nothing is left to schedule, and fails once it needs more waves than
// its recursion limit.
//
//	b := graph.NewBuilder[graph.Values]()
//	_ = b.AddNode("fetch", fetch)
//	_ = b.AddNode("review", review)
//	_ = b.AddEdge("fetch", "review")
//	_ = b.AddConditionalEdges("review", graph.RouterFunc[graph.Values](decide),
//		graph.Routes{"retry": "fetch", "done": graph.END})
//	b.SetEntryPoint("fetch")
//	g, err := b.Compile()
//	...
//	final, err := g.Invoke(ctx, graph.Values{"attempt": 0}, graph.WithRecursionLimit(10))
package graph
