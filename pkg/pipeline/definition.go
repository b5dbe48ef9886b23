package pipeline

import (
	"gopkg.in/yaml.v3"

	"wavegraph/pkg/graph"
)

// DefaultDone is the pseudo-node that edges and routes target to end a branch
// when a definition does not name its own.
const DefaultDone = "_done"

// Definition is the declarative form of a graph over graph.Values. Layout
// follows reading order: pipeline > nodes > edges > routers > start/done.
type Definition struct {
	Pipeline       string      `yaml:"pipeline" json:"pipeline"`
	Description    string      `yaml:"description,omitempty" json:"description,omitempty"`
	Nodes          []NodeDef   `yaml:"nodes" json:"nodes"`
	Edges          []EdgeDef   `yaml:"edges,omitempty" json:"edges,omitempty"`
	Routers        []RouterDef `yaml:"routers,omitempty" json:"routers,omitempty"`
	Start          string      `yaml:"start" json:"start"`
	Done           string      `yaml:"done,omitempty" json:"done,omitempty"`
	RecursionLimit int         `yaml:"recursion_limit,omitempty" json:"recursion_limit,omitempty"`
}

// NodeDef declares a node. Family selects the handler factory; the remaining
// fields are family parameters.
type NodeDef struct {
	Name    string            `yaml:"name" json:"name"`
	Title   string            `yaml:"title,omitempty" json:"title,omitempty"`
	Family  string            `yaml:"family,omitempty" json:"family,omitempty"`
	Set     map[string]string `yaml:"set,omitempty" json:"set,omitempty"`
	Key     string            `yaml:"key,omitempty" json:"key,omitempty"`
	Value   string            `yaml:"value,omitempty" json:"value,omitempty"`
	Message string            `yaml:"message,omitempty" json:"message,omitempty"`
	Merge   string            `yaml:"merge,omitempty" json:"merge,omitempty"`
}

// EdgeDef declares an unconditional transition. ID is optional; when set it
// must be unique.
type EdgeDef struct {
	ID   string `yaml:"id,omitempty" json:"id,omitempty"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// RouterDef attaches an expression router to a node. Expr is evaluated on
// the node's output with the state bound to `state` and must yield a string
// (or bool) label. The keys of Routes are the router's complete label set.
type RouterDef struct {
	From   string            `yaml:"from" json:"from"`
	Expr   string            `yaml:"expr" json:"expr"`
	Routes map[string]string `yaml:"routes" json:"routes"`
}

// DoneNode returns the pseudo-node name that maps to graph.END.
func (d *Definition) DoneNode() string {
	if d.Done == "" {
		return DefaultDone
	}
	return d.Done
}

// Names returns the display names declared with node titles.
func (d *Definition) Names() graph.Names {
	names := make(graph.Names)
	for _, n := range d.Nodes {
		if n.Title != "" {
			names[n.Name] = n.Title
		}
	}
	return names
}

// YAML serializes the definition back to YAML.
func (d *Definition) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}

func (d *Definition) target(name string) string {
	if name == d.DoneNode() {
		return graph.END
	}
	return name
}
