package format

import (
	"encoding/json"
	"fmt"

	"wavegraph/pkg/graph"
)

const maxValueWidth = 60

// Trace renders the steps of a run, one row per executed node, with the
// wave count and END status in the footer.
func Trace(res *graph.Result[graph.Values], names graph.Names, m Mode) string {
	t := NewTable(m, "Wave", "Node", "Name")
	for _, s := range res.Trace {
		t.Row(s.Wave, s.Node, names.Of(s.Node))
	}
	status := "stopped"
	if res.Ended {
		status = "ended"
	}
	t.Footer(res.Waves, fmt.Sprintf("%d steps", len(res.Trace)), status)
	t.AlignRight(1)
	return t.String()
}

// State renders a state as key/value rows sorted by key. Values are shown as
// compact JSON and truncated.
func State(v graph.Values, m Mode) string {
	t := NewTable(m, "Key", "Value")
	for _, k := range v.Keys() {
		t.Row(k, Truncate(compact(v[k]), maxValueWidth))
	}
	return t.String()
}

func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
