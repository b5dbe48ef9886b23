package graph

import (
	"fmt"
	"strings"
	"unicode"
)

// Names maps node ids to display names.
type Names map[string]string

// Of returns the display name of id, or id itself.
func (n Names) Of(id string) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return id
}

// Render generates a Mermaid flowchart of a compiled graph. Static edges are
// solid arrows, conditional routes are dotted arrows labelled with the route
// label. names may be nil.
func Render[S any](g *CompiledGraph[S], names Names) string {
	ids := mermaidIDs(g.order)
	var b strings.Builder
	b.WriteString("graph TD\n")
	fmt.Fprintf(&b, "    %s([start]) --> %s\n", startID, ids[g.entry])

	endUsed := false
	for _, id := range g.order {
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", ids[id], escapeLabel(names.Of(id)))
	}
	for _, id := range g.order {
		for _, to := range g.static[id] {
			endUsed = endUsed || to == END
			fmt.Fprintf(&b, "    %s --> %s\n", ids[id], ids[to])
		}
		if ce, ok := g.routers[id]; ok {
			for _, label := range ce.routes.Labels() {
				to := ce.routes[label]
				endUsed = endUsed || to == END
				fmt.Fprintf(&b, "    %s -.->|%s| %s\n", ids[id], escapeLabel(string(label)), ids[to])
			}
		}
	}
	if endUsed {
		fmt.Fprintf(&b, "    %s([end])\n", endID)
	}
	return b.String()
}

const (
	startID = "__start__"
	endID   = "__end__"
)

// mermaidIDs maps node ids (and END) to unique Mermaid identifiers. Ids are
// sanitized; a sanitized id already taken, or equal to a marker, gets a
// numeric suffix.
func mermaidIDs(order []string) map[string]string {
	ids := map[string]string{END: endID}
	taken := map[string]bool{startID: true, endID: true}
	for _, id := range order {
		base := sanitizeID(id)
		m := base
		for n := 2; taken[m]; n++ {
			m = fmt.Sprintf("%s_%d", base, n)
		}
		taken[m] = true
		ids[id] = m
	}
	return ids
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
}

func escapeLabel(s string) string {
	r := strings.NewReplacer("\"", "#quot;", "|", "#124;")
	return r.Replace(s)
}
