package format_test

import (
	"strings"
	"testing"
	"time"

	"wavegraph/internal/format"
	"wavegraph/pkg/graph"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII, "Wave", "Node")
	tb.Row(1, "fetch")
	tb.Row(2, "parse")
	out := tb.String()

	for _, want := range []string{"WAVE", "fetch", "parse"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_BasicTable(t *testing.T) {
	tb := format.NewTable(format.Markdown, "Key", "Value")
	tb.Row("attempts", 2)
	out := tb.String()

	if !strings.Contains(out, "| Key") {
		t.Errorf("expected markdown header with '| Key':\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected markdown separator '---':\n%s", out)
	}
}

func TestTrace(t *testing.T) {
	res := &graph.Result[graph.Values]{
		Trace: []graph.Step{{Node: "a", Wave: 1}, {Node: "b", Wave: 2}, {Node: "c", Wave: 2}},
		Waves: 2,
		Ended: true,
	}
	out := format.Trace(res, graph.Names{"a": "Fetch"}, format.Markdown)

	for _, want := range []string{"Fetch", "| b", "3 steps", "ended"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestState(t *testing.T) {
	out := format.State(graph.Values{
		"notes": []any{"one", "two"},
		"long":  strings.Repeat("x", 100),
	}, format.Markdown)

	if !strings.Contains(out, `["one","two"]`) {
		t.Errorf("expected compact JSON value:\n%s", out)
	}
	if !strings.Contains(out, "...") {
		t.Errorf("expected truncated long value:\n%s", out)
	}
	if strings.Index(out, "long") > strings.Index(out, "notes") {
		t.Errorf("expected keys sorted:\n%s", out)
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{5 * time.Second, "5s"},
		{125 * time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		if got := format.FmtDuration(tt.d); got != tt.want {
			t.Errorf("FmtDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := format.Truncate("abcdef", 5); got != "ab..." {
		t.Errorf("Truncate = %q, want ab...", got)
	}
	if got := format.Truncate("abc", 5); got != "abc" {
		t.Errorf("Truncate = %q, want abc", got)
	}
}
