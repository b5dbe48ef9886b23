package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"wavegraph/pkg/graph"
)

func loadTestdata(t *testing.T, name string) *Definition {
	t.Helper()
	d, err := LoadFromPath(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFromPath(%q): %v", name, err)
	}
	return d
}

func TestLoad_ReviewYAML(t *testing.T) {
	d := loadTestdata(t, "review.yaml")
	if d.Pipeline != "review" {
		t.Errorf("Pipeline = %q, want review", d.Pipeline)
	}
	if len(d.Nodes) != 2 || len(d.Edges) != 1 || len(d.Routers) != 1 {
		t.Errorf("unexpected shape: %d nodes, %d edges, %d routers", len(d.Nodes), len(d.Edges), len(d.Routers))
	}
	if d.RecursionLimit != 10 {
		t.Errorf("RecursionLimit = %d, want 10", d.RecursionLimit)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_HCLMatchesYAML(t *testing.T) {
	fromYAML := loadTestdata(t, "review.yaml")
	fromHCL := loadTestdata(t, "review.hcl")
	if diff := cmp.Diff(fromYAML, fromHCL); diff != "" {
		t.Errorf("HCL and YAML definitions differ (-yaml +hcl):\n%s", diff)
	}
}

func TestLoad_SniffsFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"json", `{"pipeline": "p", "start": "a", "nodes": [{"name": "a"}]}`},
		{"yaml", "pipeline: p\nstart: a\nnodes:\n  - name: a\n"},
		{"hcl", "pipeline \"p\" {\n  start = \"a\"\n  node \"a\" {}\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Load([]byte(tt.data), "")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if d.Pipeline != "p" || d.Start != "a" || len(d.Nodes) != 1 {
				t.Errorf("unexpected definition: %+v", d)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join("testdata", "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load([]byte("{not json"), ".json"); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := Load([]byte("pipeline \"p\" {"), ".hcl"); err == nil {
		t.Error("expected error for malformed HCL")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	d := loadTestdata(t, "broken.yaml")
	err := d.Validate()
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("expected a joined error, got %T", err)
	}
	if n := len(joined.Unwrap()); n != 10 {
		t.Errorf("got %d problems, want 10:\n%v", n, err)
	}
	for _, want := range []string{
		"pipeline name is required",
		`duplicate node name "a"`,
		`node name "_done" is reserved`,
		`unknown merge "fancy"`,
		"family append needs key and value",
		`start node "missing" not found`,
		`edge #0 references unknown target node "ghost"`,
		`edge #1 references unknown source node "nowhere"`,
		`router "b": expr is required`,
		`router "b": at least one route is required`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing problem %q", want)
		}
	}
}

func TestBuild_RejectsInvalidDefinition(t *testing.T) {
	d := loadTestdata(t, "broken.yaml")
	if _, err := d.Build(nil); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestRun_ReviewLoop(t *testing.T) {
	for _, file := range []string{"review.yaml", "review.hcl"} {
		t.Run(file, func(t *testing.T) {
			d := loadTestdata(t, file)
			g, err := d.Compile(nil)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if g.Name() != "review" {
				t.Errorf("Name = %q, want review", g.Name())
			}

			res, err := g.Run(context.Background(), graph.Values{}, d.RunOptions()...)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.State.Int("attempts") != 2 {
				t.Errorf("attempts = %d, want 2", res.State.Int("attempts"))
			}
			if diff := cmp.Diff([]any{"review 1", "review 2"}, res.State["notes"]); diff != "" {
				t.Errorf("notes mismatch (-want +got):\n%s", diff)
			}
			if res.Waves != 4 || !res.Ended {
				t.Errorf("Waves = %d Ended = %v, want 4 true", res.Waves, res.Ended)
			}
		})
	}
}

func TestRun_DiamondConcatMerge(t *testing.T) {
	d := loadTestdata(t, "diamond.json")
	g, err := d.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, err := g.Invoke(context.Background(), graph.Values{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if diff := cmp.Diff([]any{"left", "right", "join"}, got["log"]); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
	if got["started"] != true {
		t.Errorf("started = %v, want true", got["started"])
	}
}

func TestRun_RecursionLimitFromDefinition(t *testing.T) {
	d := &Definition{
		Pipeline: "spin",
		Nodes: []NodeDef{
			{Name: "tick", Family: FamilySet, Set: map[string]string{"n": "(state.n ?? 0) + 1"}},
		},
		Edges:          []EdgeDef{{From: "tick", To: "tick"}},
		Start:          "tick",
		RecursionLimit: 3,
	}
	g, err := d.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	_, err = g.Invoke(context.Background(), graph.Values{}, d.RunOptions()...)
	var rle *graph.RecursionLimitError
	if !errors.As(err, &rle) || rle.Limit != 3 {
		t.Fatalf("expected recursion limit 3, got %v", err)
	}
}

func TestBuild_UnknownFamily(t *testing.T) {
	d := &Definition{
		Pipeline: "p",
		Nodes:    []NodeDef{{Name: "a", Family: "teleport"}},
		Start:    "a",
	}
	_, err := d.Build(nil)
	if err == nil || !strings.Contains(err.Error(), `no node factory for family "teleport"`) {
		t.Fatalf("expected missing factory error, got %v", err)
	}
}

func TestBuild_RegistryBindsByFamilyOrName(t *testing.T) {
	reg := NewRegistry()
	reg["greet"] = func(def NodeDef) (graph.NodeFunc[graph.Values], error) {
		return func(_ context.Context, s graph.Values) (graph.Values, error) {
			s["greeting"] = "hello " + def.Message
			return s, nil
		}, nil
	}
	reg["shout"] = func(NodeDef) (graph.NodeFunc[graph.Values], error) {
		return func(_ context.Context, s graph.Values) (graph.Values, error) {
			s["greeting"] = strings.ToUpper(s.String("greeting"))
			return s, nil
		}, nil
	}
	d := &Definition{
		Pipeline: "p",
		Nodes: []NodeDef{
			{Name: "hi", Family: "greet", Message: "world"},
			{Name: "shout"},
		},
		Edges: []EdgeDef{{From: "hi", To: "shout"}},
		Start: "hi",
	}
	g, err := d.Compile(reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, err := g.Invoke(context.Background(), graph.Values{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got.String("greeting") != "HELLO WORLD" {
		t.Errorf("greeting = %q", got.String("greeting"))
	}
}

func TestBuild_RouterLabelsAreClosed(t *testing.T) {
	d := loadTestdata(t, "review.yaml")
	g, err := d.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	routes, ok := g.Routes("review")
	if !ok {
		t.Fatal("review has no router")
	}
	want := graph.Routes{"accept": graph.END, "revise": "draft"}
	if diff := cmp.Diff(want, routes); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_BadExpression(t *testing.T) {
	d := &Definition{
		Pipeline: "p",
		Nodes:    []NodeDef{{Name: "a", Family: FamilySet, Set: map[string]string{"x": "state.("}}},
		Start:    "a",
	}
	if _, err := d.Build(nil); err == nil {
		t.Fatal("expected expression compile error")
	}
}

func TestRun_RouterRejectsNonStringLabel(t *testing.T) {
	d := &Definition{
		Pipeline: "p",
		Nodes:    []NodeDef{{Name: "a"}},
		Routers:  []RouterDef{{From: "a", Expr: "42", Routes: map[string]string{"42": "_done"}}},
		Start:    "a",
	}
	g, err := d.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	_, err = g.Invoke(context.Background(), graph.Values{})
	var he *graph.HandlerError
	if !errors.As(err, &he) || !strings.Contains(err.Error(), "want string or bool") {
		t.Fatalf("expected router type error, got %v", err)
	}
}

func TestRun_BoolRouter(t *testing.T) {
	d := &Definition{
		Pipeline: "p",
		Nodes: []NodeDef{
			{Name: "check"},
			{Name: "big", Family: FamilySet, Set: map[string]string{"size": "'big'"}},
			{Name: "small", Family: FamilySet, Set: map[string]string{"size": "'small'"}},
		},
		Routers: []RouterDef{{
			From:   "check",
			Expr:   "state.n > 10",
			Routes: map[string]string{"true": "big", "false": "small"},
		}},
		Start: "check",
	}
	g, err := d.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for n, want := range map[int]string{3: "small", 30: "big"} {
		got, err := g.Invoke(context.Background(), graph.Values{"n": n})
		if err != nil {
			t.Fatalf("Invoke(n=%d): %v", n, err)
		}
		if got.String("size") != want {
			t.Errorf("n=%d: size = %q, want %q", n, got.String("size"), want)
		}
	}
}

func TestRun_FailFamily(t *testing.T) {
	d := &Definition{
		Pipeline: "p",
		Nodes:    []NodeDef{{Name: "a", Family: FamilyFail, Message: "quota exceeded"}},
		Start:    "a",
	}
	g, err := d.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	_, err = g.Invoke(context.Background(), graph.Values{})
	if !errors.Is(err, ErrNodeFailed) || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected ErrNodeFailed with message, got %v", err)
	}
}

func TestRun_AppendRejectsNonList(t *testing.T) {
	d := &Definition{
		Pipeline: "p",
		Nodes:    []NodeDef{{Name: "a", Family: FamilyAppend, Key: "k", Value: "1"}},
		Start:    "a",
	}
	g, err := d.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := g.Invoke(context.Background(), graph.Values{"k": "scalar"}); err == nil {
		t.Fatal("expected error appending to a scalar")
	}
}

func TestSet_EvaluatesAgainstInputSnapshot(t *testing.T) {
	fn, err := setFamily(NodeDef{Name: "swap", Set: map[string]string{"a": "state.b", "b": "state.a"}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := fn(context.Background(), graph.Values{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	if got.Int("a") != 2 || got.Int("b") != 1 {
		t.Errorf("swap = %v, want a=2 b=1", got)
	}
}

func TestDefinition_NamesAndYAML(t *testing.T) {
	d := loadTestdata(t, "review.yaml")
	want := graph.Names{"draft": "Write draft", "review": "Review draft"}
	if diff := cmp.Diff(want, d.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	data, err := d.YAML()
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	back, err := Load(data, ".yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(d, back); diff != "" {
		t.Errorf("YAML did not reload to the same definition (-orig +reloaded):\n%s", diff)
	}
}
