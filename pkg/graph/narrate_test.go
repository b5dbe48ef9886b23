package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// collector gathers narration lines for assertion.
type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) sink(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func TestNarrationObserver_ZeroConfig(t *testing.T) {
	obs := NewNarrationObserver()
	if obs == nil {
		t.Fatal("NewNarrationObserver() returned nil")
	}
	if p := obs.Progress(); p.NodesVisited != 0 || p.Waves != 0 {
		t.Errorf("fresh observer progress = %+v", p)
	}
}

func TestNarrationObserver_WaveAndNodes(t *testing.T) {
	c := &collector{}
	obs := NewNarrationObserver(WithNames(Names{"a": "Fetch", "b": "Parse"}), WithSink(c.sink))

	obs.OnEvent(Event{Type: EventWaveStart, Wave: 1, Nodes: []string{"a", "b"}})
	obs.OnEvent(Event{Type: EventNodeExit, Node: "a", Elapsed: 150 * time.Millisecond})
	obs.OnEvent(Event{Type: EventNodeExit, Node: "b", Elapsed: 2 * time.Second})

	lines := c.all()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "Wave 1: Fetch, Parse" {
		t.Errorf("line 0: %q", lines[0])
	}
	if !strings.Contains(lines[1], "Completed Fetch (150ms)") {
		t.Errorf("line 1: %q", lines[1])
	}
	if !strings.Contains(lines[2], "2.0s") {
		t.Errorf("line 2: %q, want duration '2.0s'", lines[2])
	}
	if p := obs.Progress(); p.NodesVisited != 2 || p.Waves != 1 {
		t.Errorf("progress = %+v", p)
	}
}

func TestNarrationObserver_RouteAndEnd(t *testing.T) {
	c := &collector{}
	obs := NewNarrationObserver(WithSink(c.sink))

	obs.OnEvent(Event{Type: EventRoute, Node: "judge", Label: "done", Target: END})
	obs.OnEvent(Event{Type: EventEndReached, Node: "judge"})

	lines := c.all()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if lines[0] != `judge routed "done" to END` {
		t.Errorf("line 0: %q", lines[0])
	}
	if lines[1] != "judge reached END" {
		t.Errorf("line 1: %q", lines[1])
	}
}

func TestNarrationObserver_Errors(t *testing.T) {
	c := &collector{}
	obs := NewNarrationObserver(WithSink(c.sink))

	obs.OnEvent(Event{Type: EventNodeExit, Node: "x", Error: errors.New("node failed")})
	obs.OnEvent(Event{Type: EventRunError, Wave: 4, Error: errors.New("timeout")})

	lines := c.all()
	if !strings.Contains(lines[0], "Failed at x: node failed") {
		t.Errorf("line 0: %q", lines[0])
	}
	if !strings.Contains(lines[1], "Run failed at wave 4: timeout") {
		t.Errorf("line 1: %q", lines[1])
	}
	if p := obs.Progress(); p.Errors != 1 {
		t.Errorf("Errors = %d, want 1", p.Errors)
	}
}

func TestNarrationObserver_SilentEvents(t *testing.T) {
	c := &collector{}
	obs := NewNarrationObserver(WithSink(c.sink))

	obs.OnEvent(Event{Type: EventNodeEnter, Node: "a"})
	obs.OnEvent(Event{Type: EventWaveEnd, Wave: 1})

	if n := len(c.all()); n != 0 {
		t.Errorf("node_enter and wave_end should be silent, got %d lines", n)
	}
}

func TestNarrationObserver_FullRun(t *testing.T) {
	c := &collector{}
	var dCalls atomic.Int32
	g := mustCompile(t, diamond(t, &dCalls))

	obs := NewNarrationObserver(WithSink(c.sink))
	if _, err := g.Run(context.Background(), Values{}, WithRunObserver(obs)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := c.all()
	if lines[0] != "Starting at a" {
		t.Errorf("first line: %q", lines[0])
	}
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "Run complete: 3 waves, 4 nodes") {
		t.Errorf("last line: %q", last)
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.5s"},
		{65 * time.Second, "1m5s"},
	}
	for _, tt := range tests {
		if got := fmtDuration(tt.d); got != tt.want {
			t.Errorf("fmtDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
