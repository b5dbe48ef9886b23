package mcp

import (
	"sync"
	"time"

	"wavegraph/pkg/graph"
)

// Signal is one run event as exposed to MCP clients.
type Signal struct {
	Timestamp string            `json:"ts"`
	Event     string            `json:"event"`
	Pipeline  string            `json:"pipeline"`
	RunID     string            `json:"run_id"`
	Wave      int               `json:"wave,omitempty"`
	Node      string            `json:"node,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// SignalBus is a thread-safe, append-only signal log shared by every run of
// a server.
type SignalBus struct {
	mu      sync.Mutex
	signals []Signal
}

// NewSignalBus returns a new SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{}
}

// Emit appends a signal, stamping it with the current time.
func (b *SignalBus) Emit(s Signal) {
	s.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	b.mu.Lock()
	b.signals = append(b.signals, s)
	b.mu.Unlock()
}

// Since returns a copy of signals from index idx onward. If idx is negative it is clamped to 0.
// If idx >= len(signals), returns nil.
func (b *SignalBus) Since(idx int) []Signal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.signals) {
		return nil
	}
	out := make([]Signal, len(b.signals)-idx)
	copy(out, b.signals[idx:])
	return out
}

// Len returns the number of signals in the bus.
func (b *SignalBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.signals)
}

// Observer returns a graph.Observer that forwards the events of one pipeline
// to the bus. Node enter events are dropped; exits carry the elapsed time.
func (b *SignalBus) Observer(pipeline string) graph.Observer {
	return graph.ObserverFunc(func(e graph.Event) {
		if e.Type == graph.EventNodeEnter {
			return
		}
		meta := make(map[string]string)
		if e.Label != "" {
			meta["label"] = string(e.Label)
		}
		if e.Target != "" {
			meta["target"] = e.Target
		}
		if e.Elapsed > 0 {
			meta["elapsed"] = e.Elapsed.String()
		}
		if e.Error != nil {
			meta["error"] = e.Error.Error()
		}
		if len(meta) == 0 {
			meta = nil
		}
		b.Emit(Signal{
			Event:    string(e.Type),
			Pipeline: pipeline,
			RunID:    e.RunID,
			Wave:     e.Wave,
			Node:     e.Node,
			Meta:     meta,
		})
	})
}
