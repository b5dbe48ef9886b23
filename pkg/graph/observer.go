package graph

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType classifies run events for filtering and routing.
type EventType string

const (
	EventRunStart    EventType = "run_start"
	EventWaveStart   EventType = "wave_start"
	EventNodeEnter   EventType = "node_enter"
	EventNodeExit    EventType = "node_exit"
	EventRoute       EventType = "route"
	EventEndReached  EventType = "end_reached"
	EventWaveEnd     EventType = "wave_end"
	EventRunComplete EventType = "run_complete"
	EventRunError    EventType = "run_error"
)

// Event is a single observation from a run. Metadata is the
// forward-compatible extension point.
type Event struct {
	Type     EventType
	RunID    string
	Wave     int
	Node     string
	Nodes    []string // wave membership, set on wave events
	Label    Label
	Target   string
	Elapsed  time.Duration
	Error    error
	Metadata map[string]any
}

// Observer receives run events. Events from nodes of the same wave arrive
// concurrently, so implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// MultiObserver fans out events to multiple observers.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(e Event) {
	for _, obs := range m {
		if obs != nil {
			obs.OnEvent(e)
		}
	}
}

// LogObserver writes run events as structured slog lines.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) OnEvent(e Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("event", string(e.Type)),
	}
	if e.RunID != "" {
		attrs = append(attrs, slog.String("run_id", e.RunID))
	}
	if e.Wave > 0 {
		attrs = append(attrs, slog.Int("wave", e.Wave))
	}
	if e.Node != "" {
		attrs = append(attrs, slog.String("node", e.Node))
	}
	if len(e.Nodes) > 0 {
		attrs = append(attrs, slog.Any("nodes", e.Nodes))
	}
	if e.Label != "" {
		attrs = append(attrs, slog.String("label", string(e.Label)))
	}
	if e.Target != "" {
		attrs = append(attrs, slog.String("target", e.Target))
	}
	if e.Elapsed > 0 {
		attrs = append(attrs, slog.Duration("elapsed", e.Elapsed))
	}
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
		logger.LogAttrs(context.Background(), slog.LevelWarn, "run", attrs...)
		return
	}

	level := slog.LevelDebug
	switch e.Type {
	case EventRunStart, EventRunComplete:
		level = slog.LevelInfo
	}
	logger.LogAttrs(context.Background(), level, "run", attrs...)
}

// TraceCollector accumulates events in memory for post-run analysis.
// Safe for concurrent use.
type TraceCollector struct {
	mu     sync.Mutex
	events []Event
}

func (t *TraceCollector) OnEvent(e Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

// Events returns a copy of all collected events.
func (t *TraceCollector) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Reset clears collected events.
func (t *TraceCollector) Reset() {
	t.mu.Lock()
	t.events = nil
	t.mu.Unlock()
}

// EventsOfType returns only events matching the given type.
func (t *TraceCollector) EventsOfType(typ EventType) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Event
	for _, e := range t.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func emitEvent(obs Observer, e Event) {
	if obs != nil {
		obs.OnEvent(e)
	}
}

// composeObservers returns a single observer from two possibly-nil observers.
func composeObservers(a, b Observer) Observer {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return MultiObserver{a, b}
}
