package graph

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// NarrationSink receives a single human-readable narration line.
type NarrationSink func(line string)

// NarrationOption configures a NarrationObserver.
type NarrationOption func(*NarrationObserver)

// WithNames sets display names for nodes.
func WithNames(names Names) NarrationOption {
	return func(n *NarrationObserver) { n.names = names }
}

// WithSink sets the output destination for narration lines.
func WithSink(s NarrationSink) NarrationOption {
	return func(n *NarrationObserver) { n.sink = s }
}

// Progress is a snapshot of run progress.
type Progress struct {
	Waves        int
	NodesVisited int
	Errors       int
	Elapsed      time.Duration
}

// NarrationObserver turns run events into one line per wave, route and
// terminal event. With no options it writes to slog.Info.
type NarrationObserver struct {
	mu    sync.Mutex
	names Names
	sink  NarrationSink

	start        time.Time
	waves        int
	nodesVisited int
	errors       int
}

// NewNarrationObserver creates a narration observer.
func NewNarrationObserver(opts ...NarrationOption) *NarrationObserver {
	n := &NarrationObserver{
		sink: func(line string) { slog.Info(line) },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Progress returns a snapshot of the current progress.
func (n *NarrationObserver) Progress() Progress {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := Progress{Waves: n.waves, NodesVisited: n.nodesVisited, Errors: n.errors}
	if !n.start.IsZero() {
		p.Elapsed = time.Since(n.start)
	}
	return p
}

// OnEvent implements Observer.
func (n *NarrationObserver) OnEvent(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch e.Type {
	case EventRunStart:
		n.start = time.Now()
		n.emit(fmt.Sprintf("Starting at %s", n.names.Of(e.Node)))

	case EventWaveStart:
		n.waves = e.Wave
		display := make([]string, len(e.Nodes))
		for i, id := range e.Nodes {
			display[i] = n.names.Of(id)
		}
		n.emit(fmt.Sprintf("Wave %d: %s", e.Wave, strings.Join(display, ", ")))

	case EventNodeExit:
		n.nodesVisited++
		if e.Error != nil {
			n.errors++
			n.emit(fmt.Sprintf("Failed at %s: %v", n.names.Of(e.Node), e.Error))
		} else if e.Elapsed > 0 {
			n.emit(fmt.Sprintf("Completed %s (%s)", n.names.Of(e.Node), fmtDuration(e.Elapsed)))
		} else {
			n.emit(fmt.Sprintf("Completed %s", n.names.Of(e.Node)))
		}

	case EventRoute:
		target := e.Target
		if target == END {
			target = "END"
		} else {
			target = n.names.Of(target)
		}
		n.emit(fmt.Sprintf("%s routed %q to %s", n.names.Of(e.Node), e.Label, target))

	case EventEndReached:
		n.emit(fmt.Sprintf("%s reached END", n.names.Of(e.Node)))

	case EventRunComplete:
		elapsed := time.Duration(0)
		if !n.start.IsZero() {
			elapsed = time.Since(n.start)
		}
		n.emit(fmt.Sprintf("Run complete: %d waves, %d nodes in %s", e.Wave, n.nodesVisited, fmtDuration(elapsed)))

	case EventRunError:
		n.emit(fmt.Sprintf("Run failed at wave %d: %v", e.Wave, e.Error))
	}
}

func (n *NarrationObserver) emit(line string) {
	n.sink(line)
}

func fmtDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	s := d.Seconds()
	if s < 60 {
		return fmt.Sprintf("%.1fs", s)
	}
	m := int(s) / 60
	sec := int(s) % 60
	return fmt.Sprintf("%dm%ds", m, sec)
}
