package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Construction-time errors, returned by Builder methods.
var (
	// ErrDuplicateNode is returned when a node id is registered twice.
	ErrDuplicateNode = errors.New("graph: duplicate node")

	// ErrUnknownNode is returned when a builder call references a node that
	// has not been registered.
	ErrUnknownNode = errors.New("graph: node not found")

	// ErrDuplicateRouter is returned when a node gets a second conditional edge.
	ErrDuplicateRouter = errors.New("graph: node already has a router")

	// ErrInvalidNodeID is returned for empty ids, the END sentinel used as a
	// node id, or a nil handler.
	ErrInvalidNodeID = errors.New("graph: invalid node")
)

// Compile-time problem kinds. Each Problem in a GraphValidationError unwraps
// to exactly one of these.
var (
	ErrNoEntryPoint          = errors.New("graph: no entry point")
	ErrUnknownEntryPoint     = errors.New("graph: entry point is not a registered node")
	ErrDanglingEdgeTarget    = errors.New("graph: dangling edge target")
	ErrUnreachableNode       = errors.New("graph: unreachable node")
	ErrConflictingSuccessors = errors.New("graph: conflicting successors")
	ErrUndeclaredLabel       = errors.New("graph: route label outside router label set")
	ErrSharedState           = errors.New("graph: reference state type fans out without a clone function")
)

// Run-time errors, returned by Invoke and Run.
var (
	ErrRecursionLimit    = errors.New("graph: recursion limit exceeded")
	ErrUnknownRouteLabel = errors.New("graph: unknown route label")
	ErrCancelled         = errors.New("graph: invocation cancelled")
)

// Problem is a single validation finding.
type Problem struct {
	Kind   error
	Node   string
	Target string
	Label  Label
}

func (p Problem) Error() string {
	var b strings.Builder
	b.WriteString(p.Kind.Error())
	if p.Node != "" {
		fmt.Fprintf(&b, ": node %q", p.Node)
	}
	if p.Label != "" {
		fmt.Fprintf(&b, " label %q", p.Label)
	}
	if p.Target != "" {
		fmt.Fprintf(&b, " target %q", p.Target)
	}
	return b.String()
}

func (p Problem) Unwrap() error { return p.Kind }

// GraphValidationError lists every problem found by Compile.
type GraphValidationError struct {
	Problems []Problem
}

func (e *GraphValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "graph: invalid graph"
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("graph: %d validation problem(s): %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes every problem so errors.Is matches any problem kind.
func (e *GraphValidationError) Unwrap() []error {
	out := make([]error, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p
	}
	return out
}

// Has reports whether at least one problem has the given kind.
func (e *GraphValidationError) Has(kind error) bool {
	for _, p := range e.Problems {
		if p.Kind == kind {
			return true
		}
	}
	return false
}

func (e *GraphValidationError) sort() {
	sort.SliceStable(e.Problems, func(i, j int) bool {
		a, b := e.Problems[i], e.Problems[j]
		if a.Kind != b.Kind {
			return a.Kind.Error() < b.Kind.Error()
		}
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.Target < b.Target
	})
}

// HandlerError reports a node handler or router that failed (or panicked).
type HandlerError struct {
	Node  string
	Wave  int
	Cause error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("graph: node %q failed at wave %d: %v", e.Node, e.Wave, e.Cause)
}

func (e *HandlerError) Unwrap() error { return e.Cause }

// RecursionLimitError is returned when a run needs more waves than allowed.
// Pending lists the nodes that would have run in the rejected wave.
type RecursionLimitError struct {
	Limit   int
	Pending []string
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("%s: limit %d reached with pending nodes %v", ErrRecursionLimit, e.Limit, e.Pending)
}

func (e *RecursionLimitError) Unwrap() error { return ErrRecursionLimit }

// UnknownRouteLabelError is returned when a router yields a label that has
// no entry in its route table.
type UnknownRouteLabelError struct {
	Node  string
	Wave  int
	Label Label
	Known []Label
}

func (e *UnknownRouteLabelError) Error() string {
	return fmt.Sprintf("%s: node %q returned %q at wave %d (known: %v)", ErrUnknownRouteLabel, e.Node, e.Label, e.Wave, e.Known)
}

func (e *UnknownRouteLabelError) Unwrap() error { return ErrUnknownRouteLabel }

func cancelledError(wave int, cause error) error {
	return fmt.Errorf("%w before wave %d: %w", ErrCancelled, wave, cause)
}

func cancelledDuringError(wave int, cause error) error {
	return fmt.Errorf("%w during wave %d: %w", ErrCancelled, wave, cause)
}
