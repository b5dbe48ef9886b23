package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"wavegraph/internal/logging"
	"wavegraph/pkg/graph"
	"wavegraph/pkg/pipeline"
)

// Server wraps the MCP SDK server and exposes pipeline tools.
type Server struct {
	MCPServer *sdkmcp.Server
	Signals   *SignalBus
	Registry  pipeline.Registry

	runOpts []graph.RunOption
}

// NewServer creates an MCP server with pipeline and signal bus tools.
// runOpts are applied to every run before the pipeline's and the caller's
// own settings.
func NewServer(version string, reg pipeline.Registry, runOpts ...graph.RunOption) *Server {
	if reg == nil {
		reg = pipeline.NewRegistry()
	}
	s := &Server{
		Signals:  NewSignalBus(),
		Registry: reg,
		runOpts:  runOpts,
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "wavegraph", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP over the given transport until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context, t sdkmcp.Transport) error {
	return s.MCPServer.Run(ctx, t)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "validate_pipeline",
		Description: "Validate a pipeline definition (YAML, JSON or HCL) and compile its graph. Returns every problem found.",
	}, s.handleValidate)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "render_pipeline",
		Description: "Render a pipeline definition as a Mermaid flowchart.",
	}, s.handleRender)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_pipeline",
		Description: "Run a pipeline definition on an initial state and return the final state and trace. Run events are published to the signal bus.",
	}, s.handleRun)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_signals",
		Description: "Read run events from the signal bus. Returns all signals, or signals since a given index.",
	}, s.handleGetSignals)
}

// --- Tool input/output types ---

type validateInput struct {
	Definition string `json:"definition" jsonschema:"pipeline definition text"`
	Format     string `json:"format,omitempty" jsonschema:"yaml, json or hcl; detected from content when empty"`
}

type validateOutput struct {
	Valid    bool     `json:"valid"`
	Pipeline string   `json:"pipeline,omitempty"`
	Nodes    []string `json:"nodes,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

type renderInput struct {
	Definition string `json:"definition" jsonschema:"pipeline definition text"`
	Format     string `json:"format,omitempty" jsonschema:"yaml, json or hcl; detected from content when empty"`
}

type renderOutput struct {
	Mermaid string `json:"mermaid"`
}

type runInput struct {
	Definition     string         `json:"definition" jsonschema:"pipeline definition text"`
	Format         string         `json:"format,omitempty" jsonschema:"yaml, json or hcl; detected from content when empty"`
	State          map[string]any `json:"state,omitempty" jsonschema:"initial state"`
	RecursionLimit int            `json:"recursion_limit,omitempty" jsonschema:"maximum number of waves"`
	MaxParallel    int            `json:"max_parallel,omitempty" jsonschema:"maximum nodes running at once within a wave (0 = unbounded)"`
	TimeoutMS      int            `json:"timeout_ms,omitempty" jsonschema:"run deadline in milliseconds (0 = none)"`
}

type runOutput struct {
	RunID       string         `json:"run_id"`
	State       map[string]any `json:"state"`
	Trace       []graph.Step   `json:"trace"`
	Waves       int            `json:"waves"`
	Ended       bool           `json:"ended"`
	SignalsFrom int            `json:"signals_from"`
}

type getSignalsInput struct {
	Since int `json:"since,omitempty" jsonschema:"return signals from this index onward (0-based)"`
}

type getSignalsOutput struct {
	Signals []Signal `json:"signals"`
	Total   int      `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleValidate(_ context.Context, _ *sdkmcp.CallToolRequest, in validateInput) (*sdkmcp.CallToolResult, validateOutput, error) {
	def, err := pipeline.Load([]byte(in.Definition), formatExt(in.Format))
	if err != nil {
		return nil, validateOutput{Problems: []string{err.Error()}}, nil
	}
	out := validateOutput{Pipeline: def.Pipeline}
	if err := def.Validate(); err != nil {
		out.Problems = split(err)
		return nil, out, nil
	}
	g, err := def.Compile(s.Registry)
	if err != nil {
		out.Problems = split(err)
		return nil, out, nil
	}
	out.Valid = true
	out.Nodes = g.Nodes()
	return nil, out, nil
}

func (s *Server) handleRender(_ context.Context, _ *sdkmcp.CallToolRequest, in renderInput) (*sdkmcp.CallToolResult, renderOutput, error) {
	def, g, err := s.compile(in.Definition, in.Format)
	if err != nil {
		return nil, renderOutput{}, err
	}
	return nil, renderOutput{Mermaid: graph.Render(g, def.Names())}, nil
}

func (s *Server) handleRun(ctx context.Context, _ *sdkmcp.CallToolRequest, in runInput) (*sdkmcp.CallToolResult, runOutput, error) {
	def, g, err := s.compile(in.Definition, in.Format)
	if err != nil {
		return nil, runOutput{}, err
	}

	if in.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(in.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	opts := append([]graph.RunOption(nil), s.runOpts...)
	opts = append(opts, def.RunOptions()...)
	if in.RecursionLimit > 0 {
		opts = append(opts, graph.WithRecursionLimit(in.RecursionLimit))
	}
	if in.MaxParallel > 0 {
		opts = append(opts, graph.WithMaxParallel(in.MaxParallel))
	}
	from := s.Signals.Len()
	opts = append(opts, graph.WithRunObserver(s.Signals.Observer(def.Pipeline)))

	logger := logging.New("mcp")
	logger.Info("running pipeline", "pipeline", def.Pipeline)
	res, err := g.Run(ctx, graph.Values(in.State), opts...)
	if err != nil {
		logger.Warn("pipeline failed", "pipeline", def.Pipeline, "error", err)
		return nil, runOutput{}, fmt.Errorf("run pipeline %q: %w", def.Pipeline, err)
	}
	return nil, runOutput{
		RunID:       res.RunID,
		State:       map[string]any(res.State),
		Trace:       res.Trace,
		Waves:       res.Waves,
		Ended:       res.Ended,
		SignalsFrom: from,
	}, nil
}

func (s *Server) handleGetSignals(_ context.Context, _ *sdkmcp.CallToolRequest, in getSignalsInput) (*sdkmcp.CallToolResult, getSignalsOutput, error) {
	signals := s.Signals.Since(in.Since)
	if signals == nil {
		signals = []Signal{}
	}
	return nil, getSignalsOutput{Signals: signals, Total: s.Signals.Len()}, nil
}

func (s *Server) compile(text, format string) (*pipeline.Definition, *graph.CompiledGraph[graph.Values], error) {
	def, err := pipeline.Load([]byte(text), formatExt(format))
	if err != nil {
		return nil, nil, err
	}
	g, err := def.Compile(s.Registry)
	if err != nil {
		return nil, nil, err
	}
	return def, g, nil
}

func formatExt(format string) string {
	if format == "" {
		return ""
	}
	return "." + format
}

// split flattens a joined or multi-problem error into one message per
// problem.
func split(err error) []string {
	multi, ok := err.(interface{ Unwrap() []error })
	if !ok {
		var verr *graph.GraphValidationError
		if !errors.As(err, &verr) {
			return []string{err.Error()}
		}
		multi = verr
	}
	var out []string
	for _, e := range multi.Unwrap() {
		out = append(out, e.Error())
	}
	return out
}
