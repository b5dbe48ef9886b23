package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"wavegraph/internal/format"
	"wavegraph/internal/logging"
	"wavegraph/internal/metrics"
	"wavegraph/pkg/graph"
)

func (a *app) newRunCmd() *cobra.Command {
	var flags struct {
		file             string
		state            string
		runID            string
		recursionLimit   int
		maxParallel      int
		timeout          time.Duration
		trace            bool
		table            bool
		markdown         bool
		metrics          bool
		narrate          bool
		allowUnreachable bool
	}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline and print its final state",
		Long: `Runs a pipeline definition from its start node until every branch has
reached the done node or a node without successors. The final state is
printed as JSON unless --table or --markdown is given.`,
		Example: `  wavegraph run -f review.yaml
  wavegraph run -f review.yaml --state '{"attempts": 1}' --trace --narrate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, g, err := a.compile(flags.file, flags.allowUnreachable)
			if err != nil {
				return err
			}

			initial := graph.Values{}
			if flags.state != "" {
				if err := json.Unmarshal([]byte(flags.state), &initial); err != nil {
					return fmt.Errorf("parse --state: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			names := def.Names()

			// Later options win: config file, then definition, then flags.
			opts := a.cfg.RunOptions()
			opts = append(opts, def.RunOptions()...)
			f := cmd.Flags()
			if f.Changed("recursion-limit") {
				opts = append(opts, graph.WithRecursionLimit(flags.recursionLimit))
			}
			if f.Changed("max-parallel") {
				opts = append(opts, graph.WithMaxParallel(flags.maxParallel))
			}
			if flags.runID != "" {
				opts = append(opts, graph.WithRunID(flags.runID))
			}

			observers := graph.MultiObserver{&graph.LogObserver{Logger: logging.New("run")}}
			if flags.narrate {
				observers = append(observers, graph.NewNarrationObserver(
					graph.WithNames(names),
					graph.WithSink(func(line string) { fmt.Fprintln(errOut, line) }),
				))
			}
			var reg *prometheus.Registry
			if flags.metrics {
				reg = prometheus.NewRegistry()
				m, err := metrics.New(reg, def.Pipeline)
				if err != nil {
					return err
				}
				observers = append(observers, m)
			}
			opts = append(opts, graph.WithRunObserver(observers))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			timeout := a.cfg.Run.Timeout
			if f.Changed("timeout") {
				timeout = flags.timeout
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, runErr := g.Run(ctx, initial, opts...)
			if reg != nil {
				if err := metrics.WriteText(errOut, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			if runErr != nil {
				return runErr
			}

			mode := format.ASCII
			if flags.markdown {
				mode = format.Markdown
			}
			if flags.table || flags.markdown {
				fmt.Fprint(out, format.State(res.State, mode))
			} else {
				data, err := json.MarshalIndent(res.State, "", "  ")
				if err != nil {
					return fmt.Errorf("encode state: %w", err)
				}
				fmt.Fprintln(out, string(data))
			}
			if flags.trace {
				fmt.Fprintln(out)
				fmt.Fprint(out, format.Trace(res, names, mode))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "Pipeline file (.yaml, .yml, .json, .hcl) (required)")
	f.StringVar(&flags.state, "state", "", "Initial state as a JSON object")
	f.StringVar(&flags.runID, "run-id", "", "Run identifier (default: random UUID)")
	f.IntVar(&flags.recursionLimit, "recursion-limit", graph.DefaultRecursionLimit, "Maximum number of waves (overrides config and definition)")
	f.IntVar(&flags.maxParallel, "max-parallel", 0, "Maximum nodes running at once within a wave (0 = unbounded)")
	f.DurationVar(&flags.timeout, "timeout", 0, "Cancel the run after this duration (overrides config)")
	f.BoolVar(&flags.trace, "trace", false, "Print the execution trace after the state")
	f.BoolVar(&flags.table, "table", false, "Print the final state as a table instead of JSON")
	f.BoolVar(&flags.markdown, "markdown", false, "Print tables as Markdown")
	f.BoolVar(&flags.metrics, "metrics", false, "Write Prometheus metrics for the run to stderr")
	f.BoolVar(&flags.narrate, "narrate", false, "Narrate the run to stderr")
	f.BoolVar(&flags.allowUnreachable, "allow-unreachable", false, "Report unreachable nodes as warnings instead of errors")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
