package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wavegraph/internal/config"
	"wavegraph/internal/logging"
	"wavegraph/pkg/graph"
	"wavegraph/pkg/pipeline"
)

// app holds the state shared by all subcommands of one command tree.
type app struct {
	flags struct {
		configPath string
		logLevel   string
		logFormat  string
	}
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default()}
	cmd := &cobra.Command{
		Use:   "wavegraph",
		Short: "Run pipeline graphs in parallel waves",
		Long: `wavegraph executes directed graphs of pipeline nodes. Nodes that become
ready together run in parallel as one wave, their outputs are merged, and
conditional routers pick where each branch goes next.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", "", "Path to a YAML config file")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	f.StringVar(&a.flags.logFormat, "log-format", "", "Log format: text or json (overrides config)")

	cmd.AddCommand(a.newRunCmd())
	cmd.AddCommand(a.newValidateCmd())
	cmd.AddCommand(a.newRenderCmd())
	cmd.AddCommand(a.newServeCmd())
	return cmd
}

// setup loads the config file, applies flag overrides and initializes logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		cfg.Log.Format = a.flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if err := logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// compile loads a pipeline file and compiles it with the built-in families.
func (a *app) compile(path string, allowUnreachable bool) (*pipeline.Definition, *graph.CompiledGraph[graph.Values], error) {
	def, err := pipeline.LoadFromPath(path)
	if err != nil {
		return nil, nil, err
	}
	opts := []graph.CompileOption{graph.WithLogger(logging.New("graph"))}
	if allowUnreachable {
		opts = append(opts, graph.WithUnreachableAsWarning())
	}
	g, err := def.Compile(pipeline.NewRegistry(), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return def, g, nil
}
