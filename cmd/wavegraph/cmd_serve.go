package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"wavegraph/internal/logging"
	mcpserver "wavegraph/internal/mcp"
	"wavegraph/pkg/pipeline"
)

func (a *app) newServeCmd() *cobra.Command {
	var flags struct {
		watchInterval time.Duration
	}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Starts an MCP server over stdin/stdout exposing the validate_pipeline,
render_pipeline, run_pipeline and get_signals tools.

The server monitors for parent process death and shuts down when the client
that spawned it goes away.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := mcpserver.NewServer(version, pipeline.NewRegistry(), a.cfg.RunOptions()...)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			if flags.watchInterval > 0 {
				mcpserver.WatchParent(ctx, flags.watchInterval, cancel)
			}

			logging.New("mcp").Info("starting wavegraph MCP server over stdio")
			err := srv.Run(ctx, &sdkmcp.StdioTransport{})
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&flags.watchInterval, "watch-interval", 2*time.Second, "How often to check for parent process death (0 disables)")
	return cmd
}
