package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wavegraph/pkg/graph"
)

func (a *app) newRenderCmd() *cobra.Command {
	var flags struct {
		file             string
		markdown         bool
		allowUnreachable bool
	}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a pipeline as a Mermaid flowchart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, g, err := a.compile(flags.file, flags.allowUnreachable)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			chart := graph.Render(g, def.Names())
			if flags.markdown {
				fmt.Fprintf(out, "```mermaid\n%s```\n", chart)
				return nil
			}
			fmt.Fprint(out, chart)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "Pipeline file (.yaml, .yml, .json, .hcl) (required)")
	f.BoolVar(&flags.markdown, "markdown", false, "Wrap the chart in a Markdown mermaid code fence")
	f.BoolVar(&flags.allowUnreachable, "allow-unreachable", false, "Report unreachable nodes as warnings instead of errors")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
