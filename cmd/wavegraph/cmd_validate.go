package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newValidateCmd() *cobra.Command {
	var flags struct {
		file             string
		allowUnreachable bool
	}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate and compile a pipeline definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, g, err := a.compile(flags.file, flags.allowUnreachable)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pipeline %q is valid: %d nodes, %d edges, %d routers, start %s\n",
				def.Pipeline, len(g.Nodes()), len(def.Edges), len(def.Routers), g.EntryPoint())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "Pipeline file (.yaml, .yml, .json, .hcl) (required)")
	f.BoolVar(&flags.allowUnreachable, "allow-unreachable", false, "Report unreachable nodes as warnings instead of errors")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
