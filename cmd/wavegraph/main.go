// wavegraph runs, validates and renders pipeline graphs that execute in
// parallel waves.
//
// Usage:
//
//	wavegraph run -f <pipeline> [--state JSON] [--trace] [--narrate] [--metrics]
//	wavegraph validate -f <pipeline>
//	wavegraph render -f <pipeline> [--markdown]
//	wavegraph serve
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
