// Package main provides the entry point for the lazygrain CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/lazygrain/cmd/lazygrain/commands"
	"github.com/Sumatoshi-tech/lazygrain/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "lazygrain",
		Short: "Lazygrain - lazy dataset engine for ML data loading",
		Long: `Lazygrain builds and drives lazy dataset pipelines: map/iter
transforms, thread and process prefetching, and sequence packing.

Commands:
  run       Build and drive a pipeline from config
  worker    Drive the demo pipeline through the process-prefetch pool
  render    Render a saved run's statistics as an HTML chart
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewWorkerCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
