package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/lazygrain/internal/observability"
	"github.com/Sumatoshi-tech/lazygrain/pkg/config"
	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/prefetch"
)

// workerFlags holds the worker command's configuration.
type workerFlags struct {
	configFile string
	length     int
	noColor    bool
	statsFile  string
}

// NewWorkerCommand creates the worker subcommand. Kept for parity with the
// teacher's subcommand layering (a dedicated re-exec target per worker
// process); this engine's workers are goroutines rather than OS processes
// (pkg/prefetch's processIterator.runWorker), so worker here drives the same demo
// pipeline as run through the process-pool prefetcher instead of the
// thread prefetcher, to exercise that path standalone.
func NewWorkerCommand() *cobra.Command {
	flags := &workerFlags{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Drive a demo pipeline through the process-pool prefetcher",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return runWorkerPipeline(cobraCmd.Context(), flags, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&flags.configFile, "config", "", "path to pipeline config YAML (defaults discovered if empty)")
	cmd.Flags().IntVar(&flags.length, "length", 1000, "number of elements the demo range source produces")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVar(&flags.statsFile, "stats-file", defaultStatsFile(), "ndjson file to append this run's statistics to")

	return cmd
}

func runWorkerPipeline(ctx context.Context, flags *workerFlags, out *os.File) error {
	if flags.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	if flags.length <= 0 {
		return ErrInvalidLength
	}

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = observability.ModeWorker

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	pipelineMetrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init pipeline metrics: %w", err)
	}

	source := dataset.NewRange(0, flags.length, 1, syntheticTokens)
	sharded := dataset.NewSyncIter(cfg.ApplyShard(source))

	it, err := prefetch.Process(sharded, cfg.ToMultiprocessingOptions())
	if err != nil {
		return fmt.Errorf("start process prefetcher: %w", err)
	}

	start := time.Now()
	stats := observability.PipelineStats{}

	for {
		_, ok, elemErr := it.Next(ctx)
		if elemErr != nil {
			return fmt.Errorf("pipeline error: %w", elemErr)
		}

		if !ok {
			break
		}

		stats.Elements++
	}

	elapsed := time.Since(start)

	pipelineMetrics.RecordRun(ctx, stats)

	if err := appendRunRecord(flags.statsFile, "worker", stats, elapsed); err != nil {
		return fmt.Errorf("record stats: %w", err)
	}

	statusLine(out, color.New(color.FgGreen), "worker pool completed")
	printStatsTable(out, "worker", stats, elapsed)

	return it.Close()
}
