package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/lazygrain/internal/checkpoint"
	"github.com/Sumatoshi-tech/lazygrain/internal/observability"
	"github.com/Sumatoshi-tech/lazygrain/pkg/config"
	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/packing"
	"github.com/Sumatoshi-tech/lazygrain/pkg/prefetch"
	"github.com/Sumatoshi-tech/lazygrain/pkg/value"
)

// ErrInvalidLength is returned when --length is not positive.
var ErrInvalidLength = errors.New("--length must be positive")

const defaultPackedLength = 8

// runFlags holds the run command's configuration, matching the teacher's
// pattern of a single flag-holding struct per command (cmd/codefang/commands/run.go).
type runFlags struct {
	configFile      string
	pipelineName    string
	length          int
	packing         bool
	packedLength    int
	checkpointDir   string
	resume          bool
	clearCheckpoint bool
	noColor         bool
	statsFile       string
}

// runRecord is one line of a run's statistics history, appended to
// statsFile after each run so render can chart throughput across runs.
type runRecord struct {
	Name           string    `json:"name"`
	Timestamp      time.Time `json:"timestamp"`
	Elements       int64     `json:"elements"`
	Batches        int       `json:"batches"`
	BinsFilled     int64     `json:"bins_filled"`
	BinsSpilled    int64     `json:"bins_spilled"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
}

// NewRunCommand creates the run subcommand: builds a pipeline (range source
// -> shard -> thread-prefetch -> optional packing) from configuration and
// drives it to completion, reporting throughput and packing statistics.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and drive a lazy dataset pipeline from config",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return runPipeline(cobraCmd.Context(), flags, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&flags.configFile, "config", "", "path to pipeline config YAML (defaults discovered if empty)")
	cmd.Flags().StringVar(&flags.pipelineName, "name", "demo", "pipeline name, used to key the checkpoint directory")
	cmd.Flags().IntVar(&flags.length, "length", 1000, "number of elements the demo range source produces")
	cmd.Flags().BoolVar(&flags.packing, "packing", false, "pack the stream through the single-bin streaming packer")
	cmd.Flags().IntVar(&flags.packedLength, "packed-length", defaultPackedLength, "target length T for the packing demo")
	cmd.Flags().StringVar(&flags.checkpointDir, "checkpoint-dir", checkpoint.DefaultDir(), "checkpoint directory")
	cmd.Flags().BoolVar(&flags.resume, "resume", false, "resume from an existing checkpoint before running")
	cmd.Flags().BoolVar(&flags.clearCheckpoint, "clear-checkpoint", false, "remove any existing checkpoint before running")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVar(&flags.statsFile, "stats-file", defaultStatsFile(), "ndjson file to append this run's statistics to, for later rendering")

	return cmd
}

func defaultStatsFile() string {
	return filepath.Join(checkpoint.DefaultDir(), "stats.ndjson")
}

func runPipeline(ctx context.Context, flags *runFlags, out *os.File) error {
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
	obsCfg.Mode = observability.ModeCLI

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

	mgr := checkpoint.NewManager(flags.checkpointDir, flags.pipelineName, checkpoint.NewJSONCodec())

	if flags.clearCheckpoint {
		if err := mgr.Clear(); err != nil {
			return fmt.Errorf("clear checkpoint: %w", err)
		}
	}

	it := buildPipeline(cfg, flags)

	stageName := "range"
	if flags.packing {
		stageName = "packing"
	}

	if flags.resume && mgr.Exists() {
		if err := mgr.Load([]checkpoint.Checkpointable{it}); err != nil {
			return fmt.Errorf("resume from checkpoint: %w", err)
		}

		statusLine(out, color.New(color.FgCyan), "resumed pipeline %q from checkpoint", flags.pipelineName)
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

		if flags.packing {
			stats.BinsFilled++
		}
	}

	elapsed := time.Since(start)

	pipelineMetrics.RecordRun(ctx, stats)

	if err := mgr.Save([]checkpoint.Checkpointable{it}, []string{stageName}); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	if err := appendRunRecord(flags.statsFile, flags.pipelineName, stats, elapsed); err != nil {
		return fmt.Errorf("record stats: %w", err)
	}

	statusLine(out, color.New(color.FgGreen), "pipeline %q completed", flags.pipelineName)
	printStatsTable(out, flags.pipelineName, stats, elapsed)

	return it.Close()
}

// appendRunRecord appends one ndjson line recording this run's statistics,
// so render can later chart throughput and packing utilization over time.
func appendRunRecord(path, name string, stats observability.PipelineStats, elapsed time.Duration) error {
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open stats file: %w", err)
	}
	defer file.Close()

	record := runRecord{
		Name:           name,
		Timestamp:      time.Now(),
		Elements:       stats.Elements,
		Batches:        stats.Batches,
		BinsFilled:     stats.BinsFilled,
		BinsSpilled:    stats.BinsSpilled,
		ElapsedSeconds: elapsed.Seconds(),
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	line = append(line, '\n')

	_, err = file.Write(line)
	if err != nil {
		return fmt.Errorf("write run record: %w", err)
	}

	return nil
}

// buildPipeline assembles range source -> shard -> thread-prefetch ->
// optional single-bin packing, the CLI's stand-in for the real data
// sources spec.md's Non-goals put out of scope.
func buildPipeline(cfg *config.Config, flags *runFlags) dataset.IterDataset {
	source := dataset.NewRange(0, flags.length, 1, syntheticTokens)
	sharded := cfg.ApplyShard(source)
	prefetched := prefetch.Thread(sharded, cfg.ToReadOptions(), false)

	if !flags.packing {
		return prefetched
	}

	packed, err := packing.NewSingleBin(prefetched, packing.LengthStruct{"tokens": flags.packedLength})
	if err != nil {
		// Validated against a fixed length structure at construction; only
		// fails given an empty LengthStruct, which the flag default never is.
		panic(err)
	}

	return packed
}

// syntheticTokens produces a variable-length "tokens" feature, exercising
// the packer's truncation and append paths without a real data source.
func syntheticTokens(_ context.Context, raw int) (dataset.Element, bool, error) {
	const maxLen = 5

	n := (raw % maxLen) + 1
	data := make([]float64, n)

	for i := range data {
		data[i] = float64(raw + i)
	}

	return dataset.Element{"tokens": value.NewArray1D(value.Int64, data)}, true, nil
}
