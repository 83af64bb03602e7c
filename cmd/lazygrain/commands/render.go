package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"
)

const (
	renderLineWidth    = 2
	renderChartHeight  = "500px"
	renderSeriesSmooth = true
)

// ErrNoRunRecords is returned when the stats file has no parseable lines.
var ErrNoRunRecords = errors.New("no run records found in stats file")

// NewRenderCommand creates the render subcommand: reads the ndjson history
// written by run's --stats-file and renders throughput and packing
// utilization as an HTML line chart (the teacher's quality analyzer
// renders TickStats series the same way, via go-echarts charts.Line).
func NewRenderCommand() *cobra.Command {
	var (
		statsFile string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a run's recorded statistics as an HTML chart",
		RunE: func(_ *cobra.Command, _ []string) error {
			if output == "" {
				return ErrNoOutputFile
			}

			return runRender(statsFile, output)
		},
	}

	cmd.Flags().StringVar(&statsFile, "stats-file", defaultStatsFile(), "ndjson file written by run --stats-file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output HTML file path")

	return cmd
}

// ErrNoOutputFile is returned when the --output flag is not set.
var ErrNoOutputFile = errors.New("output file is required (use --output)")

func runRender(statsFile, output string) error {
	records, err := readRunRecords(statsFile)
	if err != nil {
		return fmt.Errorf("read stats file: %w", err)
	}

	if len(records) == 0 {
		return ErrNoRunRecords
	}

	line := buildThroughputChart(records)

	file, err := os.Create(output) //nolint:gosec // output path is operator-supplied, same as the teacher's render command
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()

	if err := line.Render(file); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}

func readRunRecords(path string) ([]runRecord, error) {
	file, err := os.Open(path) //nolint:gosec // stats file path is operator-supplied
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []runRecord

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record runRecord

		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parse run record: %w", err)
		}

		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// buildThroughputChart plots elements/sec and bins filled/spilled across
// successive runs, one data point per recorded run.
func buildThroughputChart(records []runRecord) *charts.Line {
	labels := make([]string, len(records))
	throughput := make([]opts.LineData, len(records))
	binsFilled := make([]opts.LineData, len(records))
	binsSpilled := make([]opts.LineData, len(records))

	for i, rec := range records {
		labels[i] = rec.Name

		rate := 0.0
		if rec.ElapsedSeconds > 0 {
			rate = float64(rec.Elements) / rec.ElapsedSeconds
		}

		throughput[i] = opts.LineData{Value: rate}
		binsFilled[i] = opts.LineData{Value: rec.BinsFilled}
		binsSpilled[i] = opts.LineData{Value: rec.BinsSpilled}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: renderChartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Pipeline Runs", Subtitle: "elements/sec and packing bin utilization"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "run"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "value"}),
	)
	line.SetXAxis(labels)

	line.AddSeries("elements/sec", throughput,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(renderSeriesSmooth)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: renderLineWidth}),
	)
	line.AddSeries("bins filled", binsFilled,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(renderSeriesSmooth)}),
	)
	line.AddSeries("bins spilled", binsSpilled,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(renderSeriesSmooth)}),
	)

	return line
}
