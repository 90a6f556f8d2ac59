package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"hyperbatch/internal/batch"
)

// Run sheet column headers. The run sheet is row-oriented: the first row
// names the columns, every following row defines one run.
const (
	colStrategy     = "Strategy"
	colConfig       = "Config"
	colEpochs       = "epochs"
	colTimerange    = "timerange"
	colPairs        = "Pairs"
	colLeverage     = "Leverage"
	colRiskPerTrade = "% per trade"
	colSpaces       = "spaces"
	colLossFunction = "loss_function"
	colJobs         = "jobs"
	colMinTrades    = "min_trades"
	colRandomState  = "random_state"
)

// optionalOff marks an optional cell as deliberately disabled.
const optionalOff = "OFF"

// GridReader reads a whole worksheet as rows of strings.
type GridReader interface {
	Grid(ctx context.Context) ([][]string, error)
}

// RunSource loads run definitions from a run worksheet. It implements
// batch.RunSource.
type RunSource struct {
	log   *logrus.Logger
	table GridReader
}

// NewRunSource creates a RunSource reading from the given worksheet.
func NewRunSource(log *logrus.Logger, table GridReader) *RunSource {
	return &RunSource{log: log, table: table}
}

// LoadRuns reads the run sheet and returns the valid run definitions in
// sheet order. Rows missing a required field are skipped with a warning
// rather than failing the batch.
func (s *RunSource) LoadRuns(ctx context.Context) ([]batch.RunSpec, error) {
	grid, err := s.table.Grid(ctx)
	if err != nil {
		return nil, fmt.Errorf("read run sheet: %w", err)
	}
	return parseRuns(s.log, grid), nil
}

// parseRuns decodes a run sheet grid. The first row is the header row;
// columns are matched by name so the sheet's column order is free.
func parseRuns(log *logrus.Logger, grid [][]string) []batch.RunSpec {
	if len(grid) < 2 {
		return nil
	}

	index := make(map[string]int, len(grid[0]))
	for i, name := range grid[0] {
		index[strings.TrimSpace(name)] = i
	}

	var runs []batch.RunSpec
	for rowNum, row := range grid[1:] {
		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		optional := func(name string) string {
			v := cell(name)
			if strings.EqualFold(v, optionalOff) {
				return ""
			}
			return v
		}

		spec := batch.RunSpec{
			Strategy:     cell(colStrategy),
			ConfigFile:   cell(colConfig),
			Epochs:       cell(colEpochs),
			Timerange:    cell(colTimerange),
			Pairs:        cell(colPairs),
			Leverage:     cell(colLeverage),
			RiskPerTrade: cell(colRiskPerTrade),
			Spaces:       optional(colSpaces),
			LossFunction: optional(colLossFunction),
			Jobs:         optional(colJobs),
			MinTrades:    optional(colMinTrades),
			RandomState:  optional(colRandomState),
		}

		if spec.Strategy == "" || spec.Epochs == "" || spec.Timerange == "" {
			log.WithField("row", rowNum+2).Warn("run row missing strategy, epochs or timerange, skipping")
			continue
		}
		runs = append(runs, spec)
	}
	return runs
}
