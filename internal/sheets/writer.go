// Package sheets talks to the remote spreadsheet store: it loads run
// definitions from the config worksheet and appends result records to the
// results worksheet. The results sheet is transposed — field names run down
// column A and every run occupies one column.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"hyperbatch/internal/report"
)

// Cell is a single cell write at a 1-based row/column intersection.
type Cell struct {
	Row   int
	Col   int
	Value string
}

// Table abstracts one worksheet of the external store. Implemented by
// Worksheet; tests use fakes.
type Table interface {
	// Headers returns the field names in column A, top to bottom.
	Headers(ctx context.Context) ([]string, error)
	// Row returns the values of the 1-based row n, left to right.
	Row(ctx context.Context, n int) ([]string, error)
	// Bounds returns the sheet's current grid size.
	Bounds(ctx context.Context) (rows, cols int, err error)
	// Resize grows the sheet's declared grid size.
	Resize(ctx context.Context, rows, cols int) error
	// Write issues the given cell writes in one batched update.
	Write(ctx context.Context, cells []Cell) error
}

// Writer appends one record per call to a results table. Appends never
// overwrite: the target is always the first empty run column. A crash
// mid-write can leave a partial column behind; the next append simply lands
// after it.
type Writer struct {
	log             *logrus.Logger
	table           Table
	runNumberHeader string
}

// NewWriter creates a Writer for the given results table. runNumberHeader is
// the header row holding run numbers (used to derive the next run number).
func NewWriter(log *logrus.Logger, table Table, runNumberHeader string) *Writer {
	if runNumberHeader == "" {
		runNumberHeader = report.FieldRunNumber
	}
	return &Writer{log: log, table: table, runNumberHeader: runNumberHeader}
}

// Append writes the record into the first empty run column, resizing the
// sheet when the target column exceeds its current bounds. One cell is
// written per header that also exists in the record; record fields absent
// from the header column are skipped with a warning. No rollback on failure.
func (w *Writer) Append(ctx context.Context, rec report.Record) error {
	headers, err := w.table.Headers(ctx)
	if err != nil {
		return fmt.Errorf("read header column: %w", err)
	}

	target, err := w.nextFreeColumn(ctx)
	if err != nil {
		return fmt.Errorf("find append column: %w", err)
	}

	rows, cols, err := w.table.Bounds(ctx)
	if err != nil {
		return fmt.Errorf("read sheet bounds: %w", err)
	}
	if target > cols {
		if err := w.table.Resize(ctx, rows, target); err != nil {
			return fmt.Errorf("resize sheet to %d columns: %w", target, err)
		}
		w.log.WithFields(logrus.Fields{"rows": rows, "cols": target}).Info("resized results sheet")
	}

	known := make(map[string]struct{}, len(headers))
	cells := make([]Cell, 0, len(headers))
	for i, header := range headers {
		if header == "" {
			continue
		}
		known[header] = struct{}{}
		if value, ok := rec[header]; ok {
			cells = append(cells, Cell{Row: i + 1, Col: target, Value: value})
		}
	}
	for field := range rec {
		if _, ok := known[field]; !ok {
			w.log.WithField("field", field).Warn("record field missing from results sheet headers, skipping")
		}
	}

	if len(cells) == 0 {
		return fmt.Errorf("no record field matched the results sheet headers")
	}
	if err := w.table.Write(ctx, cells); err != nil {
		return fmt.Errorf("write record cells: %w", err)
	}
	w.log.WithFields(logrus.Fields{"column": target, "cells": len(cells)}).Info("appended record to results sheet")
	return nil
}

// NextRunNumber returns max+1 over the numeric values of the run-number row,
// or 1 when the sheet holds none yet.
func (w *Writer) NextRunNumber(ctx context.Context) (int, error) {
	headers, err := w.table.Headers(ctx)
	if err != nil {
		return 0, fmt.Errorf("read header column: %w", err)
	}

	rowIdx := -1
	for i, h := range headers {
		if h == w.runNumberHeader {
			rowIdx = i + 1
			break
		}
	}
	if rowIdx < 0 {
		w.log.WithField("header", w.runNumberHeader).Warn("run-number header not found, starting at 1")
		return 1, nil
	}

	values, err := w.table.Row(ctx, rowIdx)
	if err != nil {
		return 0, fmt.Errorf("read run-number row: %w", err)
	}

	maxSeen := 0
	for i, v := range values {
		if i == 0 {
			continue // header cell
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > maxSeen {
			maxSeen = n
		}
	}
	return maxSeen + 1, nil
}

// nextFreeColumn probes row 1 from column B for the first empty cell.
func (w *Writer) nextFreeColumn(ctx context.Context) (int, error) {
	row, err := w.table.Row(ctx, 1)
	if err != nil {
		return 0, err
	}
	for col := 2; col <= len(row); col++ {
		if strings.TrimSpace(row[col-1]) == "" {
			return col, nil
		}
	}
	if len(row) < 2 {
		return 2, nil
	}
	return len(row) + 1, nil
}
