// Package batch drives a sequence of hyperopt runs end to end: launch the
// optimizer, locate the result artifact, render the report, extract a record
// and append it to the results store. Runs are processed strictly
// sequentially because the optimizer and the report tool share exclusive
// access to the result-file storage.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hyperbatch/internal/report"
	"hyperbatch/internal/schema"
)

// ErrNoRuns is returned when the run source yields no valid runs.
var ErrNoRuns = errors.New("batch: no valid runs in run sheet")

// RunSource loads the run definitions for a batch.
type RunSource interface {
	LoadRuns(ctx context.Context) ([]RunSpec, error)
}

// OptimizerRunner launches the external optimizer and report tool.
type OptimizerRunner interface {
	// Hyperopt runs one optimization and returns the reported random
	// seed (captured from the stream, or echoed from the run definition).
	Hyperopt(ctx context.Context, spec RunSpec) (seed string, err error)
	// Show renders the human-readable report for a result artifact and
	// returns its stdout.
	Show(ctx context.Context, configFile, resultsBasename string) (string, error)
}

// ArtifactFinder locates the newest result artifact for a strategy.
type ArtifactFinder interface {
	FindLatest(strategy string) (string, error)
}

// RecordWriter appends records to the external results table.
type RecordWriter interface {
	NextRunNumber(ctx context.Context) (int, error)
	Append(ctx context.Context, rec report.Record) error
}

// Archiver mirrors appended records into local storage. Optional.
type Archiver interface {
	SaveRecord(ctx context.Context, runNumber int, status string, rec report.Record) error
}

// Notifier delivers the end-of-batch summary. Optional.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Orchestrator executes a whole batch.
type Orchestrator struct {
	log       *logrus.Logger
	schema    *schema.Schema
	source    RunSource
	runner    OptimizerRunner
	finder    ArtifactFinder
	extractor *report.Extractor
	writer    RecordWriter
	archive   Archiver
	notifier  Notifier

	defaultConfigFile   string
	defaultLossFunction string
}

// Options for creating an Orchestrator. Archive and Notifier may be nil.
type Options struct {
	Schema    *schema.Schema
	Source    RunSource
	Runner    OptimizerRunner
	Finder    ArtifactFinder
	Extractor *report.Extractor
	Writer    RecordWriter
	Archive   Archiver
	Notifier  Notifier

	DefaultConfigFile   string
	DefaultLossFunction string
}

// New creates an Orchestrator.
func New(log *logrus.Logger, opts Options) *Orchestrator {
	return &Orchestrator{
		log:                 log,
		schema:              opts.Schema,
		source:              opts.Source,
		runner:              opts.Runner,
		finder:              opts.Finder,
		extractor:           opts.Extractor,
		writer:              opts.Writer,
		archive:             opts.Archive,
		notifier:            opts.Notifier,
		defaultConfigFile:   opts.DefaultConfigFile,
		defaultLossFunction: opts.DefaultLossFunction,
	}
}

// Summary reports the outcome of one batch execution.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    []string
}

// Run processes every run from the source in order. Each run ends with a
// record appended to the results table: a normal record on success, a
// degraded FAILED record otherwise. Only a failure to load runs or to
// determine the starting run number aborts the batch.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	batchID := uuid.NewString()[:8]
	log := o.log.WithField("batch", batchID)

	runs, err := o.source.LoadRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	next, err := o.writer.NextRunNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("next run number: %w", err)
	}
	log.WithFields(logrus.Fields{"runs": len(runs), "first_run_number": next}).Info("starting batch")

	summary := &Summary{Total: len(runs)}
	for i, spec := range runs {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, "batch cancelled")
			break
		}

		runNumber := next + i
		runLog := log.WithFields(logrus.Fields{"run": runNumber, "strategy": spec.Strategy})
		runLog.Info("starting run")

		rec, seed, runErr := o.executeRun(ctx, spec, runNumber)
		status := "OK"
		if runErr != nil {
			runLog.WithError(runErr).Error("run failed, writing degraded record")
			summary.Errors = append(summary.Errors, fmt.Sprintf("run %d (%s): %v", runNumber, spec.Strategy, runErr))
			// A seed captured before the failure still belongs in the
			// degraded record.
			if seed == "" {
				seed = spec.RandomState
			}
			rec = o.extractor.FailedRecord(o.schema, o.runContext(spec, runNumber, seed))
			status = report.SentinelFailed
		}

		if err := o.writer.Append(ctx, rec); err != nil {
			runLog.WithError(err).Error("failed to append record to results table")
			summary.Errors = append(summary.Errors, fmt.Sprintf("run %d append: %v", runNumber, err))
			summary.Failed++
		} else if runErr != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}

		if o.archive != nil {
			if err := o.archive.SaveRecord(ctx, runNumber, status, rec); err != nil {
				runLog.WithError(err).Warn("failed to archive record locally")
			}
		}
		runLog.Info("run finished")
	}

	o.notify(ctx, summary)
	return summary, nil
}

// executeRun performs one run: optimizer, artifact discovery, report
// rendering, extraction. The seed is returned even when a later stage fails
// so the degraded record keeps it.
func (o *Orchestrator) executeRun(ctx context.Context, spec RunSpec, runNumber int) (report.Record, string, error) {
	seed, err := o.runner.Hyperopt(ctx, spec)
	if err != nil {
		return nil, seed, fmt.Errorf("hyperopt: %w", err)
	}

	artifact, err := o.finder.FindLatest(spec.Strategy)
	if err != nil {
		return nil, seed, fmt.Errorf("find result artifact: %w", err)
	}

	configFile := spec.ConfigFile
	if configFile == "" {
		configFile = o.defaultConfigFile
	}
	out, err := o.runner.Show(ctx, configFile, filepath.Base(artifact))
	if err != nil {
		return nil, seed, fmt.Errorf("hyperopt-show: %w", err)
	}

	rec, err := o.extractor.Extract(out, o.schema, o.runContext(spec, runNumber, seed))
	if err != nil {
		return nil, seed, fmt.Errorf("extract report: %w", err)
	}
	return rec, seed, nil
}

// runContext assembles the caller-supplied facts for the normalizer.
func (o *Orchestrator) runContext(spec RunSpec, runNumber int, seed string) report.RunContext {
	configFile := spec.ConfigFile
	if configFile == "" {
		configFile = o.defaultConfigFile
	}
	lossFunction := spec.LossFunction
	if lossFunction == "" {
		lossFunction = o.defaultLossFunction
	}
	return report.RunContext{
		RunNumber:    runNumber,
		Strategy:     spec.Strategy,
		ConfigFile:   configFile,
		Epochs:       spec.Epochs,
		Timerange:    spec.Timerange,
		Pairs:        spec.Pairs,
		Leverage:     spec.Leverage,
		RiskPerTrade: spec.RiskPerTrade,
		LossFunction: lossFunction,
		Seed:         seed,
	}
}

func (o *Orchestrator) notify(ctx context.Context, s *Summary) {
	if o.notifier == nil {
		return
	}
	text := fmt.Sprintf("hyperbatch finished: %d runs, %d succeeded, %d failed", s.Total, s.Succeeded, s.Failed)
	if err := o.notifier.Notify(ctx, text); err != nil {
		o.log.WithError(err).Warn("failed to send batch notification")
	}
}
