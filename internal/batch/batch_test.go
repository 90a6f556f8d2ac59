package batch

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperbatch/internal/report"
	"hyperbatch/internal/schema"
)

type fakeSource struct {
	runs []RunSpec
	err  error
}

func (f *fakeSource) LoadRuns(ctx context.Context) ([]RunSpec, error) {
	return f.runs, f.err
}

type fakeRunner struct {
	seed     string
	runErr   error
	showOut  string
	showErr  error
	hyperopt int
	shown    []string
}

func (f *fakeRunner) Hyperopt(ctx context.Context, spec RunSpec) (string, error) {
	f.hyperopt++
	return f.seed, f.runErr
}

func (f *fakeRunner) Show(ctx context.Context, configFile, resultsBasename string) (string, error) {
	f.shown = append(f.shown, resultsBasename)
	return f.showOut, f.showErr
}

type fakeFinder struct {
	path string
	err  error
}

func (f *fakeFinder) FindLatest(strategy string) (string, error) {
	return f.path, f.err
}

type fakeWriter struct {
	next      int
	nextErr   error
	appendErr error
	appended  []report.Record
}

func (f *fakeWriter) NextRunNumber(ctx context.Context) (int, error) {
	return f.next, f.nextErr
}

func (f *fakeWriter) Append(ctx context.Context, rec report.Record) error {
	f.appended = append(f.appended, rec)
	return f.appendErr
}

type fakeArchive struct {
	saved []string
}

func (f *fakeArchive) SaveRecord(ctx context.Context, runNumber int, status string, rec report.Record) error {
	f.saved = append(f.saved, status)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

const fakeShowOutput = `
    # Buy hyperspace params:
    buy_params = {
        "ema_1d_1": 10,
    }

BACKTESTING REPORT
│ TOTAL │ 42 │ 1.23% │ 50.00 USDT │ 7.89% │ 1:15:00 │ 60.0 │
`

func batchSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		[]string{report.FieldRunNumber, report.FieldStrategy, report.FieldSeed},
		[]string{"EMA_1D_1"},
		[]string{report.MetricTrades},
	)
	require.NoError(t, err)
	return s
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	if opts.Schema == nil {
		opts.Schema = batchSchema(t)
	}
	if opts.Extractor == nil {
		opts.Extractor = report.NewExtractor(log, report.ExtractorOptions{})
	}
	return New(log, opts)
}

func TestRun_SuccessfulBatch(t *testing.T) {
	writer := &fakeWriter{next: 5}
	runner := &fakeRunner{seed: "12345", showOut: fakeShowOutput}
	archive := &fakeArchive{}
	notifier := &fakeNotifier{}

	o := newTestOrchestrator(t, Options{
		Source:   &fakeSource{runs: []RunSpec{{Strategy: "Foo", Epochs: "50", Timerange: "20230101-20230201"}}},
		Runner:   runner,
		Finder:   &fakeFinder{path: "/results/strategy_Foo_2023.fthypt"},
		Writer:   writer,
		Archive:  archive,
		Notifier: notifier,
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)

	require.Len(t, writer.appended, 1)
	rec := writer.appended[0]
	assert.Equal(t, "5", rec[report.FieldRunNumber])
	assert.Equal(t, "Foo", rec[report.FieldStrategy])
	assert.Equal(t, "12345", rec[report.FieldSeed])
	assert.Equal(t, "10", rec["EMA_1D_1"])
	assert.Equal(t, "42", rec[report.MetricTrades])

	// Show is called with the artifact basename, not the full path.
	assert.Equal(t, []string{"strategy_Foo_2023.fthypt"}, runner.shown)
	assert.Equal(t, []string{"OK"}, archive.saved)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "1 succeeded")
}

func TestRun_NumbersRunsSequentially(t *testing.T) {
	writer := &fakeWriter{next: 3}
	o := newTestOrchestrator(t, Options{
		Source: &fakeSource{runs: []RunSpec{
			{Strategy: "A", Epochs: "10", Timerange: "x"},
			{Strategy: "B", Epochs: "10", Timerange: "x"},
		}},
		Runner: &fakeRunner{showOut: fakeShowOutput},
		Finder: &fakeFinder{path: "r.fthypt"},
		Writer: writer,
	})

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, writer.appended, 2)
	assert.Equal(t, "3", writer.appended[0][report.FieldRunNumber])
	assert.Equal(t, "4", writer.appended[1][report.FieldRunNumber])
}

func TestRun_HyperoptFailureWritesFailedRecord(t *testing.T) {
	writer := &fakeWriter{next: 1}
	archive := &fakeArchive{}
	o := newTestOrchestrator(t, Options{
		Source:  &fakeSource{runs: []RunSpec{{Strategy: "Foo", Epochs: "50", Timerange: "x"}}},
		Runner:  &fakeRunner{runErr: errors.New("docker exploded")},
		Finder:  &fakeFinder{path: "r.fthypt"},
		Writer:  writer,
		Archive: archive,
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Succeeded)
	require.Len(t, writer.appended, 1)

	rec := writer.appended[0]
	assert.Equal(t, report.SentinelFailed, rec["EMA_1D_1"])
	assert.Equal(t, report.SentinelFailed, rec[report.MetricTrades])
	// Context fields survive in the degraded record.
	assert.Equal(t, "Foo", rec[report.FieldStrategy])
	assert.Equal(t, "1", rec[report.FieldRunNumber])
	assert.Equal(t, []string{report.SentinelFailed}, archive.saved)
}

func TestRun_HyperoptFailureKeepsCapturedSeed(t *testing.T) {
	writer := &fakeWriter{next: 1}
	// The runner captured a seed from the stream before the process died.
	o := newTestOrchestrator(t, Options{
		Source: &fakeSource{runs: []RunSpec{{Strategy: "Foo", Epochs: "50", Timerange: "x"}}},
		Runner: &fakeRunner{seed: "48713", runErr: errors.New("docker exploded")},
		Finder: &fakeFinder{path: "r.fthypt"},
		Writer: writer,
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, writer.appended, 1)
	rec := writer.appended[0]
	assert.Equal(t, "48713", rec[report.FieldSeed])
	assert.Equal(t, report.SentinelFailed, rec[report.MetricTrades])
}

func TestRun_ArtifactDiscoveryFailure(t *testing.T) {
	writer := &fakeWriter{next: 1}
	o := newTestOrchestrator(t, Options{
		Source: &fakeSource{runs: []RunSpec{{Strategy: "Foo", Epochs: "50", Timerange: "x"}}},
		Runner: &fakeRunner{showOut: fakeShowOutput},
		Finder: &fakeFinder{err: errors.New("no artifacts")},
		Writer: writer,
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, writer.appended, 1)
	assert.Equal(t, report.SentinelFailed, writer.appended[0][report.MetricTrades])
}

func TestRun_EmptyReportFallsBackToFailedRecord(t *testing.T) {
	writer := &fakeWriter{next: 1}
	o := newTestOrchestrator(t, Options{
		Source: &fakeSource{runs: []RunSpec{{Strategy: "Foo", Epochs: "50", Timerange: "x"}}},
		Runner: &fakeRunner{showOut: ""},
		Finder: &fakeFinder{path: "r.fthypt"},
		Writer: writer,
	})

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, writer.appended, 1)
	assert.Equal(t, report.SentinelFailed, writer.appended[0]["EMA_1D_1"])
}

func TestRun_NoRuns(t *testing.T) {
	o := newTestOrchestrator(t, Options{
		Source: &fakeSource{},
		Runner: &fakeRunner{},
		Finder: &fakeFinder{},
		Writer: &fakeWriter{next: 1},
	})

	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestRun_LoadFailureAborts(t *testing.T) {
	o := newTestOrchestrator(t, Options{
		Source: &fakeSource{err: errors.New("sheet unavailable")},
		Runner: &fakeRunner{},
		Finder: &fakeFinder{},
		Writer: &fakeWriter{},
	})

	_, err := o.Run(context.Background())
	assert.Error(t, err)
}

func TestRun_DefaultsAppliedToContext(t *testing.T) {
	writer := &fakeWriter{next: 1}
	s, err := schema.New(
		[]string{report.FieldConfig, report.FieldLossFunction},
		nil,
		[]string{report.MetricTrades},
	)
	require.NoError(t, err)

	o := newTestOrchestrator(t, Options{
		Schema:              s,
		Source:              &fakeSource{runs: []RunSpec{{Strategy: "Foo", Epochs: "50", Timerange: "x"}}},
		Runner:              &fakeRunner{showOut: fakeShowOutput},
		Finder:              &fakeFinder{path: "r.fthypt"},
		Writer:              writer,
		DefaultConfigFile:   "config.json",
		DefaultLossFunction: "SharpeHyperOptLoss",
	})

	_, err = o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, writer.appended, 1)
	assert.Equal(t, "config.json", writer.appended[0][report.FieldConfig])
	assert.Equal(t, "SharpeHyperOptLoss", writer.appended[0][report.FieldLossFunction])
}

func TestRun_CancelledContextStopsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := &fakeWriter{next: 1}
	o := newTestOrchestrator(t, Options{
		Source: &fakeSource{runs: []RunSpec{{Strategy: "Foo", Epochs: "50", Timerange: "x"}}},
		Runner: &fakeRunner{showOut: fakeShowOutput},
		Finder: &fakeFinder{path: "r.fthypt"},
		Writer: writer,
	})

	summary, err := o.Run(ctx)
	require.NoError(t, err)

	assert.Empty(t, writer.appended)
	assert.NotEmpty(t, summary.Errors)
}
