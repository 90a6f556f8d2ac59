// Package report extracts a schema-conformant result record from the
// free-form text report produced by the hyperopt display tool. The report is
// semi-structured: commented parameter blocks, box-drawing tables and loose
// key/value lines, any of which may be missing. Every decoder in this package
// degrades to "no data" instead of failing the whole extraction.
package report

import (
	"errors"
	"strconv"
)

// SentinelMissing marks a schema field that could not be resolved.
const SentinelMissing = "N/A"

// SentinelFailed marks every field of a degraded record written after a
// failed run.
const SentinelFailed = "FAILED"

// ErrEmptyReport is returned when the report text is empty or blank. It is
// the only hard failure of the extraction engine.
var ErrEmptyReport = errors.New("report: empty report text")

// Canonical metric keys written by the table decoders. Schemas that want
// these metrics must declare fields with the same names.
const (
	MetricTrades    = "Trades #"
	MetricWinRate   = "% Win"
	MetricAvgProfit = "Avg. Profit %"
	MetricProfit    = "Profit %"
	MetricDuration  = "Duration min"
	MetricDrawdown  = "DrawDown %"
)

// ParameterSet maps a lowercase parameter key to its decoded value: string,
// bool, int64, float64 or a nested ParameterSet.
type ParameterSet map[string]interface{}

// MetricMap maps a metric key (canonical, or a verbatim report label when
// passthrough is enabled) to its display-ready value. Durations are in whole
// minutes.
type MetricMap map[string]string

// Record is the final schema-complete mapping handed to the append writer.
// Its key set always equals the schema's field set.
type Record map[string]string

// RunContext carries the caller-supplied facts about one optimization run.
// Supplied once per report and never modified.
type RunContext struct {
	RunNumber    int
	Strategy     string
	ConfigFile   string
	Epochs       string
	Timerange    string
	Pairs        string
	Leverage     string
	RiskPerTrade string
	LossFunction string
	// Seed is the reported optimizer random state; empty when none was
	// captured or supplied.
	Seed string
}

// paramString renders a decoded parameter value the way it appeared in the
// report, suitable for a record cell.
func paramString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}
