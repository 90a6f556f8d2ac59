package report

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// whitespaceRun splits plain-text table rows that have no box-drawing
// delimiter.
var whitespaceRun = regexp.MustCompile(`\s{2,}`)

// summaryLabel maps a label substring of the SUMMARY METRICS table to its
// canonical metric key. Unrecognized labels are dropped so a renamed report
// row cannot pollute the schema.
type summaryLabel struct {
	substr      string
	key         string
	beforeSlash bool
	stripPct    bool
}

var summaryLabels = []summaryLabel{
	{substr: "Total/Daily Avg Trades", key: MetricTrades, beforeSlash: true},
	{substr: "Total profit %", key: MetricProfit, stripPct: true},
	{substr: "Absolute Drawdown (Account)", key: MetricDrawdown, stripPct: true},
}

// summaryStop marks the label after which the summary decoder stops reading.
const summaryStop = "Market change"

// DecodeSummaryTable turns the captured SUMMARY METRICS rows into a metric
// fragment. Each row must yield at least two non-empty cells; the first is
// the label and the last the value (irregular-width rows keep extra cells in
// between). With passthrough enabled every parsed label/value pair is stored
// verbatim in addition to the canonical keys.
func DecodeSummaryTable(rows []string, passthrough bool) MetricMap {
	m := MetricMap{}
	for _, row := range rows {
		cells := splitRow(row)
		if len(cells) < 2 {
			continue
		}
		label, value := cells[0], cells[len(cells)-1]
		if strings.Contains(label, summaryStop) {
			break
		}
		if passthrough {
			m[label] = value
		}
		for _, sl := range summaryLabels {
			if !strings.Contains(label, sl.substr) {
				continue
			}
			v := value
			if sl.beforeSlash {
				v = strings.TrimSpace(strings.SplitN(v, "/", 2)[0])
			}
			if sl.stripPct {
				v = strings.TrimSpace(strings.ReplaceAll(v, "%", ""))
			}
			m[sl.key] = normalizeNumber(v)
			break
		}
	}
	return m
}

// DecodeBacktestTotal extracts metrics from the captured TOTAL row(s) of the
// backtesting report by fixed column position: trade count, average profit %,
// total profit % and average duration. The win rate sits in the last cell of
// the final continuation row when the row wrapped, else in the last cell of
// the primary row. Missing or short rows simply leave fields unset.
func DecodeBacktestTotal(rows []string) MetricMap {
	m := MetricMap{}
	if len(rows) == 0 {
		return m
	}

	fields := splitRow(rows[0])
	if len(fields) > 1 {
		m[MetricTrades] = fields[1]
	}
	if len(fields) > 2 {
		m[MetricAvgProfit] = normalizeNumber(strings.ReplaceAll(fields[2], "%", ""))
	}
	if len(fields) > 4 {
		m[MetricProfit] = normalizeNumber(strings.ReplaceAll(fields[4], "%", ""))
	}
	if len(fields) > 5 {
		if minutes, ok := ParseDuration(fields[5]); ok {
			m[MetricDuration] = strconv.Itoa(minutes)
		} else {
			m[MetricDuration] = SentinelMissing
		}
	}

	winCells := fields
	if len(rows) > 1 {
		if last := splitRow(rows[len(rows)-1]); len(last) > 0 {
			winCells = last
		}
	}
	if len(winCells) > 0 {
		m[MetricWinRate] = winCells[len(winCells)-1]
	}
	return m
}

// DecodeKeyValueLines decodes `key = value  # comment` lines, keeping only
// keys present in the recognized set. Used for the trailing-stop block and
// the max-open-trades line.
func DecodeKeyValueLines(lines []string, recognized map[string]bool) map[string]string {
	out := map[string]string{}
	for _, line := range lines {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if !recognized[key] {
			continue
		}
		if idx := strings.Index(value, "#"); idx >= 0 {
			value = value[:idx]
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// splitRow splits a table row on the vertical box-drawing glyph when present,
// else on runs of two or more whitespace characters, trimming every cell and
// dropping empties.
func splitRow(row string) []string {
	var raw []string
	if strings.Contains(row, "│") {
		raw = strings.Split(row, "│")
	} else {
		raw = whitespaceRun.Split(strings.TrimSpace(row), -1)
	}
	cells := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}

// normalizeNumber canonicalizes a numeric cell ("7.890" -> "7.89") and leaves
// non-numeric text untouched.
func normalizeNumber(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.String()
}
