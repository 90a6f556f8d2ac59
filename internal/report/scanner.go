package report

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Section markers as emitted by the hyperopt display tool.
const (
	markerBuyParams     = "# Buy hyperspace params:"
	markerSellParams    = "# Sell hyperspace params:"
	markerROITable      = "# ROI table:"
	markerStoploss      = "# Stoploss:"
	markerTrailingStop  = "# Trailing stop:"
	markerMaxOpenTrades = "# Max Open Trades:"
	markerSummary       = "SUMMARY METRICS"
	markerBacktest      = "BACKTESTING REPORT"
)

// Sections holds the raw text spans located in a report. A span is empty when
// its marker was not found; that is never an error.
type Sections struct {
	BuyParams     []string
	SellParams    []string
	SummaryRows   []string
	BacktestTotal []string
	TrailingStop  []string
	MaxOpenTrades []string
}

// paramState is the classification of a line inside the hyperspace parameter
// block.
type paramState int

const (
	paramOutside paramState = iota
	paramBuy
	paramSell
)

// Scan locates all known sections of a report. The text is normalized to NFC
// first so box-drawing glyph variants that differ only by composition compare
// equal.
func Scan(text string) *Sections {
	lines := splitLines(norm.NFC.String(text))

	s := &Sections{}
	s.scanParamBlock(lines)
	s.scanSummaryTable(lines)
	s.scanBacktestTotal(lines)
	s.scanTrailingBlocks(lines)
	return s
}

// scanParamBlock extracts the buy/sell hyperspace parameter lines. Reports
// can contain stale parameter blocks from earlier epochs, so the scan starts
// at the LAST buy marker in the file and walks forward from there.
func (s *Sections) scanParamBlock(lines []string) {
	start := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(strings.TrimSpace(lines[i]), markerBuyParams) {
			start = i
			break
		}
	}
	if start < 0 {
		return
	}

	state := paramOutside
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(trimmed, markerBuyParams):
			state = paramBuy
			continue
		case strings.Contains(trimmed, markerSellParams):
			state = paramSell
			continue
		case strings.HasPrefix(trimmed, markerROITable), strings.HasPrefix(trimmed, markerStoploss):
			// ROI/stoploss belong to neither side; keep scanning.
			state = paramOutside
			continue
		case strings.HasPrefix(trimmed, markerTrailingStop), strings.HasPrefix(trimmed, markerMaxOpenTrades):
			return
		}

		// Only quoted-key entries belong to a parameter block.
		if !strings.HasPrefix(trimmed, `"`) {
			continue
		}
		switch state {
		case paramBuy:
			s.BuyParams = append(s.BuyParams, trimmed)
		case paramSell:
			s.SellParams = append(s.SellParams, trimmed)
		}
	}
}

// scanSummaryTable captures the candidate rows of the SUMMARY METRICS table,
// from its marker down to the table's closing border.
func (s *Sections) scanSummaryTable(lines []string) {
	inTable := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inTable {
			if strings.Contains(trimmed, markerSummary) {
				inTable = true
			}
			continue
		}
		if isClosingBorder(trimmed) {
			return
		}
		if trimmed == "" || len(trimmed) < 5 {
			continue
		}
		s.SummaryRows = append(s.SummaryRows, trimmed)
	}
}

// scanBacktestTotal captures the TOTAL row of the backtesting report plus up
// to two continuation rows (long pair lists wrap the win-rate column onto a
// following line).
func (s *Sections) scanBacktestTotal(lines []string) {
	start := -1
	for i, line := range lines {
		if strings.Contains(line, markerBacktest) {
			start = i
			break
		}
	}
	if start < 0 {
		return
	}

	for i := start; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "│") || !strings.Contains(trimmed, "TOTAL") {
			continue
		}
		s.BacktestTotal = append(s.BacktestTotal, trimmed)
		for j := i + 1; j < len(lines) && len(s.BacktestTotal) < 3; j++ {
			next := strings.TrimSpace(lines[j])
			if !strings.HasPrefix(next, "│") || strings.HasPrefix(next, "│ TOTAL") {
				break
			}
			s.BacktestTotal = append(s.BacktestTotal, next)
		}
		return
	}
}

// scanTrailingBlocks captures the trailing-stop block and the max-open-trades
// line. Each span runs from its marker to the next unrelated marker or EOF.
func (s *Sections) scanTrailingBlocks(lines []string) {
	const (
		outside = iota
		inTrailing
		inMaxOpen
	)
	state := outside
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, markerTrailingStop):
			state = inTrailing
			continue
		case strings.HasPrefix(trimmed, markerMaxOpenTrades):
			state = inMaxOpen
			continue
		case strings.HasPrefix(trimmed, "#"):
			state = outside
			continue
		}
		if trimmed == "" {
			continue
		}
		if state == outside {
			continue
		}
		// Both blocks hold plain "key = value" assignments; the first line
		// of any other shape (a table border, a heading) ends the block.
		if !strings.Contains(trimmed, "=") {
			state = outside
			continue
		}
		switch state {
		case inTrailing:
			s.TrailingStop = append(s.TrailingStop, trimmed)
		case inMaxOpen:
			s.MaxOpenTrades = append(s.MaxOpenTrades, trimmed)
		}
	}
}

// isClosingBorder reports whether a trimmed line is the bottom border of a
// box-drawing table.
func isClosingBorder(trimmed string) bool {
	return strings.HasPrefix(trimmed, "└") ||
		strings.HasPrefix(trimmed, "╘") ||
		strings.HasPrefix(trimmed, "┗") ||
		strings.HasPrefix(trimmed, "╰")
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}
