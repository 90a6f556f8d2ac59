package report

import (
	"strings"

	"github.com/sirupsen/logrus"

	"hyperbatch/internal/schema"
)

// Extractor runs the full extraction: scan sections, decode each one
// defensively, normalize into a schema-complete record. It is a pure
// function of the report text plus the immutable schema; safe to reuse
// across reports.
type Extractor struct {
	log         *logrus.Logger
	normalizer  *Normalizer
	aliases     map[string][]string
	passthrough bool
}

// ExtractorOptions configures an Extractor.
type ExtractorOptions struct {
	// PassthroughMetrics stores every parsed summary label/value pair
	// verbatim in addition to the canonical metric keys.
	PassthroughMetrics bool
	// StrategyAliases maps schema strategy-field names to ordered
	// parameter-key candidates (directional variants).
	StrategyAliases map[string][]string
}

// NewExtractor creates an Extractor.
func NewExtractor(log *logrus.Logger, opts ExtractorOptions) *Extractor {
	return &Extractor{
		log:         log,
		normalizer:  NewNormalizer(log, opts.StrategyAliases),
		aliases:     lowerAliasKeys(opts.StrategyAliases),
		passthrough: opts.PassthroughMetrics,
	}
}

// Extract parses one report into a record. Soft section misses and decode
// failures degrade to warnings and sentinel fields; the only hard failure is
// blank input, which yields ErrEmptyReport and no record.
func (e *Extractor) Extract(text string, s *schema.Schema, runCtx RunContext) (Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyReport
	}

	sections := Scan(text)

	buy, err := ParseParamBlock(sections.BuyParams)
	if err != nil {
		e.log.WithError(err).Warn("failed to parse buy hyperspace params, leaving strategy fields unset")
	}
	sell, err := ParseParamBlock(sections.SellParams)
	if err != nil {
		e.log.WithError(err).Warn("failed to parse sell hyperspace params")
	}

	// The trailing-stop block and max-open-trades line hold plain
	// assignments. They fill strategy fields the hyperspace blocks omit,
	// never overriding them.
	trailing := DecodeKeyValueLines(
		append(append([]string(nil), sections.TrailingStop...), sections.MaxOpenTrades...),
		recognizedKeys(s, e.aliases),
	)
	if len(trailing) > 0 {
		if sell == nil {
			sell = ParameterSet{}
		}
		for k, v := range trailing {
			if _, ok := buy[k]; ok {
				continue
			}
			if _, ok := sell[k]; ok {
				continue
			}
			sell[k] = v
		}
	}

	if len(sections.SummaryRows) == 0 {
		e.log.Warn("SUMMARY METRICS table not found in report")
	}
	if len(sections.BacktestTotal) == 0 {
		e.log.Warn("TOTAL row not found in backtesting report")
	}

	// Fragment order is the precedence policy: the backtest TOTAL row is
	// parsed later and supersedes the summary table for overlapping keys.
	summary := DecodeSummaryTable(sections.SummaryRows, e.passthrough)
	total := DecodeBacktestTotal(sections.BacktestTotal)

	return e.normalizer.Normalize(s, runCtx, buy, sell, summary, total), nil
}

// recognizedKeys lists the parameter keys any strategy field of the schema
// can resolve from: the field's alias candidates when configured, else its
// lowercased name. aliases must carry lowercased keys (lowerAliasKeys).
func recognizedKeys(s *schema.Schema, aliases map[string][]string) map[string]bool {
	keys := map[string]bool{}
	for _, f := range s.StrategyFields() {
		if candidates, ok := aliases[strings.ToLower(f)]; ok {
			for _, c := range candidates {
				keys[c] = true
			}
			continue
		}
		keys[strings.ToLower(f)] = true
	}
	return keys
}

// FailedRecord exposes the degraded-record constructor so callers can write
// a schema-complete placeholder through the same append path.
func (e *Extractor) FailedRecord(s *schema.Schema, runCtx RunContext) Record {
	return e.normalizer.FailedRecord(s, runCtx)
}
