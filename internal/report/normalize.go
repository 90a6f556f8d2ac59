package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hyperbatch/internal/schema"
)

// Context field names recognized by the normalizer. Schema context fields
// with other names stay at the missing sentinel.
const (
	FieldTimestamp    = "Date and Time"
	FieldRunNumber    = "Run #"
	FieldStrategy     = "Strategy"
	FieldConfig       = "Config"
	FieldEpochs       = "Epochs"
	FieldSeed         = "random-state"
	FieldTimerange    = "Timerange"
	FieldPairs        = "Pairs"
	FieldLossFunction = "loss_function"
	FieldLeverage     = "Leverage"
	FieldRiskPerTrade = "% per trade"
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

// Normalizer merges decoded report fragments and run-context values into a
// schema-complete record.
//
// Metric precedence is an explicit policy here, not an accident of call
// order: fragments are supplied in scan order and the LAST fragment that
// defines a key wins. Callers pass the summary-metrics fragment before the
// backtest-total fragment, so the TOTAL row is authoritative for metrics both
// tables report.
type Normalizer struct {
	log *logrus.Logger
	now func() time.Time
	// aliases maps a lowercased schema strategy-field name to the ordered
	// parameter keys tried for it (directional long/short variants). Fields
	// without an alias entry are looked up by their lowercased name.
	aliases map[string][]string
}

// NewNormalizer creates a Normalizer. aliases may be nil; its keys are
// matched case-insensitively against schema field names, because YAML
// configuration lowercases map keys on the way in.
func NewNormalizer(log *logrus.Logger, aliases map[string][]string) *Normalizer {
	return &Normalizer{log: log, now: time.Now, aliases: lowerAliasKeys(aliases)}
}

// lowerAliasKeys rebuilds an alias map with lowercased field-name keys so
// lookups are insensitive to how the configuration spelled them.
func lowerAliasKeys(aliases map[string][]string) map[string][]string {
	if len(aliases) == 0 {
		return nil
	}
	out := make(map[string][]string, len(aliases))
	for field, candidates := range aliases {
		out[strings.ToLower(field)] = append([]string(nil), candidates...)
	}
	return out
}

// Normalize builds the record for one report. Every schema field is present
// in the result; fields no decoder resolved hold the missing sentinel.
// A partially populated record is success, not failure.
func (n *Normalizer) Normalize(s *schema.Schema, runCtx RunContext, buy, sell ParameterSet, fragments ...MetricMap) Record {
	rec := make(Record, s.Len())
	for _, f := range s.Fields() {
		rec[f] = SentinelMissing
	}

	ctxValues := n.contextValues(runCtx)
	for _, f := range s.ContextFields() {
		if v, ok := ctxValues[f]; ok && v != "" {
			rec[f] = v
		}
	}

	for _, f := range s.StrategyFields() {
		if v, ok := resolveParam(f, n.aliases, buy, sell); ok {
			rec[f] = v
		}
	}

	for _, f := range s.MetricFields() {
		for _, frag := range fragments {
			if v, ok := frag[f]; ok {
				rec[f] = v
			}
		}
	}

	return rec
}

// FailedRecord builds the degraded record written after a failed run: every
// schema field holds the failed sentinel, except context fields for which a
// value is available.
func (n *Normalizer) FailedRecord(s *schema.Schema, runCtx RunContext) Record {
	rec := make(Record, s.Len())
	for _, f := range s.Fields() {
		rec[f] = SentinelFailed
	}
	for f, v := range n.contextValues(runCtx) {
		if s.Has(f) && v != "" {
			rec[f] = v
		}
	}
	return rec
}

func (n *Normalizer) contextValues(runCtx RunContext) map[string]string {
	seed := runCtx.Seed
	if seed == "" {
		seed = SentinelMissing
	}
	return map[string]string{
		FieldTimestamp:    n.now().UTC().Format(timestampLayout),
		FieldRunNumber:    strconv.Itoa(runCtx.RunNumber),
		FieldStrategy:     runCtx.Strategy,
		FieldConfig:       runCtx.ConfigFile,
		FieldEpochs:       runCtx.Epochs,
		FieldSeed:         seed,
		FieldTimerange:    runCtx.Timerange,
		FieldPairs:        runCtx.Pairs,
		FieldLossFunction: runCtx.LossFunction,
		FieldLeverage:     runCtx.Leverage,
		FieldRiskPerTrade: runCtx.RiskPerTrade,
	}
}

// resolveParam looks a strategy field up through its ordered candidate keys.
// For each candidate the buy side is tried before the sell side; the first
// present, non-empty value wins. Directional fields therefore resolve as
// buy-long, sell-long, buy-short, sell-short when their alias list is
// (long, short). aliases must carry lowercased keys (lowerAliasKeys).
func resolveParam(field string, aliases map[string][]string, buy, sell ParameterSet) (string, bool) {
	lower := strings.ToLower(field)
	candidates, ok := aliases[lower]
	if !ok {
		candidates = []string{lower}
	}
	for _, key := range candidates {
		for _, set := range []ParameterSet{buy, sell} {
			if v, present := set[key]; present {
				if s := paramString(v); s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}
