// Package schema holds the ordered set of field names a result record must
// contain. The set is derived from configuration at startup and is immutable
// for the lifetime of a batch.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptySchema is returned when all three field groups are empty.
	ErrEmptySchema = errors.New("schema: all field groups are empty")
	// ErrDuplicateField is returned when a field name appears more than once.
	ErrDuplicateField = errors.New("schema: duplicate field name")
)

// Schema partitions the expected field names into three ordered groups.
// Concatenation order (context, strategy, metric) defines the output column
// order of a record.
type Schema struct {
	context  []string
	strategy []string
	metric   []string
	fields   []string
}

// New validates the three field groups and builds an immutable Schema.
// Field names are kept verbatim; blanks and duplicates (within or across
// groups) are rejected.
func New(context, strategy, metric []string) (*Schema, error) {
	if len(context)+len(strategy)+len(metric) == 0 {
		return nil, ErrEmptySchema
	}

	s := &Schema{
		context:  append([]string(nil), context...),
		strategy: append([]string(nil), strategy...),
		metric:   append([]string(nil), metric...),
	}

	seen := make(map[string]struct{}, len(context)+len(strategy)+len(metric))
	for _, group := range [][]string{s.context, s.strategy, s.metric} {
		for _, name := range group {
			if strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("schema: blank field name")
			}
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateField, name)
			}
			seen[name] = struct{}{}
			s.fields = append(s.fields, name)
		}
	}

	return s, nil
}

// Fields returns all field names in output column order.
func (s *Schema) Fields() []string {
	return append([]string(nil), s.fields...)
}

// ContextFields returns the run-context field names.
func (s *Schema) ContextFields() []string {
	return append([]string(nil), s.context...)
}

// StrategyFields returns the strategy-parameter field names.
func (s *Schema) StrategyFields() []string {
	return append([]string(nil), s.strategy...)
}

// MetricFields returns the outcome-metric field names.
func (s *Schema) MetricFields() []string {
	return append([]string(nil), s.metric...)
}

// Len returns the total number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Has reports whether name belongs to the schema.
func (s *Schema) Has(name string) bool {
	for _, f := range s.fields {
		if f == name {
			return true
		}
	}
	return false
}
