package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ParseParamBlock reassembles the quoted-key lines collected from a
// hyperspace parameter block and parses them as a single literal structure.
// Keys are lowercased; values are strings, booleans, numbers or nested
// blocks. A trailing comma on the last entry is tolerated. On any parse
// error an empty set is returned together with the error; callers downgrade
// it to a warning and never abort the extraction.
func ParseParamBlock(lines []string) (ParameterSet, error) {
	if len(lines) == 0 {
		return ParameterSet{}, nil
	}

	src := "{\n" + strings.TrimSuffix(strings.TrimSpace(strings.Join(lines, "\n")), ",") + "\n}"
	p := &paramParser{src: src}
	set, err := p.parseBlock()
	if err != nil {
		return ParameterSet{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return ParameterSet{}, fmt.Errorf("trailing input at offset %d", p.pos)
	}
	return set, nil
}

// Format renders the set back into parameter-block lines (sorted by key, one
// `"key": value,` entry per line). Re-parsing the formatted lines yields an
// equal set.
func (p ParameterSet) Format() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%q: %s,", k, formatParamValue(p[k])))
	}
	return lines
}

func formatParamValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case ParameterSet:
		inner := t.Format()
		return "{" + strings.Join(inner, " ") + "}"
	default:
		return `""`
	}
}

// paramParser is a minimal recursive-descent parser for
//
//	block := '{' (pair (',' pair)* ','?)? '}'
//	pair  := string ':' value
//	value := string | number | boolean | block
//
// It never evaluates anything; unknown input is an error.
type paramParser struct {
	src string
	pos int
}

func (p *paramParser) parseBlock() (ParameterSet, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	set := ParameterSet{}

	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return set, nil
	}

	for {
		key, err := p.parseString()
		if err != nil {
			return nil, fmt.Errorf("key: %w", err)
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		set[strings.ToLower(key)] = val

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' { // trailing comma
				p.pos++
				return set, nil
			}
		case '}':
			p.pos++
			return set, nil
		default:
			return nil, fmt.Errorf("expected ',' or '}' at offset %d", p.pos)
		}
	}
}

func (p *paramParser) parseValue() (interface{}, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == '"' || c == '\'':
		return p.parseString()
	case c == '{':
		return p.parseBlock()
	case c == '-' || c == '+' || unicode.IsDigit(rune(c)):
		return p.parseNumber()
	default:
		if p.consumeWord("True") || p.consumeWord("true") {
			return true, nil
		}
		if p.consumeWord("False") || p.consumeWord("false") {
			return false, nil
		}
		return nil, fmt.Errorf("unexpected character %q at offset %d", c, p.pos)
	}
}

func (p *paramParser) parseString() (string, error) {
	p.skipSpace()
	quote := p.peek()
	if quote != '"' && quote != '\'' {
		return "", fmt.Errorf("expected quote at offset %d", p.pos)
	}
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.src) {
				return "", fmt.Errorf("unterminated escape")
			}
			b.WriteByte(p.src[p.pos])
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *paramParser) parseNumber() (interface{}, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	isFloat := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if unicode.IsDigit(rune(c)) {
			p.pos++
			continue
		}
		if c == '.' || c == 'e' || c == 'E' {
			isFloat = true
			p.pos++
			continue
		}
		if (c == '-' || c == '+') && isFloat && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E') {
			p.pos++
			continue
		}
		break
	}
	text := p.src[start:p.pos]
	if !isFloat {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q", text)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q", text)
	}
	return f, nil
}

func (p *paramParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %d", string(c), p.pos)
	}
	p.pos++
	return nil
}

func (p *paramParser) consumeWord(w string) bool {
	if strings.HasPrefix(p.src[p.pos:], w) {
		end := p.pos + len(w)
		if end == len(p.src) || !isWordChar(p.src[end]) {
			p.pos = end
			return true
		}
	}
	return false
}

func isWordChar(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

func (p *paramParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *paramParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}
