// Package entry decodes user entries and expands them into measurement rows
package entry

import (
	"math"
	"strconv"
	"strings"

	"github.com/mrcode/health-manager/internal/catalog"
)

// Fields holds decoded raw values keyed by the record type's field names
type Fields map[string]float64

// Get returns the value for name, falling back to its catalog aliases
func (f Fields) Get(name string) (float64, bool) {
	if v, ok := f[name]; ok {
		return v, true
	}
	for _, alias := range catalog.Aliases[name] {
		if v, ok := f[alias]; ok {
			return v, true
		}
	}
	return 0, false
}

// Has reports whether every name resolves to a value
func (f Fields) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := f.Get(name); !ok {
			return false
		}
	}
	return true
}

// Decode splits raw on whitespace and binds each number to the record type's
// fields by position. The count is checked before any token is parsed, and
// nothing is returned alongside an error.
func Decode(rt catalog.RecordType, raw string) (Fields, error) {
	tokens := strings.Fields(raw)
	if len(tokens) != rt.Arity() {
		return nil, &ParseError{RecordType: rt.Name, Input: raw, Want: rt.Arity(), Got: len(tokens)}
	}

	fields := make(Fields, len(tokens))
	for i, token := range tokens {
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, &ParseError{RecordType: rt.Name, Input: raw, Token: token, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ParseError{RecordType: rt.Name, Input: raw, Token: token, Err: ErrNotFinite}
		}
		fields[rt.Fields[i]] = v
	}
	return fields, nil
}
