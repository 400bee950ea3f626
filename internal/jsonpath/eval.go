// Package jsonpath implements the restricted $.-path grammar shared by
// response extraction and path assertions.
//
// Supported: dotted map descent, a bracket-delimited [*] wildcard over
// lists (terminal wildcard returns the whole list, non-terminal projects
// the following field from each mapping element), and non-negative
// integer list indices. No filters, recursive descent, or slicing.
//
// An older engine treated the wildcard only as a terminal "return whole
// array" marker; that reduced behavior lives on solely as the legacy
// extractor's no-wildcard restriction (see internal/extract).
package jsonpath

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Engine evaluates path expressions against decoded JSON documents.
// Evaluation never fails: any structural mismatch yields "absent".
type Engine struct {
	log zerolog.Logger
}

// New creates an expression engine logging diagnostics to log.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// Tokenize splits an expression into traversal tokens. A trailing [*]
// on a segment becomes its own atomic token. Returns false when the
// expression does not start with "$.".
func Tokenize(expr string) ([]string, bool) {
	if !strings.HasPrefix(expr, "$.") {
		return nil, false
	}

	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	body := expr[2:]
	for i := 0; i < len(body); i++ {
		switch {
		case body[i] == '.':
			flush()
		case body[i] == '[' && strings.HasPrefix(body[i:], "[*]"):
			flush()
			tokens = append(tokens, "[*]")
			i += 2
		default:
			current.WriteByte(body[i])
		}
	}
	flush()

	return tokens, true
}

// Evaluate walks the document along expr. The second return value is
// false when the target is absent: bad expression, missing key,
// out-of-range index, or a token applied to an incompatible value.
func (e *Engine) Evaluate(doc interface{}, expr string) (interface{}, bool) {
	tokens, ok := Tokenize(expr)
	if !ok {
		e.log.Debug().Str("expression", expr).Msg("expression must start with $.")
		return nil, false
	}

	current := doc
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		switch node := current.(type) {
		case map[string]interface{}:
			value, found := node[token]
			if !found {
				e.log.Debug().Str("expression", expr).Str("token", token).Msg("key not found")
				return nil, false
			}
			current = value

		case []interface{}:
			if token == "[*]" {
				// Terminal wildcard returns the list as-is.
				if i+1 == len(tokens) {
					return node, true
				}
				// Otherwise project the next token as a field from each
				// mapping element, dropping non-conforming elements.
				field := tokens[i+1]
				projected := make([]interface{}, 0, len(node))
				for _, item := range node {
					m, isMap := item.(map[string]interface{})
					if !isMap {
						continue
					}
					if value, found := m[field]; found {
						projected = append(projected, value)
					}
				}
				e.log.Debug().Str("expression", expr).Str("field", field).
					Int("matched", len(projected)).Msg("wildcard projection")
				current = projected
				i++ // field token consumed together with the wildcard
				continue
			}

			index, err := strconv.Atoi(token)
			if err != nil || index < 0 {
				e.log.Debug().Str("expression", expr).Str("token", token).Msg("token not valid for list")
				return nil, false
			}
			if index >= len(node) {
				e.log.Debug().Str("expression", expr).Int("index", index).Int("length", len(node)).Msg("index out of range")
				return nil, false
			}
			current = node[index]

		default:
			e.log.Debug().Str("expression", expr).Str("token", token).Msg("token not applicable to scalar")
			return nil, false
		}
	}

	return current, true
}
