// Package extract applies a step's extraction rules to a response,
// writing extracted variables into the session store. Extraction is
// non-fatal by contract: any rule that misses logs a warning and leaves
// its variable unset, and never aborts the other extractions.
package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/jsonpath"
	"github.com/studiowebux/loadcli/internal/session"
	"github.com/studiowebux/loadcli/internal/types"
)

// Engine evaluates extraction specs against responses.
type Engine struct {
	paths *jsonpath.Engine
	log   zerolog.Logger
}

// NewEngine creates an extraction engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{paths: jsonpath.New(log), log: log}
}

// Apply runs every extraction of a step against the response, storing
// successes under the extraction's variable name.
func (e *Engine) Apply(specs map[string]types.ExtractionSpec, result *types.RequestResult, store *session.Store) {
	if len(specs) == 0 {
		return
	}

	// Map iteration order is randomized; apply in sorted-name order to
	// keep runs deterministic. Document order is not recoverable from a
	// map, and order cannot change results since every extraction writes
	// its own distinct variable name.
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	var doc interface{}
	docParsed := false

	for _, name := range names {
		spec := specs[name]

		switch spec.Type {
		case types.ExtractPath:
			if !docParsed {
				docParsed = true
				if err := json.Unmarshal([]byte(result.Body), &doc); err != nil {
					e.log.Warn().Err(err).Msg("response is not valid JSON, skipping path extractions")
					doc = nil
				}
			}
			if doc == nil {
				continue
			}

			value, found := e.paths.Evaluate(doc, spec.Expression)
			if !found {
				e.log.Warn().Str("variable", name).Str("expression", spec.Expression).
					Msg("path extraction matched nothing")
				continue
			}
			if seq, isSeq := value.([]interface{}); isSeq {
				store.Set(name, types.SequenceValue(seq))
				e.log.Debug().Str("variable", name).Int("items", len(seq)).Msg("extracted sequence")
				continue
			}
			e.store(store, name, types.Stringify(value), spec.Transform)

		case types.ExtractRegex:
			value, found := extractRegex(result.Body, spec.Expression)
			if !found {
				e.log.Warn().Str("variable", name).Str("pattern", spec.Expression).
					Msg("regex extraction matched nothing")
				continue
			}
			e.store(store, name, value, spec.Transform)

		case types.ExtractBoundary:
			value, found := extractBoundary(result.Body, spec.LeftBoundary, spec.RightBoundary)
			if !found {
				e.log.Warn().Str("variable", name).
					Str("left", spec.LeftBoundary).Str("right", spec.RightBoundary).
					Msg("boundary extraction matched nothing")
				continue
			}
			e.store(store, name, value, spec.Transform)

		default:
			e.log.Warn().Str("variable", name).Str("type", spec.Type).Msg("unknown extraction type")
		}
	}
}

// store applies the optional transform to a scalar and records it.
func (e *Engine) store(s *session.Store, name, value, transform string) {
	if transform != "" {
		transformed, err := ApplyTransform(value, transform)
		if err != nil {
			e.log.Warn().Err(err).Str("variable", name).Str("transform", transform).
				Msg("transform failed, storing raw value")
		} else {
			value = transformed
		}
	}
	s.Set(name, types.ScalarValue(value))
	e.log.Debug().Str("variable", name).Str("value", value).Msg("extracted variable")
}

// extractRegex searches text and returns the first capturing group when
// the pattern has one, otherwise the whole match.
func extractRegex(text, pattern string) (string, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	matches := re.FindStringSubmatch(text)
	switch {
	case len(matches) > 1:
		return matches[1], true
	case len(matches) == 1:
		return matches[0], true
	default:
		return "", false
	}
}

// extractBoundary returns the trimmed text between the left boundary and
// the first right boundary occurring after it.
func extractBoundary(text, left, right string) (string, bool) {
	start := strings.Index(text, left)
	if start == -1 {
		return "", false
	}
	start += len(left)

	end := strings.Index(text[start:], right)
	if end == -1 {
		return "", false
	}

	return strings.TrimSpace(text[start : start+end]), true
}
