// Package assert evaluates a step's assertions against its response.
// Every assertion is evaluated independently and every failure is
// collected, so one run surfaces all broken expectations for a step in a
// single combined message instead of stopping at the first.
package assert

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/jsonpath"
	"github.com/studiowebux/loadcli/internal/types"
)

// Engine evaluates assertion specs.
type Engine struct {
	paths *jsonpath.Engine
	log   zerolog.Logger
}

// NewEngine creates an assertion engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{paths: jsonpath.New(log), log: log}
}

// Evaluate checks every assertion and returns the ordered failure
// descriptions. An empty slice means the step passed.
func (e *Engine) Evaluate(specs []types.AssertionSpec, result *types.RequestResult) []string {
	var failures []string

	for _, spec := range specs {
		desc := spec.Description
		if desc == "" {
			desc = fmt.Sprintf("%s assertion", spec.Type)
		}

		switch spec.Type {
		case types.AssertStatusCode:
			expected := int(toFloat64Default(spec.Expected, 200))
			if result.Status != expected {
				failures = append(failures, fmt.Sprintf("%s: expected %d, got %d", desc, expected, result.Status))
			}

		case types.AssertLatencyMs:
			limit := int64(5000)
			if spec.Max != nil {
				limit = int64(*spec.Max)
			}
			if result.Duration > limit {
				failures = append(failures, fmt.Sprintf("%s: response time %dms exceeds %dms", desc, result.Duration, limit))
			}

		case types.AssertPath:
			failures = append(failures, e.evaluatePath(spec, desc, result)...)

		case types.AssertBodyContains:
			if !strings.Contains(result.Body, spec.Text) {
				failures = append(failures, fmt.Sprintf("%s: response does not contain text %q", desc, spec.Text))
			}

		case types.AssertRegex:
			matched, err := regexp.MatchString(spec.Pattern, result.Body)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: invalid pattern %q: %v", desc, spec.Pattern, err))
			} else if !matched {
				failures = append(failures, fmt.Sprintf("%s: response does not match pattern %q", desc, spec.Pattern))
			}

		default:
			failures = append(failures, fmt.Sprintf("%s: unknown assertion type %q", desc, spec.Type))
		}
	}

	return failures
}

// evaluatePath runs the shared traversal against the response body and
// checks the configured conditions. With min/max, list values compare by
// LENGTH and every other value by the value itself; both branches must
// stay distinct.
func (e *Engine) evaluatePath(spec types.AssertionSpec, desc string, result *types.RequestResult) []string {
	var doc interface{}
	if err := json.Unmarshal([]byte(result.Body), &doc); err != nil {
		return []string{fmt.Sprintf("%s: error evaluating expression - %v", desc, err)}
	}

	value, found := e.paths.Evaluate(doc, spec.Expression)
	if !found {
		return []string{fmt.Sprintf("%s: expression returned none", desc)}
	}

	var failures []string

	if spec.Expected != nil {
		if !equalValues(value, spec.Expected) {
			failures = append(failures, fmt.Sprintf("%s: expected %v, got %v", desc, spec.Expected, value))
		}
	}

	seq, isSeq := value.([]interface{})

	if spec.Min != nil {
		if isSeq {
			if float64(len(seq)) < *spec.Min {
				failures = append(failures, fmt.Sprintf("%s: list has %d items, which is below minimum %s",
					desc, len(seq), formatBound(*spec.Min)))
			}
		} else if num, ok := toFloat64(value); !ok {
			failures = append(failures, fmt.Sprintf("%s: error evaluating expression - value %v is not numeric", desc, value))
		} else if num < *spec.Min {
			failures = append(failures, fmt.Sprintf("%s: value %v is below minimum %s", desc, value, formatBound(*spec.Min)))
		}
	}

	if spec.Max != nil {
		if isSeq {
			if float64(len(seq)) > *spec.Max {
				failures = append(failures, fmt.Sprintf("%s: list has %d items, which exceeds maximum %s",
					desc, len(seq), formatBound(*spec.Max)))
			}
		} else if num, ok := toFloat64(value); !ok {
			failures = append(failures, fmt.Sprintf("%s: error evaluating expression - value %v is not numeric", desc, value))
		} else if num > *spec.Max {
			failures = append(failures, fmt.Sprintf("%s: value %v exceeds maximum %s", desc, value, formatBound(*spec.Max)))
		}
	}

	// No conditions configured: existence of the value is the check.
	return failures
}

// equalValues compares a resolved value with the configured expectation,
// normalizing numbers so 5 and 5.0 compare equal. A numeric value never
// equals a string expectation: the comparison is exact, not coercing.
func equalValues(value, expected interface{}) bool {
	vn, vok := toFloat64(value)
	en, eok := toFloat64(expected)
	if vok && eok {
		return vn == en
	}
	if vok != eok {
		return false
	}
	return types.Stringify(value) == types.Stringify(expected)
}

// toFloat64 converts numeric JSON values to float64. Strings stay
// strings; "5" is not a number here.
func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toFloat64Default(value interface{}, fallback float64) float64 {
	if f, ok := toFloat64(value); ok {
		return f
	}
	return fallback
}

// formatBound renders a min/max bound without a trailing ".0" for whole
// numbers, matching how bounds appear in scenario documents.
func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
