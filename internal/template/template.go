// Package template resolves {{...}} placeholders in step templates.
//
// Resolution is two-pass and best-effort: dynamic function calls first,
// then plain placeholders, so that function arguments referencing
// variables see concrete strings. Function misuse never fails a step; it
// substitutes a documented default instead.
package template

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/session"
	"github.com/studiowebux/loadcli/internal/types"
)

var (
	// Variable placeholder pattern: {{varName}}
	varPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

	// Dynamic function patterns, fixed grammar
	randomPattern          = regexp.MustCompile(`\{\{random\(([^,)]+),\s*([^)]+)\)\}\}`)
	randomFromArrayPattern = regexp.MustCompile(`\{\{random_from_array\(([^)]+)\)\}\}`)
	randomSubsetPattern    = regexp.MustCompile(`\{\{random_subset_from_array\(([^,)]+),\s*([^)]+)\)\}\}`)
	randomIndexPattern     = regexp.MustCompile(`\{\{random_index_from_array\(([^)]+)\)\}\}`)
)

// Engine resolves template text against one session's variable store.
type Engine struct {
	store      *session.Store
	log        zerolog.Logger
	unresolved []string
}

// NewEngine creates a template engine bound to a session store.
func NewEngine(store *session.Store, log zerolog.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// Resolve replaces dynamic functions, then plain placeholders.
// Unresolved placeholders are left verbatim; they are an authoring
// problem, not an engine error.
func (e *Engine) Resolve(input string) string {
	if input == "" {
		return input
	}
	result := e.resolveFunctions(input)
	return e.resolvePlaceholders(result)
}

// ResolveMap resolves every value of a template map (headers, params).
func (e *Engine) ResolveMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	resolved := make(map[string]string, len(input))
	for key, value := range input {
		resolved[key] = e.Resolve(value)
	}
	return resolved
}

// ResolveBody serializes a JSON body template, resolves it as text, and
// returns the resolved document. A body that no longer parses after
// substitution is sent as-is with a logged warning.
func (e *Engine) ResolveBody(body interface{}) string {
	if body == nil {
		return ""
	}

	raw, err := json.Marshal(body)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to serialize body template")
		return ""
	}

	resolved := e.Resolve(string(raw))

	var check interface{}
	if err := json.Unmarshal([]byte(resolved), &check); err != nil {
		e.log.Warn().Err(err).Msg("resolved body is no longer valid JSON, sending as text")
	}
	return resolved
}

// UnresolvedVariables returns the unique placeholder names that could not
// be resolved so far.
func (e *Engine) UnresolvedVariables() []string {
	seen := make(map[string]bool)
	unique := []string{}
	for _, v := range e.unresolved {
		if !seen[v] {
			seen[v] = true
			unique = append(unique, v)
		}
	}
	return unique
}

// resolvePlaceholders resolves {{varName}} placeholders via the store.
func (e *Engine) resolvePlaceholders(input string) string {
	return varPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])

		if value, ok := e.store.ResolvePlaceholder(name); ok {
			return value
		}

		e.unresolved = append(e.unresolved, name)
		return match
	})
}

// resolveFunctions expands the fixed set of dynamic function calls.
func (e *Engine) resolveFunctions(input string) string {
	result := randomPattern.ReplaceAllStringFunc(input, e.replaceRandom)
	result = randomFromArrayPattern.ReplaceAllStringFunc(result, e.replaceRandomFromArray)
	result = randomSubsetPattern.ReplaceAllStringFunc(result, e.replaceRandomSubset)
	result = randomIndexPattern.ReplaceAllStringFunc(result, e.replaceRandomIndex)
	return result
}

// replaceRandom handles random(a, b): a uniform integer in [a, b].
// Falls back to "1" when the bounds do not resolve to a valid range.
func (e *Engine) replaceRandom(match string) string {
	groups := randomPattern.FindStringSubmatch(match)
	minVal, minErr := strconv.Atoi(e.resolveArgument(groups[1]))
	maxVal, maxErr := strconv.Atoi(e.resolveArgument(groups[2]))
	if minErr != nil || maxErr != nil || minVal > maxVal {
		e.log.Warn().Str("call", match).Msg("random() bounds did not resolve, using default")
		return "1"
	}
	return strconv.Itoa(minVal + e.store.Rand().Intn(maxVal-minVal+1))
}

// replaceRandomFromArray handles random_from_array(v): one uniformly
// sampled element. Falls back to "1".
func (e *Engine) replaceRandomFromArray(match string) string {
	groups := randomFromArrayPattern.FindStringSubmatch(match)
	seq := e.sequenceFor(groups[1], true)
	if len(seq) == 0 {
		e.log.Warn().Str("call", match).Msg("random_from_array() source did not resolve, using default")
		return "1"
	}
	return types.Stringify(seq[e.store.Rand().Intn(len(seq))])
}

// replaceRandomSubset handles random_subset_from_array(v, n): min(n, len)
// distinct elements joined with "," for URL/query use. Falls back to "".
func (e *Engine) replaceRandomSubset(match string) string {
	groups := randomSubsetPattern.FindStringSubmatch(match)

	n, err := strconv.Atoi(e.resolveArgument(groups[2]))
	if err != nil {
		n = 1
	}

	seq := e.sequenceFor(groups[1], false)
	if len(seq) == 0 || n < 1 {
		e.log.Warn().Str("call", match).Msg("random_subset_from_array() source did not resolve, using default")
		return ""
	}

	if n > len(seq) {
		n = len(seq)
	}
	picked := make([]string, 0, n)
	for _, idx := range e.store.Rand().Perm(len(seq))[:n] {
		picked = append(picked, types.Stringify(seq[idx]))
	}
	return strings.Join(picked, ",")
}

// replaceRandomIndex handles random_index_from_array(v): a uniformly
// sampled valid index. Falls back to "0".
func (e *Engine) replaceRandomIndex(match string) string {
	groups := randomIndexPattern.FindStringSubmatch(match)
	seq := e.sequenceFor(groups[1], false)
	if len(seq) == 0 {
		e.log.Warn().Str("call", match).Msg("random_index_from_array() source did not resolve, using default")
		return "0"
	}
	return strconv.Itoa(e.store.Rand().Intn(len(seq)))
}

// resolveArgument treats a function argument as a variable name when one
// is bound, otherwise as a literal.
func (e *Engine) resolveArgument(arg string) string {
	arg = strings.TrimSpace(arg)
	if value, ok := e.store.ResolvePlaceholder(arg); ok {
		return value
	}
	return arg
}

// sequenceFor resolves a variable to a sequence. Scalars holding a JSON
// array are parsed; with textFallback, a comma-delimited scalar is split
// as a last resort.
func (e *Engine) sequenceFor(name string, textFallback bool) []interface{} {
	value, ok := e.store.Lookup(strings.TrimSpace(name))
	if !ok {
		return nil
	}

	if value.IsSequence() {
		return value.Sequence
	}

	var parsed []interface{}
	if err := json.Unmarshal([]byte(*value.Scalar), &parsed); err == nil {
		return parsed
	}

	if textFallback && strings.Contains(*value.Scalar, ",") {
		parts := strings.Split(*value.Scalar, ",")
		seq := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			seq = append(seq, strings.TrimSpace(p))
		}
		return seq
	}

	return nil
}
