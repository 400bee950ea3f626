package extract

import (
	"encoding/json"
	"sort"

	"github.com/jmespath/go-jmespath"
	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/session"
	"github.com/studiowebux/loadcli/internal/types"
)

// LegacyEngine is the reduced extractor used when a scenario declares
// only bare dotted-path extractions: expressions are evaluated as plain
// JMESPath key paths, with no wildcards, regexes, or boundaries.
type LegacyEngine struct {
	log zerolog.Logger
}

// NewLegacyEngine creates the reduced extractor.
func NewLegacyEngine(log zerolog.Logger) *LegacyEngine {
	return &LegacyEngine{log: log}
}

// Apply evaluates each dotted path against the response body and stores
// scalar results. Misses are logged warnings, never errors.
func (e *LegacyEngine) Apply(specs map[string]types.ExtractionSpec, result *types.RequestResult, store *session.Store) {
	if len(specs) == 0 {
		return
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(result.Body), &doc); err != nil {
		e.log.Warn().Err(err).Msg("cannot extract variables: response is not valid JSON")
		return
	}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := specs[name].Expression

		value, err := jmespath.Search(path, doc)
		if err != nil {
			e.log.Warn().Err(err).Str("variable", name).Str("path", path).Msg("failed to extract variable")
			continue
		}
		if value == nil {
			e.log.Warn().Str("variable", name).Str("path", path).Msg("path returned null")
			continue
		}

		store.Set(name, types.ScalarValue(types.Stringify(value)))
		e.log.Debug().Str("variable", name).Str("path", path).Msg("extracted variable")
	}
}
