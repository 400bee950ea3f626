// Package session holds the per-virtual-user variable store: one sampled
// fixture row per data source plus variables extracted from responses.
// Stores are session-local and never shared; fixture tables are read-only
// after load and safe for concurrent reads from many sessions.
package session

import (
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/fixture"
	"github.com/studiowebux/loadcli/internal/types"
)

// Store is the per-session key/value state.
//
// Placeholder resolution consults fixture-row fields as the base and lets
// extracted variables override them, so an extracted variable of the same
// name always wins for subsequent steps.
type Store struct {
	order      []string // data source declaration order, for deterministic field lookup
	currentRow map[string]fixture.Row
	extracted  map[string]types.Value
	rng        *rand.Rand
	log        zerolog.Logger
}

// NewStore samples one row uniformly at random from every non-empty
// fixture table and starts with no extracted variables. Sources are
// consulted in declaration order when resolving field names.
func NewStore(sources []types.DataSourceSpec, tables map[string]*fixture.Table, rng *rand.Rand, log zerolog.Logger) *Store {
	s := &Store{
		currentRow: make(map[string]fixture.Row, len(sources)),
		extracted:  make(map[string]types.Value),
		rng:        rng,
		log:        log,
	}

	for _, src := range sources {
		table, ok := tables[src.Name]
		if !ok || table.Empty() {
			continue
		}
		s.order = append(s.order, src.Name)
		s.currentRow[src.Name] = table.Rows[rng.Intn(len(table.Rows))]
	}

	return s
}

// Rand returns the session's random source.
func (s *Store) Rand() *rand.Rand {
	return s.rng
}

// Get returns an extracted variable.
func (s *Store) Get(name string) (types.Value, bool) {
	v, ok := s.extracted[name]
	return v, ok
}

// Set records an extracted variable, shadowing any fixture field of the
// same name.
func (s *Store) Set(name string, value types.Value) {
	s.extracted[name] = value
}

// Lookup resolves a name to a value: extracted variables first, then the
// sampled fixture rows in data source declaration order. Fixture fields
// holding arrays come back as sequences.
func (s *Store) Lookup(name string) (types.Value, bool) {
	if v, ok := s.extracted[name]; ok {
		return v, true
	}

	for _, source := range s.order {
		if raw, ok := s.currentRow[source][name]; ok {
			if seq, isSeq := raw.([]interface{}); isSeq {
				return types.SequenceValue(seq), true
			}
			return types.ScalarValue(types.Stringify(raw)), true
		}
	}

	return types.Value{}, false
}

// ResolvePlaceholder returns the string substituted for a {{name}}
// placeholder. The second return value is false when the name is unknown;
// callers leave the placeholder verbatim in that case.
func (s *Store) ResolvePlaceholder(name string) (string, bool) {
	v, ok := s.Lookup(name)
	if !ok {
		return "", false
	}
	return v.String(), true
}
