// Package fixture loads tabular and structured data sources referenced
// by a scenario. Load problems are non-fatal: a missing or corrupt file
// yields an empty table and a logged warning, because the rest of the
// scenario may not depend on it.
package fixture

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/jsonpath"
	"github.com/studiowebux/loadcli/internal/types"
)

// Row is one record of a fixture table. Tabular sources produce
// string-valued fields; structured sources carry arbitrary JSON values.
type Row map[string]interface{}

// Table is an ordered, read-only sequence of rows shared by all sessions.
type Table struct {
	Rows []Row
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// Loader materializes fixture tables for a scenario's data sources.
type Loader struct {
	baseDir string
	paths   *jsonpath.Engine
	log     zerolog.Logger
}

// NewLoader creates a loader resolving relative file paths against
// baseDir (the scenario document's directory).
func NewLoader(baseDir string, log zerolog.Logger) *Loader {
	return &Loader{
		baseDir: baseDir,
		paths:   jsonpath.New(log),
		log:     log,
	}
}

// LoadAll loads every data source, keyed by source name. Sources that
// fail to load are present as empty tables.
func (l *Loader) LoadAll(specs []types.DataSourceSpec) map[string]*Table {
	tables := make(map[string]*Table, len(specs))
	for _, spec := range specs {
		tables[spec.Name] = l.Load(spec)
	}
	return tables
}

// Load materializes one fixture table. Never returns an error: failures
// are logged and produce an empty table.
func (l *Loader) Load(spec types.DataSourceSpec) *Table {
	path := spec.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.baseDir, path)
	}

	var table *Table
	var err error
	switch spec.Type {
	case types.SourceTabular:
		table, err = l.loadTabular(path, spec.Columns)
	case types.SourceStructured:
		table, err = l.loadStructured(path, spec.Path)
	default:
		err = fmt.Errorf("unknown data source type %q", spec.Type)
	}

	if err != nil {
		l.log.Warn().Err(err).Str("source", spec.Name).Str("file", spec.File).
			Msg("failed to load data source, continuing with empty table")
		return &Table{}
	}

	l.log.Info().Str("source", spec.Name).Str("type", spec.Type).
		Int("rows", len(table.Rows)).Msg("loaded data source")
	return table
}

// loadTabular reads a header row plus data rows into row-maps. An
// optional column allow-list drops all other fields.
func (l *Loader) loadTabular(path string, columns []string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	allowed := make(map[string]bool, len(columns))
	for _, c := range columns {
		allowed[c] = true
	}

	header := records[0]
	table := &Table{Rows: make([]Row, 0, len(records)-1)}
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, field := range header {
			if i >= len(record) {
				break
			}
			if len(allowed) > 0 && !allowed[field] {
				continue
			}
			row[field] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// loadStructured parses a JSON document and evaluates the source's path
// expression. A path ending in a wildcard yields the array at that
// position, one row per mapping element; any other path yields a
// one-element table.
func (l *Loader) loadStructured(path string, expr string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}

	var value interface{}
	if expr == "" || expr == "$" {
		value = doc
	} else {
		var found bool
		value, found = l.paths.Evaluate(doc, expr)
		if !found {
			return nil, fmt.Errorf("path %q matched nothing", expr)
		}
	}

	table := &Table{}
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if row, ok := item.(map[string]interface{}); ok {
				table.Rows = append(table.Rows, Row(row))
			}
		}
	case map[string]interface{}:
		table.Rows = append(table.Rows, Row(v))
	default:
		return nil, fmt.Errorf("path %q resolved to a scalar, expected an object or array", expr)
	}

	return table, nil
}
