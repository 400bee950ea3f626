// Package parser loads and validates scenario documents. Unlike fixture
// loading, scenario problems are fatal: a malformed document aborts the
// run before any session starts.
package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/loadcli/internal/types"
)

// Load reads, decodes, and validates a scenario document.
func Load(filePath string) (*types.ScenarioDefinition, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	format := DetectFormat(filePath, data)

	var def types.ScenarioDefinition
	switch format {
	case "json":
		// jsonc strips comments and trailing commas, so plain JSON
		// passes through untouched.
		if err := json.Unmarshal(jsonc.ToJSON(data), &def); err != nil {
			return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format: %s", format)
	}

	normalize(&def)

	if err := Validate(&def); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", filePath, err)
	}

	return &def, nil
}

// DetectFormat decides between JSON and YAML from the file extension,
// peeking at the content for extension-less files.
func DetectFormat(filePath string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json", ".jsonc":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}

	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
		return "json"
	}
	return "yaml"
}

// normalize applies defaults and accepts the field aliases older
// scenario documents use.
func normalize(def *types.ScenarioDefinition) {
	for i := range def.DataSources {
		switch def.DataSources[i].Type {
		case "csv":
			def.DataSources[i].Type = types.SourceTabular
		case "json":
			def.DataSources[i].Type = types.SourceStructured
		}
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		if step.Method == "" {
			step.Method = "GET"
		}
		step.Method = strings.ToUpper(step.Method)

		for name, ex := range step.Extract {
			if ex.Type == "json_path" {
				ex.Type = types.ExtractPath
				step.Extract[name] = ex
			}
		}

		for j := range step.Assertions {
			switch step.Assertions[j].Type {
			case "json_path":
				step.Assertions[j].Type = types.AssertPath
			case "response_time_ms":
				step.Assertions[j].Type = types.AssertLatencyMs
			case "body_contains_text":
				step.Assertions[j].Type = types.AssertBodyContains
			}
		}
	}
}

// Validate checks the structural invariants a scenario must satisfy
// before compilation.
func Validate(def *types.ScenarioDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}
	if def.MinWaitMs < 0 || def.MaxWaitMs < 0 {
		return fmt.Errorf("wait bounds cannot be negative")
	}
	if def.MaxWaitMs > 0 && def.MinWaitMs > def.MaxWaitMs {
		return fmt.Errorf("min_wait %d exceeds max_wait %d", def.MinWaitMs, def.MaxWaitMs)
	}

	seen := make(map[string]bool, len(def.DataSources))
	for _, src := range def.DataSources {
		if src.Name == "" {
			return fmt.Errorf("data source name is required")
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate data source name %q", src.Name)
		}
		seen[src.Name] = true

		if src.Type != types.SourceTabular && src.Type != types.SourceStructured {
			return fmt.Errorf("data source %q: unknown type %q", src.Name, src.Type)
		}
		if src.File == "" {
			return fmt.Errorf("data source %q: file is required", src.Name)
		}
	}

	for i, step := range def.Steps {
		label := step.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}

		if step.URL == "" {
			return fmt.Errorf("step %s: url is required", label)
		}

		for name, ex := range step.Extract {
			switch ex.Type {
			case types.ExtractPath, types.ExtractRegex:
				if ex.Expression == "" {
					return fmt.Errorf("step %s: extraction %q requires an expression", label, name)
				}
			case types.ExtractBoundary:
				if ex.LeftBoundary == "" && ex.RightBoundary == "" {
					return fmt.Errorf("step %s: extraction %q requires boundaries", label, name)
				}
			default:
				return fmt.Errorf("step %s: extraction %q has unknown type %q", label, name, ex.Type)
			}
		}

		for j, a := range step.Assertions {
			switch a.Type {
			case types.AssertStatusCode, types.AssertLatencyMs, types.AssertBodyContains:
			case types.AssertPath:
				if a.Expression == "" {
					return fmt.Errorf("step %s: assertion %d requires an expression", label, j+1)
				}
			case types.AssertRegex:
				if a.Pattern == "" {
					return fmt.Errorf("step %s: assertion %d requires a pattern", label, j+1)
				}
			default:
				return fmt.Errorf("step %s: assertion %d has unknown type %q", label, j+1, a.Type)
			}
		}
	}

	return nil
}
