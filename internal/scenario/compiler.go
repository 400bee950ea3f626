// Package scenario compiles a validated ScenarioDefinition into an
// in-memory execution plan: fixture tables materialized once, step
// records ready for interpretation, and the engine mode selected. The
// plan is interpreted directly by the runner; no program text is
// generated.
package scenario

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/fixture"
	"github.com/studiowebux/loadcli/internal/types"
)

// Mode selects between the full engine and the reduced legacy path.
type Mode string

const (
	// ModeFull enables wildcard path traversal, regex/boundary
	// extraction, and the full assertion set.
	ModeFull Mode = "full"
	// ModeLegacy supports only bare dotted-path extraction plus a
	// single implicit status-code assertion.
	ModeLegacy Mode = "legacy"
)

// Plan is the compiled, immutable form of a scenario. Shared read-only
// across all sessions.
type Plan struct {
	Definition *types.ScenarioDefinition
	Mode       Mode
	Tables     map[string]*fixture.Table
	Steps      []Step
}

// Step is one executable step record.
type Step struct {
	ID         string
	Name       string
	Method     string
	URL        string // base URL already joined for relative step URLs
	Headers    map[string]string
	Params     map[string]string
	Body       interface{}
	Extract    map[string]types.ExtractionSpec
	Assertions []types.AssertionSpec
}

// Compile materializes fixtures and builds the execution plan. The
// definition must already have passed parser validation.
func Compile(def *types.ScenarioDefinition, baseDir string, log zerolog.Logger) *Plan {
	plan := &Plan{
		Definition: def,
		Mode:       SelectMode(def),
		Steps:      make([]Step, 0, len(def.Steps)),
	}

	if len(def.DataSources) > 0 {
		plan.Tables = fixture.NewLoader(baseDir, log).LoadAll(def.DataSources)
	} else {
		plan.Tables = map[string]*fixture.Table{}
	}

	for _, spec := range def.Steps {
		step := Step{
			ID:      spec.ID,
			Name:    spec.Name,
			Method:  spec.Method,
			URL:     joinURL(def.BaseURL, spec.URL),
			Headers: spec.Headers,
			Params:  spec.Params,
			Body:    spec.Body,
			Extract: spec.Extract,
		}

		if plan.Mode == ModeLegacy {
			// The legacy engine checks nothing but a 200.
			step.Assertions = []types.AssertionSpec{{
				Type:     types.AssertStatusCode,
				Expected: float64(200),
			}}
		} else {
			step.Assertions = spec.Assertions
		}

		plan.Steps = append(plan.Steps, step)
	}

	log.Info().Str("scenario", def.Name).Str("mode", string(plan.Mode)).
		Int("steps", len(plan.Steps)).Int("dataSources", len(def.DataSources)).
		Msg("compiled scenario")

	return plan
}

// SelectMode picks the engine variant for a scenario. The full engine is
// used when the scenario declares any data source, any typed (non-bare)
// extraction, or any kind-tagged assertion; otherwise the legacy path
// suffices. Pure function of the definition, evaluated once.
func SelectMode(def *types.ScenarioDefinition) Mode {
	if len(def.DataSources) > 0 {
		return ModeFull
	}

	for _, step := range def.Steps {
		for _, ex := range step.Extract {
			if !ex.Bare {
				return ModeFull
			}
		}
		if len(step.Assertions) > 0 {
			return ModeFull
		}
	}

	return ModeLegacy
}

// joinURL prefixes relative step URLs with the scenario base URL.
func joinURL(base, url string) string {
	if base == "" || strings.Contains(url, "://") {
		return url
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(url, "/")
}
