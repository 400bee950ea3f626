/*
Package types defines core data structures used throughout loadcli.

# Overview

The types package provides shared type definitions for:
  - Scenario documents (scenarios, data sources, steps)
  - Extraction and assertion specifications
  - Request results and step outcomes
  - Extracted variable values

# Scenario Types

ScenarioDefinition:
  - Declarative load-test description
  - Parsed from JSON/JSONC/YAML files
  - Base URL, inter-step wait bounds
  - Ordered data sources and steps

StepSpec:
  - One parameterized request
  - URL/header/param/body templates with {{name}} placeholders
  - Variable extraction map and assertion list

ExtractionSpec:
  - path, regex, or boundary extraction
  - Optional named transform
  - Accepts bare path strings for legacy scenarios; the Bare flag
    records which form was used (engine-mode selection depends on it)

AssertionSpec:
  - status_code, latency_ms, path, body_contains, regex
  - Kind-specific parameters (expected, min, max, pattern, text)

# Result Types

RequestResult:
  - HTTP response data for one dispatched step
  - Status, headers, body
  - Duration and size metrics
  - Transport-level error, if any

StepOutcome:
  - Aggregated assertion verdict for one step
  - All failures collected, joined with "; "
  - Dispatch errors kept distinct from assertion failures

# Values

Value is a tagged union (scalar string or ordered sequence) used for
extracted variables, so callers never inspect runtime types at use sites.
*/
package types
