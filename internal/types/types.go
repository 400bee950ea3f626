package types

// Data source kinds.
const (
	SourceTabular    = "tabular"
	SourceStructured = "structured"
)

// Extraction kinds.
const (
	ExtractPath     = "path"
	ExtractRegex    = "regex"
	ExtractBoundary = "boundary"
)

// Assertion kinds.
const (
	AssertStatusCode   = "status_code"
	AssertLatencyMs    = "latency_ms"
	AssertPath         = "path"
	AssertBodyContains = "body_contains"
	AssertRegex        = "regex"
)

// ScenarioDefinition is a declarative load-test scenario loaded from a
// JSON/JSONC/YAML document. Immutable once loaded.
type ScenarioDefinition struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	BaseURL     string           `json:"base_url" yaml:"base_url"`
	MinWaitMs   int              `json:"min_wait,omitempty" yaml:"min_wait,omitempty"`
	MaxWaitMs   int              `json:"max_wait,omitempty" yaml:"max_wait,omitempty"`
	DataSources []DataSourceSpec `json:"data_sources,omitempty" yaml:"data_sources,omitempty"`
	Steps       []StepSpec       `json:"steps" yaml:"steps"`
}

// DataSourceSpec describes one fixture dataset sampled per session.
type DataSourceSpec struct {
	Name    string   `json:"name" yaml:"name"`
	Type    string   `json:"type" yaml:"type"` // tabular or structured
	File    string   `json:"file" yaml:"file"`
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"` // tabular allow-list
	Path    string   `json:"path,omitempty" yaml:"path,omitempty"`       // structured path expression
}

// StepSpec is a single parameterized request in a scenario.
type StepSpec struct {
	ID         string                    `json:"id" yaml:"id"`
	Name       string                    `json:"name" yaml:"name"`
	Method     string                    `json:"method" yaml:"method"`
	URL        string                    `json:"url" yaml:"url"`
	Headers    map[string]string         `json:"headers,omitempty" yaml:"headers,omitempty"`
	Params     map[string]string         `json:"params,omitempty" yaml:"params,omitempty"`
	Body       interface{}               `json:"body,omitempty" yaml:"body,omitempty"`
	Extract    map[string]ExtractionSpec `json:"extract,omitempty" yaml:"extract,omitempty"`
	Assertions []AssertionSpec           `json:"assertions,omitempty" yaml:"assertions,omitempty"`
}

// ExtractionSpec describes how one variable is pulled out of a response.
// In scenario documents it may appear either as a bare path string
// ("user_count": "total") or as a typed object; Bare records which form
// was used because engine-mode selection depends on it.
type ExtractionSpec struct {
	Type          string `json:"type,omitempty" yaml:"type,omitempty"`
	Expression    string `json:"expression,omitempty" yaml:"expression,omitempty"`
	LeftBoundary  string `json:"left_boundary,omitempty" yaml:"left_boundary,omitempty"`
	RightBoundary string `json:"right_boundary,omitempty" yaml:"right_boundary,omitempty"`
	Transform     string `json:"transform,omitempty" yaml:"transform,omitempty"`

	Bare bool `json:"-" yaml:"-"`
}

// AssertionSpec describes one expectation checked against a step response.
type AssertionSpec struct {
	Type        string      `json:"type" yaml:"type"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Expected    interface{} `json:"expected,omitempty" yaml:"expected,omitempty"`
	Min         *float64    `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64    `json:"max,omitempty" yaml:"max,omitempty"`
	Expression  string      `json:"expression,omitempty" yaml:"expression,omitempty"`
	Text        string      `json:"text,omitempty" yaml:"text,omitempty"`
	Pattern     string      `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// RequestResult contains the response data for one dispatched step request
type RequestResult struct {
	Status       int               `json:"status"`
	StatusText   string            `json:"statusText"`
	Headers      map[string]string `json:"headers"`
	Body         string            `json:"body"`
	Duration     int64             `json:"duration"`     // milliseconds
	RequestSize  int               `json:"requestSize"`  // bytes
	ResponseSize int               `json:"responseSize"` // bytes
	Error        string            `json:"error,omitempty"`
}

// StepOutcome is the per-step verdict. Assertion failures are aggregated;
// dispatch errors are reported separately from assertion failures.
type StepOutcome struct {
	StepID        string   `json:"stepId"`
	StepName      string   `json:"stepName"`
	Status        int      `json:"status"`
	DurationMs    int64    `json:"durationMs"`
	Failures      []string `json:"failures,omitempty"`
	DispatchError string   `json:"dispatchError,omitempty"`
}

// Passed reports whether the step had no dispatch error and no assertion failures.
func (o *StepOutcome) Passed() bool {
	return o.DispatchError == "" && len(o.Failures) == 0
}

// FailureMessage joins all assertion failures into the single combined
// message reported for the step.
func (o *StepOutcome) FailureMessage() string {
	if len(o.Failures) == 0 {
		return ""
	}
	msg := o.Failures[0]
	for _, f := range o.Failures[1:] {
		msg += "; " + f
	}
	return msg
}
