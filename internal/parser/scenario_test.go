package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/studiowebux/loadcli/internal/types"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeScenario(t, "basic.json", `{
		"name": "basic",
		"base_url": "https://api.example.com",
		"steps": [
			{"id": "list", "url": "/posts"}
		]
	}`)

	def, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "basic" {
		t.Errorf("name = %q", def.Name)
	}
	if def.Steps[0].Method != "GET" {
		t.Errorf("method should default to GET, got %q", def.Steps[0].Method)
	}
}

func TestLoadJSONC(t *testing.T) {
	path := writeScenario(t, "commented.jsonc", `{
		// scenario with comments
		"name": "commented",
		"steps": [
			{"id": "s1", "url": "/health", "method": "get"}, // trailing comma below
		],
	}`)

	def, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if def.Steps[0].Method != "GET" {
		t.Errorf("method should be uppercased, got %q", def.Steps[0].Method)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeScenario(t, "scenario.yaml", `
name: yaml-scenario
base_url: https://api.example.com
min_wait: 100
max_wait: 500
steps:
  - id: login
    method: post
    url: /login
    body:
      user: "{{username}}"
    extract:
      token:
        type: path
        expression: "$.token"
    assertions:
      - type: status_code
        expected: 200
`)

	def, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if def.MinWaitMs != 100 || def.MaxWaitMs != 500 {
		t.Errorf("wait bounds = %d/%d", def.MinWaitMs, def.MaxWaitMs)
	}
	if def.Steps[0].Method != "POST" {
		t.Errorf("method = %q", def.Steps[0].Method)
	}
	ex := def.Steps[0].Extract["token"]
	if ex.Type != types.ExtractPath || ex.Expression != "$.token" || ex.Bare {
		t.Errorf("extraction = %+v", ex)
	}
}

func TestBareExtractionString(t *testing.T) {
	path := writeScenario(t, "bare.json", `{
		"name": "bare",
		"steps": [
			{"id": "s1", "url": "/users", "extract": {"user_id": "data.id"}}
		]
	}`)

	def, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	ex := def.Steps[0].Extract["user_id"]
	if !ex.Bare {
		t.Error("string-form extraction should be marked bare")
	}
	if ex.Type != types.ExtractPath {
		t.Errorf("type = %q", ex.Type)
	}
	if ex.Expression != "data.id" {
		t.Errorf("expression = %q", ex.Expression)
	}
}

func TestAliasNormalization(t *testing.T) {
	path := writeScenario(t, "aliases.json", `{
		"name": "aliases",
		"data_sources": [
			{"name": "users", "type": "csv", "file": "users.csv"}
		],
		"steps": [
			{
				"id": "s1",
				"url": "/posts",
				"extract": {"v": {"type": "json_path", "expression": "$.v"}},
				"assertions": [
					{"type": "json_path", "expression": "$.total"},
					{"type": "response_time_ms", "max": 500},
					{"type": "body_contains_text", "text": "ok"}
				]
			}
		]
	}`)

	def, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if def.DataSources[0].Type != types.SourceTabular {
		t.Errorf("csv alias: %q", def.DataSources[0].Type)
	}
	if def.Steps[0].Extract["v"].Type != types.ExtractPath {
		t.Errorf("json_path extraction alias: %q", def.Steps[0].Extract["v"].Type)
	}
	got := []string{
		def.Steps[0].Assertions[0].Type,
		def.Steps[0].Assertions[1].Type,
		def.Steps[0].Assertions[2].Type,
	}
	want := []string{types.AssertPath, types.AssertLatencyMs, types.AssertBodyContains}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("assertion %d alias: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDetectFormatByContent(t *testing.T) {
	if got := DetectFormat("scenario", []byte(`{"name": "x"}`)); got != "json" {
		t.Errorf("brace content should detect json, got %q", got)
	}
	if got := DetectFormat("scenario", []byte("name: x\nsteps: []")); got != "yaml" {
		t.Errorf("plain content should detect yaml, got %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"noname.json", `{"steps": [{"id": "a", "url": "/x"}]}`, "name is required"},
		{"nosteps.json", `{"name": "x", "steps": []}`, "no steps"},
		{"nourl.json", `{"name": "x", "steps": [{"id": "a"}]}`, "url is required"},
		{"badwait.json", `{"name": "x", "min_wait": 500, "max_wait": 100, "steps": [{"id": "a", "url": "/x"}]}`, "exceeds max_wait"},
		{"dupsource.json", `{"name": "x", "data_sources": [
			{"name": "d", "type": "tabular", "file": "a.csv"},
			{"name": "d", "type": "tabular", "file": "b.csv"}
		], "steps": [{"id": "a", "url": "/x"}]}`, "duplicate data source"},
		{"badsourcetype.json", `{"name": "x", "data_sources": [
			{"name": "d", "type": "xml", "file": "a.xml"}
		], "steps": [{"id": "a", "url": "/x"}]}`, "unknown type"},
		{"nofile.json", `{"name": "x", "data_sources": [
			{"name": "d", "type": "tabular"}
		], "steps": [{"id": "a", "url": "/x"}]}`, "file is required"},
		{"badextract.json", `{"name": "x", "steps": [
			{"id": "a", "url": "/x", "extract": {"v": {"type": "regex"}}}
		]}`, "requires an expression"},
		{"badassert.json", `{"name": "x", "steps": [
			{"id": "a", "url": "/x", "assertions": [{"type": "teleport"}]}
		]}`, "has unknown type"},
		{"garbage.json", `{{{`, "failed to parse"},
	}

	for _, tt := range tests {
		path := writeScenario(t, tt.name, tt.content)
		_, err := Load(path)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.wantErr)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("missing scenario file must be fatal")
	}
}
