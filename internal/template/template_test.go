package template

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/fixture"
	"github.com/studiowebux/loadcli/internal/session"
	"github.com/studiowebux/loadcli/internal/types"
)

func testEngine(t *testing.T, seed int64) (*Engine, *session.Store) {
	t.Helper()

	sources := []types.DataSourceSpec{
		{Name: "data", Type: types.SourceStructured, File: "data.json"},
	}
	tables := map[string]*fixture.Table{
		"data": {Rows: []fixture.Row{{
			"username": "alice",
			"max_page": "3",
			"ids":      []interface{}{float64(10), float64(20), float64(30), float64(40)},
		}}},
	}

	store := session.NewStore(sources, tables, rand.New(rand.NewSource(seed)), zerolog.Nop())
	return NewEngine(store, zerolog.Nop()), store
}

func TestResolvePlaceholder(t *testing.T) {
	engine, _ := testEngine(t, 1)

	got := engine.Resolve("/users/{{username}}/posts")
	if got != "/users/alice/posts" {
		t.Errorf("got %q", got)
	}
}

func TestUnresolvedPlaceholderLeftVerbatim(t *testing.T) {
	engine, _ := testEngine(t, 1)

	got := engine.Resolve("/users/{{unknown_var}}")
	if got != "/users/{{unknown_var}}" {
		t.Errorf("unresolved placeholder should stay verbatim, got %q", got)
	}

	unresolved := engine.UnresolvedVariables()
	if len(unresolved) != 1 || unresolved[0] != "unknown_var" {
		t.Errorf("UnresolvedVariables = %v", unresolved)
	}
}

func TestRandomFixedBounds(t *testing.T) {
	engine, _ := testEngine(t, 1)

	if got := engine.Resolve("{{random(5, 5)}}"); got != "5" {
		t.Errorf("random(5, 5) = %q, want 5", got)
	}
}

func TestRandomStaysInBounds(t *testing.T) {
	engine, _ := testEngine(t, 2)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		got := engine.Resolve("{{random(1, 3)}}")
		n, err := strconv.Atoi(got)
		if err != nil || n < 1 || n > 3 {
			t.Fatalf("random(1, 3) produced %q", got)
		}
		seen[got] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected all of 1..3 over 1000 draws, saw %v", seen)
	}
}

func TestRandomVariableBound(t *testing.T) {
	engine, _ := testEngine(t, 3)

	// max_page resolves from the fixture row to "3".
	for i := 0; i < 100; i++ {
		got := engine.Resolve("{{random(1, max_page)}}")
		n, err := strconv.Atoi(got)
		if err != nil || n < 1 || n > 3 {
			t.Fatalf("random(1, max_page) produced %q", got)
		}
	}
}

func TestRandomInvalidBoundsFallback(t *testing.T) {
	engine, _ := testEngine(t, 1)

	if got := engine.Resolve("{{random(9, 3)}}"); got != "1" {
		t.Errorf("inverted bounds should fall back to 1, got %q", got)
	}
	if got := engine.Resolve("{{random(x, y)}}"); got != "1" {
		t.Errorf("non-numeric bounds should fall back to 1, got %q", got)
	}
}

func TestRandomFromArray(t *testing.T) {
	engine, _ := testEngine(t, 4)

	valid := map[string]bool{"10": true, "20": true, "30": true, "40": true}
	for i := 0; i < 100; i++ {
		got := engine.Resolve("{{random_from_array(ids)}}")
		if !valid[got] {
			t.Fatalf("random_from_array(ids) produced %q", got)
		}
	}
}

func TestRandomFromArrayCommaFallback(t *testing.T) {
	engine, store := testEngine(t, 5)
	store.Set("cities", types.ScalarValue("paris, tokyo, lima"))

	valid := map[string]bool{"paris": true, "tokyo": true, "lima": true}
	for i := 0; i < 50; i++ {
		got := engine.Resolve("{{random_from_array(cities)}}")
		if !valid[got] {
			t.Fatalf("comma-delimited scalar should split, got %q", got)
		}
	}
}

func TestRandomFromArrayFallback(t *testing.T) {
	engine, _ := testEngine(t, 1)

	if got := engine.Resolve("{{random_from_array(missing)}}"); got != "1" {
		t.Errorf("missing source should fall back to 1, got %q", got)
	}
}

func TestRandomSubset(t *testing.T) {
	engine, _ := testEngine(t, 6)

	got := engine.Resolve("{{random_subset_from_array(ids, 2)}}")
	parts := strings.Split(got, ",")
	if len(parts) != 2 {
		t.Fatalf("expected 2 elements, got %q", got)
	}
	if parts[0] == parts[1] {
		t.Errorf("subset elements must be distinct, got %q", got)
	}
}

func TestRandomSubsetClampsToLength(t *testing.T) {
	engine, _ := testEngine(t, 7)

	got := engine.Resolve("{{random_subset_from_array(ids, 10)}}")
	parts := strings.Split(got, ",")
	if len(parts) != 4 {
		t.Fatalf("subset larger than the array should clamp to 4 elements, got %q", got)
	}
	seen := make(map[string]bool)
	for _, p := range parts {
		if seen[p] {
			t.Errorf("duplicate element %q in %q", p, got)
		}
		seen[p] = true
	}
}

func TestRandomSubsetFallback(t *testing.T) {
	engine, _ := testEngine(t, 1)

	if got := engine.Resolve("{{random_subset_from_array(missing, 2)}}"); got != "" {
		t.Errorf("missing source should fall back to empty string, got %q", got)
	}
}

func TestRandomIndex(t *testing.T) {
	engine, _ := testEngine(t, 8)

	for i := 0; i < 100; i++ {
		got := engine.Resolve("{{random_index_from_array(ids)}}")
		n, err := strconv.Atoi(got)
		if err != nil || n < 0 || n > 3 {
			t.Fatalf("random_index_from_array(ids) produced %q", got)
		}
	}
}

func TestRandomIndexFallback(t *testing.T) {
	engine, _ := testEngine(t, 1)

	if got := engine.Resolve("{{random_index_from_array(missing)}}"); got != "0" {
		t.Errorf("missing source should fall back to 0, got %q", got)
	}
}

func TestFunctionsResolveBeforePlaceholders(t *testing.T) {
	engine, _ := testEngine(t, 9)

	got := engine.Resolve("/users/{{username}}?page={{random(2, 2)}}")
	if got != "/users/alice?page=2" {
		t.Errorf("got %q", got)
	}
}

func TestResolveMap(t *testing.T) {
	engine, _ := testEngine(t, 1)

	got := engine.ResolveMap(map[string]string{
		"Authorization": "Bearer {{username}}",
		"X-Static":      "fixed",
	})
	if got["Authorization"] != "Bearer alice" {
		t.Errorf("got %q", got["Authorization"])
	}
	if got["X-Static"] != "fixed" {
		t.Errorf("got %q", got["X-Static"])
	}
}

func TestResolveBody(t *testing.T) {
	engine, _ := testEngine(t, 1)

	body := map[string]interface{}{"user": "{{username}}", "count": 2}
	resolved := engine.ResolveBody(body)

	var check map[string]interface{}
	if err := json.Unmarshal([]byte(resolved), &check); err != nil {
		t.Fatalf("resolved body should be valid JSON: %v", err)
	}
	if check["user"] != "alice" {
		t.Errorf("got %v", check["user"])
	}
	if check["count"] != float64(2) {
		t.Errorf("got %v", check["count"])
	}
}

func TestResolveBodyDegradesToText(t *testing.T) {
	engine, store := testEngine(t, 1)
	store.Set("broken", types.ScalarValue(`"unbalanced`))

	// Substitution injects a stray quote, making the document unparseable;
	// the resolved text is still returned as-is.
	resolved := engine.ResolveBody(map[string]interface{}{"v": "{{broken}}"})
	if !strings.Contains(resolved, "unbalanced") {
		t.Errorf("degraded body should carry the substituted text, got %q", resolved)
	}
}
