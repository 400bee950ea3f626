package extract

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/session"
	"github.com/studiowebux/loadcli/internal/types"
)

func testStore() *session.Store {
	return session.NewStore(nil, nil, rand.New(rand.NewSource(1)), zerolog.Nop())
}

func TestApplyPathScalar(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `{"data": {"token": "abc-123"}}`}

	engine.Apply(map[string]types.ExtractionSpec{
		"auth_token": {Type: types.ExtractPath, Expression: "$.data.token"},
	}, result, store)

	value, ok := store.Get("auth_token")
	if !ok {
		t.Fatal("expected auth_token to be extracted")
	}
	if value.String() != "abc-123" {
		t.Errorf("got %q", value.String())
	}
}

func TestApplyPathSequence(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `{"posts": [{"id": 1}, {"id": 2}]}`}

	engine.Apply(map[string]types.ExtractionSpec{
		"post_ids": {Type: types.ExtractPath, Expression: "$.posts[*].id"},
	}, result, store)

	value, ok := store.Get("post_ids")
	if !ok {
		t.Fatal("expected post_ids to be extracted")
	}
	if !value.IsSequence() {
		t.Fatal("expected a sequence")
	}
	if len(value.Sequence) != 2 {
		t.Errorf("got %d elements, want 2", len(value.Sequence))
	}
}

func TestApplyPathMissIsNonFatal(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `{"data": {"token": "abc"}}`}

	engine.Apply(map[string]types.ExtractionSpec{
		"missing": {Type: types.ExtractPath, Expression: "$.nope"},
		"present": {Type: types.ExtractPath, Expression: "$.data.token"},
	}, result, store)

	if _, ok := store.Get("missing"); ok {
		t.Error("missing path should leave the variable unset")
	}
	if _, ok := store.Get("present"); !ok {
		t.Error("one miss must not abort the other extractions")
	}
}

func TestApplyPathInvalidJSON(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `<html>not json</html>`}

	engine.Apply(map[string]types.ExtractionSpec{
		"v": {Type: types.ExtractPath, Expression: "$.data"},
	}, result, store)

	if _, ok := store.Get("v"); ok {
		t.Error("non-JSON body should fail path extraction quietly")
	}
}

func TestApplyRegex(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `session_id=xyz789; expires=never`}

	engine.Apply(map[string]types.ExtractionSpec{
		"session": {Type: types.ExtractRegex, Expression: `session_id=(\w+)`},
	}, result, store)

	value, ok := store.Get("session")
	if !ok {
		t.Fatal("expected session to be extracted")
	}
	if value.String() != "xyz789" {
		t.Errorf("got %q, want first capturing group", value.String())
	}
}

func TestApplyRegexWholeMatch(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `code: E404`}

	engine.Apply(map[string]types.ExtractionSpec{
		"code": {Type: types.ExtractRegex, Expression: `E\d+`},
	}, result, store)

	value, ok := store.Get("code")
	if !ok {
		t.Fatal("expected code to be extracted")
	}
	if value.String() != "E404" {
		t.Errorf("got %q, want whole match when no group", value.String())
	}
}

func TestApplyBoundary(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `prefix id= 123 ;suffix`}

	engine.Apply(map[string]types.ExtractionSpec{
		"id": {Type: types.ExtractBoundary, LeftBoundary: "id=", RightBoundary: ";"},
	}, result, store)

	value, ok := store.Get("id")
	if !ok {
		t.Fatal("expected id to be extracted")
	}
	if value.String() != "123" {
		t.Errorf("got %q, want trimmed text between boundaries", value.String())
	}
}

func TestApplyBoundaryMissingRight(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `id=123 and no terminator`}

	engine.Apply(map[string]types.ExtractionSpec{
		"id": {Type: types.ExtractBoundary, LeftBoundary: "id=", RightBoundary: ";"},
	}, result, store)

	if _, ok := store.Get("id"); ok {
		t.Error("missing right boundary should leave the variable unset")
	}
}

func TestApplyTransformPageNumber(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `{"next": "/posts?page=7&limit=20"}`}

	engine.Apply(map[string]types.ExtractionSpec{
		"next_page": {Type: types.ExtractPath, Expression: "$.next", Transform: "extract_page_number"},
	}, result, store)

	value, ok := store.Get("next_page")
	if !ok {
		t.Fatal("expected next_page to be extracted")
	}
	if value.String() != "7" {
		t.Errorf("got %q, want 7", value.String())
	}
}

func TestApplyTransformDefault(t *testing.T) {
	got, err := ApplyTransform("/posts?limit=20", "extract_page_number")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1" {
		t.Errorf("got %q, want default page 1", got)
	}
}

func TestApplyUnknownTransformKeepsRaw(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `{"v": "raw"}`}

	engine.Apply(map[string]types.ExtractionSpec{
		"v": {Type: types.ExtractPath, Expression: "$.v", Transform: "no_such_transform"},
	}, result, store)

	value, ok := store.Get("v")
	if !ok {
		t.Fatal("expected v to be extracted")
	}
	if value.String() != "raw" {
		t.Errorf("failed transform should store the raw value, got %q", value.String())
	}
}

func TestLegacyApply(t *testing.T) {
	engine := NewLegacyEngine(zerolog.Nop())
	store := testStore()
	result := &types.RequestResult{Body: `{"data": {"id": 42}, "name": "alice"}`}

	engine.Apply(map[string]types.ExtractionSpec{
		"user_id":   {Expression: "data.id", Bare: true},
		"user_name": {Expression: "name", Bare: true},
		"missing":   {Expression: "data.none", Bare: true},
	}, result, store)

	if v, ok := store.Get("user_id"); !ok || v.String() != "42" {
		t.Errorf("user_id = %v, %v", v, ok)
	}
	if v, ok := store.Get("user_name"); !ok || v.String() != "alice" {
		t.Errorf("user_name = %v, %v", v, ok)
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("null path should leave the variable unset")
	}
}
