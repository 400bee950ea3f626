package session

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/fixture"
	"github.com/studiowebux/loadcli/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	sources := []types.DataSourceSpec{
		{Name: "users", Type: types.SourceTabular, File: "users.csv"},
		{Name: "products", Type: types.SourceStructured, File: "products.json"},
	}
	tables := map[string]*fixture.Table{
		"users": {Rows: []fixture.Row{
			{"username": "alice", "token": "t-1"},
		}},
		"products": {Rows: []fixture.Row{
			{"username": "from-products", "sku": "p-9", "tags": []interface{}{"a", "b"}},
		}},
	}

	return NewStore(sources, tables, rand.New(rand.NewSource(1)), zerolog.Nop())
}

func TestLookupFixtureField(t *testing.T) {
	store := testStore(t)

	value, ok := store.Lookup("token")
	if !ok {
		t.Fatal("expected token to resolve")
	}
	if value.String() != "t-1" {
		t.Errorf("got %q, want t-1", value.String())
	}
}

func TestLookupDeclarationOrder(t *testing.T) {
	store := testStore(t)

	// Both sources carry "username"; the first declared source wins.
	value, ok := store.Lookup("username")
	if !ok {
		t.Fatal("expected username to resolve")
	}
	if value.String() != "alice" {
		t.Errorf("got %q, want alice", value.String())
	}
}

func TestExtractedShadowsFixture(t *testing.T) {
	store := testStore(t)

	store.Set("username", types.ScalarValue("extracted-name"))

	value, ok := store.Lookup("username")
	if !ok {
		t.Fatal("expected username to resolve")
	}
	if value.String() != "extracted-name" {
		t.Errorf("extracted variable should shadow fixture field, got %q", value.String())
	}

	resolved, ok := store.ResolvePlaceholder("username")
	if !ok || resolved != "extracted-name" {
		t.Errorf("ResolvePlaceholder = %q, %v; want extracted-name, true", resolved, ok)
	}
}

func TestLookupSequenceField(t *testing.T) {
	store := testStore(t)

	value, ok := store.Lookup("tags")
	if !ok {
		t.Fatal("expected tags to resolve")
	}
	if !value.IsSequence() {
		t.Fatal("expected a sequence value")
	}
	if len(value.Sequence) != 2 {
		t.Errorf("got %d elements, want 2", len(value.Sequence))
	}
}

func TestLookupUnknown(t *testing.T) {
	store := testStore(t)

	if _, ok := store.Lookup("nope"); ok {
		t.Error("unknown name should not resolve")
	}
	if _, ok := store.ResolvePlaceholder("nope"); ok {
		t.Error("unknown placeholder should not resolve")
	}
}

func TestEmptyTableSkipped(t *testing.T) {
	sources := []types.DataSourceSpec{
		{Name: "empty", Type: types.SourceTabular, File: "missing.csv"},
	}
	tables := map[string]*fixture.Table{"empty": {}}

	store := NewStore(sources, tables, rand.New(rand.NewSource(1)), zerolog.Nop())

	if _, ok := store.Lookup("anything"); ok {
		t.Error("empty table should contribute no fields")
	}
}

func TestSamplingIsSeedDeterministic(t *testing.T) {
	sources := []types.DataSourceSpec{
		{Name: "users", Type: types.SourceTabular, File: "users.csv"},
	}
	rows := []fixture.Row{
		{"id": "1"}, {"id": "2"}, {"id": "3"}, {"id": "4"}, {"id": "5"},
	}
	tables := map[string]*fixture.Table{"users": {Rows: rows}}

	a := NewStore(sources, tables, rand.New(rand.NewSource(7)), zerolog.Nop())
	b := NewStore(sources, tables, rand.New(rand.NewSource(7)), zerolog.Nop())

	av, _ := a.Lookup("id")
	bv, _ := b.Lookup("id")
	if av.String() != bv.String() {
		t.Errorf("same seed should sample the same row: %q vs %q", av.String(), bv.String())
	}
}
