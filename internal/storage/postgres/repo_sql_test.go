package postgres

import (
	"strings"
	"testing"
	"time"

	"serpcarousel/internal/storage"
)

func strptr(s string) *string { return &s }

func sampleRows() []storage.ItemRow {
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	return []storage.ItemRow{
		{
			Source:      "page.html",
			Category:    "artworks",
			Position:    0,
			ItemKey:     "k1",
			Name:        "Artwork A",
			Extensions:  []string{"2023"},
			Link:        "https://www.google.com/a",
			Image:       strptr("a.jpg"),
			ExtractedAt: at,
		},
		{
			Source:      "page.html",
			Category:    "books",
			Position:    1,
			ItemKey:     "k2",
			Name:        "Book B",
			Link:        "https://www.google.com/b",
			ExtractedAt: at,
		},
	}
}

// TestBuildInsertSQL verifies placeholder numbering across rows, argument
// order, and the conflict clause that makes batches idempotent.
func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	rows := sampleRows()
	sql, args := buildInsertSQL("public.carousel_items", rows)

	if !strings.Contains(sql, "INSERT INTO public.carousel_items") {
		t.Fatalf("missing INSERT INTO: %q", sql)
	}
	for _, col := range []string{`"source"`, `"category"`, `"position"`, `"item_key"`, `"name"`, `"extensions"`, `"link"`, `"image"`, `"extracted_at"`} {
		if !strings.Contains(sql, col) {
			t.Fatalf("missing column %s: %q", col, sql)
		}
	}
	if !strings.Contains(sql, "($1, $2, $3, $4, $5, $6, $7, $8, $9), ($10, $11, $12, $13, $14, $15, $16, $17, $18)") {
		t.Fatalf("placeholder numbering wrong: %q", sql)
	}
	if !strings.Contains(sql, "ON CONFLICT (source, category, item_key) DO NOTHING") {
		t.Fatalf("missing conflict clause: %q", sql)
	}

	if len(args) != 18 {
		t.Fatalf("args: want 18, got %d", len(args))
	}
	if args[0] != "page.html" || args[1] != "artworks" || args[2] != 0 || args[3] != "k1" || args[4] != "Artwork A" {
		t.Fatalf("first row args wrong: %#v", args[:5])
	}
	if args[5] != `["2023"]` {
		t.Fatalf("extensions arg: want JSON array, got %#v", args[5])
	}
	if img, ok := args[7].(*string); !ok || img == nil || *img != "a.jpg" {
		t.Fatalf("image arg: want *string a.jpg, got %#v", args[7])
	}

	// Second row: empty extensions become "[]", missing image stays a nil
	// pointer so the driver writes NULL.
	if args[11] != 1 {
		t.Fatalf("position arg: want 1, got %#v", args[11])
	}
	if args[14] != "[]" {
		t.Fatalf("empty extensions arg: want [], got %#v", args[14])
	}
	if img, ok := args[16].(*string); !ok || img != nil {
		t.Fatalf("nil image arg: want nil *string, got %#v", args[16])
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	schemaSQL, tableSQL := buildCreateSQL("public.carousel_items")
	if schemaSQL != `CREATE SCHEMA IF NOT EXISTS "public";` {
		t.Fatalf("schemaSQL: %q", schemaSQL)
	}
	if !strings.Contains(tableSQL, "CREATE TABLE IF NOT EXISTS public.carousel_items") {
		t.Fatalf("tableSQL missing CREATE TABLE: %q", tableSQL)
	}
	if !strings.Contains(tableSQL, "UNIQUE (source, category, item_key)") {
		t.Fatalf("tableSQL missing dedupe constraint: %q", tableSQL)
	}
	if !strings.Contains(tableSQL, "position INTEGER NOT NULL") {
		t.Fatalf("tableSQL missing position: %q", tableSQL)
	}
	if !strings.Contains(tableSQL, "image TEXT,") {
		t.Fatalf("image column must be nullable: %q", tableSQL)
	}
	if !strings.Contains(tableSQL, "extracted_at TIMESTAMPTZ NOT NULL") {
		t.Fatalf("tableSQL missing extracted_at: %q", tableSQL)
	}

	schemaSQL, _ = buildCreateSQL("carousel_items")
	if schemaSQL != "" {
		t.Fatalf("unqualified table must not emit schema DDL: %q", schemaSQL)
	}
}

func TestSplitQualifiedName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in         string
		wantSchema string
		wantTable  string
	}{
		{"public.items", "public", "items"},
		{"items", "", "items"},
		{" public . items ", "public", "items"},
		{"a.b.c", "", "a.b.c"},
	}
	for _, tc := range cases {
		schema, table := splitQualifiedName(tc.in)
		if schema != tc.wantSchema || table != tc.wantTable {
			t.Fatalf("splitQualifiedName(%q)=(%q,%q), want (%q,%q)", tc.in, schema, table, tc.wantSchema, tc.wantTable)
		}
	}
}

func TestPgIdent(t *testing.T) {
	t.Parallel()

	if got := pgIdent("name"); got != `"name"` {
		t.Fatalf(`pgIdent("name")=%s`, got)
	}
	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("pgIdent escaping wrong: %s", got)
	}
}
