package sqlite

import (
	"strings"
	"testing"
	"time"

	"serpcarousel/internal/storage"
)

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	rows := []storage.ItemRow{
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

	stmt, args := buildInsertSQL("carousel_items", rows)

	if !strings.Contains(stmt, "INSERT OR IGNORE INTO carousel_items") {
		t.Fatalf("missing INSERT OR IGNORE: %q", stmt)
	}
	if !strings.Contains(stmt, "(?, ?, ?, ?, ?, ?, ?, ?, ?), (?, ?, ?, ?, ?, ?, ?, ?, ?)") {
		t.Fatalf("placeholders wrong: %q", stmt)
	}
	for _, col := range []string{`"source"`, `"category"`, `"position"`, `"item_key"`, `"name"`, `"extensions"`, `"link"`, `"image"`, `"extracted_at"`} {
		if !strings.Contains(stmt, col) {
			t.Fatalf("missing column %s: %q", col, stmt)
		}
	}

	if len(args) != 18 {
		t.Fatalf("args: want 18, got %d", len(args))
	}
	if args[2] != 0 || args[11] != 1 {
		t.Fatalf("position args wrong: %#v, %#v", args[2], args[11])
	}
	if args[5] != `["2023"]` {
		t.Fatalf("extensions arg: want JSON array, got %#v", args[5])
	}
	if args[8] != "2026-08-23T12:00:00Z" {
		t.Fatalf("extracted_at arg: want RFC3339Nano text, got %#v", args[8])
	}
	// Missing image stays a nil pointer so the driver writes NULL.
	if img, ok := args[16].(*string); !ok || img != nil {
		t.Fatalf("nil image arg: want nil *string, got %#v", args[16])
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	ddl := buildCreateSQL("carousel_items")
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS carousel_items") {
		t.Fatalf("missing CREATE TABLE: %q", ddl)
	}
	if !strings.Contains(ddl, "UNIQUE (source, category, item_key)") {
		t.Fatalf("missing dedupe constraint: %q", ddl)
	}
	if !strings.Contains(ddl, "position INTEGER NOT NULL") {
		t.Fatalf("missing position: %q", ddl)
	}
	if !strings.Contains(ddl, "image TEXT,") {
		t.Fatalf("image column must be nullable: %q", ddl)
	}
	if !strings.Contains(ddl, "extracted_at TEXT NOT NULL") {
		t.Fatalf("extracted_at must be TEXT: %q", ddl)
	}
}

func TestSQLIdent(t *testing.T) {
	t.Parallel()

	if got := sqlIdent("name"); got != `"name"` {
		t.Fatalf(`sqlIdent("name")=%s`, got)
	}
	if got := sqlIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("sqlIdent escaping wrong: %s", got)
	}
}
