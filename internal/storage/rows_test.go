package storage

import (
	"reflect"
	"testing"
	"time"

	"serpcarousel/internal/carousel"
)

func strptr(s string) *string { return &s }

// TestRowsFromResult verifies flattening: category order is deterministic,
// item order inside a category is preserved, and every field carries over.
func TestRowsFromResult(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	carousels := map[string][]carousel.Item{
		"songs": {
			{Title: "Song A", Extensions: []string{"Album", "2023"}, Link: "https://www.google.com/s", Image: strptr("song.jpg")},
		},
		"artworks": {
			{Title: "Artwork A", Extensions: []string{"2023"}, Link: "https://www.google.com/a1", Image: strptr("a1.jpg")},
			{Title: "Artwork B", Link: "https://www.google.com/a2"},
		},
		"books": {},
	}

	rows := RowsFromResult("page.html", carousels, now)

	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}

	// artworks sorts before songs; the empty books category adds nothing.
	if rows[0].Category != "artworks" || rows[1].Category != "artworks" || rows[2].Category != "songs" {
		t.Fatalf("category order wrong: %q %q %q", rows[0].Category, rows[1].Category, rows[2].Category)
	}
	if rows[0].Name != "Artwork A" || rows[1].Name != "Artwork B" {
		t.Fatalf("item order not preserved: %q then %q", rows[0].Name, rows[1].Name)
	}
	// Position restarts per category.
	if rows[0].Position != 0 || rows[1].Position != 1 || rows[2].Position != 0 {
		t.Fatalf("positions wrong: %d %d %d", rows[0].Position, rows[1].Position, rows[2].Position)
	}

	first := rows[0]
	if first.Source != "page.html" {
		t.Fatalf("source: want page.html got %q", first.Source)
	}
	if first.Link != "https://www.google.com/a1" {
		t.Fatalf("link: got %q", first.Link)
	}
	if first.Image == nil || *first.Image != "a1.jpg" {
		t.Fatalf("image: got %#v", first.Image)
	}
	if !first.ExtractedAt.Equal(now) {
		t.Fatalf("extracted_at: got %v", first.ExtractedAt)
	}
	if first.ItemKey != ItemKey("artworks", "Artwork A", "https://www.google.com/a1") {
		t.Fatalf("item key not derived from identity fields")
	}

	if rows[1].Image != nil {
		t.Fatalf("imageless item should store NULL, got %#v", rows[1].Image)
	}
	if !reflect.DeepEqual(rows[2].Extensions, []string{"Album", "2023"}) {
		t.Fatalf("extensions: got %#v", rows[2].Extensions)
	}
}

func TestRowsFromResult_Empty(t *testing.T) {
	t.Parallel()

	rows := RowsFromResult("page.html", map[string][]carousel.Item{"artworks": {}}, time.Now())
	if len(rows) != 0 {
		t.Fatalf("want no rows, got %#v", rows)
	}
}

func TestExtensionsJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		exts []string
		want string
	}{
		{name: "nil", exts: nil, want: "[]"},
		{name: "empty", exts: []string{}, want: "[]"},
		{name: "values", exts: []string{"Author Name", "2023"}, want: `["Author Name","2023"]`},
		{name: "unicode kept", exts: []string{"café"}, want: `["café"]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := ItemRow{Extensions: tc.exts}
			if got := r.ExtensionsJSON(); got != tc.want {
				t.Fatalf("ExtensionsJSON: want %s got %s", tc.want, got)
			}
		})
	}
}
