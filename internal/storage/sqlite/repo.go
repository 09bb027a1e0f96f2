// Package sqlite implements storage.Repository on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"serpcarousel/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// SQLite has no TIMESTAMPTZ type and modernc.org/sqlite stores time values
// with TEXT affinity, so extracted_at is written as an RFC3339Nano string for
// reliable round trips.
type Repo struct {
	db         *sql.DB
	table      string
	autoCreate bool
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, table: cfg.TableName(), autoCreate: cfg.AutoCreate}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureSchema creates the destination table. Idempotent; a no-op unless
// auto-creation was configured.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if !r.autoCreate {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, buildCreateSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// insertChunk keeps every statement under SQLite's historical 999 bound
// variable default (9 parameters per row).
const insertChunk = 100

// InsertItems bulk-inserts rows with INSERT OR IGNORE and reports how many
// were newly stored. Rows hitting the UNIQUE constraint are skipped, not
// failed.
func (r *Repo) InsertItems(ctx context.Context, rows []storage.ItemRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var total int64
	for start := 0; start < len(rows); start += insertChunk {
		end := start + insertChunk
		if end > len(rows) {
			end = len(rows)
		}

		stmt, args := buildInsertSQL(r.table, rows[start:end])
		res, err := r.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", r.table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("insert into %s: rows affected: %w", r.table, err)
		}
		total += n
	}
	return total, nil
}

// itemColumns is the destination column order every generated statement uses.
var itemColumns = []string{"source", "category", "position", "item_key", "name", "extensions", "link", "image", "extracted_at"}

// buildInsertSQL constructs one INSERT OR IGNORE statement and its args.
// OR IGNORE relies on the UNIQUE (source, category, item_key) constraint.
func buildInsertSQL(table string, rows []storage.ItemRow) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range itemColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(itemColumns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range itemColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
		}
		b.WriteString(")")
		args = append(args,
			row.Source, row.Category, row.Position, row.ItemKey, row.Name,
			row.ExtensionsJSON(), row.Link, row.Image, formatSQLiteTime(row.ExtractedAt),
		)
	}

	b.WriteString(";")
	return b.String(), args
}

func buildCreateSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	category TEXT NOT NULL,
	position INTEGER NOT NULL,
	item_key TEXT NOT NULL,
	name TEXT NOT NULL,
	extensions TEXT NOT NULL,
	link TEXT NOT NULL,
	image TEXT,
	extracted_at TEXT NOT NULL,
	UNIQUE (source, category, item_key)
);`, table)
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// formatSQLiteTime formats a time as RFC3339Nano in UTC. Timestamps are
// stored as TEXT for reliable scanning with modernc.org/sqlite.
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseSQLiteTime parses timestamps read back from the table.
//
// Supported formats:
//   - RFC3339Nano (what this package writes)
//   - RFC3339 (rows written by other tools)
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
