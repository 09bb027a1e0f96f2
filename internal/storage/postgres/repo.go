// Package postgres implements storage.Repository on top of pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"serpcarousel/internal/storage"
)

// Repo implements storage.Repository for Postgres.
//
// Idempotency comes from INSERT ... ON CONFLICT (source, category, item_key)
// DO NOTHING: reprocessing a page, or duplicate cards within one page, never
// fails the batch.
type Repo struct {
	pool       *pgxpool.Pool
	table      string
	autoCreate bool
}

// New creates a Postgres-backed repository. The pool connects lazily; DSN
// problems surface on first use.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Repo{pool: pool, table: cfg.TableName(), autoCreate: cfg.AutoCreate}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

// EnsureSchema creates the destination table (and its schema, when the table
// name is schema-qualified). Idempotent; a no-op unless auto-creation was
// configured.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if !r.autoCreate {
		return nil
	}

	schemaSQL, tableSQL := buildCreateSQL(r.table)
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", r.table, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// insertChunk bounds rows per statement: 9 parameters per row keeps even the
// largest chunk far under the 65535 parameter protocol limit.
const insertChunk = 500

// InsertItems bulk-inserts rows and reports how many were newly stored.
// Conflicting rows count as skipped, not failed.
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

		sql, args := buildInsertSQL(r.table, rows[start:end])
		cmd, err := r.pool.Exec(ctx, sql, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", r.table, err)
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

// itemColumns is the destination column order every generated statement uses.
var itemColumns = []string{"source", "category", "position", "item_key", "name", "extensions", "link", "image", "extracted_at"}

// buildInsertSQL constructs one INSERT statement and its args.
//
// It is pure and deterministic so placeholder numbering and the ON CONFLICT
// clause can be unit tested without a database.
func buildInsertSQL(table string, rows []storage.ItemRow) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range itemColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(itemColumns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := 0; j < len(itemColumns); j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			p++
		}
		b.WriteString(")")
		args = append(args,
			row.Source, row.Category, row.Position, row.ItemKey, row.Name,
			row.ExtensionsJSON(), row.Link, row.Image, row.ExtractedAt,
		)
	}

	b.WriteString(" ON CONFLICT (source, category, item_key) DO NOTHING;")
	return b.String(), args
}

// buildCreateSQL generates DDL for the destination table and, when the name
// is schema-qualified, the schema.
func buildCreateSQL(table string) (schemaSQL, tableSQL string) {
	if schema, _ := splitQualifiedName(table); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}

	tableSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	category TEXT NOT NULL,
	position INTEGER NOT NULL,
	item_key TEXT NOT NULL,
	name TEXT NOT NULL,
	extensions TEXT NOT NULL,
	link TEXT NOT NULL,
	image TEXT,
	extracted_at TIMESTAMPTZ NOT NULL,
	UNIQUE (source, category, item_key)
);`, table)

	return schemaSQL, tableSQL
}

// splitQualifiedName splits a schema-qualified name into (schema, table).
// Only a single dot is handled; anything else is treated as unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// pgIdent returns a double-quoted identifier, escaping '"' as '""'.
func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
