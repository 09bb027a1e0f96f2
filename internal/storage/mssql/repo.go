// Package mssql implements storage.Repository for Microsoft SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"serpcarousel/internal/storage"
)

// Repo implements storage.Repository for SQL Server.
//
// Idempotency uses a set-based INSERT ... SELECT ... WHERE NOT EXISTS: unlike
// Postgres ON CONFLICT DO NOTHING, the guard checks the target table only, so
// batches are self-deduped before insert (see dedupeRows).
type Repo struct {
	db         *sql.DB
	table      string
	autoCreate bool
}

// New constructs a SQL Server repository using the "sqlserver" driver and
// validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Conservative defaults for bursty batch loads.
	db.SetMaxOpenConns(64)
	db.SetMaxIdleConns(64)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, table: cfg.TableName(), autoCreate: cfg.AutoCreate}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() { _ = r.db.Close() }

// EnsureSchema creates the destination table. Idempotent; a no-op unless
// auto-creation was configured.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if !r.autoCreate {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, buildCreateSQL(r.table)); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", r.table, err)
	}
	return nil
}

// insertChunk keeps each statement's parameter count under SQL Server's 2100
// limit (9 parameters per row).
const insertChunk = 200

// InsertItems bulk-inserts rows and reports how many were newly stored.
// Rows whose key already exists in the table are skipped, not failed.
func (r *Repo) InsertItems(ctx context.Context, rows []storage.ItemRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	// The NOT EXISTS guard does not see other rows in the same VALUES source,
	// so duplicate keys inside one batch would still hit the UNIQUE
	// constraint. Keep the first occurrence per key.
	rows = dedupeRows(rows)

	var total int64
	for start := 0; start < len(rows); start += insertChunk {
		end := start + insertChunk
		if end > len(rows) {
			end = len(rows)
		}

		stmt, args := buildInsertNotExistsSQL(r.table, rows[start:end])
		res, err := r.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", r.table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// dedupeRows keeps the first occurrence per (source, category, item_key),
// preserving input order.
func dedupeRows(rows []storage.ItemRow) []storage.ItemRow {
	seen := make(map[string]bool, len(rows))
	out := make([]storage.ItemRow, 0, len(rows))
	for _, row := range rows {
		k := row.Source + "\x1f" + row.Category + "\x1f" + row.ItemKey
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out
}

// itemColumns is the destination column order every generated statement uses.
var itemColumns = []string{"source", "category", "position", "item_key", "name", "extensions", "link", "image", "extracted_at"}

// buildInsertNotExistsSQL constructs one INSERT...SELECT...WHERE NOT EXISTS
// statement for a chunk of rows.
//
// It materializes incoming rows as a derived table V via VALUES, then inserts
// only those rows whose key is not already present in the target table.
func buildInsertNotExistsSQL(table string, rows []storage.ItemRow) (string, []any) {
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	for i, c := range itemColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") SELECT ")
	for i, c := range itemColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("v.")
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(" FROM (VALUES ")

	args := make([]any, 0, len(rows)*len(itemColumns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range itemColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			p++
		}
		b.WriteString(")")
		args = append(args,
			row.Source, row.Category, row.Position, row.ItemKey, row.Name,
			row.ExtensionsJSON(), row.Link, row.Image, row.ExtractedAt,
		)
	}

	b.WriteString(") AS v(")
	for i, c := range itemColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" t WHERE t.[source] = v.[source] AND t.[category] = v.[category] AND t.[item_key] = v.[item_key])")

	return b.String(), args
}

// buildCreateSQL generates DDL wrapped in an OBJECT_ID guard, which keeps
// EnsureSchema idempotent without IF NOT EXISTS syntax.
//
// The UNIQUE key columns are bounded NVARCHARs: item_key is a 64-char hash
// and source/category stay small, keeping the index under SQL Server's key
// size limit.
func buildCreateSQL(table string) string {
	defs := strings.Join([]string{
		"[id] BIGINT IDENTITY(1,1) PRIMARY KEY",
		"[source] NVARCHAR(400) NOT NULL",
		"[category] NVARCHAR(100) NOT NULL",
		"[position] INT NOT NULL",
		"[item_key] NVARCHAR(64) NOT NULL",
		"[name] NVARCHAR(MAX) NOT NULL",
		"[extensions] NVARCHAR(MAX) NOT NULL",
		"[link] NVARCHAR(MAX) NOT NULL",
		"[image] NVARCHAR(MAX)",
		"[extracted_at] DATETIMEOFFSET NOT NULL",
		"UNIQUE ([source], [category], [item_key])",
	}, ", ")

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		table, mssqlTableIdent(table), defs,
	)
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified
// names.
//
// Example:
//
//	"dbo.carousel_items" -> [dbo].[carousel_items]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
