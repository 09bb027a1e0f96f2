package storage

import (
	"context"
	"strings"
	"testing"
)

type fakeRepo struct {
	closed  int
	ensured int
	rows    []ItemRow
}

func (f *fakeRepo) Close()                                 { f.closed++ }
func (f *fakeRepo) EnsureSchema(ctx context.Context) error { f.ensured++; return nil }

func (f *fakeRepo) InsertItems(ctx context.Context, rows []ItemRow) (int64, error) {
	f.rows = append(f.rows, rows...)
	return int64(len(rows)), nil
}

// TestRegisterAndNew verifies the factory lookup path end to end with a fake
// backend.
func TestRegisterAndNew(t *testing.T) {
	repo := &fakeRepo{}
	var gotCfg Config
	Register("fake-lookup", func(ctx context.Context, cfg Config) (Repository, error) {
		gotCfg = cfg
		return repo, nil
	})

	cfg := Config{Kind: "fake-lookup", DSN: "dsn://x", Table: "t", AutoCreate: true}
	r, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r != repo {
		t.Fatalf("New returned wrong repository: %#v", r)
	}
	if gotCfg != cfg {
		t.Fatalf("factory config: want %#v got %#v", cfg, gotCfg)
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake-lookup" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Kinds() missing registered kind: %v", Kinds())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}

	_, err := New(context.Background(), Config{Kind: "no-such-backend"})
	if err == nil || !strings.Contains(err.Error(), "unsupported storage.kind") {
		t.Fatalf("expected unsupported-kind error, got %v", err)
	}
}

// TestRegister_Panics verifies the fail-fast rules for bad registrations.
func TestRegister_Panics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	mustPanic("empty kind", func() {
		Register("", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
	})
	mustPanic("nil factory", func() { Register("fake-nil", nil) })

	Register("fake-dup", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
	mustPanic("duplicate kind", func() {
		Register("fake-dup", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
	})
}

func TestConfigTableName(t *testing.T) {
	t.Parallel()

	if got := (Config{}).TableName(); got != DefaultTable {
		t.Fatalf("default table: want %q got %q", DefaultTable, got)
	}
	if got := (Config{Table: "custom"}).TableName(); got != "custom" {
		t.Fatalf("custom table: want %q got %q", "custom", got)
	}
}
