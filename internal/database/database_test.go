package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenMigrated_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := OpenMigrated(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close() //nolint:errcheck

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		t.Fatalf("runs table missing: %v", err)
	}
	if n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}

	v, err := Version(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenMigrated(ctx, MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close() //nolint:errcheck

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
