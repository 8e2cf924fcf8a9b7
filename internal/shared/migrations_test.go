package shared

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitMigrationFile(t *testing.T) {
	tests := []struct {
		file      string
		version   int
		name      string
		direction string
		ok        bool
	}{
		{"0001_create_catalog_up.sql", 1, "create_catalog", "up", true},
		{"0002_create_publications_down.sql", 2, "create_publications", "down", true},
		{"0003_notes.sql", 0, "", "", false},
		{"readme_up.sql", 0, "", "", false},
		{"0004_seed_up.txt", 0, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			version, name, direction, ok := splitMigrationFile(tt.file)
			if ok != tt.ok || version != tt.version || name != tt.name || direction != tt.direction {
				t.Errorf("splitMigrationFile(%q) = (%d, %q, %q, %v)", tt.file, version, name, direction, ok)
			}
		})
	}
}

func TestMigrations(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(migrations))
		}
		if migrations[0].Name != "create_catalog" || migrations[1].Name != "create_publications" {
			t.Errorf("unexpected order %s, %s", migrations[0].Name, migrations[1].Name)
		}
		for _, m := range migrations {
			if !strings.Contains(m.Up, "CREATE TABLE") || !strings.Contains(m.Down, "DROP TABLE") {
				t.Errorf("migration %d has unexpected bodies", m.Version)
			}
		}
	})

	t.Run("apply, status and rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()
		ConfigureDatabase(db, 1, 1)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("second run should be a no-op: %v", err)
		}

		applied, err := MigrationStatus(db)
		if err != nil {
			t.Fatalf("MigrationStatus failed: %v", err)
		}
		if len(applied) != 2 || applied[1].Name != "create_publications" || applied[1].AppliedAt.IsZero() {
			t.Fatalf("unexpected status %+v", applied)
		}

		for _, table := range []string{"assets", "labels", "asset_labels", "publications"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		m, err := RollbackMigration(db)
		if err != nil {
			t.Fatalf("failed to rollback: %v", err)
		}
		if m.Version != 2 {
			t.Errorf("expected version 2 rolled back, got %d", m.Version)
		}
		if _, err := db.Exec("SELECT 1 FROM publications LIMIT 1"); err == nil {
			t.Error("publications table should be dropped by rollback")
		}
		if _, err := db.Exec("SELECT 1 FROM assets LIMIT 1"); err != nil {
			t.Errorf("assets table should survive rollback: %v", err)
		}

		if _, err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback catalog: %v", err)
		}
		if _, err := RollbackMigration(db); err == nil || !strings.Contains(err.Error(), "no migrations") {
			t.Errorf("expected nothing left to roll back, got %v", err)
		}
	})
}

func TestOpenDatabase(t *testing.T) {
	t.Run("file database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ytpub.db")

		db, err := OpenDatabase(DatabaseConfig{Path: path, MaxOpenConns: 2, MaxIdleConns: 1})
		if err != nil {
			t.Fatalf("OpenDatabase failed: %v", err)
		}
		defer db.Close()

		var mode string
		if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("failed to read journal mode: %v", err)
		}
		if mode != "wal" {
			t.Errorf("expected WAL journal, got %s", mode)
		}

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil || n != 2 {
			t.Errorf("expected 2 applied migrations, got %d (%v)", n, err)
		}
	})

	t.Run("unreachable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "ytpub.db")
		if _, err := OpenDatabase(DatabaseConfig{Path: path}); err == nil {
			t.Error("expected error for a directory that does not exist")
		}
	})

	t.Run("databaseDSN", func(t *testing.T) {
		if got := databaseDSN(":memory:"); got != ":memory:" {
			t.Errorf("expected in-memory path untouched, got %s", got)
		}
		got := databaseDSN("data/ytpub.db")
		if !strings.HasPrefix(got, "file:data/ytpub.db?") || !strings.Contains(got, "_journal_mode=WAL") {
			t.Errorf("unexpected DSN %s", got)
		}
		if got := databaseDSN("file:x.db?cache=shared"); !strings.Contains(got, "cache=shared&_busy_timeout=5000") {
			t.Errorf("expected params appended, got %s", got)
		}
	})
}
