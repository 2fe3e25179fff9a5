package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		dialect Dialect
		n       int
		want    string
	}{
		{DriverPostgres, 1, "$1"},
		{DriverPostgres, 12, "$12"},
		{DriverSQLite, 3, "?"},
	}
	for _, tt := range tests {
		if got := tt.dialect.Placeholder(tt.n); got != tt.want {
			t.Errorf("%s.Placeholder(%d) = %q, want %q", tt.dialect, tt.n, got, tt.want)
		}
	}
}

func TestOpenAppliesMigrations(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "pipeline.db")

	db, dialect, err := Open(context.Background(), DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if dialect != DriverSQLite {
		t.Errorf("dialect = %q", dialect)
	}

	for _, table := range []string{"video_metadata", "event_deliveries"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// Re-running is a no-op
	if err := Migrate(db, DriverSQLite); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, _, err := Open(context.Background(), "mysql", "dsn"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
