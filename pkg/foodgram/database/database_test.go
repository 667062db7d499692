package database

import (
	"testing"

	"github.com/mikepea/foodgram/pkg/foodgram/config"
)

func TestSqliteDSN(t *testing.T) {
	cases := map[string]string{
		":memory:":                 ":memory:?_foreign_keys=on&_busy_timeout=5000",
		"foodgram.db?cache=shared": "foodgram.db?cache=shared&_foreign_keys=on&_busy_timeout=5000",
		"x.db?_busy_timeout=100":   "x.db?_busy_timeout=100&_foreign_keys=on",
		"x.db?_foreign_keys=off":   "x.db?_foreign_keys=off&_busy_timeout=5000",
	}
	for in, want := range cases {
		if got := sqliteDSN(in); got != want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenMemoryEnablesForeignKeys(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}

	var enabled int
	if err := db.Raw("PRAGMA foreign_keys").Scan(&enabled).Error; err != nil {
		t.Fatalf("PRAGMA failed: %v", err)
	}
	if enabled != 1 {
		t.Errorf("Expected foreign keys enabled, got %d", enabled)
	}
}

func TestConnect(t *testing.T) {
	if err := Connect(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if GetDB() == nil {
		t.Error("Expected GetDB to return the connection")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}
