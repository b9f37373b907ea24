package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewTestDB returns a migrated in-memory SQLite database private to t.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	gdb, err := Open(context.Background(), "sqlite", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = Close(gdb) })
	return gdb
}
