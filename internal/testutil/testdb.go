package testutil

import (
	"context"
	"io"
	"testing"

	"order-tracker-api/internal/store"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewInMemoryDB creates an in-memory SQLite DB. The pool is pinned to one
// connection because every new connection would see an empty database.
func NewInMemoryDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// NewStore returns an initialized in-memory product cache store.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := NewInMemoryDB()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	s := store.NewSQLiteStore(db)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Logger returns a logger that discards everything.
func Logger() *log.Logger {
	return log.New(io.Discard)
}
