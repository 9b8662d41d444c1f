package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"order-tracker-api/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore is the embedded backend. It works on any gorm connection whose
// dialect understands ON CONFLICT upserts.
type SQLiteStore struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the SQLite file at path.
// glebarez/sqlite is a pure Go driver, no CGO required.
func OpenSQLite(path string, level logger.LogLevel) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an open gorm connection.
func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Init implements Store.Init.
func (s *SQLiteStore) Init(ctx context.Context) error {
	m := s.db.WithContext(ctx).Migrator()
	if !m.HasTable(&models.ProductCache{}) {
		if err := m.CreateTable(&models.ProductCache{}); err != nil {
			return fmt.Errorf("create product_cache: %w", err)
		}
		return nil
	}

	// tables created before meta was cached lack the column
	if !m.HasColumn(&models.ProductCache{}, "MetaJSON") {
		if err := m.AddColumn(&models.ProductCache{}, "MetaJSON"); err != nil {
			return fmt.Errorf("add meta_json column: %w", err)
		}
	}
	return nil
}

// Upsert implements Store.Upsert.
func (s *SQLiteStore) Upsert(ctx context.Context, key string, items []models.ProductItem, ts time.Time, meta *models.Meta) error {
	if key == "" || len(items) == 0 {
		return nil
	}
	if ts.IsZero() {
		ts = s.now()
	}

	itemsJSON, metaJSON, err := encodePayload(items, meta)
	if err != nil {
		return err
	}

	row := models.ProductCache{
		CacheKey:  key,
		ItemsJSON: itemsJSON,
		MetaJSON:  metaJSON,
		Ts:        ts.Unix(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"items_json", "meta_json", "ts"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]models.ProductItem, *models.Meta, error) {
	if key == "" {
		return nil, nil, nil
	}

	var row models.ProductCache
	res := s.db.WithContext(ctx).Where("cache_key = ?", key).Limit(1).Find(&row)
	if res.Error != nil {
		return nil, nil, fmt.Errorf("get %q: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil, nil
	}

	now := s.now()
	if isExpired(row.Ts, now) {
		// a concurrent refresh moves ts past the cutoff and survives this delete
		err := s.db.WithContext(ctx).
			Where("cache_key = ? AND ts < ?", key, cutoff(now)).
			Delete(&models.ProductCache{}).Error
		if err != nil {
			return nil, nil, fmt.Errorf("delete expired %q: %w", key, err)
		}
		return nil, nil, nil
	}

	return decodePayload(key, row.ItemsJSON, row.MetaJSON)
}

// ListKeys implements Store.ListKeys.
func (s *SQLiteStore) ListKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}

	var keys []string
	err := s.db.WithContext(ctx).Model(&models.ProductCache{}).
		Where("cache_key LIKE ? AND ts >= ?", prefix+"%", cutoff(s.now())).
		Order("ts desc, cache_key").
		Limit(limit).
		Pluck("cache_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list keys %q: %w", prefix, err)
	}
	return keys, nil
}

// PurgeExpired implements Store.PurgeExpired.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("ts < ?", cutoff(s.now())).
		Delete(&models.ProductCache{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge expired: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*SQLiteStore)(nil)
