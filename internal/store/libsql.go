package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"order-tracker-api/internal/models"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const libsqlDriver = "libsql"

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS product_cache (
	cache_key  TEXT PRIMARY KEY,
	items_json TEXT NOT NULL,
	meta_json  TEXT,
	ts         INTEGER NOT NULL
)`
	tableColumnsSQL = `SELECT name FROM pragma_table_info('product_cache')`
	addMetaSQL      = `ALTER TABLE product_cache ADD COLUMN meta_json TEXT`

	upsertSQL = `INSERT INTO product_cache(cache_key, items_json, meta_json, ts) VALUES(?, ?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET items_json = excluded.items_json, meta_json = excluded.meta_json, ts = excluded.ts`
	getSQL         = `SELECT items_json, meta_json, ts FROM product_cache WHERE cache_key = ?`
	deleteStaleSQL = `DELETE FROM product_cache WHERE cache_key = ? AND ts < ?`
	listKeysSQL    = `SELECT cache_key FROM product_cache WHERE cache_key LIKE ? AND ts >= ? ORDER BY ts DESC, cache_key LIMIT ?`
	purgeSQL       = `DELETE FROM product_cache WHERE ts < ?`
)

// SQLStore is the remote backend. It speaks plain SQLite SQL over
// database/sql so it runs on the libsql driver or any SQLite driver.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenLibSQL connects to a libSQL server such as Turso.
func OpenLibSQL(ctx context.Context, rawURL, authToken string) (*SQLStore, error) {
	dsn, err := libsqlDSN(rawURL, authToken)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(libsqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect libsql: %w", err)
	}
	return NewSQLStore(db), nil
}

func libsqlDSN(rawURL, authToken string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse libsql url: %w", err)
	}
	if authToken != "" {
		q := u.Query()
		q.Set("authToken", authToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Init implements Store.Init.
func (s *SQLStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create product_cache: %w", err)
	}

	hasMeta, err := s.hasColumn(ctx, "meta_json")
	if err != nil {
		return err
	}
	if !hasMeta {
		if _, err := s.db.ExecContext(ctx, addMetaSQL); err != nil {
			return fmt.Errorf("add meta_json column: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) hasColumn(ctx context.Context, name string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, tableColumnsSQL)
	if err != nil {
		return false, fmt.Errorf("inspect product_cache: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return false, fmt.Errorf("inspect product_cache: %w", err)
		}
		if col == name {
			found = true
		}
	}
	return found, rows.Err()
}

// Upsert implements Store.Upsert.
func (s *SQLStore) Upsert(ctx context.Context, key string, items []models.ProductItem, ts time.Time, meta *models.Meta) error {
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
	if _, err := s.db.ExecContext(ctx, upsertSQL, key, itemsJSON, metaJSON, ts.Unix()); err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

// Get implements Store.Get.
func (s *SQLStore) Get(ctx context.Context, key string) ([]models.ProductItem, *models.Meta, error) {
	if key == "" {
		return nil, nil, nil
	}

	var (
		itemsJSON string
		metaJSON  sql.NullString
		ts        int64
	)
	err := s.db.QueryRowContext(ctx, getSQL, key).Scan(&itemsJSON, &metaJSON, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get %q: %w", key, err)
	}

	now := s.now()
	if isExpired(ts, now) {
		if _, err := s.db.ExecContext(ctx, deleteStaleSQL, key, cutoff(now)); err != nil {
			return nil, nil, fmt.Errorf("delete expired %q: %w", key, err)
		}
		return nil, nil, nil
	}

	var meta *string
	if metaJSON.Valid {
		meta = &metaJSON.String
	}
	return decodePayload(key, itemsJSON, meta)
}

// ListKeys implements Store.ListKeys.
func (s *SQLStore) ListKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, listKeysSQL, prefix+"%", cutoff(s.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("list keys %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list keys %q: %w", prefix, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// PurgeExpired implements Store.PurgeExpired.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, purgeSQL, cutoff(s.now()))
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return n, nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
