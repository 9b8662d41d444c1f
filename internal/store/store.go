// Package store persists product cache records in a single product_cache
// table. Two backends share the same schema and semantics: an embedded
// SQLite file accessed through gorm, and a remote libSQL database.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-tracker-api/internal/models"

	"github.com/goccy/go-json"
	"gorm.io/gorm/logger"
)

// TTL is how long a record stays readable after its last write.
const TTL = 3 * 24 * time.Hour

// ErrCorruptRecord marks a stored payload that cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt cache record")

// Store is the durable tier of the product cache.
//
// Reads never return a record older than TTL. Writes with an empty key or
// no items are ignored.
type Store interface {
	// Init creates or upgrades the schema. It is safe to call on every start.
	Init(ctx context.Context) error

	// Upsert inserts or fully replaces the record under key in one statement.
	// A zero ts means now.
	Upsert(ctx context.Context, key string, items []models.ProductItem, ts time.Time, meta *models.Meta) error

	// Get returns the stored payloads, or nil items on a miss. An expired
	// row is deleted before reporting the miss.
	Get(ctx context.Context, key string) ([]models.ProductItem, *models.Meta, error)

	// ListKeys returns live keys starting with prefix, most recent first.
	// A limit <= 0 means no limit.
	ListKeys(ctx context.Context, prefix string, limit int) ([]string, error)

	// PurgeExpired deletes every expired row and reports how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)

	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Path of the embedded SQLite file.
	Path string

	// LibSQLURL selects the remote backend when set.
	LibSQLURL       string
	LibSQLAuthToken string

	// LogLevel of the gorm logger used by the embedded backend.
	LogLevel logger.LogLevel
}

// Remote reports whether Options selects the libSQL backend.
func (o Options) Remote() bool {
	return o.LibSQLURL != ""
}

// Open returns the backend chosen by opts. It does not call Init.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Remote() {
		return OpenLibSQL(ctx, opts.LibSQLURL, opts.LibSQLAuthToken)
	}
	return OpenSQLite(opts.Path, opts.LogLevel)
}

// ttlSeconds is TTL in the unit of the ts column.
var ttlSeconds = int64(TTL / time.Second)

func isExpired(ts int64, now time.Time) bool {
	return now.Unix()-ts > ttlSeconds
}

// cutoff is the oldest ts that is still live.
func cutoff(now time.Time) int64 {
	return now.Unix() - ttlSeconds
}

func encodePayload(items []models.ProductItem, meta *models.Meta) (string, *string, error) {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", nil, fmt.Errorf("encode items: %w", err)
	}
	if meta == nil {
		return string(itemsJSON), nil, nil
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", nil, fmt.Errorf("encode meta: %w", err)
	}
	s := string(metaJSON)
	return string(itemsJSON), &s, nil
}

func decodePayload(key, itemsJSON string, metaJSON *string) ([]models.ProductItem, *models.Meta, error) {
	var items []models.ProductItem
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return nil, nil, fmt.Errorf("%w: items of %q: %v", ErrCorruptRecord, key, err)
	}
	if metaJSON == nil || *metaJSON == "" {
		return items, nil, nil
	}
	meta := new(models.Meta)
	if err := json.Unmarshal([]byte(*metaJSON), meta); err != nil {
		return nil, nil, fmt.Errorf("%w: meta of %q: %v", ErrCorruptRecord, key, err)
	}
	return items, meta, nil
}
