// Package ordercache combines the in-memory tier with the durable store.
//
// Records are written to both tiers under the order id and under the
// tracking number of a fetched order. Reads try memory first and fall back
// to the durable store, refilling memory on a durable hit.
package ordercache

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"order-tracker-api/internal/cache"
	"order-tracker-api/internal/metrics"
	"order-tracker-api/internal/models"
	"order-tracker-api/internal/store"

	"github.com/charmbracelet/log"
)

// Result is the cached data of one key. A zero Result is a miss.
type Result struct {
	Items []models.ProductItem
	Meta  *models.Meta
}

// Found reports whether the result carries any items.
func (r Result) Found() bool {
	return len(r.Items) > 0
}

// Address returns the cached shipping address, if any.
func (r Result) Address() models.Address {
	if r.Meta == nil {
		return models.Address{}
	}
	return r.Meta.Address
}

// clone returns a copy that shares no memory with r.
func (r Result) clone() Result {
	c := Result{Items: slices.Clone(r.Items)}
	if r.Meta != nil {
		m := *r.Meta
		c.Meta = &m
	}
	return c
}

// Service is the product cache used by request handlers.
type Service struct {
	store   store.Store
	memory  cache.Cache[string, Result]
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time
}

// New builds a Service on top of a durable store.
func New(st store.Store, m *metrics.Metrics, logger *log.Logger) *Service {
	s := &Service{
		store:   st,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
	s.memory = cache.NewSimpleCache[string, Result](cache.Options{
		Now: func() time.Time { return s.now() },
	})
	return s
}

// StoreFromFetch caches a freshly fetched order under its order id and its
// tracking number. Both keys get the same payload and timestamp; they are
// independent copies afterwards. Orders without items are ignored.
func (s *Service) StoreFromFetch(ctx context.Context, order models.Order) error {
	if len(order.ProductInfo) == 0 {
		return nil
	}

	// the caller keeps ownership of order
	entry := Result{
		Items: slices.Clone(order.ProductInfo),
		Meta:  &models.Meta{Address: order.Address},
	}
	ts := s.now()

	keys := make([]string, 0, 2)
	for _, k := range []string{order.OrderID, order.TrackingNumber} {
		if k != "" {
			keys = append(keys, k)
		}
	}

	for _, k := range keys {
		s.memory.Set(k, entry, store.TTL)
	}

	var errs []error
	for _, k := range keys {
		if err := s.store.Upsert(ctx, k, entry.Items, ts, entry.Meta); err != nil {
			errs = append(errs, err)
			continue
		}
		s.metrics.CacheWrites.Inc()
	}
	return errors.Join(errs...)
}

// Lookup returns the cached data for key. A miss is a zero Result and a nil
// error; errors come only from the durable store.
func (s *Service) Lookup(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, nil
	}

	if r, ok := s.memory.Get(key); ok {
		s.metrics.RecordLookup(metrics.ResultMemoryHit)
		return r.clone(), nil
	}

	items, meta, err := s.store.Get(ctx, key)
	if err != nil {
		s.metrics.RecordLookup(metrics.ResultError)
		return Result{}, err
	}
	if len(items) == 0 {
		s.metrics.RecordLookup(metrics.ResultMiss)
		return Result{}, nil
	}

	r := Result{Items: items, Meta: meta}
	// refilled entries get a fresh timestamp, not the durable one
	s.memory.Set(key, r.clone(), store.TTL)
	s.metrics.RecordLookup(metrics.ResultDurableHit)
	return r, nil
}

// LookupFirst tries keys in order and returns the first result with items.
// A failing key does not stop the search; its error is returned only when
// no key produced a result.
func (s *Service) LookupFirst(ctx context.Context, keys ...string) (Result, error) {
	var errs []error
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		r, err := s.Lookup(ctx, k)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if r.Found() {
			return r, nil
		}
	}
	return Result{}, errors.Join(errs...)
}

// RecentKeys lists live keys with the given prefix, most recent first.
// When the durable store has none, memory entries are listed instead.
func (s *Service) RecentKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	keys, err := s.store.ListKeys(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		return keys, nil
	}
	return s.memoryKeys(prefix, limit), nil
}

func (s *Service) memoryKeys(prefix string, limit int) []string {
	type stamped struct {
		key string
		at  time.Time
	}
	var found []stamped
	s.memory.Range(func(k string, _ Result, at time.Time) bool {
		if strings.HasPrefix(k, prefix) {
			found = append(found, stamped{key: k, at: at})
		}
		return true
	})

	sort.Slice(found, func(i, j int) bool {
		if found[i].at.Equal(found[j].at) {
			return found[i].key < found[j].key
		}
		return found[i].at.After(found[j].at)
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	keys := make([]string, len(found))
	for i, f := range found {
		keys[i] = f.key
	}
	return keys
}

// PurgeExpired sweeps expired rows from the durable store.
// Memory is left alone; stale entries there are never served.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.PurgedRecords.Add(float64(n))
	if n > 0 {
		s.logger.Debug("purged expired cache records", "count", n)
	}
	return n, nil
}

// MemoryLen returns the number of live in-memory entries.
func (s *Service) MemoryLen() int {
	return s.memory.Len()
}
