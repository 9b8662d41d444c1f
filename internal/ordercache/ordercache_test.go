package ordercache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"order-tracker-api/internal/metrics"
	"order-tracker-api/internal/models"
	"order-tracker-api/internal/store"
	"order-tracker-api/internal/testutil"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// spyStore counts durable reads and can inject failures.
type spyStore struct {
	store.Store
	gets      int
	getErr    error
	upsertErr error
}

func (s *spyStore) Get(ctx context.Context, key string) ([]models.ProductItem, *models.Meta, error) {
	s.gets++
	if s.getErr != nil {
		return nil, nil, s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s *spyStore) Upsert(ctx context.Context, key string, items []models.ProductItem, ts time.Time, meta *models.Meta) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.Store.Upsert(ctx, key, items, ts, meta)
}

func newService(t *testing.T, st store.Store) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewIsolated()
	return New(st, m, testutil.Logger()), m
}

func sampleOrder() models.Order {
	return models.Order{
		OrderID:        "A1",
		TrackingNumber: "B2",
		ProductInfo:    []models.ProductItem{{Name: "Shirt", Amount: 2, OrderPrice: 150000}},
		Address:        models.Address{ShippingName: "X"},
	}
}

func TestStoreFromFetch_BothKeysResolve(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	svc, m := newService(t, st)

	require.NoError(t, svc.StoreFromFetch(ctx, sampleOrder()))
	require.Equal(t, 2.0, promtestutil.ToFloat64(m.CacheWrites))

	for _, key := range []string{"A1", "B2"} {
		r, err := svc.Lookup(ctx, key)
		require.NoError(t, err)
		require.True(t, r.Found())
		require.Len(t, r.Items, 1)
		require.Equal(t, "Shirt", r.Items[0].Name)
		require.EqualValues(t, 2, r.Items[0].Amount)
		require.Equal(t, "X", r.Address().ShippingName)
	}

	// both keys reached the durable tier too
	for _, key := range []string{"A1", "B2"} {
		items, meta, err := st.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, sampleOrder().ProductInfo, items)
		require.Equal(t, "X", meta.Address.ShippingName)
	}
}

func TestStoreFromFetch_OnlyPresentKeys(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	svc, _ := newService(t, st)

	order := sampleOrder()
	order.TrackingNumber = ""
	require.NoError(t, svc.StoreFromFetch(ctx, order))

	keys, err := st.ListKeys(ctx, "", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"A1"}, keys)
}

func TestStoreFromFetch_NoItemsIsNoop(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	svc, _ := newService(t, st)

	order := sampleOrder()
	order.ProductInfo = []models.ProductItem{}
	require.NoError(t, svc.StoreFromFetch(ctx, order))

	for _, key := range []string{"A1", "B2"} {
		r, err := svc.Lookup(ctx, key)
		require.NoError(t, err)
		require.False(t, r.Found())
		require.Nil(t, r.Meta)
	}
	keys, err := st.ListKeys(ctx, "", 0)
	require.NoError(t, err)
	require.Empty(t, keys)
	require.Zero(t, svc.MemoryLen())
}

func TestLookup_MemoryHitSkipsDurable(t *testing.T) {
	ctx := context.Background()
	spy := &spyStore{Store: testutil.NewStore(t)}
	svc, m := newService(t, spy)

	require.NoError(t, svc.StoreFromFetch(ctx, sampleOrder()))
	r, err := svc.Lookup(ctx, "B2")
	require.NoError(t, err)
	require.True(t, r.Found())
	require.Zero(t, spy.gets)
	require.Equal(t, 1.0, promtestutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.ResultMemoryHit)))
}

func TestLookup_DurableHitRefillsMemory(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	writer, _ := newService(t, st)
	require.NoError(t, writer.StoreFromFetch(ctx, sampleOrder()))

	// a fresh process only has the durable tier
	spy := &spyStore{Store: st}
	reader, m := newService(t, spy)

	r, err := reader.Lookup(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, "Shirt", r.Items[0].Name)
	require.Equal(t, 1, spy.gets)
	require.Equal(t, 1, reader.MemoryLen())

	_, err = reader.Lookup(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, 1, spy.gets)
	require.Equal(t, 1.0, promtestutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.ResultDurableHit)))
	require.Equal(t, 1.0, promtestutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.ResultMemoryHit)))
}

func TestLookup_ExpiredMemoryFallsBackToDurable(t *testing.T) {
	ctx := context.Background()
	spy := &spyStore{Store: testutil.NewStore(t)}
	svc, _ := newService(t, spy)

	base := time.Now()
	svc.now = func() time.Time { return base }
	require.NoError(t, svc.StoreFromFetch(ctx, sampleOrder()))

	// memory ages past the TTL; the durable row is stamped with base and
	// the store reads with the real clock, so it is still live there
	svc.now = func() time.Time { return base.Add(store.TTL + time.Minute) }
	r, err := svc.Lookup(ctx, "A1")
	require.NoError(t, err)
	require.True(t, r.Found())
	require.Equal(t, 1, spy.gets)

	// the refill is stamped with the current clock
	_, err = svc.Lookup(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, 1, spy.gets)
}

func TestLookup_Miss(t *testing.T) {
	svc, m := newService(t, testutil.NewStore(t))

	r, err := svc.Lookup(context.Background(), "SPXVN0000000000")
	require.NoError(t, err)
	require.False(t, r.Found())
	require.Nil(t, r.Items)
	require.Nil(t, r.Meta)
	require.Equal(t, 1.0, promtestutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.ResultMiss)))

	r, err = svc.Lookup(context.Background(), "")
	require.NoError(t, err)
	require.False(t, r.Found())
}

func TestLookup_BackendErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	spy := &spyStore{Store: testutil.NewStore(t), getErr: boom}
	svc, _ := newService(t, spy)

	_, err := svc.Lookup(context.Background(), "A1")
	require.ErrorIs(t, err, boom)
}

func TestLookupFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, testutil.NewStore(t))
	require.NoError(t, svc.StoreFromFetch(ctx, sampleOrder()))

	r, err := svc.LookupFirst(ctx, "", "missing", "B2", "A1")
	require.NoError(t, err)
	require.Equal(t, "Shirt", r.Items[0].Name)

	r, err = svc.LookupFirst(ctx, "missing", "missing", "")
	require.NoError(t, err)
	require.False(t, r.Found())
}

func TestLookupFirst_ErrorOnlyWhenNothingFound(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")
	spy := &spyStore{Store: testutil.NewStore(t)}
	svc, _ := newService(t, spy)
	require.NoError(t, svc.StoreFromFetch(ctx, sampleOrder()))

	spy.getErr = boom
	// B2 is still served from memory after the failing durable read of "x"
	r, err := svc.LookupFirst(ctx, "x", "B2")
	require.NoError(t, err)
	require.True(t, r.Found())

	_, err = svc.LookupFirst(ctx, "x", "y")
	require.ErrorIs(t, err, boom)
}

func TestKeysAreIndependentCopies(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	svc, _ := newService(t, st)
	require.NoError(t, svc.StoreFromFetch(ctx, sampleOrder()))

	hat := []models.ProductItem{{Name: "Hat", Amount: 1}}
	require.NoError(t, st.Upsert(ctx, "A1", hat, time.Now(), nil))

	fresh, _ := newService(t, st)
	r, err := fresh.Lookup(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, hat, r.Items)

	r, err = fresh.Lookup(ctx, "B2")
	require.NoError(t, err)
	require.Equal(t, "Shirt", r.Items[0].Name)
}

func TestCachedResultsDoNotAliasCallers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, testutil.NewStore(t))
	order := sampleOrder()
	require.NoError(t, svc.StoreFromFetch(ctx, order))

	order.ProductInfo[0].Name = "Changed by caller"
	r, err := svc.Lookup(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, "Shirt", r.Items[0].Name)

	r.Items[0].Name = "Changed by reader"
	r.Meta.Address.ShippingName = "Y"
	r, err = svc.Lookup(ctx, "B2")
	require.NoError(t, err)
	require.Equal(t, "Shirt", r.Items[0].Name)
	r, err = svc.Lookup(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, "Shirt", r.Items[0].Name)
	require.Equal(t, "X", r.Address().ShippingName)
}

func TestRecentKeys(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, testutil.NewStore(t))

	base := time.Now()
	for i := 1; i <= 3; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		svc.now = func() time.Time { return at }
		order := sampleOrder()
		order.OrderID = fmt.Sprintf("24010%d", i)
		order.TrackingNumber = fmt.Sprintf("SPXVN0000000%d", i)
		require.NoError(t, svc.StoreFromFetch(ctx, order))
	}

	keys, err := svc.RecentKeys(ctx, "SPXVN", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"SPXVN00000003", "SPXVN00000002"}, keys)
}

func TestRecentKeys_FallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	spy := &spyStore{Store: testutil.NewStore(t), upsertErr: errors.New("read-only")}
	svc, _ := newService(t, spy)

	base := time.Now()
	for i := 1; i <= 3; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		svc.now = func() time.Time { return at }
		order := sampleOrder()
		order.OrderID = fmt.Sprintf("24010%d", i)
		order.TrackingNumber = fmt.Sprintf("SPXVN0000000%d", i)
		require.Error(t, svc.StoreFromFetch(ctx, order))
	}

	keys, err := svc.RecentKeys(ctx, "SPXVN", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"SPXVN00000003", "SPXVN00000002", "SPXVN00000001"}, keys)

	keys, err = svc.RecentKeys(ctx, "SPXVN", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"SPXVN00000003"}, keys)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	svc, m := newService(t, st)

	require.NoError(t, st.Upsert(ctx, "old", sampleOrder().ProductInfo, time.Now().Add(-store.TTL-time.Hour), nil))
	require.NoError(t, st.Upsert(ctx, "new", sampleOrder().ProductInfo, time.Now(), nil))

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 1.0, promtestutil.ToFloat64(m.PurgedRecords))
}

func TestConcurrentStoreAndLookup(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, testutil.NewStore(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			order := sampleOrder()
			order.ProductInfo = []models.ProductItem{{Name: fmt.Sprintf("Shirt-%d", i), Amount: 1}}
			_ = svc.StoreFromFetch(ctx, order)
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Lookup(ctx, "A1")
		}()
	}
	wg.Wait()

	r, err := svc.Lookup(ctx, "A1")
	require.NoError(t, err)
	require.True(t, r.Found())
}
