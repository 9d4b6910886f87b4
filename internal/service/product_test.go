package service

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/productcache/internal/cache"
	"github.com/scttfrdmn/productcache/internal/store"
	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/types"
)

// countingStore wraps a MemoryStore and counts the reads that reach it.
type countingStore struct {
	*store.MemoryStore
	byID   atomic.Int64
	byType atomic.Int64
	all    atomic.Int64

	// gate, when set, blocks FindByID until closed
	gate chan struct{}
	fail error
}

func (s *countingStore) FindByID(ctx context.Context, id string) (types.Product, bool, error) {
	s.byID.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.fail != nil {
		return types.Product{}, false, s.fail
	}
	return s.MemoryStore.FindByID(ctx, id)
}

func (s *countingStore) FindByType(ctx context.Context, productType string) ([]types.Product, error) {
	s.byType.Add(1)
	return s.MemoryStore.FindByType(ctx, productType)
}

func (s *countingStore) FindAll(ctx context.Context) ([]types.Product, error) {
	s.all.Add(1)
	return s.MemoryStore.FindAll(ctx)
}

type recordedLookup struct {
	operation string
	found     bool
}

type lookupLog struct {
	mu      sync.Mutex
	lookups []recordedLookup
}

func (l *lookupLog) RecordUpstreamLookup(operation string, found bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookups = append(l.lookups, recordedLookup{operation, found})
}

type fixture struct {
	store     *countingStore
	idCache   *cache.LRUCache[string, types.Product]
	typeCache *cache.PartitionedCache[string, string]
	recCache  *cache.PartitionedCache[string, string]
	products  *ProductService
	recs      *RecommendationService
	lookups   *lookupLog
}

func newFixture(t *testing.T, products ...types.Product) *fixture {
	t.Helper()

	ms := store.NewMemoryStore(nil)
	require.NoError(t, ms.SaveAll(context.Background(), products))
	cs := &countingStore{MemoryStore: ms}

	idCache, err := cache.NewLRUCache[string, types.Product](cache.Config{Name: "id-cache", Capacity: 100, Enabled: true})
	require.NoError(t, err)
	typeCache, err := cache.NewPartitionedCache[string, string](cache.TypeConfig{Name: "type-cache", Capacity: 5, Count: 10, Enabled: true})
	require.NoError(t, err)
	recCache, err := cache.NewPartitionedCache[string, string](cache.TypeConfig{Name: "recommendation-cache", Capacity: 10, Count: 50, Enabled: true})
	require.NoError(t, err)

	lookups := &lookupLog{}
	ps := NewProductService(cs, idCache, typeCache, WithLookupRecorder(lookups))
	return &fixture{
		store:     cs,
		idCache:   idCache,
		typeCache: typeCache,
		recCache:  recCache,
		products:  ps,
		recs:      NewRecommendationService(ps, recCache),
		lookups:   lookups,
	}
}

func product(id, productType, category string, price int64, ageGroup string) types.Product {
	return types.Product{
		ID:                  id,
		Name:                "Product " + id,
		Type:                productType,
		Category:            category,
		Price:               price,
		RecommendedAgeGroup: ageGroup,
		Attributes:          map[string]string{"brand": "Acme"},
	}
}

func TestProductService_FindByID(t *testing.T) {
	f := newFixture(t, product("P1", "ELECTRONICS", "LAPTOP", 1000, ""))
	ctx := context.Background()

	p, err := f.products.FindByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "P1", p.ID)
	assert.Equal(t, int64(1), f.store.byID.Load())

	// second read is served from the id cache
	p, err = f.products.FindByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "P1", p.ID)
	assert.Equal(t, int64(1), f.store.byID.Load())
	assert.Equal(t, 1, f.idCache.Size())
	assert.Equal(t, []recordedLookup{{"find_by_id", true}}, f.lookups.lookups)
}

func TestProductService_FindByID_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.products.FindByID(ctx, "  ")
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
	assert.Zero(t, f.store.byID.Load())

	_, err = f.products.FindByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "missing")
	assert.Zero(t, f.idCache.Size())
}

func TestProductService_FindByID_StoreFailure(t *testing.T) {
	f := newFixture(t, product("P1", "BOOKS", "FICTION", 10, ""))
	cause := stderrors.New("connection reset")
	f.store.fail = cause

	_, err := f.products.FindByID(context.Background(), "P1")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, f.idCache.Size())
}

func TestProductService_FindByID_ReturnsCopies(t *testing.T) {
	f := newFixture(t, product("P1", "BOOKS", "FICTION", 10, ""))
	ctx := context.Background()

	p, err := f.products.FindByID(ctx, "P1")
	require.NoError(t, err)
	p.Attributes["brand"] = "Other"

	again, err := f.products.FindByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", again.Attributes["brand"])
}

func TestProductService_FindByID_CollapsesConcurrentMisses(t *testing.T) {
	f := newFixture(t, product("P1", "BOOKS", "FICTION", 10, ""))
	f.store.gate = make(chan struct{})

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			p, err := f.products.FindByID(context.Background(), "P1")
			assert.NoError(t, err)
			assert.Equal(t, "P1", p.ID)
		}()
	}
	started.Wait()
	close(f.store.gate)
	wg.Wait()

	// callers that arrived after the flight finished hit the cache instead
	assert.GreaterOrEqual(t, f.store.byID.Load(), int64(1))
	assert.LessOrEqual(t, f.store.byID.Load(), int64(callers))
	assert.Equal(t, 1, f.idCache.Size())
}

func TestProductService_FindByID_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	f := newFixture(t, product("P1", "BOOKS", "FICTION", 10, ""))
	f.store.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.products.FindByID(ctx, "P1")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.store.byID.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan types.Product, 1)
	go func() {
		p, err := f.products.FindByID(context.Background(), "P1")
		assert.NoError(t, err)
		second <- p
	}()

	cancel()
	select {
	case err := <-firstErr:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the store")
	}

	close(f.store.gate)
	select {
	case p := <-second:
		assert.Equal(t, "P1", p.ID)
	case <-time.After(time.Second):
		t.Fatal("second caller never returned")
	}
	assert.Equal(t, int64(1), f.store.byID.Load())
	assert.Equal(t, 1, f.idCache.Size())
}

func TestProductService_FindByType(t *testing.T) {
	f := newFixture(t,
		product("E1", "ELECTRONICS", "LAPTOP", 1000, ""),
		product("B1", "BOOKS", "FICTION", 10, ""),
		product("E2", "Electronics", "SMARTPHONE", 500, ""),
	)
	ctx := context.Background()

	got, err := f.products.FindByType(ctx, "electronics")
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E2"}, ids(got))
	assert.Equal(t, int64(1), f.store.byType.Load())
	assert.Equal(t, 2, f.typeCache.TypeSize("ELECTRONICS"))
	assert.Equal(t, 2, f.idCache.Size(), "products found by type are cached by ID")

	// any casing hits the same partition, and order is preserved
	got, err = f.products.FindByType(ctx, " ELECTRONICS ")
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E2"}, ids(got))
	assert.Equal(t, int64(1), f.store.byType.Load())
	assert.Zero(t, f.store.byID.Load())
}

func TestProductService_FindByType_Empty(t *testing.T) {
	f := newFixture(t, product("B1", "BOOKS", "FICTION", 10, ""))
	ctx := context.Background()

	got, err := f.products.FindByType(ctx, "TOYS")
	require.NoError(t, err)
	assert.Empty(t, got)

	// empty results are not cached
	_, err = f.products.FindByType(ctx, "TOYS")
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.store.byType.Load())
	assert.Equal(t, []recordedLookup{{"find_by_type", false}, {"find_by_type", false}}, f.lookups.lookups)

	_, err = f.products.FindByType(ctx, "")
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
}

func TestProductService_FindByType_PartitionCapacityTruncates(t *testing.T) {
	var catalog []types.Product
	for _, id := range []string{"T1", "T2", "T3", "T4", "T5", "T6", "T7"} {
		catalog = append(catalog, product(id, "TOYS", "GAMES", 5, ""))
	}
	f := newFixture(t, catalog...)
	ctx := context.Background()

	got, err := f.products.FindByType(ctx, "TOYS")
	require.NoError(t, err)
	assert.Len(t, got, 7)

	// the partition keeps the five most recently saved IDs
	got, err = f.products.FindByType(ctx, "TOYS")
	require.NoError(t, err)
	assert.Equal(t, []string{"T3", "T4", "T5", "T6", "T7"}, ids(got))
}

func TestProductService_FindByIDs_SkipsVanished(t *testing.T) {
	f := newFixture(t, product("P1", "BOOKS", "FICTION", 10, ""))

	got, err := f.products.FindByIDs(context.Background(), []string{"P1", "gone"})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, ids(got))
}

func TestProductService_SaveAndFindAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.products.Save(ctx, product("", "BOOKS", "FICTION", 10, ""))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	_, err = f.products.Save(ctx, types.Product{Name: "broken"})
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))

	all, err := f.products.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{saved.ID}, ids(all))
}

func TestProductService_DisabledCachesStillServe(t *testing.T) {
	ms := store.NewMemoryStore(nil)
	require.NoError(t, ms.SaveAll(context.Background(), []types.Product{product("P1", "BOOKS", "FICTION", 10, "")}))

	idCache, err := cache.NewLRUCache[string, types.Product](cache.Config{Name: "id", Capacity: 1})
	require.NoError(t, err)
	typeCache, err := cache.NewPartitionedCache[string, string](cache.TypeConfig{Name: "type", Capacity: 1, Count: 1})
	require.NoError(t, err)

	ps := NewProductService(ms, idCache, typeCache)
	p, err := ps.FindByID(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "P1", p.ID)

	books, err := ps.FindByType(context.Background(), "books")
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Zero(t, idCache.Size())
	assert.Zero(t, typeCache.TotalSize())
}

func ids(products []types.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}
