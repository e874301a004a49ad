package cacherepo_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/cachekey"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/logger"
	"github.com/agora-social/agora/pkg/pagination"
	"github.com/agora-social/agora/pkg/repository/cacherepo"
)

type widget struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

type widgetCond struct {
	Kind string `json:"kind,omitempty"`
}

type widgetPatch struct {
	Kind *string
}

type countField string

// widgetStore is an explicit in-memory store that counts every call.
type widgetStore struct {
	mu    sync.Mutex
	rows  map[string]widget
	calls map[string]int
	delay time.Duration
}

func newWidgetStore(rows ...widget) *widgetStore {
	s := &widgetStore{rows: map[string]widget{}, calls: map[string]int{}}
	for _, w := range rows {
		s.rows[w.ID] = w
	}
	return s
}

func (s *widgetStore) hit(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
}

func (s *widgetStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *widgetStore) FindByID(_ context.Context, id string) (*widget, error) {
	s.hit("findById")
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[id]
	if !ok {
		return nil, errors.NotFound("widget not found")
	}
	return &w, nil
}

func (s *widgetStore) FindByCond(_ context.Context, cond widgetCond) (*widget, error) {
	s.hit("findByCond")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.sortedIDs() {
		if w := s.rows[id]; w.Kind == cond.Kind {
			return &w, nil
		}
	}
	return nil, errors.NotFound("widget not found")
}

func (s *widgetStore) List(_ context.Context, cond widgetCond, paging pagination.Paging) (*pagination.Page[widget], error) {
	s.hit("list")
	s.mu.Lock()
	defer s.mu.Unlock()
	page := &pagination.Page[widget]{Paging: paging, Data: []widget{}}
	for _, id := range s.sortedIDs() {
		if w := s.rows[id]; cond.Kind == "" || w.Kind == cond.Kind {
			page.Data = append(page.Data, w)
		}
	}
	page.Total = int64(len(page.Data))
	return page, nil
}

func (s *widgetStore) ListByIDs(_ context.Context, ids []string) ([]widget, error) {
	s.hit("listByIds")
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []widget
	for _, id := range ids {
		if w, ok := s.rows[id]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *widgetStore) Insert(_ context.Context, w *widget) error {
	s.hit("insert")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[w.ID]; ok {
		return errors.Conflict("widget exists")
	}
	s.rows[w.ID] = *w
	return nil
}

func (s *widgetStore) Update(_ context.Context, id string, patch widgetPatch) error {
	s.hit("update")
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[id]
	if !ok {
		return errors.NotFound("widget not found")
	}
	if patch.Kind != nil {
		w.Kind = *patch.Kind
	}
	s.rows[id] = w
	return nil
}

func (s *widgetStore) Delete(_ context.Context, id string) error {
	s.hit("delete")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return errors.NotFound("widget not found")
	}
	delete(s.rows, id)
	return nil
}

func (s *widgetStore) IncreaseCount(_ context.Context, id string, _ countField, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[id]
	if !ok {
		return errors.NotFound("widget not found")
	}
	w.Count += step
	s.rows[id] = w
	return nil
}

func (s *widgetStore) DecreaseCount(_ context.Context, id string, _ countField, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[id]
	if !ok {
		return errors.NotFound("widget not found")
	}
	w.Count = max(w.Count-step, 0)
	s.rows[id] = w
	return nil
}

func (s *widgetStore) sortedIDs() []string {
	ids := make([]string, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type RepositoryTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *widgetStore
	backend  *cache.MemoryBackend
	keys     *cachekey.Builder
	repo     *cacherepo.Repository[widget, widgetCond, widgetPatch]
	counters *cacherepo.Counters[countField]
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = newWidgetStore(
		widget{ID: "w1", Kind: "gear"},
		widget{ID: "w2", Kind: "bolt"},
		widget{ID: "w3", Kind: "gear"},
	)
	s.backend = cache.NewMemoryBackend(0)
	s.keys = cachekey.New("test:")
	svc := cache.NewService(s.backend, logger.NewNoop())
	s.repo = cacherepo.New[widget, widgetCond, widgetPatch](s.store, s.store, svc, s.keys, logger.NewNoop(), cacherepo.Options[widget]{
		Entity: "widget",
		IDOf:   func(w *widget) string { return w.ID },
		TTLs:   cache.DefaultTTLs(),
	})
	s.counters = cacherepo.NewCounters[countField](s.store, s.repo)
}

func (s *RepositoryTestSuite) cached(key string) bool {
	ok, _ := s.backend.Exists(s.ctx, key)
	return ok
}

func (s *RepositoryTestSuite) TestFindByIDReadsThrough() {
	w, err := s.repo.FindByID(s.ctx, "w1")
	s.Require().NoError(err)
	s.Equal("gear", w.Kind)
	s.Equal(1, s.store.count("findById"))
	s.True(s.cached("test:widget:id:w1"))

	again, err := s.repo.FindByID(s.ctx, "w1")
	s.Require().NoError(err)
	s.Equal(w, again)
	s.Equal(1, s.store.count("findById"), "second read must be served from cache")
}

func (s *RepositoryTestSuite) TestMissingEntityIsNotCached() {
	_, err := s.repo.FindByID(s.ctx, "nope")
	s.True(errors.IsNotFound(err))
	_, err = s.repo.FindByID(s.ctx, "nope")
	s.True(errors.IsNotFound(err))
	s.Equal(2, s.store.count("findById"))
	s.False(s.cached("test:widget:id:nope"))
}

func (s *RepositoryTestSuite) TestUpdateInvalidatesIDKey() {
	_, err := s.repo.FindByID(s.ctx, "w1")
	s.Require().NoError(err)

	kind := "spring"
	s.Require().NoError(s.repo.Update(s.ctx, "w1", widgetPatch{Kind: &kind}))
	s.False(s.cached("test:widget:id:w1"))

	w, err := s.repo.FindByID(s.ctx, "w1")
	s.Require().NoError(err)
	s.Equal("spring", w.Kind)
	s.Equal(2, s.store.count("findById"))
}

func (s *RepositoryTestSuite) TestWriteInvalidatesEveryCollectionButOtherIDs() {
	_, err := s.repo.FindByID(s.ctx, "w2")
	s.Require().NoError(err)
	_, err = s.repo.FindByCond(s.ctx, widgetCond{Kind: "gear"})
	s.Require().NoError(err)
	_, err = s.repo.List(s.ctx, widgetCond{}, pagination.Paging{Page: 1, Limit: 10})
	s.Require().NoError(err)
	_, err = s.repo.ListByIDs(s.ctx, []string{"w1", "w3"})
	s.Require().NoError(err)

	condKey, _ := s.keys.Cond("widget", widgetCond{Kind: "gear"})
	listKey, _ := s.keys.List("widget", widgetCond{}, pagination.Paging{Page: 1, Limit: 10})
	idsKey := s.keys.IDs("widget", []string{"w3", "w1"})
	s.Require().True(s.cached(condKey))
	s.Require().True(s.cached(listKey))
	s.Require().True(s.cached(idsKey))

	s.Require().NoError(s.repo.Insert(s.ctx, &widget{ID: "w4", Kind: "gear"}))

	s.False(s.cached(condKey))
	s.False(s.cached(listKey))
	s.False(s.cached(idsKey))
	s.True(s.cached("test:widget:id:w2"), "point keys of other ids survive")
}

func (s *RepositoryTestSuite) TestFailedWriteDoesNotInvalidate() {
	_, err := s.repo.FindByID(s.ctx, "w1")
	s.Require().NoError(err)

	err = s.repo.Insert(s.ctx, &widget{ID: "w1"})
	s.True(errors.IsConflict(err))
	s.True(s.cached("test:widget:id:w1"))

	s.True(errors.IsNotFound(s.repo.Delete(s.ctx, "ghost")))
	s.True(s.cached("test:widget:id:w1"))
}

func (s *RepositoryTestSuite) TestDeleteInvalidates() {
	_, err := s.repo.FindByID(s.ctx, "w1")
	s.Require().NoError(err)
	s.Require().NoError(s.repo.Delete(s.ctx, "w1"))

	_, err = s.repo.FindByID(s.ctx, "w1")
	s.True(errors.IsNotFound(err))
}

func (s *RepositoryTestSuite) TestListByIDsWarmsPointKeys() {
	items, err := s.repo.ListByIDs(s.ctx, []string{"w1", "w2"})
	s.Require().NoError(err)
	s.Len(items, 2)
	s.Equal(1, s.store.count("listByIds"))

	_, err = s.repo.FindByID(s.ctx, "w2")
	s.Require().NoError(err)
	s.Equal(0, s.store.count("findById"), "point lookup served from bulk population")

	_, err = s.repo.ListByIDs(s.ctx, []string{"w2", "w1"})
	s.Require().NoError(err)
	s.Equal(1, s.store.count("listByIds"))
}

func (s *RepositoryTestSuite) TestListByIDsEmptyShortCircuits() {
	items, err := s.repo.ListByIDs(s.ctx, nil)
	s.Require().NoError(err)
	s.NotNil(items)
	s.Empty(items)
	s.Equal(0, s.store.count("listByIds"))
	s.Zero(s.backend.Len())
}

func (s *RepositoryTestSuite) TestEmptyResultsAreNotCached() {
	items, err := s.repo.ListByIDs(s.ctx, []string{"ghost"})
	s.Require().NoError(err)
	s.Empty(items)

	page, err := s.repo.List(s.ctx, widgetCond{Kind: "none"}, pagination.Paging{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Empty(page.Data)
	s.Zero(s.backend.Len())
}

func (s *RepositoryTestSuite) TestListCachesPages() {
	p := pagination.Paging{Page: 1, Limit: 10}
	first, err := s.repo.List(s.ctx, widgetCond{Kind: "gear"}, p)
	s.Require().NoError(err)
	second, err := s.repo.List(s.ctx, widgetCond{Kind: "gear"}, p)
	s.Require().NoError(err)

	s.Equal(first, second)
	s.EqualValues(2, second.Total)
	s.Equal(1, s.store.count("list"))
}

func (s *RepositoryTestSuite) TestConcurrentMissesShareOneLoad() {
	s.store.delay = 20 * time.Millisecond
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.repo.FindByID(s.ctx, "w3"); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Zero(failures.Load())
	s.Equal(1, s.store.count("findById"))
}

// gatedStore blocks FindByID until released and fails with the context
// error if the load was cancelled meanwhile.
type gatedStore struct {
	*widgetStore
	started chan struct{}
	release chan struct{}
}

func (g *gatedStore) FindByID(ctx context.Context, id string) (*widget, error) {
	close(g.started)
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.widgetStore.FindByID(ctx, id)
}

func (s *RepositoryTestSuite) TestCancelledCallerDoesNotFailSharedLoad() {
	// Arrange
	gated := &gatedStore{widgetStore: s.store, started: make(chan struct{}), release: make(chan struct{})}
	repo := cacherepo.New[widget, widgetCond, widgetPatch](gated, gated, cache.NewService(s.backend, logger.NewNoop()), s.keys, logger.NewNoop(), cacherepo.Options[widget]{
		Entity: "widget",
		IDOf:   func(w *widget) string { return w.ID },
		TTLs:   cache.DefaultTTLs(),
	})

	firstCtx, cancelFirst := context.WithCancel(s.ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := repo.FindByID(firstCtx, "w1")
		firstErr <- err
	}()
	<-gated.started

	type result struct {
		w   *widget
		err error
	}
	second := make(chan result, 1)
	go func() {
		w, err := repo.FindByID(s.ctx, "w1")
		second <- result{w, err}
	}()

	// Act
	cancelFirst()
	s.ErrorIs(<-firstErr, context.Canceled)
	close(gated.release)

	// Assert
	got := <-second
	s.Require().NoError(got.err)
	s.Equal("gear", got.w.Kind)
	s.Equal(1, s.store.count("findById"))
	s.True(s.cached("test:widget:id:w1"))
}

func (s *RepositoryTestSuite) TestCountersInvalidate() {
	_, err := s.repo.FindByID(s.ctx, "w1")
	s.Require().NoError(err)
	_, err = s.repo.List(s.ctx, widgetCond{}, pagination.Paging{Page: 1, Limit: 10})
	s.Require().NoError(err)

	s.Require().NoError(s.counters.IncreaseCount(s.ctx, "w1", "count", 2))
	s.False(s.cached("test:widget:id:w1"))
	s.Zero(s.backend.Len())

	w, err := s.repo.FindByID(s.ctx, "w1")
	s.Require().NoError(err)
	s.Equal(2, w.Count)

	s.Require().NoError(s.counters.DecreaseCount(s.ctx, "w1", "count", 5))
	w, err = s.repo.FindByID(s.ctx, "w1")
	s.Require().NoError(err)
	s.Equal(0, w.Count)

	s.True(errors.IsBadRequest(s.counters.IncreaseCount(s.ctx, "w1", "count", 0)))
	s.True(errors.IsNotFound(s.counters.IncreaseCount(s.ctx, "ghost", "count", 1)))
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestDisabledCacheAlwaysReadsStore(t *testing.T) {
	ctx := context.Background()
	store := newWidgetStore(widget{ID: "w1", Kind: "gear"})
	backend := cache.NewMemoryBackend(0)
	svc := cache.NewService(backend, logger.NewNoop(), cache.WithEnabled(false))
	repo := cacherepo.New[widget, widgetCond, widgetPatch](store, store, svc, cachekey.New("test:"), logger.NewNoop(), cacherepo.Options[widget]{
		Entity: "widget",
		IDOf:   func(w *widget) string { return w.ID },
		TTLs:   cache.DefaultTTLs(),
	})

	for i := 0; i < 3; i++ {
		_, err := repo.FindByID(ctx, "w1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.count("findById"))
	assert.Zero(t, backend.Len())
}
