package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bakery/storefront/internal/cache"
	"bakery/storefront/internal/checkout"
	"bakery/storefront/internal/config"
	"bakery/storefront/internal/domain"
	"bakery/storefront/internal/domain/task"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   int
	catalog *domain.Catalog
	err     error

	// when set, fetches announce themselves on entered and wait for gate
	entered chan struct{}
	gate    chan struct{}
}

func (c *fakeClient) FetchCatalog(ctx context.Context) (*domain.Catalog, error) {
	c.mu.Lock()
	c.calls++
	catalog, err, gate := c.catalog, c.err, c.gate
	c.mu.Unlock()

	if gate != nil {
		c.entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeClient) FetchMenuItems(ctx context.Context) ([]domain.CatalogItem, error) {
	return c.catalog.Items, c.err
}

func (c *fakeClient) FetchCategories(ctx context.Context) ([]domain.CategoryRef, error) {
	return c.catalog.Categories, c.err
}

type fakeCache struct {
	mu          sync.Mutex
	catalog     *domain.Catalog
	invalidated [][]string
}

func (c *fakeCache) Get(ctx context.Context) (*domain.Catalog, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog, c.catalog != nil, nil
}

func (c *fakeCache) Set(ctx context.Context, catalog *domain.Catalog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = catalog
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, tags)
	c.catalog = nil
	return nil
}

type fakeQueue struct {
	added []task.Task
	acked []string
}

func (q *fakeQueue) AddTask(ctx context.Context, t task.Task) (string, error) {
	q.added = append(q.added, t)
	return "1-0", nil
}

func (q *fakeQueue) GetTask(ctx context.Context, group, consumer, stream string) (*redis.XMessage, error) {
	return nil, nil
}

func (q *fakeQueue) AckTask(ctx context.Context, stream, group, msgID string) error {
	q.acked = append(q.acked, stream+"/"+msgID)
	return nil
}

func (q *fakeQueue) CreateGroup(ctx context.Context, stream, group string) error { return nil }

func (q *fakeQueue) AutoClaim(ctx context.Context, group, consumer, stream string, minIdleTime time.Duration) ([]redis.XMessage, error) {
	return nil, nil
}

func (q *fakeQueue) EnsureStreamsExist(ctx context.Context) error { return nil }

func (q *fakeQueue) StreamName(taskType string) string { return "test:stream:" + taskType }

type fakeHandoffs struct {
	saved []*domain.Handoff
	err   error
}

func (r *fakeHandoffs) EnsureSchema(ctx context.Context) error { return nil }

func (r *fakeHandoffs) SaveHandoff(ctx context.Context, handoff *domain.Handoff, lines []domain.CartLine) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, handoff)
	return nil
}

type fixture struct {
	client   *fakeClient
	cache    *fakeCache
	queue    *fakeQueue
	handoffs *fakeHandoffs
	service  *Service
}

func newFixture() *fixture {
	f := &fixture{
		client: &fakeClient{catalog: &domain.Catalog{
			Items:     []domain.CatalogItem{{ID: "sourdough", Name: "Sourdough"}},
			FetchedAt: time.Now(),
		}},
		cache:    &fakeCache{},
		queue:    &fakeQueue{},
		handoffs: &fakeHandoffs{},
	}
	formatter := checkout.NewFormatter(config.CheckoutConfig{
		Phone:          "+15550100",
		LinkTemplate:   "https://wa.me/%s?text=%s",
		Greeting:       "Hi!",
		CurrencySymbol: "$",
		Locale:         "en",
		Decimals:       2,
	})
	f.service = NewService(f.client, f.cache, f.queue, f.handoffs, formatter, "group", 60, 2)
	return f
}

func message(t task.Task) *redis.XMessage {
	data, _ := t.TaskValue()
	return &redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"task_type": t.TaskType(), "task_data": string(data)},
	}
}

func TestService_SnapshotFetchesOnMissThenServesCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.service.Snapshot(ctx)
	require.NoError(t, err)
	second, err := f.service.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, f.client.calls)
	assert.Same(t, first, second)
}

func TestService_SnapshotSurvivesCancelledLeader(t *testing.T) {
	f := newFixture()
	f.client.entered = make(chan struct{}, 2)
	f.client.gate = make(chan struct{})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.service.Snapshot(leaderCtx)
		leaderErr <- err
	}()

	select {
	case <-f.client.entered:
	case <-time.After(time.Second):
		t.Fatal("fetch never started")
	}

	type result struct {
		catalog *domain.Catalog
		err     error
	}
	followerDone := make(chan result, 1)
	go func() {
		catalog, err := f.service.Snapshot(context.Background())
		followerDone <- result{catalog, err}
	}()
	// let the follower join the fetch in flight
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(f.client.gate)
	select {
	case res := <-followerDone:
		require.NoError(t, res.err)
		assert.Equal(t, "sourdough", res.catalog.Items[0].ID)
	case <-time.After(time.Second):
		t.Fatal("follower never got the catalog")
	}

	assert.Equal(t, 1, f.client.callCount())
	cached, ok, err := f.cache.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sourdough", cached.Items[0].ID)
}

func TestService_SnapshotFallsBackToLastKnown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.Snapshot(ctx)
	require.NoError(t, err)

	f.cache.catalog = nil
	f.client.err = errors.New("cms down")

	catalog, err := f.service.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog.Items, 1)
}

func TestService_SnapshotFailsWithoutAnyCatalog(t *testing.T) {
	f := newFixture()
	f.client.err = errors.New("cms down")

	_, err := f.service.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestService_RevalidateMapsDocumentTypes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tags, err := f.service.Revalidate(ctx, "category", "cat-bread")
	require.NoError(t, err)
	assert.Equal(t, []string{cache.TagMenu, cache.TagCategories}, tags)

	tags, err = f.service.Revalidate(ctx, "siteSettings", "x")
	require.NoError(t, err)
	assert.Empty(t, tags)

	require.Len(t, f.queue.added, 1)
	queued := f.queue.added[0].(*task.RevalidateTask)
	assert.Equal(t, "cat-bread", queued.DocumentID)
}

func TestService_ProcessRevalidateTaskWarmsCache(t *testing.T) {
	f := newFixture()

	err := f.service.processMessage(context.Background(), message(&task.RevalidateTask{Tags: []string{cache.TagMenu}}))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{cache.TagMenu}}, f.cache.invalidated)
	assert.NotNil(t, f.cache.catalog)
	assert.Equal(t, []string{"test:stream:RevalidateTask/1-0"}, f.queue.acked)
	assert.Empty(t, f.queue.added)
}

func TestService_FailedRevalidationIsRetriedThenDropped(t *testing.T) {
	f := newFixture()
	f.client.err = errors.New("cms down")
	ctx := context.Background()

	require.NoError(t, f.service.processMessage(ctx, message(&task.RevalidateTask{Tags: []string{cache.TagMenu}})))
	require.Len(t, f.queue.added, 1)
	retry := f.queue.added[0].(*task.RevalidateRetryTask)
	assert.Equal(t, 0, retry.RetryCount)

	require.NoError(t, f.service.processMessage(ctx, message(retry)))
	require.Len(t, f.queue.added, 2)
	retry = f.queue.added[1].(*task.RevalidateRetryTask)
	assert.Equal(t, 1, retry.RetryCount)

	require.NoError(t, f.service.processMessage(ctx, message(retry)))
	assert.Len(t, f.queue.added, 2, "retries stop at the configured limit")
	assert.Len(t, f.queue.acked, 3)
}

func TestService_ProcessRejectsUnknownTask(t *testing.T) {
	f := newFixture()

	err := f.service.processMessage(context.Background(), &redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"task_type": "Other", "task_data": "{}"},
	})
	assert.Error(t, err)
	assert.Empty(t, f.queue.acked)
}

func TestService_CheckoutRecordsHandoff(t *testing.T) {
	f := newFixture()
	validation := domain.CheckoutValidation{
		IsValid: true,
		ValidItems: []domain.CartLine{{
			CatalogItem: domain.CatalogItem{ID: "sourdough", Name: "Sourdough", Price: domain.PriceOf(decimal.NewFromInt(5)), IsAvailable: true},
			Quantity:    2,
		}},
		TotalCost:  decimal.NewFromInt(10),
		TotalItems: 2,
	}

	order, err := f.service.Checkout(context.Background(), "session-1", validation)
	require.NoError(t, err)
	assert.Contains(t, order.Link, "https://wa.me/+15550100?text=")

	require.Len(t, f.handoffs.saved, 1)
	saved := f.handoffs.saved[0]
	assert.Equal(t, "session-1", saved.SessionID)
	assert.Equal(t, order.Message, saved.Message)
	assert.True(t, saved.TotalCost.Equal(decimal.NewFromInt(10)))
}

func TestService_CheckoutSurvivesAuditFailure(t *testing.T) {
	f := newFixture()
	f.handoffs.err = errors.New("db down")
	validation := domain.CheckoutValidation{
		IsValid: true,
		ValidItems: []domain.CartLine{{
			CatalogItem: domain.CatalogItem{ID: "a", Name: "A", Price: domain.PriceOf(decimal.NewFromInt(1)), IsAvailable: true},
			Quantity:    1,
		}},
		TotalCost:  decimal.NewFromInt(1),
		TotalItems: 1,
	}

	order, err := f.service.Checkout(context.Background(), "s", validation)
	require.NoError(t, err)
	assert.NotEmpty(t, order.Link)
}

func TestService_CheckoutRejectsInvalidCart(t *testing.T) {
	f := newFixture()

	_, err := f.service.Checkout(context.Background(), "s", domain.CheckoutValidation{})
	assert.ErrorIs(t, err, checkout.ErrCartNotCheckoutable)
	assert.Empty(t, f.handoffs.saved)
}
