package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"bakery/storefront/internal/domain"
	"bakery/storefront/internal/state"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 7, 0, 0, 0, time.UTC)

func item(id string, price int64, available bool) domain.CatalogItem {
	return domain.CatalogItem{
		ID:          id,
		Name:        "Item " + id,
		Price:       domain.PriceOf(decimal.NewFromInt(price)),
		IsAvailable: available,
	}
}

func newStore(t *testing.T) (*Store, *state.MemorySessionStore) {
	t.Helper()
	sessions := state.NewMemorySessionStore()
	repo := NewSessionRepository(sessions, "session-1")
	return New(repo, WithClock(func() time.Time { return fixedNow })), sessions
}

// failingRepository fails every write after the first n succeed
type failingRepository struct {
	saves int
	okFor int
}

func (r *failingRepository) Load(context.Context) (*domain.CartState, error) {
	return &domain.CartState{}, nil
}

func (r *failingRepository) Save(context.Context, *domain.CartState) error {
	r.saves++
	if r.saves > r.okFor {
		return errors.New("storage unavailable")
	}
	return nil
}

func (r *failingRepository) Clear(context.Context) error {
	return errors.New("storage unavailable")
}

func TestStore_AddIncrementDecrementScenario(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	a := item("a", 500, true)

	ok, err := s.Add(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 1, s.QuantityOf("a"))
	assert.Equal(t, fixedNow, s.Lines()[0].AddedAt)
	assert.Equal(t, "500", s.TotalCost().String())

	ok, err = s.Add(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 2, s.QuantityOf("a"))
	assert.Equal(t, "1000", s.TotalCost().String())

	ok, err = s.Decrement(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, s.QuantityOf("a"))

	ok, err = s.Decrement(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, s.Lines())
	assert.Equal(t, 0, s.TotalQuantity())
}

func TestStore_AvailabilityGate(t *testing.T) {
	ctx := context.Background()

	rejected := []domain.CatalogItem{
		item("flag-false", 300, false),
		item("zero-price", 0, true),
		item("negative-price", -5, true),
		{ID: "no-price", Name: "No price", IsAvailable: true},
	}

	for _, it := range rejected {
		t.Run(it.ID, func(t *testing.T) {
			s, sessions := newStore(t)

			ok, err := s.Add(ctx, it)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, s.Lines())
			assert.Equal(t, 0, sessions.Len(), "a rejected add must not persist anything")
		})
	}
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, IsAvailable(item("a", 1, true)))
	assert.False(t, IsAvailable(item("a", 1, false)))
	assert.False(t, IsAvailable(item("a", 0, true)))
	assert.False(t, IsAvailable(domain.CatalogItem{ID: "a", IsAvailable: true}))
}

func TestStore_AddOfPresentItemEqualsIncrement(t *testing.T) {
	ctx := context.Background()
	a := item("a", 250, true)

	viaAdd, _ := newStore(t)
	viaIncrement, _ := newStore(t)

	for _, s := range []*Store{viaAdd, viaIncrement} {
		ok, err := s.Add(ctx, a)
		require.NoError(t, err)
		require.True(t, ok)
	}

	okAdd, err := viaAdd.Add(ctx, a)
	require.NoError(t, err)
	okInc, err := viaIncrement.Increment(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, okInc, okAdd)
	assert.Equal(t, viaIncrement.QuantityOf("a"), viaAdd.QuantityOf("a"))
	assert.Equal(t, viaIncrement.TotalCost().String(), viaAdd.TotalCost().String())
}

func TestStore_IncrementRejections(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	ok, err := s.Increment(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	// A line whose snapshot is unavailable cannot be incremented
	s.lines = append(s.lines, domain.CartLine{CatalogItem: item("stale", 100, false), Quantity: 1})
	ok, err = s.Increment(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.QuantityOf("stale"))
}

func TestStore_QuantityFloor(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	a := item("a", 100, true)

	for i := 0; i < 3; i++ {
		_, err := s.Add(ctx, a)
		require.NoError(t, err)
	}

	results := make([]bool, 0, 6)
	for i := 0; i < 6; i++ {
		ok, err := s.Decrement(ctx, "a")
		require.NoError(t, err)
		results = append(results, ok)
		assert.GreaterOrEqual(t, s.QuantityOf("a"), 0)
	}

	assert.Equal(t, []bool{true, true, true, false, false, false}, results)
	assert.Empty(t, s.Lines())
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, err := s.Add(ctx, item("a", 100, true))
	require.NoError(t, err)
	_, err = s.Add(ctx, item("b", 200, true))
	require.NoError(t, err)

	before := s.Lines()
	for _, id := range []string{"missing", "", "A"} {
		require.NoError(t, s.Remove(ctx, id))
		assert.Equal(t, before, s.Lines())
	}

	require.NoError(t, s.Remove(ctx, "a"))
	require.NoError(t, s.Remove(ctx, "a"))
	assert.Equal(t, 0, s.QuantityOf("a"))
	assert.Equal(t, 1, s.QuantityOf("b"))
}

func TestStore_TotalsHoldAfterEveryMutation(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	catalog := map[string]domain.CatalogItem{
		"a": item("a", 120, true),
		"b": item("b", 75, true),
		"c": item("c", 310, true),
	}

	steps := []func() error{
		func() error { _, err := s.Add(ctx, catalog["a"]); return err },
		func() error { _, err := s.Add(ctx, catalog["b"]); return err },
		func() error { _, err := s.Increment(ctx, "a"); return err },
		func() error { _, err := s.Add(ctx, catalog["c"]); return err },
		func() error { _, err := s.Decrement(ctx, "b"); return err },
		func() error { return s.Remove(ctx, "missing") },
		func() error { _, err := s.Add(ctx, catalog["b"]); return err },
		func() error { _, err := s.Increment(ctx, "c"); return err },
		func() error { return s.Remove(ctx, "a") },
		func() error { return s.Clear(ctx) },
	}

	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)

		quantity := 0
		cost := decimal.Zero
		for _, line := range s.Lines() {
			quantity += line.Quantity
			cost = cost.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		assert.Equal(t, quantity, s.TotalQuantity(), "step %d", i)
		assert.True(t, cost.Equal(s.TotalCost()), "step %d: want %s got %s", i, cost, s.TotalCost())
	}
}

func TestStore_TotalCostCountsLineWithoutPriceAsZero(t *testing.T) {
	s, _ := newStore(t)
	s.lines = []domain.CartLine{
		{CatalogItem: item("a", 40, true), Quantity: 2},
		{CatalogItem: domain.CatalogItem{ID: "b"}, Quantity: 3},
	}

	assert.Equal(t, "80", s.TotalCost().String())
	assert.Equal(t, 5, s.TotalQuantity())
}

func TestStore_ValidateForCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart is not valid", func(t *testing.T) {
		s, _ := newStore(t)
		v := s.ValidateForCheckout()
		assert.False(t, v.IsValid)
		assert.Empty(t, v.ValidItems)
		assert.Empty(t, v.UnavailableItems)
		assert.Equal(t, 0, v.TotalItems)
	})

	t.Run("one unavailable line blocks checkout", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Add(ctx, item("bread", 200, true))
		require.NoError(t, err)
		s.lines = append(s.lines, domain.CartLine{CatalogItem: item("cake", 900, false), Quantity: 1})

		v := s.ValidateForCheckout()
		assert.False(t, v.IsValid)
		assert.Len(t, v.UnavailableItems, 1)
		assert.Len(t, v.ValidItems, 1)
		assert.Equal(t, "200", v.TotalCost.String())
		assert.Equal(t, 1, v.TotalItems)

		// The raw total still includes the unavailable line
		assert.Equal(t, "1100", s.TotalCost().String())
	})

	t.Run("all available lines are valid", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Add(ctx, item("bread", 200, true))
		require.NoError(t, err)
		_, err = s.Add(ctx, item("bread", 200, true))
		require.NoError(t, err)

		v := s.ValidateForCheckout()
		assert.True(t, v.IsValid)
		assert.Equal(t, "400", v.TotalCost.String())
		assert.Equal(t, 2, v.TotalItems)
	})
}

func TestStore_PersistsAndHydrates(t *testing.T) {
	ctx := context.Background()
	s, sessions := newStore(t)

	_, err := s.Add(ctx, item("a", 500, true))
	require.NoError(t, err)
	_, err = s.Add(ctx, item("b", 150, true))
	require.NoError(t, err)
	_, err = s.Increment(ctx, "b")
	require.NoError(t, err)

	reopened, err := Open(ctx, NewSessionRepository(sessions, "session-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.QuantityOf("a"))
	assert.Equal(t, 2, reopened.QuantityOf("b"))
	assert.Equal(t, "800", reopened.TotalCost().String())

	other, err := Open(ctx, NewSessionRepository(sessions, "session-2"))
	require.NoError(t, err)
	assert.Empty(t, other.Lines())

	require.NoError(t, reopened.Clear(ctx))
	cleared, err := Open(ctx, NewSessionRepository(sessions, "session-1"))
	require.NoError(t, err)
	assert.Empty(t, cleared.Lines())
}

func TestStore_SnapshotIsIndependentOfCatalog(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	a := item("a", 500, true)

	_, err := s.Add(ctx, a)
	require.NoError(t, err)

	*a.Price = decimal.NewFromInt(1)
	assert.Equal(t, "500", s.TotalCost().String())
}

func TestStore_RollsBackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	s := New(&failingRepository{okFor: 1})

	ok, err := s.Add(ctx, item("a", 100, true))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Increment(ctx, "a")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.QuantityOf("a"))

	ok, err = s.Add(ctx, item("b", 100, true))
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.QuantityOf("b"))

	_, err = s.Decrement(ctx, "a")
	assert.Error(t, err)
	assert.Equal(t, 1, s.QuantityOf("a"))

	assert.Error(t, s.Remove(ctx, "a"))
	assert.Equal(t, 1, s.QuantityOf("a"))

	assert.Error(t, s.Clear(ctx))
	assert.Equal(t, 1, s.QuantityOf("a"))
}

func TestSessionRepository_DiscardsCorruptPayload(t *testing.T) {
	ctx := context.Background()
	sessions := state.NewMemorySessionStore()
	require.NoError(t, sessions.Set(ctx, "cart:broken", []byte("not-json")))

	s, err := Open(ctx, NewSessionRepository(sessions, "broken"))
	require.NoError(t, err)
	assert.Empty(t, s.Lines())
}
