package cart

import (
	"context"
	"errors"

	"bakery/storefront/internal/domain"
)

// MutateFunc changes a hydrated store and reports the mutator's outcome
type MutateFunc func(ctx context.Context, s *Store) (bool, error)

// Mutate hydrates the cart, applies mutate and saves the result as one
// atomic step, so concurrent mutations of the same cart never overwrite
// each other. The returned store reflects the saved state.
func Mutate(ctx context.Context, repo AtomicRepository, mutate MutateFunc, opts ...Option) (*Store, bool, error) {
	var (
		store *Store
		ok    bool
	)

	err := repo.Update(ctx, func(current *domain.CartState) (*domain.CartState, error) {
		staged := &stagedRepository{}
		store = New(staged, opts...)
		store.lines = current.Lines

		var err error
		ok, err = mutate(ctx, store)
		if err != nil {
			return nil, err
		}
		return staged.result(), nil
	})
	if err != nil {
		return nil, false, err
	}

	store.repo = repo
	return store, ok, nil
}

// stagedRepository collects the writes of one mutation for the enclosing
// update to store
type stagedRepository struct {
	saved   *domain.CartState
	cleared bool
}

func (r *stagedRepository) Load(context.Context) (*domain.CartState, error) {
	return nil, errors.New("staged cart cannot be loaded")
}

func (r *stagedRepository) Save(_ context.Context, cart *domain.CartState) error {
	copied := *cart
	copied.Lines = append([]domain.CartLine(nil), cart.Lines...)
	r.saved = &copied
	r.cleared = false
	return nil
}

func (r *stagedRepository) Clear(context.Context) error {
	r.saved = nil
	r.cleared = true
	return nil
}

func (r *stagedRepository) result() *domain.CartState {
	if r.cleared {
		return &domain.CartState{}
	}
	return r.saved
}
