package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"bakery/storefront/internal/domain"
	"bakery/storefront/internal/state"

	log "github.com/sirupsen/logrus"
)

// Repository persists a single cart
type Repository interface {
	Load(ctx context.Context) (*domain.CartState, error)
	Save(ctx context.Context, cart *domain.CartState) error
	Clear(ctx context.Context) error
}

type sessionRepository struct {
	store state.SessionStore
	key   string
}

// AtomicRepository can apply a read-modify-write of the cart as one step.
// fn may run more than once and returns nil to leave the cart unchanged.
type AtomicRepository interface {
	Repository
	Update(ctx context.Context, fn func(current *domain.CartState) (*domain.CartState, error)) error
}

// NewSessionRepository stores the cart of one session as JSON
func NewSessionRepository(store state.SessionStore, sessionID string) AtomicRepository {
	return &sessionRepository{
		store: store,
		key:   "cart:" + sessionID,
	}
}

func (r *sessionRepository) Load(ctx context.Context) (*domain.CartState, error) {
	data, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return r.decode(data), nil
}

func (r *sessionRepository) decode(data []byte) *domain.CartState {
	if data == nil {
		return &domain.CartState{}
	}

	var cart domain.CartState
	if err := json.Unmarshal(data, &cart); err != nil {
		// A broken payload must not lock the visitor out of their cart
		log.Warnf("Discarding undecodable cart %s: %v", r.key, err)
		return &domain.CartState{}
	}
	return &cart
}

func (r *sessionRepository) Update(ctx context.Context, fn func(current *domain.CartState) (*domain.CartState, error)) error {
	err := r.store.Update(ctx, r.key, func(current []byte) ([]byte, error) {
		next, err := fn(r.decode(current))
		if err != nil || next == nil {
			return nil, err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("failed to encode cart: %w", err)
		}
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	return nil
}

func (r *sessionRepository) Save(ctx context.Context, cart *domain.CartState) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := r.store.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *sessionRepository) Clear(ctx context.Context) error {
	if err := r.store.Remove(ctx, r.key); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
