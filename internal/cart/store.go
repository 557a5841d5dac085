package cart

import (
	"context"
	"fmt"
	"slices"
	"time"

	"bakery/storefront/internal/domain"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Store holds the lines of one cart and persists every mutation through its
// Repository. Expected rejections (unknown id, unavailable item) are reported
// with a false result; the error result is reserved for persistence failures,
// after which the in-memory lines are rolled back.
type Store struct {
	repo  Repository
	now   func() time.Time
	lines []domain.CartLine
}

type Option func(*Store)

// WithClock overrides the source of AddedAt timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store
func New(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store hydrated from the repository
func Open(ctx context.Context, repo Repository, opts ...Option) (*Store, error) {
	s := New(repo, opts...)

	state, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate cart: %w", err)
	}
	s.lines = state.Lines

	return s, nil
}

func (s *Store) Add(ctx context.Context, item domain.CatalogItem) (bool, error) {
	if !IsAvailable(item) {
		log.Warnf("Rejected add of %s: item is not available", item.ID)
		return false, nil
	}

	if s.index(item.ID) >= 0 {
		return s.Increment(ctx, item.ID)
	}

	prev := slices.Clone(s.lines)
	s.lines = append(s.lines, domain.CartLine{
		CatalogItem: snapshot(item),
		Quantity:    1,
		AddedAt:     s.now(),
	})

	return s.commit(ctx, prev)
}

func (s *Store) Increment(ctx context.Context, id string) (bool, error) {
	i := s.index(id)
	if i < 0 {
		log.Warnf("Cannot increment %s: not in cart", id)
		return false, nil
	}

	if !IsAvailable(s.lines[i].CatalogItem) {
		log.Warnf("Rejected increment of %s: item is not available", id)
		return false, nil
	}

	prev := slices.Clone(s.lines)
	s.lines[i].Quantity++

	return s.commit(ctx, prev)
}

// Decrement lowers the quantity by one, removing the line instead of storing zero
func (s *Store) Decrement(ctx context.Context, id string) (bool, error) {
	i := s.index(id)
	if i < 0 {
		log.Warnf("Cannot decrement %s: not in cart", id)
		return false, nil
	}

	prev := slices.Clone(s.lines)
	if s.lines[i].Quantity <= 1 {
		s.lines = slices.Delete(s.lines, i, i+1)
	} else {
		s.lines[i].Quantity--
	}

	return s.commit(ctx, prev)
}

// Remove drops a line. Removing an id that is not in the cart is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	i := s.index(id)
	if i < 0 {
		log.Debugf("Remove of %s ignored: not in cart", id)
		return nil
	}

	prev := slices.Clone(s.lines)
	s.lines = slices.Delete(s.lines, i, i+1)

	_, err := s.commit(ctx, prev)
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	prev := s.lines
	s.lines = nil

	if err := s.repo.Clear(ctx); err != nil {
		s.lines = prev
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// QuantityOf returns 0 for ids that are not in the cart
func (s *Store) QuantityOf(id string) int {
	if i := s.index(id); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

func (s *Store) TotalQuantity() int {
	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// TotalCost sums price times quantity over every line, valid or not
func (s *Store) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

// Lines returns a copy of the lines in insertion order
func (s *Store) Lines() []domain.CartLine {
	return slices.Clone(s.lines)
}

// ValidateForCheckout splits lines by the availability gate. An empty cart
// is never valid.
func (s *Store) ValidateForCheckout() domain.CheckoutValidation {
	result := domain.CheckoutValidation{
		ValidItems:       make([]domain.CartLine, 0, len(s.lines)),
		UnavailableItems: make([]domain.CartLine, 0),
		TotalCost:        decimal.Zero,
	}

	for _, line := range s.lines {
		if !IsAvailable(line.CatalogItem) {
			result.UnavailableItems = append(result.UnavailableItems, line)
			continue
		}
		result.ValidItems = append(result.ValidItems, line)
		result.TotalCost = result.TotalCost.Add(line.LineTotal())
		result.TotalItems += line.Quantity
	}

	result.IsValid = len(result.UnavailableItems) == 0 && len(result.ValidItems) > 0
	return result
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.lines, func(line domain.CartLine) bool {
		return line.ID == id
	})
}

func (s *Store) commit(ctx context.Context, prev []domain.CartLine) (bool, error) {
	err := s.repo.Save(ctx, &domain.CartState{
		Lines:     s.lines,
		UpdatedAt: s.now(),
	})
	if err != nil {
		s.lines = prev
		return false, fmt.Errorf("failed to persist cart: %w", err)
	}
	return true, nil
}

// snapshot copies an item so later catalog changes never reach the cart
func snapshot(item domain.CatalogItem) domain.CatalogItem {
	if item.Price != nil {
		item.Price = domain.PriceOf(*item.Price)
	}
	item.Categories = slices.Clone(item.Categories)
	item.Allergens = slices.Clone(item.Allergens)
	item.ComboItems = slices.Clone(item.ComboItems)
	return item
}
