package server

import (
	"context"
	"errors"
	"net/http"

	"bakery/storefront/internal/cart"
	"bakery/storefront/internal/checkout"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type lineView struct {
	itemView
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type cartView struct {
	Lines         []lineView `json:"lines"`
	TotalQuantity int        `json:"total_quantity"`
	TotalCost     string     `json:"total_cost"`
	CanCheckout   bool       `json:"can_checkout"`
	Unavailable   int        `json:"unavailable"`
}

type pageData struct {
	Data      any
	CartCount int
	Query     string
}

type addItemRequest struct {
	ID string `json:"id" binding:"required"`
}

func (s *Server) openCart(c *gin.Context) (*cart.Store, bool) {
	store, err := cart.Open(c.Request.Context(), cart.NewSessionRepository(s.sessions, sessionID(c)))
	if err != nil {
		abortInternal(c, "Failed to open cart", err)
		return nil, false
	}
	return store, true
}

// mutateCart applies fn to the session's cart as one atomic read-modify-write
func (s *Server) mutateCart(c *gin.Context, fn cart.MutateFunc) (*cart.Store, bool, bool) {
	store, result, err := cart.Mutate(c.Request.Context(), cart.NewSessionRepository(s.sessions, sessionID(c)), fn)
	if err != nil {
		abortInternal(c, "Failed to update cart", err)
		return nil, false, false
	}
	return store, result, true
}

func (s *Server) page(c *gin.Context, data any) pageData {
	p := pageData{Data: data, Query: c.Request.URL.RawQuery}
	store, err := cart.Open(c.Request.Context(), cart.NewSessionRepository(s.sessions, sessionID(c)))
	if err != nil {
		log.Warnf("⚠️ Cart badge unavailable: %v", err)
		return p
	}
	p.CartCount = store.TotalQuantity()
	return p
}

func (s *Server) cartView(store *cart.Store) cartView {
	validation := store.ValidateForCheckout()
	view := cartView{
		Lines:         make([]lineView, 0, len(store.Lines())),
		TotalQuantity: store.TotalQuantity(),
		TotalCost:     s.money.Format(store.TotalCost()),
		CanCheckout:   validation.IsValid,
		Unavailable:   len(validation.UnavailableItems),
	}
	for _, line := range store.Lines() {
		view.Lines = append(view.Lines, lineView{
			itemView:  s.itemView(line.CatalogItem),
			Quantity:  line.Quantity,
			LineTotal: s.money.Format(line.LineTotal()),
		})
	}
	return view
}

func (s *Server) getCart(c *gin.Context) {
	store, ok := s.openCart(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.cartView(store))
}

func (s *Server) cartPage(c *gin.Context) {
	store, ok := s.openCart(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "cart.html", s.page(c, s.cartView(store)))
}

// addItem resolves the item against the current catalog so the cart stores
// what the menu actually offers
func (s *Server) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item id is required"})
		return
	}

	catalog, ok := s.snapshot(c)
	if !ok {
		return
	}

	item, found := catalog.Item(req.ID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	store, added, ok := s.mutateCart(c, func(ctx context.Context, st *cart.Store) (bool, error) {
		return st.Add(ctx, item)
	})
	if !ok {
		return
	}
	if !added {
		c.JSON(http.StatusConflict, gin.H{"error": item.Name + " is not available right now"})
		return
	}

	c.JSON(http.StatusOK, s.cartView(store))
}

func (s *Server) incrementItem(c *gin.Context) {
	id := c.Param("id")

	var inCart bool
	store, incremented, ok := s.mutateCart(c, func(ctx context.Context, st *cart.Store) (bool, error) {
		inCart = st.QuantityOf(id) > 0
		return st.Increment(ctx, id)
	})
	if !ok {
		return
	}
	if !inCart {
		c.JSON(http.StatusNotFound, gin.H{"error": "item is not in the cart"})
		return
	}
	if !incremented {
		c.JSON(http.StatusConflict, gin.H{"error": "item is not available right now"})
		return
	}

	c.JSON(http.StatusOK, s.cartView(store))
}

func (s *Server) decrementItem(c *gin.Context) {
	id := c.Param("id")

	store, decremented, ok := s.mutateCart(c, func(ctx context.Context, st *cart.Store) (bool, error) {
		return st.Decrement(ctx, id)
	})
	if !ok {
		return
	}
	if !decremented {
		c.JSON(http.StatusNotFound, gin.H{"error": "item is not in the cart"})
		return
	}

	c.JSON(http.StatusOK, s.cartView(store))
}

func (s *Server) removeItem(c *gin.Context) {
	id := c.Param("id")

	store, _, ok := s.mutateCart(c, func(ctx context.Context, st *cart.Store) (bool, error) {
		return true, st.Remove(ctx, id)
	})
	if !ok {
		return
	}

	c.JSON(http.StatusOK, s.cartView(store))
}

func (s *Server) clearCart(c *gin.Context) {
	store, _, ok := s.mutateCart(c, func(ctx context.Context, st *cart.Store) (bool, error) {
		return true, st.Clear(ctx)
	})
	if !ok {
		return
	}

	c.JSON(http.StatusOK, s.cartView(store))
}

func (s *Server) checkout(c *gin.Context) {
	store, ok := s.openCart(c)
	if !ok {
		return
	}

	order, err := s.storefront.Checkout(c.Request.Context(), sessionID(c), store.ValidateForCheckout())
	if err != nil {
		if errors.Is(err, checkout.ErrCartNotCheckoutable) || errors.Is(err, checkout.ErrNoDestination) {
			log.Warnf("Checkout rejected for session %s: %v", sessionID(c), err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": checkoutMessage(err)})
			return
		}
		abortInternal(c, "Checkout failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": order.Link, "message": order.Message})
}

func checkoutMessage(err error) string {
	if errors.Is(err, checkout.ErrNoDestination) {
		return "Ordering is not available at the moment. Please contact us directly."
	}
	return "Some items in your cart are unavailable or your cart is empty. Please review it before ordering."
}
