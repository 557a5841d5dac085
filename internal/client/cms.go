package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"bakery/storefront/internal/config"
	"bakery/storefront/internal/domain"
	"bakery/storefront/internal/endpoint"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

var ErrCircuitOpen = errors.New("cms circuit breaker is open")

const (
	menuItemsQuery = `*[_type == "menuItem" && !(_id in path("drafts.**"))] | order(orderRank asc){
  _id, name, "slug": slug.current, description, "image": image.asset->url, price, isAvailable,
  "categories": categories[]->{_id, title, "slug": slug.current},
  allergens, isCombo,
  "comboItems": comboItems[]->{_id, name, isCombo}
}`
	categoriesQuery = `*[_type == "category" && !(_id in path("drafts.**"))] | order(orderRank asc){_id, title, "slug": slug.current}`
)

type CMSClient interface {
	FetchCatalog(ctx context.Context) (*domain.Catalog, error)
	FetchMenuItems(ctx context.Context) ([]domain.CatalogItem, error)
	FetchCategories(ctx context.Context) ([]domain.CategoryRef, error)
}

type cmsClient struct {
	rl         ratelimit.Limiter
	config     config.CMSConfig
	httpClient *resty.Client
	parser     *contentParser
	endpoints  endpoint.Supplier

	// Circuit breaker for quota exceeded
	circuitBreakerMutex sync.RWMutex
	quotaExceededUntil  time.Time
	circuitBreakerDelay time.Duration
}

func NewCMSClient(cfg config.CMSConfig, endpoints endpoint.Supplier) CMSClient {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json")

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &cmsClient{
		rl:                  ratelimit.New(cfg.MaxRequestsPerSecond),
		config:              cfg,
		httpClient:          client,
		parser:              newContentParser(),
		endpoints:           endpoints,
		circuitBreakerDelay: time.Duration(cfg.CircuitBreakerDelay) * time.Second,
	}
}

// FetchCatalog loads items and categories concurrently into one snapshot
func (c *cmsClient) FetchCatalog(ctx context.Context) (*domain.Catalog, error) {
	var (
		items      []domain.CatalogItem
		categories []domain.CategoryRef
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = c.FetchMenuItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = c.FetchCategories(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Infof("📦 Fetched catalog: %d items, %d categories", len(items), len(categories))
	return &domain.Catalog{
		Items:      items,
		Categories: categories,
		FetchedAt:  time.Now(),
	}, nil
}

func (c *cmsClient) FetchMenuItems(ctx context.Context) ([]domain.CatalogItem, error) {
	body, err := c.query(ctx, menuItemsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}

	items, err := c.parser.ParseMenuItems(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse menu items: %w", err)
	}
	return items, nil
}

func (c *cmsClient) FetchCategories(ctx context.Context) ([]domain.CategoryRef, error) {
	body, err := c.query(ctx, categoriesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}

	categories, err := c.parser.ParseCategories(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse categories: %w", err)
	}
	return categories, nil
}

func (c *cmsClient) queryURL(base string) string {
	return fmt.Sprintf("%s/v%s/data/query/%s", base, c.config.APIVersion, c.config.Dataset)
}

func (c *cmsClient) isCircuitBreakerOpen() bool {
	c.circuitBreakerMutex.RLock()
	now := time.Now()
	wasOpen := now.Before(c.quotaExceededUntil)
	wasTriggered := !c.quotaExceededUntil.IsZero()
	c.circuitBreakerMutex.RUnlock()

	// If circuit breaker was triggered but is now expired, log re-enabling
	if !wasOpen && wasTriggered {
		c.circuitBreakerMutex.Lock()
		if !c.quotaExceededUntil.IsZero() && now.After(c.quotaExceededUntil) {
			c.quotaExceededUntil = time.Time{}
			log.Infof("✅ CMS circuit breaker re-enabled - requests are allowed again")
		}
		c.circuitBreakerMutex.Unlock()
	}

	return wasOpen
}

func (c *cmsClient) triggerCircuitBreaker() {
	c.circuitBreakerMutex.Lock()
	defer c.circuitBreakerMutex.Unlock()

	c.quotaExceededUntil = time.Now().Add(c.circuitBreakerDelay)
	log.Warnf("🚫 CMS circuit breaker activated! Requests disabled until %v",
		c.quotaExceededUntil.Format("15:04:05"))
}

func (c *cmsClient) getRemainingCircuitBreakerTime() time.Duration {
	c.circuitBreakerMutex.RLock()
	defer c.circuitBreakerMutex.RUnlock()

	remaining := time.Until(c.quotaExceededUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// query runs a content query, moving on to the next endpoint when one
// reports an exhausted quota. Once every endpoint has refused, the circuit
// breaker opens.
func (c *cmsClient) query(ctx context.Context, groq string) ([]byte, error) {
	if c.isCircuitBreakerOpen() {
		remaining := c.getRemainingCircuitBreakerTime()
		log.Debugf("🚫 CMS request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return nil, fmt.Errorf("%w: requests disabled for %v more", ErrCircuitOpen, remaining.Round(time.Second))
	}

	attempts := max(1, c.endpoints.Len())
	for attempt := 0; attempt < attempts; attempt++ {
		base := c.endpoints.Get()
		if base == "" {
			return nil, fmt.Errorf("no CMS endpoint configured")
		}

		c.rl.Take()

		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetQueryParam("query", groq).
			Get(c.queryURL(base))

		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			return nil, fmt.Errorf("failed to query %s: %w", base, err)
		}

		body := resp.String()
		if resp.StatusCode() == http.StatusTooManyRequests || strings.Contains(strings.ToLower(body), "quota exceeded") {
			log.Warnf("🚫 Quota exceeded on CMS endpoint %s", base)
			continue
		}

		if resp.IsError() {
			return nil, fmt.Errorf("HTTP error from %s: %d %s", base, resp.StatusCode(), resp.Status())
		}

		return []byte(body), nil
	}

	c.triggerCircuitBreaker()
	return nil, fmt.Errorf("%w: quota exceeded on every endpoint", ErrCircuitOpen)
}
