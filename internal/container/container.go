package container

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bakery/storefront/internal/cache"
	"bakery/storefront/internal/checkout"
	"bakery/storefront/internal/client"
	"bakery/storefront/internal/config"
	"bakery/storefront/internal/endpoint"
	"bakery/storefront/internal/queue"
	"bakery/storefront/internal/repository"
	"bakery/storefront/internal/server"
	"bakery/storefront/internal/service"
	"bakery/storefront/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Health checks hit the CDN root, which answers without a token
const endpointHealthPath = "/v1/ping"

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Client       client.CMSClient
	Cache        cache.CatalogCache
	Queue        queue.Queue
	Repository   repository.HandoffRepository
	SessionStore state.SessionStore

	Service *service.Service
	Server  *server.Server

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	endpoints := endpoint.NewSupplier(ctx, cfg.CMS.Endpoints, endpointHealthPath)

	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	container.db = db

	if err := db.Ping(ctx); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	log.Info("✅ Connected to PostgreSQL successfully")

	handoffRepo := repository.NewHandoffRepository(db)
	if err := handoffRepo.EnsureSchema(ctx); err != nil {
		container.Close()
		return nil, err
	}
	container.Repository = handoffRepo

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	container.redis = rdb

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("✅ Connected to Redis successfully")

	redisQueue, err := queue.NewRedisQueue(ctx, rdb, cfg.Redis)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Queue = redisQueue

	container.SessionStore = state.NewRedisSessionStore(rdb, cfg.Redis.KeyPrefix, cfg.Session.Lifetime())
	container.Cache = cache.NewRedisCatalogCache(rdb, cfg.Redis.KeyPrefix, time.Duration(cfg.CMS.CacheTTL)*time.Second)
	container.Client = client.NewCMSClient(cfg.CMS, endpoints)

	container.Service = service.NewService(
		container.Client,
		container.Cache,
		redisQueue,
		handoffRepo,
		checkout.NewFormatter(cfg.Checkout),
		cfg.Redis.ConsumerGroup,
		cfg.Redis.MinIdleTime,
		cfg.CMS.MaxRetries,
	)

	limiter := server.NewRedisRateLimiter(rdb, cfg.Redis.KeyPrefix, cfg.RateLimit)
	srv, err := server.New(cfg, container.Service, container.SessionStore, limiter)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Server = srv

	return container, nil
}

// Run serves HTTP and processes revalidation tasks until ctx is cancelled
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// Warm the catalog so the first visitor does not pay for the fetch
	g.Go(func() error {
		if _, err := c.Service.Snapshot(ctx); err != nil {
			log.Warnf("⚠️ Initial catalog warm-up failed: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		return c.Server.Run(ctx)
	})

	g.Go(func() error {
		return c.Service.RunWorkers(ctx, c.Config.CMS.Workers)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warnf("⚠️ Failed to close Redis client: %v", err)
		}
	}

	log.Info("Container shut down successfully")
	return nil
}
